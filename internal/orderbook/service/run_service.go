package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/srikanth-vn81/obid/internal/config"
	"github.com/srikanth-vn81/obid/internal/metrics"
	"github.com/srikanth-vn81/obid/internal/orderbook/entity"
	"github.com/srikanth-vn81/obid/internal/orderbook/pipeline"
	"github.com/srikanth-vn81/obid/internal/orderbook/repository"
	"github.com/srikanth-vn81/obid/internal/orderbook/sheet"
	"github.com/srikanth-vn81/obid/internal/orderbook/table"
)

// 上传表单字段
const (
	FieldOrders = "ob_file"
	FieldPlans  = "spl_file"
	FieldStyles = "style_file"
)

// Upload 一个上传文件
type Upload struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

// RunInput 三个输入文件
type RunInput struct {
	Orders Upload
	Plans  Upload
	Styles Upload
}

// Output 处理结果
type Output struct {
	Result   *pipeline.Result
	Data     []byte
	Filename string
}

// RunService 订单簿处理服务
type RunService struct {
	store   repository.ResultStore
	ingest  config.IngestConfig
	ttl     time.Duration
	metrics *metrics.Registry
	logger  *zap.Logger
	now     func() time.Time
}

// NewRunService 创建处理服务
func NewRunService(store repository.ResultStore, cfg *config.Config, m *metrics.Registry, logger *zap.Logger) *RunService {
	return &RunService{
		store:   store,
		ingest:  cfg.Ingest,
		ttl:     cfg.ResultStore.TTL,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Process reads the three uploads, runs the pipeline and renders the xlsx.
func (s *RunService) Process(ctx context.Context, in RunInput) (*Output, error) {
	start := time.Now()
	out, err := s.process(in)
	s.metrics.RunSec.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.Runs.WithLabelValues("failed").Inc()
		s.logger.Warn("Order book run failed",
			zap.String("ob_file", in.Orders.Filename),
			zap.String("spl_file", in.Plans.Filename),
			zap.String("style_file", in.Styles.Filename),
			zap.Error(err),
		)
		return nil, err
	}

	st := out.Result.Stats
	s.metrics.Runs.WithLabelValues("ok").Inc()
	s.metrics.RowsIn.Add(float64(st.InputRows))
	s.metrics.RowsOut.Add(float64(st.OutputRows))
	s.metrics.PlanMatched.Add(float64(st.PlanMatched))
	s.logger.Info("Order book processed",
		zap.String("ob_file", in.Orders.Filename),
		zap.Int("input_rows", st.InputRows),
		zap.Int("class_rows", st.ClassRows),
		zap.Int("output_rows", st.OutputRows),
		zap.Int("plan_matched", st.PlanMatched),
		zap.Int("plan_fallback", st.PlanFallback),
		zap.Int("product_matched", st.ProductMatched),
		zap.Int("bytes", len(out.Data)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

func (s *RunService) process(in RunInput) (*Output, error) {
	orders, err := s.read(FieldOrders, in.Orders, s.ingest.OrderSheet)
	if err != nil {
		return nil, err
	}
	plans, err := s.read(FieldPlans, in.Plans, s.ingest.PlanSheet)
	if err != nil {
		return nil, err
	}
	styles, err := s.read(FieldStyles, in.Styles, s.ingest.StyleSheet)
	if err != nil {
		return nil, err
	}

	res, err := pipeline.Run(orders, plans, styles)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := sheet.WriteXLSX(&buf, res.Table, s.ingest.OutputSheet); err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return &Output{Result: res, Data: buf.Bytes(), Filename: s.ingest.OutputFilename}, nil
}

func (s *RunService) read(field string, up Upload, sheetName string) (*table.Table, error) {
	t, err := sheet.Read(up.Filename, up.Reader, sheet.Options{
		Sheet:    sheetName,
		Encoding: s.ingest.CSVEncoding,
	})
	if err != nil {
		return nil, &sheet.ReadError{Input: field, Err: err}
	}
	return t, nil
}

// CreateRun processes the uploads and keeps the xlsx for a single download.
func (s *RunService) CreateRun(ctx context.Context, in RunInput) (*entity.Run, error) {
	out, err := s.Process(ctx, in)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	if err := s.store.Save(ctx, id, out.Data, s.ttl); err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}

	now := s.now()
	return &entity.Run{
		ID:       id,
		Filename: out.Filename,
		Sources: []entity.SourceFile{
			{Field: FieldOrders, Filename: in.Orders.Filename, Size: in.Orders.Size},
			{Field: FieldPlans, Filename: in.Plans.Filename, Size: in.Plans.Size},
			{Field: FieldStyles, Filename: in.Styles.Filename, Size: in.Styles.Size},
		},
		Stats:       out.Result.Stats,
		Columns:     out.Result.Table.Columns(),
		Preview:     out.Result.Table.Rows(s.ingest.PreviewRows),
		DownloadURL: "/api/v1/runs/" + id + "/download",
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}, nil
}

// Download 取出结果文件，下载后即删除
func (s *RunService) Download(ctx context.Context, id string) ([]byte, string, error) {
	data, err := s.store.Take(ctx, id)
	if errors.Is(err, repository.ErrResultNotFound) {
		s.metrics.Downloads.WithLabelValues("missing").Inc()
		return nil, "", err
	}
	if err != nil {
		s.metrics.Downloads.WithLabelValues("error").Inc()
		return nil, "", fmt.Errorf("take result: %w", err)
	}
	s.metrics.Downloads.WithLabelValues("ok").Inc()
	return data, s.ingest.OutputFilename, nil
}
