package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/srikanth-vn81/obid/internal/orderbook/pipeline"
	"github.com/srikanth-vn81/obid/internal/orderbook/repository"
	"github.com/srikanth-vn81/obid/internal/orderbook/service"
	"github.com/srikanth-vn81/obid/internal/orderbook/sheet"
)

// 业务错误码
const (
	CodeMissingColumn = 40001
	CodeUnreadable    = 40002
	CodeTooLarge      = 41300
)

var uploadFields = []struct {
	field string
	label string
}{
	{service.FieldOrders, "订单簿(OB)文件"},
	{service.FieldPlans, "生产计划(SPL)文件"},
	{service.FieldStyles, "款式-产品映射文件"},
}

// RunHandler 订单簿处理接口
type RunHandler struct {
	svc *service.RunService
}

// NewRunHandler 创建处理器
func NewRunHandler(svc *service.RunService) *RunHandler {
	return &RunHandler{svc: svc}
}

// Register 注册路由
func (h *RunHandler) Register(g *gin.RouterGroup) {
	g.POST("/runs", h.CreateRun)
	g.GET("/runs/:id/download", h.Download)
	g.POST("/process", h.Process)
}

// CreateRun 上传三个文件并处理，返回预览和下载地址
// POST /runs
func (h *RunHandler) CreateRun(c *gin.Context) {
	in, closeAll, ok := readUploads(c)
	if !ok {
		return
	}
	defer closeAll()

	run, err := h.svc.CreateRun(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	Created(c, run)
}

// Download 下载处理结果（仅一次）
// GET /runs/:id/download
func (h *RunHandler) Download(c *gin.Context) {
	data, filename, err := h.svc.Download(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Attachment(c, filename, data)
}

// Process 上传并直接返回 xlsx
// POST /process
func (h *RunHandler) Process(c *gin.Context) {
	in, closeAll, ok := readUploads(c)
	if !ok {
		return
	}
	defer closeAll()

	out, err := h.svc.Process(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	Attachment(c, out.Filename, out.Data)
}

// readUploads opens the three form files. On failure it has already written
// the response.
func readUploads(c *gin.Context) (service.RunInput, func(), bool) {
	var closers []io.Closer
	closeAll := func() {
		for _, cl := range closers {
			cl.Close()
		}
	}

	uploads := make([]service.Upload, len(uploadFields))
	for i, uf := range uploadFields {
		fh, err := c.FormFile(uf.field)
		if err != nil {
			closeAll()
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				Error(c, CodeTooLarge, "上传文件过大")
				return service.RunInput{}, nil, false
			}
			BadRequest(c, "请上传"+uf.label)
			return service.RunInput{}, nil, false
		}
		f, err := fh.Open()
		if err != nil {
			closeAll()
			InternalError(c, "读取上传文件失败: "+err.Error())
			return service.RunInput{}, nil, false
		}
		closers = append(closers, f)
		uploads[i] = service.Upload{Filename: fh.Filename, Size: fh.Size, Reader: f}
	}

	return service.RunInput{Orders: uploads[0], Plans: uploads[1], Styles: uploads[2]}, closeAll, true
}

func respondError(c *gin.Context, err error) {
	var mce *pipeline.MissingColumnError
	var re *sheet.ReadError
	switch {
	case errors.As(err, &mce):
		Error(c, CodeMissingColumn, fmt.Sprintf("%s 缺少列 %q", mce.Table, mce.Column))
	case errors.As(err, &re):
		Error(c, CodeUnreadable, fmt.Sprintf("无法解析上传文件 %s: %v", re.Input, re.Err))
	case errors.Is(err, repository.ErrResultNotFound):
		NotFound(c, "结果不存在、已过期或已被下载")
	default:
		c.Error(err)
		InternalError(c, "处理失败")
	}
}
