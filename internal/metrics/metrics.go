package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry 运行指标集合，使用独立的 prometheus 注册表
type Registry struct {
	reg         *prometheus.Registry
	Runs        *prometheus.CounterVec
	RowsIn      prometheus.Counter
	RowsOut     prometheus.Counter
	PlanMatched prometheus.Counter
	Downloads   *prometheus.CounterVec
	RunSec      prometheus.Histogram
}

// NewRegistry 创建并注册全部指标
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "obid_runs_total"}, []string{"outcome"})
	rowsIn := prometheus.NewCounter(prometheus.CounterOpts{Name: "obid_rows_in_total"})
	rowsOut := prometheus.NewCounter(prometheus.CounterOpts{Name: "obid_rows_out_total"})
	planMatched := prometheus.NewCounter(prometheus.CounterOpts{Name: "obid_plan_matched_total"})
	downloads := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "obid_downloads_total"}, []string{"outcome"})
	runSec := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "obid_run_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(runs, rowsIn, rowsOut, planMatched, downloads, runSec)
	return &Registry{
		reg:         r,
		Runs:        runs,
		RowsIn:      rowsIn,
		RowsOut:     rowsOut,
		PlanMatched: planMatched,
		Downloads:   downloads,
		RunSec:      runSec,
	}
}

// Handler 返回 /metrics 的 HTTP 处理器
func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
