package entity

import (
	"time"

	"github.com/srikanth-vn81/obid/internal/orderbook/pipeline"
	"github.com/srikanth-vn81/obid/internal/orderbook/table"
)

// Run 一次处理的摘要，结果文件在 ExpiresAt 前可下载一次
type Run struct {
	ID          string          `json:"id"`
	Filename    string          `json:"filename"`
	Sources     []SourceFile    `json:"sources"`
	Stats       pipeline.Stats  `json:"stats"`
	Columns     []string        `json:"columns"`
	Preview     [][]table.Value `json:"preview"`
	DownloadURL string          `json:"download_url"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// SourceFile 上传文件信息
type SourceFile struct {
	Field    string `json:"field"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}
