// internal/models/export.go
package models

import "time"

// 分享图片的下载信息
const (
	ExportImageFilename = "friends_chat.png"
	ExportImageMIME     = "image/png"
)

// ExportResult 分享图片导出结果
type ExportResult struct {
	Topic       string    `json:"topic"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Bubbles     int       `json:"bubbles"` // 实际绘制的气泡数
	Data        []byte    `json:"-"`
	GeneratedAt time.Time `json:"generated_at"`
}
