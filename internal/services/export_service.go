// internal/services/export_service.go
package services

import (
	"bytes"
	"context"
	"time"

	apperrors "github.com/Corphon/FriendsSyndicate/internal/errors"
	"github.com/Corphon/FriendsSyndicate/internal/models"
	"github.com/Corphon/FriendsSyndicate/internal/render"
	"github.com/Corphon/FriendsSyndicate/internal/utils"
)

// 导出结果状态，用于指标
const (
	exportStatusOK     = "ok"
	exportStatusEmpty  = "empty"
	exportStatusFailed = "failed"
)

// ExportService 把当前对话导出为分享图片
type ExportService struct {
	renderer *render.ImageRenderer
	metrics  *utils.MetricsCollector
	logger   *utils.Logger
}

// NewExportService 创建导出服务
func NewExportService(renderer *render.ImageRenderer) *ExportService {
	return &ExportService{
		renderer: renderer,
		metrics:  utils.GetMetricsCollector(),
		logger:   utils.GetLogger(),
	}
}

// ExportImage 渲染并编码 PNG。对话为空时返回 ErrEmptyTranscript，不生成图片
func (s *ExportService) ExportImage(ctx context.Context, conv models.Conversation) (*models.ExportResult, error) {
	if conv.Transcript.IsEmpty() {
		s.metrics.RecordImageExport(ctx, exportStatusEmpty)
		return nil, apperrors.ErrEmptyTranscript
	}

	res, err := s.renderer.Render(conv)
	if err != nil {
		s.metrics.RecordImageExport(ctx, exportStatusFailed)
		return nil, apperrors.WrapError(err, "渲染分享图片失败", apperrors.ErrorTypeError)
	}

	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, res.Image); err != nil {
		s.metrics.RecordImageExport(ctx, exportStatusFailed)
		return nil, apperrors.NewProcessingError("编码分享图片失败", err)
	}

	s.metrics.RecordImageExport(ctx, exportStatusOK)
	s.logger.Info("分享图片已生成", map[string]interface{}{
		"topic":   conv.Topic,
		"bubbles": res.Drawn,
		"bytes":   buf.Len(),
		"font":    s.renderer.FontSource(),
	})

	bounds := res.Image.Bounds()
	return &models.ExportResult{
		Topic:       conv.Topic,
		Filename:    models.ExportImageFilename,
		ContentType: models.ExportImageMIME,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Bubbles:     res.Drawn,
		Data:        buf.Bytes(),
		GeneratedAt: time.Now(),
	}, nil
}
