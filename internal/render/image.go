// internal/render/image.go
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	apperrors "github.com/Corphon/FriendsSyndicate/internal/errors"
	"github.com/Corphon/FriendsSyndicate/internal/models"
	"golang.org/x/image/font"
)

// 分享图片的固定画布和排版尺寸（像素）
const (
	ImageWidth     = 400
	ImageHeight    = 800
	BubbleTop      = 100
	BubbleSpacing  = 20
	BubbleMaxWidth = 250

	headerHeight  = 80
	sideMargin    = 20
	bubblePadX    = 12
	bubblePadY    = 8
	labelGap      = 2
	cornerRadius  = 14
	topicMaxRunes = 30
	imageTitle    = "Friends Syndicate"
)

// ImageResult 渲染结果
type ImageResult struct {
	Image   *image.RGBA
	Bubbles []Bubble // 可见气泡
	Drawn   int      // 实际画在画布上的数量，超出画布的不绘制
}

// ImageRenderer 把对话画成固定尺寸的手机截图
type ImageRenderer struct {
	faces  Faces
	roster *models.Roster
}

// NewImageRenderer 加载字体；字体问题不会导致失败
func NewImageRenderer(fontPath string, roster *models.Roster) *ImageRenderer {
	if roster == nil {
		roster = models.DefaultRoster()
	}
	return &ImageRenderer{faces: LoadFaces(fontPath), roster: roster}
}

// FontSource 实际使用的字体来源
func (r *ImageRenderer) FontSource() string {
	return r.faces.Source
}

// TruncateTopic 超过30个字符时截断并追加省略号
func TruncateTopic(topic string) string {
	if utf8.RuneCountInString(topic) <= topicMaxRunes {
		return topic
	}
	runes := []rune(topic)
	return string(runes[:topicMaxRunes]) + "..."
}

// Render 绘制分享图片；没有对话时返回 ErrEmptyTranscript
func (r *ImageRenderer) Render(conv models.Conversation) (*ImageResult, error) {
	if conv.Transcript.IsEmpty() {
		return nil, apperrors.ErrEmptyTranscript
	}

	faces := r.faces.ForRender()

	img := image.NewRGBA(image.Rect(0, 0, ImageWidth, ImageHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(hexColor(FrameColor)), image.Point{}, draw.Src)

	drawHeader(img, faces, conv.Topic)

	bubbles := Layout(conv.Transcript, LayoutOptions{
		Roster:       r.roster,
		Measurer:     faceMeasurer{face: faces.Body},
		MaxLineWidth: BubbleMaxWidth - 2*bubblePadX,
	})

	result := &ImageResult{Image: img, Bubbles: bubbles}
	bodyLH := lineHeight(faces.Body)
	labelLH := lineHeight(faces.Label)
	measure := faceMeasurer{face: faces.Body}

	y := BubbleTop
	for _, b := range bubbles {
		textWidth := 0
		for _, line := range b.Lines {
			if w := measure.Measure(line); w > textWidth {
				textWidth = w
			}
		}
		width := textWidth + 2*bubblePadX
		height := len(b.Lines)*bodyLH + 2*bubblePadY

		blockHeight := height
		if b.Label != "" {
			blockHeight += labelLH + labelGap
		}
		if y+blockHeight > ImageHeight {
			break
		}

		x := sideMargin
		if b.Align == AlignRight {
			x = ImageWidth - sideMargin - width
		}

		top := y
		if b.Label != "" {
			drawText(img, faces.Label, hexColor(LabelColor), x+bubblePadX, top+ascent(faces.Label), b.Label)
			top += labelLH + labelGap
		}

		fillRoundedRect(img, image.Rect(x, top, x+width, top+height), cornerRadius, hexColor(b.Color))
		for i, line := range b.Lines {
			baseline := top + bubblePadY + i*bodyLH + ascent(faces.Body)
			drawText(img, faces.Body, color.White, x+bubblePadX, baseline, line)
		}

		result.Drawn++
		y += blockHeight + BubbleSpacing
	}

	return result, nil
}

func drawHeader(img *image.RGBA, faces Faces, topic string) {
	draw.Draw(img, image.Rect(0, 0, ImageWidth, headerHeight), image.NewUniform(hexColor(HeaderColor)), image.Point{}, draw.Src)

	title := faces.Body
	drawText(img, title, color.White, sideMargin, 20+ascent(title), imageTitle)

	if topic == "" {
		topic = "Waiting..."
	}
	drawText(img, faces.Label, hexColor(LabelColor), sideMargin, 50+ascent(faces.Label), "Topic: "+TruncateTopic(topic))
}

// EncodePNG 编码为 PNG
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("编码PNG失败: %w", err)
	}
	return nil
}

func drawText(dst draw.Image, face font.Face, c color.Color, x, baseline int, text string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  point(x, baseline),
	}
	d.DrawString(text)
}

// fillRoundedRect 填充圆角矩形，圆角外的像素保持不变
func fillRoundedRect(dst *image.RGBA, rect image.Rectangle, radius int, c color.Color) {
	if limit := min(rect.Dx(), rect.Dy()) / 2; radius > limit {
		radius = limit
	}
	r2 := radius * radius
	for py := rect.Min.Y; py < rect.Max.Y; py++ {
		for px := rect.Min.X; px < rect.Max.X; px++ {
			cx, cy := px, py
			switch {
			case px < rect.Min.X+radius:
				cx = rect.Min.X + radius
			case px >= rect.Max.X-radius:
				cx = rect.Max.X - radius - 1
			}
			switch {
			case py < rect.Min.Y+radius:
				cy = rect.Min.Y + radius
			case py >= rect.Max.Y-radius:
				cy = rect.Max.Y - radius - 1
			}
			dx, dy := px-cx, py-cy
			if dx*dx+dy*dy <= r2 {
				dst.Set(px, py, c)
			}
		}
	}
}

// hexColor 解析 #RRGGBB
func hexColor(s string) color.RGBA {
	s = strings.TrimPrefix(s, "#")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil || len(s) != 6 {
		return color.RGBA{A: 0xff}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
