// internal/render/layout.go
package render

import (
	"strings"
	"unicode/utf8"

	"github.com/Corphon/FriendsSyndicate/internal/models"
)

// 气泡配色，与页面样式一致
const (
	SelfColor   = "#0A84FF"
	OtherColor  = "#262628"
	LabelColor  = "#8e8e93"
	FrameColor  = "#000000"
	HeaderColor = "#1c1c1e"
)

// Align 气泡对齐方向
type Align string

const (
	AlignLeft  Align = "left"
	AlignRight Align = "right"
)

// Measurer 计算一段文本的宽度，单位由实现决定
type Measurer interface {
	Measure(s string) int
}

// RuneMeasurer 按字符数计算宽度，用于页面标记
type RuneMeasurer struct{}

func (RuneMeasurer) Measure(s string) int { return utf8.RuneCountInString(s) }

// Bubble 一条可见消息的排版结果，两种输出共用
type Bubble struct {
	Speaker string   `json:"speaker"`
	Label   string   `json:"label,omitempty"` // self 气泡没有名字标签
	Text    string   `json:"text"`
	Lines   []string `json:"lines"`
	Align   Align    `json:"align"`
	Self    bool     `json:"self"`
	Color   string   `json:"color"`
}

// LayoutOptions 排版参数；MaxLineWidth <= 0 表示不折行
type LayoutOptions struct {
	Roster       *models.Roster
	Measurer     Measurer
	MaxLineWidth int
}

// Layout 按顺序把对话转换为气泡，隐藏 Manager 和 Critic 的发言
func Layout(transcript models.Transcript, opts LayoutOptions) []Bubble {
	roster := opts.Roster
	if roster == nil {
		roster = models.DefaultRoster()
	}
	measurer := opts.Measurer
	if measurer == nil {
		measurer = RuneMeasurer{}
	}
	selfID := string(roster.SelfID())

	bubbles := make([]Bubble, 0, len(transcript))
	for _, turn := range transcript {
		if models.IsHiddenSpeaker(turn.Speaker) {
			continue
		}

		b := Bubble{
			Speaker: turn.Speaker,
			Text:    turn.Text,
			Lines:   WrapText(turn.Text, measurer, opts.MaxLineWidth),
		}
		if turn.Speaker == selfID {
			b.Self = true
			b.Align = AlignRight
			b.Color = SelfColor
		} else {
			b.Label = roster.DisplayName(turn.Speaker)
			b.Align = AlignLeft
			b.Color = OtherColor
		}
		bubbles = append(bubbles, b)
	}
	return bubbles
}

// WrapText 按单词折行；单个单词超宽时按字符拆分
func WrapText(text string, m Measurer, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		current := ""
		for _, word := range words {
			for _, piece := range splitLongWord(word, m, maxWidth) {
				candidate := piece
				if current != "" {
					candidate = current + " " + piece
				}
				if m.Measure(candidate) <= maxWidth {
					current = candidate
					continue
				}
				if current != "" {
					lines = append(lines, current)
				}
				current = piece
			}
		}
		lines = append(lines, current)
	}
	return lines
}

func splitLongWord(word string, m Measurer, maxWidth int) []string {
	if m.Measure(word) <= maxWidth {
		return []string{word}
	}

	var pieces []string
	var sb strings.Builder
	for _, r := range word {
		next := sb.String() + string(r)
		if sb.Len() > 0 && m.Measure(next) > maxWidth {
			pieces = append(pieces, sb.String())
			sb.Reset()
		}
		sb.WriteRune(r)
	}
	if sb.Len() > 0 {
		pieces = append(pieces, sb.String())
	}
	return pieces
}
