// internal/render/fonts.go
package render

import (
	"os"

	"github.com/Corphon/FriendsSyndicate/internal/utils"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// 字体来源
const (
	FontSourceFile      = "file"
	FontSourceGoRegular = "goregular"
	FontSourceBasic     = "basicfont"
)

const (
	bodyFontSize  = 15
	labelFontSize = 11
	fontDPI       = 72
)

// Faces 图片渲染使用的两种字号
// font.Face 不能并发使用，每次渲染通过 ForRender 取一组新的
type Faces struct {
	Body   font.Face
	Label  font.Face
	Source string

	parsed *opentype.Font // 解析后的字体可以共享；basicfont 时为空
}

// LoadFaces 依次尝试配置的字体文件、内置 Go Regular、basicfont，不会失败
func LoadFaces(path string) Faces {
	logger := utils.GetLogger()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("读取字体文件失败，使用内置字体", map[string]interface{}{"path": path, "error": err.Error()})
		} else if faces, ferr := facesFromData(data); ferr != nil {
			logger.Warn("字体文件无效，使用内置字体", map[string]interface{}{"path": path, "error": ferr.Error()})
		} else {
			faces.Source = FontSourceFile
			return faces
		}
	}

	if faces, err := facesFromData(goregular.TTF); err == nil {
		faces.Source = FontSourceGoRegular
		return faces
	}

	return Faces{Body: basicfont.Face7x13, Label: basicfont.Face7x13, Source: FontSourceBasic}
}

func facesFromData(data []byte) (Faces, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return Faces{}, err
	}
	return facesFromFont(f)
}

func facesFromFont(f *opentype.Font) (Faces, error) {
	body, err := opentype.NewFace(f, &opentype.FaceOptions{Size: bodyFontSize, DPI: fontDPI, Hinting: font.HintingFull})
	if err != nil {
		return Faces{}, err
	}
	label, err := opentype.NewFace(f, &opentype.FaceOptions{Size: labelFontSize, DPI: fontDPI, Hinting: font.HintingFull})
	if err != nil {
		return Faces{}, err
	}
	return Faces{Body: body, Label: label, parsed: f}, nil
}

// ForRender 为一次渲染创建独立的字体实例
// basicfont 只读共享位图，可以直接复用
func (f Faces) ForRender() Faces {
	if f.parsed == nil {
		return f
	}
	fresh, err := facesFromFont(f.parsed)
	if err != nil {
		return Faces{Body: basicfont.Face7x13, Label: basicfont.Face7x13, Source: FontSourceBasic}
	}
	fresh.Source = f.Source
	return fresh
}

// faceMeasurer 按字体步进宽度计算像素宽度
type faceMeasurer struct {
	face font.Face
}

func (m faceMeasurer) Measure(s string) int {
	return font.MeasureString(m.face, s).Ceil()
}

func lineHeight(face font.Face) int {
	h := face.Metrics().Height.Ceil()
	if h <= 0 {
		return 13
	}
	return h
}

func ascent(face font.Face) int {
	return face.Metrics().Ascent.Ceil()
}

func point(x, y int) fixed.Point26_6 {
	return fixed.P(x, y)
}
