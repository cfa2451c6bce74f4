// Package web 内嵌页面模板和静态资源
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.html
var Templates embed.FS

//go:embed static
var static embed.FS

// Static 以 static 目录为根的文件系统
func Static() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		// 目录随二进制内嵌，不会缺失
		panic(err)
	}
	return sub
}
