// Package fonts exposes the built-in font faces. They are the Go fonts
// shipped with golang.org/x/image, so every document renders even without
// font files on disk.
package fonts

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// Regular is the name of the default face.
const Regular = "Go-Regular"

var builtin = map[string][]byte{
	Regular:         goregular.TTF,
	"Go-Bold":       gobold.TTF,
	"Go-Italic":     goitalic.TTF,
	"Go-BoldItalic": gobolditalic.TTF,
	"Go-Mono":       gomono.TTF,
}

// Load 返回内置字体的字节数据，name 可写为 "embed:Go-Bold" 或直接 "Go-Bold"，大小写不敏感。
func Load(name string) ([]byte, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "embed:")
	for key, data := range builtin {
		if strings.EqualFold(key, name) {
			return data, nil
		}
	}
	return nil, fmt.Errorf("内置字体 %s 不存在（可用：%s）", name, strings.Join(Names(), ", "))
}

// Names lists the built-in faces in sorted order.
func Names() []string {
	out := make([]string, 0, len(builtin))
	for key := range builtin {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
