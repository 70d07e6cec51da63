// Package config loads quire settings from a TOML file.
//
// A missing file is not an error: Load returns Default. Values set on the
// command line take precedence over the file; that merge happens in the CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ByLCY/quire/element"
	"github.com/ByLCY/quire/geom"
	"github.com/ByLCY/quire/layout"
)

// Config mirrors the layout of quire.toml.
type Config struct {
	Render Render `toml:"render"`
	Text   Text   `toml:"text"`
	Page   Page   `toml:"page"`
	// Fonts maps a name to a font file; documents use it as src "built-in:<name>".
	// Relative paths are resolved against the directory of the config file.
	Fonts map[string]string `toml:"fonts"`
}

// Render holds output settings.
type Render struct {
	DPI float64 `toml:"dpi"` // default image resolution
}

// Text holds paragraph defaults.
type Text struct {
	FontSize   float64 `toml:"font_size"`   // pt
	LineHeight float64 `toml:"line_height"` // factor of the font size
	// Hyphenation is the path of a Liang pattern file. Relative paths are
	// resolved against the directory of the config file.
	Hyphenation string `toml:"hyphenation"`
}

// Page holds the paper used by `page default` and the default margins.
type Page struct {
	Size      string    `toml:"size"`
	Landscape bool      `toml:"landscape"`
	Margin    []float64 `toml:"margin"` // mm, one to four values as in CSS
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Render: Render{DPI: element.DefaultDPI},
		Text:   Text{FontSize: 12, LineHeight: 1.4},
		Page:   Page{Size: "A4", Margin: []float64{20}},
	}
}

// Load reads the file at path over the defaults. An empty path or a missing
// file yields Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return cfg, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	dir := filepath.Dir(path)
	if h := cfg.Text.Hyphenation; h != "" && !filepath.IsAbs(h) {
		cfg.Text.Hyphenation = filepath.Join(dir, h)
	}
	for name, p := range cfg.Fonts {
		if p != "" && !filepath.IsAbs(p) {
			cfg.Fonts[name] = filepath.Join(dir, p)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Render.DPI <= 0 {
		return fmt.Errorf("render.dpi must be positive, got %g", c.Render.DPI)
	}
	if c.Text.FontSize <= 0 {
		return fmt.Errorf("text.font_size must be positive, got %g", c.Text.FontSize)
	}
	if c.Text.LineHeight <= 0 {
		return fmt.Errorf("text.line_height must be positive, got %g", c.Text.LineHeight)
	}
	if _, _, ok := layout.PageSize(c.Page.Size); !ok {
		return fmt.Errorf("page.size %q is not a known paper size", c.Page.Size)
	}
	if n := len(c.Page.Margin); n > 4 {
		return fmt.Errorf("page.margin takes at most 4 values, got %d", n)
	}
	for _, m := range c.Page.Margin {
		if m < 0 {
			return fmt.Errorf("page.margin must not be negative, got %g", m)
		}
	}
	for name, p := range c.Fonts {
		if strings.TrimSpace(name) == "" || p == "" {
			return fmt.Errorf("fonts.%s needs a name and a file path", name)
		}
	}
	return nil
}

// Margin expands page.margin with the rules of the DSL margin parameter.
func (c Config) Margin() layout.Margin {
	v := c.Page.Margin
	switch len(v) {
	case 1:
		return layout.Margin{Top: v[0], Right: v[0], Bottom: v[0], Left: v[0]}
	case 2:
		return layout.Margin{Top: v[0], Right: v[1], Bottom: v[0], Left: v[1]}
	case 3:
		return layout.Margin{Top: v[0], Right: v[1], Bottom: v[2]}
	case 4:
		return layout.Margin{Top: v[0], Right: v[1], Bottom: v[2], Left: v[3]}
	}
	return layout.Margin{}
}

// PageSize returns the configured paper width and height in mm.
func (c Config) PageSize() (float64, float64) {
	w, h, _ := layout.PageSize(c.Page.Size)
	if c.Page.Landscape {
		w, h = h, w
	}
	return w, h
}

// ContentWidth is the page width left between the left and right margins.
func (c Config) ContentWidth() float64 {
	w, _ := c.PageSize()
	m := c.Margin()
	return w - m.Left - m.Right
}

// BuildOptions returns layout options carrying the configured defaults.
func (c Config) BuildOptions() layout.BuildOptions {
	margin := c.Margin()
	w, h := c.PageSize()
	return layout.BuildOptions{
		Text:     layout.TextDefaults{FontSize: c.Text.FontSize, LineHeight: c.Text.LineHeight},
		Margin:   &margin,
		PageSize: geom.Size{Width: w, Height: h},
		DPI:      c.Render.DPI,
	}
}
