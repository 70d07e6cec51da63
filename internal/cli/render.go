package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ByLCY/quire/dsl"
	"github.com/ByLCY/quire/layout"
	canvasrenderer "github.com/ByLCY/quire/renderer/canvas"
)

type renderOpts struct {
	output        string // PDF path, defaults to the input with a .pdf extension
	debug         string // layout JSON path
	debugRawUnits bool   // include debug.rawUnits in the layout JSON
	data          string // JSON bound to ${...} placeholders
	dataFile      string // file holding the JSON data
	hyphenation   string // pattern file, overrides text.hyphenation
}

func newRenderCmd() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Lay out a .quire document and write a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "out", "o", "", "PDF output path")
	cmd.Flags().StringVar(&opts.debug, "debug", "", "write the layout as JSON to this path")
	cmd.Flags().BoolVar(&opts.debugRawUnits, "debug-raw-units", false, "include author units in the layout JSON")
	cmd.Flags().StringVar(&opts.data, "data", "", "JSON data bound to the document")
	cmd.Flags().StringVar(&opts.dataFile, "data-file", "", "file with JSON data bound to the document")
	cmd.Flags().StringVar(&opts.hyphenation, "hyphenation", "", "hyphenation pattern file")
	cmd.MarkFlagsMutuallyExclusive("data", "data-file")
	return cmd
}

func runRender(cmd *cobra.Command, input string, opts renderOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	cfg := configFromContext(ctx)
	prog := newProgress(logger)

	data, err := readData(opts.data, opts.dataFile)
	if err != nil {
		return err
	}
	doc, err := dsl.ParseFile(input)
	if err != nil {
		return fmt.Errorf("解析 DSL 失败: %w", err)
	}

	baseDir := filepath.Dir(input)
	r := newRenderer(baseDir, cfg.Fonts)
	build := cfg.BuildOptions()
	build.Typesetter = r
	build.BaseDir = baseDir
	build.Logger = logger
	build.Debug = layout.DebugOptions{RawUnits: opts.debugRawUnits, Breaks: opts.debug != ""}

	patterns := cfg.Text.Hyphenation
	if opts.hyphenation != "" {
		patterns = opts.hyphenation
	}
	dict, err := loadHyphenation(patterns)
	if err != nil {
		return err
	}
	if dict != nil {
		build.Splitter = dict
		logger.Debug("hyphenation enabled", "patterns", patterns)
	}

	result, err := layout.Build(doc, data, build)
	if err != nil {
		return fmt.Errorf("布局计算失败: %w", err)
	}
	if opts.debug != "" {
		if err := writeDebug(result, opts.debug); err != nil {
			return err
		}
		logger.Info("wrote layout", "path", opts.debug)
	}

	output := opts.output
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".pdf"
	}
	pdfBytes, err := r.Render(result)
	if err != nil {
		return fmt.Errorf("渲染 PDF 失败: %w", err)
	}
	if err := writeFile(output, pdfBytes); err != nil {
		return fmt.Errorf("写入 PDF 文件失败: %w", err)
	}
	prog.done(fmt.Sprintf("Rendered %d pages to %s", len(result.Pages), output))
	return nil
}

// newRenderer registers the configured font files as built-in:<name> sources.
func newRenderer(baseDir string, fonts map[string]string) *canvasrenderer.Renderer {
	opts := canvasrenderer.Options{BaseDir: baseDir, Fonts: make(map[string]canvasrenderer.Resource, len(fonts))}
	for name, path := range fonts {
		opts.Fonts[name] = canvasrenderer.Resource{Path: path}
	}
	return canvasrenderer.NewRendererWithOptions(opts)
}

func readData(inline, path string) (any, error) {
	raw := []byte(inline)
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取 data 文件失败: %w", err)
		}
		raw = b
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("解析 data JSON 失败: %w", err)
	}
	return data, nil
}

func writeDebug(result *layout.Result, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(result, path); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
