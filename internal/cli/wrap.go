package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ByLCY/quire/fonts"
	"github.com/ByLCY/quire/layout"
	canvasrenderer "github.com/ByLCY/quire/renderer/canvas"
	"github.com/ByLCY/quire/wrap"
)

type wrapOpts struct {
	width       float64 // mm, 0 means the configured content width
	fontSize    float64 // pt, 0 means text.font_size
	font        string  // built-in font name
	hyphenation string
	widths      bool // prefix every line with its width
}

func newWrapCmd() *cobra.Command {
	var opts wrapOpts

	cmd := &cobra.Command{
		Use:   "wrap [file]",
		Short: "Break plain text into lines of a given width",
		Long: `Reads plain text from file (or stdin) and prints it broken into lines.
Each input line is wrapped as its own paragraph.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return runWrap(cmd, in, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().Float64VarP(&opts.width, "width", "w", 0, "line width in mm (default: page content width)")
	cmd.Flags().Float64Var(&opts.fontSize, "font-size", 0, "font size in pt (default: text.font_size)")
	cmd.Flags().StringVar(&opts.font, "font", fonts.Regular, "built-in font: "+strings.Join(fonts.Names(), ", "))
	cmd.Flags().StringVar(&opts.hyphenation, "hyphenation", "", "hyphenation pattern file")
	cmd.Flags().BoolVar(&opts.widths, "widths", false, "print the width of each line")
	return cmd
}

func runWrap(cmd *cobra.Command, in io.Reader, out io.Writer, opts wrapOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	cfg := configFromContext(ctx)

	width := opts.width
	if width <= 0 {
		width = cfg.ContentWidth()
	}
	size := opts.fontSize
	if size <= 0 {
		size = cfg.Text.FontSize
	}
	if _, err := fonts.Load(opts.font); err != nil {
		return err
	}
	style := layout.TextStyle{
		Font: layout.FontResource{Name: opts.font, Src: "embed:" + opts.font, Family: opts.font},
		Size: size * layout.PtToMm,
	}

	patterns := cfg.Text.Hyphenation
	if opts.hyphenation != "" {
		patterns = opts.hyphenation
	}
	dict, err := loadHyphenation(patterns)
	if err != nil {
		return err
	}
	var sp wrap.Splitter
	if dict != nil {
		sp = dict
	}
	logger.Debug("wrapping", "width", width, "font", opts.font, "size", size, "hyphenation", patterns != "")

	measure := wrap.MeasureFunc[layout.TextStyle](canvasrenderer.NewRenderer("").CharWidth)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		text := strings.ReplaceAll(scanner.Text(), "\t", " ")
		lines := wrap.Lines([]wrap.Span[layout.TextStyle]{{Text: text, Style: style}}, measure, sp, width)
		if len(lines) == 0 {
			fmt.Fprintln(out)
			continue
		}
		for _, line := range lines {
			var b strings.Builder
			for _, span := range line {
				b.WriteString(span.Text)
			}
			if opts.widths {
				w := 0.0
				for _, r := range b.String() {
					w += measure(style, r)
				}
				fmt.Fprintf(out, "%7.2f  %s\n", w, b.String())
				continue
			}
			fmt.Fprintln(out, b.String())
		}
	}
	return scanner.Err()
}
