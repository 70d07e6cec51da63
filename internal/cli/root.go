package cli

import (
	"context"
	"fmt"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ByLCY/quire/config"
	"github.com/ByLCY/quire/hyphen"
)

const defaultConfigPath = "quire.toml"

var (
	version = "dev"
	commit  string
	date    string
)

// SetVersion sets the version information displayed by --version.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the quire CLI with ctx.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	var (
		verbose    bool
		configPath string
	)

	root := &cobra.Command{
		Use:          "quire",
		Short:        "quire lays out text and images into PDF pages",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			logger := newLogger(cmd.ErrOrStderr(), level)
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Debug("config loaded", "path", configPath, "page", cfg.Page.Size, "dpi", cfg.Render.DPI)

			ctx := withLogger(cmd.Context(), logger)
			ctx = context.WithValue(ctx, configKey, cfg)
			cmd.SetContext(ctx)
			return nil
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("quire %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "settings file (TOML)")

	root.AddCommand(newRenderCmd())
	root.AddCommand(newWrapCmd())
	root.AddCommand(newBBoxCmd())
	return root
}

func configFromContext(ctx context.Context) config.Config {
	if cfg, ok := ctx.Value(configKey).(config.Config); ok {
		return cfg
	}
	return config.Default()
}

// loadHyphenation returns the dictionary at path, or nil when path is empty.
func loadHyphenation(path string) (*hyphen.Dictionary, error) {
	if path == "" {
		return nil, nil
	}
	return hyphen.LoadFile(path)
}
