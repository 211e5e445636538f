// Package commands implements CLI commands.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/prisma-engine-go/cmd/prisma-engine/internal/ui"
	"github.com/satishbabariya/prisma-engine-go/internal/config"
	"github.com/satishbabariya/prisma-engine-go/internal/debug"
	"github.com/satishbabariya/prisma-engine-go/pkg/client"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	debug    bool
	logLevel string
	url      string
	noColor  bool
}

// NewRootCommand creates the prisma-engine command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "prisma-engine",
		Short: "Dialect-neutral query engine",
		Long: `prisma-engine translates dialect-neutral filters into SQL for PostgreSQL,
MySQL, SQLite and SQL Server, and executes logical queries over a bounded
connection pool.

The datasource URL is read from --url, PRISMA_ENGINE_DATABASE_URL,
.prisma-engine.yaml or DATABASE_URL (also from .env and .env.local).`,
		Version:       fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.noColor {
				ui.DisableColor()
			}
			return opts.configureLogging("")
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flags.StringVar(&opts.logLevel, "log-level", "", "minimum log level (debug, info, warn, error)")
	flags.StringVar(&opts.url, "url", "", "datasource URL")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(newQueryCommand(opts))
	root.AddCommand(newTranslateCommand())
	root.AddCommand(newCapabilitiesCommand())
	root.AddCommand(newBenchCommand(opts))
	root.AddCommand(NewVersionCommand())
	return root
}

// Execute runs the CLI.
func Execute() error {
	root := NewRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		ui.PrintError(os.Stderr, "%v", err)
		return err
	}
	return nil
}

// configureLogging applies --debug, then --log-level, then the configured
// level.
func (o *globalOptions) configureLogging(configured string) error {
	switch {
	case o.debug:
		debug.Init(true)
	case o.logLevel != "":
		level, err := debug.ParseLevel(o.logLevel)
		if err != nil {
			return err
		}
		debug.InitWithLevel(os.Stderr, level)
	case configured != "":
		level, err := debug.ParseLevel(configured)
		if err != nil {
			return fmt.Errorf("invalid log.level in configuration: %w", err)
		}
		debug.InitWithLevel(os.Stderr, level)
	}
	return nil
}

// connect loads configuration and connects a client.
func (o *globalOptions) connect(ctx context.Context, extra ...client.Option) (*client.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := o.configureLogging(cfg.LogLevel); err != nil {
		return nil, err
	}
	if o.url != "" {
		cfg.DatabaseURL = o.url
	}
	debug.Debug("configuration loaded", "file", cfg.ConfigFile)

	opts := append([]client.Option{client.FromConfig(cfg)}, extra...)
	c := client.New(opts...)
	if err := c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return c, nil
}
