// Package cli builds the querykit command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nimburion/querykit/pkg/config"
	"github.com/nimburion/querykit/pkg/observability/logger"
	"github.com/nimburion/querykit/pkg/store"
	"github.com/nimburion/querykit/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// StoreOpener opens the backend for find and count. Tests substitute it.
type StoreOpener func(ctx context.Context, cfg *config.Config, log logger.Logger) (store.Backend, error)

// Options configures the root command.
type Options struct {
	Name       string
	ConfigPath string
	EnvPrefix  string
	Out        io.Writer
	Err        io.Writer
	// OpenStore defaults to OpenStore.
	OpenStore StoreOpener
}

type runtime struct {
	opts      Options
	cfgPath   string
	envPrefix string
	logLevel  string
	logFormat string
}

// Cosa fa: costruisce la CLI con normalize, compose, find, count, health e version.
// Cosa NON fa: non scrive mai sullo store, tranne il seed in memoria.
// Esempio minimo: cli.Execute(cli.NewRootCommand(cli.Options{Name: "querykit"}))
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Name == "" {
		opts.Name = "querykit"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = config.DefaultEnvPrefix
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.OpenStore == nil {
		opts.OpenStore = OpenStore
	}
	rt := &runtime{opts: opts}

	rootCmd := &cobra.Command{
		Use:           opts.Name,
		Short:         "Normalize, compose and run document query specs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(opts.Out)
	rootCmd.SetErr(opts.Err)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&rt.cfgPath, "config", "c", opts.ConfigPath, "config file path")
	flags.StringVar(&rt.envPrefix, "env-prefix", opts.EnvPrefix, "environment variable prefix")
	flags.StringVar(&rt.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&rt.logFormat, "log-format", "json", "log format (json, text)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Current(opts.Name)
			fmt.Fprintf(cmd.OutOrStdout(), "Service:    %s\n", info.Service)
			fmt.Fprintf(cmd.OutOrStdout(), "Version:    %s\n", info.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit:     %s\n", info.Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Build Time: %s\n", info.BuildTime)
			fmt.Fprintf(cmd.OutOrStdout(), "Go:         %s\n", info.GoVersion)
		},
	})

	rootCmd.AddCommand(
		newNormalizeCommand(rt),
		newComposeCommand(rt),
		newFindCommand(rt),
		newCountCommand(rt),
		newHealthCommand(rt),
	)
	return rootCmd
}

// load resolves configuration and builds the logger. Logs go to the error
// stream so command output stays machine readable.
func (rt *runtime) load(flags *pflag.FlagSet) (*config.Config, logger.Logger, error) {
	loader := config.NewViperLoader(rt.cfgPath, rt.envPrefix).
		BindFlag("log.level", flags.Lookup("log-level")).
		BindFlag("log.format", flags.Lookup("log-format"))
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewZapLogger(logger.Config{
		Level:  logger.LogLevel(cfg.Log.Level),
		Format: logger.LogFormat(cfg.Log.Format),
		Output: rt.opts.Err,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	if strings.EqualFold(cfg.Log.Level, string(logger.DebugLevel)) {
		log.Debug("effective configuration",
			"store_type", cfg.Store.Type,
			"mongodb_database", cfg.MongoDB.Database,
			"query_default_limit", cfg.Query.DefaultLimit,
			"query_max_limit", cfg.Query.MaxLimit,
			"tracing_enabled", cfg.Tracing.Enabled,
		)
	}
	return cfg, log, nil
}

// Execute runs the command and exits with appropriate code.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
