package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cvsearch/internal/config"
	logpkg "github.com/kailas-cloud/cvsearch/internal/logger"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	env        string
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "cvsearch",
		Short: "Hybrid search over candidate records",
		Long: `cvsearch stores candidate records (CV text plus structured metadata)
and answers searches that combine semantic vector similarity with
full-text matching and structured filters.

When embeddings are unavailable, automatic searches fall back to text search.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.env, "env", "e", "",
		"environment name, selects config/<env>.yaml (default $"+config.EnvVar+" or local)")
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"explicit config file path (overrides --env)")

	cmd.AddCommand(
		newServeCmd(opts),
		newMCPCmd(opts),
		newSearchCmd(opts),
		newSeedCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load resolves the environment, reads the config and builds the logger.
// Commands that own stdout pass logpkg.WithStderr().
func (o *globalOptions) load(logOpts ...logpkg.Option) (config.Config, string, *zap.Logger, error) {
	env := o.env
	if env == "" {
		env = config.GetEnv()
	}

	var (
		cfg config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return config.Config{}, "", nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level, logOpts...)
	if err != nil {
		return config.Config{}, "", nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, env, logger, nil
}
