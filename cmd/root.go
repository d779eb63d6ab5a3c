// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"os"

	"github.com/naka-gawa/github-contributions/internal/config"
	"github.com/naka-gawa/github-contributions/internal/domain"
	"github.com/naka-gawa/github-contributions/internal/gateway"
	"github.com/naka-gawa/github-contributions/internal/ratelimit"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "github-contributions",
		Short: "A CLI tool to summarize a GitHub user's contributions.",
		Long: `github-contributions collects a user's commits, pull requests, issues and
reviews across every repository they can see within a date range, and writes
a summary report, optionally with an AI-written narrative.`,
		SilenceUsage: true,
	}

	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().String("config", "", "Path to a config file (default: ./config.yaml or ~/.github-contributions/config.yaml)")

	rootCmd.AddCommand(newReportCmd(), newWhoamiCmd())
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger logs to stderr; warnings only unless --verbose is set.
func newLogger(cmd *cobra.Command) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// newGateway wires the guard and the GitHub client sharing its quota.
func newGateway(cfg *config.Config, mode domain.RateLimitMode, logger logrus.FieldLogger) (*gateway.GitHubGateway, *ratelimit.Guard, error) {
	guard := ratelimit.NewGuard(ratelimit.Options{
		Mode:                  mode,
		MaxAttempts:           cfg.Retry.MaxAttempts,
		InitialBackoff:        cfg.Retry.InitialBackoff,
		MaxBackoff:            cfg.Retry.MaxBackoff,
		MaxWait:               cfg.RateLimit.MaxWait,
		MinRemaining:          cfg.RateLimit.MinRemaining,
		SecondaryLimitBackoff: cfg.RateLimit.SecondaryLimitBackoff,
		WindowDays:            cfg.RateLimit.WindowDays,
		WindowDelay:           cfg.RateLimit.WindowDelay,
		RequestInterval:       cfg.RateLimit.RequestInterval,
	}, nil, logger)

	gw, err := gateway.NewGitHubGateway(gateway.Options{
		Token:      cfg.GitHub.Token,
		APIURL:     cfg.GitHub.APIURL,
		GraphQLURL: cfg.GitHub.GraphQLURL,
		Timeout:    cfg.GitHub.RequestTimeout,
		MaxWait:    cfg.RateLimit.MaxWait,
	}, guard, logger)
	if err != nil {
		return nil, nil, err
	}
	return gw, guard, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
