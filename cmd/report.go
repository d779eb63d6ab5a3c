package cmd

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/naka-gawa/github-contributions/internal/config"
	"github.com/naka-gawa/github-contributions/internal/domain"
	"github.com/naka-gawa/github-contributions/internal/render"
	"github.com/naka-gawa/github-contributions/internal/strategy"
	"github.com/naka-gawa/github-contributions/internal/summary"
	"github.com/naka-gawa/github-contributions/internal/usecase"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type reportOptions struct {
	startDate      string
	endDate        string
	username       string
	token          string
	includePrivate bool
	reposOnly      bool
	skipReviews    bool
	fast           bool
	graphql        bool
	bulk           bool
	conservative   bool
	noOptimize     bool
	limit          int
	output         string
	format         string
	printOnly      bool

	aiSummary     bool
	bedrock       bool
	aiProvider    string
	aiModel       string
	bedrockModel  string
	aiRegion      string
	bedrockRegion string

	maxCommits int
	maxPRs     int
	maxIssues  int
	maxReviews int
}

func newReportCmd() *cobra.Command {
	return newReportCmdFor(&reportOptions{})
}

func newReportCmdFor(o *reportOptions) *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Summarizes a user's contributions within a date range",
		Long: `Collects commits, pull requests, issues and reviews authored by a GitHub user
across every accessible repository between two dates, and writes a Markdown,
plain text, JSON, YAML or HTML report.`,
		Example: `  github-contributions report -s 2024-01-01 -e 2024-01-31
  github-contributions report -s "Jan 1 2024" -e "Jan 31 2024" --bulk --ai-summary
  github-contributions report -s 2024-01-01 -e 2024-03-31 --conservative --repos-only`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, o)
		},
	}

	f := reportCmd.Flags()
	f.StringVarP(&o.startDate, "start-date", "s", "", "Start date, inclusive (YYYY-MM-DD or any common format)")
	f.StringVarP(&o.endDate, "end-date", "e", "", "End date, inclusive")
	f.StringVarP(&o.username, "username", "u", "", "GitHub user to track (default: the token owner)")
	f.StringVarP(&o.token, "token", "t", "", "GitHub token (default: GITHUB_TOKEN)")
	f.BoolVarP(&o.includePrivate, "include-private", "p", false, "Include private repositories")
	f.BoolVar(&o.reposOnly, "repos-only", false, "Only list repositories with contributions")
	f.BoolVar(&o.skipReviews, "skip-reviews", false, "Do not fetch reviews")
	f.BoolVar(&o.fast, "fast", false, "Use smaller per-repository limits and skip reviews")
	f.BoolVar(&o.graphql, "graphql", false, "Fetch several repositories per GraphQL query")
	f.BoolVar(&o.bulk, "bulk", false, "Use user-wide search instead of per-repository listing")
	f.BoolVar(&o.conservative, "conservative", false, "Pace requests and split the range into weekly windows")
	f.BoolVar(&o.noOptimize, "no-optimize", false, "Enumerate every repository instead of pre-filtering with search")
	f.IntVarP(&o.limit, "limit", "l", 0, "Process at most this many repositories (0 means all)")
	f.StringVarP(&o.output, "output", "o", "", "Output file (default: github_contributions_<timestamp>.<ext>)")
	f.StringVarP(&o.format, "format", "f", "markdown", "Output format: markdown, plain, json, yaml or html")
	f.BoolVar(&o.printOnly, "print-only", false, "Print the report without saving it")

	f.BoolVar(&o.aiSummary, "ai-summary", false, "Add an AI-written narrative")
	f.BoolVar(&o.bedrock, "bedrock", false, "Alias for --ai-summary")
	f.StringVar(&o.aiProvider, "ai-provider", "", "AI provider: bedrock, openai or gemini")
	f.StringVar(&o.aiModel, "ai-model", "", "AI model id")
	f.StringVar(&o.bedrockModel, "bedrock-model", "", "Alias for --ai-model")
	f.StringVar(&o.aiRegion, "ai-region", "", "AWS region for Bedrock")
	f.StringVar(&o.bedrockRegion, "bedrock-region", "", "Alias for --ai-region")

	f.IntVar(&o.maxCommits, "max-commits", 0, "Maximum commits per repository")
	f.IntVar(&o.maxPRs, "max-prs", 0, "Maximum pull requests per repository")
	f.IntVar(&o.maxIssues, "max-issues", 0, "Maximum issues per repository")
	f.IntVar(&o.maxReviews, "max-reviews", 0, "Maximum reviews per repository")

	reportCmd.MarkFlagRequired("start-date")
	reportCmd.MarkFlagRequired("end-date")
	reportCmd.MarkFlagsMutuallyExclusive("graphql", "bulk")
	return reportCmd
}

func runReport(cmd *cobra.Command, o *reportOptions) error {
	ctx := commandContext(cmd)
	logger := newLogger(cmd)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	o.applyTo(cfg)

	dateRange, err := domain.ParseDateRange(o.startDate, o.endDate)
	if err != nil {
		return err
	}
	kind, err := domain.ParseStrategy(o.graphql, o.bulk)
	if err != nil {
		return err
	}
	format, err := render.ParseFormat(o.format)
	if err != nil {
		return err
	}
	mode := domain.RateLimitDefault
	if o.conservative {
		mode = domain.RateLimitConservative
	}

	gw, guard, err := newGateway(cfg, mode, logger)
	if err != nil {
		return err
	}
	identity, err := gw.ResolveIdentity(ctx, o.username)
	if err != nil {
		return err
	}

	fc := domain.FetchContext{
		Range:           dateRange,
		Identity:        identity,
		IncludePrivate:  o.includePrivate,
		Strategy:        kind,
		Caps:            o.caps(cfg, cmd.Flags()),
		RateLimitMode:   mode,
		Optimize:        !o.noOptimize,
		RepositoryLimit: o.limit,
	}

	fetcher, err := strategy.New(kind, gw, guard, logger, strategy.Options{
		MaxPages:   cfg.Search.MaxPages,
		BatchDelay: cfg.RateLimit.BatchDelay,
	})
	if err != nil {
		return err
	}
	report, err := usecase.NewAggregator(fetcher, guard, logger).Aggregate(ctx, fc)
	if err != nil {
		return err
	}

	if (o.aiSummary || o.bedrock) && !o.reposOnly {
		settings := summary.Settings{
			Provider:  summary.Provider(cfg.Summary.Provider),
			Model:     cfg.Summary.Model,
			Region:    cfg.Summary.Region,
			MaxTokens: cfg.Summary.MaxTokens,
			OpenAIKey: cfg.Summary.OpenAIKey,
			GeminiKey: cfg.Summary.GeminiKey,
		}
		backend, err := summary.NewBackend(ctx, settings)
		if err != nil {
			logger.WithError(err).Warn("AI summary backend unavailable")
			summary.MarkUnavailable(report, err)
		} else {
			summary.NewSummarizer(backend, cfg.Summary.MaxPromptBytes, logger).Enrich(ctx, report)
		}
	}

	var buf bytes.Buffer
	if err := render.Render(&buf, report, render.Options{Format: format, ReposOnly: o.reposOnly}); err != nil {
		return err
	}

	if !o.printOnly {
		path := o.output
		if path == "" {
			path = render.DefaultFilename(format, time.Now())
		}
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Summary saved to: %s\n", path)
	}
	if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
		return err
	}

	for _, w := range report.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	return nil
}

// applyTo lets flags override file and environment settings.
func (o *reportOptions) applyTo(cfg *config.Config) {
	if o.token != "" {
		cfg.GitHub.Token = o.token
	}
	if o.aiProvider != "" {
		cfg.Summary.Provider = o.aiProvider
	}
	if model := firstNonEmpty(o.aiModel, o.bedrockModel); model != "" {
		cfg.Summary.Model = model
	}
	if region := firstNonEmpty(o.aiRegion, o.bedrockRegion); region != "" {
		cfg.Summary.Region = region
	}
}

// caps starts from the configured or fast-mode limits and applies explicit
// per-kind overrides. Fast mode and --skip-reviews always disable reviews.
func (o *reportOptions) caps(cfg *config.Config, flags *pflag.FlagSet) domain.Caps {
	caps := cfg.Caps
	if o.fast {
		caps = domain.FastCaps
	}
	if flags.Changed("max-commits") {
		caps.Commits = o.maxCommits
	}
	if flags.Changed("max-prs") {
		caps.PullRequests = o.maxPRs
	}
	if flags.Changed("max-issues") {
		caps.Issues = o.maxIssues
	}
	if flags.Changed("max-reviews") {
		caps.Reviews = o.maxReviews
	}
	if o.skipReviews || o.fast {
		caps.Reviews = 0
	}
	return caps
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
