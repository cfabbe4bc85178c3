// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-digest/internal/analyze"
	"github.com/pdiddy/paper-digest/internal/blurb"
	"github.com/pdiddy/paper-digest/internal/collect"
	"github.com/pdiddy/paper-digest/internal/deliver"
	"github.com/pdiddy/paper-digest/internal/extract"
	"github.com/pdiddy/paper-digest/internal/llm"
	"github.com/pdiddy/paper-digest/internal/logger"
	"github.com/pdiddy/paper-digest/internal/pipeline"
	"github.com/pdiddy/paper-digest/internal/rank"
	"github.com/pdiddy/paper-digest/internal/secrets"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// stageSetup labels failures that happen before the pipeline starts.
const stageSetup = "Setup"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one daily digest",
	Long: `Run collects the target day's papers, ranks them, summarizes the top
tier, blurbs the next tier and delivers exactly one email: the digest, a
quiet-day notice when nothing was published, or a failure notice.

With --dry-run (or DRY_RUN=true) every stage runs but the email is written
to the preview directory instead of being sent.`,
	RunE: runDigest,
}

func init() {
	addRunFlags(runCmd.Flags())
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(fs *pflag.FlagSet) {
	fs.Bool("dry-run", false, "write the email to the preview directory instead of sending it")
	fs.String("date", "", "target submission date (YYYY-MM-DD, default: previous business day)")
	fs.StringSlice("category", nil, "arXiv categories to collect (repeatable, default from config)")
	fs.String("source", "", "metadata source: api or rss")
	fs.String("provider", "", "language model provider: claude or gemini")
	fs.String("model", "", "language model identifier")
	fs.String("preview-dir", "", "directory for dry-run previews")
	fs.String("secrets-dir", ".secrets/", "directory of secret files")
	fs.String("stats-out", "", "write run statistics as YAML to this file")
}

func runDigest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		return err
	}

	log := logger.New(cfg.LogLevel)
	secretsDir, _ := cmd.Flags().GetString("secrets-dir")
	loaded, err := secrets.Load(secretsDir, log)
	if err != nil {
		return err
	}
	secrets.Apply(&cfg, loaded)

	profile, err := types.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	composer := deliver.NewComposer(digestName(profile, cfg), cfg.Collect.Categories)
	delivery, err := newDelivery(cfg, composer, log)
	if err != nil {
		return err
	}

	var date time.Time
	if s, _ := cmd.Flags().GetString("date"); s != "" {
		if date, err = time.Parse("2006-01-02", s); err != nil {
			return fmt.Errorf("invalid --date %q: %w", s, err)
		}
	}

	p, err := newPipeline(ctx, cfg, profile, date, delivery, log)
	if err != nil {
		return notifySetupFailure(ctx, delivery, date, err, log)
	}

	outcome, err := p.Run(ctx)
	if path, _ := cmd.Flags().GetString("stats-out"); path != "" {
		if werr := writeStats(path, outcome.Stats); werr != nil {
			log.Errorf("writing stats: %v", werr)
		}
	}
	if err != nil {
		return err
	}
	if outcome.Failed() {
		return fmt.Errorf("run failed at %s: %s", outcome.Failure.Stage, outcome.Failure.Class)
	}
	return nil
}

// applyFlags overlays command-line flags and the DRY_RUN variable on cfg.
func applyFlags(cmd *cobra.Command, cfg *types.DigestConfig) error {
	flags := cmd.Flags()
	if dry, _ := flags.GetBool("dry-run"); dry {
		cfg.DryRun = true
	}
	if v := os.Getenv("DRY_RUN"); v != "" {
		dry, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DRY_RUN %q: %w", v, err)
		}
		cfg.DryRun = cfg.DryRun || dry
	}
	if cats, _ := flags.GetStringSlice("category"); len(cats) > 0 {
		cfg.Collect.Categories = cats
	}
	if s, _ := flags.GetString("source"); s != "" {
		cfg.Collect.Source = types.SourceKind(s)
	}
	if s, _ := flags.GetString("provider"); s != "" {
		cfg.AI.Provider = types.Provider(s)
	}
	if s, _ := flags.GetString("model"); s != "" {
		cfg.AI.Model = s
	}
	if s, _ := flags.GetString("preview-dir"); s != "" {
		cfg.Delivery.PreviewDir = s
	}
	return nil
}

func digestName(profile types.Profile, cfg types.DigestConfig) string {
	if profile.Name != "" {
		return profile.Name
	}
	return cfg.Delivery.FromName
}

// newDelivery returns the preview writer on dry runs and the SMTP mailer
// otherwise.
func newDelivery(cfg types.DigestConfig, composer *deliver.Composer, log logger.Logger) (pipeline.Delivery, error) {
	if cfg.DryRun {
		return &deliver.Inspector{Composer: composer, Dir: cfg.Delivery.PreviewDir, Log: log}, nil
	}
	subs, err := types.LoadSubscribers(cfg.Delivery.SubscribersPath)
	if err != nil {
		return nil, err
	}
	sender, err := deliver.NewSMTPSender(cfg.Delivery, log)
	if err != nil {
		return nil, err
	}
	return &deliver.Mailer{Composer: composer, Sender: sender, Subscribers: subs, Log: log}, nil
}

func newPipeline(ctx context.Context, cfg types.DigestConfig, profile types.Profile, date time.Time, d pipeline.Delivery, log logger.Logger) (*pipeline.Pipeline, error) {
	collector, err := collect.New(cfg.Collect, log)
	if err != nil {
		return nil, err
	}
	client, err := llm.New(ctx, cfg.AI)
	if err != nil {
		return nil, err
	}
	return &pipeline.Pipeline{
		Collector:  collector,
		Ranker:     rank.New(client, profile, cfg.Rank, log),
		Analyzer:   analyze.New(client, extract.New(cfg.Extract, log), profile, cfg.Analyze, log),
		Blurbs:     blurb.New(client, profile, cfg.Analyze, log),
		Delivery:   d,
		Categories: cfg.Collect.Categories,
		Date:       date,
		DryRun:     cfg.DryRun,
		Log:        log,
	}, nil
}

// notifySetupFailure sends a failure notice for an error raised before the
// pipeline could start, so that a misconfigured run still produces mail.
func notifySetupFailure(ctx context.Context, d pipeline.Delivery, date time.Time, cause error, log logger.Logger) error {
	now := time.Now()
	day := now.Format("2006-01-02")
	if !date.IsZero() {
		day = date.Format("2006-01-02")
	}
	o := types.PipelineOutcome{
		Kind: types.OutcomeFailure,
		Date: day,
		Failure: &types.FailureRecord{
			Stage:      stageSetup,
			Class:      types.Classify(cause),
			Diagnostic: llm.Excerpt(cause.Error(), 2000),
			Timestamp:  now,
		},
		Stats: types.RunStats{TargetDate: day, StartedAt: now, FinishedAt: now},
	}
	if err := d.Notify(ctx, o); err != nil {
		log.Errorf("sending setup failure notice: %v", err)
	}
	return cause
}

func writeStats(path string, stats types.RunStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
