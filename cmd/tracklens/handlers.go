package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elonfeng/tracklens/internal/config"
	"github.com/elonfeng/tracklens/internal/scheduler"
	"github.com/elonfeng/tracklens/internal/store"
	"github.com/elonfeng/tracklens/pkg/alert"
	"github.com/elonfeng/tracklens/pkg/llm"
	"github.com/elonfeng/tracklens/pkg/pipeline"
	"github.com/elonfeng/tracklens/pkg/server"
	"github.com/elonfeng/tracklens/pkg/source"
	"github.com/elonfeng/tracklens/pkg/tracker"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = level
	return zcfg.Build()
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Database.Driver == "postgres" {
		return store.NewPostgres(ctx, cfg.Database.DSN)
	}
	return store.New(cfg.Database.Path)
}

func buildCompleter(cfg *config.Config) llm.Completer {
	if !cfg.LLM.Enabled || cfg.LLM.APIKey == "" {
		return nil
	}
	return llm.New(cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.APIKey, cfg.LLM.BaseURL)
}

func buildAdapters(cfg *config.Config) []source.Adapter {
	var adapters []source.Adapter

	if cfg.Sources.Web.Enabled && cfg.Sources.Web.BaseURL != "" {
		adapters = append(adapters, source.NewWeb(cfg.Sources.Web.BaseURL, cfg.Sources.Web.APIKey))
	}
	if cfg.Sources.Neural.Enabled && cfg.Sources.Neural.BaseURL != "" {
		adapters = append(adapters, source.NewNeural(cfg.Sources.Neural.BaseURL, cfg.Sources.Neural.APIKey))
	}
	if cfg.Sources.Feed.Enabled && len(cfg.Sources.Feed.Feeds) > 0 {
		feeds := make([]source.FeedSpec, len(cfg.Sources.Feed.Feeds))
		for i, f := range cfg.Sources.Feed.Feeds {
			feeds[i] = source.FeedSpec{Name: f.Name, URL: f.URL}
		}
		adapters = append(adapters, source.NewFeeds(feeds, cfg.Sources.Feed.ParseMaxAge()))
	}
	if cfg.Sources.Page.Enabled && len(cfg.Sources.Page.Pages) > 0 {
		pages := make([]source.PageSpec, len(cfg.Sources.Page.Pages))
		for i, p := range cfg.Sources.Page.Pages {
			pages[i] = source.PageSpec{
				Name:         p.Name,
				URL:          p.URL,
				ItemSelector: p.ItemSelector,
				Title:        p.Title,
				Link:         p.Link,
				Blurb:        p.Blurb,
				Image:        p.Image,
			}
		}
		adapters = append(adapters, source.NewPages(pages))
	}

	return adapters
}

func buildRunner(cfg *config.Config, db store.Store, logger *zap.Logger) *pipeline.Runner {
	completer := buildCompleter(cfg)
	enricher := pipeline.NewEnricher(completer, cfg.Pipeline.BatchSize, logger)
	ranker := pipeline.NewRanker(cfg.Pipeline.TrustedSources)
	return pipeline.NewRunner(db, buildAdapters(cfg), enricher, ranker, cfg.Pipeline.PerQueryLimit, logger)
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func runCreate(args []string, owner string, public bool, schedule string, runNow bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	db, err := openStore(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	prompt := strings.TrimSpace(strings.Join(args, " "))
	ctx := context.Background()

	planner := tracker.NewPlanner(buildCompleter(cfg), logger)
	trackerCfg, err := planner.Plan(ctx, prompt)
	if err != nil {
		return fmt.Errorf("plan tracker: %w", err)
	}

	tr := &store.Tracker{
		ID:        uuid.NewString(),
		Owner:     owner,
		Prompt:    prompt,
		Config:    trackerCfg,
		Public:    public,
		Schedule:  schedule,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.CreateTracker(ctx, tr); err != nil {
		return fmt.Errorf("create tracker: %w", err)
	}

	fmt.Printf("created tracker %s\n  %s\n", tr.ID, tracker.Describe(trackerCfg))

	if runNow {
		return executeRun(ctx, cfg, db, logger, tr)
	}
	return nil
}

func runList(jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openStore(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	trackers, err := db.ListTrackers(context.Background(), store.ListTrackersOpts{Limit: 100})
	if err != nil {
		return fmt.Errorf("list trackers: %w", err)
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(trackers)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROMPT\tSCHEDULE\tLAST RUN")
	for _, tr := range trackers {
		lastRun := "never"
		if !tr.LastRunAt.IsZero() {
			lastRun = tr.LastRunAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", tr.ID, truncate(tr.Prompt, 50), tr.Schedule, lastRun)
	}
	return w.Flush()
}

func runTracker(id string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	db, err := openStore(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	tr, err := db.GetTracker(ctx, id)
	if err != nil {
		return err
	}

	return executeRun(ctx, cfg, db, logger, tr)
}

func executeRun(ctx context.Context, cfg *config.Config, db store.Store, logger *zap.Logger, tr *store.Tracker) error {
	runner := buildRunner(cfg, db, logger)

	run, results, err := runner.Run(ctx, tr)
	if err != nil {
		return fmt.Errorf("run tracker %s: %w", tr.ID, err)
	}

	fmt.Printf("run %s %s: %d result(s)\n", run.ID, run.Status, len(results))
	for i, res := range results {
		if i >= 10 {
			fmt.Printf("  ... and %d more\n", len(results)-i)
			break
		}
		fmt.Printf("  %4.1f  %s\n        %s\n", res.Score, res.Title, res.URL)
	}
	return nil
}

func runResults(id string, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openStore(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	run, err := db.LatestCompletedRun(ctx, id)
	if err != nil {
		return fmt.Errorf("no completed run for tracker %s", id)
	}

	results, err := db.ListResults(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("list results: %w", err)
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(results)
	}

	fmt.Printf("latest run %s (%s), %d result(s)\n", run.ID, run.FinishedAt.Format(time.RFC3339), len(results))
	for _, res := range results {
		fmt.Printf("  %4.1f  %s\n", res.Score, res.Title)
		if res.Summary != "" {
			fmt.Printf("        %s\n", truncate(res.Summary, 120))
		}
		fmt.Printf("        %s  [%s]\n", res.URL, strings.Join(res.Sources, ","))
	}
	return nil
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	db, err := openStore(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	planner := tracker.NewPlanner(buildCompleter(cfg), logger)
	runner := buildRunner(cfg, db, logger)

	srv := server.New(db, planner, runner, port, logger)
	return srv.ListenAndServe()
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	db, err := openStore(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	planner := tracker.NewPlanner(buildCompleter(cfg), logger)
	runner := buildRunner(cfg, db, logger)
	alertMgr := buildAlertManager(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(db, runner, alertMgr,
		cfg.Schedule.ParseCheckInterval(),
		cfg.Alerts.MinResults,
		logger,
	)

	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("scheduler error", zap.Error(err))
		}
	}()

	srv := server.New(db, planner, runner, port, logger)
	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nshutting down...")
	}()

	return srv.ListenAndServe()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
