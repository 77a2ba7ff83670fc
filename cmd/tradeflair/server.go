package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/modkit/tradeflair/config"
	"github.com/modkit/tradeflair/cooldown"
	"github.com/modkit/tradeflair/flair"
	"github.com/modkit/tradeflair/flair/cachestore"
	"github.com/modkit/tradeflair/flair/countstore"
	"github.com/modkit/tradeflair/flair/flagstore"
	"github.com/modkit/tradeflair/flair/ledger"
	"github.com/modkit/tradeflair/forum/reddit"
	"github.com/modkit/tradeflair/util"
	"github.com/modkit/tradeflair/util/cliutil"
)

type Server struct {
	logger   *slog.Logger
	config   *config.Config
	engine   *flair.Engine
	cooldown *cooldown.Checker
}

// NewServer wires stores, the forum client and notifier from the config file and command line.
func NewServer(cctx *cli.Context, logger *slog.Logger) (*Server, error) {
	cfg, err := config.FromFile(config.Locate(cctx.String("config"), cctx.IsSet("config")))
	if err != nil {
		return nil, err
	}
	applyFlags(cctx, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var db *gorm.DB
	getDB := func() (*gorm.DB, error) {
		if db != nil {
			return db, nil
		}
		var err error
		db, err = cliutil.SetupDatabase(cfg.Storage.DatabaseURL, cctx.Int("max-metadb-connections"), cctx.Bool("db-tracing"))
		return db, err
	}

	var ledgerStore ledger.Store
	switch cfg.Storage.Ledger {
	case "memory":
		ledgerStore = ledger.NewMemStore()
	case "file":
		ledgerStore, err = ledger.NewFileStore(cfg.Storage.LedgerDir)
	case "redis":
		ledgerStore, err = ledger.NewRedisStore(cfg.Storage.RedisURL)
	case "sql":
		var gdb *gorm.DB
		if gdb, err = getDB(); err == nil {
			ledgerStore, err = ledger.NewSQLStore(gdb)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s ledger: %w", cfg.Storage.Ledger, err)
	}

	var counters countstore.CountStore
	var flags flagstore.FlagStore
	var tokens cachestore.CacheStore
	if cfg.Storage.RedisURL != "" {
		cs, err := countstore.NewRedisCountStore(cfg.Storage.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis countstore: %v", err)
		}
		counters = cs

		fs, err := flagstore.NewRedisFlagStore(cfg.Storage.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis flagstore: %v", err)
		}
		flags = fs

		ts, err := cachestore.NewRedisCacheStore(cfg.Storage.RedisURL, 24*time.Hour)
		if err != nil {
			return nil, fmt.Errorf("initializing redis cachestore: %v", err)
		}
		tokens = ts
	} else {
		counters = countstore.NewMemCountStore()
		flags = flagstore.NewMemFlagStore()
		tokens = cachestore.NewMemCacheStore(16, 24*time.Hour)
	}

	client := reddit.NewClient(cfg.Reddit, cfg.Subreddit, logger, tokens)
	if cfg.BotUsername == "" {
		cfg.BotUsername = cfg.Reddit.Username
	}

	var notifier flair.Notifier
	if cfg.SlackWebhookURL != "" {
		notifier = &flair.SlackNotifier{
			SlackWebhookURL: cfg.SlackWebhookURL,
			Client:          util.RobustHTTPClient(logger),
		}
	}

	eng := &flair.Engine{
		Logger:   logger,
		Forum:    client,
		Ledger:   ledgerStore,
		Counters: counters,
		Flags:    flags,
		Notifier: notifier,
		Config:   cfg,
	}

	srv := &Server{
		logger: logger,
		config: cfg,
		engine: eng,
	}

	if len(cfg.Cooldown.Groups) > 0 {
		gdb, err := getDB()
		if err != nil {
			return nil, err
		}
		store, err := cooldown.NewSQLStore(gdb)
		if err != nil {
			return nil, fmt.Errorf("initializing cooldown store: %w", err)
		}
		checker, err := cooldown.NewChecker(logger.With("system", "cooldown"), store, client, cfg.Cooldown)
		if err != nil {
			return nil, err
		}
		checker.RulesLink = fmt.Sprintf("[rules](https://www.reddit.com%s%s)", cfg.SubredditPath(), cfg.RulesPath)
		checker.ModmailLink = flair.ModmailLink("modmail", cfg.SubredditPath(), "", "")
		srv.cooldown = checker
	}

	return srv, nil
}

// command line values take precedence over the config file
func applyFlags(cctx *cli.Context, cfg *config.Config) {
	set := func(dst *string, flag string) {
		if v := cctx.String(flag); v != "" {
			*dst = v
		}
	}
	set(&cfg.Reddit.ClientID, "reddit-client-id")
	set(&cfg.Reddit.ClientSecret, "reddit-client-secret")
	set(&cfg.Reddit.Username, "reddit-username")
	set(&cfg.Reddit.Password, "reddit-password")
	set(&cfg.Storage.RedisURL, "redis-url")
	set(&cfg.SlackWebhookURL, "slack-webhook-url")
	if cctx.IsSet("database-url") || cfg.Storage.DatabaseURL == "" {
		cfg.Storage.DatabaseURL = cctx.String("database-url")
	}
}

// RunOnce processes moderator overrides, then scans the given threads.
func (s *Server) RunOnce(ctx context.Context, threads []string) error {
	if _, err := s.engine.ProcessOverrides(ctx); err != nil {
		return fmt.Errorf("processing overrides: %w", err)
	}
	for _, name := range threads {
		threadID, err := s.config.ResolveThread(name)
		if err != nil {
			return err
		}
		if _, err := s.engine.ScanThread(ctx, threadID); err != nil {
			return fmt.Errorf("scanning thread %s: %w", threadID, err)
		}
	}
	return nil
}

func (s *Server) RunCooldown(ctx context.Context, limit int) (*cooldown.RunSummary, error) {
	if s.cooldown == nil {
		return nil, fmt.Errorf("no cooldown groups configured")
	}
	summary, err := s.cooldown.Run(ctx, limit)
	if summary != nil {
		cooldownViolations.Add(float64(summary.Violations))
	}
	return summary, err
}

// RunDaemon repeats the work cycle at the given interval until the context is cancelled. Failed cycles are
// logged and retried on the next tick.
func (s *Server) RunDaemon(ctx context.Context, interval time.Duration, threads []string, cooldownLimit int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s.cycle(ctx, threads, cooldownLimit)
		select {
		case <-ctx.Done():
			s.logger.Info("daemon shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Server) cycle(ctx context.Context, threads []string, cooldownLimit int) {
	start := time.Now()
	if err := s.RunOnce(ctx, threads); err != nil {
		daemonCycles.WithLabelValues("error").Inc()
		s.logger.Error("work cycle failed", "err", err)
		return
	}
	if s.cooldown != nil {
		if _, err := s.RunCooldown(ctx, cooldownLimit); err != nil {
			daemonCycles.WithLabelValues("error").Inc()
			s.logger.Error("cooldown run failed", "err", err)
			return
		}
	}
	daemonCycles.WithLabelValues("ok").Inc()
	s.logger.Info("work cycle complete", "duration", time.Since(start))
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}
