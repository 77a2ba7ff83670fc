package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	"github.com/xlab/treeprint"
	_ "go.uber.org/automaxprocs"

	"github.com/modkit/tradeflair/flair"
	"github.com/modkit/tradeflair/flair/ledger"
	"github.com/modkit/tradeflair/util/svcutil"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "tradeflair",
		Usage:   "trade confirmation bot for forum trading communities",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to the YAML config file",
			Value:   "tradeflair.yml",
			EnvVars: []string{"TRADEFLAIR_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			Value:   "info",
			EnvVars: []string{"TRADEFLAIR_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format (json or text)",
			Value:   "json",
			EnvVars: []string{"TRADEFLAIR_LOG_FORMAT"},
		},
		&cli.StringFlag{
			Name:    "reddit-client-id",
			EnvVars: []string{"REDDIT_CLIENT_ID"},
		},
		&cli.StringFlag{
			Name:    "reddit-client-secret",
			EnvVars: []string{"REDDIT_CLIENT_SECRET"},
		},
		&cli.StringFlag{
			Name:    "reddit-username",
			EnvVars: []string{"REDDIT_USERNAME"},
		},
		&cli.StringFlag{
			Name:    "reddit-password",
			EnvVars: []string{"REDDIT_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for shared counters, flags and token cache",
			EnvVars: []string{"TRADEFLAIR_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database for the sql ledger and cooldown history",
			Value:   "sqlite://data/tradeflair/tradeflair.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-metadb-connections",
			EnvVars: []string{"MAX_METADB_CONNECTIONS"},
			Value:   20,
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			Usage:   "record database queries as trace spans",
			EnvVars: []string{"TRADEFLAIR_DB_TRACING"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook for reports and volume alerts",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
	}

	app.Commands = []*cli.Command{
		scanCmd,
		overridesCmd,
		runCmd,
		daemonCmd,
		revertCmd,
		ledgerCmd,
		cooldownCmd,
	}

	return app.Run(args)
}

// setup configures logging and tracing, and builds the server. The returned function must be called on exit.
func setup(cctx *cli.Context) (*Server, func(), error) {
	logger := svcutil.ConfigLogger(cctx, os.Stdout)
	shutdown, err := configOTEL("tradeflair")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	srv, err := NewServer(cctx, logger)
	if err != nil {
		shutdown()
		return nil, nil, err
	}
	return srv, shutdown, nil
}

func threadArgs(cctx *cli.Context) []string {
	if cctx.Args().Len() == 0 {
		return []string{"curr"}
	}
	return cctx.Args().Slice()
}

var scanCmd = &cli.Command{
	Name:      "scan",
	Usage:     "scan confirmation threads once",
	ArgsUsage: "[<thread>...] (thread id, or curr/prev; defaults to curr)",
	Action: func(cctx *cli.Context) error {
		srv, shutdown, err := setup(cctx)
		if err != nil {
			return err
		}
		defer shutdown()
		for _, name := range threadArgs(cctx) {
			threadID, err := srv.config.ResolveThread(name)
			if err != nil {
				return err
			}
			summary, err := srv.engine.ScanThread(cctx.Context, threadID)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d entries, %d unhandled, %d completed, %d pending\n", threadID,
				summary.Entries, summary.Unhandled, summary.Count(flair.OutcomeCompleted), summary.Count(flair.OutcomePending))
		}
		return nil
	},
}

var overridesCmd = &cli.Command{
	Name:  "overrides",
	Usage: "process moderator override messages once",
	Action: func(cctx *cli.Context) error {
		srv, shutdown, err := setup(cctx)
		if err != nil {
			return err
		}
		defer shutdown()
		summary, err := srv.engine.ProcessOverrides(cctx.Context)
		if err != nil {
			return err
		}
		for _, l := range summary.Lines {
			fmt.Printf("%s\t%s\t%s\n", l.MessageID, l.Status, l.Line)
		}
		return nil
	},
}

var runCmd = &cli.Command{
	Name:      "run",
	Usage:     "process overrides, then scan threads, once",
	ArgsUsage: "[<thread>...]",
	Action: func(cctx *cli.Context) error {
		srv, shutdown, err := setup(cctx)
		if err != nil {
			return err
		}
		defer shutdown()
		return srv.RunOnce(cctx.Context, threadArgs(cctx))
	},
}

var daemonCmd = &cli.Command{
	Name:      "daemon",
	Usage:     "run overrides, thread scans and cooldown checks periodically",
	ArgsUsage: "[<thread>...]",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:    "interval",
			Value:   5 * time.Minute,
			EnvVars: []string{"TRADEFLAIR_INTERVAL"},
		},
		&cli.IntFlag{
			Name:    "cooldown-limit",
			Usage:   "number of newest submissions checked per cycle",
			Value:   100,
			EnvVars: []string{"TRADEFLAIR_COOLDOWN_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3996",
			EnvVars: []string{"TRADEFLAIR_METRICS_LISTEN"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv, shutdown, err := setup(cctx)
		if err != nil {
			return err
		}
		defer shutdown()

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		return srv.RunDaemon(ctx, cctx.Duration("interval"), threadArgs(cctx), cctx.Int("cooldown-limit"))
	},
}

var revertCmd = &cli.Command{
	Name:      "revert",
	Usage:     "take one trade back off both participants of a confirmation",
	ArgsUsage: "<permalink>",
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() != 1 {
			return fmt.Errorf("expected a single permalink argument")
		}
		srv, shutdown, err := setup(cctx)
		if err != nil {
			return err
		}
		defer shutdown()
		res, err := srv.engine.RevertTrade(cctx.Context, cctx.Args().First())
		if err != nil {
			return err
		}
		for _, c := range res.Changes {
			fmt.Printf("%s: %s -> %s\n", c.User, c.Before, c.After)
		}
		return nil
	},
}

var ledgerCmd = &cli.Command{
	Name:      "ledger",
	Usage:     "print the completed and pending entries of a thread",
	ArgsUsage: "<thread>",
	Action: func(cctx *cli.Context) error {
		srv, shutdown, err := setup(cctx)
		if err != nil {
			return err
		}
		defer shutdown()
		threadID, err := srv.config.ResolveThread(cctx.Args().First())
		if err != nil {
			return err
		}
		book, err := ledger.Open(cctx.Context, srv.engine.Ledger, threadID)
		if err != nil {
			return err
		}
		fmt.Print(ledgerTree(threadID, book.Record()))
		return nil
	},
}

var cooldownCmd = &cli.Command{
	Name:  "cooldown",
	Usage: "enforce submission cooldowns on the newest submissions once",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Value: 100,
		},
	},
	Action: func(cctx *cli.Context) error {
		srv, shutdown, err := setup(cctx)
		if err != nil {
			return err
		}
		defer shutdown()
		summary, err := srv.RunCooldown(cctx.Context, cctx.Int("limit"))
		if err != nil {
			return err
		}
		fmt.Printf("checked %d submissions, %d violations\n", summary.Checked, summary.Violations)
		return nil
	},
}

func ledgerTree(threadID string, rec *ledger.Record) string {
	tree := treeprint.NewWithRoot(threadID)
	completed := tree.AddBranch(fmt.Sprintf("completed (%d)", len(rec.CompletedIDs())))
	for _, id := range rec.CompletedIDs() {
		completed.AddNode(id)
	}
	pending := tree.AddBranch(fmt.Sprintf("pending (%d)", len(rec.PendingIDs())))
	for _, id := range rec.PendingIDs() {
		pending.AddNode(id)
	}
	return tree.String()
}
