package main

import (
	"context"
	"flag"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	cli "github.com/urfave/cli/v2"

	"github.com/modkit/tradeflair/config"
	"github.com/modkit/tradeflair/flair"
	"github.com/modkit/tradeflair/flair/ledger"
	"github.com/modkit/tradeflair/forum"
)

func TestApplyFlags(t *testing.T) {
	assert := assert.New(t)

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("reddit-username", "", "")
	set.String("reddit-password", "", "")
	set.String("reddit-client-id", "", "")
	set.String("reddit-client-secret", "", "")
	set.String("redis-url", "", "")
	set.String("slack-webhook-url", "", "")
	set.String("database-url", "sqlite://data/tradeflair/tradeflair.db", "")
	assert.NoError(set.Parse([]string{"-reddit-username", "flairbot", "-redis-url", "redis://localhost:6379/0"}))
	cctx := cli.NewContext(cli.NewApp(), set, nil)

	cfg := config.Default()
	cfg.Reddit.Password = "from-file"
	cfg.Storage.DatabaseURL = "postgres://db/tradeflair"
	applyFlags(cctx, cfg)

	assert.Equal("flairbot", cfg.Reddit.Username)
	assert.Equal("from-file", cfg.Reddit.Password)
	assert.Equal("redis://localhost:6379/0", cfg.Storage.RedisURL)
	// config file wins over the flag default
	assert.Equal("postgres://db/tradeflair", cfg.Storage.DatabaseURL)

	cfg.Storage.DatabaseURL = ""
	applyFlags(cctx, cfg)
	assert.Equal("sqlite://data/tradeflair/tradeflair.db", cfg.Storage.DatabaseURL)
}

func TestRunOnce(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, mf := flair.EngineTestFixture()
	mf.AddThread(forum.Thread{ID: "thread1"})
	srv := &Server{logger: slog.Default(), config: eng.Config, engine: eng}

	assert.NoError(srv.RunOnce(ctx, []string{"curr"}))
	assert.ErrorIs(srv.RunOnce(ctx, []string{"prev"}), config.ErrUnknownThread)

	_, err := srv.RunCooldown(ctx, 10)
	assert.Error(err)
}

func TestLedgerTree(t *testing.T) {
	assert := assert.New(t)

	rec := ledger.NewRecord("thrd01")
	rec.Completed["b000002"] = true
	rec.Completed["a000001"] = true
	rec.Pending["c000003"] = true

	out := ledgerTree("thrd01", rec)
	assert.Contains(out, "thrd01")
	assert.Contains(out, "completed (2)")
	assert.Contains(out, "pending (1)")
	assert.Less(strings.Index(out, "a000001"), strings.Index(out, "b000002"))
	assert.Less(strings.Index(out, "b000002"), strings.Index(out, "c000003"))
}
