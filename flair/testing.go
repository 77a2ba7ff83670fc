package flair

import (
	"log/slog"
	"time"

	"github.com/modkit/tradeflair/config"
	"github.com/modkit/tradeflair/flair/countstore"
	"github.com/modkit/tradeflair/flair/flagstore"
	"github.com/modkit/tradeflair/flair/ledger"
	"github.com/modkit/tradeflair/forum"
	"github.com/modkit/tradeflair/forum/mockforum"
)

// Fixed "current time" of the test fixture.
var FixtureNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// EngineTestFixture returns an engine over in-memory stores and a mock forum, with thresholds flair_check=3,
// age_check=30 days and karma_check=100.
func EngineTestFixture() (*Engine, *mockforum.Forum) {
	cfg := config.Default()
	cfg.Subreddit = "tradeswap"
	cfg.BotUsername = "flairbot"
	cfg.Threads.Current = "thread1"
	cfg.Trade.FlairCheck = 3
	cfg.Trade.AgeCheck = 30
	cfg.Trade.KarmaCheck = 100
	cfg.Trade.Reply = "Added"
	cfg.Storage.Ledger = "memory"

	mf := mockforum.New(cfg.BotUsername)
	eng := &Engine{
		Logger:   slog.Default(),
		Forum:    mf,
		Ledger:   ledger.NewMemStore(),
		Counters: countstore.NewMemCountStore(),
		Flags:    flagstore.NewMemFlagStore(),
		Config:   cfg,
		Now:      func() time.Time { return FixtureNow },
	}
	return eng, mf
}

// EligibleProfile is an account which passes the age and karma checks of the fixture.
func EligibleProfile(name string) forum.Profile {
	return forum.Profile{
		Name:         name,
		CreatedAt:    FixtureNow.AddDate(-2, 0, 0),
		LinkKarma:    500,
		CommentKarma: 500,
	}
}
