package flair

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/modkit/tradeflair/flair/badge"
	"github.com/modkit/tradeflair/forum"
)

// State which lives for exactly one scan (or one batch of overrides).
//
// Trade counts, profiles and the moderator list are cached here, never on the Engine, so that nothing read
// during one scan leaks into the next.
type ScanContext struct {
	ID     string
	Logger *slog.Logger

	credits  map[string]badge.Credit
	profiles map[string]*forum.Profile
	// nil until first fetched
	mods []string
}

func (eng *Engine) NewScanContext(kind string, attrs ...any) *ScanContext {
	id := uuid.NewString()
	logger := eng.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanContext{
		ID:       id,
		Logger:   logger.With(append([]any{"kind", kind, "scan", id}, attrs...)...),
		credits:  make(map[string]badge.Credit),
		profiles: make(map[string]*forum.Profile),
	}
}

// Credit returns the trade count of the author of a post. Values written earlier in the same scan take
// precedence over the (possibly stale) badge text fetched with the post.
func (sc *ScanContext) Credit(post *forum.Post, prefix string) badge.Credit {
	key := strings.ToLower(post.Author)
	if c, ok := sc.credits[key]; ok {
		return c
	}
	c := badge.Parse(post.AuthorBadge, prefix)
	sc.credits[key] = c
	return c
}

func (sc *ScanContext) setCredit(user string, c badge.Credit) {
	sc.credits[strings.ToLower(user)] = c
}

func (eng *Engine) profile(ctx context.Context, sc *ScanContext, user string) (*forum.Profile, error) {
	key := strings.ToLower(user)
	if p, ok := sc.profiles[key]; ok {
		return p, nil
	}
	p, err := eng.Forum.Profile(ctx, user)
	if err != nil {
		return nil, err
	}
	profileFetches.Inc()
	sc.profiles[key] = p
	return p, nil
}

func (eng *Engine) isModerator(ctx context.Context, sc *ScanContext, user string) (bool, error) {
	if sc.mods == nil {
		mods, err := eng.Forum.Moderators(ctx)
		if err != nil {
			return false, err
		}
		sc.mods = append([]string{}, mods...)
	}
	for _, m := range sc.mods {
		if strings.EqualFold(m, user) {
			return true, nil
		}
	}
	return false, nil
}
