package flair

import (
	"context"
	"fmt"
	"strings"

	"github.com/modkit/tradeflair/flair/badge"
	"github.com/modkit/tradeflair/flair/countstore"
	"github.com/modkit/tradeflair/forum"
)

type Direction int

const (
	Credit Direction = iota
	Revert
)

func (d Direction) String() string {
	if d == Revert {
		return "revert"
	}
	return "credit"
}

func (d Direction) delta() int {
	if d == Revert {
		return -1
	}
	return 1
}

// Badge change applied to one participant.
type CreditChange struct {
	User   string
	Before badge.Credit
	After  badge.Credit
	// False when the badge is an opaque status and was left alone.
	Changed bool
}

// ApplyCredit moves the trade count of both participants by one, in the given direction, and writes the new
// badges. A participant who is on both sides of the pair is only adjusted once.
//
// Badge write failures are returned. On Credit, a confirmation reply is then posted under the reply; failure
// to post it is only logged.
func (eng *Engine) ApplyCredit(ctx context.Context, sc *ScanContext, entry, reply *forum.Post, dir Direction) ([]CreditChange, error) {
	prefix := eng.Config.Trade.BadgePrefix
	changes := []CreditChange{}
	seen := map[string]bool{}
	for _, post := range []*forum.Post{entry, reply} {
		key := strings.ToLower(post.Author)
		if post.Deleted() || seen[key] {
			continue
		}
		seen[key] = true

		before := sc.Credit(post, prefix)
		after, ok := before.Adjust(dir.delta())
		change := CreditChange{User: post.Author, Before: before, After: after, Changed: ok}
		changes = append(changes, change)
		if !ok {
			sc.Logger.Info("badge is an opaque status, not adjusted", "user", post.Author, "status", before.Status)
			continue
		}
		if err := eng.Forum.SetBadge(ctx, post.Author, after.Encode(prefix)); err != nil {
			return changes, fmt.Errorf("setting badge of %s: %w", post.Author, err)
		}
		sc.setCredit(post.Author, after)
		creditsApplied.WithLabelValues(dir.String()).Inc()
		sc.Logger.Info("badge updated", "user", post.Author, "direction", dir.String(), "before", before.String(), "after", after.String())
		if dir == Credit {
			eng.countCredit(ctx, sc, post.Author)
		}
	}

	if dir == Credit && eng.Config.Trade.Reply != "" {
		if _, err := eng.Forum.Reply(ctx, reply.ID, eng.Config.Trade.Reply); err != nil {
			sc.Logger.Warn("failed to post confirmation reply, probably because the comment is too old", "item", reply.ID, "err", err)
		}
	}
	return changes, nil
}

// Keeps a per-day credit count for each participant, and sends a notification the first time it goes over
// the configured limit. Counter failures are logged only.
func (eng *Engine) countCredit(ctx context.Context, sc *ScanContext, user string) {
	key := strings.ToLower(user)
	if err := eng.Counters.Increment(ctx, "trade-credit", key); err != nil {
		sc.Logger.Error("failed to increment credit counter", "user", user, "err", err)
		return
	}
	limit := eng.Config.Trade.DailyCreditAlert
	if limit <= 0 {
		return
	}
	c, err := eng.Counters.GetCount(ctx, "trade-credit", key, countstore.PeriodDay)
	if err != nil {
		sc.Logger.Error("failed to read credit counter", "user", user, "err", err)
		return
	}
	if c != limit+1 {
		return
	}
	sc.Logger.Warn("unusual number of trade credits today", "user", user, "count", c)
	if eng.Notifier != nil {
		if err := eng.Notifier.SendCreditAlert(ctx, user, c); err != nil {
			sc.Logger.Error("failed to send credit alert", "err", err)
		}
	}
}
