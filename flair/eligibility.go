package flair

import (
	"context"
	"fmt"

	"github.com/modkit/tradeflair/forum"
)

type Reason string

const (
	ReasonNone      Reason = ""
	ReasonSuspended Reason = "suspended"
	ReasonRemoved   Reason = "removed"
	ReasonAge       Reason = "age"
	ReasonKarma     Reason = "karma"
)

// Outcome of an eligibility check on a participant pair. On failure, Participant and ItemID identify the
// first participant which failed and the post they wrote.
type Verdict struct {
	Pass        bool
	Reason      Reason
	Participant string
	ItemID      string
}

// Corrective reports whether the failure should be answered with a message to the participant (as opposed
// to a moderator report).
func (v Verdict) Corrective() bool {
	return v.Reason == ReasonAge || v.Reason == ReasonKarma
}

// CheckPair evaluates the entry author, then the reply author. Checking stops at the first participant which
// fails.
//
// An error is only returned when a profile could not be fetched; the pair is then neither passed nor failed.
func (eng *Engine) CheckPair(ctx context.Context, sc *ScanContext, entry, reply *forum.Post) (Verdict, error) {
	return eng.checkPair(ctx, sc, entry, reply, false)
}

// With override set, only the suspension check applies: a moderator already reviewed the trade.
func (eng *Engine) checkPair(ctx context.Context, sc *ScanContext, entry, reply *forum.Post, override bool) (Verdict, error) {
	for _, post := range []*forum.Post{entry, reply} {
		reason, err := eng.checkParticipant(ctx, sc, post, override)
		if err != nil {
			return Verdict{}, err
		}
		if reason != ReasonNone {
			return Verdict{Reason: reason, Participant: post.Author, ItemID: post.ID}, nil
		}
	}
	return Verdict{Pass: true}, nil
}

func (eng *Engine) checkParticipant(ctx context.Context, sc *ScanContext, post *forum.Post, override bool) (Reason, error) {
	prof, err := eng.profile(ctx, sc, post.Author)
	if err != nil {
		return ReasonNone, fmt.Errorf("fetching profile of %s: %w", post.Author, err)
	}
	if prof.Suspended {
		return ReasonSuspended, nil
	}
	if override {
		return ReasonNone, nil
	}
	// trust moderator action over automation
	if post.Removed {
		return ReasonRemoved, nil
	}

	tc := eng.Config.Trade
	credit := sc.Credit(post, tc.BadgePrefix)
	if !credit.Numeric() {
		sc.Logger.Debug("numeric checks skipped for opaque badge", "user", post.Author, "status", credit.Status)
		return ReasonNone, nil
	}
	if credit.Trades() >= tc.FlairCheck {
		return ReasonNone, nil
	}
	if prof.AgeDays(eng.now()) < tc.AgeCheck {
		return ReasonAge, nil
	}
	if prof.Karma() < tc.KarmaCheck {
		return ReasonKarma, nil
	}
	return ReasonNone, nil
}
