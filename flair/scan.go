package flair

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/modkit/tradeflair/flair/ledger"
	"github.com/modkit/tradeflair/flair/mention"
	"github.com/modkit/tradeflair/forum"
)

type EntryOutcome string

const (
	// author deleted; nothing to verify
	OutcomeDeleted EntryOutcome = "deleted"
	// no valid mention; corrective reply posted (or already present)
	OutcomeNoMention EntryOutcome = "no-mention"
	// no reply from the tagged participant yet
	OutcomeWaiting EntryOutcome = "waiting"
	// reply found, but without the keyword
	OutcomeMissingKeyword EntryOutcome = "missing-keyword"
	OutcomeCompleted      EntryOutcome = "completed"
	OutcomePending        EntryOutcome = "pending"
	// transient forum failure; retried next scan
	OutcomeError EntryOutcome = "error"
)

// Persisted reports whether the outcome moved the entry out of unhandled.
func (o EntryOutcome) Persisted() bool {
	return o == OutcomeDeleted || o == OutcomeCompleted || o == OutcomePending
}

type ScanSummary struct {
	ScanID   string
	ThreadID string
	// Number of entries in the thread, and how many of them were unhandled at scan start.
	Entries   int
	Unhandled int
	Outcomes  map[string]EntryOutcome
}

func (s *ScanSummary) Count(o EntryOutcome) int {
	n := 0
	for _, v := range s.Outcomes {
		if v == o {
			n++
		}
	}
	return n
}

// ScanThread evaluates every unhandled entry of a thread, in arrival order.
//
// Ledger transitions are written through as they happen. Ledger and badge write failures stop the scan and
// are returned; everything else is handled per entry.
func (eng *Engine) ScanThread(ctx context.Context, threadID string) (*ScanSummary, error) {
	ctx, span := otel.Tracer("tradeflair").Start(ctx, "ScanThread")
	defer span.End()
	span.SetAttributes(attribute.String("thread", threadID))

	start := time.Now()
	defer func() {
		scanDuration.WithLabelValues("scan").Observe(time.Since(start).Seconds())
	}()

	sc := eng.NewScanContext("scan", "thread", threadID)
	summary, err := eng.scanThread(ctx, sc, threadID)
	if err != nil {
		scanErrorCount.WithLabelValues("scan").Inc()
		span.RecordError(err)
		return summary, err
	}
	sc.Logger.Info("scan complete",
		"entries", summary.Entries,
		"unhandled", summary.Unhandled,
		"completed", summary.Count(OutcomeCompleted),
		"pending", summary.Count(OutcomePending),
		"deleted", summary.Count(OutcomeDeleted),
		"no_mention", summary.Count(OutcomeNoMention),
		"waiting", summary.Count(OutcomeWaiting),
		"missing_keyword", summary.Count(OutcomeMissingKeyword),
		"errors", summary.Count(OutcomeError),
		"duration", time.Since(start),
	)
	return summary, nil
}

func (eng *Engine) scanThread(ctx context.Context, sc *ScanContext, threadID string) (*ScanSummary, error) {
	summary := &ScanSummary{ScanID: sc.ID, ThreadID: threadID, Outcomes: make(map[string]EntryOutcome)}

	book, err := ledger.Open(ctx, eng.Ledger, threadID)
	if err != nil {
		return summary, err
	}
	thread, err := eng.Forum.FetchThread(ctx, threadID)
	if err != nil {
		return summary, fmt.Errorf("fetching thread: %w", err)
	}
	summary.Entries = len(thread.Entries)

	for i := range thread.Entries {
		entry := &thread.Entries[i]
		if book.State(entry.ID) != ledger.Unhandled {
			continue
		}
		summary.Unhandled++
		outcome, err := eng.processEntry(ctx, sc, book, entry)
		if err != nil {
			return summary, fmt.Errorf("processing entry %s: %w", entry.ID, err)
		}
		summary.Outcomes[entry.ID] = outcome
		entryOutcomeCount.WithLabelValues(string(outcome)).Inc()
	}
	return summary, nil
}

// processEntry drives the state machine of one unhandled entry. The returned error is fatal for the scan.
func (eng *Engine) processEntry(ctx context.Context, sc *ScanContext, book *ledger.Book, entry *forum.Entry) (outcome EntryOutcome, err error) {
	// similar to an HTTP server, recover panics from a single entry, but stop the scan
	defer func() {
		if r := recover(); r != nil {
			sc.Logger.Error("entry processing exception", "err", r, "entry", entry.ID)
			outcome = OutcomeError
			err = fmt.Errorf("panic processing entry: %v", r)
		}
	}()
	logger := sc.Logger.With("entry", entry.ID)

	if entry.Deleted() {
		if err := book.Complete(ctx, entry.ID); err != nil {
			return OutcomeError, err
		}
		logger.Debug("entry author deleted, marked completed")
		return OutcomeDeleted, nil
	}

	bot := eng.Forum.BotName()
	tagged, err := mention.Parse(entry.Body)
	if err != nil {
		logger.Debug("no valid mention", "err", err)
		eng.correct(ctx, sc, &entry.Post, botPosts(entryChildren(entry), bot), eng.mentionCorrection(err))
		return OutcomeNoMention, nil
	}
	eng.clearCorrections(ctx, sc, botPosts(entryChildren(entry), bot), eng.Config.Messages.NoMention, eng.Config.Messages.MultipleMentions)

	if tagged.Matches(entry.Author) {
		eng.report(ctx, sc, entry.ID, entry.Permalink, ReportSelfTag)
	}

	candidate := eng.findConfirmation(ctx, sc, entry, tagged)
	if candidate == nil {
		return OutcomeWaiting, nil
	}

	if !mention.ContainsWord(candidate.Body, eng.Config.Trade.ConfirmationKeyword) {
		logger.Debug("confirmation keyword missing", "reply", candidate.ID)
		eng.correct(ctx, sc, &candidate.Post, botPosts(candidate.Replies, bot), eng.Config.Messages.MissingKeyword)
		return OutcomeMissingKeyword, nil
	}
	eng.clearCorrections(ctx, sc, botPosts(candidate.Replies, bot), eng.Config.Messages.MissingKeyword)

	verdict, err := eng.CheckPair(ctx, sc, &entry.Post, &candidate.Post)
	if err != nil {
		logger.Warn("eligibility check failed, will retry next scan", "err", err)
		return OutcomeError, nil
	}
	if !verdict.Pass {
		return OutcomePending, eng.deferEntry(ctx, sc, book, entry, candidate, verdict)
	}

	if _, err := eng.ApplyCredit(ctx, sc, &entry.Post, &candidate.Post, Credit); err != nil {
		return OutcomeError, err
	}
	if err := book.Complete(ctx, entry.ID); err != nil {
		return OutcomeError, err
	}
	logger.Info("trade completed", "author", entry.Author, "partner", candidate.Author, "reply", candidate.ID)
	return OutcomeCompleted, nil
}

// findConfirmation returns the first child written by the tagged participant. Children by anyone else, seen
// before that, are reported as not tagged.
func (eng *Engine) findConfirmation(ctx context.Context, sc *ScanContext, entry *forum.Entry, tagged mention.Mention) *forum.Reply {
	bot := eng.Forum.BotName()
	for i := range entry.Children {
		child := &entry.Children[i]
		if child.Deleted() || child.AuthoredBy(bot) {
			continue
		}
		if tagged.Matches(child.Author) {
			return child
		}
		eng.report(ctx, sc, child.ID, child.Permalink, ReportNotTagged)
	}
	return nil
}

func (eng *Engine) deferEntry(ctx context.Context, sc *ScanContext, book *ledger.Book, entry *forum.Entry, reply *forum.Reply, verdict Verdict) error {
	moved, err := book.Defer(ctx, entry.ID)
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}
	sc.Logger.Info("trade pending", "entry", entry.ID, "participant", verdict.Participant, "reason", verdict.Reason)

	failed := &entry.Post
	if verdict.ItemID == reply.ID {
		failed = &reply.Post
	}
	switch {
	case verdict.Corrective():
		if _, err := eng.Forum.Reply(ctx, failed.ID, eng.reviewComment(verdict.Reason, entry.Permalink)); err != nil {
			sc.Logger.Warn("failed to post review comment", "item", failed.ID, "err", err)
		}
	case verdict.Reason == ReasonRemoved:
		eng.report(ctx, sc, failed.ID, failed.Permalink, ReportBanned)
	case verdict.Reason == ReasonSuspended:
		eng.report(ctx, sc, failed.ID, failed.Permalink, ReportSuspended)
	}
	return nil
}

// correct posts a corrective reply under an item, unless the bot already replied there.
func (eng *Engine) correct(ctx context.Context, sc *ScanContext, item *forum.Post, existing []forum.Post, msg string) {
	if len(existing) > 0 || msg == "" {
		return
	}
	if _, err := eng.Forum.Reply(ctx, item.ID, msg); err != nil {
		sc.Logger.Warn("failed to post corrective reply", "item", item.ID, "err", err)
	}
}

// clearCorrections removes earlier corrective replies (identified by their exact text) once the problem they
// pointed out is fixed.
func (eng *Engine) clearCorrections(ctx context.Context, sc *ScanContext, existing []forum.Post, messages ...string) {
	for _, p := range existing {
		for _, msg := range messages {
			if msg == "" || p.Body != msg {
				continue
			}
			if err := eng.Forum.Remove(ctx, p.ID); err != nil && !errors.Is(err, forum.ErrNotFound) {
				sc.Logger.Warn("failed to remove stale corrective reply", "item", p.ID, "err", err)
			}
			break
		}
	}
}

func entryChildren(entry *forum.Entry) []forum.Post {
	out := make([]forum.Post, len(entry.Children))
	for i, c := range entry.Children {
		out[i] = c.Post
	}
	return out
}

// botPosts returns the live bot replies among posts. Removed ones are still listed to moderator accounts.
func botPosts(posts []forum.Post, bot string) []forum.Post {
	out := []forum.Post{}
	for _, p := range posts {
		if p.AuthoredBy(bot) && !p.Removed {
			out = append(out, p)
		}
	}
	return out
}
