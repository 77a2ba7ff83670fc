package flair

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/modkit/tradeflair/flair/ledger"
	"github.com/modkit/tradeflair/flair/mention"
	"github.com/modkit/tradeflair/forum"
)

type OverrideStatus string

const (
	OverrideAdded            OverrideStatus = "added"
	OverrideAlreadyCompleted OverrideStatus = "already-completed"
	// Overrides skip the age, karma and trade count checks; only a suspended participant refuses them.
	OverrideSuspended        OverrideStatus = "suspended"
	OverrideInvalidURL       OverrideStatus = "invalid-url"
	OverrideNoMention        OverrideStatus = "no-mention"
	OverrideNotFound         OverrideStatus = "not-found"
	OverrideNoReply          OverrideStatus = "no-reply"
)

// Batched reports whether the status goes in the batched reply to the operator, instead of being answered
// immediately on the message which contained the line.
func (s OverrideStatus) Batched() bool {
	return s == OverrideAdded || s == OverrideAlreadyCompleted || s == OverrideSuspended
}

type OverrideLine struct {
	MessageID string
	Line      string
	Status    OverrideStatus
	Text      string
}

type OverrideSummary struct {
	ScanID string
	// Messages from moderators which were processed (and marked read).
	Messages int
	// Messages from anyone else, left unread.
	Ignored int
	Lines   []OverrideLine
}

func (s *OverrideSummary) Count(status OverrideStatus) int {
	n := 0
	for _, l := range s.Lines {
		if l.Status == status {
			n++
		}
	}
	return n
}

// ProcessOverrides handles unread direct messages from moderators. Each non-empty line of a message is a
// permalink to a trade entry (or its confirming reply) to push through without the usual eligibility checks.
//
// Consecutive messages from the same moderator share one batched reply. Every processed message is marked
// read at the end; on a ledger or badge write failure nothing is marked read, and the whole batch is retried
// on the next run (already completed trades are then reported as such).
func (eng *Engine) ProcessOverrides(ctx context.Context) (*OverrideSummary, error) {
	ctx, span := otel.Tracer("tradeflair").Start(ctx, "ProcessOverrides")
	defer span.End()

	start := time.Now()
	defer func() {
		scanDuration.WithLabelValues("override").Observe(time.Since(start).Seconds())
	}()

	sc := eng.NewScanContext("override")
	summary, err := eng.processOverrides(ctx, sc)
	if err != nil {
		scanErrorCount.WithLabelValues("override").Inc()
		span.RecordError(err)
		return summary, err
	}
	span.SetAttributes(attribute.Int("messages", summary.Messages), attribute.Int("lines", len(summary.Lines)))
	sc.Logger.Info("overrides complete",
		"messages", summary.Messages,
		"ignored", summary.Ignored,
		"lines", len(summary.Lines),
		"added", summary.Count(OverrideAdded),
		"already_completed", summary.Count(OverrideAlreadyCompleted),
		"suspended", summary.Count(OverrideSuspended),
		"duration", time.Since(start),
	)
	return summary, nil
}

func (eng *Engine) processOverrides(ctx context.Context, sc *ScanContext) (*OverrideSummary, error) {
	summary := &OverrideSummary{ScanID: sc.ID}

	msgs, err := eng.Forum.UnreadMessages(ctx)
	if err != nil {
		return summary, fmt.Errorf("fetching unread messages: %w", err)
	}
	var fromMods []forum.Message
	for _, msg := range msgs {
		ok, err := eng.isModerator(ctx, sc, msg.Author)
		if err != nil {
			return summary, fmt.Errorf("fetching moderators: %w", err)
		}
		if !ok {
			summary.Ignored++
			continue
		}
		fromMods = append(fromMods, msg)
	}

	books := map[string]*ledger.Book{}
	processed := []string{}
	batch := []string{}
	for i, msg := range fromMods {
		sc.Logger.Info("processing message from moderator", "author", msg.Author, "message", msg.ID)
		lines, err := eng.processOverrideMessage(ctx, sc, books, msg)
		summary.Lines = append(summary.Lines, lines...)
		if err != nil {
			return summary, err
		}
		processed = append(processed, msg.ID)
		summary.Messages++
		for _, l := range lines {
			if l.Status.Batched() {
				batch = append(batch, l.Text)
			}
		}
		lastOfGroup := i == len(fromMods)-1 || !strings.EqualFold(fromMods[i+1].Author, msg.Author)
		if lastOfGroup && len(batch) > 0 {
			eng.replyMessage(ctx, sc, msg.ID, strings.Join(batch, "\n\n"))
			batch = []string{}
		}
	}

	if len(processed) > 0 {
		if err := eng.Forum.MarkRead(ctx, processed); err != nil {
			return summary, fmt.Errorf("marking messages read: %w", err)
		}
	}
	return summary, nil
}

func (eng *Engine) processOverrideMessage(ctx context.Context, sc *ScanContext, books map[string]*ledger.Book, msg forum.Message) ([]OverrideLine, error) {
	out := []OverrideLine{}
	for _, line := range strings.Split(msg.Body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		status, text, err := eng.processOverrideLine(ctx, sc, books, line)
		if err != nil {
			return out, fmt.Errorf("override line %q: %w", line, err)
		}
		overrideLineCount.WithLabelValues(string(status)).Inc()
		out = append(out, OverrideLine{MessageID: msg.ID, Line: line, Status: status, Text: text})
		if !status.Batched() {
			eng.replyMessage(ctx, sc, msg.ID, text)
		}
	}
	return out, nil
}

// processOverrideLine returns the status of one permalink line and the text reported back to the operator.
// The error is only set for failures which must stop the batch.
func (eng *Engine) processOverrideLine(ctx context.Context, sc *ScanContext, books map[string]*ledger.Book, line string) (OverrideStatus, string, error) {
	logger := sc.Logger.With("line", line)

	itemID, err := eng.PermalinkID(line)
	if err != nil {
		return "", "", err
	}
	if itemID == "" {
		return OverrideInvalidURL, fmt.Sprintf(overrideInvalidURL, line), nil
	}
	target, err := eng.Forum.FetchTarget(ctx, itemID)
	if errors.Is(err, forum.ErrNotFound) {
		return OverrideNotFound, fmt.Sprintf(overrideNotFound, line), nil
	} else if err != nil {
		return "", "", fmt.Errorf("fetching %s: %w", itemID, err)
	}
	entry := &target.Entry
	// deliberately looser than mention.Parse, older threads used other formats
	if entry.Deleted() || !mention.HasLooseMention(entry.Body) {
		return OverrideNoMention, fmt.Sprintf(overrideNoMention, line), nil
	}

	book, ok := books[target.ThreadID]
	if !ok {
		book, err = ledger.Open(ctx, eng.Ledger, target.ThreadID)
		if err != nil {
			return "", "", err
		}
		books[target.ThreadID] = book
	}
	if book.State(entry.ID) == ledger.Completed {
		return OverrideAlreadyCompleted, fmt.Sprintf(overrideCompleted, line), nil
	}

	if entry.Reported {
		eng.approve(ctx, sc, entry.ID)
	}
	reply := eng.findOverrideReply(entry, target.ReplyID)
	if reply == nil {
		return OverrideNoReply, fmt.Sprintf(overrideNoReply, line), nil
	}
	if reply.Reported {
		eng.approve(ctx, sc, reply.ID)
	}

	verdict, err := eng.checkPair(ctx, sc, &entry.Post, &reply.Post, true)
	if err != nil {
		return "", "", err
	}
	if !verdict.Pass {
		logger.Info("override refused", "participant", verdict.Participant, "reason", verdict.Reason)
		return OverrideSuspended, fmt.Sprintf(overrideSuspended, verdict.Participant, line), nil
	}

	if _, err := eng.ApplyCredit(ctx, sc, &entry.Post, &reply.Post, Credit); err != nil {
		return "", "", err
	}
	if err := book.Complete(ctx, entry.ID); err != nil {
		return "", "", err
	}
	logger.Info("override completed trade", "entry", entry.ID, "author", entry.Author, "partner", reply.Author)
	return OverrideAdded, fmt.Sprintf(overrideAdded, entry.Author, reply.Author, line), nil
}

// findOverrideReply picks the confirming reply of an entry. When the permalink named a reply, only that one
// is considered. Otherwise it is the first child whose author name appears in the entry text and which
// contains the keyword.
func (eng *Engine) findOverrideReply(entry *forum.Entry, replyID string) *forum.Reply {
	bot := eng.Forum.BotName()
	keyword := eng.Config.Trade.ConfirmationKeyword
	body := strings.ToLower(mention.Normalize(entry.Body))
	for i := range entry.Children {
		child := &entry.Children[i]
		if replyID != "" && child.ID != replyID {
			continue
		}
		if child.Deleted() || child.AuthoredBy(bot) {
			continue
		}
		if replyID == "" && !strings.Contains(body, strings.ToLower(child.Author)) {
			continue
		}
		if mention.ContainsWord(child.Body, keyword) {
			return child
		}
	}
	return nil
}

func (eng *Engine) approve(ctx context.Context, sc *ScanContext, itemID string) {
	if err := eng.Forum.Approve(ctx, itemID); err != nil {
		sc.Logger.Warn("failed to approve item", "item", itemID, "err", err)
	}
}

func (eng *Engine) replyMessage(ctx context.Context, sc *ScanContext, messageID, body string) {
	if err := eng.Forum.ReplyMessage(ctx, messageID, body); err != nil {
		sc.Logger.Warn("failed to reply to message", "message", messageID, "err", err)
	}
}
