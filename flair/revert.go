package flair

import (
	"context"
	"errors"
	"fmt"

	"github.com/modkit/tradeflair/forum"
)

var ErrInvalidPermalink = errors.New("invalid permalink")

type RevertResult struct {
	EntryID string
	ReplyID string
	Changes []CreditChange
}

// RevertTrade takes one trade back off both participants of the entry named by permalink. The ledger is
// left alone: a completed entry stays completed, so the trade is never credited again by a scan.
func (eng *Engine) RevertTrade(ctx context.Context, permalink string) (*RevertResult, error) {
	itemID, err := eng.PermalinkID(permalink)
	if err != nil {
		return nil, err
	}
	if itemID == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPermalink, permalink)
	}
	target, err := eng.Forum.FetchTarget(ctx, itemID)
	if err != nil {
		return nil, err
	}
	entry := &target.Entry
	if entry.Deleted() {
		return nil, fmt.Errorf("entry %s: author deleted", entry.ID)
	}
	reply := eng.findOverrideReply(entry, target.ReplyID)
	if reply == nil {
		return nil, fmt.Errorf("entry %s: %w: no confirmation reply", entry.ID, forum.ErrNotFound)
	}

	sc := eng.NewScanContext("revert", "entry", entry.ID)
	changes, err := eng.ApplyCredit(ctx, sc, &entry.Post, &reply.Post, Revert)
	if err != nil {
		return nil, err
	}
	sc.Logger.Info("trade reverted", "author", entry.Author, "partner", reply.Author)
	return &RevertResult{EntryID: entry.ID, ReplyID: reply.ID, Changes: changes}, nil
}
