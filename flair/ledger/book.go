package ledger

import (
	"context"
	"fmt"
)

// Loaded ledger record of one thread, with write-through transitions.
//
// Not safe for concurrent use: a single scan owns the Book for its lifetime.
type Book struct {
	store  Store
	record *Record
}

// Open loads the record of a thread. Any error is fatal for the caller's scan.
func Open(ctx context.Context, store Store, threadID string) (*Book, error) {
	if err := checkThreadID(threadID); err != nil {
		return nil, err
	}
	rec, err := store.Load(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("loading ledger for thread %s: %w", threadID, err)
	}
	rec.Normalize()
	return &Book{store: store, record: rec}, nil
}

func (b *Book) ThreadID() string {
	return b.record.ThreadID
}

func (b *Book) State(id string) State {
	return b.record.State(id)
}

// Snapshot copy of the current record.
func (b *Book) Record() *Record {
	out := NewRecord(b.record.ThreadID)
	for k := range b.record.Completed {
		out.Completed[k] = true
	}
	for k := range b.record.Pending {
		out.Pending[k] = true
	}
	return out
}

// Complete moves an id to completed, from either unhandled or pending. Completing an already completed id is
// a no-op.
func (b *Book) Complete(ctx context.Context, id string) error {
	if b.record.Completed[id] {
		return nil
	}
	if err := b.store.AppendCompleted(ctx, b.record.ThreadID, id); err != nil {
		return fmt.Errorf("appending completed %s: %w", id, err)
	}
	b.record.Completed[id] = true
	if b.record.Pending[id] {
		delete(b.record.Pending, id)
		if err := b.store.ReplacePending(ctx, b.record.ThreadID, b.record.PendingIDs()); err != nil {
			return fmt.Errorf("rewriting pending: %w", err)
		}
	}
	return nil
}

// Defer moves an unhandled id to pending. Returns false (and writes nothing) when the id is already pending
// or completed.
func (b *Book) Defer(ctx context.Context, id string) (bool, error) {
	if b.record.State(id) != Unhandled {
		return false, nil
	}
	b.record.Pending[id] = true
	if err := b.store.ReplacePending(ctx, b.record.ThreadID, b.record.PendingIDs()); err != nil {
		delete(b.record.Pending, id)
		return false, fmt.Errorf("rewriting pending: %w", err)
	}
	return true, nil
}
