// Durable record of which thread entries have been handled.
//
// Each thread has two disjoint sets of entry ids: `completed` (credited, or nothing left to verify) and
// `pending` (matched, but a participant failed eligibility). Membership in neither set means the entry is
// still unhandled. The only legal transitions are unhandled→completed, unhandled→pending and
// pending→completed.
//
// Store implementations persist the sets; Book wraps a loaded Record and writes every transition through to
// the Store as it happens, so an interrupted scan leaves the ledger consistent with the side-effects already
// applied.
package ledger

import (
	"context"
	"errors"
	"sort"
)

var ErrEmptyThreadID = errors.New("empty thread id")

type State int

const (
	Unhandled State = iota
	Pending
	Completed
)

func (s State) String() string {
	switch s {
	case Unhandled:
		return "unhandled"
	case Pending:
		return "pending"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

type Store interface {
	// Load returns the record for a thread. An unknown thread yields an empty record, not an error.
	Load(ctx context.Context, threadID string) (*Record, error)
	AppendCompleted(ctx context.Context, threadID, id string) error
	// ReplacePending overwrites the whole pending set of a thread.
	ReplacePending(ctx context.Context, threadID string, ids []string) error
}

type Record struct {
	ThreadID  string
	Completed map[string]bool
	Pending   map[string]bool
}

func NewRecord(threadID string) *Record {
	return &Record{
		ThreadID:  threadID,
		Completed: make(map[string]bool),
		Pending:   make(map[string]bool),
	}
}

func (r *Record) State(id string) State {
	if r.Completed[id] {
		return Completed
	}
	if r.Pending[id] {
		return Pending
	}
	return Unhandled
}

// Normalize drops pending ids which are also completed. Stores call this on load, so a crash between the
// completed append and the pending rewrite heals on the next scan.
func (r *Record) Normalize() {
	for id := range r.Pending {
		if r.Completed[id] {
			delete(r.Pending, id)
		}
	}
}

func (r *Record) CompletedIDs() []string {
	return sortedKeys(r.Completed)
}

func (r *Record) PendingIDs() []string {
	return sortedKeys(r.Pending)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func checkThreadID(threadID string) error {
	if threadID == "" {
		return ErrEmptyThreadID
	}
	return nil
}
