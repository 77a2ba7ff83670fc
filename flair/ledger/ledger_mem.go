package ledger

import (
	"context"
	"sync"
)

type MemStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[string]*Record),
	}
}

func (s *MemStore) Load(ctx context.Context, threadID string) (*Record, error) {
	if err := checkThreadID(threadID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := NewRecord(threadID)
	if rec, ok := s.records[threadID]; ok {
		for k := range rec.Completed {
			out.Completed[k] = true
		}
		for k := range rec.Pending {
			out.Pending[k] = true
		}
	}
	return out, nil
}

func (s *MemStore) AppendCompleted(ctx context.Context, threadID, id string) error {
	if err := checkThreadID(threadID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(threadID).Completed[id] = true
	return nil
}

func (s *MemStore) ReplacePending(ctx context.Context, threadID string, ids []string) error {
	if err := checkThreadID(threadID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.record(threadID)
	rec.Pending = make(map[string]bool, len(ids))
	for _, id := range ids {
		rec.Pending[id] = true
	}
	return nil
}

// must hold lock
func (s *MemStore) record(threadID string) *Record {
	rec, ok := s.records[threadID]
	if !ok {
		rec = NewRecord(threadID)
		s.records[threadID] = rec
	}
	return rec
}
