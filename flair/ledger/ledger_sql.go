package ledger

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// One row per (thread, entry). The unique index keeps an id in at most one state.
type LedgerEntry struct {
	ID        uint   `gorm:"primarykey"`
	ThreadID  string `gorm:"uniqueIndex:idx_ledger_thread_item;not null"`
	ItemID    string `gorm:"uniqueIndex:idx_ledger_thread_item;not null"`
	State     string `gorm:"index;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type SQLStore struct {
	db *gorm.DB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore migrates the ledger table and returns a store over it.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&LedgerEntry{}); err != nil {
		return nil, err
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Load(ctx context.Context, threadID string) (*Record, error) {
	if err := checkThreadID(threadID); err != nil {
		return nil, err
	}
	var rows []LedgerEntry
	if err := s.db.WithContext(ctx).Where("thread_id = ?", threadID).Find(&rows).Error; err != nil {
		return nil, err
	}
	rec := NewRecord(threadID)
	for _, row := range rows {
		switch row.State {
		case Completed.String():
			rec.Completed[row.ItemID] = true
		case Pending.String():
			rec.Pending[row.ItemID] = true
		}
	}
	return rec, nil
}

func (s *SQLStore) AppendCompleted(ctx context.Context, threadID, id string) error {
	if err := checkThreadID(threadID); err != nil {
		return err
	}
	row := LedgerEntry{ThreadID: threadID, ItemID: id, State: Completed.String()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "thread_id"}, {Name: "item_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"state": Completed.String(), "updated_at": time.Now()}),
	}).Create(&row).Error
}

// ReplacePending drops the pending rows of a thread and inserts the new set. Ids which are already completed
// keep their row untouched.
func (s *SQLStore) ReplacePending(ctx context.Context, threadID string, ids []string) error {
	if err := checkThreadID(threadID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ? AND state = ?", threadID, Pending.String()).Delete(&LedgerEntry{}).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		rows := make([]LedgerEntry, len(ids))
		for i, id := range ids {
			rows[i] = LedgerEntry{ThreadID: threadID, ItemID: id, State: Pending.String()}
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
}
