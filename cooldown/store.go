package cooldown

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Latest submission of a participant in a group.
type UserPost struct {
	ID          uint   `gorm:"primarykey"`
	Username    string `gorm:"uniqueIndex:idx_username_category;not null"`
	Category    string `gorm:"uniqueIndex:idx_username_category;not null"`
	LastID      string
	LastCreated time.Time
	UpdatedAt   time.Time
}

type Store interface {
	// Last returns nil when the participant has no submission on record in the group.
	Last(ctx context.Context, user, group string) (*UserPost, error)
	Save(ctx context.Context, user, group, id string, created time.Time) error
}

type SQLStore struct {
	db *gorm.DB
}

var _ Store = (*SQLStore)(nil)

func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&UserPost{}); err != nil {
		return nil, err
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Last(ctx context.Context, user, group string) (*UserPost, error) {
	var row UserPost
	err := s.db.WithContext(ctx).Where("username = ? AND category = ?", strings.ToLower(user), group).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *SQLStore) Save(ctx context.Context, user, group, id string, created time.Time) error {
	row := UserPost{Username: strings.ToLower(user), Category: group, LastID: id, LastCreated: created}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}, {Name: "category"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_id", "last_created", "updated_at"}),
	}).Create(&row).Error
}
