package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/lubeqc/internal/kv/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is one row of kv_entries.
type Entry struct {
	Key       string         `gorm:"column:entry_key;primaryKey;size:191"`
	Value     datatypes.JSON `gorm:"column:entry_value;not null"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null"`
}

func (Entry) TableName() string { return "kv_entries" }

type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormStore(db *gorm.DB) domain.Store {
	return &gormStore{db: db, now: time.Now}
}

func (s *gormStore) Get(ctx context.Context, key string) (string, bool, error) {
	key, err := domain.NormalizeKey(key)
	if err != nil {
		return "", false, err
	}

	var entry Entry
	err = s.db.WithContext(ctx).
		Where("entry_key = ?", key).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(entry.Value), true, nil
}

func (s *gormStore) Set(ctx context.Context, key, value string) error {
	key, err := domain.NormalizeKey(key)
	if err != nil {
		return err
	}

	entry := Entry{
		Key:       key,
		Value:     datatypes.JSON(value),
		UpdatedAt: s.now().UTC(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entry_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"entry_value", "updated_at"}),
		}).
		Create(&entry).Error
}

func (s *gormStore) Delete(ctx context.Context, key string) error {
	key, err := domain.NormalizeKey(key)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Where("entry_key = ?", key).
		Delete(&Entry{}).Error
}
