// Package blob is the durable key/value boundary used by the client for its
// local pet collection and its persisted auth session.
package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultQuota is the total number of bytes a GormStore accepts across all keys.
const DefaultQuota int64 = 5 << 20

var (
	// ErrNotFound is returned by Load for a missing key.
	ErrNotFound = errors.New("blob: not found")
	// ErrQuotaExceeded is returned by Save when the write would exceed the quota.
	ErrQuotaExceeded = errors.New("blob: quota exceeded")
)

// Store is a durable string-keyed blob store. Saves replace the whole value.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type blobModel struct {
	Key       string    `gorm:"column:key;type:varchar(255);primaryKey"`
	Value     []byte    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (blobModel) TableName() string { return "blobs" }

// GormStore keeps blobs in a single table.
type GormStore struct {
	db    *gorm.DB
	quota int64
	now   func() time.Time
}

// Option configures a GormStore.
type Option func(*GormStore)

// WithQuota sets the byte quota. Zero or negative disables it.
func WithQuota(n int64) Option {
	return func(s *GormStore) { s.quota = n }
}

// NewGormStore creates the blobs table when missing.
func NewGormStore(db *gorm.DB, opts ...Option) (*GormStore, error) {
	s := &GormStore{db: db, quota: DefaultQuota, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	if err := db.AutoMigrate(&blobModel{}); err != nil {
		return nil, fmt.Errorf("blob: migrate: %w", err)
	}
	return s, nil
}

func keyEq(key string) clause.Expression {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}

func (s *GormStore) Load(ctx context.Context, key string) ([]byte, error) {
	var m blobModel
	if err := s.db.WithContext(ctx).Where(keyEq(key)).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blob: load %q: %w", key, err)
	}
	return m.Value, nil
}

func (s *GormStore) Save(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.quota > 0 {
			var others int64
			if err := tx.Model(&blobModel{}).
				Select("COALESCE(SUM(LENGTH(value)), 0)").
				Where(clause.Neq{Column: clause.Column{Name: "key"}, Value: key}).
				Scan(&others).Error; err != nil {
				return fmt.Errorf("blob: usage: %w", err)
			}
			if others+int64(len(value)) > s.quota {
				return fmt.Errorf("%w: %d bytes for %q, %d of %d in use",
					ErrQuotaExceeded, len(value), key, others, s.quota)
			}
		}
		m := blobModel{Key: key, Value: value, UpdatedAt: s.now()}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&m).Error
		if err != nil {
			return fmt.Errorf("blob: save %q: %w", key, err)
		}
		return nil
	})
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where(keyEq(key)).Delete(&blobModel{}).Error; err != nil {
		return fmt.Errorf("blob: delete %q: %w", key, err)
	}
	return nil
}
