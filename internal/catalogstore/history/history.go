// Package history appends one audit row per commit to a GORM-managed table,
// independent of the live tabular.metadata_location column so a
// policy-trimmed metadata_log never loses the full commit history. Uses
// gorm.Model for the timestamp/soft-delete scaffolding, AutoMigrate for
// schema management, one table per concern.
package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"catalog.icecat.io/internal/ids"
)

// TableMetadataHistoryRow is one append-only commit record.
type TableMetadataHistoryRow struct {
	gorm.Model
	TabularID        string `gorm:"index"`
	MetadataLocation string
	SequenceNumber   int64
	CommittedAt      time.Time
}

// Store wraps the gorm.DB handle used for history rows only; catalogstore's
// transactional entity data lives in the postgres package's pgx pool
// instead. GORM here is scoped to this one audit concern, kept in its own
// file rather than mixing ORMs.
type Store struct {
	db *gorm.DB
}

// Open connects via gorm.Open(postgres.Open(dsn), ...) and runs
// AutoMigrate on the history table.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("catalogstore/history: connecting: %w", err)
	}
	if err := db.AutoMigrate(&TableMetadataHistoryRow{}); err != nil {
		return nil, fmt.Errorf("catalogstore/history: automigrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Append records one commit. Called from the commit state machine after
// the new metadata row is persisted, outside the pgx write transaction.
// A history-append failure is logged, not fatal to the commit itself.
func (s *Store) Append(ctx context.Context, tabular ids.TabularID, metadataLocation string, sequenceNumber int64) error {
	row := TableMetadataHistoryRow{
		TabularID:        tabular.String(),
		MetadataLocation: metadataLocation,
		SequenceNumber:   sequenceNumber,
		CommittedAt:      time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("catalogstore/history: append: %w", err)
	}
	return nil
}

// ListForTabular returns the commit history for a tabular, newest first.
func (s *Store) ListForTabular(ctx context.Context, tabular ids.TabularID, limit int) ([]TableMetadataHistoryRow, error) {
	var rows []TableMetadataHistoryRow
	err := s.db.WithContext(ctx).
		Where("tabular_id = ?", tabular.String()).
		Order("sequence_number DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("catalogstore/history: list: %w", err)
	}
	return rows, nil
}
