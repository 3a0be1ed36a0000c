package identity

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/optix-bridge/optix-bridge/internal/errors"
	"github.com/optix-bridge/optix-bridge/internal/logger"
)

// slowQueryThreshold triggers a warning for identity table queries.
const slowQueryThreshold = 200 * time.Millisecond

// Record is the database row for one reference.
type Record struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;not null"`
	Position  int       `gorm:"index;not null"`
	Embedding []float32 `gorm:"serializer:json;type:text;not null"`
	UpdatedAt time.Time
}

// TableName keeps the table name stable across struct renames.
func (Record) TableName() string {
	return "identities"
}

// SQLiteRepository stores references in a SQLite database through GORM.
type SQLiteRepository struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(GetLogger().Module("sqlite"), slowQueryThreshold),
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open SQLite database: %w", err)).
			Component("identity").
			Category(errors.CategoryDatabase).
			Context("path", path).
			Build()
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, errors.New(fmt.Errorf("failed to migrate identity schema: %w", err)).
			Component("identity").
			Category(errors.CategoryDatabase).
			Build()
	}

	return &SQLiteRepository{db: db}, nil
}

// LoadAll returns references ordered by their stored position.
func (r *SQLiteRepository) LoadAll(ctx context.Context) ([]Reference, error) {
	start := time.Now()
	var records []Record
	if err := r.db.WithContext(ctx).Order("position asc").Find(&records).Error; err != nil {
		return nil, errors.New(fmt.Errorf("failed to query identities: %w", err)).
			Component("identity").
			Category(errors.CategoryDatabase).
			Timing("load_identities", time.Since(start)).
			Build()
	}

	refs := make([]Reference, 0, len(records))
	for _, rec := range records {
		refs = append(refs, Reference{Name: rec.Name, Embedding: rec.Embedding})
	}
	return refs, nil
}

// SaveAll replaces the table contents in one transaction.
func (r *SQLiteRepository) SaveAll(ctx context.Context, refs []Reference) error {
	start := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Record{}).Error; err != nil {
			return err
		}
		if len(refs) == 0 {
			return nil
		}

		records := make([]Record, len(refs))
		for i, ref := range refs {
			records[i] = Record{Name: ref.Name, Position: i, Embedding: ref.Embedding}
		}
		return tx.CreateInBatches(records, 100).Error
	})
	if err != nil {
		return errors.New(fmt.Errorf("failed to save identities: %w", err)).
			Component("identity").
			Category(errors.CategoryDatabase).
			Timing("save_identities", time.Since(start)).
			Context("count", len(refs)).
			Build()
	}
	return nil
}

// Close releases the database handle.
func (r *SQLiteRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
