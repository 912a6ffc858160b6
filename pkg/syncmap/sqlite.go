package syncmap

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// entry is the table row behind SQLiteStore.
type entry struct {
	Identity string `gorm:"primaryKey"`
	EventID  string
	Hash     string
}

func (entry) TableName() string { return "sync_entries" }

// SQLiteStore keeps the sync map in a SQLite database, for installs where
// the mapping has outgrown a single JSON file. SQLite's journal gives the
// same crash safety the file store gets from temp-and-rename.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite opens (and if needed creates) the database at path and runs
// migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(DELETE)&_pragma=busy_timeout(5000)", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sync map database: %w", err)
	}
	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, fmt.Errorf("migrate sync map database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load() (map[string]Record, error) {
	var rows []entry
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	mapping := make(map[string]Record, len(rows))
	for _, r := range rows {
		mapping[r.Identity] = Record{EventID: r.EventID, Hash: r.Hash}
	}
	return mapping, nil
}

func (s *SQLiteStore) Save(mapping map[string]Record) error {
	rows := make([]entry, 0, len(mapping))
	for identity, rec := range mapping {
		rows = append(rows, entry{Identity: identity, EventID: rec.EventID, Hash: rec.Hash})
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&entry{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 200).Error
	})
}

func (s *SQLiteStore) Reset() error {
	return s.db.Where("1 = 1").Delete(&entry{}).Error
}

// Close releases the underlying connection.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
