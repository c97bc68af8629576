package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// kvEntry is one row of the kv_entries table.
type kvEntry struct {
	Key       string `gorm:"column:key;primaryKey"`
	Value     string `gorm:"column:value;not null;default:''"`
	UpdatedAt int64  `gorm:"column:updated_at;not null;default:0"`
}

func (kvEntry) TableName() string { return "kv_entries" }

// SQLiteKV stores each key as a row in a local SQLite database.
type SQLiteKV struct {
	db *gorm.DB
}

func OpenSQLite(path string) (*SQLiteKV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	gdb, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
	}, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	kv := &SQLiteKV{db: gdb}
	if err := gdb.Exec(`PRAGMA journal_mode=WAL;`).Error; err != nil {
		_ = kv.Close()
		return nil, err
	}
	if err := gdb.Exec(`PRAGMA busy_timeout=5000;`).Error; err != nil {
		_ = kv.Close()
		return nil, err
	}
	if err := gdb.AutoMigrate(&kvEntry{}); err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("migrate kv_entries: %w", err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}
	return kv, nil
}

func (s *SQLiteKV) Get(key string) ([]byte, bool, error) {
	var row kvEntry
	err := s.db.Model(&kvEntry{}).Select("value").Where("key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(row.Value), true, nil
}

func (s *SQLiteKV) Put(entries map[string][]byte) error {
	now := time.Now().UTC().Unix()
	return s.db.Transaction(func(tx *gorm.DB) error {
		for key, value := range entries {
			if err := upsertEntry(tx, key, string(value), now); err != nil {
				return fmt.Errorf("upsert %s: %w", key, err)
			}
		}
		return nil
	})
}

func (s *SQLiteKV) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func upsertEntry(tx *gorm.DB, key, value string, now int64) error {
	row := kvEntry{Key: key, Value: value, UpdatedAt: now}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      row.Value,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error
}
