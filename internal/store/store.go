// Package store persists accounts, archived tweets and the stats row.
package store

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tmdnlcl/relay-worker/internal/config"
)

type Store struct {
	db     *gorm.DB
	blobs  *BlobStore
	sealer *TokenSealer
}

// Open connects to the sqlite database and media directory named by cfg and
// migrates the schema.
func Open(cfg config.StoreConfig) (*Store, error) {
	dsn := cfg.DatabasePath + "?_busy_timeout=5000&_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite has a single writer.
	sqlDB.SetMaxOpenConns(1)

	blobs, err := NewBlobStore(cfg.BlobDir)
	if err != nil {
		return nil, err
	}
	sealer, err := NewTokenSealer(cfg.TokenKey)
	if err != nil {
		return nil, err
	}
	s, err := New(db, blobs)
	if err != nil {
		return nil, err
	}
	s.sealer = sealer
	logrus.Infof("Opened database %s", cfg.DatabasePath)
	return s, nil
}

// New wraps an open database and runs migrations.
func New(db *gorm.DB, blobs *BlobStore) (*Store, error) {
	s := &Store{db: db, blobs: blobs}
	if err := s.db.AutoMigrate(&AccountModel{}, &TweetModel{}, &AttachmentModel{}, &StatsModel{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database connection.
func (s *Store) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
