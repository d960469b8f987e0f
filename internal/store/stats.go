package store

import (
	"context"
	"time"

	"gorm.io/gorm"
)

const statsID = 1

// StatsHandle is the single stats row, created on first access.
type StatsHandle struct {
	db *gorm.DB
}

func (s *Store) OpenStats(ctx context.Context) (*StatsHandle, error) {
	var m StatsModel
	if err := s.db.WithContext(ctx).FirstOrCreate(&m, StatsModel{ID: statsID}).Error; err != nil {
		return nil, err
	}
	return &StatsHandle{db: s.db}, nil
}

// Touch records a successful cycle.
func (h *StatsHandle) Touch(ctx context.Context, now time.Time) error {
	return h.db.WithContext(ctx).Model(&StatsModel{}).Where("id = ?", statsID).Update("last_update", now).Error
}

func (h *StatsHandle) LastUpdate(ctx context.Context) (*time.Time, error) {
	var m StatsModel
	if err := h.db.WithContext(ctx).First(&m, statsID).Error; err != nil {
		return nil, err
	}
	return m.LastUpdate, nil
}
