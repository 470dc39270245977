// Package history persists rendezvous registrations so operators can audit
// which identities connected and when.
package history

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Registration struct {
	ID             uint   `gorm:"primaryKey"`
	PeerID         string `gorm:"index"`
	RegisteredAt   time.Time
	DisconnectedAt *time.Time
}

type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the registration history at path. Use ":memory:"
// for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if err := db.AutoMigrate(&Registration{}); err != nil {
		return nil, fmt.Errorf("migrating history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// RecordRegistration inserts a row for a freshly registered peer and
// returns its record id, used later to stamp the disconnect.
func (s *Store) RecordRegistration(peerID string) (uint, error) {
	reg := Registration{
		PeerID:       peerID,
		RegisteredAt: time.Now(),
	}
	if err := s.db.Create(&reg).Error; err != nil {
		return 0, err
	}
	return reg.ID, nil
}

func (s *Store) RecordDisconnect(recordID uint) error {
	now := time.Now()
	return s.db.Model(&Registration{}).
		Where("id = ?", recordID).
		Update("disconnected_at", &now).Error
}

// Registrations returns the recorded sessions for one peer id, oldest
// first.
func (s *Store) Registrations(peerID string) ([]Registration, error) {
	var regs []Registration
	err := s.db.Where("peer_id = ?", peerID).Order("id").Find(&regs).Error
	return regs, err
}
