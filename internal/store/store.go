// Package store is the gorm-backed Reward Store: row CRUD over users, tree
// links, rewards and ambassadors. Every method is a single statement except
// CreditReward, which pairs the reward claim with the balance credit in one
// transaction. Counters are mutated
// with in-database arithmetic so concurrent credits are never lost.
package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/loyaltyclub/backend/internal/apperrors"
)

// Store implements the reward store on top of gorm
type Store struct {
	db *gorm.DB
}

// New creates a new store
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping checks connectivity to the backing database
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return apperrors.Store("ping", err)
	}
	return apperrors.Store("ping", sqlDB.PingContext(ctx))
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// first loads one row, translating gorm.ErrRecordNotFound
func first(q *gorm.DB, dest interface{}, entity, id string) error {
	err := q.First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(entity, id)
	}
	return apperrors.Store("load "+entity, err)
}
