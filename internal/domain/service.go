// Package domain defines the step-count entity and the business logic of the remote API.
package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNegativeCount is returned when a step count below zero is submitted.
	ErrNegativeCount = errors.New("count must be >= 0")
)

// DefaultListLimit bounds list queries when the caller does not supply a limit.
const DefaultListLimit = 500

// StepCountRepository captures server-side persistence operations.
type StepCountRepository interface {
	Create(ctx context.Context, count int, receivedAt time.Time) (*StepCountRecord, error)
	List(ctx context.Context, after *Cursor, limit int) ([]StepCountRecord, error)
}

// Service orchestrates step-count workflows behind the HTTP API.
type Service struct {
	repo StepCountRepository
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo StepCountRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// RecordStepCount persists a submitted count. Client supplied ids are ignored; the
// repository assigns its own.
func (s *Service) RecordStepCount(ctx context.Context, count int) (*StepCountRecord, error) {
	if count < 0 {
		return nil, ErrNegativeCount
	}
	return s.repo.Create(ctx, count, s.now().UTC())
}

// ListStepCounts returns up to limit records after cursor, oldest first. The returned cursor
// is nil once the last page has been read.
func (s *Service) ListStepCounts(ctx context.Context, cursor *Cursor, limit int) ([]StepCountRecord, *Cursor, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	records, err := s.repo.List(ctx, cursor, limit)
	if err != nil {
		return nil, nil, err
	}

	var next *Cursor
	if len(records) == limit {
		next = &Cursor{AfterID: records[len(records)-1].ID}
	}
	return records, next, nil
}
