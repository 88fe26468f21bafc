package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordStepCountRejectsNegative(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo)

	_, err := svc.RecordStepCount(context.Background(), -1)
	require.ErrorIs(t, err, ErrNegativeCount)
	require.Empty(t, repo.records)
}

func TestRecordStepCountAssignsRepositoryID(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo)
	fixed := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	first, err := svc.RecordStepCount(context.Background(), 142)
	require.NoError(t, err)
	second, err := svc.RecordStepCount(context.Background(), 142)
	require.NoError(t, err)

	require.Equal(t, int64(1), first.ID)
	require.Equal(t, int64(2), second.ID)
	require.Equal(t, fixed, first.ReceivedAt)
}

func TestListStepCountsClampsLimit(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo)

	_, _, err := svc.ListStepCounts(context.Background(), nil, 0)
	require.NoError(t, err)
	require.Equal(t, DefaultListLimit, repo.lastLimit)

	_, _, err = svc.ListStepCounts(context.Background(), nil, 10)
	require.NoError(t, err)
	require.Equal(t, 10, repo.lastLimit)
}

func TestListStepCountsPages(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo)
	for i := 0; i < 5; i++ {
		_, err := svc.RecordStepCount(context.Background(), i*10)
		require.NoError(t, err)
	}

	page, next, err := svc.ListStepCounts(context.Background(), nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, &Cursor{AfterID: 2}, next)

	page, next, err = svc.ListStepCounts(context.Background(), next, 2)
	require.NoError(t, err)
	require.Equal(t, int64(3), page[0].ID)
	require.NotNil(t, next)

	page, next, err = svc.ListStepCounts(context.Background(), next, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Nil(t, next)
}

type memoryRepo struct {
	records   []StepCountRecord
	lastLimit int
}

func (m *memoryRepo) Create(_ context.Context, count int, receivedAt time.Time) (*StepCountRecord, error) {
	rec := StepCountRecord{ID: int64(len(m.records) + 1), Count: count, ReceivedAt: receivedAt}
	m.records = append(m.records, rec)
	return &rec, nil
}

func (m *memoryRepo) List(_ context.Context, after *Cursor, limit int) ([]StepCountRecord, error) {
	m.lastLimit = limit
	out := make([]StepCountRecord, 0, limit)
	for _, rec := range m.records {
		if after != nil && rec.ID <= after.AfterID {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, rec)
	}
	return out, nil
}
