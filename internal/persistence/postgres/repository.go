package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/stepcount/internal/domain"
	"example.com/stepcount/internal/events"
	"example.com/stepcount/internal/observability"
)

//go:embed schema.sql
var schema string

const aggregateStepCount = "step_count"

// Repository provides Postgres-backed persistence for step counts and outbox events.
type Repository struct {
	pool  *pgxpool.Pool
	topic string
}

// NewRepository constructs a Repository whose outbox events target topic.
func NewRepository(pool *pgxpool.Pool, topic string) *Repository {
	return &Repository{pool: pool, topic: topic}
}

// Migrate creates the tables the repository and the outbox dispatcher need.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Create persists the count and records a stepcount.recorded outbox event inside a single transaction.
func (r *Repository) Create(ctx context.Context, count int, receivedAt time.Time) (rec *domain.StepCountRecord, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	record := domain.StepCountRecord{Count: count, ReceivedAt: receivedAt}
	err = tx.QueryRow(ctx,
		`INSERT INTO step_counts (count, received_at) VALUES ($1, $2) RETURNING id`,
		count, receivedAt,
	).Scan(&record.ID)
	if err != nil {
		return nil, err
	}

	if err = r.insertOutbox(ctx, tx, record); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	observability.RecordStepCountPersisted(receivedAt)
	return &record, nil
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, record domain.StepCountRecord) error {
	body, err := json.Marshal(events.StepCountRecorded{
		ID:         record.ID,
		Count:      record.Count,
		ReceivedAt: record.ReceivedAt,
	})
	if err != nil {
		return err
	}

	id := strconv.FormatInt(record.ID, 10)
	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err = tx.Exec(ctx, stmt,
		aggregateStepCount,
		id,
		events.StepCountRecordedType,
		r.topic,
		id,
		body,
		fmt.Sprintf("%s:%s", id, events.StepCountRecordedType),
	)
	return err
}

// List returns up to limit records with ids greater than after, ordered by id.
func (r *Repository) List(ctx context.Context, after *domain.Cursor, limit int) ([]domain.StepCountRecord, error) {
	var afterID int64
	if after != nil {
		afterID = after.AfterID
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, count, received_at FROM step_counts WHERE id > $1 ORDER BY id ASC LIMIT $2`,
		afterID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.StepCountRecord, 0, limit)
	for rows.Next() {
		var rec domain.StepCountRecord
		if err := rows.Scan(&rec.ID, &rec.Count, &rec.ReceivedAt); err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
