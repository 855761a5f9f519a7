package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"geyserRelay/internal/storage"
)

// Store provides Postgres persistence for event envelopes.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the events table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			kind TEXT NOT NULL,
			slot BIGINT NOT NULL,
			received_at TIMESTAMPTZ NOT NULL,
			payload JSONB NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// WriteEvents inserts a batch of envelopes.
func (s *Store) WriteEvents(ctx context.Context, envelopes []storage.Envelope) error {
	if len(envelopes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, envelope := range envelopes {
		batch.Queue(`
			INSERT INTO events (kind, slot, received_at, payload)
			VALUES ($1, $2, $3, $4)
		`,
			envelope.Kind,
			int64(envelope.Slot),
			envelope.ReceivedAt,
			[]byte(envelope.Payload),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range envelopes {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
