package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS batch_runs (
	id          uuid PRIMARY KEY,
	input       text NOT NULL,
	output      text NOT NULL,
	files       integer NOT NULL,
	sessions    integer NOT NULL,
	records     integer NOT NULL,
	failures    integer NOT NULL,
	started_at  timestamptz NOT NULL,
	finished_at timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS training_records (
	id         uuid PRIMARY KEY,
	run_id     uuid NOT NULL REFERENCES batch_runs(id) ON DELETE CASCADE,
	position   integer NOT NULL,
	source     text NOT NULL,
	turns      integer NOT NULL,
	record     jsonb NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now(),
	UNIQUE (run_id, position)
);`

// EnsureSchema creates the archive tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
