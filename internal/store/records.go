package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/doppel/internal/dataset"
)

// Run describes one batch run.
type Run struct {
	ID         uuid.UUID
	Input      string
	Output     string
	Files      int
	Sessions   int
	Records    int
	Failures   int
	StartedAt  time.Time
	FinishedAt time.Time
}

// SourcedRecord is a training record with the transcript file it came from.
type SourcedRecord struct {
	Source string
	Record dataset.Record
}

// ArchiveRun writes the run and all of its records in one transaction.
func (s *Store) ArchiveRun(ctx context.Context, run Run, records []SourcedRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO batch_runs (id, input, output, files, sessions, records, failures, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.Input, run.Output, run.Files, run.Sessions, run.Records, run.Failures, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, r := range records {
		data, err := dataset.Marshal(r.Record)
		if err != nil {
			return fmt.Errorf("marshal record %d: %w", i, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO training_records (id, run_id, position, source, turns, record)
			VALUES ($1, $2, $3, $4, $5, $6::jsonb)`,
			uuid.New(), run.ID, i, r.Source, len(r.Record.Contents), string(data),
		)
		if err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetRunRecords returns a run's records in their original order.
func (s *Store) GetRunRecords(ctx context.Context, runID uuid.UUID) ([]SourcedRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT source, record FROM training_records
		WHERE run_id = $1
		ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []SourcedRecord
	for rows.Next() {
		var (
			source string
			raw    []byte
		)
		if err := rows.Scan(&source, &raw); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var rec dataset.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, SourcedRecord{Source: source, Record: rec})
	}
	return out, rows.Err()
}

// GetRun loads a run summary by id.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var r Run
	err := s.pool.QueryRow(ctx, `
		SELECT id, input, output, files, sessions, records, failures, started_at, finished_at
		FROM batch_runs WHERE id = $1`, id,
	).Scan(&r.ID, &r.Input, &r.Output, &r.Files, &r.Sessions, &r.Records, &r.Failures, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &r, nil
}
