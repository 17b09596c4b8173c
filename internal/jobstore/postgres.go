// Package jobstore provides durable jobs.Store implementations.
package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jackzampolin/folio/internal/jobs"
)

// The full record lives in doc; the other columns exist for filtering.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS translation_jobs (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL DEFAULT '',
		status     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		doc        JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS translation_jobs_user_created_idx ON translation_jobs (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS translation_jobs_status_idx ON translation_jobs (status)`,
}

// PostgresConfig configures a Postgres store.
type PostgresConfig struct {
	URL    string
	Logger *slog.Logger
}

// Postgres stores jobs in a single table. Updates lock the row with
// SELECT ... FOR UPDATE so concurrent writers serialize.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres connects, verifies the connection and creates the schema.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if cfg.URL == "" {
		return nil, errors.New("postgres url is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := &Postgres{pool: pool, logger: logger}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("postgres job store ready")
	return s, nil
}

func (s *Postgres) migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Create inserts a new job.
func (s *Postgres) Create(ctx context.Context, job *jobs.Job) error {
	doc, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO translation_jobs (id, user_id, status, created_at, updated_at, doc)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.UserID, string(job.Status), job.CreatedAt, job.UpdatedAt, doc)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("job %s already exists", job.ID)
		}
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// Get returns a job by id.
func (s *Postgres) Get(ctx context.Context, id string) (*jobs.Job, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM translation_jobs WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, jobs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	return decodeJob(doc)
}

// Update applies fn inside a transaction holding the row lock.
func (s *Postgres) Update(ctx context.Context, id string, fn func(*jobs.Job) error) (*jobs.Job, error) {
	var out *jobs.Job
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var doc []byte
		err := tx.QueryRow(ctx, `SELECT doc FROM translation_jobs WHERE id = $1 FOR UPDATE`, id).Scan(&doc)
		if errors.Is(err, pgx.ErrNoRows) {
			return jobs.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock job: %w", err)
		}

		job, err := decodeJob(doc)
		if err != nil {
			return err
		}
		if err := fn(job); err != nil {
			return err
		}
		job.UpdatedAt = time.Now().UTC()

		next, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to encode job: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE translation_jobs SET user_id = $2, status = $3, updated_at = $4, doc = $5 WHERE id = $1`,
			id, job.UserID, string(job.Status), job.UpdatedAt, next); err != nil {
			return fmt.Errorf("failed to write job: %w", err)
		}
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns matching jobs, newest first.
func (s *Postgres) List(ctx context.Context, filter jobs.ListFilter) ([]*jobs.Job, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT doc FROM translation_jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.EffectiveLimit())
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	docs, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs: %w", err)
	}

	out := make([]*jobs.Job, 0, len(docs))
	for _, doc := range docs {
		job, err := decodeJob(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

// Ping checks the connection.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

func decodeJob(doc []byte) (*jobs.Job, error) {
	var job jobs.Job
	if err := json.Unmarshal(doc, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	if job.Pages == nil {
		job.Pages = []jobs.PageRecord{}
	}
	return &job, nil
}

var (
	_ jobs.Store  = (*Postgres)(nil)
	_ jobs.Pinger = (*Postgres)(nil)
	_ jobs.Closer = (*Postgres)(nil)
)
