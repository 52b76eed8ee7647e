package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"portfolio-advisor/internal/domain"
	"portfolio-advisor/internal/domain/model"
	"portfolio-advisor/internal/domain/ports/repository"
)

var _ repository.AdvisoryJobRepository = (*advisoryJobRepo)(nil)

const uniqueViolation = "23505"

type advisoryJobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewAdvisoryJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *advisoryJobRepo {
	return &advisoryJobRepo{pool: pool, tm: tm}
}

const jobColumns = `id, status, user_id, prompt, prompts, responses, result, error, created_at, completed_at, expires_at`

func (r *advisoryJobRepo) Create(ctx context.Context, job *model.AdvisoryJob) error {
	const q = `
INSERT INTO advisory_jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, NULL, NULL, $7, NULL, $8);`

	_, err := execSQL(ctx, r.pool, nil, q,
		job.ID, string(job.Status), job.Input.UserID, job.Input.Prompt,
		nonNil(job.Input.Prompts), nonNil(job.Input.Responses),
		job.CreatedAt, job.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert advisory job: %w", err)
	}
	return nil
}

// Get treats a record past its expiry as gone, even before DeleteExpired runs.
func (r *advisoryJobRepo) Get(ctx context.Context, id string) (*model.AdvisoryJob, error) {
	row, err := pickRow(ctx, r.pool, nil, `SELECT `+jobColumns+` FROM advisory_jobs WHERE id = $1 AND expires_at > now();`, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

// Finalize locks the row, checks it is still PROCESSING and writes the
// terminal fields in the same transaction.
func (r *advisoryJobRepo) Finalize(ctx context.Context, id string, out model.JobOutcome) error {
	if err := out.Validate(); err != nil {
		return err
	}
	return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		row, err := pickRow(ctx, r.pool, tx, `SELECT status FROM advisory_jobs WHERE id = $1 FOR UPDATE;`, id)
		if err != nil {
			return err
		}
		var status string
		if err := row.Scan(&status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		if model.AdvisoryJobStatus(status).IsTerminal() {
			return domain.ErrJobAlreadyFinal
		}

		const q = `
UPDATE advisory_jobs
SET status = $2, result = NULLIF($3, ''), error = NULLIF($4, ''), completed_at = $5
WHERE id = $1 AND status = 'PROCESSING';`
		tag, err := execSQL(ctx, r.pool, tx, q, id, string(out.Status), out.Result, out.Error, out.CompletedAt)
		if err != nil {
			return fmt.Errorf("finalize advisory job: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrJobAlreadyFinal
		}
		return nil
	})
}

func (r *advisoryJobRepo) ListStaleProcessing(ctx context.Context, createdBefore time.Time, limit int) ([]*model.AdvisoryJob, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := queryRows(ctx, r.pool, nil, `
SELECT `+jobColumns+`
FROM advisory_jobs
WHERE status = 'PROCESSING' AND created_at < $1
ORDER BY created_at
LIMIT $2;`, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	defer rows.Close()

	var out []*model.AdvisoryJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *advisoryJobRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := execSQL(ctx, r.pool, nil, `DELETE FROM advisory_jobs WHERE expires_at < $1;`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanJob(row pgx.Row) (*model.AdvisoryJob, error) {
	var (
		j           model.AdvisoryJob
		status      string
		result, msg sql.NullString
		completedAt sql.NullTime
	)
	err := row.Scan(
		&j.ID, &status, &j.Input.UserID, &j.Input.Prompt, &j.Input.Prompts, &j.Input.Responses,
		&result, &msg, &j.CreatedAt, &completedAt, &j.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	j.Status = model.AdvisoryJobStatus(status)
	j.Result = result.String
	j.Error = msg.String
	j.CreatedAt = j.CreatedAt.UTC()
	j.ExpiresAt = j.ExpiresAt.UTC()
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		j.CompletedAt = &t
	}
	return &j, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
