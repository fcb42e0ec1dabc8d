package attempt

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"reflectcall-platform/pkg/utils"
)

// PostgresRepo persists call attempts in Postgres.
//
// NOTE: This repository assumes the following table exists:
// - call_attempts with UNIQUE (user_id, date)
//
// Update takes a row lock (FOR UPDATE) so that concurrent webhook
// callbacks and dispatcher ticks serialize per attempt.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const attemptColumns = `id, user_id, date, source, status, attempt_count, last_attempt_at, resulting_entry_id, fail_reason, created_at, updated_at`

func (r *PostgresRepo) Insert(ctx context.Context, a CallAttempt) error {
	const q = `
INSERT INTO call_attempts (
  id, user_id, date, source, status, attempt_count, last_attempt_at, resulting_entry_id, fail_reason, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
`
	_, err := r.db.ExecContext(ctx, q,
		a.ID,
		a.UserID,
		a.Date,
		a.Source,
		a.Status,
		a.AttemptCount,
		a.LastAttemptAt,
		a.ResultingEntryID,
		a.FailReason,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (CallAttempt, error) {
	const q = `SELECT ` + attemptColumns + ` FROM call_attempts WHERE id = $1`
	return scanAttempt(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) GetByKey(ctx context.Context, userID, date string) (CallAttempt, error) {
	const q = `SELECT ` + attemptColumns + ` FROM call_attempts WHERE user_id = $1 AND date = $2`
	return scanAttempt(r.db.QueryRowContext(ctx, q, userID, date))
}

func (r *PostgresRepo) Update(ctx context.Context, id string, mutate func(*CallAttempt) error) (CallAttempt, error) {
	var out CallAttempt
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const sel = `SELECT ` + attemptColumns + ` FROM call_attempts WHERE id = $1 FOR UPDATE`
		a, err := scanAttempt(tx.QueryRowContext(ctx, sel, id))
		if err != nil {
			return err
		}
		if err := mutate(&a); err != nil {
			return err
		}
		const upd = `
UPDATE call_attempts
SET status = $2, attempt_count = $3, last_attempt_at = $4,
    resulting_entry_id = $5, fail_reason = $6, updated_at = $7
WHERE id = $1
`
		if _, err := tx.ExecContext(ctx, upd,
			a.ID,
			a.Status,
			a.AttemptCount,
			a.LastAttemptAt,
			a.ResultingEntryID,
			a.FailReason,
			a.UpdatedAt,
		); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return CallAttempt{}, err
	}
	return out, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, userID, date string) error {
	const q = `DELETE FROM call_attempts WHERE user_id = $1 AND date = $2`
	res, err := r.db.ExecContext(ctx, q, userID, date)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) ListByUser(ctx context.Context, userID string) ([]CallAttempt, error) {
	const q = `SELECT ` + attemptColumns + ` FROM call_attempts WHERE user_id = $1 ORDER BY date`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallAttempt, 0)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListInRange(ctx context.Context, userID string, from, to time.Time) ([]CallAttempt, error) {
	const q = `SELECT ` + attemptColumns + ` FROM call_attempts
WHERE ($1 = '' OR user_id = $1) AND created_at >= $2 AND created_at < $3
ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallAttempt, 0)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (CallAttempt, error) {
	var a CallAttempt
	var lastAttemptAt sql.NullTime
	var entryID, failReason sql.NullString
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Date,
		&a.Source,
		&a.Status,
		&a.AttemptCount,
		&lastAttemptAt,
		&entryID,
		&failReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallAttempt{}, ErrNotFound
		}
		return CallAttempt{}, err
	}
	if lastAttemptAt.Valid {
		t := lastAttemptAt.Time
		a.LastAttemptAt = &t
	}
	a.ResultingEntryID = entryID.String
	a.FailReason = failReason.String
	return a, nil
}

func isUniqueViolation(err error) bool {
	// pgx stdlib surfaces SQLSTATE 23505 in the error string; matching on it
	// avoids importing pgconn here.
	return err != nil && strings.Contains(err.Error(), "23505")
}
