package journal

import (
	"context"
	"database/sql"
	"errors"

	"reflectcall-platform/internal/session"
	"reflectcall-platform/pkg/utils"
)

// PostgresStore persists journal entries in Postgres.
//
// NOTE: This store assumes the following tables exist:
// - journal_entries
// - journal_responses (one row per answered prompt, ordered by position)
//
// Entry and response rows are written in one transaction; a partially
// materialized entry must never be observable.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) Insert(ctx context.Context, e Entry) error {
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const q = `
INSERT INTO journal_entries (
  id, user_id, attempt_id, session_id, date, rating, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7
)
`
		var rating sql.NullInt64
		if e.Rating != nil {
			rating = sql.NullInt64{Int64: int64(*e.Rating), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, q,
			e.ID,
			e.UserID,
			e.AttemptID,
			e.SessionID,
			e.Date,
			rating,
			e.CreatedAt,
		); err != nil {
			return err
		}

		const qr = `
INSERT INTO journal_responses (
  entry_id, position, prompt_id, answer, recorded_at
) VALUES (
  $1,$2,$3,$4,$5
)
`
		for i, r := range e.Responses {
			if _, err := tx.ExecContext(ctx, qr, e.ID, i, r.PromptID, r.Answer, r.RecordedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Entry, error) {
	const q = `
SELECT id, user_id, attempt_id, session_id, date, rating, created_at
FROM journal_entries
WHERE id = $1
`
	e, err := scanEntry(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return Entry{}, err
	}
	if err := s.loadResponses(ctx, &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]Entry, error) {
	q := `
SELECT id, user_id, attempt_id, session_id, date, rating, created_at
FROM journal_entries
WHERE user_id = $1
ORDER BY created_at DESC
`
	args := []any{userID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.loadResponses(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *PostgresStore) loadResponses(ctx context.Context, e *Entry) error {
	const q = `
SELECT prompt_id, answer, recorded_at
FROM journal_responses
WHERE entry_id = $1
ORDER BY position
`
	rows, err := s.db.QueryContext(ctx, q, e.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var r session.Response
		var recordedAt sql.NullTime
		if err := rows.Scan(&r.PromptID, &r.Answer, &recordedAt); err != nil {
			return err
		}
		if recordedAt.Valid {
			r.RecordedAt = recordedAt.Time
		}
		e.Responses = append(e.Responses, r)
	}
	return rows.Err()
}

type entryScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row entryScanner) (Entry, error) {
	var e Entry
	var rating sql.NullInt64
	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.AttemptID,
		&e.SessionID,
		&e.Date,
		&rating,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	if rating.Valid {
		v := int(rating.Int64)
		e.Rating = &v
	}
	return e, nil
}
