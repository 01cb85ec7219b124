package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("not found")

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a copy of q that runs its statements inside tx.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

type Session struct {
	ID        string
	CreatedAt time.Time
}

const createSession = `INSERT INTO sessions (id) VALUES ($1) RETURNING id, created_at`

func (q *Queries) CreateSession(ctx context.Context, id string) (Session, error) {
	var s Session
	err := q.db.QueryRow(ctx, createSession, id).Scan(&s.ID, &s.CreatedAt)
	return s, err
}

type Export struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Filename  string    `json:"filename"`
	Width     int32     `json:"width"`
	Height    int32     `json:"height"`
	Bytes     int64     `json:"bytes"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateExportParams struct {
	ID        string
	SessionID string
	Filename  string
	Width     int32
	Height    int32
	Bytes     int64
}

const createExport = `INSERT INTO exports (id, session_id, filename, width, height, bytes)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, session_id, filename, width, height, bytes, created_at`

func (q *Queries) CreateExport(ctx context.Context, arg CreateExportParams) (Export, error) {
	row := q.db.QueryRow(ctx, createExport, arg.ID, arg.SessionID, arg.Filename, arg.Width, arg.Height, arg.Bytes)
	return scanExport(row)
}

const getExport = `SELECT id, session_id, filename, width, height, bytes, created_at
FROM exports WHERE id = $1`

func (q *Queries) GetExport(ctx context.Context, id string) (Export, error) {
	e, err := scanExport(q.db.QueryRow(ctx, getExport, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Export{}, ErrNotFound
	}
	return e, err
}

const listExportsBySession = `SELECT id, session_id, filename, width, height, bytes, created_at
FROM exports WHERE session_id = $1
ORDER BY created_at DESC
LIMIT $2`

func (q *Queries) ListExportsBySession(ctx context.Context, sessionID string, limit int32) ([]Export, error) {
	rows, err := q.db.Query(ctx, listExportsBySession, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Export
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func scanExport(row pgx.Row) (Export, error) {
	var e Export
	err := row.Scan(&e.ID, &e.SessionID, &e.Filename, &e.Width, &e.Height, &e.Bytes, &e.CreatedAt)
	return e, err
}
