package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sifan077/snaplink/internal/app/model"
)

// MaxRecentClicks caps how many click events a single QueryRecent call returns.
const MaxRecentClicks = 50

// ClickEventRepository defines the data access contract for click events.
type ClickEventRepository interface {
	Append(ctx context.Context, event *model.ClickEvent) error
	// QueryRecent returns up to limit unexpired events for id, newest first.
	QueryRecent(ctx context.Context, id string, limit int) ([]model.ClickEvent, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// PgxConn is the subset of pgxpool.Pool used by the click repository.
type PgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	insertClickSQL = `INSERT INTO clicks (id, "timestamp", referrer, user_agent, expires_at)
VALUES ($1, $2, $3, $4, $5)`

	recentClicksSQL = `SELECT seq, id, "timestamp", referrer, user_agent, expires_at
FROM clicks
WHERE id = $1 AND expires_at > $2
ORDER BY "timestamp" DESC, seq DESC
LIMIT $3`

	deleteExpiredClicksSQL = `DELETE FROM clicks WHERE expires_at <= $1`
)

type clickEventRepository struct {
	conn PgxConn
	now  func() time.Time
}

// NewClickEventRepository returns a pgx-backed ClickEventRepository.
func NewClickEventRepository(conn PgxConn) ClickEventRepository {
	return &clickEventRepository{conn: conn, now: time.Now}
}

func (r *clickEventRepository) Append(ctx context.Context, event *model.ClickEvent) error {
	_, err := r.conn.Exec(ctx, insertClickSQL,
		event.ID,
		event.Timestamp,
		event.Referrer,
		event.UserAgent,
		event.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert click: %w", err)
	}
	return nil
}

func (r *clickEventRepository) QueryRecent(ctx context.Context, id string, limit int) ([]model.ClickEvent, error) {
	limit = clampLimit(limit)

	rows, err := r.conn.Query(ctx, recentClicksSQL, id, r.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("query clicks: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ClickEvent, error) {
		var e model.ClickEvent
		err := row.Scan(&e.Seq, &e.ID, &e.Timestamp, &e.Referrer, &e.UserAgent, &e.ExpiresAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan clicks: %w", err)
	}
	if events == nil {
		events = []model.ClickEvent{}
	}
	return events, nil
}

func (r *clickEventRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.conn.Exec(ctx, deleteExpiredClicksSQL, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired clicks: %w", err)
	}
	return tag.RowsAffected(), nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxRecentClicks {
		return MaxRecentClicks
	}
	return limit
}
