// Package mirror replicates record writes into a Supabase Postgres project.
// Writes are queued in a local outbox table and flushed by a background
// worker, so the primary SQLite path never blocks on the remote database.
package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is one queued outbox row.
type Event struct {
	ID        uuid.UUID
	Kind      string
	Payload   []byte
	Attempts  int
	CreatedAt time.Time
}

// Outbox is the SQLite-backed event queue.
type Outbox struct {
	conn *sql.DB
}

func NewOutbox(conn *sql.DB) *Outbox {
	return &Outbox{conn: conn}
}

// Enqueue serializes the payload and appends it to the outbox.
func (o *Outbox) Enqueue(ctx context.Context, kind string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	_, err = o.conn.ExecContext(ctx, `
		INSERT INTO mirror_outbox (id, kind, payload) VALUES (?,?,?)`,
		uuid.New(), kind, string(data))
	return err
}

// Pending returns the oldest undelivered events, up to limit.
func (o *Outbox) Pending(ctx context.Context, limit int) ([]*Event, error) {
	rows, err := o.conn.QueryContext(ctx, `
		SELECT id, kind, payload, attempts, created_at FROM mirror_outbox
		WHERE delivered_at IS NULL ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var payload string
		if err := rows.Scan(&e.ID, &e.Kind, &payload, &e.Attempts, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = []byte(payload)
		events = append(events, &e)
	}
	return events, rows.Err()
}

// MarkDelivered stamps an event as mirrored.
func (o *Outbox) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	_, err := o.conn.ExecContext(ctx, `
		UPDATE mirror_outbox SET delivered_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

// MarkFailed bumps the attempt counter so stuck events are visible.
func (o *Outbox) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := o.conn.ExecContext(ctx, `
		UPDATE mirror_outbox SET attempts = attempts + 1 WHERE id = ?`, id)
	return err
}

// Depth counts undelivered events.
func (o *Outbox) Depth(ctx context.Context) (int, error) {
	var n int
	err := o.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mirror_outbox WHERE delivered_at IS NULL`).Scan(&n)
	return n, err
}

// Prune deletes delivered events older than the cutoff and reports how many
// rows went. The cutoff is rendered as UTC text to match the
// CURRENT_TIMESTAMP format of delivered_at.
func (o *Outbox) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := o.conn.ExecContext(ctx, `
		DELETE FROM mirror_outbox WHERE delivered_at IS NOT NULL AND delivered_at < ?`,
		before.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
