// Package audit persists record-access audit entries to the audit_log table.
package audit

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aficare/medilink/internal/platform/middleware"
)

// Store writes audit entries to SQLite and implements
// middleware.AuditRecorder.
type Store struct {
	conn *sql.DB
}

func NewStore(conn *sql.DB) *Store {
	return &Store{conn: conn}
}

// recordTimeout bounds audit writes so a slow disk cannot stall requests.
const recordTimeout = 5 * time.Second

func (s *Store) RecordAccess(entry middleware.AuditEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO audit_log (id, user_id, user_roles, resource, medilink_id,
			action, ip_address, user_agent, path, method, request_id, status_code, occurred_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		uuid.New(), entry.UserID, strings.Join(entry.UserRoles, ","), entry.Resource,
		entry.MediLinkID, entry.Action, entry.IPAddress, entry.UserAgent,
		entry.Path, entry.Method, entry.RequestID, entry.StatusCode, entry.Timestamp)
	return err
}

// Entry is an audit_log row as returned by queries.
type Entry struct {
	ID         uuid.UUID `json:"id"`
	UserID     string    `json:"user_id"`
	UserRoles  string    `json:"user_roles"`
	Resource   string    `json:"resource"`
	MediLinkID string    `json:"medilink_id"`
	Action     string    `json:"action"`
	IPAddress  string    `json:"ip_address"`
	Path       string    `json:"path"`
	Method     string    `json:"method"`
	RequestID  string    `json:"request_id"`
	StatusCode int       `json:"status_code"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Query filters audit_log reads. Zero values mean no filter.
type Query struct {
	MediLinkID string
	UserID     string
	Action     string
	Since      time.Time
}

// Find returns matching entries, newest first.
func (s *Store) Find(ctx context.Context, q Query, limit, offset int) ([]*Entry, int, error) {
	query := `SELECT id, user_id, user_roles, resource, medilink_id, action,
		ip_address, path, method, request_id, status_code, occurred_at
		FROM audit_log WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM audit_log WHERE 1=1`
	var args []interface{}

	if q.MediLinkID != "" {
		query += ` AND medilink_id = ?`
		countQuery += ` AND medilink_id = ?`
		args = append(args, q.MediLinkID)
	}
	if q.UserID != "" {
		query += ` AND user_id = ?`
		countQuery += ` AND user_id = ?`
		args = append(args, q.UserID)
	}
	if q.Action != "" {
		query += ` AND action = ?`
		countQuery += ` AND action = ?`
		args = append(args, q.Action)
	}
	if !q.Since.IsZero() {
		query += ` AND occurred_at >= ?`
		countQuery += ` AND occurred_at >= ?`
		args = append(args, q.Since)
	}

	var total int
	if err := s.conn.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY occurred_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserRoles, &e.Resource, &e.MediLinkID,
			&e.Action, &e.IPAddress, &e.Path, &e.Method, &e.RequestID,
			&e.StatusCode, &e.OccurredAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &e)
	}
	return items, total, rows.Err()
}
