package access

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

type accessRepoSQLite struct{ conn *sql.DB }

func NewRepoSQLite(conn *sql.DB) Repository { return &accessRepoSQLite{conn: conn} }

const grantCols = `id, code, medilink_id, perm_demographics, perm_history,
	perm_consultations, expires_at, revoked, created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *accessRepoSQLite) scanGrant(row rowScanner) (*AccessGrant, error) {
	var g AccessGrant
	err := row.Scan(&g.ID, &g.Code, &g.MediLinkID, &g.PermDemographics, &g.PermHistory,
		&g.PermConsultations, &g.ExpiresAt, &g.Revoked, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &g, err
}

func (r *accessRepoSQLite) Create(ctx context.Context, g *AccessGrant) error {
	g.ID = uuid.New()
	_, err := r.conn.ExecContext(ctx, `
		INSERT INTO access_grants (id, code, medilink_id, perm_demographics,
			perm_history, perm_consultations, expires_at, created_by)
		VALUES (?,?,?,?,?,?,?,?)`,
		g.ID, g.Code, g.MediLinkID, g.PermDemographics,
		g.PermHistory, g.PermConsultations, g.ExpiresAt, g.CreatedBy)
	return err
}

func (r *accessRepoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*AccessGrant, error) {
	return r.scanGrant(r.conn.QueryRowContext(ctx,
		`SELECT `+grantCols+` FROM access_grants WHERE id = ?`, id))
}

func (r *accessRepoSQLite) GetByCode(ctx context.Context, code string) (*AccessGrant, error) {
	return r.scanGrant(r.conn.QueryRowContext(ctx,
		`SELECT `+grantCols+` FROM access_grants WHERE code = ?`, code))
}

func (r *accessRepoSQLite) ListByMediLinkID(ctx context.Context, medilinkID string, limit, offset int) ([]*AccessGrant, int, error) {
	var total int
	if err := r.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM access_grants WHERE medilink_id = ?`, medilinkID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+grantCols+` FROM access_grants WHERE medilink_id = ?
		 ORDER BY created_at DESC LIMIT ? OFFSET ?`, medilinkID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AccessGrant
	for rows.Next() {
		g, err := r.scanGrant(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, g)
	}
	return items, total, rows.Err()
}

func (r *accessRepoSQLite) Revoke(ctx context.Context, id uuid.UUID) error {
	res, err := r.conn.ExecContext(ctx, `
		UPDATE access_grants SET revoked = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
