package patient

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

type patientRepoSQLite struct{ conn *sql.DB }

func NewRepoSQLite(conn *sql.DB) Repository { return &patientRepoSQLite{conn: conn} }

const patientCols = `id, medilink_id, first_name, last_name, birth_date, gender,
	phone, email, address_line, city, country, blood_group, allergies,
	chronic_conditions, current_medications, emergency_contact, emergency_phone,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *patientRepoSQLite) scanPatient(row rowScanner) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.MediLinkID, &p.FirstName, &p.LastName, &p.BirthDate, &p.Gender,
		&p.Phone, &p.Email, &p.AddressLine, &p.City, &p.Country, &p.BloodGroup, &p.Allergies,
		&p.ChronicConditions, &p.CurrentMedications, &p.EmergencyContact, &p.EmergencyPhone,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *patientRepoSQLite) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn.ExecContext(ctx, `
		INSERT INTO patients (id, medilink_id, first_name, last_name, birth_date, gender,
			phone, email, address_line, city, country, blood_group, allergies,
			chronic_conditions, current_medications, emergency_contact, emergency_phone)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.MediLinkID, p.FirstName, p.LastName, p.BirthDate, p.Gender,
		p.Phone, p.Email, p.AddressLine, p.City, p.Country, p.BloodGroup, p.Allergies,
		p.ChronicConditions, p.CurrentMedications, p.EmergencyContact, p.EmergencyPhone)
	return err
}

func (r *patientRepoSQLite) GetByMediLinkID(ctx context.Context, medilinkID string) (*Patient, error) {
	return r.scanPatient(r.conn.QueryRowContext(ctx,
		`SELECT `+patientCols+` FROM patients WHERE medilink_id = ?`, medilinkID))
}

func (r *patientRepoSQLite) Update(ctx context.Context, p *Patient) error {
	res, err := r.conn.ExecContext(ctx, `
		UPDATE patients SET first_name=?, last_name=?, birth_date=?, gender=?,
			phone=?, email=?, address_line=?, city=?, country=?, blood_group=?,
			allergies=?, chronic_conditions=?, current_medications=?,
			emergency_contact=?, emergency_phone=?, updated_at=CURRENT_TIMESTAMP
		WHERE id = ?`,
		p.FirstName, p.LastName, p.BirthDate, p.Gender,
		p.Phone, p.Email, p.AddressLine, p.City, p.Country, p.BloodGroup,
		p.Allergies, p.ChronicConditions, p.CurrentMedications,
		p.EmergencyContact, p.EmergencyPhone, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *patientRepoSQLite) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.conn.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *patientRepoSQLite) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+patientCols+` FROM patients ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *patientRepoSQLite) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	query := `SELECT ` + patientCols + ` FROM patients WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM patients WHERE 1=1`
	var args []interface{}

	if p, ok := params["medilink_id"]; ok {
		query += ` AND medilink_id = ?`
		countQuery += ` AND medilink_id = ?`
		args = append(args, p)
	}
	if p, ok := params["name"]; ok {
		clause := ` AND (first_name LIKE ? OR last_name LIKE ?)`
		query += clause
		countQuery += clause
		args = append(args, "%"+p+"%", "%"+p+"%")
	}
	if p, ok := params["phone"]; ok {
		query += ` AND phone = ?`
		countQuery += ` AND phone = ?`
		args = append(args, p)
	}

	var total int
	if err := r.conn.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
