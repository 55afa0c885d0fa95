package consultation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type consultationRepoSQLite struct{ conn *sql.DB }

func NewRepoSQLite(conn *sql.DB) Repository { return &consultationRepoSQLite{conn: conn} }

const consultationCols = `id, medilink_id, chief_complaint, symptoms,
	heart_rate, systolic_bp, diastolic_bp, temperature_c, respiratory_rate, spo2, pain_scale,
	triage_level, diagnoses, recommendations, clinician_note, assist_note,
	created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func marshalList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal list: %w", err)
	}
	return string(b), nil
}

func unmarshalList(raw string, dest *[]string) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dest)
}

func (r *consultationRepoSQLite) scanConsultation(row rowScanner) (*Consultation, error) {
	var c Consultation
	var symptoms, diagnoses, recommendations string
	err := row.Scan(&c.ID, &c.MediLinkID, &c.ChiefComplaint, &symptoms,
		&c.Vitals.HeartRate, &c.Vitals.SystolicBP, &c.Vitals.DiastolicBP,
		&c.Vitals.TemperatureC, &c.Vitals.RespiratoryRate, &c.Vitals.SpO2, &c.Vitals.PainScale,
		&c.TriageLevel, &diagnoses, &recommendations, &c.ClinicianNote, &c.AssistNote,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := unmarshalList(symptoms, &c.Symptoms); err != nil {
		return nil, fmt.Errorf("decode symptoms: %w", err)
	}
	if err := unmarshalList(diagnoses, &c.Diagnoses); err != nil {
		return nil, fmt.Errorf("decode diagnoses: %w", err)
	}
	if err := unmarshalList(recommendations, &c.Recommendations); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	return &c, nil
}

func (r *consultationRepoSQLite) Create(ctx context.Context, c *Consultation) error {
	c.ID = uuid.New()
	symptoms, err := marshalList(c.Symptoms)
	if err != nil {
		return err
	}
	diagnoses, err := marshalList(c.Diagnoses)
	if err != nil {
		return err
	}
	recommendations, err := marshalList(c.Recommendations)
	if err != nil {
		return err
	}
	_, err = r.conn.ExecContext(ctx, `
		INSERT INTO consultations (id, medilink_id, chief_complaint, symptoms,
			heart_rate, systolic_bp, diastolic_bp, temperature_c, respiratory_rate, spo2, pain_scale,
			triage_level, diagnoses, recommendations, clinician_note, assist_note, created_by)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.MediLinkID, c.ChiefComplaint, symptoms,
		c.Vitals.HeartRate, c.Vitals.SystolicBP, c.Vitals.DiastolicBP,
		c.Vitals.TemperatureC, c.Vitals.RespiratoryRate, c.Vitals.SpO2, c.Vitals.PainScale,
		c.TriageLevel, diagnoses, recommendations, c.ClinicianNote, c.AssistNote, c.CreatedBy)
	return err
}

func (r *consultationRepoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return r.scanConsultation(r.conn.QueryRowContext(ctx,
		`SELECT `+consultationCols+` FROM consultations WHERE id = ?`, id))
}

func (r *consultationRepoSQLite) ListByMediLinkID(ctx context.Context, medilinkID string, limit, offset int) ([]*Consultation, int, error) {
	return r.Search(ctx, SearchParams{MediLinkID: medilinkID}, limit, offset)
}

func (r *consultationRepoSQLite) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Consultation, int, error) {
	query := `SELECT ` + consultationCols + ` FROM consultations WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM consultations WHERE 1=1`
	var args []interface{}

	if params.MediLinkID != "" {
		query += ` AND medilink_id = ?`
		countQuery += ` AND medilink_id = ?`
		args = append(args, params.MediLinkID)
	}
	if params.TriageLevel != "" {
		query += ` AND triage_level = ?`
		countQuery += ` AND triage_level = ?`
		args = append(args, params.TriageLevel)
	}
	if !params.Since.IsZero() {
		query += ` AND created_at >= ?`
		countQuery += ` AND created_at >= ?`
		// created_at is CURRENT_TIMESTAMP text (UTC, no offset), so the
		// bound value must be rendered the same way or the comparison is
		// skewed by the local offset.
		args = append(args, params.Since.UTC().Format("2006-01-02 15:04:05"))
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
	var items []*Consultation
	for rows.Next() {
		c, err := r.scanConsultation(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

func (r *consultationRepoSQLite) UpdateNote(ctx context.Context, id uuid.UUID, note string) error {
	res, err := r.conn.ExecContext(ctx, `
		UPDATE consultations SET clinician_note = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, note, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *consultationRepoSQLite) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.conn.ExecContext(ctx, `DELETE FROM consultations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
