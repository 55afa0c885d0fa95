package consultation

import (
	"time"

	"github.com/google/uuid"
)

// TriageLevel classifies how soon a patient needs care.
type TriageLevel string

const (
	TriageEmergency  TriageLevel = "EMERGENCY"
	TriageUrgent     TriageLevel = "URGENT"
	TriageLessUrgent TriageLevel = "LESS_URGENT"
	TriageNonUrgent  TriageLevel = "NON_URGENT"
)

// severity orders triage levels so the highest matching rule wins.
var severity = map[TriageLevel]int{
	TriageNonUrgent:  0,
	TriageLessUrgent: 1,
	TriageUrgent:     2,
	TriageEmergency:  3,
}

// MoreSevereThan reports whether l outranks other.
func (l TriageLevel) MoreSevereThan(other TriageLevel) bool {
	return severity[l] > severity[other]
}

// Valid reports whether l is one of the known triage levels.
func (l TriageLevel) Valid() bool {
	_, ok := severity[l]
	return ok
}

// Vitals holds the measurements recorded at the start of a consultation.
// All fields are optional; triage rules skip what was not measured.
type Vitals struct {
	HeartRate       *int     `db:"heart_rate" json:"heart_rate,omitempty"`
	SystolicBP      *int     `db:"systolic_bp" json:"systolic_bp,omitempty"`
	DiastolicBP     *int     `db:"diastolic_bp" json:"diastolic_bp,omitempty"`
	TemperatureC    *float64 `db:"temperature_c" json:"temperature_c,omitempty"`
	RespiratoryRate *int     `db:"respiratory_rate" json:"respiratory_rate,omitempty"`
	SpO2            *int     `db:"spo2" json:"spo2,omitempty"`
	PainScale       *int     `db:"pain_scale" json:"pain_scale,omitempty"`
}

// Consultation maps to the consultations table. Symptom, diagnosis and
// recommendation lists are stored as JSON text columns.
type Consultation struct {
	ID              uuid.UUID   `db:"id" json:"id"`
	MediLinkID      string      `db:"medilink_id" json:"medilink_id"`
	ChiefComplaint  string      `db:"chief_complaint" json:"chief_complaint"`
	Symptoms        []string    `db:"symptoms" json:"symptoms"`
	Vitals          Vitals      `json:"vitals"`
	TriageLevel     TriageLevel `db:"triage_level" json:"triage_level"`
	Diagnoses       []string    `db:"diagnoses" json:"diagnoses"`
	Recommendations []string    `db:"recommendations" json:"recommendations"`
	ClinicianNote   *string     `db:"clinician_note" json:"clinician_note,omitempty"`
	AssistNote      *string     `db:"assist_note" json:"assist_note,omitempty"`
	CreatedBy       string      `db:"created_by" json:"created_by"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}
