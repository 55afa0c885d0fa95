package patient

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table. The MediLink ID is the public patient
// identifier used as the lookup key across tables and inside share tokens.
type Patient struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	MediLinkID         string     `db:"medilink_id" json:"medilink_id"`
	FirstName          string     `db:"first_name" json:"first_name"`
	LastName           string     `db:"last_name" json:"last_name"`
	BirthDate          *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Gender             *string    `db:"gender" json:"gender,omitempty"`
	Phone              *string    `db:"phone" json:"phone,omitempty"`
	Email              *string    `db:"email" json:"email,omitempty"`
	AddressLine        *string    `db:"address_line" json:"address_line,omitempty"`
	City               *string    `db:"city" json:"city,omitempty"`
	Country            *string    `db:"country" json:"country,omitempty"`
	BloodGroup         *string    `db:"blood_group" json:"blood_group,omitempty"`
	Allergies          *string    `db:"allergies" json:"allergies,omitempty"`
	ChronicConditions  *string    `db:"chronic_conditions" json:"chronic_conditions,omitempty"`
	CurrentMedications *string    `db:"current_medications" json:"current_medications,omitempty"`
	EmergencyContact   *string    `db:"emergency_contact" json:"emergency_contact,omitempty"`
	EmergencyPhone     *string    `db:"emergency_phone" json:"emergency_phone,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// History is the medical-history slice of a patient record, shared through
// access grants that carry the "history" permission.
type History struct {
	BloodGroup         *string `json:"blood_group,omitempty"`
	Allergies          *string `json:"allergies,omitempty"`
	ChronicConditions  *string `json:"chronic_conditions,omitempty"`
	CurrentMedications *string `json:"current_medications,omitempty"`
	EmergencyContact   *string `json:"emergency_contact,omitempty"`
	EmergencyPhone     *string `json:"emergency_phone,omitempty"`
}

// HistoryView returns the patient's medical history.
func (p *Patient) HistoryView() History {
	return History{
		BloodGroup:         p.BloodGroup,
		Allergies:          p.Allergies,
		ChronicConditions:  p.ChronicConditions,
		CurrentMedications: p.CurrentMedications,
		EmergencyContact:   p.EmergencyContact,
		EmergencyPhone:     p.EmergencyPhone,
	}
}

// Demographics is the demographic slice of a patient record, shared through
// access grants that carry the "demographics" permission.
type Demographics struct {
	MediLinkID string     `json:"medilink_id"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	BirthDate  *time.Time `json:"birth_date,omitempty"`
	Gender     *string    `json:"gender,omitempty"`
	Phone      *string    `json:"phone,omitempty"`
	Email      *string    `json:"email,omitempty"`
	City       *string    `json:"city,omitempty"`
	Country    *string    `json:"country,omitempty"`
}

// DemographicsView returns the patient's demographics.
func (p *Patient) DemographicsView() Demographics {
	return Demographics{
		MediLinkID: p.MediLinkID,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		BirthDate:  p.BirthDate,
		Gender:     p.Gender,
		Phone:      p.Phone,
		Email:      p.Email,
		City:       p.City,
		Country:    p.Country,
	}
}

// medilinkAlphabet deliberately omits 0/O and 1/I to keep hand-typed codes
// unambiguous.
const medilinkAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// NewMediLinkID generates a MediLink ID of the form ML-XXXXXXXX.
func NewMediLinkID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate medilink id: %w", err)
	}
	for i, b := range buf {
		buf[i] = medilinkAlphabet[int(b)%len(medilinkAlphabet)]
	}
	return "ML-" + string(buf), nil
}
