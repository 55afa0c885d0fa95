package access

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aficare/medilink/internal/domain/consultation"
	"github.com/aficare/medilink/internal/domain/patient"
)

// Permission flags a grant can carry. Each flag exposes one slice of the
// patient record through the shared view.
const (
	PermDemographics  = "demographics"
	PermHistory       = "history"
	PermConsultations = "consultations"
)

var knownPerms = map[string]bool{
	PermDemographics:  true,
	PermHistory:       true,
	PermConsultations: true,
}

// AccessGrant maps to the access_grants table. The code is the opaque
// server-side handle carried inside the encrypted share token; revoking a
// grant invalidates every token minted for it.
type AccessGrant struct {
	ID                uuid.UUID `db:"id" json:"id"`
	Code              string    `db:"code" json:"code"`
	MediLinkID        string    `db:"medilink_id" json:"medilink_id"`
	PermDemographics  bool      `db:"perm_demographics" json:"perm_demographics"`
	PermHistory       bool      `db:"perm_history" json:"perm_history"`
	PermConsultations bool      `db:"perm_consultations" json:"perm_consultations"`
	ExpiresAt         time.Time `db:"expires_at" json:"expires_at"`
	Revoked           bool      `db:"revoked" json:"revoked"`
	CreatedBy         string    `db:"created_by" json:"created_by"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Perms returns the grant's permission flags as the list form used in
// token payloads.
func (g *AccessGrant) Perms() []string {
	var out []string
	if g.PermDemographics {
		out = append(out, PermDemographics)
	}
	if g.PermHistory {
		out = append(out, PermHistory)
	}
	if g.PermConsultations {
		out = append(out, PermConsultations)
	}
	return out
}

// SetPerms applies a permission list to the grant's flags. Unknown
// permissions are rejected.
func (g *AccessGrant) SetPerms(perms []string) error {
	g.PermDemographics = false
	g.PermHistory = false
	g.PermConsultations = false
	for _, p := range perms {
		switch p {
		case PermDemographics:
			g.PermDemographics = true
		case PermHistory:
			g.PermHistory = true
		case PermConsultations:
			g.PermConsultations = true
		default:
			return fmt.Errorf("unknown permission %q", p)
		}
	}
	return nil
}

// SharedRecord is the view returned when a token is redeemed, filtered to
// the slices the grant permits.
type SharedRecord struct {
	MediLinkID    string                       `json:"medilink_id"`
	Perms         []string                     `json:"perms"`
	ExpiresAt     time.Time                    `json:"expires_at"`
	Demographics  *patient.Demographics        `json:"demographics,omitempty"`
	History       *patient.History             `json:"history,omitempty"`
	Consultations []*consultation.Consultation `json:"consultations,omitempty"`
}

// NewCode generates the opaque grant code.
func NewCode() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate access code: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
