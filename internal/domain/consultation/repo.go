package consultation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("consultation not found")

// SearchParams filters consultation queries. Zero values mean no filter.
type SearchParams struct {
	MediLinkID  string
	TriageLevel TriageLevel
	Since       time.Time
}

type Repository interface {
	Create(ctx context.Context, c *Consultation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	ListByMediLinkID(ctx context.Context, medilinkID string, limit, offset int) ([]*Consultation, int, error)
	Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Consultation, int, error)
	UpdateNote(ctx context.Context, id uuid.UUID, note string) error
	Delete(ctx context.Context, id uuid.UUID) error
}
