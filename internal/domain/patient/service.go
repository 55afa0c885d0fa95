package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalid marks request validation failures so handlers can map them to a
// 400 response instead of a server error.
var ErrInvalid = errors.New("invalid request")

// EventPublisher queues patient events for the Postgres mirror.
type EventPublisher interface {
	Enqueue(ctx context.Context, kind string, payload interface{}) error
}

type Service struct {
	repo      Repository
	publisher EventPublisher
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// WithPublisher attaches a mirror publisher. Nil disables mirroring.
func (s *Service) WithPublisher(p EventPublisher) *Service {
	s.publisher = p
	return s
}

func (s *Service) publish(ctx context.Context, kind string, p *Patient) error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Enqueue(ctx, kind, p); err != nil {
		return fmt.Errorf("enqueue mirror event: %w", err)
	}
	return nil
}

// Register creates a patient record and assigns a fresh MediLink ID. On the
// unlikely event of an ID collision the insert is retried with a new ID.
func (s *Service) Register(ctx context.Context, p *Patient) error {
	if p.FirstName == "" {
		return fmt.Errorf("%w: first_name is required", ErrInvalid)
	}
	if p.LastName == "" {
		return fmt.Errorf("%w: last_name is required", ErrInvalid)
	}

	for attempt := 0; attempt < 3; attempt++ {
		id, err := NewMediLinkID()
		if err != nil {
			return err
		}
		p.MediLinkID = id

		err = s.repo.Create(ctx, p)
		if err == nil {
			return s.publish(ctx, "patient.created", p)
		}
		if !strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return err
		}
	}
	return fmt.Errorf("could not allocate a unique medilink id")
}

func (s *Service) GetByMediLinkID(ctx context.Context, medilinkID string) (*Patient, error) {
	if medilinkID == "" {
		return nil, fmt.Errorf("%w: medilink_id is required", ErrInvalid)
	}
	return s.repo.GetByMediLinkID(ctx, medilinkID)
}

// Update replaces the mutable fields of a patient record. The MediLink ID is
// immutable once assigned.
func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	if p.FirstName == "" {
		return fmt.Errorf("%w: first_name is required", ErrInvalid)
	}
	if p.LastName == "" {
		return fmt.Errorf("%w: last_name is required", ErrInvalid)
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	return s.publish(ctx, "patient.updated", p)
}

// UpdateHistory updates only the medical-history slice of a record.
func (s *Service) UpdateHistory(ctx context.Context, medilinkID string, h History) (*Patient, error) {
	p, err := s.repo.GetByMediLinkID(ctx, medilinkID)
	if err != nil {
		return nil, err
	}

	p.BloodGroup = h.BloodGroup
	p.Allergies = h.Allergies
	p.ChronicConditions = h.ChronicConditions
	p.CurrentMedications = h.CurrentMedications
	p.EmergencyContact = h.EmergencyContact
	p.EmergencyPhone = h.EmergencyPhone

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	if err := s.publish(ctx, "patient.updated", p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, p *Patient) error {
	if err := s.repo.Delete(ctx, p.ID); err != nil {
		return err
	}
	return s.publish(ctx, "patient.deleted", p)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}
