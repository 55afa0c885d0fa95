package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aficare/medilink/internal/domain/consultation"
	"github.com/aficare/medilink/internal/domain/patient"
	"github.com/aficare/medilink/internal/platform/qrtoken"
)

var (
	// ErrInvalidToken covers tampered, garbage and mismatched tokens.
	ErrInvalidToken = errors.New("invalid share token")
	// ErrGrantGone covers expired and revoked grants.
	ErrGrantGone = errors.New("access grant no longer valid")
	// ErrPatientNotFound means the granted patient record has been deleted.
	ErrPatientNotFound = errors.New("patient not found")
	// ErrInvalid marks request validation failures so handlers can map them
	// to a 400 response instead of a server error.
	ErrInvalid = errors.New("invalid request")
)

const (
	DefaultTTL = 24 * time.Hour
	MaxTTL     = 30 * 24 * time.Hour
	// sharedConsultationLimit caps how many consultations a redeemed token
	// returns.
	sharedConsultationLimit = 50
)

// PatientDirectory resolves MediLink IDs to registered patients.
type PatientDirectory interface {
	GetByMediLinkID(ctx context.Context, medilinkID string) (*patient.Patient, error)
}

// ConsultationSource lists a patient's consultations for shared views.
type ConsultationSource interface {
	ListByPatient(ctx context.Context, medilinkID string, limit, offset int) ([]*consultation.Consultation, int, error)
}

type Service struct {
	repo          Repository
	patients      PatientDirectory
	consultations ConsultationSource
	codec         *qrtoken.Codec
	now           func() time.Time
}

func NewService(repo Repository, patients PatientDirectory, consultations ConsultationSource, codec *qrtoken.Codec) *Service {
	return &Service{
		repo:          repo,
		patients:      patients,
		consultations: consultations,
		codec:         codec,
		now:           time.Now,
	}
}

// GrantRequest describes a new share grant.
type GrantRequest struct {
	MediLinkID string   `json:"medilink_id"`
	Perms      []string `json:"perms"`
	TTLHours   int      `json:"ttl_hours"`
}

// Grant creates an access grant for a patient and mints its share token.
func (s *Service) Grant(ctx context.Context, req GrantRequest, createdBy string) (*AccessGrant, string, error) {
	if req.MediLinkID == "" {
		return nil, "", fmt.Errorf("%w: medilink_id is required", ErrInvalid)
	}
	if len(req.Perms) == 0 {
		return nil, "", fmt.Errorf("%w: at least one permission is required", ErrInvalid)
	}

	ttl := DefaultTTL
	if req.TTLHours > 0 {
		ttl = time.Duration(req.TTLHours) * time.Hour
	}
	if ttl > MaxTTL {
		return nil, "", fmt.Errorf("%w: ttl exceeds maximum of %d hours", ErrInvalid, int(MaxTTL.Hours()))
	}

	if _, err := s.patients.GetByMediLinkID(ctx, req.MediLinkID); err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			return nil, "", ErrPatientNotFound
		}
		return nil, "", fmt.Errorf("resolve patient: %w", err)
	}

	code, err := NewCode()
	if err != nil {
		return nil, "", err
	}

	g := &AccessGrant{
		Code:       code,
		MediLinkID: req.MediLinkID,
		ExpiresAt:  s.now().Add(ttl).UTC(),
		CreatedBy:  createdBy,
	}
	if err := g.SetPerms(req.Perms); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return nil, "", err
	}

	token, err := s.Token(g)
	if err != nil {
		return nil, "", err
	}
	return g, token, nil
}

// Token mints a share token for an existing grant. Tokens are not stored;
// re-minting from the grant yields an equally valid token.
func (s *Service) Token(g *AccessGrant) (string, error) {
	return s.codec.Encode(qrtoken.Payload{
		Code:       g.Code,
		MediLinkID: g.MediLinkID,
		Perms:      g.Perms(),
		ExpiresAt:  g.ExpiresAt,
	})
}

// Redeem decrypts a share token, checks the backing grant and returns the
// permitted view of the patient record.
func (s *Service) Redeem(ctx context.Context, token string) (*SharedRecord, error) {
	payload, err := s.codec.Decode(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	g, err := s.repo.GetByCode(ctx, payload.Code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if g.MediLinkID != payload.MediLinkID {
		return nil, ErrInvalidToken
	}
	if g.Revoked || s.now().After(g.ExpiresAt) || payload.Expired(s.now()) {
		return nil, ErrGrantGone
	}

	p, err := s.patients.GetByMediLinkID(ctx, g.MediLinkID)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	record := &SharedRecord{
		MediLinkID: g.MediLinkID,
		Perms:      g.Perms(),
		ExpiresAt:  g.ExpiresAt,
	}
	if g.PermDemographics {
		d := p.DemographicsView()
		record.Demographics = &d
	}
	if g.PermHistory {
		h := p.HistoryView()
		record.History = &h
	}
	if g.PermConsultations {
		items, _, err := s.consultations.ListByPatient(ctx, g.MediLinkID, sharedConsultationLimit, 0)
		if err != nil {
			return nil, fmt.Errorf("load consultations: %w", err)
		}
		record.Consultations = items
	}
	return record, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*AccessGrant, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, medilinkID string, limit, offset int) ([]*AccessGrant, int, error) {
	return s.repo.ListByMediLinkID(ctx, medilinkID, limit, offset)
}

func (s *Service) Revoke(ctx context.Context, id uuid.UUID) error {
	return s.repo.Revoke(ctx, id)
}
