package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/aficare/medilink/internal/domain/patient"
)

var ErrPatientNotFound = errors.New("patient not found")

// ErrInvalid marks request validation failures so handlers can map them to a
// 400 response instead of a server error.
var ErrInvalid = errors.New("invalid request")

// PatientDirectory resolves MediLink IDs to registered patients.
type PatientDirectory interface {
	GetByMediLinkID(ctx context.Context, medilinkID string) (*patient.Patient, error)
}

// NoteAssistant produces an optional draft note for the clinician. The
// Groq client implements it; a disabled assistant is skipped.
type NoteAssistant interface {
	Enabled() bool
	AssistNote(ctx context.Context, prompt string) (string, error)
}

// EventPublisher queues consultation events for the Postgres mirror.
type EventPublisher interface {
	Enqueue(ctx context.Context, kind string, payload interface{}) error
}

type Service struct {
	repo      Repository
	patients  PatientDirectory
	assistant NoteAssistant
	publisher EventPublisher
}

func NewService(repo Repository, patients PatientDirectory) *Service {
	return &Service{repo: repo, patients: patients}
}

// WithAssistant attaches a note assistant. Nil disables assistance.
func (s *Service) WithAssistant(a NoteAssistant) *Service {
	s.assistant = a
	return s
}

// WithPublisher attaches a mirror publisher. Nil disables mirroring.
func (s *Service) WithPublisher(p EventPublisher) *Service {
	s.publisher = p
	return s
}

// Create records a consultation. Triage level, suggested diagnoses and
// recommendations are always computed here; client-supplied values are
// discarded.
func (s *Service) Create(ctx context.Context, c *Consultation) error {
	if c.MediLinkID == "" {
		return fmt.Errorf("%w: medilink_id is required", ErrInvalid)
	}
	if strings.TrimSpace(c.ChiefComplaint) == "" {
		return fmt.Errorf("%w: chief_complaint is required", ErrInvalid)
	}
	if _, err := s.patients.GetByMediLinkID(ctx, c.MediLinkID); err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			return ErrPatientNotFound
		}
		return fmt.Errorf("resolve patient: %w", err)
	}

	c.TriageLevel = Triage(c.Vitals, c.Symptoms)
	c.Diagnoses = SuggestDiagnoses(c.Symptoms)
	c.Recommendations = Recommendations(c.TriageLevel)

	if s.assistant != nil && s.assistant.Enabled() {
		if note, err := s.assistant.AssistNote(ctx, assistPrompt(c)); err == nil && note != "" {
			c.AssistNote = &note
		}
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return err
	}
	if s.publisher != nil {
		if err := s.publisher.Enqueue(ctx, "consultation.created", c); err != nil {
			return fmt.Errorf("enqueue mirror event: %w", err)
		}
	}
	return nil
}

func assistPrompt(c *Consultation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Chief complaint: %s\n", c.ChiefComplaint)
	if len(c.Symptoms) > 0 {
		fmt.Fprintf(&b, "Reported symptoms: %s\n", strings.Join(c.Symptoms, ", "))
	}
	fmt.Fprintf(&b, "Triage level: %s\n", c.TriageLevel)
	if len(c.Diagnoses) > 0 {
		fmt.Fprintf(&b, "Rule-based suggestions: %s\n", strings.Join(c.Diagnoses, "; "))
	}
	b.WriteString("Draft a brief consultation note for the clinician to review.")
	return b.String()
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, medilinkID string, limit, offset int) ([]*Consultation, int, error) {
	return s.repo.ListByMediLinkID(ctx, medilinkID, limit, offset)
}

func (s *Service) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*Consultation, int, error) {
	if params.TriageLevel != "" && !params.TriageLevel.Valid() {
		return nil, 0, fmt.Errorf("%w: invalid triage_level %q", ErrInvalid, params.TriageLevel)
	}
	return s.repo.Search(ctx, params, limit, offset)
}

func (s *Service) UpdateNote(ctx context.Context, id uuid.UUID, note string) (*Consultation, error) {
	if err := s.repo.UpdateNote(ctx, id, note); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
