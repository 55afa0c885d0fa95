package consultation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aficare/medilink/internal/domain/patient"
)

// -- Mocks --

type mockRepo struct {
	records map[uuid.UUID]*Consultation
}

func newMockRepo() *mockRepo {
	return &mockRepo{records: make(map[uuid.UUID]*Consultation)}
}

func (m *mockRepo) Create(_ context.Context, c *Consultation) error {
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = time.Now()
	m.records[c.ID] = c
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Consultation, error) {
	c, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *mockRepo) ListByMediLinkID(_ context.Context, medilinkID string, limit, offset int) ([]*Consultation, int, error) {
	var out []*Consultation
	for _, c := range m.records {
		if c.MediLinkID == medilinkID {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) Search(_ context.Context, params SearchParams, limit, offset int) ([]*Consultation, int, error) {
	var out []*Consultation
	for _, c := range m.records {
		if params.MediLinkID != "" && c.MediLinkID != params.MediLinkID {
			continue
		}
		if params.TriageLevel != "" && c.TriageLevel != params.TriageLevel {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *mockRepo) UpdateNote(_ context.Context, id uuid.UUID, note string) error {
	c, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	c.ClinicianNote = &note
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}

type mockDirectory struct {
	known map[string]bool
}

func (m *mockDirectory) GetByMediLinkID(_ context.Context, medilinkID string) (*patient.Patient, error) {
	if !m.known[medilinkID] {
		return nil, patient.ErrNotFound
	}
	return &patient.Patient{MediLinkID: medilinkID}, nil
}

type mockAssistant struct {
	note    string
	err     error
	prompts []string
}

func (m *mockAssistant) Enabled() bool { return true }

func (m *mockAssistant) AssistNote(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.note, m.err
}

type mockPublisher struct {
	events []string
	err    error
}

func (m *mockPublisher) Enqueue(_ context.Context, kind string, _ interface{}) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, kind)
	return nil
}

func setupService() (*Service, *mockRepo) {
	repo := newMockRepo()
	dir := &mockDirectory{known: map[string]bool{"ML-TESTPAT1": true}}
	return NewService(repo, dir), repo
}

// -- Tests --

func TestCreate_ComputesTriage(t *testing.T) {
	svc, _ := setupService()

	c := &Consultation{
		MediLinkID:     "ML-TESTPAT1",
		ChiefComplaint: "trouble breathing",
		Symptoms:       []string{"difficulty breathing", "fever"},
		TriageLevel:    TriageNonUrgent, // client value must be discarded
	}
	if err := svc.Create(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.TriageLevel != TriageEmergency {
		t.Errorf("expected EMERGENCY, got %s", c.TriageLevel)
	}
	if len(c.Recommendations) == 0 {
		t.Error("expected recommendations to be filled in")
	}
}

func TestCreate_UnknownPatient(t *testing.T) {
	svc, _ := setupService()

	err := svc.Create(context.Background(), &Consultation{
		MediLinkID:     "ML-MISSING1",
		ChiefComplaint: "headache",
	})
	if !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestCreate_ChiefComplaintRequired(t *testing.T) {
	svc, _ := setupService()

	err := svc.Create(context.Background(), &Consultation{MediLinkID: "ML-TESTPAT1", ChiefComplaint: "  "})
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for blank chief complaint, got %v", err)
	}
}

func TestCreate_AssistNote(t *testing.T) {
	svc, _ := setupService()
	assistant := &mockAssistant{note: "Patient presents with fever."}
	svc.WithAssistant(assistant)

	c := &Consultation{
		MediLinkID:     "ML-TESTPAT1",
		ChiefComplaint: "fever for two days",
		Symptoms:       []string{"fever", "chills", "headache"},
	}
	if err := svc.Create(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.AssistNote == nil || *c.AssistNote != assistant.note {
		t.Error("expected assist note to be attached")
	}
	if len(assistant.prompts) != 1 {
		t.Fatalf("expected one prompt, got %d", len(assistant.prompts))
	}
}

func TestCreate_AssistFailureIsNonFatal(t *testing.T) {
	svc, _ := setupService()
	svc.WithAssistant(&mockAssistant{err: errors.New("groq unavailable")})

	c := &Consultation{MediLinkID: "ML-TESTPAT1", ChiefComplaint: "cough"}
	if err := svc.Create(context.Background(), c); err != nil {
		t.Fatalf("assist failure must not fail the consultation: %v", err)
	}
	if c.AssistNote != nil {
		t.Error("expected no assist note on failure")
	}
}

func TestCreate_PublishesMirrorEvent(t *testing.T) {
	svc, _ := setupService()
	pub := &mockPublisher{}
	svc.WithPublisher(pub)

	c := &Consultation{MediLinkID: "ML-TESTPAT1", ChiefComplaint: "cough"}
	if err := svc.Create(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.events) != 1 || pub.events[0] != "consultation.created" {
		t.Errorf("expected consultation.created event, got %v", pub.events)
	}
}

func TestCreate_PublisherFailureSurfaces(t *testing.T) {
	svc, _ := setupService()
	svc.WithPublisher(&mockPublisher{err: errors.New("outbox unavailable")})

	c := &Consultation{MediLinkID: "ML-TESTPAT1", ChiefComplaint: "cough"}
	err := svc.Create(context.Background(), c)
	if err == nil {
		t.Fatal("expected enqueue failure to surface")
	}
	if errors.Is(err, ErrInvalid) {
		t.Errorf("enqueue failure must not read as a validation error: %v", err)
	}
}

func TestSearch_RejectsInvalidTriageLevel(t *testing.T) {
	svc, _ := setupService()
	_, _, err := svc.Search(context.Background(), SearchParams{TriageLevel: "SEVERE"}, 20, 0)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestUpdateNote(t *testing.T) {
	svc, _ := setupService()

	c := &Consultation{MediLinkID: "ML-TESTPAT1", ChiefComplaint: "cough"}
	svc.Create(context.Background(), c)

	got, err := svc.UpdateNote(context.Background(), c.ID, "reviewed, mild URTI")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ClinicianNote == nil || *got.ClinicianNote != "reviewed, mild URTI" {
		t.Error("expected clinician note to be set")
	}

	if _, err := svc.UpdateNote(context.Background(), uuid.New(), "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
