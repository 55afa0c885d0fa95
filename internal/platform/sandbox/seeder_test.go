package sandbox

import (
	"strings"
	"testing"

	"github.com/aficare/medilink/internal/domain/consultation"
)

func TestGeneratePatient_Reproducible(t *testing.T) {
	g1 := NewDataGenerator(42)
	g2 := NewDataGenerator(42)

	for i := 0; i < 10; i++ {
		p1 := g1.GeneratePatient()
		p2 := g2.GeneratePatient()
		if p1.FirstName != p2.FirstName || p1.LastName != p2.LastName {
			t.Fatalf("generators with the same seed diverged at patient %d", i)
		}
	}
}

func TestGeneratePatient_Fields(t *testing.T) {
	g := NewDataGenerator(7)
	p := g.GeneratePatient()

	if p.FirstName == "" || p.LastName == "" {
		t.Error("expected names")
	}
	if p.Phone == nil || !strings.HasPrefix(*p.Phone, "+") {
		t.Error("expected an international phone number")
	}
	if p.BirthDate == nil || p.BirthDate.Year() < 1940 || p.BirthDate.Year() > 2020 {
		t.Error("unexpected birth date range")
	}
	if p.MediLinkID != "" {
		t.Error("medilink id must be assigned by registration, not generation")
	}
}

func TestGenerateConsultation(t *testing.T) {
	g := NewDataGenerator(7)
	c := g.GenerateConsultation("ML-TESTPAT1")

	if c.MediLinkID != "ML-TESTPAT1" {
		t.Errorf("unexpected medilink id %s", c.MediLinkID)
	}
	if c.ChiefComplaint == "" {
		t.Error("expected a chief complaint")
	}
	if len(c.Symptoms) == 0 {
		t.Error("expected symptoms")
	}
	if c.TriageLevel != "" {
		t.Error("triage level must be left for the service to compute")
	}
	if c.Vitals.HeartRate == nil || *c.Vitals.HeartRate < 60 || *c.Vitals.HeartRate >= 130 {
		t.Error("heart rate outside generator range")
	}
}

func TestGenerateGrantRequest(t *testing.T) {
	g := NewDataGenerator(7)
	req := g.GenerateGrantRequest("ML-TESTPAT1")

	if req.MediLinkID != "ML-TESTPAT1" {
		t.Errorf("unexpected medilink id %s", req.MediLinkID)
	}
	if len(req.Perms) == 0 {
		t.Error("expected permissions")
	}
	if req.TTLHours <= 0 || req.TTLHours > 24*7 {
		t.Errorf("ttl outside generator range: %d", req.TTLHours)
	}
}

func TestGenerateConsultation_SymptomsUnique(t *testing.T) {
	g := NewDataGenerator(3)
	for i := 0; i < 50; i++ {
		c := g.GenerateConsultation("ML-TESTPAT1")
		seen := map[string]bool{}
		for _, s := range c.Symptoms {
			if seen[s] {
				t.Fatalf("duplicate symptom %q in %v", s, c.Symptoms)
			}
			seen[s] = true
		}
		if level := consultation.Triage(c.Vitals, c.Symptoms); !level.Valid() {
			t.Fatalf("generated vitals produced invalid triage level %q", level)
		}
	}
}

func TestDefaultSeedConfig(t *testing.T) {
	cfg := DefaultSeedConfig()
	if cfg.PatientCount <= 0 || cfg.ConsultationsPerPatient <= 0 {
		t.Error("defaults must generate data")
	}
}
