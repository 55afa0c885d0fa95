// Package sandbox generates synthetic MediLink data for demo and development
// environments. Output is reproducible for a fixed seed and flows through the
// real services, so seeded consultations carry genuine triage results.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/aficare/medilink/internal/domain/access"
	"github.com/aficare/medilink/internal/domain/consultation"
	"github.com/aficare/medilink/internal/domain/patient"
)

// SeedConfig controls the volume of generated data.
type SeedConfig struct {
	PatientCount            int   `json:"patient_count"`
	ConsultationsPerPatient int   `json:"consultations_per_patient"`
	GrantsPerPatient        int   `json:"grants_per_patient"`
	Seed                    int64 `json:"seed"`
}

// DefaultSeedConfig returns sensible demo defaults.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		PatientCount:            25,
		ConsultationsPerPatient: 3,
		GrantsPerPatient:        1,
	}
}

// SeedResult summarizes one seed run.
type SeedResult struct {
	Patients      int           `json:"patients"`
	Consultations int           `json:"consultations"`
	Grants        int           `json:"grants"`
	Duration      time.Duration `json:"duration"`
}

// Name, place and symptom pools for synthetic records.
var (
	firstNames = []string{
		"Amina", "Kwame", "Fatou", "Chidi", "Zainab", "Kofi", "Amara", "Sekou",
		"Nia", "Tunde", "Mariama", "Abdoulaye", "Adaeze", "Moussa", "Halima",
	}
	lastNames = []string{
		"Diallo", "Mensah", "Okafor", "Traore", "Abubakar", "Ndiaye", "Osei",
		"Kamara", "Ibrahim", "Adeyemi", "Toure", "Banda", "Mwangi", "Sow",
	}
	cities = []string{
		"Accra", "Lagos", "Nairobi", "Dakar", "Bamako", "Kampala", "Kigali", "Abidjan",
	}
	countries = []string{
		"Ghana", "Nigeria", "Kenya", "Senegal", "Mali", "Uganda", "Rwanda", "Cote d'Ivoire",
	}
	genders     = []string{"female", "male"}
	bloodGroups = []string{"O+", "O-", "A+", "A-", "B+", "B-", "AB+", "AB-"}
	complaints  = []string{
		"fever for three days", "persistent cough", "stomach pain after meals",
		"headache and dizziness", "joint pain", "rash on arms", "routine checkup",
	}
	symptomPool = []string{
		"fever", "chills", "headache", "fatigue", "cough", "sore throat",
		"vomiting", "diarrhea", "nausea", "abdominal pain", "muscle aches",
		"runny nose", "dizziness",
	}
	grantPerms = [][]string{
		{access.PermDemographics},
		{access.PermDemographics, access.PermHistory},
		{access.PermDemographics, access.PermHistory, access.PermConsultations},
	}
)

// DataGenerator produces synthetic records from a seeded RNG.
type DataGenerator struct {
	rng *rand.Rand
}

func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) randomPhone() string {
	return fmt.Sprintf("+233%09d", g.rng.Intn(1_000_000_000))
}

func (g *DataGenerator) randomBirthDate() time.Time {
	year := 1940 + g.rng.Intn(80)
	month := time.Month(1 + g.rng.Intn(12))
	day := 1 + g.rng.Intn(28)
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// GeneratePatient builds a synthetic patient without an ID or MediLink ID;
// registration assigns both.
func (g *DataGenerator) GeneratePatient() *patient.Patient {
	gender := g.pick(genders)
	phone := g.randomPhone()
	city := g.pick(cities)
	country := g.pick(countries)
	blood := g.pick(bloodGroups)
	birth := g.randomBirthDate()

	p := &patient.Patient{
		FirstName:  g.pick(firstNames),
		LastName:   g.pick(lastNames),
		BirthDate:  &birth,
		Gender:     &gender,
		Phone:      &phone,
		City:       &city,
		Country:    &country,
		BloodGroup: &blood,
	}
	if g.rng.Intn(3) == 0 {
		allergies := "penicillin"
		p.Allergies = &allergies
	}
	return p
}

// GenerateConsultation builds a synthetic consultation for a patient. Triage
// output fields are left empty; the service fills them.
func (g *DataGenerator) GenerateConsultation(medilinkID string) *consultation.Consultation {
	symptoms := make([]string, 0, 3)
	seen := map[string]bool{}
	for len(symptoms) < 1+g.rng.Intn(3) {
		s := g.pick(symptomPool)
		if !seen[s] {
			seen[s] = true
			symptoms = append(symptoms, s)
		}
	}

	hr := 60 + g.rng.Intn(70)
	sys := 100 + g.rng.Intn(70)
	dia := 60 + g.rng.Intn(40)
	temp := 36.0 + g.rng.Float64()*4.5
	spo2 := 90 + g.rng.Intn(10)
	pain := g.rng.Intn(10)

	return &consultation.Consultation{
		MediLinkID:     medilinkID,
		ChiefComplaint: g.pick(complaints),
		Symptoms:       symptoms,
		Vitals: consultation.Vitals{
			HeartRate:    &hr,
			SystolicBP:   &sys,
			DiastolicBP:  &dia,
			TemperatureC: &temp,
			SpO2:         &spo2,
			PainScale:    &pain,
		},
	}
}

// GenerateGrantRequest builds a synthetic access grant request.
func (g *DataGenerator) GenerateGrantRequest(medilinkID string) access.GrantRequest {
	return access.GrantRequest{
		MediLinkID: medilinkID,
		Perms:      grantPerms[g.rng.Intn(len(grantPerms))],
		TTLHours:   24 * (1 + g.rng.Intn(7)),
	}
}

// Seeder drives synthetic data through the real services.
type Seeder struct {
	config        SeedConfig
	patients      *patient.Service
	consultations *consultation.Service
	grants        *access.Service
}

func NewSeeder(config SeedConfig, patients *patient.Service, consultations *consultation.Service, grants *access.Service) *Seeder {
	return &Seeder{
		config:        config,
		patients:      patients,
		consultations: consultations,
		grants:        grants,
	}
}

// Run generates and persists the configured volume of data.
func (s *Seeder) Run(ctx context.Context) (*SeedResult, error) {
	start := time.Now()
	gen := NewDataGenerator(s.config.Seed)
	result := &SeedResult{}

	for i := 0; i < s.config.PatientCount; i++ {
		p := gen.GeneratePatient()
		if err := s.patients.Register(ctx, p); err != nil {
			return result, fmt.Errorf("seed patient %d: %w", i, err)
		}
		result.Patients++

		for j := 0; j < s.config.ConsultationsPerPatient; j++ {
			c := gen.GenerateConsultation(p.MediLinkID)
			c.CreatedBy = "sandbox-seeder"
			if err := s.consultations.Create(ctx, c); err != nil {
				return result, fmt.Errorf("seed consultation for %s: %w", p.MediLinkID, err)
			}
			result.Consultations++
		}

		for j := 0; j < s.config.GrantsPerPatient; j++ {
			req := gen.GenerateGrantRequest(p.MediLinkID)
			if _, _, err := s.grants.Grant(ctx, req, "sandbox-seeder"); err != nil {
				return result, fmt.Errorf("seed grant for %s: %w", p.MediLinkID, err)
			}
			result.Grants++
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}
