package consultation

import "strings"

// vitalRule raises the triage level when the predicate matches a recorded
// vital. Unrecorded vitals never match.
type vitalRule struct {
	level TriageLevel
	match func(v Vitals) bool
}

func intAbove(p *int, limit int) bool        { return p != nil && *p > limit }
func intBelow(p *int, limit int) bool        { return p != nil && *p < limit }
func intAtLeast(p *int, limit int) bool      { return p != nil && *p >= limit }
func tempAtLeast(p *float64, c float64) bool { return p != nil && *p >= c }

var vitalRules = []vitalRule{
	{TriageEmergency, func(v Vitals) bool { return intBelow(v.SpO2, 90) }},
	{TriageEmergency, func(v Vitals) bool { return intAbove(v.SystolicBP, 180) || intBelow(v.SystolicBP, 90) }},
	{TriageEmergency, func(v Vitals) bool { return intAbove(v.DiastolicBP, 120) }},
	{TriageEmergency, func(v Vitals) bool { return intAbove(v.HeartRate, 140) || intBelow(v.HeartRate, 40) }},
	{TriageEmergency, func(v Vitals) bool { return intAbove(v.RespiratoryRate, 30) || intBelow(v.RespiratoryRate, 8) }},
	{TriageEmergency, func(v Vitals) bool { return tempAtLeast(v.TemperatureC, 41) }},

	{TriageUrgent, func(v Vitals) bool { return intBelow(v.SpO2, 94) }},
	{TriageUrgent, func(v Vitals) bool { return intAbove(v.SystolicBP, 160) }},
	{TriageUrgent, func(v Vitals) bool { return intAbove(v.HeartRate, 120) }},
	{TriageUrgent, func(v Vitals) bool { return intAbove(v.RespiratoryRate, 24) }},
	{TriageUrgent, func(v Vitals) bool { return tempAtLeast(v.TemperatureC, 39.5) }},
	{TriageUrgent, func(v Vitals) bool { return intAtLeast(v.PainScale, 8) }},

	{TriageLessUrgent, func(v Vitals) bool { return intAbove(v.HeartRate, 100) }},
	{TriageLessUrgent, func(v Vitals) bool { return tempAtLeast(v.TemperatureC, 38) }},
	{TriageLessUrgent, func(v Vitals) bool { return intAtLeast(v.PainScale, 5) }},
}

// Symptoms that force a triage level regardless of vitals.
var symptomLevels = map[string]TriageLevel{
	"chest pain":            TriageEmergency,
	"difficulty breathing":  TriageEmergency,
	"shortness of breath":   TriageEmergency,
	"unconscious":           TriageEmergency,
	"loss of consciousness": TriageEmergency,
	"seizure":               TriageEmergency,
	"convulsions":           TriageEmergency,
	"severe bleeding":       TriageEmergency,
	"coughing blood":        TriageEmergency,
	"slurred speech":        TriageEmergency,

	"high fever":            TriageUrgent,
	"persistent vomiting":   TriageUrgent,
	"severe headache":       TriageUrgent,
	"severe abdominal pain": TriageUrgent,
	"dehydration":           TriageUrgent,
	"stiff neck":            TriageUrgent,

	"fever":    TriageLessUrgent,
	"vomiting": TriageLessUrgent,
	"diarrhea": TriageLessUrgent,
}

// Triage assigns a triage level from vitals and reported symptoms.
// Every rule is evaluated and the most severe match wins; with no
// matches the consultation is NON_URGENT.
func Triage(v Vitals, symptoms []string) TriageLevel {
	level := TriageNonUrgent
	for _, r := range vitalRules {
		if r.match(v) && r.level.MoreSevereThan(level) {
			level = r.level
		}
	}
	for _, s := range symptoms {
		if l, ok := symptomLevels[strings.ToLower(strings.TrimSpace(s))]; ok && l.MoreSevereThan(level) {
			level = l
		}
	}
	return level
}

// diagnosisRule suggests a condition when at least minMatches of its
// symptoms are reported.
type diagnosisRule struct {
	condition  string
	symptoms   []string
	minMatches int
}

var diagnosisRules = []diagnosisRule{
	{"Suspected malaria", []string{"fever", "chills", "headache", "sweating", "fatigue", "muscle aches"}, 3},
	{"Suspected typhoid fever", []string{"fever", "abdominal pain", "headache", "constipation", "diarrhea", "weakness"}, 3},
	{"Suspected respiratory infection", []string{"cough", "fever", "sore throat", "runny nose", "congestion"}, 2},
	{"Suspected gastroenteritis", []string{"vomiting", "diarrhea", "nausea", "abdominal pain"}, 2},
	{"Suspected meningitis", []string{"fever", "stiff neck", "severe headache", "light sensitivity"}, 2},
	{"Suspected urinary tract infection", []string{"painful urination", "frequent urination", "lower abdominal pain"}, 2},
	{"Suspected anemia", []string{"fatigue", "dizziness", "pale skin", "shortness of breath"}, 2},
}

// SuggestDiagnoses runs the rule table over the reported symptoms.
func SuggestDiagnoses(symptoms []string) []string {
	reported := make(map[string]bool, len(symptoms))
	for _, s := range symptoms {
		reported[strings.ToLower(strings.TrimSpace(s))] = true
	}

	var out []string
	for _, r := range diagnosisRules {
		matches := 0
		for _, s := range r.symptoms {
			if reported[s] {
				matches++
			}
		}
		if matches >= r.minMatches {
			out = append(out, r.condition)
		}
	}
	return out
}

// Recommendations returns the standing care advice for a triage level.
func Recommendations(level TriageLevel) []string {
	switch level {
	case TriageEmergency:
		return []string{
			"Refer to emergency care immediately",
			"Do not discharge before a clinician review",
			"Monitor vitals continuously",
		}
	case TriageUrgent:
		return []string{
			"Clinician review within 1 hour",
			"Re-check vitals every 30 minutes",
		}
	case TriageLessUrgent:
		return []string{
			"Clinician review within 4 hours",
			"Encourage oral hydration",
		}
	default:
		return []string{
			"Routine consultation",
			"Advise on follow-up if symptoms worsen",
		}
	}
}
