package cases

import (
	"encoding/json"
	"math"
	"time"

	"github.com/linnemanlabs/pleura/internal/triage"
)

const (
	unknownPatientName = "Unknown"
	undeterminedReason = "Triage level could not be determined"
)

// DecodeCase decodes a stored case document. Bodies that are not valid JSON
// decode to the same safe defaults as an empty record.
func DecodeCase(body []byte) Case {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Sanitize(nil)
	}
	return Sanitize(raw)
}

// Sanitize coerces a generically decoded record (as produced by encoding/json)
// into a well-typed Case. Wrong-typed or missing values fall back to defaults;
// it never fails and Sanitize of a sanitized record is a no-op.
func Sanitize(raw any) Case {
	m := asObject(raw)

	c := Case{
		ID:            asString(m["id"]),
		OwnerID:       asString(m["ownerId"]),
		Patient:       sanitizePatient(asObject(m["patient"])),
		ImageFilename: asString(m["imageFilename"]),
		Predictions:   sanitizePredictions(m["predictions"]),
		CreatedAt:     asTime(m["createdAt"]),
	}

	if c.Predictions != nil {
		t := sanitizeAssessment(m["triage"])
		c.Triage = &t
	}

	if s, ok := m["report"].(string); ok {
		c.Report = &s
	}

	if r := Resolution(asString(m["resolution"])); r.Valid() {
		c.Resolution = r
		c.ResolutionNotes = asString(m["resolutionNotes"])
		if at, ok := parseTime(m["resolvedAt"]); ok {
			c.ResolvedAt = &at
		}
	}

	id, idOK := m["similarCaseId"].(string)
	score, scoreOK := asFinite(m["similarityScore"])
	if idOK && id != "" && scoreOK && score >= 0 && score <= 1 {
		c.SimilarCaseID = &id
		c.SimilarityScore = &score
	}

	return c
}

func sanitizePatient(m map[string]any) Patient {
	name := asString(m["name"])
	if name == "" {
		name = unknownPatientName
	}
	vitals := asObject(m["vitals"])
	symptoms := asObject(m["symptoms"])
	exam := asObject(m["examFindings"])

	return Patient{
		Name:           name,
		Age:            asNumber(m["age"]),
		Sex:            asString(m["sex"]),
		ChiefComplaint: asString(m["chiefComplaint"]),
		Vitals: Vitals{
			SpO2:        sanitizeVital(vitals["spo2"]),
			BP:          sanitizeVital(vitals["bp"]),
			RR:          sanitizeVital(vitals["rr"]),
			HR:          sanitizeVital(vitals["hr"]),
			Temperature: sanitizeVital(vitals["temperature"]),
		},
		Symptoms: Symptoms{
			Breathlessness:    asReading(symptoms["breathlessness"]),
			DyspneaOnExertion: asReading(symptoms["dyspneaOnExertion"]),
			Cough:             asReading(symptoms["cough"]),
			ChestPain:         asReading(symptoms["chestPain"]),
			Sputum:            asReading(symptoms["sputum"]),
			Hemoptysis:        asReading(symptoms["hemoptysis"]),
		},
		ExamFindings: ExamFindings{
			BreathSounds:          asFinding(exam["breathSounds"]),
			Crackles:              asFinding(exam["crackles"]),
			BronchialBreathSounds: asFinding(exam["bronchialBreathSounds"]),
			TrachealDeviation:     asFinding(exam["trachealDeviation"]),
		},
		Smoker:            asBool(m["smoker"]),
		Immunocompromised: asBool(m["immunocompromised"]),
	}
}

func sanitizeVital(v any) Vital {
	m := asObject(v)
	return Vital{
		Value:              asReading(m["value"]),
		IndividualBaseline: asBool(m["individualBaseline"]),
	}
}

// sanitizePredictions returns nil unless every known condition has a finite
// number, so a partial or placeholder block reads as pending. Values are
// clamped to [0,1].
func sanitizePredictions(v any) *triage.Predictions {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	var p triage.Predictions
	for _, c := range triage.Conditions {
		f, ok := asFinite(m[string(c)])
		if !ok {
			return nil
		}
		p.Set(c, math.Min(math.Max(f, 0), 1))
	}
	return &p
}

func sanitizeAssessment(v any) triage.Assessment {
	m := asObject(v)
	level := triage.Level(asString(m["level"]))
	if !level.Valid() {
		return triage.Assessment{
			Level:  triage.LevelRoutine,
			Reason: undeterminedReason,
			Flags:  triage.AllLow(),
		}
	}

	flags := asObject(m["flags"])
	a := triage.Assessment{Level: level, Reason: asString(m["reason"])}
	for _, c := range triage.Conditions {
		f := triage.Flag(asString(flags[string(c)]))
		if !f.Valid() {
			f = triage.FlagLow
		}
		a.Flags.Set(c, f)
	}
	return a
}

func asObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asFinite(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func asNumber(v any) float64 {
	f, _ := asFinite(v)
	return f
}

func asReading(v any) Reading {
	switch r := Reading(asString(v)); r {
	case ReadingLow, ReadingNormal, ReadingHigh:
		return r
	default:
		return ""
	}
}

func asFinding(v any) Finding {
	switch f := Finding(asString(v)); f {
	case FindingAbsent, FindingNormal, FindingPresent:
		return f
	default:
		return ""
	}
}

func parseTime(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func asTime(v any) time.Time {
	t, _ := parseTime(v)
	return t
}
