package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"consult-scribe-service/internal/record"
)

// Coerce maps a gated JSON object onto a Record. Missing, null or blank
// members take their sentinel; numbers and booleans are stringified.
// Symptom strings are kept as given, non-string entries are dropped.
func Coerce(doc map[string]any) record.Record {
	r := record.Default()

	if p, ok := doc["patient"].(map[string]any); ok {
		r.Patient.Name = stringOr(p["name"], r.Patient.Name)
		r.Patient.Age = stringOr(p["age"], r.Patient.Age)
		r.Patient.Sex = stringOr(p["sex"], r.Patient.Sex)
	}
	r.ReasonForVisit = stringOr(doc["reasonForVisit"], r.ReasonForVisit)
	r.History = stringOr(doc["history"], r.History)
	r.PhysicalExam = stringOr(doc["physicalExam"], r.PhysicalExam)
	r.Diagnosis = stringOr(doc["diagnosis"], r.Diagnosis)
	r.Treatment = stringOr(doc["treatment"], r.Treatment)
	r.Notes = stringOr(doc["notes"], r.Notes)

	if items, ok := doc["symptoms"].([]any); ok {
		for _, it := range items {
			if s, ok := it.(string); ok {
				r.Symptoms = append(r.Symptoms, s)
			}
		}
	}
	return r
}

func stringOr(v any, def string) string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return def
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}
