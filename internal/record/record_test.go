package record

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func sample() Record {
	r := Default()
	r.Patient.Name = "Juan Pérez"
	r.Symptoms = []string{"headache", "fever", "nausea"}
	return r
}

func TestDefault_Sentinels(t *testing.T) {
	d := Default()

	want := map[Field]string{
		FieldPatientName:    NotSpecified,
		FieldPatientAge:     NotSpecified,
		FieldPatientSex:     NotSpecified,
		FieldReasonForVisit: NotSpecified,
		FieldHistory:        NoHistoryMentioned,
		FieldPhysicalExam:   NotSpecified,
		FieldDiagnosis:      NoDiagnosis,
		FieldTreatment:      NoTreatment,
		FieldNotes:          NoNotes,
	}
	for f, v := range want {
		got, err := d.Get(f)
		if err != nil {
			t.Fatalf("Get(%s): %v", f, err)
		}
		if got != v {
			t.Errorf("%s: expected %q, got %q", f, v, got)
		}
	}
	if d.Symptoms == nil || len(d.Symptoms) != 0 {
		t.Errorf("expected empty non-nil symptoms, got %#v", d.Symptoms)
	}
}

func TestDefault_MarshalsEmptySymptomsAsArray(t *testing.T) {
	raw, err := json.Marshal(Default())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["symptoms"].([]any); !ok {
		t.Errorf("expected symptoms to be an array, got %T", m["symptoms"])
	}
}

func TestWithField(t *testing.T) {
	tests := []struct {
		field Field
		value string
	}{
		{FieldPatientName, "Maria López"},
		{FieldPatientAge, "52"},
		{FieldPatientSex, "Female"},
		{FieldReasonForVisit, "Chest pain"},
		{FieldHistory, "Hypertension"},
		{FieldPhysicalExam, "BP 150/95"},
		{FieldDiagnosis, "Angina"},
		{FieldTreatment, "Aspirin"},
		{FieldNotes, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.field), func(t *testing.T) {
			orig := sample()
			next, err := orig.WithField(tt.field, tt.value)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, _ := next.Get(tt.field)
			if got != tt.value {
				t.Errorf("expected %q, got %q", tt.value, got)
			}
			if !reflect.DeepEqual(orig, sample()) {
				t.Error("original record was mutated")
			}
		})
	}
}

func TestWithField_UnknownPath(t *testing.T) {
	orig := sample()
	next, err := orig.WithField("patient.weight", "80kg")
	if !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if !reflect.DeepEqual(next, orig) {
		t.Error("expected record unchanged on unknown path")
	}
}

func TestWithSymptom(t *testing.T) {
	orig := sample()

	next := orig.WithSymptom(1, "high fever")
	if next.Symptoms[1] != "high fever" {
		t.Errorf("expected replacement, got %q", next.Symptoms[1])
	}
	if orig.Symptoms[1] != "fever" {
		t.Error("original symptoms were mutated")
	}

	for _, i := range []int{-1, 3, 100} {
		out := orig.WithSymptom(i, "x")
		if !reflect.DeepEqual(out.Symptoms, orig.Symptoms) {
			t.Errorf("index %d: expected no-op, got %v", i, out.Symptoms)
		}
	}
}

func TestAddSymptom(t *testing.T) {
	orig := sample()
	next := orig.AddSymptom()

	if len(next.Symptoms) != len(orig.Symptoms)+1 {
		t.Fatalf("expected %d symptoms, got %d", len(orig.Symptoms)+1, len(next.Symptoms))
	}
	if next.Symptoms[len(next.Symptoms)-1] != "" {
		t.Errorf("expected empty trailing symptom, got %q", next.Symptoms[len(next.Symptoms)-1])
	}
	if len(orig.Symptoms) != 3 {
		t.Error("original symptoms were mutated")
	}
}

func TestRemoveSymptom(t *testing.T) {
	orig := sample()

	next := orig.RemoveSymptom(0)
	want := []string{"fever", "nausea"}
	if !reflect.DeepEqual(next.Symptoms, want) {
		t.Errorf("expected %v, got %v", want, next.Symptoms)
	}
	if !reflect.DeepEqual(orig.Symptoms, []string{"headache", "fever", "nausea"}) {
		t.Errorf("original symptoms were mutated: %v", orig.Symptoms)
	}

	if out := orig.RemoveSymptom(7); !reflect.DeepEqual(out.Symptoms, orig.Symptoms) {
		t.Errorf("expected no-op for out-of-range index, got %v", out.Symptoms)
	}
}

func TestAddThenRemoveLast_RestoresSymptoms(t *testing.T) {
	orig := sample()
	round := orig.AddSymptom()
	round = round.RemoveSymptom(len(round.Symptoms) - 1)

	if !reflect.DeepEqual(round, orig) {
		t.Errorf("expected %v, got %v", orig, round)
	}
}

func TestDuplicateSymptomsAllowed(t *testing.T) {
	r := Default()
	r = r.AddSymptom().WithSymptom(0, "cough")
	r = r.AddSymptom().WithSymptom(1, "cough")

	if !reflect.DeepEqual(r.Symptoms, []string{"cough", "cough"}) {
		t.Errorf("expected duplicate symptoms to be kept, got %v", r.Symptoms)
	}
}
