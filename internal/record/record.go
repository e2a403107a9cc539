// Package record defines the structured clinical record produced by extraction
// and the pure mutation operations the editing UI applies to it.
package record

import (
	"errors"
	"fmt"
)

// Default sentinels used when the consultation text omits a field.
const (
	NotSpecified       = "Not specified"
	NoHistoryMentioned = "No history mentioned"
	NoDiagnosis        = "No diagnosis recorded"
	NoTreatment        = "No treatment recorded"
	NoNotes            = "No additional notes"
)

// ErrUnknownField is returned when a field path does not name a record leaf.
var ErrUnknownField = errors.New("unknown record field")

// Patient holds the demographic fields of a record.
type Patient struct {
	Name string `json:"name"`
	Age  string `json:"age"`
	Sex  string `json:"sex"`
}

// Record is the canonical output of extraction.
// Symptoms is never nil on values produced by this package; order is display order.
type Record struct {
	Patient        Patient  `json:"patient"`
	ReasonForVisit string   `json:"reasonForVisit"`
	History        string   `json:"history"`
	Symptoms       []string `json:"symptoms"`
	PhysicalExam   string   `json:"physicalExam"`
	Diagnosis      string   `json:"diagnosis"`
	Treatment      string   `json:"treatment"`
	Notes          string   `json:"notes"`
}

// Field is a dotted path naming a string leaf of a Record.
type Field string

const (
	FieldPatientName    Field = "patient.name"
	FieldPatientAge     Field = "patient.age"
	FieldPatientSex     Field = "patient.sex"
	FieldReasonForVisit Field = "reasonForVisit"
	FieldHistory        Field = "history"
	FieldPhysicalExam   Field = "physicalExam"
	FieldDiagnosis      Field = "diagnosis"
	FieldTreatment      Field = "treatment"
	FieldNotes          Field = "notes"
)

// Fields lists every editable string leaf in display order.
func Fields() []Field {
	return []Field{
		FieldPatientName, FieldPatientAge, FieldPatientSex,
		FieldReasonForVisit, FieldHistory, FieldPhysicalExam,
		FieldDiagnosis, FieldTreatment, FieldNotes,
	}
}

// Default returns a record with every field set to its sentinel and no symptoms.
func Default() Record {
	return Record{
		Patient: Patient{
			Name: NotSpecified,
			Age:  NotSpecified,
			Sex:  NotSpecified,
		},
		ReasonForVisit: NotSpecified,
		History:        NoHistoryMentioned,
		Symptoms:       []string{},
		PhysicalExam:   NotSpecified,
		Diagnosis:      NoDiagnosis,
		Treatment:      NoTreatment,
		Notes:          NoNotes,
	}
}

// DefaultFor returns the sentinel a field takes when the source text omits it.
func DefaultFor(f Field) (string, error) {
	d := Default()
	return d.Get(f)
}

// Clone returns a deep copy; the symptom slice is never shared.
func (r Record) Clone() Record {
	out := r
	out.Symptoms = make([]string, len(r.Symptoms))
	copy(out.Symptoms, r.Symptoms)
	return out
}

// Get returns the value of a string leaf.
func (r Record) Get(f Field) (string, error) {
	p, err := r.leaf(f)
	if err != nil {
		return "", err
	}
	return *p, nil
}

// WithField returns a copy of r with the named leaf set to value.
// An unknown path leaves the record unchanged and returns ErrUnknownField.
func (r Record) WithField(f Field, value string) (Record, error) {
	out := r.Clone()
	p, err := out.leaf(f)
	if err != nil {
		return r, err
	}
	*p = value
	return out, nil
}

// WithSymptom returns a copy of r with symptom i replaced. Out-of-range indexes
// return an unchanged copy.
func (r Record) WithSymptom(i int, value string) Record {
	out := r.Clone()
	if i < 0 || i >= len(out.Symptoms) {
		return out
	}
	out.Symptoms[i] = value
	return out
}

// AddSymptom returns a copy of r with an empty symptom appended.
func (r Record) AddSymptom() Record {
	out := r.Clone()
	out.Symptoms = append(out.Symptoms, "")
	return out
}

// RemoveSymptom returns a copy of r without symptom i; later items shift left.
// Out-of-range indexes return an unchanged copy.
func (r Record) RemoveSymptom(i int) Record {
	out := r.Clone()
	if i < 0 || i >= len(out.Symptoms) {
		return out
	}
	out.Symptoms = append(out.Symptoms[:i], out.Symptoms[i+1:]...)
	return out
}

func (r *Record) leaf(f Field) (*string, error) {
	switch f {
	case FieldPatientName:
		return &r.Patient.Name, nil
	case FieldPatientAge:
		return &r.Patient.Age, nil
	case FieldPatientSex:
		return &r.Patient.Sex, nil
	case FieldReasonForVisit:
		return &r.ReasonForVisit, nil
	case FieldHistory:
		return &r.History, nil
	case FieldPhysicalExam:
		return &r.PhysicalExam, nil
	case FieldDiagnosis:
		return &r.Diagnosis, nil
	case FieldTreatment:
		return &r.Treatment, nil
	case FieldNotes:
		return &r.Notes, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, string(f))
	}
}
