package extract

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"consult-scribe-service/internal/record"
	"consult-scribe-service/internal/schema"
	"consult-scribe-service/internal/service/llm"
	"consult-scribe-service/internal/service/llm/mock"
)

func newService(t *testing.T, p llm.Provider) *Service {
	t.Helper()
	s, err := New(p, DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestExtract_EmptyTranscript(t *testing.T) {
	p := &mock.Provider{}
	s := newService(t, p)

	for _, in := range []string{"", "   ", "\n\t"} {
		_, err := s.Extract(context.Background(), in)
		if !errors.Is(err, ErrEmptyTranscript) {
			t.Errorf("%q: expected ErrEmptyTranscript, got %v", in, err)
		}
	}
	if len(p.Calls()) != 0 {
		t.Error("blank transcript must not reach the provider")
	}
}

func TestExtract_FullRecord(t *testing.T) {
	p := &mock.Provider{Content: `{
		"patient": {"name": "Juan Pérez", "age": "45 years", "sex": "Male"},
		"reasonForVisit": "Headache",
		"history": "Hypertension",
		"symptoms": ["headache", "fever"],
		"physicalExam": "Temp 38.5",
		"diagnosis": "Viral infection",
		"treatment": "Paracetamol",
		"notes": "Follow up in a week"
	}`}
	s := newService(t, p)

	rec, err := s.Extract(context.Background(), "Patient Juan Pérez, 45, headache and fever.")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := record.Record{
		Patient:        record.Patient{Name: "Juan Pérez", Age: "45 years", Sex: "Male"},
		ReasonForVisit: "Headache",
		History:        "Hypertension",
		Symptoms:       []string{"headache", "fever"},
		PhysicalExam:   "Temp 38.5",
		Diagnosis:      "Viral infection",
		Treatment:      "Paracetamol",
		Notes:          "Follow up in a week",
	}
	if !reflect.DeepEqual(rec, want) {
		t.Errorf("expected %+v, got %+v", want, rec)
	}
}

func TestExtract_RequestShape(t *testing.T) {
	p := &mock.Provider{Content: `{"patient":{},"symptoms":[]}`}
	s := newService(t, p)

	transcript := "The patient has a cough."
	if _, err := s.Extract(context.Background(), transcript); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one upstream call, got %d", len(calls))
	}
	req := calls[0].Req
	if req.Temperature != 0.3 || req.MaxTokens != 2000 || !req.JSONObject {
		t.Errorf("unexpected sampling parameters: %+v", req)
	}
	if req.SystemPrompt == "" {
		t.Error("expected system prompt")
	}
	user := req.Messages[0].Content
	for _, want := range []string{transcript, "reasonForVisit", "physicalExam", record.NoHistoryMentioned, record.NoDiagnosis, record.NoTreatment, record.NoNotes, record.NotSpecified} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
}

func TestExtract_PromptIsDeterministic(t *testing.T) {
	s := newService(t, &mock.Provider{})
	a := s.BuildRequest("same text")
	b := s.BuildRequest("same text")
	if !reflect.DeepEqual(a, b) {
		t.Error("expected identical requests for identical transcripts")
	}
}

func TestExtract_MinimalRecordDefaults(t *testing.T) {
	p := &mock.Provider{Content: `{"patient":{"name":"Ana"},"symptoms":[]}`}
	s := newService(t, p)

	rec, err := s.Extract(context.Background(), "Ana came in.")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := record.Default()
	want.Patient.Name = "Ana"
	if !reflect.DeepEqual(rec, want) {
		t.Errorf("expected %+v, got %+v", want, rec)
	}
}

func TestExtract_NumericAgeCoerced(t *testing.T) {
	p := &mock.Provider{Content: `{"patient":{"age":52,"sex":null},"symptoms":["cough", 3, "", null]}`}
	s := newService(t, p)

	rec, err := s.Extract(context.Background(), "A 52 year old with cough.")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.Patient.Age != "52" {
		t.Errorf("expected age \"52\", got %q", rec.Patient.Age)
	}
	if rec.Patient.Sex != record.NotSpecified {
		t.Errorf("expected null sex to default, got %q", rec.Patient.Sex)
	}
	if !reflect.DeepEqual(rec.Symptoms, []string{"cough", ""}) {
		t.Errorf("unexpected symptoms %v", rec.Symptoms)
	}
}

func TestExtract_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		provider *mock.Provider
		kind     Kind
		wantRaw  bool
	}{
		{"unauthorized", &mock.Provider{Err: llm.ClassifyStatus(401, errors.New("bad key"))}, KindConfig, false},
		{"unconfigured", nil, KindConfig, false},
		{"rate limited", &mock.Provider{Err: llm.ClassifyStatus(429, errors.New("slow down"))}, KindRateLimited, false},
		{"transport", &mock.Provider{Err: errors.New("connection reset")}, KindUpstream, false},
		{"empty choices", &mock.Provider{Err: llm.ErrEmptyResponse}, KindUpstream, false},
		{"not json", &mock.Provider{Content: "Here is the record: patient Ana"}, KindMalformed, true},
		{"markdown fenced", &mock.Provider{Content: "```json\n{\"patient\":{},\"symptoms\":[]}\n```"}, KindMalformed, true},
		{"trailing garbage", &mock.Provider{Content: `{"patient":{},"symptoms":[]} extra`}, KindMalformed, true},
		{"trailing brace", &mock.Provider{Content: `{"patient":{},"symptoms":[]} }`}, KindMalformed, true},
		{"trailing bracket", &mock.Provider{Content: `{"patient":{},"symptoms":[]} ]`}, KindMalformed, true},
		{"second object", &mock.Provider{Content: `{"patient":{},"symptoms":[]} {}`}, KindMalformed, true},
		{"missing patient", &mock.Provider{Content: `{"symptoms":["cough"]}`}, KindIncomplete, true},
		{"missing symptoms", &mock.Provider{Content: `{"patient":{"name":"Ana"}}`}, KindIncomplete, true},
		{"symptoms not array", &mock.Provider{Content: `{"patient":{},"symptoms":"cough"}`}, KindIncomplete, true},
		{"array body", &mock.Provider{Content: `[]`}, KindIncomplete, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p llm.Provider = tt.provider
			if tt.provider == nil {
				p = llm.Unconfigured("no key")
			}
			s := newService(t, p)

			_, err := s.Extract(context.Background(), "some transcript")
			var xerr *Error
			if !errors.As(err, &xerr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if xerr.Kind != tt.kind {
				t.Errorf("expected kind %v, got %v", tt.kind, xerr.Kind)
			}
			if tt.wantRaw && xerr.Raw == "" {
				t.Error("expected raw response to be kept")
			}
			if !IsKind(err, tt.kind) {
				t.Error("IsKind disagrees with Kind")
			}
		})
	}
}

func TestExtract_ContextCancelledIsUpstream(t *testing.T) {
	p := &mock.Provider{Func: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	s := newService(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Extract(ctx, "text")
	if !IsKind(err, KindUpstream) {
		t.Errorf("expected upstream error, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("expected context.Canceled cause")
	}
}

func TestKind_String(t *testing.T) {
	tests := map[Kind]string{
		KindConfig:      "config_error",
		KindRateLimited: "rate_limited",
		KindUpstream:    "upstream_error",
		KindMalformed:   "malformed_response",
		KindIncomplete:  "incomplete_record",
		Kind(99):        "unknown(99)",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}

func TestExtract_ChestPainScenario(t *testing.T) {
	p := &mock.Provider{Content: mock.SampleRecordJSON}
	s := newService(t, p)

	transcript := "Patient Maria Lopez, 52, female, chest pain for two days, no prior conditions, " +
		"exam unremarkable, likely costochondritis, prescribed ibuprofen, follow up in one week"
	rec, err := s.Extract(context.Background(), transcript)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if rec.Patient != (record.Patient{Name: "Maria Lopez", Age: "52", Sex: "female"}) {
		t.Errorf("unexpected patient %+v", rec.Patient)
	}
	if rec.History != record.NoHistoryMentioned {
		t.Errorf("expected history sentinel, got %q", rec.History)
	}
	for _, c := range []struct{ field, value, substr string }{
		{"reasonForVisit", rec.ReasonForVisit, "chest pain"},
		{"diagnosis", rec.Diagnosis, "costochondritis"},
		{"treatment", rec.Treatment, "ibuprofen"},
		{"notes", rec.Notes, "one week"},
	} {
		if !strings.Contains(strings.ToLower(c.value), c.substr) {
			t.Errorf("%s %q does not mention %q", c.field, c.value, c.substr)
		}
	}
	if got := p.Calls()[0].Req.Messages[0].Content; !strings.Contains(got, transcript) {
		t.Error("expected the transcript embedded verbatim in the prompt")
	}
}

func TestDecodeEdited_KeepsValuesAsPosted(t *testing.T) {
	raw := `{"patient":{"name":"Ana","age":"","sex":"female"},"history":"","notes":"",` +
		`"symptoms":["chest pain","","cough"]}`

	rec, xerr := DecodeEdited(schema.MustNew(), raw)
	if xerr != nil {
		t.Fatalf("DecodeEdited: %v", xerr)
	}
	if rec.History != "" || rec.Notes != "" || rec.Patient.Age != "" {
		t.Errorf("expected blank fields to stay blank, got %+v", rec)
	}
	if rec.Diagnosis != "" {
		t.Errorf("expected absent diagnosis to stay empty, got %q", rec.Diagnosis)
	}
	if !reflect.DeepEqual(rec.Symptoms, []string{"chest pain", "", "cough"}) {
		t.Errorf("unexpected symptoms %q", rec.Symptoms)
	}
}

func TestDecodeEdited_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind Kind
	}{
		{"not json", "patient Ana", KindMalformed},
		{"trailing brace", `{"patient":{},"symptoms":[]} }`, KindMalformed},
		{"numeric age", `{"patient":{"age":52},"symptoms":[]}`, KindMalformed},
		{"missing symptoms", `{"patient":{}}`, KindIncomplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, xerr := DecodeEdited(schema.MustNew(), tt.raw)
			if xerr == nil {
				t.Fatal("expected an error")
			}
			if xerr.Kind != tt.kind {
				t.Errorf("expected kind %v, got %v", tt.kind, xerr.Kind)
			}
		})
	}
}
