package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"consult-scribe-service/internal/service/llm"
	"consult-scribe-service/internal/service/llm/mock"
)

func postProcess(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestProcess_Success(t *testing.T) {
	p := &mock.Provider{Content: mock.SampleRecordJSON}
	h := NewRouter(newTestApp(t, p, "none"))

	rr := postProcess(t, h, `{"transcript":"Maria Lopez, 52, chest pain for two days."}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp processResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Patient.Name != "Maria Lopez" || len(resp.Data.Symptoms) == 0 {
		t.Errorf("unexpected record %+v", resp.Data)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestProcess_Errors(t *testing.T) {
	tests := []struct {
		name     string
		provider *mock.Provider
		body     string
		status   int
		message  string
		calls    int
	}{
		{"bad body", &mock.Provider{}, `{`, http.StatusBadRequest, msgInvalidBody, 0},
		{"missing transcript", &mock.Provider{}, `{}`, http.StatusBadRequest, msgNoTranscript, 0},
		{"blank transcript", &mock.Provider{}, `{"transcript":"  \n"}`, http.StatusBadRequest, msgNoTranscript, 0},
		{
			"unauthorized",
			&mock.Provider{Err: fmt.Errorf("%w: invalid key", llm.ErrUnauthorized)},
			`{"transcript":"text"}`, http.StatusInternalServerError, msgConfig, 1,
		},
		{
			"rate limited",
			&mock.Provider{Err: fmt.Errorf("%w: slow down", llm.ErrRateLimited)},
			`{"transcript":"text"}`, http.StatusTooManyRequests, msgRateLimited, 1,
		},
		{
			"upstream",
			&mock.Provider{Err: errors.New("connection reset")},
			`{"transcript":"text"}`, http.StatusInternalServerError, msgProcessingError, 1,
		},
		{
			"malformed",
			&mock.Provider{Content: "Here is the record you asked for"},
			`{"transcript":"text"}`, http.StatusInternalServerError, msgMalformed, 1,
		},
		{
			"incomplete",
			&mock.Provider{Content: `{"reasonForVisit":"cough"}`},
			`{"transcript":"text"}`, http.StatusInternalServerError, msgIncomplete, 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(newTestApp(t, tt.provider, "none"))

			rr := postProcess(t, h, tt.body)
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
			var resp errorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error != tt.message {
				t.Errorf("expected %q, got %q", tt.message, resp.Error)
			}
			if got := len(tt.provider.Calls()); got != tt.calls {
				t.Errorf("expected %d provider calls, got %d", tt.calls, got)
			}
		})
	}
}

func TestProcess_VersionedRoute(t *testing.T) {
	h := NewRouter(newTestApp(t, &mock.Provider{Content: mock.SampleRecordJSON}, "none"))

	req := httptest.NewRequest(http.MethodPost, "/v1/process", strings.NewReader(`{"transcript":"text"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}
