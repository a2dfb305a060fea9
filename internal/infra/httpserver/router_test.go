package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/clinisense/internal/application"
	appdoctors "github.com/bryanwahyu/clinisense/internal/application/doctors"
	appnotes "github.com/bryanwahyu/clinisense/internal/application/notes"
	apppatients "github.com/bryanwahyu/clinisense/internal/application/patients"
	"github.com/bryanwahyu/clinisense/internal/domain/analysis"
	"github.com/bryanwahyu/clinisense/internal/domain/doctors"
	"github.com/bryanwahyu/clinisense/internal/domain/patients"
	"github.com/bryanwahyu/clinisense/internal/middleware"
	"github.com/bryanwahyu/clinisense/internal/state"
)

type stubAuth struct{}

func (stubAuth) Register(_ context.Context, r doctors.Registration) (*doctors.Registered, error) {
	return &doctors.Registered{DoctorID: "d1", Message: "Inscription réussie"}, nil
}

func (stubAuth) Login(_ context.Context, email, password string) (*doctors.Session, error) {
	if password != "secret" {
		return nil, &analysis.RemoteError{Service: "auth", Status: http.StatusUnauthorized, Detail: "Email ou mot de passe incorrect"}
	}
	return &doctors.Session{DoctorID: "d1", Name: "House", Token: "tok"}, nil
}

type stubRemote struct {
	list []patients.PatientRecord
	err  error
}

func (s *stubRemote) List(context.Context, string) ([]patients.PatientRecord, error) {
	return s.list, s.err
}

func (s *stubRemote) SaveAnalysis(context.Context, string, string, *patients.AnalysisPayload) error {
	return nil
}

type stubAnalyzer struct{ err error }

func (s stubAnalyzer) Analyze(_ context.Context, handle string, _ int) (*patients.AnalysisPayload, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &patients.AnalysisPayload{
		Handle:         handle,
		ItemsAnalyzed:  2,
		OverallSummary: patients.NewSummary(patients.SummaryEntry{Category: "positive", Value: 0.5}, patients.SummaryEntry{Category: "anxiety", Value: 0.5}),
		Predictions: []patients.Prediction{
			{ID: 1, Text: "b", CreatedAt: "2024-01-02T00:00:00Z", PredictedState: "anxiety", Probabilities: patients.Probabilities{"anxiety": 0.9}},
			{ID: 2, Text: "a", CreatedAt: "2024-01-01T00:00:00Z", PredictedState: "positive", Probabilities: patients.Probabilities{"positive": 0.7}},
		},
	}, nil
}

type stubWriter struct{}

func (stubWriter) WriteNote(_ context.Context, name string, _ *patients.AnalysisPayload) (string, error) {
	return "Note pour " + name, nil
}

type fixture struct {
	handler  http.Handler
	remote   *stubRemote
	analyzer *stubAnalyzer
}

func newFixture(t *testing.T, withNotes bool) *fixture {
	t.Helper()
	st := state.New(state.NewMemorySessions(), state.NewMemoryCache())
	remote := &stubRemote{}
	analyzer := &stubAnalyzer{}
	clock := application.FixedClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	docs := appdoctors.NewService(stubAuth{}, st, nil)
	pats := &apppatients.Service{Remote: remote, State: st, Analyzer: analyzer, Clock: clock}
	var notes *appnotes.Service
	if withNotes {
		notes = appnotes.NewService(stubWriter{}, pats, clock)
	}

	h := NewRouter(Deps{
		Doctors:        docs,
		Patients:       pats,
		Notes:          notes,
		Registry:       middleware.NewRegistry(),
		AllowedOrigins: []string{"http://localhost:3000"},
	})
	return &fixture{handler: h, remote: remote, analyzer: analyzer}
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRouter_LoginLogout(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodPost, "/v1/auth/login", "", `{"email":"house@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Email ou mot de passe incorrect", decodeBody(t, w)["detail"])

	w = f.do(t, http.MethodPost, "/v1/auth/login", "", `{"email":"house@example.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok", decodeBody(t, w)["access_token"])

	w = f.do(t, http.MethodPost, "/v1/auth/logout", "tok", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/v1/patients", "tok", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_Register(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodPost, "/v1/auth/register", "", `{"nom":"House","email":"bad","password":"x","specialite":"psy"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/v1/auth/register", "", `{"nom":"House","email":"house@example.com","password":"x","specialite":"psy"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "d1", decodeBody(t, w)["doctorId"])

	w = f.do(t, http.MethodPost, "/v1/auth/register", "", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Normalize(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodPost, "/v1/handles/normalize", "", `{"input":"https://twitter.com/alice/status/1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decodeBody(t, w)["handle"])

	w = f.do(t, http.MethodPost, "/v1/handles/normalize", "", `{"input":"https://facebook.com/alice"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

const (
	clientA = "6f1c0e3a-2b7d-4c1e-9a55-0d3e8f2b7a11"
	clientB = "a8d2e4f6-1c3b-4e5a-8f7d-9b0c1d2e3f40"
)

// doAs sends an anonymous request carrying the given client id.
func (f *fixture) doAs(t *testing.T, clientID, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: middleware.ClientIDCookie, Value: clientID})
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func TestRouter_AnonymousClientsAreIsolated(t *testing.T) {
	f := newFixture(t, false)

	w := f.doAs(t, clientA, http.MethodPost, "/v1/analyses", `{"patient_name":"Alice","profile":"@alice"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, clientA, w.Header().Get(middleware.ClientIDHeader))
	body := decodeBody(t, w)
	record := body["record"].(map[string]any)
	idA := record["id"].(string)
	assert.Equal(t, "alice", record["twitter_username"])

	proj := body["projection"].(map[string]any)
	timeline := proj["timeline"].([]any)
	require.Len(t, timeline, 2)
	assert.Equal(t, "a", timeline[0].(map[string]any)["text"])

	w = f.doAs(t, clientB, http.MethodPost, "/v1/analyses", `{"patient_name":"Bob","profile":"@bob"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	idB := decodeBody(t, w)["record"].(map[string]any)["id"].(string)

	w = f.doAs(t, clientA, http.MethodGet, "/v1/patients", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody(t, w)
	require.Len(t, list["patients"], 1)
	assert.Equal(t, "Alice", list["patients"].([]any)[0].(map[string]any)["patient_name"])
	assert.Equal(t, false, list["degraded"])

	w = f.doAs(t, clientA, http.MethodGet, "/v1/patients/"+idA+"/results", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Alice", decodeBody(t, w)["patient_name"])

	// neither client reaches the other's records
	assert.Equal(t, http.StatusNotFound, f.doAs(t, clientA, http.MethodGet, "/v1/patients/"+idB+"/results", "").Code)
	assert.Equal(t, http.StatusNotFound, f.doAs(t, clientB, http.MethodGet, "/v1/patients/"+idA+"/results", "").Code)

	// a caller without a client id starts with an empty cache
	w = f.do(t, http.MethodGet, "/v1/patients", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody(t, w)["patients"])
	assert.NotEmpty(t, w.Header().Get(middleware.ClientIDHeader))

	w = f.doAs(t, clientA, http.MethodGet, "/v1/patients/unknown/results", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.doAs(t, clientA, http.MethodGet, "/v1/patients/bad..id/results", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_AnalyzeErrors(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodPost, "/v1/analyses", "", `{"patient_name":"Alice","profile":"not a handle!"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/v1/analyses", "", `{"patient_name":"  ","profile":"@alice"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.analyzer.err = &analysis.RemoteError{Service: "analyze", Status: http.StatusNotFound, Detail: "utilisateur introuvable"}
	w = f.do(t, http.MethodPost, "/v1/analyses", "", `{"patient_name":"Alice","profile":"@ghost"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "utilisateur introuvable", decodeBody(t, w)["detail"])

	f.analyzer.err = &analysis.RemoteError{Service: "analyze", Status: http.StatusInternalServerError}
	w = f.do(t, http.MethodPost, "/v1/analyses", "", `{"patient_name":"Alice","profile":"@alice"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestRouter_DegradedList(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(t, http.MethodPost, "/v1/auth/login", "", `{"email":"house@example.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)

	f.remote.err = analysis.ErrRemoteUnavailable
	w = f.do(t, http.MethodGet, "/v1/patients", "tok", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["degraded"])
	assert.NotEmpty(t, body["notice"])
}

func TestRouter_Note(t *testing.T) {
	f := newFixture(t, true)
	w := f.do(t, http.MethodPost, "/v1/auth/login", "", `{"email":"house@example.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/v1/analyses", "tok", `{"patient_name":"Alice","profile":"alice"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	f.remote.list = []patients.PatientRecord{{ID: "remote1", PatientName: "Alice", Handle: "alice"}}

	w = f.do(t, http.MethodPost, "/v1/patients/remote1/note", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, "/v1/patients/remote1/note", "tok", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Note pour Alice", decodeBody(t, w)["text"])
}

func TestRouter_NoteDisabled(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(t, http.MethodPost, "/v1/auth/login", "", `{"email":"house@example.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/v1/patients/any/note", "tok", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_OperationalEndpoints(t *testing.T) {
	f := newFixture(t, false)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/ready", "", "").Code)
	assert.Equal(t, "ok", f.do(t, http.MethodGet, "/live", "", "").Body.String())

	w := f.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "clinisense_http_requests_total")
}

func TestRouter_HealthReport(t *testing.T) {
	f := newFixture(t, false)
	f.handler = NewRouter(Deps{
		Doctors:  appdoctors.NewService(stubAuth{}, state.New(state.NewMemorySessions(), state.NewMemoryCache()), nil),
		Patients: &apppatients.Service{},
		Health: &middleware.Health{
			Components: []middleware.Component{
				{Name: "analyze", Target: "http://analyze:8000", Critical: true, Check: func(context.Context) error { return analysis.ErrRemoteUnavailable }},
			},
			Features: map[string]bool{"archive": false, "notes": false},
		},
	})

	w := f.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, middleware.StatusDown, body["status"])
	comp := body["components"].([]any)[0].(map[string]any)
	assert.Equal(t, "http://analyze:8000", comp["target"])
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/ready", "", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/live", "", "").Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{analysis.ErrSuperseded, http.StatusConflict},
		{analysis.ErrQuotaExceeded, http.StatusTooManyRequests},
		{patients.ErrNoAnalysisData, http.StatusNotFound},
		{appnotes.ErrDisabled, http.StatusServiceUnavailable},
		{analysis.ErrRemoteUnavailable, http.StatusBadGateway},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}
