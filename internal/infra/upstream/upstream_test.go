package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/clinisense/internal/domain/analysis"
	"github.com/bryanwahyu/clinisense/internal/domain/doctors"
	"github.com/bryanwahyu/clinisense/internal/domain/patients"
)

const analyzeBody = `{
  "handle": "alice",
  "items_analyzed": 2,
  "overall_summary": {"positive": 0.6, "negative": 0.4},
  "predictions": [
    {"id": 1, "text": "a", "created_at": "2024-01-02T00:00:00Z", "likes": 1, "retweets": 0, "predicted_state": "positive", "probabilities": {"positive": 0.9}},
    {"id": 2, "text": "b", "created_at": "2024-01-01T00:00:00Z", "likes": 0, "retweets": 1, "predicted_state": "negative", "probabilities": {"negative": 0.7}}
  ]
}`

func TestAnalyzer_Analyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice", req["handle"])
		assert.Equal(t, float64(10), req["max_items"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(analyzeBody))
	}))
	defer srv.Close()

	p, err := NewAnalyzer(srv.URL+"/", srv.Client()).Analyze(context.Background(), "alice", 10)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Handle)
	assert.Equal(t, 2, p.ItemsAnalyzed)
	require.Len(t, p.Predictions, 2)
	assert.Equal(t, 0.9, p.Predictions[0].Probabilities.Of(patients.CategoryPositive))
	assert.Equal(t, "positive", p.OverallSummary.Oldest().Key)
}

func TestAnalyzer_ErrorDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"L'utilisateur Twitter @ghost n'a pas été trouvé."}`))
	}))
	defer srv.Close()

	_, err := NewAnalyzer(srv.URL, nil).Analyze(context.Background(), "ghost", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, analysis.ErrRemoteUnavailable)
	var re *analysis.RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusNotFound, re.Status)
	assert.Equal(t, "L'utilisateur Twitter @ghost n'a pas été trouvé.", err.Error())
}

func TestAnalyzer_ValidationDetailList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":[{"loc":["body","max_items"],"msg":"ensure this value is less than or equal to 100"}]}`))
	}))
	defer srv.Close()

	_, err := NewAnalyzer(srv.URL, nil).Analyze(context.Background(), "alice", 1000)
	assert.EqualError(t, err, "ensure this value is less than or equal to 100")
}

func TestAnalyzer_NoDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	_, err := NewAnalyzer(srv.URL, nil).Analyze(context.Background(), "alice", 10)
	assert.EqualError(t, err, "analyze: unexpected status 502")
}

func TestAnalyzer_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"handle":"alice","items_analyzed":0}`))
	}))
	defer srv.Close()

	_, err := NewAnalyzer(srv.URL, nil).Analyze(context.Background(), "alice", 10)
	assert.ErrorIs(t, err, analysis.ErrRemoteUnavailable)
}

func TestAnalyzer_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewAnalyzer(url, nil).Analyze(context.Background(), "alice", 10)
	assert.ErrorIs(t, err, analysis.ErrRemoteUnavailable)
}

func TestAuth_LoginAndRegister(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body["password"] != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"detail":"Email ou mot de passe incorrect"}`))
				return
			}
			w.Write([]byte(`{"doctorId":"d1","nom":"House","access_token":"tok","message":"ok"}`))
		case "/register":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "House", body["nom"])
			_, hasPrenom := body["prenom"]
			assert.False(t, hasPrenom)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"doctorId":"d1","message":"Inscription réussie"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	auth := NewAuth(srv.URL, nil)
	ctx := context.Background()

	sess, err := auth.Login(ctx, "house@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, &doctors.Session{DoctorID: "d1", Name: "House", Token: "tok", Message: "ok"}, sess)

	_, err = auth.Login(ctx, "house@example.com", "wrong")
	assert.EqualError(t, err, "Email ou mot de passe incorrect")

	reg, err := auth.Register(ctx, doctors.Registration{Nom: "House", Email: "house@example.com", Password: "secret", Specialite: "psy"})
	require.NoError(t, err)
	assert.Equal(t, "d1", reg.DoctorID)
}

func TestAuth_LoginWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"doctorId":"d1","nom":"House"}`))
	}))
	defer srv.Close()

	_, err := NewAuth(srv.URL, nil).Login(context.Background(), "a@b.c", "x")
	assert.ErrorIs(t, err, analysis.ErrRemoteUnavailable)
}

func TestAuth_LoginWithoutDoctorID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"nom":"House","access_token":"tok"}`))
	}))
	defer srv.Close()

	_, err := NewAuth(srv.URL, nil).Login(context.Background(), "a@b.c", "x")
	assert.ErrorIs(t, err, analysis.ErrRemoteUnavailable)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	ctx := context.Background()

	assert.NoError(t, NewAnalyzer(srv.URL, nil).Ping(ctx), "any answer is reachable")
	assert.NoError(t, NewAuth(srv.URL, nil).Ping(ctx))
	assert.NoError(t, NewPatientStore(srv.URL, nil).Ping(ctx))

	srv.Close()
	assert.ErrorIs(t, NewAnalyzer(srv.URL, nil).Ping(ctx), analysis.ErrRemoteUnavailable)
}

func TestPatientStore(t *testing.T) {
	var saved map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/patients":
			w.Write([]byte(`[
				{"id":"p1","patient_name":"Alice","twitter_username":"alice","created_at":"2024-05-01T10:00:00.123000"},
				{"id":"p2","patient_name":"Bob","twitter_username":"bob","created_at":"2024-05-02T10:00:00Z"}
			]`))
		case r.Method == http.MethodPost && r.URL.Path == "/patients/save_analysis":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&saved))
			w.Write([]byte(`{"message":"ok","patient_id":"p3"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store := NewPatientStore(srv.URL, nil)
	ctx := context.Background()

	list, err := store.List(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, patients.RecordID("p1"), list[0].ID)
	assert.Equal(t, "alice", list[0].Handle)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 123000000, time.UTC), list[0].CreatedAt)
	assert.Nil(t, list[0].Data)

	_, err = store.List(ctx, "other")
	assert.ErrorIs(t, err, analysis.ErrRemoteUnavailable)

	payload := &patients.AnalysisPayload{Handle: "alice", OverallSummary: patients.NewSummary(), Predictions: []patients.Prediction{}}
	require.NoError(t, store.SaveAnalysis(ctx, "tok", "Alice", payload))
	assert.JSONEq(t, `"Alice"`, string(saved["patient_name"]))
	assert.Contains(t, string(saved["analysis_data"]), `"handle":"alice"`)

	assert.Error(t, store.SaveAnalysis(ctx, "", "Alice", payload))
}
