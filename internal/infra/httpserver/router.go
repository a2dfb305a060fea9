package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	appdoctors "github.com/bryanwahyu/clinisense/internal/application/doctors"
	"github.com/bryanwahyu/clinisense/internal/application/handles"
	appnotes "github.com/bryanwahyu/clinisense/internal/application/notes"
	apppatients "github.com/bryanwahyu/clinisense/internal/application/patients"
	"github.com/bryanwahyu/clinisense/internal/domain/analysis"
	domdoctors "github.com/bryanwahyu/clinisense/internal/domain/doctors"
	dompatients "github.com/bryanwahyu/clinisense/internal/domain/patients"
	"github.com/bryanwahyu/clinisense/internal/middleware"
)

// Deps are the services and infrastructure the HTTP API is served from.
type Deps struct {
	Doctors        *appdoctors.Service
	Patients       *apppatients.Service
	Notes          *appnotes.Service
	Health         *middleware.Health
	Registry       *prometheus.Registry
	Limiter        *middleware.RateLimiter
	AllowedOrigins []string
	Log            *zap.Logger
}

type Router struct {
	doctors  *appdoctors.Service
	patients *apppatients.Service
	notes    *appnotes.Service
	log      *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	r := &Router{doctors: d.Doctors, patients: d.Patients, notes: d.Notes, log: log}
	mux := chi.NewRouter()

	mux.Use(chimw.RequestID)
	mux.Use(chimw.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.ClientIDHeader},
		ExposedHeaders:   []string{middleware.ClientIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	mux.Use(middleware.Logging(log))
	mux.Use(middleware.Metrics)

	health := d.Health
	if health == nil {
		health = &middleware.Health{}
	}
	mux.Get("/health", health.Handler())
	mux.Get("/ready", health.ReadinessHandler())
	mux.Get("/live", middleware.LivenessHandler)
	if d.Registry != nil {
		mux.Handle("/metrics", middleware.MetricsHandler(d.Registry))
	}

	mux.Route("/v1", func(rt chi.Router) {
		rt.Use(middleware.SessionAuth(d.Doctors))
		if d.Limiter != nil {
			rt.Use(middleware.RateLimit(d.Limiter))
		}

		rt.Post("/auth/register", r.wrap(r.handleRegister))
		rt.Post("/auth/login", r.wrap(r.handleLogin))
		rt.With(middleware.RequireSession).Post("/auth/logout", r.wrap(r.handleLogout))

		rt.Post("/handles/normalize", r.wrap(r.handleNormalize))
		rt.Get("/patients", r.wrap(r.handleListPatients))
		rt.Post("/analyses", r.wrap(r.handleAnalyze))
		rt.Get("/patients/{id}/results", r.wrap(r.handleResults))
		rt.With(middleware.RequireSession).Post("/patients/{id}/note", r.wrap(r.handleNote))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status, detail := statusFor(err)
			if status >= http.StatusInternalServerError {
				r.log.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
			}
			writeJSON(w, status, map[string]string{"detail": detail})
		}
	}
}

// statusFor maps an error to the status code and detail message returned.
func statusFor(err error) (int, string) {
	var remote *analysis.RemoteError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, analysis.ErrInvalidHandle),
		errors.Is(err, dompatients.ErrMissingPatientName),
		errors.Is(err, appdoctors.ErrInvalidRegistration):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, analysis.ErrUnauthorized):
		return http.StatusUnauthorized, "authentification requise"
	case errors.Is(err, dompatients.ErrNotFound):
		return http.StatusNotFound, "patient introuvable"
	case errors.Is(err, dompatients.ErrNoAnalysisData):
		return http.StatusNotFound, "Aucune donnée d'analyse disponible pour ce patient."
	case errors.Is(err, analysis.ErrSuperseded):
		return http.StatusConflict, "analyse remplacée par une requête plus récente"
	case errors.Is(err, analysis.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "ai quota exceeded"
	case errors.Is(err, appnotes.ErrDisabled):
		return http.StatusServiceUnavailable, err.Error()
	case errors.As(err, &remote):
		// upstream client errors (bad credentials, unknown user) pass through
		if remote.Status >= 400 && remote.Status < 500 {
			return remote.Status, remote.Error()
		}
		return http.StatusBadGateway, remote.Error()
	case errors.Is(err, analysis.ErrRemoteUnavailable):
		return http.StatusBadGateway, "service distant indisponible"
	default:
		return http.StatusInternalServerError, "erreur interne"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, req *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<20)).Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

// POST /v1/auth/register
func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) error {
	var body domdoctors.Registration
	if err := decode(w, req, &body); err != nil {
		return err
	}
	res, err := r.doctors.Register(req.Context(), body)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, res)
}

// POST /v1/auth/login
// Body: {"email": "...", "password": "..."}
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	if body.Email == "" || body.Password == "" {
		return badRequest("email and password are required")
	}
	sess, err := r.doctors.Login(req.Context(), body.Email, body.Password)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, sess)
}

// POST /v1/auth/logout
func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) error {
	if err := r.doctors.Logout(req.Context(), middleware.TokenFromContext(req.Context())); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// POST /v1/handles/normalize
// Body: {"input": "https://x.com/alice"}
func (r *Router) handleNormalize(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Input string `json:"input"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	handle, err := handles.Normalize(body.Input)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]string{"handle": handle})
}

// GET /v1/patients
func (r *Router) handleListPatients(w http.ResponseWriter, req *http.Request) error {
	res, err := r.patients.List(req.Context(), middleware.SessionFromContext(req.Context()))
	if err != nil {
		return err
	}
	if res.Degraded {
		middleware.PatientListDegraded.Inc()
	}
	return writeJSON(w, http.StatusOK, res)
}

// POST /v1/analyses
// Body: {"patient_name": "...", "profile": "@alice"}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		PatientName string `json:"patient_name"`
		Profile     string `json:"profile"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	name := middleware.SanitizeString(body.PatientName)
	if err := middleware.ValidatePatientName(name); err != nil {
		return badRequest("%v", err)
	}

	res, err := r.patients.Analyze(req.Context(), middleware.SessionFromContext(req.Context()), apppatients.AnalyzeCommand{
		PatientName: name,
		Profile:     body.Profile,
	})
	middleware.AnalysesTotal.WithLabelValues(analysisOutcome(res, err)).Inc()
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, res)
}

func analysisOutcome(res apppatients.AnalyzeResult, err error) string {
	switch {
	case err == nil && res.Warning != nil:
		return middleware.OutcomeStoredLocal
	case err == nil:
		return middleware.OutcomeStored
	case errors.Is(err, analysis.ErrSuperseded):
		return middleware.OutcomeSuperseded
	case errors.Is(err, analysis.ErrRemoteUnavailable):
		return middleware.OutcomeRemoteFailed
	default:
		return middleware.OutcomeInvalid
	}
}

// GET /v1/patients/{id}/results
func (r *Router) handleResults(w http.ResponseWriter, req *http.Request) error {
	id, err := recordID(req)
	if err != nil {
		return err
	}
	view, err := r.patients.Results(req.Context(), middleware.SessionFromContext(req.Context()), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, view)
}

// POST /v1/patients/{id}/note
func (r *Router) handleNote(w http.ResponseWriter, req *http.Request) error {
	if r.notes == nil {
		return appnotes.ErrDisabled
	}
	id, err := recordID(req)
	if err != nil {
		return err
	}
	note, err := r.notes.Draft(req.Context(), middleware.SessionFromContext(req.Context()), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, note)
}

func recordID(req *http.Request) (dompatients.RecordID, error) {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateRecordID(id); err != nil {
		return "", badRequest("%v", err)
	}
	return dompatients.RecordID(id), nil
}
