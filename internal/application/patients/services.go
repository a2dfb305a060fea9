package patients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/clinisense/internal/application"
	"github.com/bryanwahyu/clinisense/internal/application/handles"
	"github.com/bryanwahyu/clinisense/internal/application/projection"
	"github.com/bryanwahyu/clinisense/internal/domain/analysis"
	"github.com/bryanwahyu/clinisense/internal/domain/doctors"
	domain "github.com/bryanwahyu/clinisense/internal/domain/patients"
	"github.com/bryanwahyu/clinisense/internal/state"
)

const defaultMaxItems = 10

// Service implements the patient use-cases: listing, analysing and
// showing results. It is safe for concurrent use.
type Service struct {
	Remote   domain.RemoteStore
	State    *state.Store
	Analyzer analysis.Analyzer
	Archive  domain.ReportArchive // optional
	Clock    application.Clock
	Log      *zap.Logger
	MaxItems int
	Location *time.Location

	mu       sync.Mutex
	gen      uint64
	inflight map[string]inflight
}

type inflight struct {
	gen    uint64
	cancel context.CancelCauseFunc
}

//
// ==== USE CASES ====
//

// ListResult is the patient list shown on the analyses and reports pages.
type ListResult struct {
	Patients []domain.PatientRecord `json:"patients"`
	Degraded bool                   `json:"degraded"`
	Notice   string                 `json:"notice,omitempty"`
}

// List returns the remote patient list reconciled with the local cache.
// For an anonymous client, or when the patient store fails, the local
// cache of the caller is returned as is.
func (s *Service) List(ctx context.Context, sess *doctors.Session) (ListResult, error) {
	doctorID := sess.Owner()
	if doctorID == "" {
		return ListResult{}, analysis.ErrUnauthorized
	}
	if !sess.Authenticated() {
		local, err := s.State.LocalPatients(ctx, doctorID)
		if err != nil {
			return ListResult{}, fmt.Errorf("loading local patients: %w", err)
		}
		return ListResult{Patients: nonNil(local)}, nil
	}

	var (
		remote    []domain.PatientRecord
		remoteErr error
		local     []domain.PatientRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// a remote failure is not fatal, keep it aside
		remote, remoteErr = s.Remote.List(gctx, sess.Token)
		return nil
	})
	g.Go(func() error {
		var err error
		local, err = s.State.LocalPatients(gctx, doctorID)
		return err
	})
	if err := g.Wait(); err != nil {
		return ListResult{}, fmt.Errorf("loading local patients: %w", err)
	}

	if remoteErr != nil {
		s.logger().Warn("patient store unavailable, using local cache",
			zap.String("doctor_id", doctorID), zap.Error(remoteErr))
		return ListResult{
			Patients: nonNil(local),
			Degraded: true,
			Notice:   "Could not load patients from the patient store. Showing locally saved analyses.",
		}, nil
	}
	return ListResult{Patients: Reconcile(remote, local)}, nil
}

// AnalyzeCommand is a doctor's request to analyse a patient's profile.
type AnalyzeCommand struct {
	PatientName string
	Profile     string
}

// AnalyzeResult is a completed analysis. Warning is set when the remote
// copy could not be saved; it wraps analysis.ErrPersistenceConflict.
type AnalyzeResult struct {
	Record         domain.PatientRecord  `json:"record"`
	Projection     projection.Projection `json:"projection"`
	ReportURL      string                `json:"report_url,omitempty"`
	Warning        error                 `json:"-"`
	WarningMessage string                `json:"warning,omitempty"`
}

// Analyze normalizes the profile, runs the analysis, caches the record
// locally and saves it to the patient store when the doctor is logged in.
// A newer Analyze from the same caller cancels this one, which then
// returns analysis.ErrSuperseded without touching the cache.
func (s *Service) Analyze(ctx context.Context, sess *doctors.Session, cmd AnalyzeCommand) (AnalyzeResult, error) {
	handle, err := handles.Normalize(cmd.Profile)
	if err != nil {
		return AnalyzeResult{}, err
	}
	name := strings.TrimSpace(cmd.PatientName)
	if name == "" {
		return AnalyzeResult{}, domain.ErrMissingPatientName
	}

	owner := sess.Owner()
	if owner == "" {
		return AnalyzeResult{}, analysis.ErrUnauthorized
	}
	key := sessionKey(sess)

	runCtx, gen, release := s.begin(ctx, key)
	defer release()

	payload, err := s.Analyzer.Analyze(runCtx, handle, s.maxItems())
	if errors.Is(context.Cause(runCtx), analysis.ErrSuperseded) {
		return AnalyzeResult{}, analysis.ErrSuperseded
	}
	if err != nil {
		return AnalyzeResult{}, err
	}
	if !s.claim(key, gen) {
		return AnalyzeResult{}, analysis.ErrSuperseded
	}

	rec := domain.PatientRecord{
		ID:          domain.RecordID(uuid.New().String()),
		DoctorID:    owner,
		PatientName: name,
		Handle:      payload.Handle,
		CreatedAt:   s.Clock.Now().UTC(),
		Data:        payload,
	}
	if err := s.State.AppendPatient(ctx, rec); err != nil {
		return AnalyzeResult{}, fmt.Errorf("caching analysis: %w", err)
	}

	res := AnalyzeResult{
		Record:     rec,
		Projection: s.projector().Project(payload),
	}

	if s.Archive != nil {
		url, err := s.Archive.Archive(ctx, rec)
		if err != nil {
			s.logger().Warn("archiving analysis failed", zap.String("record_id", string(rec.ID)), zap.Error(err))
		} else {
			res.ReportURL = url
		}
	}

	if sess.Authenticated() {
		if err := s.Remote.SaveAnalysis(ctx, sess.Token, name, payload); err != nil {
			res.Warning = fmt.Errorf("%w: %v", analysis.ErrPersistenceConflict, err)
			res.WarningMessage = "The analysis was saved locally but not in the patient store."
			s.logger().Warn("remote save failed",
				zap.String("record_id", string(rec.ID)), zap.String("doctor_id", rec.DoctorID), zap.Error(err))
		}
	}

	s.logger().Info("analysis completed",
		zap.String("record_id", string(rec.ID)),
		zap.String("handle", rec.Handle),
		zap.Int("items", payload.ItemsAnalyzed))
	return res, nil
}

// Record returns one patient of the reconciled list by id.
func (s *Service) Record(ctx context.Context, sess *doctors.Session, id domain.RecordID) (domain.PatientRecord, error) {
	list, err := s.List(ctx, sess)
	if err != nil {
		return domain.PatientRecord{}, err
	}
	for _, p := range list.Patients {
		if p.ID == id {
			return p, nil
		}
	}
	// a fresh analysis is addressed by its local id until the remote list has it
	if sess.Authenticated() && !list.Degraded {
		local, err := s.State.LocalPatients(ctx, sess.Owner())
		if err != nil {
			return domain.PatientRecord{}, fmt.Errorf("loading local patients: %w", err)
		}
		for _, p := range local {
			if p.ID == id {
				return p, nil
			}
		}
	}
	return domain.PatientRecord{}, domain.ErrNotFound
}

// ResultView is the results page for one patient.
type ResultView struct {
	PatientName string                `json:"patient_name"`
	Handle      string                `json:"handle"`
	Projection  projection.Projection `json:"projection"`
}

// Results projects the stored analysis of a patient.
func (s *Service) Results(ctx context.Context, sess *doctors.Session, id domain.RecordID) (ResultView, error) {
	rec, err := s.Record(ctx, sess, id)
	if err != nil {
		return ResultView{}, err
	}
	if rec.Data == nil {
		return ResultView{}, domain.ErrNoAnalysisData
	}
	if err := rec.Data.Validate(); err != nil {
		return ResultView{}, fmt.Errorf("%w: %v", domain.ErrNoAnalysisData, err)
	}
	return ResultView{
		PatientName: rec.PatientName,
		Handle:      rec.Handle,
		Projection:  s.projector().Project(rec.Data),
	}, nil
}

// begin registers an in-flight analysis for key, cancelling the previous one.
func (s *Service) begin(ctx context.Context, key string) (context.Context, uint64, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight == nil {
		s.inflight = make(map[string]inflight)
	}
	if prev, ok := s.inflight[key]; ok {
		prev.cancel(analysis.ErrSuperseded)
	}
	s.gen++
	gen := s.gen
	runCtx, cancel := context.WithCancelCause(ctx)
	s.inflight[key] = inflight{gen: gen, cancel: cancel}

	return runCtx, gen, func() {
		s.mu.Lock()
		if cur, ok := s.inflight[key]; ok && cur.gen == gen {
			delete(s.inflight, key)
		}
		s.mu.Unlock()
		cancel(nil)
	}
}

// claim takes the cache write for the analysis started as gen. It fails
// when a newer analysis for key has begun; once claimed, a later begin
// no longer cancels this one.
func (s *Service) claim(key string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.inflight[key]
	if !ok || cur.gen != gen {
		return false
	}
	delete(s.inflight, key)
	return true
}

func (s *Service) projector() projection.Projector {
	return projection.Projector{Location: s.Location}
}

func (s *Service) maxItems() int {
	if s.MaxItems <= 0 {
		return defaultMaxItems
	}
	return s.MaxItems
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// sessionKey scopes supersession: a doctor's login token, or the
// anonymous client identity.
func sessionKey(sess *doctors.Session) string {
	if !sess.Authenticated() {
		return sess.Owner()
	}
	return "token:" + sess.Token
}

func nonNil(list []domain.PatientRecord) []domain.PatientRecord {
	if list == nil {
		return []domain.PatientRecord{}
	}
	return list
}
