package doctors

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/bryanwahyu/clinisense/internal/domain/analysis"
	domain "github.com/bryanwahyu/clinisense/internal/domain/doctors"
	"github.com/bryanwahyu/clinisense/internal/state"
)

// ErrInvalidRegistration is returned for incomplete or malformed sign-ups.
var ErrInvalidRegistration = errors.New("invalid registration")

// Service handles doctor sign-up and sessions.
type Service struct {
	Auth  domain.Authenticator
	State *state.Store
	Log   *zap.Logger
}

func NewService(auth domain.Authenticator, st *state.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Auth: auth, State: st, Log: log}
}

// Register forwards a sign-up to the auth service.
func (s *Service) Register(ctx context.Context, r domain.Registration) (*domain.Registered, error) {
	r.Nom = strings.TrimSpace(r.Nom)
	r.Prenom = strings.TrimSpace(r.Prenom)
	r.Email = strings.TrimSpace(r.Email)
	r.Specialite = strings.TrimSpace(r.Specialite)

	switch {
	case r.Nom == "":
		return nil, fmt.Errorf("%w: nom is required", ErrInvalidRegistration)
	case r.Specialite == "":
		return nil, fmt.Errorf("%w: specialite is required", ErrInvalidRegistration)
	case r.Password == "":
		return nil, fmt.Errorf("%w: password is required", ErrInvalidRegistration)
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return nil, fmt.Errorf("%w: email is not valid", ErrInvalidRegistration)
	}

	res, err := s.Auth.Register(ctx, r)
	if err != nil {
		return nil, err
	}
	s.Log.Info("doctor registered", zap.String("doctor_id", res.DoctorID))
	return res, nil
}

// Login authenticates against the auth service and keeps the session.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	sess, err := s.Auth.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, err
	}
	if err := s.State.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	s.Log.Info("doctor logged in", zap.String("doctor_id", sess.DoctorID))
	return sess, nil
}

// Logout forgets the session for token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.State.ClearSession(ctx, token)
}

// Current resolves token to its session, analysis.ErrUnauthorized when unknown.
func (s *Service) Current(ctx context.Context, token string) (*domain.Session, error) {
	sess, err := s.State.Session(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, analysis.ErrUnauthorized
	}
	return sess, nil
}
