// Package state owns the application state shared by the services: the
// authenticated doctor sessions and the local cache of analysed patients.
package state

import (
	"context"
	"fmt"

	"github.com/bryanwahyu/clinisense/internal/domain/doctors"
	"github.com/bryanwahyu/clinisense/internal/domain/patients"
)

// Store is the single owner of sessions and cached patient records.
type Store struct {
	sessions doctors.SessionStore
	cache    patients.LocalCache
}

func New(sessions doctors.SessionStore, cache patients.LocalCache) *Store {
	return &Store{sessions: sessions, cache: cache}
}

// Session resolves a token. An empty or unknown token yields (nil, nil).
func (s *Store) Session(ctx context.Context, token string) (*doctors.Session, error) {
	if token == "" {
		return nil, nil
	}
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return sess, nil
}

func (s *Store) SaveSession(ctx context.Context, sess *doctors.Session) error {
	if !sess.Authenticated() {
		return fmt.Errorf("session without token")
	}
	return s.sessions.Save(ctx, sess)
}

// ClearSession drops the doctor id, name and token together.
func (s *Store) ClearSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

// LocalPatients returns the cached records for a doctor, oldest first.
func (s *Store) LocalPatients(ctx context.Context, doctorID string) ([]patients.PatientRecord, error) {
	return s.cache.List(ctx, doctorID)
}

func (s *Store) AppendPatient(ctx context.Context, rec patients.PatientRecord) error {
	return s.cache.Append(ctx, rec)
}
