package state

import (
	"context"
	"sync"

	"github.com/bryanwahyu/clinisense/internal/domain/doctors"
	"github.com/bryanwahyu/clinisense/internal/domain/patients"
)

// MemorySessions is a process-local SessionStore.
type MemorySessions struct {
	mu       sync.RWMutex
	sessions map[string]doctors.Session
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]doctors.Session)}
}

func (m *MemorySessions) Save(_ context.Context, s *doctors.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Token] = *s
	return nil
}

func (m *MemorySessions) Get(_ context.Context, token string) (*doctors.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemorySessions) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

// MemoryCache is a process-local LocalCache. Each doctor's list is
// rewritten wholesale on append.
type MemoryCache struct {
	mu    sync.Mutex
	lists map[string][]patients.PatientRecord
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{lists: make(map[string][]patients.PatientRecord)}
}

func (m *MemoryCache) List(_ context.Context, doctorID string) ([]patients.PatientRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]patients.PatientRecord, len(m.lists[doctorID]))
	copy(out, m.lists[doctorID])
	return out, nil
}

func (m *MemoryCache) Append(_ context.Context, rec patients.PatientRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := m.lists[rec.DoctorID]
	updated := make([]patients.PatientRecord, 0, len(existing)+1)
	updated = append(updated, existing...)
	updated = append(updated, rec)
	m.lists[rec.DoctorID] = updated
	return nil
}
