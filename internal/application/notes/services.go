package notes

import (
	"context"
	"errors"
	"time"

	"github.com/bryanwahyu/clinisense/internal/application"
	"github.com/bryanwahyu/clinisense/internal/domain/analysis"
	"github.com/bryanwahyu/clinisense/internal/domain/doctors"
	domain "github.com/bryanwahyu/clinisense/internal/domain/patients"
)

// ErrDisabled is returned when no note writer is configured.
var ErrDisabled = errors.New("clinical notes are not configured")

// RecordFinder looks a patient up in the reconciled list.
type RecordFinder interface {
	Record(ctx context.Context, sess *doctors.Session, id domain.RecordID) (domain.PatientRecord, error)
}

// Note is a drafted clinical note for one analysed patient.
type Note struct {
	RecordID    domain.RecordID `json:"record_id"`
	PatientName string          `json:"patient_name"`
	Text        string          `json:"text"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Service struct {
	writer  analysis.NoteWriter
	records RecordFinder
	clock   application.Clock
}

func NewService(writer analysis.NoteWriter, records RecordFinder, clock application.Clock) *Service {
	return &Service{writer: writer, records: records, clock: clock}
}

// Draft writes a note from the stored analysis of patient id.
func (s *Service) Draft(ctx context.Context, sess *doctors.Session, id domain.RecordID) (*Note, error) {
	if s.writer == nil {
		return nil, ErrDisabled
	}
	rec, err := s.records.Record(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if rec.Data == nil {
		return nil, domain.ErrNoAnalysisData
	}
	text, err := s.writer.WriteNote(ctx, rec.PatientName, rec.Data)
	if err != nil {
		return nil, err
	}
	return &Note{
		RecordID:    rec.ID,
		PatientName: rec.PatientName,
		Text:        text,
		CreatedAt:   s.clock.Now().UTC(),
	}, nil
}
