package analysis

import (
	"context"

	"github.com/bryanwahyu/clinisense/internal/domain/patients"
)

// Analyzer port for the external analysis service
type Analyzer interface {
	Analyze(ctx context.Context, handle string, maxItems int) (*patients.AnalysisPayload, error)
}

// NoteWriter drafts a short clinical note from an analysis payload.
type NoteWriter interface {
	WriteNote(ctx context.Context, patientName string, payload *patients.AnalysisPayload) (string, error)
}
