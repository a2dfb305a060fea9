package patients

import "errors"

var (
	ErrNotFound           = errors.New("patient not found")
	ErrNoAnalysisData     = errors.New("analysis data not available")
	ErrMissingPatientName = errors.New("patient name is required")
)
