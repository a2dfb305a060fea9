package patients

import "context"

// RemoteStore port for the remote patient-store API
type RemoteStore interface {
	List(ctx context.Context, token string) ([]PatientRecord, error)
	SaveAnalysis(ctx context.Context, token, patientName string, payload *AnalysisPayload) error
}

// LocalCache port for the locally cached, payload-carrying records.
// The cache is append-only: records are never updated or deleted.
type LocalCache interface {
	List(ctx context.Context, doctorID string) ([]PatientRecord, error)
	Append(ctx context.Context, rec PatientRecord) error
}

// ReportArchive stores a raw payload and returns where it can be fetched.
type ReportArchive interface {
	Archive(ctx context.Context, rec PatientRecord) (string, error)
}
