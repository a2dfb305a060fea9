package patients

import domain "github.com/bryanwahyu/clinisense/internal/domain/patients"

// Reconcile returns remote in its own order and length, each record carrying
// the payload of the first local record sharing its patient name or its
// handle. Records with no local match come back without data.
func Reconcile(remote, local []domain.PatientRecord) []domain.PatientRecord {
	out := make([]domain.PatientRecord, len(remote))
	for i, r := range remote {
		out[i] = r.WithData(nil)
		if m := firstMatch(r, local); m != nil {
			out[i] = r.WithData(m.Data)
		}
	}
	return out
}

func firstMatch(r domain.PatientRecord, local []domain.PatientRecord) *domain.PatientRecord {
	for i := range local {
		if local[i].PatientName == r.PatientName || local[i].Handle == r.Handle {
			return &local[i]
		}
	}
	return nil
}
