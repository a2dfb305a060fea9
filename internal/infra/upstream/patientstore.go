package upstream

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bryanwahyu/clinisense/internal/domain/patients"
)

// PatientStore calls the remote patient-store API.
type PatientStore struct {
	c client
}

func NewPatientStore(baseURL string, hc *http.Client) *PatientStore {
	return &PatientStore{c: newClient("patient store", baseURL, hc)}
}

// Ping checks that the service is reachable.
func (p *PatientStore) Ping(ctx context.Context) error { return p.c.ping(ctx) }

type remotePatient struct {
	ID          string `json:"id"`
	PatientName string `json:"patient_name"`
	Handle      string `json:"twitter_username"`
	CreatedAt   string `json:"created_at"`
}

// Mongo-backed stores often drop the zone from created_at.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func parseCreatedAt(s string) time.Time {
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// List returns the doctor's patients as summary records, without payloads.
func (p *PatientStore) List(ctx context.Context, token string) ([]patients.PatientRecord, error) {
	var raw []remotePatient
	if err := p.c.do(ctx, http.MethodGet, "/patients", token, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]patients.PatientRecord, len(raw))
	for i, r := range raw {
		out[i] = patients.PatientRecord{
			ID:          patients.RecordID(r.ID),
			PatientName: r.PatientName,
			Handle:      r.Handle,
			CreatedAt:   parseCreatedAt(r.CreatedAt),
		}
	}
	return out, nil
}

// SaveAnalysis persists an analysis on the patient store.
func (p *PatientStore) SaveAnalysis(ctx context.Context, token, patientName string, payload *patients.AnalysisPayload) error {
	if token == "" {
		return fmt.Errorf("patient store: missing token")
	}
	body := struct {
		PatientName  string                    `json:"patient_name"`
		AnalysisData *patients.AnalysisPayload `json:"analysis_data"`
	}{patientName, payload}
	return p.c.do(ctx, http.MethodPost, "/patients/save_analysis", token, body, nil)
}
