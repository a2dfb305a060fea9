package patients

import (
	"errors"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// RecordID identifier type
type RecordID string

// Summary maps a category name to its aggregate proportion, keeping the
// order in which the analysis service emitted the keys.
type Summary = orderedmap.OrderedMap[string, float64]

// SummaryEntry is one key/value of a Summary, used to build one in order.
type SummaryEntry struct {
	Category string
	Value    float64
}

// NewSummary builds a Summary preserving the order of entries.
func NewSummary(entries ...SummaryEntry) *Summary {
	s := orderedmap.New[string, float64]()
	for _, e := range entries {
		s.Set(e.Category, e.Value)
	}
	return s
}

// Prediction is the per-tweet output of the analysis service.
type Prediction struct {
	ID             int64         `json:"id"`
	Text           string        `json:"text"`
	CreatedAt      string        `json:"created_at"`
	Likes          int           `json:"likes"`
	Retweets       int           `json:"retweets"`
	PredictedState string        `json:"predicted_state"`
	Probabilities  Probabilities `json:"probabilities"`
}

// AnalysisPayload is the full analysis result for one handle.
// Once attached to a PatientRecord it is only ever replaced, never edited.
type AnalysisPayload struct {
	Handle         string       `json:"handle"`
	ItemsAnalyzed  int          `json:"items_analyzed"`
	OverallSummary *Summary     `json:"overall_summary"`
	Predictions    []Prediction `json:"predictions"`
}

// PatientRecord is a patient entry. Remote records come without Data;
// locally cached ones carry the payload they were created from.
type PatientRecord struct {
	ID          RecordID         `json:"id"`
	DoctorID    string           `json:"-"`
	PatientName string           `json:"patient_name"`
	Handle      string           `json:"twitter_username"`
	CreatedAt   time.Time        `json:"created_at"`
	Data        *AnalysisPayload `json:"data,omitempty"`
}

// WithData returns a copy of r carrying payload p.
func (r PatientRecord) WithData(p *AnalysisPayload) PatientRecord {
	r.Data = p
	return r
}

// Validate checks the fields the dashboard relies on are present.
func (p *AnalysisPayload) Validate() error {
	switch {
	case p == nil:
		return errors.New("empty analysis payload")
	case p.OverallSummary == nil:
		return errors.New("analysis payload has no overall_summary")
	case p.Predictions == nil:
		return errors.New("analysis payload has no predictions")
	}
	return nil
}
