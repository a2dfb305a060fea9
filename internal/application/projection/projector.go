// Package projection reshapes an analysis payload into the series the
// results page charts: a category distribution and a per-tweet timeline.
package projection

import (
	"encoding/json"
	"math"
	"slices"
	"time"

	"github.com/bryanwahyu/clinisense/internal/domain/patients"
)

const (
	dateLayout     = "02/01/2006"
	dateTimeLayout = "02/01/2006 15:04:05"
)

// created_at arrives either as RFC 3339 or as Python's str(datetime).
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Slice is one slice of the distribution chart.
type Slice struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

// ChartPoint is one tweet on the timeline chart.
type ChartPoint struct {
	Index         int     `json:"index"`
	ID            int64   `json:"id"`
	Date          string  `json:"date"`
	Timestamp     int64   `json:"timestamp"`
	FormattedDate string  `json:"formattedDate"`
	Sentiment     float64 `json:"sentiment"`
	Anxiety       float64 `json:"anxiety"`
	Negative      float64 `json:"negative"`
	Neutral       float64 `json:"neutral"`
	State         string  `json:"state"`
	StateLabel    string  `json:"state_label"`
	Text          string  `json:"text"`
	Likes         int     `json:"likes"`
	Retweets      int     `json:"retweets"`
}

// Projection is everything the results page renders for one payload.
// AverageSentiment is NaN when Timeline is empty.
type Projection struct {
	Handle           string       `json:"handle"`
	ItemsAnalyzed    int          `json:"items_analyzed"`
	Distribution     []Slice      `json:"distribution"`
	Timeline         []ChartPoint `json:"timeline"`
	AverageSentiment float64      `json:"-"`
}

// MarshalJSON writes average_sentiment as null when there is nothing to average.
func (p Projection) MarshalJSON() ([]byte, error) {
	type alias Projection
	var avg *float64
	if !math.IsNaN(p.AverageSentiment) {
		v := p.AverageSentiment
		avg = &v
	}
	return json.Marshal(struct {
		alias
		AverageSentiment *float64 `json:"average_sentiment"`
	}{alias(p), avg})
}

// Projector formats dates in a fixed location.
type Projector struct {
	Location *time.Location
}

// Project projects p with dates rendered in UTC.
func Project(p *patients.AnalysisPayload) Projection {
	return Projector{Location: time.UTC}.Project(p)
}

// Project does not validate p: callers pass payloads that already went
// through patients.AnalysisPayload.Validate.
func (pr Projector) Project(p *patients.AnalysisPayload) Projection {
	timeline := pr.Timeline(p.Predictions)
	return Projection{
		Handle:           p.Handle,
		ItemsAnalyzed:    p.ItemsAnalyzed,
		Distribution:     Distribution(p.OverallSummary),
		Timeline:         timeline,
		AverageSentiment: AverageSentiment(timeline),
	}
}

// Distribution returns one slice per summary key, in the summary's order.
func Distribution(summary *patients.Summary) []Slice {
	out := make([]Slice, 0, summary.Len())
	for pair := summary.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, Slice{
			Name:  pair.Key,
			Value: pair.Value,
			Label: patients.Label(pair.Key),
		})
	}
	return out
}

// Timeline orders predictions by creation time (ties keep their input order)
// and flattens each into a ChartPoint. The input slice is left untouched.
func (pr Projector) Timeline(preds []patients.Prediction) []ChartPoint {
	type stamped struct {
		pred patients.Prediction
		at   time.Time
	}
	sorted := make([]stamped, len(preds))
	for i, p := range preds {
		sorted[i] = stamped{pred: p, at: parseTimestamp(p.CreatedAt)}
	}
	slices.SortStableFunc(sorted, func(a, b stamped) int {
		return a.at.Compare(b.at)
	})

	loc := pr.Location
	if loc == nil {
		loc = time.UTC
	}
	out := make([]ChartPoint, len(sorted))
	for i, s := range sorted {
		local := s.at.In(loc)
		probs := s.pred.Probabilities
		out[i] = ChartPoint{
			Index:         i,
			ID:            s.pred.ID,
			Date:          local.Format(dateLayout),
			Timestamp:     s.at.UnixMilli(),
			FormattedDate: local.Format(dateTimeLayout),
			Sentiment:     probs.Of(patients.CategoryPositive),
			Anxiety:       probs.Of(patients.CategoryAnxiety),
			Negative:      probs.Of(patients.CategoryNegative),
			Neutral:       probs.Of(patients.CategoryNeutral),
			State:         s.pred.PredictedState,
			StateLabel:    patients.Label(s.pred.PredictedState),
			Text:          s.pred.Text,
			Likes:         s.pred.Likes,
			Retweets:      s.pred.Retweets,
		}
	}
	return out
}

// AverageSentiment is the mean Sentiment column, NaN for an empty timeline.
func AverageSentiment(timeline []ChartPoint) float64 {
	if len(timeline) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, p := range timeline {
		sum += p.Sentiment
	}
	return sum / float64(len(timeline))
}

// parseTimestamp returns the zero time for values it cannot read, which
// sorts them ahead of every dated prediction.
func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
