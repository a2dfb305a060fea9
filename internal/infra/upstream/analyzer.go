package upstream

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bryanwahyu/clinisense/internal/domain/analysis"
	"github.com/bryanwahyu/clinisense/internal/domain/patients"
)

// Analyzer calls POST /analyze on the analysis service.
type Analyzer struct {
	c client
}

func NewAnalyzer(baseURL string, hc *http.Client) *Analyzer {
	return &Analyzer{c: newClient("analyze", baseURL, hc)}
}

// Ping checks that the service is reachable.
func (a *Analyzer) Ping(ctx context.Context) error { return a.c.ping(ctx) }

type analyzeRequest struct {
	Handle   string `json:"handle"`
	MaxItems int    `json:"max_items"`
}

// Analyze returns the analysis for handle. A payload missing its summary or
// predictions is rejected here rather than reaching the projector.
func (a *Analyzer) Analyze(ctx context.Context, handle string, maxItems int) (*patients.AnalysisPayload, error) {
	var out patients.AnalysisPayload
	if err := a.c.do(ctx, http.MethodPost, "/analyze", "", analyzeRequest{Handle: handle, MaxItems: maxItems}, &out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("%w: analyze: %v", analysis.ErrRemoteUnavailable, err)
	}
	return &out, nil
}
