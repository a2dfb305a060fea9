package postgres

import (
	"encoding/json"
	"strings"

	"github.com/bryanwahyu/clinisense/internal/domain/patients"
)

func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func dashToEmpty(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

// payloadJSON is stored in a JSONB column; a record without data stores JSON null.
func payloadJSON(p *patients.AnalysisPayload) ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	return json.Marshal(p)
}

func parsePayload(raw []byte) (*patients.AnalysisPayload, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}
	var p patients.AnalysisPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
