// Package upstream holds the HTTP clients for the external analyze, auth
// and patient-store services.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bryanwahyu/clinisense/internal/domain/analysis"
)

// client is the JSON plumbing shared by the service clients. Requests carry
// no timeout of their own; they end with the caller's context.
type client struct {
	service string
	baseURL string
	http    *http.Client
}

func newClient(service, baseURL string, hc *http.Client) client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return client{service: service, baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// do sends body as JSON and decodes a 2xx answer into out. Transport
// failures and non-2xx answers wrap analysis.ErrRemoteUnavailable.
func (c client) do(ctx context.Context, method, path, token string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", c.service, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("building %s request: %w", c.service, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", analysis.ErrRemoteUnavailable, c.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &analysis.RemoteError{
			Service: c.service,
			Status:  resp.StatusCode,
			Detail:  readDetail(resp.Body),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decoding response: %v", analysis.ErrRemoteUnavailable, c.service, err)
	}
	return nil
}

// readDetail extracts the `detail` field of an error body. FastAPI sends a
// string for handled errors and a list of objects for validation errors.
func readDetail(r io.Reader) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&body); err != nil || len(body.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return string(body.Detail)
}

// ping reports whether the service answers HTTP at all. Any status counts
// as reachable; only transport failures are errors.
func (c client) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("building %s request: %w", c.service, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", analysis.ErrRemoteUnavailable, c.service, err)
	}
	resp.Body.Close()
	return nil
}
