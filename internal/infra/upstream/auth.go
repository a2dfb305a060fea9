package upstream

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bryanwahyu/clinisense/internal/domain/analysis"
	"github.com/bryanwahyu/clinisense/internal/domain/doctors"
)

// Auth calls the doctor auth service.
type Auth struct {
	c client
}

func NewAuth(baseURL string, hc *http.Client) *Auth {
	return &Auth{c: newClient("auth", baseURL, hc)}
}

// Ping checks that the service is reachable.
func (a *Auth) Ping(ctx context.Context) error { return a.c.ping(ctx) }

func (a *Auth) Register(ctx context.Context, r doctors.Registration) (*doctors.Registered, error) {
	var out doctors.Registered
	if err := a.c.do(ctx, http.MethodPost, "/register", "", r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *Auth) Login(ctx context.Context, email, password string) (*doctors.Session, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{email, password}

	var out doctors.Session
	if err := a.c.do(ctx, http.MethodPost, "/login", "", body, &out); err != nil {
		return nil, err
	}
	if out.Token == "" || out.DoctorID == "" {
		return nil, fmt.Errorf("%w: auth: login response lacks access_token or doctorId", analysis.ErrRemoteUnavailable)
	}
	return &out, nil
}
