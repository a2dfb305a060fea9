package doctors

import "context"

// Authenticator port for the external auth service
type Authenticator interface {
	Register(ctx context.Context, r Registration) (*Registered, error)
	Login(ctx context.Context, email, password string) (*Session, error)
}

// SessionStore keeps sessions keyed by their token.
// Get returns (nil, nil) when the token is unknown.
type SessionStore interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}
