package access

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(message string, args ...any)
	Info(message string, args ...any)
	Warn(message string, args ...any)
	Error(message string, args ...any)
}

// LoggerProvider resolves named, scoped loggers for subcomponents.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// Identity holds the attributes of an authenticated principal as issued by
// the identity backend. Immutable for the lifetime of a session.
type Identity interface {
	ID() string
	Email() string
}

type authIdentity struct {
	id    string
	email string
}

func (a authIdentity) ID() string    { return a.id }
func (a authIdentity) Email() string { return a.email }

// NewIdentity builds an Identity value from backend-issued attributes.
func NewIdentity(id, email string) Identity {
	return authIdentity{id: id, email: email}
}

// AuthEvent is an out-of-band event pushed by the identity backend.
type AuthEvent string

const (
	AuthEventSignedIn       AuthEvent = "SIGNED_IN"
	AuthEventSignedOut      AuthEvent = "SIGNED_OUT"
	AuthEventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// AuthEventHandler consumes backend auth events. The identity may be nil
// (e.g. for signed-out events). Handlers must be idempotent.
type AuthEventHandler func(event AuthEvent, identity Identity)

// Backend is the capability contract this package consumes from the
// identity/storage backend. Implementations are expected to be safe for
// concurrent use.
type Backend interface {
	Login(ctx context.Context, creds Credentials) (Identity, error)
	Register(ctx context.Context, reg Registration) (Identity, error)
	Logout(ctx context.Context) error

	// CurrentSession returns the backend-held identity, or (nil, nil) when
	// no session exists.
	CurrentSession(ctx context.Context) (Identity, error)

	// OnAuthStateChange registers a handler for pushed auth events and
	// returns a disposer that cancels the subscription.
	OnAuthStateChange(handler AuthEventHandler) (unsubscribe func())

	GetProfile(ctx context.Context, id string) (*Profile, error)
	UpdateProfile(ctx context.Context, id string, patch ProfilePatch) error

	// PendingProfiles returns unapproved accounts, creation time ascending.
	PendingProfiles(ctx context.Context) ([]*Profile, error)

	ApproveAccount(ctx context.Context, id string) error
	RejectAccount(ctx context.Context, id string) error
	ClearRejection(ctx context.Context, id string) error
	DeleteAccount(ctx context.Context, id string) error
}

// Config supplies token options to the store-backed backend.
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
}

type defLogger struct{}

func (d defLogger) Error(message string, args ...any) {
	fmt.Printf("[ERR] ACCESS "+newline(message), args...)
}

func (d defLogger) Warn(message string, args ...any) {
	fmt.Printf("[WRN] ACCESS "+newline(message), args...)
}

func (d defLogger) Info(message string, args ...any) {
	fmt.Printf("[INF] ACCESS "+newline(message), args...)
}

func (d defLogger) Debug(message string, args ...any) {
	fmt.Printf("[DBG] ACCESS "+newline(message), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// ResolveLogger resolves a scoped logger from the provider, falling back to
// the given logger, then to the package default.
func ResolveLogger(name string, provider LoggerProvider, fallback Logger) (LoggerProvider, Logger) {
	if provider != nil {
		if logger := provider.GetLogger(name); logger != nil {
			return provider, logger
		}
	}

	if fallback != nil {
		return provider, fallback
	}

	return provider, defLogger{}
}
