package access_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
	access "github.com/tidewatch/go-access"
)

// MockBackend implements access.Backend
type MockBackend struct {
	mock.Mock

	mu         sync.Mutex
	handlers   []access.AuthEventHandler
	subscribed int
}

func (m *MockBackend) Login(ctx context.Context, creds access.Credentials) (access.Identity, error) {
	args := m.Called(ctx, creds)
	identity, _ := args.Get(0).(access.Identity)
	return identity, args.Error(1)
}

func (m *MockBackend) Register(ctx context.Context, reg access.Registration) (access.Identity, error) {
	args := m.Called(ctx, reg)
	identity, _ := args.Get(0).(access.Identity)
	return identity, args.Error(1)
}

func (m *MockBackend) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBackend) CurrentSession(ctx context.Context) (access.Identity, error) {
	args := m.Called(ctx)
	identity, _ := args.Get(0).(access.Identity)
	return identity, args.Error(1)
}

func (m *MockBackend) OnAuthStateChange(handler access.AuthEventHandler) func() {
	m.mu.Lock()
	m.handlers = append(m.handlers, handler)
	m.subscribed++
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		m.subscribed--
		m.mu.Unlock()
	}
}

// Emit pushes an auth event to every registered handler, simulating an
// out-of-band backend notification.
func (m *MockBackend) Emit(event access.AuthEvent, identity access.Identity) {
	m.mu.Lock()
	handlers := append([]access.AuthEventHandler{}, m.handlers...)
	m.mu.Unlock()

	for _, handler := range handlers {
		handler(event, identity)
	}
}

func (m *MockBackend) Subscribed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribed
}

func (m *MockBackend) GetProfile(ctx context.Context, id string) (*access.Profile, error) {
	args := m.Called(ctx, id)
	profile, _ := args.Get(0).(*access.Profile)
	return profile, args.Error(1)
}

func (m *MockBackend) UpdateProfile(ctx context.Context, id string, patch access.ProfilePatch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}

func (m *MockBackend) PendingProfiles(ctx context.Context) ([]*access.Profile, error) {
	args := m.Called(ctx)
	profiles, _ := args.Get(0).([]*access.Profile)
	return profiles, args.Error(1)
}

func (m *MockBackend) ApproveAccount(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBackend) RejectAccount(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBackend) ClearRejection(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBackend) DeleteAccount(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// captureSink records activity events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []access.ActivityEvent
}

func (s *captureSink) Record(ctx context.Context, event access.ActivityEvent) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

func (s *captureSink) Events() []access.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]access.ActivityEvent{}, s.events...)
}

func (s *captureSink) Has(eventType access.ActivityEventType) bool {
	for _, event := range s.Events() {
		if event.EventType == eventType {
			return true
		}
	}
	return false
}

type configStub struct{}

func (configStub) GetSigningKey() string   { return "test-signing-key" }
func (configStub) GetTokenExpiration() int { return 24 }
func (configStub) GetIssuer() string       { return "access-test" }
func (configStub) GetAudience() []string   { return []string{"app"} }
