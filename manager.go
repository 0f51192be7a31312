package access

import (
	"context"
	"sync"
	"time"
)

// authEventTimeout bounds work done inside backend-pushed event handlers,
// which run outside any caller-supplied context.
var authEventTimeout = 10 * time.Second

// SessionManager owns the canonical Session value. It mediates login,
// registration, logout and restore against the identity backend, reacts to
// backend-pushed auth events, and publishes read-only snapshots to
// subscribers. Create one at process start and Close it at shutdown; there
// is no hidden package-level instance.
type SessionManager struct {
	backend      Backend
	cache        *ProfileCache
	logger       Logger
	provider     LoggerProvider
	activitySink ActivitySink
	restore      bool

	mu           sync.Mutex
	current      Session
	authInFlight bool
	closed       bool
	unsubscribe  func()
	observers    map[int]func(Session)
	observerSeq  int
}

type SessionManagerOption func(*SessionManager)

// WithLogger sets the logger used by the manager.
func WithLogger(logger Logger) SessionManagerOption {
	return func(m *SessionManager) {
		m.provider, m.logger = ResolveLogger("access.session_manager", m.provider, logger)
	}
}

// WithLoggerProvider resolves the manager logger from a provider.
func WithLoggerProvider(provider LoggerProvider) SessionManagerOption {
	return func(m *SessionManager) {
		m.provider, m.logger = ResolveLogger("access.session_manager", provider, m.logger)
	}
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func WithActivitySink(sink ActivitySink) SessionManagerOption {
	return func(m *SessionManager) {
		m.activitySink = normalizeActivitySink(sink)
	}
}

// WithProfileCache overrides the profile cache.
func WithProfileCache(cache *ProfileCache) SessionManagerOption {
	return func(m *SessionManager) {
		if cache != nil {
			m.cache = cache
		}
	}
}

// WithoutRestore makes Start skip backend session restoration so the process
// always boots anonymous.
func WithoutRestore() SessionManagerOption {
	return func(m *SessionManager) {
		m.restore = false
	}
}

// NewSessionManager returns a manager bound to the given backend.
func NewSessionManager(backend Backend, opts ...SessionManagerOption) *SessionManager {
	provider, logger := ResolveLogger("access.session_manager", nil, nil)

	m := &SessionManager{
		backend:      backend,
		logger:       logger,
		provider:     provider,
		activitySink: noopActivitySink{},
		restore:      true,
		current:      AnonymousSession(),
		observers:    map[int]func(Session){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	if m.cache == nil {
		m.cache = NewProfileCache(backend, WithCacheLoggerProvider(m.provider))
	}

	return m
}

// Start subscribes to backend auth events and, unless disabled, restores any
// backend-held session. Call once at process start.
func (m *SessionManager) Start(ctx context.Context) {
	unsubscribe := m.backend.OnAuthStateChange(m.handleAuthEvent)

	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.mu.Unlock()

	if !m.restore {
		return
	}

	m.restoreSession(ctx)
}

// Close cancels the auth event subscription and freezes the manager; event
// handlers arriving after Close are no-ops.
func (m *SessionManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Current returns a snapshot of the session.
func (m *SessionManager) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.snapshot()
}

// Subscribe registers an observer invoked with a snapshot on every session
// replacement. The returned disposer cancels the subscription.
func (m *SessionManager) Subscribe(observer func(Session)) func() {
	if observer == nil {
		return func() {}
	}

	m.mu.Lock()
	m.observerSeq++
	id := m.observerSeq
	m.observers[id] = observer
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

// Login authenticates against the backend and establishes the session. A
// profile fetch failure degrades the session to profile = nil, it does not
// fail the login. A login or registration already in flight fails fast with
// ErrBusy.
func (m *SessionManager) Login(ctx context.Context, creds Credentials) (Session, error) {
	if err := creds.Validate(); err != nil {
		return m.Current(), err
	}

	if err := m.beginAuth(); err != nil {
		return m.Current(), err
	}
	defer m.endAuth()

	identity, err := m.backend.Login(ctx, creds)
	if err != nil {
		m.logger.Error("login failed", "email", creds.Email, "error", err)
		m.emitActivity(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Actor:     ActorRef{Type: "unknown"},
			Metadata:  map[string]any{"email": creds.Email, "error": err.Error()},
		})
		return m.Current(), wrapBackendErr(err, "login failed")
	}

	session := m.establish(ctx, identity)

	m.emitActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: identity.ID(), Type: "user"},
		UserID:    identity.ID(),
	})

	return session, nil
}

// Register creates a pending account and establishes a session for it.
func (m *SessionManager) Register(ctx context.Context, reg Registration) (Session, error) {
	if err := reg.Validate(); err != nil {
		return m.Current(), err
	}

	if err := m.beginAuth(); err != nil {
		return m.Current(), err
	}
	defer m.endAuth()

	identity, err := m.backend.Register(ctx, reg)
	if err != nil {
		m.logger.Error("registration failed", "email", reg.Email, "error", err)
		return m.Current(), wrapBackendErr(err, "registration failed")
	}

	session := m.establish(ctx, identity)

	m.emitActivity(ctx, ActivityEvent{
		EventType: ActivityEventRegistration,
		Actor:     ActorRef{ID: identity.ID(), Type: "user"},
		UserID:    identity.ID(),
		ToStatus:  AccountStatusPending,
	})

	return session, nil
}

// Logout terminates the backend session and then clears the local one. If
// the remote call fails the local session is left intact and the error is
// surfaced; use ForceLogout to clear unconditionally.
func (m *SessionManager) Logout(ctx context.Context) error {
	userID := m.Current().UserID()

	if err := m.backend.Logout(ctx); err != nil {
		m.logger.Error("logout failed", "user_id", userID, "error", err)
		return wrapBackendErr(err, "logout failed")
	}

	m.clearSession(ctx, userID)

	return nil
}

// ForceLogout clears the local session even when the remote call fails. The
// remote failure is logged, not surfaced.
func (m *SessionManager) ForceLogout(ctx context.Context) {
	userID := m.Current().UserID()

	if err := m.backend.Logout(ctx); err != nil {
		m.logger.Warn("remote logout failed, clearing local session anyway",
			"user_id", userID,
			"error", err,
		)
	}

	m.clearSession(ctx, userID)
}

// RefreshProfile re-fetches the profile for the current identity and
// replaces it in the session. No-op without an identity. Failures are
// logged, not surfaced, and leave the previous profile intact.
func (m *SessionManager) RefreshProfile(ctx context.Context) {
	m.mu.Lock()
	identity := m.current.Identity
	previous := Classify(m.current.Profile)
	m.mu.Unlock()

	if identity == nil {
		return
	}

	profile, err := m.cache.Hydrate(ctx, identity)
	if err != nil {
		m.logger.Warn("profile refresh failed, keeping last known good",
			"user_id", identity.ID(),
			"error", err,
		)
		return
	}

	m.replaceSession(func(current Session) Session {
		// a logout may have raced the fetch; do not resurrect the session
		if current.Identity == nil || current.Identity.ID() != identity.ID() {
			return current
		}
		return Session{Identity: current.Identity, Profile: profile}
	})

	if next := Classify(profile); next != previous {
		m.emitActivity(ctx, ActivityEvent{
			EventType:  ActivityEventStatusChangeSeen,
			Actor:      ActorRef{Type: "system"},
			UserID:     identity.ID(),
			FromStatus: statusOfClassification(previous),
			ToStatus:   statusOfClassification(next),
		})
	}
}

// restoreSession looks up a backend-held session and rehydrates the profile.
// Absence or failure yields the anonymous session.
func (m *SessionManager) restoreSession(ctx context.Context) {
	identity, err := m.backend.CurrentSession(ctx)
	if err != nil {
		m.logger.Warn("session restore failed, starting anonymous", "error", err)
		return
	}

	if identity == nil {
		return
	}

	m.establish(ctx, identity)

	m.emitActivity(ctx, ActivityEvent{
		EventType: ActivityEventSessionRestored,
		Actor:     ActorRef{ID: identity.ID(), Type: "user"},
		UserID:    identity.ID(),
	})
}

// establish hydrates the profile for an identity and replaces the session
// wholesale. Profile fetch failure degrades to profile = nil.
func (m *SessionManager) establish(ctx context.Context, identity Identity) Session {
	profile, err := m.cache.Hydrate(ctx, identity)
	if err != nil {
		m.logger.Warn("session established without profile",
			"user_id", identity.ID(),
			"error", err,
		)
	}

	session := Session{Identity: identity, Profile: profile}

	m.replaceSession(func(Session) Session { return session })

	return session.snapshot()
}

func (m *SessionManager) clearSession(ctx context.Context, userID string) {
	m.cache.Purge()
	m.replaceSession(func(Session) Session { return AnonymousSession() })

	if userID != "" {
		m.emitActivity(ctx, ActivityEvent{
			EventType: ActivityEventLogout,
			Actor:     ActorRef{ID: userID, Type: "user"},
			UserID:    userID,
		})
	}
}

// handleAuthEvent reacts to backend-pushed events. It must be idempotent and
// safe to invoke after Close.
func (m *SessionManager) handleAuthEvent(event AuthEvent, identity Identity) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()

	if closed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), authEventTimeout)
	defer cancel()

	switch event {
	case AuthEventSignedOut:
		m.cache.Purge()
		m.replaceSession(func(Session) Session { return AnonymousSession() })
	case AuthEventSignedIn:
		if identity == nil {
			return
		}
		m.establish(ctx, identity)
	case AuthEventTokenRefreshed:
		m.logger.Debug("token refreshed", "user_id", identityID(identity))
	default:
		m.logger.Debug("ignoring unknown auth event", "event", string(event))
	}
}

func (m *SessionManager) beginAuth() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.authInFlight {
		return ErrBusy.WithMetadata(map[string]any{
			"operation": "authenticate",
		})
	}

	m.authInFlight = true
	m.current.Authenticating = true

	return nil
}

func (m *SessionManager) endAuth() {
	m.mu.Lock()
	m.authInFlight = false
	m.current.Authenticating = false
	m.mu.Unlock()
}

// replaceSession swaps the session wholesale and notifies observers outside
// the lock.
func (m *SessionManager) replaceSession(swap func(Session) Session) {
	m.mu.Lock()
	next := swap(m.current)
	next.Authenticating = false
	m.current = next

	observers := make([]func(Session), 0, len(m.observers))
	for _, observer := range m.observers {
		observers = append(observers, observer)
	}
	m.mu.Unlock()

	for _, observer := range observers {
		observer(next.snapshot())
	}
}

func (m *SessionManager) emitActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := m.activitySink.Record(ctx, event); err != nil {
		m.logger.Warn("activity sink record failed",
			"event", string(event.EventType),
			"error", err,
		)
	}
}

func identityID(identity Identity) string {
	if identity == nil {
		return ""
	}
	return identity.ID()
}
