package access

import (
	"context"
	"sync"
	"time"
)

// AccountStatus is the lifecycle status the approval workflow reasons
// about. It is derived from Classification; Admin collapses into approved
// because both are terminal for the workflow.
type AccountStatus string

const (
	AccountStatusPending  AccountStatus = "pending"
	AccountStatusApproved AccountStatus = "approved"
	AccountStatusRejected AccountStatus = "rejected"
	AccountStatusDeleted  AccountStatus = "deleted"
)

func statusOfClassification(c Classification) AccountStatus {
	switch c {
	case ClassRejected:
		return AccountStatusRejected
	case ClassPending:
		return AccountStatusPending
	default:
		return AccountStatusApproved
	}
}

func statusOf(p *Profile) AccountStatus {
	return statusOfClassification(Classify(p))
}

// ApprovalEngine drives the administrator-facing queue of pending accounts.
// It owns its queue snapshot independently of any SessionManager; entries
// are removed optimistically once the backend confirms a mutation. Approve
// and reject for different accounts may run concurrently; a second action on
// an account still being processed fails fast with ErrBusy.
type ApprovalEngine struct {
	backend      Backend
	logger       Logger
	provider     LoggerProvider
	activitySink ActivitySink
	now          func() time.Time
	transitions  map[AccountStatus]map[AccountStatus]struct{}

	mu       sync.Mutex
	queue    []*Profile
	inFlight map[string]struct{}
}

type ApprovalEngineOption func(*ApprovalEngine)

// WithEngineLogger sets the logger used by the engine.
func WithEngineLogger(logger Logger) ApprovalEngineOption {
	return func(e *ApprovalEngine) {
		e.provider, e.logger = ResolveLogger("access.approval_engine", e.provider, logger)
	}
}

// WithEngineLoggerProvider resolves the engine logger from a provider.
func WithEngineLoggerProvider(provider LoggerProvider) ApprovalEngineOption {
	return func(e *ApprovalEngine) {
		e.provider, e.logger = ResolveLogger("access.approval_engine", provider, e.logger)
	}
}

// WithEngineActivitySink sets the ActivitySink used to publish decisions.
func WithEngineActivitySink(sink ActivitySink) ApprovalEngineOption {
	return func(e *ApprovalEngine) {
		e.activitySink = normalizeActivitySink(sink)
	}
}

// WithEngineClock injects a custom clock (useful for tests).
func WithEngineClock(clock func() time.Time) ApprovalEngineOption {
	return func(e *ApprovalEngine) {
		if clock != nil {
			e.now = clock
		}
	}
}

// NewApprovalEngine returns an engine bound to the given backend.
func NewApprovalEngine(backend Backend, opts ...ApprovalEngineOption) *ApprovalEngine {
	provider, logger := ResolveLogger("access.approval_engine", nil, nil)

	engine := &ApprovalEngine{
		backend:      backend,
		logger:       logger,
		provider:     provider,
		activitySink: noopActivitySink{},
		now:          time.Now,
		inFlight:     map[string]struct{}{},
		transitions: map[AccountStatus]map[AccountStatus]struct{}{
			AccountStatusPending: {
				AccountStatusApproved: {},
				AccountStatusRejected: {},
				AccountStatusDeleted:  {},
			},
			AccountStatusRejected: {
				AccountStatusPending: {},
				AccountStatusDeleted: {},
			},
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(engine)
		}
	}

	return engine
}

// ListPending re-fetches the pending accounts and replaces the local queue
// snapshot. Safe to call repeatedly; manual refresh and pull-to-refresh both
// land here.
func (e *ApprovalEngine) ListPending(ctx context.Context) ([]*Profile, error) {
	profiles, err := e.backend.PendingProfiles(ctx)
	if err != nil {
		return nil, wrapBackendErr(err, "failed to list pending accounts")
	}

	snapshot := make([]*Profile, 0, len(profiles))
	for _, p := range profiles {
		snapshot = append(snapshot, p.Clone())
	}

	e.mu.Lock()
	e.queue = snapshot
	e.mu.Unlock()

	return e.Queue(), nil
}

// Queue returns a copy of the current queue snapshot without touching the
// backend.
func (e *ApprovalEngine) Queue() []*Profile {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*Profile, 0, len(e.queue))
	for _, p := range e.queue {
		out = append(out, p.Clone())
	}
	return out
}

// Approve grants the account baseline approved access, never admin. The
// queue entry is removed only after the backend confirms.
func (e *ApprovalEngine) Approve(ctx context.Context, actor ActorRef, id string) error {
	release, err := e.acquire(id)
	if err != nil {
		return err
	}
	defer release()

	from, err := e.currentStatus(ctx, id)
	if err != nil {
		return err
	}

	if err := e.validateTransition(id, from, AccountStatusApproved); err != nil {
		return err
	}

	if err := e.backend.ApproveAccount(ctx, id); err != nil {
		return e.mutationErr(err, id, "approve failed")
	}

	e.removeFromQueue(id)

	e.emitActivity(ctx, ActivityEvent{
		EventType:  ActivityEventApprovalGranted,
		Actor:      actor,
		UserID:     id,
		FromStatus: from,
		ToStatus:   AccountStatusApproved,
	})

	return nil
}

// Decline flags a pending account as rejected with a reason, keeping the
// account around so its owner can resubmit. The entry leaves the local queue
// since it is no longer actionable.
func (e *ApprovalEngine) Decline(ctx context.Context, actor ActorRef, id, reason string) error {
	release, err := e.acquire(id)
	if err != nil {
		return err
	}
	defer release()

	from, err := e.currentStatus(ctx, id)
	if err != nil {
		return err
	}

	if err := e.validateTransition(id, from, AccountStatusRejected); err != nil {
		return err
	}

	patch := ProfilePatch{
		RejectionStatus: boolptr(true),
		RejectionReason: strptr(reason),
	}

	if err := e.backend.UpdateProfile(ctx, id, patch); err != nil {
		return e.mutationErr(err, id, "decline failed")
	}

	e.removeFromQueue(id)

	e.emitActivity(ctx, ActivityEvent{
		EventType:  ActivityEventApprovalDeclined,
		Actor:      actor,
		UserID:     id,
		FromStatus: from,
		ToStatus:   AccountStatusRejected,
		Metadata:   map[string]any{"reason": reason},
	})

	return nil
}

// Reject permanently deletes the account. Destructive and irreversible; the
// caller is responsible for confirming with the operator first.
func (e *ApprovalEngine) Reject(ctx context.Context, actor ActorRef, id string) error {
	release, err := e.acquire(id)
	if err != nil {
		return err
	}
	defer release()

	from, err := e.currentStatus(ctx, id)
	if err != nil {
		return err
	}

	if err := e.validateTransition(id, from, AccountStatusDeleted); err != nil {
		return err
	}

	if err := e.backend.RejectAccount(ctx, id); err != nil {
		return e.mutationErr(err, id, "reject failed")
	}

	e.removeFromQueue(id)

	e.emitActivity(ctx, ActivityEvent{
		EventType:  ActivityEventAccountRejected,
		Actor:      actor,
		UserID:     id,
		FromStatus: from,
		ToStatus:   AccountStatusDeleted,
	})

	return nil
}

// acquire takes the per-account processing lock. The returned release must
// run on every path.
func (e *ApprovalEngine) acquire(id string) (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, busy := e.inFlight[id]; busy {
		return nil, ErrBusy.WithMetadata(map[string]any{
			"account_id": id,
		})
	}

	e.inFlight[id] = struct{}{}

	return func() {
		e.mu.Lock()
		delete(e.inFlight, id)
		e.mu.Unlock()
	}, nil
}

// currentStatus derives the account's lifecycle status, preferring the local
// queue snapshot and falling back to a backend fetch.
func (e *ApprovalEngine) currentStatus(ctx context.Context, id string) (AccountStatus, error) {
	e.mu.Lock()
	for _, p := range e.queue {
		if p.ID.String() == id {
			status := statusOf(p)
			e.mu.Unlock()
			return status, nil
		}
	}
	e.mu.Unlock()

	profile, err := e.backend.GetProfile(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return "", ErrAccountNotFound.WithMetadata(map[string]any{
				"account_id": id,
			})
		}
		return "", wrapBackendErr(err, "failed to resolve account status")
	}

	return statusOf(profile), nil
}

func (e *ApprovalEngine) validateTransition(id string, from, to AccountStatus) error {
	if allowed, ok := e.transitions[from]; ok {
		if _, ok := allowed[to]; ok {
			return nil
		}
	}

	meta := map[string]any{
		"account_id": id,
		"from":       string(from),
		"to":         string(to),
	}

	if _, hasExits := e.transitions[from]; !hasExits {
		return ErrTerminalState.WithMetadata(meta)
	}

	return ErrInvalidTransition.WithMetadata(meta)
}

func (e *ApprovalEngine) mutationErr(err error, id, msg string) error {
	if IsNotFound(err) {
		return ErrAccountNotFound.WithMetadata(map[string]any{
			"account_id": id,
		})
	}
	return wrapBackendErr(err, msg)
}

func (e *ApprovalEngine) removeFromQueue(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.queue[:0]
	for _, p := range e.queue {
		if p.ID.String() != id {
			next = append(next, p)
		}
	}
	e.queue = next
}

func (e *ApprovalEngine) emitActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.now()
	}

	if err := e.activitySink.Record(ctx, event); err != nil {
		e.logger.Warn("activity sink record failed",
			"event", string(event.EventType),
			"error", err,
		)
	}
}
