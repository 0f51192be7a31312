package access

import (
	"context"
	"sync"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// StoreBackend is a reference Backend implementation over the bun-backed
// profile repository. It plays the role the hosted identity provider plays
// in production: bcrypt credentials, a signed session token that survives
// restarts, and pushed auth events. Useful for local development and tests.
type StoreBackend struct {
	repo     RepositoryManager
	tokens   *TokenService
	logger   Logger
	provider LoggerProvider

	mu           sync.Mutex
	sessionToken string
	handlers     map[int]AuthEventHandler
	handlerSeq   int
}

var _ Backend = (*StoreBackend)(nil)

type StoreBackendOption func(*StoreBackend)

// WithStoreLogger sets the logger used by the backend.
func WithStoreLogger(logger Logger) StoreBackendOption {
	return func(b *StoreBackend) {
		b.provider, b.logger = ResolveLogger("access.store_backend", b.provider, logger)
	}
}

// WithStoreLoggerProvider resolves the backend logger from a provider.
func WithStoreLoggerProvider(provider LoggerProvider) StoreBackendOption {
	return func(b *StoreBackend) {
		b.provider, b.logger = ResolveLogger("access.store_backend", provider, b.logger)
	}
}

// WithStoreTokenService overrides the token service built from Config.
func WithStoreTokenService(tokens *TokenService) StoreBackendOption {
	return func(b *StoreBackend) {
		if tokens != nil {
			b.tokens = tokens
		}
	}
}

// NewStoreBackend creates a backend over the given repositories.
func NewStoreBackend(repo RepositoryManager, cfg Config, opts ...StoreBackendOption) *StoreBackend {
	provider, logger := ResolveLogger("access.store_backend", nil, nil)

	backend := &StoreBackend{
		repo:     repo,
		logger:   logger,
		provider: provider,
		handlers: map[int]AuthEventHandler{},
		tokens: NewTokenService(
			[]byte(cfg.GetSigningKey()),
			cfg.GetTokenExpiration(),
			cfg.GetIssuer(),
			cfg.GetAudience(),
			logger,
		),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(backend)
		}
	}

	return backend
}

func (b *StoreBackend) Login(ctx context.Context, creds Credentials) (Identity, error) {
	profile, err := b.repo.Profiles().GetByIdentifier(ctx, creds.Email)
	if err != nil {
		if IsNotFound(err) {
			// same failure as a bad password so login does not leak
			// which emails exist
			return nil, ErrInvalidCredentials
		}
		return nil, wrapBackendErr(err, "login lookup failed")
	}

	if err := ComparePasswordAndHash(creds.Password, profile.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	identity := NewIdentity(profile.ID.String(), profile.Email)

	token, err := b.tokens.Mint(identity)
	if err != nil {
		return nil, err
	}

	b.setToken(token)
	b.emit(AuthEventSignedIn, identity)

	return identity, nil
}

func (b *StoreBackend) Register(ctx context.Context, reg Registration) (Identity, error) {
	if existing, err := b.repo.Profiles().GetByIdentifier(ctx, reg.Email); err == nil && existing != nil {
		return nil, ErrDuplicateAccount.WithMetadata(map[string]any{
			"email": reg.Email,
		})
	}

	if existing, err := b.repo.Profiles().GetByIdentifier(ctx, reg.Username); err == nil && existing != nil {
		return nil, ErrDuplicateAccount.WithMetadata(map[string]any{
			"username": reg.Username,
		})
	}

	hash, err := HashPassword(reg.Password)
	if err != nil {
		return nil, err
	}

	profile := &Profile{
		Role:           RolePending,
		FullName:       reg.FullName,
		Username:       reg.Username,
		Email:          reg.Email,
		ProfilePicture: reg.ProfilePicture,
		PasswordHash:   hash,
	}

	created, err := b.repo.Profiles().Register(ctx, profile)
	if err != nil {
		return nil, wrapBackendErr(err, "registration failed")
	}

	identity := NewIdentity(created.ID.String(), created.Email)

	token, err := b.tokens.Mint(identity)
	if err != nil {
		return nil, err
	}

	b.setToken(token)
	b.emit(AuthEventSignedIn, identity)

	return identity, nil
}

func (b *StoreBackend) Logout(ctx context.Context) error {
	b.setToken("")
	b.emit(AuthEventSignedOut, nil)
	return nil
}

func (b *StoreBackend) CurrentSession(ctx context.Context) (Identity, error) {
	b.mu.Lock()
	token := b.sessionToken
	b.mu.Unlock()

	if token == "" {
		return nil, nil
	}

	identity, err := b.tokens.Parse(token)
	if err != nil {
		b.logger.Debug("stored session token no longer valid", "error", err)
		b.setToken("")
		return nil, nil
	}

	return identity, nil
}

// RefreshSession re-mints the session token for the held identity and
// notifies subscribers, mirroring a provider-side token refresh.
func (b *StoreBackend) RefreshSession(ctx context.Context) error {
	identity, err := b.CurrentSession(ctx)
	if err != nil {
		return err
	}

	if identity == nil {
		return ErrAccountNotFound
	}

	token, err := b.tokens.Mint(identity)
	if err != nil {
		return err
	}

	b.setToken(token)
	b.emit(AuthEventTokenRefreshed, identity)

	return nil
}

// OnAuthStateChange registers a handler for auth events. Handlers run
// synchronously on the emitting call, so they must not block.
func (b *StoreBackend) OnAuthStateChange(handler AuthEventHandler) func() {
	if handler == nil {
		return func() {}
	}

	b.mu.Lock()
	b.handlerSeq++
	id := b.handlerSeq
	b.handlers[id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

func (b *StoreBackend) GetProfile(ctx context.Context, id string) (*Profile, error) {
	profile, err := b.repo.Profiles().GetByIdentifier(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrAccountNotFound.WithMetadata(map[string]any{
				"account_id": id,
			})
		}
		return nil, wrapBackendErr(err, "profile fetch failed")
	}

	return profile, nil
}

func (b *StoreBackend) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) error {
	profile, err := b.GetProfile(ctx, id)
	if err != nil {
		return err
	}

	repo := b.repo.Profiles()

	if patch.RejectionStatus != nil {
		if *patch.RejectionStatus {
			reason := profile.RejectionReason
			if patch.RejectionReason != nil {
				reason = *patch.RejectionReason
			}
			if _, err := repo.MarkRejected(ctx, profile.ID, reason); err != nil {
				return wrapBackendErr(err, "profile update failed")
			}
		} else {
			if err := repo.ClearRejection(ctx, profile.ID); err != nil {
				return wrapBackendErr(err, "profile update failed")
			}
		}
	}

	if patch.Role != nil {
		if _, err := repo.SetRole(ctx, profile.ID, *patch.Role); err != nil {
			return wrapBackendErr(err, "profile update failed")
		}
	}

	record := &Profile{ID: profile.ID}
	dirty := false

	if patch.FullName != nil {
		record.FullName = *patch.FullName
		dirty = true
	}
	if patch.Username != nil {
		record.Username = *patch.Username
		dirty = true
	}
	if patch.ProfilePicture != nil {
		record.ProfilePicture = *patch.ProfilePicture
		dirty = true
	}

	if !dirty {
		return nil
	}

	if _, err := repo.Update(ctx, record, repository.UpdateByID(profile.ID.String())); err != nil {
		return wrapBackendErr(err, "profile update failed")
	}

	return nil
}

func (b *StoreBackend) PendingProfiles(ctx context.Context) ([]*Profile, error) {
	pending, err := b.repo.Profiles().ListPending(ctx)
	if err != nil {
		return nil, wrapBackendErr(err, "pending listing failed")
	}
	return pending, nil
}

func (b *StoreBackend) ApproveAccount(ctx context.Context, id string) error {
	profile, err := b.GetProfile(ctx, id)
	if err != nil {
		return err
	}

	if _, err := b.repo.Profiles().SetRole(ctx, profile.ID, RoleApproved); err != nil {
		return wrapBackendErr(err, "approval failed")
	}

	if profile.RejectionStatus {
		if err := b.repo.Profiles().ClearRejection(ctx, profile.ID); err != nil {
			return wrapBackendErr(err, "approval failed")
		}
	}

	return nil
}

func (b *StoreBackend) RejectAccount(ctx context.Context, id string) error {
	return b.removeAccount(ctx, id)
}

func (b *StoreBackend) ClearRejection(ctx context.Context, id string) error {
	profile, err := b.GetProfile(ctx, id)
	if err != nil {
		return err
	}

	if err := b.repo.Profiles().ClearRejection(ctx, profile.ID); err != nil {
		if IsNotFound(err) {
			return ErrAccountNotFound.WithMetadata(map[string]any{
				"account_id": id,
			})
		}
		return wrapBackendErr(err, "resubmission failed")
	}

	return nil
}

func (b *StoreBackend) DeleteAccount(ctx context.Context, id string) error {
	return b.removeAccount(ctx, id)
}

func (b *StoreBackend) removeAccount(ctx context.Context, id string) error {
	pid, err := uuid.Parse(id)
	if err != nil {
		return ErrAccountNotFound.WithMetadata(map[string]any{
			"account_id": id,
		})
	}

	if err := b.repo.Profiles().Remove(ctx, pid); err != nil {
		if IsNotFound(err) {
			return ErrAccountNotFound.WithMetadata(map[string]any{
				"account_id": id,
			})
		}
		return wrapBackendErr(err, "account removal failed")
	}

	return nil
}

func (b *StoreBackend) setToken(token string) {
	b.mu.Lock()
	b.sessionToken = token
	b.mu.Unlock()
}

func (b *StoreBackend) emit(event AuthEvent, identity Identity) {
	b.mu.Lock()
	handlers := make([]AuthEventHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, handler := range handlers {
		handler(event, identity)
	}
}
