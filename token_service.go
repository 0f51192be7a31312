package access

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenService mints and parses the store-backed backend's session token.
// The token is a local persistence detail (it is what survives a process
// restart), not a wire contract.
type TokenService struct {
	signingKey []byte
	expiration int
	issuer     string
	audience   []string
	logger     Logger
	now        func() time.Time
}

type sessionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// NewTokenService creates a TokenService. Expiration is in hours.
func NewTokenService(signingKey []byte, expiration int, issuer string, audience []string, logger Logger) *TokenService {
	if logger == nil {
		logger = defLogger{}
	}

	return &TokenService{
		signingKey: signingKey,
		expiration: expiration,
		issuer:     issuer,
		audience:   audience,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock injects a custom clock (useful for tests).
func (t *TokenService) WithClock(clock func() time.Time) *TokenService {
	if clock != nil {
		t.now = clock
	}
	return t
}

// Mint issues a signed session token for the identity.
func (t *TokenService) Mint(identity Identity) (string, error) {
	if identity == nil {
		return "", ErrAccountNotFound
	}

	now := t.now()
	claims := sessionClaims{
		Email: identity.Email(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID(),
			Issuer:    t.issuer,
			Audience:  jwt.ClaimStrings(t.audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(t.expiration) * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(t.signingKey)
	if err != nil {
		t.logger.Error("failed to sign session token", "error", err)
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign session token")
	}

	return signed, nil
}

// Parse validates a session token and recovers the identity it was minted
// for. Expired or malformed tokens fail.
func (t *TokenService) Parse(tokenString string) (Identity, error) {
	claims := &sessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method", errors.CategoryAuth).
				WithMetadata(map[string]any{"alg": token.Header["alg"]})
		}
		return t.signingKey, nil
	}, jwt.WithTimeFunc(t.now))

	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryAuth, "invalid session token").
			WithCode(errors.CodeUnauthorized)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid session token", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized)
	}

	return NewIdentity(claims.Subject, claims.Email), nil
}
