package access

import (
	"github.com/goliatone/go-errors"
)

const (
	textCodeInvalidCredentials = "INVALID_CREDENTIALS"
	textCodeDuplicateAccount   = "DUPLICATE_ACCOUNT"
	textCodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	textCodeBackendUnreachable = "BACKEND_UNREACHABLE"
	textCodeOperationInFlight  = "OPERATION_IN_FLIGHT"
	textCodeInvalidTransition  = "INVALID_ACCOUNT_TRANSITION"
	textCodeTerminalState      = "TERMINAL_ACCOUNT_STATE"
)

// ErrInvalidCredentials is returned when the backend rejects an email or
// password during login.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrDuplicateAccount is returned when registering an email or username
// that is already taken.
var ErrDuplicateAccount = errors.New("account already registered", errors.CategoryConflict).
	WithTextCode(textCodeDuplicateAccount).
	WithCode(errors.CodeConflict)

// ErrAccountNotFound is returned when the target account vanished, e.g. it
// was deleted between listing and acting on it.
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode(textCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

// ErrBackendUnavailable is returned when the identity backend cannot be
// reached or times out. Recoverable by retry.
var ErrBackendUnavailable = errors.New("identity backend unreachable", errors.CategoryOperation).
	WithTextCode(textCodeBackendUnreachable).
	WithCode(errors.CodeInternal)

// ErrBusy is returned when an operation is already in flight for the same
// key: a concurrent login/register on one SessionManager, or a second
// approve/reject for an account still being processed.
var ErrBusy = errors.New("operation already in progress", errors.CategoryConflict).
	WithTextCode(textCodeOperationInFlight).
	WithCode(errors.CodeConflict)

// ErrInvalidTransition is returned when a requested lifecycle change is not
// allowed from the account's current status.
var ErrInvalidTransition = errors.New("invalid account transition", errors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(errors.CodeBadRequest)

// ErrTerminalState is returned when acting on an account whose status admits
// no further transitions (approved accounts, admins).
var ErrTerminalState = errors.New("account state is terminal", errors.CategoryConflict).
	WithTextCode(textCodeTerminalState).
	WithCode(errors.CodeConflict)

// IsNotFound reports whether err represents a missing account, either from
// this package or from the repository layer.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAccountNotFound) {
		return true
	}
	return errors.IsNotFound(err)
}

// wrapBackendErr normalizes unexpected backend failures while passing rich
// errors through untouched.
func wrapBackendErr(err error, msg string) error {
	if err == nil {
		return nil
	}

	var rich *errors.Error
	if errors.As(err, &rich) {
		return err
	}

	return errors.Wrap(err, errors.CategoryOperation, msg).
		WithTextCode(textCodeBackendUnreachable)
}
