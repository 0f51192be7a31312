package access

import (
	"github.com/google/uuid"
)

// Session is the externally observed authentication state. It is a value:
// the SessionManager replaces it wholesale on every change, so observers
// never see partial mutation.
type Session struct {
	Identity Identity `json:"identity,omitempty"`

	// Profile may be nil while authenticated: a failed profile fetch
	// degrades the session instead of failing it.
	Profile *Profile `json:"profile,omitempty"`

	// Authenticating is set while a login or registration is in flight.
	Authenticating bool `json:"authenticating,omitempty"`
}

// AnonymousSession is the logged-out state.
func AnonymousSession() Session {
	return Session{}
}

// IsAnonymous reports whether no identity is attached.
func (s Session) IsAnonymous() bool {
	return s.Identity == nil
}

// IsAuthenticated reports whether an identity is attached, regardless of
// whether the profile could be fetched.
func (s Session) IsAuthenticated() bool {
	return s.Identity != nil && !s.Authenticating
}

// Classification derives the access tier for this session. Anonymous and
// degraded (profile-less) sessions classify as pending.
func (s Session) Classification() Classification {
	return Classify(s.Profile)
}

// UserID returns the identity id or "" for anonymous sessions.
func (s Session) UserID() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.ID()
}

// UserUUID parses the identity id as a UUID.
func (s Session) UserUUID() (uuid.UUID, error) {
	if s.Identity == nil {
		return uuid.Nil, ErrAccountNotFound
	}
	return uuid.Parse(s.Identity.ID())
}

// snapshot returns a copy safe to hand to observers.
func (s Session) snapshot() Session {
	cp := s
	cp.Profile = s.Profile.Clone()
	return cp
}
