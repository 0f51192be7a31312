package access

import (
	"context"
)

var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithSessionContext sets the Session in the given context.
func WithSessionContext(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

// SessionFromContext finds the Session in the context.
func SessionFromContext(ctx context.Context) (Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(Session)
	return raw, ok
}

// ClassificationFromContext derives the access tier for the session carried
// by the context. Contexts without a session classify as pending.
func ClassificationFromContext(ctx context.Context) Classification {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return ClassPending
	}
	return session.Classification()
}
