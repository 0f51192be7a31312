package access

import (
	"context"
)

// Resubmit clears the rejection flag and reason for the current account,
// returning it to pending. Idempotent when the account is already pending
// and not rejected; any other state is an invalid transition.
func (m *SessionManager) Resubmit(ctx context.Context) error {
	session := m.Current()
	if session.Identity == nil {
		return ErrAccountNotFound
	}

	switch session.Classification() {
	case ClassRejected:
		// proceed
	case ClassPending:
		return nil
	default:
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"account_id": session.UserID(),
			"from":       string(statusOfClassification(session.Classification())),
			"to":         string(AccountStatusPending),
		})
	}

	if err := m.backend.ClearRejection(ctx, session.UserID()); err != nil {
		if IsNotFound(err) {
			return ErrAccountNotFound.WithMetadata(map[string]any{
				"account_id": session.UserID(),
			})
		}
		return wrapBackendErr(err, "resubmission failed")
	}

	m.emitActivity(ctx, ActivityEvent{
		EventType:  ActivityEventAccountResubmit,
		Actor:      ActorRef{ID: session.UserID(), Type: "user"},
		UserID:     session.UserID(),
		FromStatus: AccountStatusRejected,
		ToStatus:   AccountStatusPending,
	})

	m.RefreshProfile(ctx)

	return nil
}

// DeleteOwnAccount permanently deletes the current account, then clears the
// session. Destructive and irreversible; the caller is responsible for
// confirming with the user first. The local session is cleared even if the
// follow-up remote logout fails, since the account no longer exists.
func (m *SessionManager) DeleteOwnAccount(ctx context.Context) error {
	session := m.Current()
	if session.Identity == nil {
		return ErrAccountNotFound
	}

	userID := session.UserID()

	if err := m.backend.DeleteAccount(ctx, userID); err != nil {
		if IsNotFound(err) {
			return ErrAccountNotFound.WithMetadata(map[string]any{
				"account_id": userID,
			})
		}
		return wrapBackendErr(err, "account deletion failed")
	}

	m.emitActivity(ctx, ActivityEvent{
		EventType:  ActivityEventAccountDeleted,
		Actor:      ActorRef{ID: userID, Type: "user"},
		UserID:     userID,
		FromStatus: statusOfClassification(session.Classification()),
		ToStatus:   AccountStatusDeleted,
	})

	m.ForceLogout(ctx)

	return nil
}
