package access

// Classification is the access tier derived from a Profile. It is the single
// source of truth for which capability set a caller may present.
type Classification string

const (
	// ClassAdmin may use the administrator surfaces, including the
	// approval queue
	ClassAdmin Classification = "admin"
	// ClassApproved has baseline approved access
	ClassApproved Classification = "approved"
	// ClassPending is waiting on an administrator decision
	ClassPending Classification = "pending"
	// ClassRejected was declined and may resubmit or delete the account
	ClassRejected Classification = "rejected"
)

// Classify maps a profile to its access tier. It is total and pure: a nil
// profile classifies as pending so an unknown profile never grants elevated
// access.
func Classify(p *Profile) Classification {
	if p == nil {
		return ClassPending
	}

	switch {
	case p.Role == RoleAdmin:
		return ClassAdmin
	case p.Role == RolePending && p.RejectionStatus:
		return ClassRejected
	case p.Role == RolePending:
		return ClassPending
	default:
		return ClassApproved
	}
}

// RequiresPolling reports whether an account in this tier should watch for
// admin-side status changes.
func (c Classification) RequiresPolling() bool {
	return c == ClassPending || c == ClassRejected
}

// CanModerate reports whether this tier may act on the approval queue.
func (c Classification) CanModerate() bool {
	return c == ClassAdmin
}

// HasAccess reports whether this tier is allowed past the approval gate.
func (c Classification) HasAccess() bool {
	return c == ClassAdmin || c == ClassApproved
}
