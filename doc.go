// Package access manages authenticated sessions and the role-based approval
// lifecycle for accounts held by an external identity backend.
//
// Session lifecycle:
//   - SessionManager owns the canonical Session value (identity + profile)
//     and mediates login, registration, logout, and restore-from-backend.
//     Profile fetches that fail during session establishment degrade to a
//     profile-less session instead of failing login.
//   - Backend-pushed auth events (signed in, signed out, token refreshed)
//     are consumed through a cancellable subscription and handled
//     idempotently, so expiry in another tab or device converges to the
//     same state as an explicit logout.
//
// Approval lifecycle:
//   - Classify is the single source of truth mapping a Profile to an access
//     tier (Admin, Approved, Pending, Rejected). A missing profile never
//     grants elevated access.
//   - ApprovalEngine drives the administrator queue: approve promotes an
//     account, decline flags it with a reason, reject deletes it outright.
//     A per-account in-flight guard keeps double submissions from issuing
//     duplicate backend mutations.
//   - StatusPoller re-fetches the profile on a fixed interval while an
//     account sits in Pending or Rejected, so admin decisions propagate
//     without manual refresh. It is scoped to the consumer's lifetime.
//
// The identity backend is consumed through the Backend interface; a
// bun-backed reference implementation (StoreBackend) is included for local
// use and tests.
package access
