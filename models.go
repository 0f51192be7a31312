package access

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role is the account's access role
type Role = string

const (
	// RoleAdmin may review and decide on pending accounts
	RoleAdmin Role = "admin"
	// RoleApproved is a regular account granted baseline access
	RoleApproved Role = "approved"
	// RolePending is a newly registered account awaiting a decision
	RolePending Role = "pending"
	// RoleLegacyApproved covers accounts predating the approval workflow;
	// they behave like approved accounts
	RoleLegacyApproved Role = "legacy-approved"
)

// Profile is the application-level account record keyed by Identity.id
type Profile struct {
	bun.BaseModel   `bun:"table:profiles,alias:prf"`
	ID              uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role            Role       `bun:"role,notnull" json:"role,omitempty"`
	FullName        string     `bun:"fullname,notnull" json:"fullname,omitempty"`
	Username        string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email           string     `bun:"email,notnull,unique" json:"email,omitempty"`
	ProfilePicture  string     `bun:"profile_picture" json:"profile_picture,omitempty"`
	PasswordHash    string     `bun:"password_hash" json:"-"`
	RejectionStatus bool       `bun:"rejection_status" json:"rejection_status,omitempty"`
	RejectionReason string     `bun:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt       *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt       *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// IsRejected reports whether the account is a pending account that was
// explicitly declined. RejectionReason is only meaningful when this is true.
func (p *Profile) IsRejected() bool {
	if p == nil {
		return false
	}
	return p.Role == RolePending && p.RejectionStatus
}

// Clone returns a shallow copy so queue snapshots and published sessions
// never alias the caller's record.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// ProfilePatch carries partial profile updates. Nil fields are untouched.
type ProfilePatch struct {
	FullName        *string
	Username        *string
	ProfilePicture  *string
	Role            *Role
	RejectionStatus *bool
	RejectionReason *string
}

func strptr(s string) *string { return &s }
func boolptr(b bool) *bool    { return &b }
func roleptr(r Role) *Role    { return &r }

// The backend's flat encoding overloads an integer role with a separate
// rejection flag. The codec below is the only place that encoding exists;
// everything else works with Role and IsRejected.
const (
	roleCodeLegacy   = 0
	roleCodeAdmin    = 1
	roleCodeApproved = 2
	roleCodePending  = 3
)

// FlatProfile is the backend wire representation of a Profile.
type FlatProfile struct {
	ID              string     `json:"id"`
	RoleCode        int        `json:"role"`
	FullName        string     `json:"fullname"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	ProfilePicture  string     `json:"profile_picture,omitempty"`
	RejectionStatus bool       `json:"rejection_status"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
}

// EncodeRole maps a Role to the backend's integer code.
func EncodeRole(r Role) int {
	switch r {
	case RoleAdmin:
		return roleCodeAdmin
	case RoleApproved:
		return roleCodeApproved
	case RolePending:
		return roleCodePending
	default:
		return roleCodeLegacy
	}
}

// DecodeRole maps a backend integer code to a Role. Unknown codes decode as
// legacy-approved: an unrecognized role must never look like pending, which
// would lock an approved account out of the app.
func DecodeRole(code int) Role {
	switch code {
	case roleCodeAdmin:
		return RoleAdmin
	case roleCodeApproved:
		return RoleApproved
	case roleCodePending:
		return RolePending
	default:
		return RoleLegacyApproved
	}
}

// Flatten translates a Profile into the backend wire encoding.
func (p *Profile) Flatten() FlatProfile {
	if p == nil {
		return FlatProfile{}
	}

	flat := FlatProfile{
		ID:              p.ID.String(),
		RoleCode:        EncodeRole(p.Role),
		FullName:        p.FullName,
		Username:        p.Username,
		Email:           p.Email,
		ProfilePicture:  p.ProfilePicture,
		RejectionStatus: p.RejectionStatus,
		CreatedAt:       p.CreatedAt,
	}

	if p.RejectionStatus {
		flat.RejectionReason = p.RejectionReason
	}

	return flat
}

// ProfileFromFlat translates the backend wire encoding into a Profile. The
// rejection reason is dropped unless the rejection flag is set.
func ProfileFromFlat(flat FlatProfile) (*Profile, error) {
	id, err := uuid.Parse(flat.ID)
	if err != nil {
		return nil, err
	}

	p := &Profile{
		ID:              id,
		Role:            DecodeRole(flat.RoleCode),
		FullName:        flat.FullName,
		Username:        flat.Username,
		Email:           flat.Email,
		ProfilePicture:  flat.ProfilePicture,
		RejectionStatus: flat.RejectionStatus,
		CreatedAt:       flat.CreatedAt,
	}

	if p.RejectionStatus {
		p.RejectionReason = flat.RejectionReason
	}

	return p, nil
}
