package model

import "time"

// User is an authenticated account holder.
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	CompanyID     string    `json:"companyId"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

// User role constants. Approvers and admins may approve upgrade requests.
const (
	RoleMember   = "member"
	RoleApprover = "approver"
	RoleAdmin    = "admin"
)

// Session is a server-side login session keyed by an opaque token.
type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Invite is a registration invite code.
type Invite struct {
	Code      string     `json:"code"`
	Email     string     `json:"email,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
}
