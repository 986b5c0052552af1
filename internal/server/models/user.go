// Package models defines the server-side records persisted by the stores.
package models

import "time"

// User is a canonical identity. A user always has at least one way to
// authenticate: a password hash, an OAuth identity, or both.
type User struct {
	ID            string
	Email         string
	PasswordHash  *string
	FirstName     string
	LastName      string
	OAuthProvider *string
	OAuthID       *string
	EmailVerified bool
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasPassword reports whether the account can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// HasOAuthIdentity reports whether a provider identity is linked.
func (u *User) HasOAuthIdentity() bool {
	return u.OAuthProvider != nil && u.OAuthID != nil
}

// HasAuthMethod is the invariant every stored user must satisfy.
func (u *User) HasAuthMethod() bool {
	return u.HasPassword() || u.HasOAuthIdentity()
}

// UserUpdate is a partial update; nil fields are left untouched.
type UserUpdate struct {
	FirstName     *string
	LastName      *string
	PasswordHash  *string
	OAuthProvider *string
	OAuthID       *string
	EmailVerified *bool
	IsActive      *bool
}

// IsEmpty reports whether the update would change nothing.
func (u UserUpdate) IsEmpty() bool {
	return u.FirstName == nil && u.LastName == nil && u.PasswordHash == nil &&
		u.OAuthProvider == nil && u.OAuthID == nil && u.EmailVerified == nil && u.IsActive == nil
}

// Apply copies the set fields of upd onto u and bumps UpdatedAt.
func (u *User) Apply(upd UserUpdate, now time.Time) {
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = upd.PasswordHash
	}
	if upd.OAuthProvider != nil {
		u.OAuthProvider = upd.OAuthProvider
	}
	if upd.OAuthID != nil {
		u.OAuthID = upd.OAuthID
	}
	if upd.EmailVerified != nil {
		u.EmailVerified = *upd.EmailVerified
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	u.UpdatedAt = now
}

// UserPage is one page of a user listing.
type UserPage struct {
	Users      []*User
	Total      int
	Page       int
	Limit      int
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

// NewUserPage fills in the derived pagination fields.
func NewUserPage(users []*User, total, page, limit int) *UserPage {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return &UserPage{
		Users:      users,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}
