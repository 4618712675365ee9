package authz

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	// ErrLookupFailed marks a persistence or network failure during profile or
	// resource resolution. It is never conflated with "no profile": callers
	// must fail closed on it.
	ErrLookupFailed = errors.New("profile lookup failed")

	ErrForbidden               = errors.New("forbidden: you don't have permission to perform this action")
	ErrNotFound                = errors.New("resource not found")
	ErrInvalidInput            = errors.New("invalid input")
	ErrDuplicatePendingRequest = errors.New("a staff access request is already pending for this account")
	ErrBootstrapWindowClosed   = errors.New("an admin already exists: request staff access through the approval workflow")
)

// ProfileKind tags the variant of a resolved profile.
type ProfileKind string

const (
	KindStaff    ProfileKind = "staff"
	KindResident ProfileKind = "resident"
)

// Profile is the domain identity derived from an authenticated account: a
// tagged union of staff and resident. A nil *Profile means the account is
// authenticated but has not completed signup (no staff or resident record).
type Profile struct {
	Kind      ProfileKind `json:"kind"`
	ID        string      `json:"id"`
	AccountID string      `json:"account_id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`

	// Staff only
	Role Role `json:"role,omitempty"`

	// Resident only
	CommunityID string `json:"community_id,omitempty"`
	UnitNumber  string `json:"unit_number,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsStaff reports whether the profile is a staff profile. Safe on nil.
func (p *Profile) IsStaff() bool {
	return p != nil && p.Kind == KindStaff
}

// IsResident reports whether the profile is a resident profile. Safe on nil.
func (p *Profile) IsResident() bool {
	return p != nil && p.Kind == KindResident
}

// ProfileLoader resolves an auth account id to its domain profile.
//
// Contract: (nil, nil) means authenticated-but-incomplete (no profile exists);
// (nil, err) wrapping ErrLookupFailed means the lookup itself failed and the
// caller must deny. The two outcomes are never interchangeable.
type ProfileLoader interface {
	ResolveProfile(ctx context.Context, accountID string) (*Profile, error)
}
