package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Users(ctx context.Context) UserStore
	MagicLinkTokens(ctx context.Context) MagicLinkTokenStore
	RefreshTokens(ctx context.Context) RefreshTokenStore
	Sessions(ctx context.Context) SessionStore
	Organizations(ctx context.Context) OrganizationStore
	Licenses(ctx context.Context) LicenseStore
	Teams(ctx context.Context) TeamStore
}

// UserStore manages identity records.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByExternalID(ctx context.Context, provider, externalID string) (*User, error)
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	Update(ctx context.Context, u *User) error
	SetOrganization(ctx context.Context, userID, orgID string) error
	ListByOrg(ctx context.Context, orgID string) ([]*User, error)
	CountActiveByOrg(ctx context.Context, orgID string) (int, error)
	Delete(ctx context.Context, id string) error
}

// MagicLinkTokenStore manages single-use email-verification tokens.
type MagicLinkTokenStore interface {
	Create(ctx context.Context, tok *MagicLinkToken) error

	// Redeem atomically deletes an unexpired token row and returns the owning
	// user id. Of two concurrent redeemers exactly one succeeds; the other
	// observes ErrNotFound. An expired token is left in place and reported as
	// *TokenExpiredError.
	Redeem(ctx context.Context, token string, now time.Time) (string, error)
}

// RefreshTokenStore manages long-lived refresh tokens.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error

	// FindValid returns the owning user id for an unexpired token, or
	// ErrNotFound. The row is not touched: refresh does not rotate.
	FindValid(ctx context.Context, token string, now time.Time) (string, error)

	// Delete removes the matching row. Deleting an absent token is not an
	// error; logout is idempotent.
	Delete(ctx context.Context, token string) error
}

// SessionStore manages server-side sessions.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Find(ctx context.Context, id string, now time.Time) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// OrganizationStore manages organizations.
type OrganizationStore interface {
	// CreateWithOwner inserts the organization and assigns the creating user
	// to it in one transaction; any failure leaves both unchanged.
	CreateWithOwner(ctx context.Context, org *Organization, ownerUserID string) error
	Find(ctx context.Context, id string) (*Organization, error)
	Update(ctx context.Context, org *Organization) error
}

// LicenseStore resolves entitlements. Read-only from auth's perspective.
type LicenseStore interface {
	// FindCurrent returns the organization's license whose validity window
	// has not yet closed, most-recent valid_until first, or ErrNotFound.
	FindCurrent(ctx context.Context, orgID string, now time.Time) (*License, error)
}

// TeamStore manages teams and memberships.
type TeamStore interface {
	Create(ctx context.Context, team *Team) error
	Find(ctx context.Context, id string) (*Team, error)
	ListByOrg(ctx context.Context, orgID string) ([]*Team, error)
	ListByUser(ctx context.Context, userID string) ([]TeamRef, error)
	Update(ctx context.Context, team *Team) error
	Delete(ctx context.Context, id string) error
	Members(ctx context.Context, teamID string) ([]*User, error)
	IsMember(ctx context.Context, teamID, userID string) (bool, error)
	AddMember(ctx context.Context, teamID, userID string) error
	RemoveMember(ctx context.Context, teamID, userID string) error

	// ReplaceMembers swaps the full membership of a team in one transaction;
	// any failure aborts the whole sequence.
	ReplaceMembers(ctx context.Context, teamID string, userIDs []string) error
}
