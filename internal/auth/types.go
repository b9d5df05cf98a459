package auth

import "time"

// Authentication method tags stored in users.auth_type.
const (
	AuthTypeLocal     = "local"
	AuthTypeMagicLink = "magic-link"
	AuthTypeGoogle    = "google"
	AuthTypeMicrosoft = "microsoft"
)

// User represents an identity record. Email is globally unique; at most one
// external id per provider is associated per row.
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	OrganizationID string
	AuthType       string
	GoogleID       string
	MicrosoftID    string
	IsActive       bool
	LastLogin      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MagicLinkToken is a single-use, time-boxed credential. A token is valid iff
// it exists, is unexpired and has not been redeemed; redemption deletes the row.
type MagicLinkToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// RefreshToken is a long-lived opaque credential for silent re-authentication.
// Multiple rows per user may coexist, one per login or refresh flow.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Session is server-side state keyed by a client-held identifier.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Organization is the ownership context consumed by the authorization chain.
type Organization struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// License defines a seat ceiling and a validity window for an organization.
type License struct {
	ID             string
	OrganizationID string
	SeatsLimit     int
	ValidUntil     time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Team groups users inside an organization.
type Team struct {
	ID             string
	OrganizationID string
	Name           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TeamMember links a user to a team.
type TeamMember struct {
	TeamID    string
	UserID    string
	CreatedAt time.Time
}

// UserIdentity is the minimal identity returned with a token pair.
type UserIdentity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AuthResult is the payload of a successful authentication: a token pair plus
// minimal user identity and the server-side session that was established.
type AuthResult struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         UserIdentity `json:"user"`
	SessionID    string       `json:"-"`
}

// TeamRef is a team membership summary included in user profiles.
type TeamRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Profile is the current-user view served by the me endpoint.
type Profile struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	FirstName        string     `json:"firstName,omitempty"`
	LastName         string     `json:"lastName,omitempty"`
	OrganizationID   string     `json:"organizationId,omitempty"`
	OrganizationName string     `json:"organizationName,omitempty"`
	AuthType         string     `json:"authType"`
	LastLogin        *time.Time `json:"lastLogin,omitempty"`
	Teams            []TeamRef  `json:"teams"`
}

// ExternalProfile is a verified identity returned by an OAuth provider
// callback.
type ExternalProfile struct {
	Provider   string
	ExternalID string
	Email      string
	FirstName  string
	LastName   string
}
