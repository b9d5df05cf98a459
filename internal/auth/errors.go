package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound            = errors.New("auth: not found")
	ErrAlreadyExists       = errors.New("auth: already exists")
	ErrMissingToken        = errors.New("auth: token is required")
	ErrInvalidEmail        = errors.New("auth: a valid email is required")
	ErrInvalidToken        = errors.New("auth: invalid token")
	ErrInvalidMagicLink    = errors.New("auth: invalid or already used magic link")
	ErrInvalidRefreshToken = errors.New("auth: invalid or expired refresh token")
	ErrNoSession           = errors.New("auth: no valid session found")
	ErrNoOrganization      = errors.New("auth: user does not belong to any organization")
	ErrNoLicense           = errors.New("auth: no valid license found")
	ErrSeatsExceeded       = errors.New("auth: organization has exceeded seats limit")
	ErrNotTeamMember       = errors.New("auth: user is not a member of this team")
)

// TokenExpiredError reports a credential past its expiry, naming the instant.
type TokenExpiredError struct {
	ExpiredAt time.Time
}

func (e *TokenExpiredError) Error() string {
	return fmt.Sprintf("auth: token expired at %s", e.ExpiredAt.UTC().Format(time.RFC3339))
}
