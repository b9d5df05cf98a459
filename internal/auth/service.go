package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lexora.io/internal/ids"
	"lexora.io/internal/obs"
)

const (
	defaultAccessTTL    = 24 * time.Hour
	defaultRefreshTTL   = 7 * 24 * time.Hour
	defaultMagicLinkTTL = 15 * time.Minute
	defaultDedupeWindow = 5 * time.Minute
	defaultSessionTTL   = 24 * time.Hour
)

// Mailer dispatches magic-link email. Delivery is an external collaborator;
// a dispatch failure fails the whole link request.
type Mailer interface {
	SendMagicLink(ctx context.Context, to, link string, expiresIn time.Duration) error
}

// ErrMailerNotConfigured indicates magic-link requests cannot be served.
var ErrMailerNotConfigured = errors.New("auth: mailer is not configured")

// Service implements the authentication and session/token lifecycle: magic
// link issuance and redemption, the dual-token model, external-identity
// linking and the checks behind the authorization middleware chain.
type Service struct {
	store  Store
	mailer Mailer
	now    func() time.Time

	secret       []byte
	issuer       string
	baseURL      string
	accessTTL    time.Duration
	refreshTTL   time.Duration
	magicLinkTTL time.Duration
	sessionTTL   time.Duration

	redeemed *redeemCache
}

// Option configures Service behavior.
type Option func(*Service) error

// WithMailer sets the magic-link mail dispatcher.
func WithMailer(m Mailer) Option {
	return func(s *Service) error {
		s.mailer = m
		return nil
	}
}

// WithIssuer overrides the access-token issuer claim.
func WithIssuer(issuer string) Option {
	return func(s *Service) error {
		s.issuer = strings.TrimSpace(issuer)
		return nil
	}
}

// WithBaseURL sets the public URL embedded in magic links.
func WithBaseURL(u string) Option {
	return func(s *Service) error {
		s.baseURL = strings.TrimRight(strings.TrimSpace(u), "/")
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithMagicLinkTTL configures magic-link token lifetime.
func WithMagicLinkTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl > 0 {
			s.magicLinkTTL = ttl
		}
		return nil
	}
}

// WithSessionTTL configures server-side session lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
		return nil
	}
}

// WithDedupeWindow configures the trailing window during which a repeated
// redemption of the same magic-link token replays the original result.
func WithDedupeWindow(window time.Duration) Option {
	return func(s *Service) error {
		if window > 0 {
			s.redeemed = newRedeemCache(defaultDedupeCapacity, window)
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs a Service. The signing secret is required; everything
// else has defaults.
func NewService(store Store, secret string, opts ...Option) (*Service, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	svc := &Service{
		store:        store,
		now:          time.Now,
		secret:       []byte(secret),
		issuer:       "lexora",
		accessTTL:    defaultAccessTTL,
		refreshTTL:   defaultRefreshTTL,
		magicLinkTTL: defaultMagicLinkTTL,
		sessionTTL:   defaultSessionTTL,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	if svc.redeemed == nil {
		svc.redeemed = newRedeemCache(defaultDedupeCapacity, defaultDedupeWindow)
	}
	return svc, nil
}

// RequestMagicLink issues a single-use login token for the address and mails
// the verification URL. Unknown addresses get a fresh user row; the response
// is identical either way so the endpoint cannot be used for enumeration.
// Prior unredeemed tokens for the same user stay valid.
func (s *Service) RequestMagicLink(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}
	if s.mailer == nil {
		return ErrMailerNotConfigured
	}

	users := s.store.Users(ctx)
	user, err := users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		user = &User{
			ID:       ids.New(),
			Email:    email,
			AuthType: AuthTypeMagicLink,
			IsActive: true,
		}
		if err := users.Create(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
	case err != nil:
		return fmt.Errorf("find user: %w", err)
	}

	token, err := newOpaqueToken()
	if err != nil {
		return err
	}
	now := s.now().UTC()
	rec := &MagicLinkToken{
		ID:        ids.New(),
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: now.Add(s.magicLinkTTL),
	}
	if err := s.store.MagicLinkTokens(ctx).Create(ctx, rec); err != nil {
		return fmt.Errorf("persist magic link token: %w", err)
	}

	link := s.baseURL + "/api/auth/verify-magic-link?token=" + token
	if err := s.mailer.SendMagicLink(ctx, email, link, s.magicLinkTTL); err != nil {
		// The token row exists but was never delivered; the caller sees the
		// failure rather than a silent success.
		return fmt.Errorf("send magic link: %w", err)
	}
	obs.CountMagicLinkIssued()
	return nil
}

// VerifyMagicLink redeems a magic-link token exactly once and converts the
// redemption into an authenticated session plus token pair. A repeat hit
// within the de-duplication window replays the original result.
func (s *Service) VerifyMagicLink(ctx context.Context, token string) (*AuthResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	if cached, ok := s.redeemed.get(token); ok {
		obs.CountMagicLinkRedeemed("replay")
		return cached, nil
	}

	now := s.now().UTC()
	userID, err := s.store.MagicLinkTokens(ctx).Redeem(ctx, token, now)
	switch {
	case errors.Is(err, ErrNotFound):
		obs.CountMagicLinkRedeemed("invalid")
		return nil, ErrInvalidMagicLink
	case err != nil:
		var expired *TokenExpiredError
		if errors.As(err, &expired) {
			obs.CountMagicLinkRedeemed("expired")
			return nil, err
		}
		return nil, fmt.Errorf("redeem magic link: %w", err)
	}

	user, err := s.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	access, refresh, err := s.IssueTokenPair(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Post-issuance bookkeeping is best-effort: a failure here must not
	// unwind the authentication already granted.
	if err := s.store.Users(ctx).UpdateLastLogin(ctx, userID, now); err != nil {
		obs.LogError("update last login failed", err, map[string]any{"user_id": userID})
	}
	sessionID, err := s.CreateSession(ctx, userID)
	if err != nil {
		obs.LogError("create session failed", err, map[string]any{"user_id": userID})
		sessionID = ""
	}

	result := &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         UserIdentity{ID: user.ID, Email: user.Email},
		SessionID:    sessionID,
	}
	s.redeemed.add(token, result)
	obs.CountMagicLinkRedeemed("ok")
	obs.CountLogin(AuthTypeMagicLink)
	return result, nil
}

// IssueTokenPair mints a signed access token and a fresh persisted refresh
// token for a user known to exist. If persistence fails, no pair is returned.
func (s *Service) IssueTokenPair(ctx context.Context, userID string) (accessToken, refreshToken string, err error) {
	now := s.now().UTC()
	accessToken, err = signAccessToken(s.secret, s.issuer, userID, now, s.accessTTL)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = newOpaqueToken()
	if err != nil {
		return "", "", err
	}
	rec := &RefreshToken{
		ID:        ids.New(),
		UserID:    userID,
		Token:     refreshToken,
		ExpiresAt: now.Add(s.refreshTTL),
	}
	if err := s.store.RefreshTokens(ctx).Create(ctx, rec); err != nil {
		return "", "", fmt.Errorf("persist refresh token: %w", err)
	}
	return accessToken, refreshToken, nil
}

// Refresh exchanges a valid refresh token for a new access token. The refresh
// token itself is neither rotated nor touched.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return "", ErrMissingToken
	}
	now := s.now().UTC()
	userID, err := s.store.RefreshTokens(ctx).FindValid(ctx, refreshToken, now)
	switch {
	case errors.Is(err, ErrNotFound):
		return "", ErrInvalidRefreshToken
	case err != nil:
		return "", fmt.Errorf("find refresh token: %w", err)
	}
	access, err := signAccessToken(s.secret, s.issuer, userID, now, s.accessTTL)
	if err != nil {
		return "", err
	}
	obs.CountLogin("refresh")
	return access, nil
}

// Logout deletes the matching refresh token if one was supplied (absence is
// not an error) and unconditionally destroys the server-side session.
func (s *Service) Logout(ctx context.Context, refreshToken, sessionID string) error {
	if refreshToken = strings.TrimSpace(refreshToken); refreshToken != "" {
		if err := s.store.RefreshTokens(ctx).Delete(ctx, refreshToken); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete refresh token: %w", err)
		}
	}
	if sessionID != "" {
		if err := s.store.Sessions(ctx).Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("destroy session: %w", err)
		}
	}
	return nil
}

// VerifyAccessToken validates a bearer access token and returns the embedded
// user id. Validation is purely cryptographic plus expiry.
func (s *Service) VerifyAccessToken(token string) (string, error) {
	return parseAccessToken(s.secret, s.issuer, token, s.now().UTC())
}

// CreateSession establishes a server-side session bound to the user id and
// returns the client-held identifier.
func (s *Service) CreateSession(ctx context.Context, userID string) (string, error) {
	sid, err := newOpaqueToken()
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	sess := &Session{
		ID:        sid,
		UserID:    userID,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.store.Sessions(ctx).Create(ctx, sess); err != nil {
		return "", fmt.Errorf("persist session: %w", err)
	}
	return sid, nil
}

// ResolveSession returns the user id bound to an unexpired session.
func (s *Service) ResolveSession(ctx context.Context, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", ErrNoSession
	}
	sess, err := s.store.Sessions(ctx).Find(ctx, sessionID, s.now().UTC())
	switch {
	case errors.Is(err, ErrNotFound):
		return "", ErrNoSession
	case err != nil:
		return "", fmt.Errorf("find session: %w", err)
	}
	return sess.UserID, nil
}

// LoginExternal maps a verified external profile to a local user, creating
// the row on first sight and updating last-login thereafter, then establishes
// a session.
func (s *Service) LoginExternal(ctx context.Context, profile ExternalProfile) (*User, string, error) {
	if profile.ExternalID == "" {
		return nil, "", fmt.Errorf("%w: external id missing", ErrInvalidToken)
	}
	users := s.store.Users(ctx)
	now := s.now().UTC()

	user, err := users.FindByExternalID(ctx, profile.Provider, profile.ExternalID)
	switch {
	case errors.Is(err, ErrNotFound):
		user = &User{
			ID:        ids.New(),
			Email:     strings.TrimSpace(strings.ToLower(profile.Email)),
			FirstName: profile.FirstName,
			LastName:  profile.LastName,
			AuthType:  profile.Provider,
			IsActive:  true,
			LastLogin: &now,
		}
		switch profile.Provider {
		case AuthTypeGoogle:
			user.GoogleID = profile.ExternalID
		case AuthTypeMicrosoft:
			user.MicrosoftID = profile.ExternalID
		default:
			return nil, "", fmt.Errorf("auth: unknown provider %q", profile.Provider)
		}
		if err := users.Create(ctx, user); err != nil {
			return nil, "", fmt.Errorf("create user: %w", err)
		}
	case err != nil:
		return nil, "", fmt.Errorf("find user: %w", err)
	default:
		if err := users.UpdateLastLogin(ctx, user.ID, now); err != nil {
			obs.LogError("update last login failed", err, map[string]any{"user_id": user.ID})
		}
	}

	sessionID, err := s.CreateSession(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}
	obs.CountLogin(profile.Provider)
	return user, sessionID, nil
}

// CurrentUser loads the profile served by the me endpoint: the user plus
// organization name and team memberships.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := &Profile{
		ID:             user.ID,
		Email:          user.Email,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		OrganizationID: user.OrganizationID,
		AuthType:       user.AuthType,
		LastLogin:      user.LastLogin,
		Teams:          []TeamRef{},
	}
	if user.OrganizationID != "" {
		org, err := s.store.Organizations(ctx).Find(ctx, user.OrganizationID)
		if err == nil {
			profile.OrganizationName = org.Name
		} else if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("load organization: %w", err)
		}
	}
	teams, err := s.store.Teams(ctx).ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	if teams != nil {
		profile.Teams = teams
	}
	return profile, nil
}

// OrganizationFor resolves the organization the user belongs to, or
// ErrNoOrganization.
func (s *Service) OrganizationFor(ctx context.Context, userID string) (string, error) {
	user, err := s.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNoOrganization
		}
		return "", err
	}
	if user.OrganizationID == "" {
		return "", ErrNoOrganization
	}
	return user.OrganizationID, nil
}

// CheckLicense resolves the organization's current license and enforces the
// seat ceiling against the active member count. Enforcement is per-request,
// not only at seat-allocation time.
func (s *Service) CheckLicense(ctx context.Context, orgID string) (*License, error) {
	now := s.now().UTC()
	lic, err := s.store.Licenses(ctx).FindCurrent(ctx, orgID, now)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, ErrNoLicense
	case err != nil:
		return nil, fmt.Errorf("find license: %w", err)
	}
	count, err := s.store.Users(ctx).CountActiveByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}
	if count > lic.SeatsLimit {
		return nil, ErrSeatsExceeded
	}
	return lic, nil
}

// CheckTeamMember confirms a membership row exists for the team and user.
func (s *Service) CheckTeamMember(ctx context.Context, teamID, userID string) error {
	ok, err := s.store.Teams(ctx).IsMember(ctx, teamID, userID)
	if err != nil {
		return fmt.Errorf("check team membership: %w", err)
	}
	if !ok {
		return ErrNotTeamMember
	}
	return nil
}
