// Package oauth integrates external OpenID Connect identity providers.
// Providers are declared as descriptors and validated independently at
// startup; an incomplete descriptor is filtered out instead of failing boot.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"lexora.io/internal/auth"
	"lexora.io/internal/obs"
)

const (
	googleIssuer          = "https://accounts.google.com"
	microsoftIssuerFormat = "https://login.microsoftonline.com/%s/v2.0"
)

// Descriptor declares one provider integration.
type Descriptor struct {
	Name         string
	ClientID     string
	ClientSecret string
	IssuerURL    string
	RedirectURL  string
	Scopes       []string

	// UserIDClaim names the ID-token claim carrying the provider-specific
	// stable external id.
	UserIDClaim string
}

// Validate reports whether the descriptor carries everything needed to
// register the provider.
func (d Descriptor) Validate() error {
	var missing []string
	if strings.TrimSpace(d.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(d.ClientID) == "" {
		missing = append(missing, "client id")
	}
	if strings.TrimSpace(d.ClientSecret) == "" {
		missing = append(missing, "client secret")
	}
	if strings.TrimSpace(d.IssuerURL) == "" {
		missing = append(missing, "issuer url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("oauth: descriptor %q missing %s", d.Name, strings.Join(missing, ", "))
	}
	return nil
}

// GoogleDescriptor builds the always-on Google integration.
func GoogleDescriptor(clientID, clientSecret, baseURL string) Descriptor {
	return Descriptor{
		Name:         auth.AuthTypeGoogle,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		IssuerURL:    googleIssuer,
		RedirectURL:  strings.TrimRight(baseURL, "/") + "/api/auth/google/callback",
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		UserIDClaim:  "sub",
	}
}

// MicrosoftDescriptor builds the Microsoft integration for a tenant. The
// caller decides whether to register it; the descriptor itself fails
// validation when the tenant (and thus the issuer) is absent.
func MicrosoftDescriptor(clientID, clientSecret, tenant, baseURL string) Descriptor {
	issuer := ""
	if strings.TrimSpace(tenant) != "" {
		issuer = fmt.Sprintf(microsoftIssuerFormat, tenant)
	}
	return Descriptor{
		Name:         auth.AuthTypeMicrosoft,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		IssuerURL:    issuer,
		RedirectURL:  strings.TrimRight(baseURL, "/") + "/api/auth/microsoft/callback",
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		UserIDClaim:  "oid",
	}
}

// Provider is a registered OIDC integration.
type Provider struct {
	name         string
	userIDClaim  string
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// NewProvider runs OIDC discovery against the descriptor's issuer.
func NewProvider(ctx context.Context, d Descriptor) (*Provider, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	provider, err := oidc.NewProvider(ctx, d.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oauth: discover %s: %w", d.Name, err)
	}
	return &Provider{
		name:        d.Name,
		userIDClaim: d.UserIDClaim,
		verifier:    provider.Verifier(&oidc.Config{ClientID: d.ClientID}),
		oauth2Config: &oauth2.Config{
			ClientID:     d.ClientID,
			ClientSecret: d.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  d.RedirectURL,
			Scopes:       d.Scopes,
		},
	}, nil
}

// Name returns the provider name as stored in users.auth_type.
func (p *Provider) Name() string { return p.name }

// AuthCodeURL returns the provider's authorization endpoint URL for the
// handshake.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state)
}

// Exchange trades the authorization code for a verified external profile.
func (p *Provider) Exchange(ctx context.Context, code string) (auth.ExternalProfile, error) {
	if strings.TrimSpace(code) == "" {
		return auth.ExternalProfile{}, errors.New("oauth: missing authorization code")
	}
	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return auth.ExternalProfile{}, fmt.Errorf("oauth: exchange code: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return auth.ExternalProfile{}, errors.New("oauth: missing id_token in response")
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return auth.ExternalProfile{}, fmt.Errorf("oauth: verify id_token: %w", err)
	}
	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return auth.ExternalProfile{}, fmt.Errorf("oauth: parse claims: %w", err)
	}
	return p.profileFromClaims(claims)
}

func (p *Provider) profileFromClaims(claims map[string]any) (auth.ExternalProfile, error) {
	profile := auth.ExternalProfile{
		Provider:   p.name,
		ExternalID: stringClaim(claims, p.userIDClaim),
		Email:      stringClaim(claims, "email"),
		FirstName:  stringClaim(claims, "given_name"),
		LastName:   stringClaim(claims, "family_name"),
	}
	if profile.ExternalID == "" {
		return auth.ExternalProfile{}, fmt.Errorf("oauth: claim %q absent from id_token", p.userIDClaim)
	}
	// Microsoft work accounts may carry the address in upn instead of email.
	if profile.Email == "" {
		profile.Email = stringClaim(claims, "upn")
	}
	if profile.Email == "" {
		profile.Email = stringClaim(claims, "preferred_username")
	}
	return profile, nil
}

func stringClaim(claims map[string]any, key string) string {
	if key == "" {
		return ""
	}
	v, _ := claims[key].(string)
	return strings.TrimSpace(v)
}

// Registry holds the providers that survived validation and discovery.
type Registry struct {
	providers map[string]*Provider
}

// NewRegistry validates each descriptor independently and registers the
// survivors. Invalid descriptors are logged and skipped; a discovery failure
// for a valid descriptor is an error because the operator asked for it.
func NewRegistry(ctx context.Context, descriptors []Descriptor) (*Registry, error) {
	reg := &Registry{providers: make(map[string]*Provider)}
	for _, d := range descriptors {
		if err := d.Validate(); err != nil {
			obs.LogError("oauth provider skipped", err, map[string]any{"provider": d.Name})
			continue
		}
		p, err := NewProvider(ctx, d)
		if err != nil {
			return nil, err
		}
		reg.providers[p.Name()] = p
	}
	return reg, nil
}

// Lookup returns the registered provider by name.
func (r *Registry) Lookup(name string) (*Provider, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.providers[name]
	return p, ok
}

// Names lists registered provider names.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
