package auth

import "context"

type userIDContextKey struct{}
type orgIDContextKey struct{}
type licenseContextKey struct{}

// ContextWithUserID stores the authenticated user id in the context.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext extracts the authenticated user id from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(userIDContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// ContextWithOrganizationID stores the resolved organization id for downstream
// handlers.
func ContextWithOrganizationID(ctx context.Context, orgID string) context.Context {
	if orgID == "" {
		return ctx
	}
	return context.WithValue(ctx, orgIDContextKey{}, orgID)
}

// OrganizationIDFromContext extracts the organization id from context.
func OrganizationIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(orgIDContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// ContextWithLicense stores the resolved license for downstream handlers.
func ContextWithLicense(ctx context.Context, lic *License) context.Context {
	if lic == nil {
		return ctx
	}
	return context.WithValue(ctx, licenseContextKey{}, lic)
}

// LicenseFromContext extracts the resolved license from context.
func LicenseFromContext(ctx context.Context) (*License, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(licenseContextKey{}).(*License)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
