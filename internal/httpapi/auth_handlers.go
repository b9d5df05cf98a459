package httpapi

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"lexora.io/internal/audit"
	"lexora.io/internal/auth"
)

const oauthStateCookie = "lexora_oauth_state"

// RequestMagicLink handles POST /api/auth/magic-link. The response does not
// reveal whether mail delivery targeted an existing account.
func (a *API) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, errTypeValidation, err.Error())
		return
	}
	if err := a.auth.RequestMagicLink(r.Context(), req.Email); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.MagicLinkRequested, map[string]any{
		"email": strings.ToLower(strings.TrimSpace(req.Email)),
	})
	writeSuccess(w, http.StatusOK, nil, "Magic link sent to your email")
}

// VerifyMagicLink handles GET /api/auth/verify-magic-link?token=... and
// establishes both the token pair and the browser session.
func (a *API) VerifyMagicLink(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	result, err := a.auth.VerifyMagicLink(r.Context(), token)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	a.setSessionCookie(w, result.SessionID)
	_ = audit.LogEvent(auth.ContextWithUserID(r.Context(), result.User.ID),
		audit.MagicLinkRedeemed, nil)
	writeSuccess(w, http.StatusOK, result, "Login successful")
}

// RefreshToken handles POST /api/auth/refresh-token and issues a fresh
// access token; the refresh token itself is not rotated.
func (a *API) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, errTypeValidation, err.Error())
		return
	}
	access, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"accessToken": access}, "")
}

// Logout handles POST /api/auth/logout. It runs behind requireSession: the
// session cookie is the credential being revoked.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	// body is optional; an absent refresh token only skips its revocation
	_ = decodeJSON(r, &req)

	sessionID := ""
	if cookie, err := r.Cookie(a.cookieName); err == nil {
		sessionID = cookie.Value
	}
	if err := a.auth.Logout(r.Context(), req.RefreshToken, sessionID); err != nil {
		writeServiceError(w, err)
		return
	}
	a.clearSessionCookie(w)
	if userID, ok := auth.UserIDFromContext(r.Context()); ok {
		_ = audit.LogEvent(auth.ContextWithUserID(r.Context(), userID), audit.Logout, nil)
	}
	writeSuccess(w, http.StatusOK, nil, "Logged out")
}

// Me handles GET /api/auth/me.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, errTypeAuth, "No token provided")
		return
	}
	profile, err := a.auth.CurrentUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, profile, "")
}

// oauthStart redirects to the provider's consent page with a state nonce
// bound to the browser via a short-lived cookie.
func (a *API) oauthStart(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, ok := a.providers.Lookup(name)
		if !ok {
			respondError(w, errTypeNotFound, "unknown provider")
			return
		}
		state, err := randomState()
		if err != nil {
			respondError(w, errTypeServer, "internal server error")
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     oauthStateCookie,
			Value:    state,
			Path:     "/api/auth",
			MaxAge:   600,
			HttpOnly: true,
			Secure:   a.cookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusFound)
	}
}

// oauthCallback exchanges the authorization code, signs the user in and
// redirects the browser back to the frontend.
func (a *API) oauthCallback(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, ok := a.providers.Lookup(name)
		if !ok {
			respondError(w, errTypeNotFound, "unknown provider")
			return
		}
		if err := r.ParseForm(); err != nil {
			respondError(w, errTypeValidation, "invalid callback request")
			return
		}
		state := r.Form.Get("state")
		cookie, err := r.Cookie(oauthStateCookie)
		if err != nil || state == "" || cookie.Value != state {
			respondError(w, errTypeAuth, "state mismatch")
			return
		}
		code := r.Form.Get("code")
		if code == "" {
			respondError(w, errTypeValidation, "authorization code is required")
			return
		}

		profile, err := provider.Exchange(r.Context(), code)
		if err != nil {
			respondError(w, errTypeAuth, "authentication failed")
			return
		}
		user, sessionID, err := a.auth.LoginExternal(r.Context(), profile)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		a.setSessionCookie(w, sessionID)
		_ = audit.LogEvent(auth.ContextWithUserID(r.Context(), user.ID),
			audit.OAuthLogin, map[string]any{"provider": name})

		http.Redirect(w, r, a.frontendRedirect(), http.StatusFound)
	}
}

func (a *API) frontendRedirect() string {
	base := strings.TrimSuffix(a.frontendURL, "/")
	target, err := url.JoinPath(base, a.redirectPath)
	if err != nil {
		return base + a.redirectPath
	}
	return target
}

func (a *API) setSessionCookie(w http.ResponseWriter, sessionID string) {
	if sessionID == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(a.cookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
