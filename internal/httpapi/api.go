// Package httpapi is the HTTP surface of the Lexora API: routing, the
// response envelope, and the authentication middleware chain.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"lexora.io/internal/auth"
	"lexora.io/internal/catalog"
	"lexora.io/internal/oauth"
	"lexora.io/internal/obs"
)

// ReadyProbe reports whether the API can serve traffic.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config carries the handler-level settings the API needs beyond its
// collaborators.
type Config struct {
	Version      string
	FrontendURL  string
	RedirectPath string
	CookieName   string
	CookieTTL    time.Duration
	CookieSecure bool

	RateLimitPerSec int
	RateLimitBurst  int
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	providers  *oauth.Registry
	store      auth.Store
	catalog    catalog.Store
	readyProbe ReadyProbe

	version      string
	frontendURL  string
	redirectPath string
	cookieName   string
	cookieTTL    time.Duration
	cookieSecure bool
	ratePerSec   int
	rateBurst    int
}

func New(svc *auth.Service, providers *oauth.Registry, store auth.Store, cat catalog.Store, rp ReadyProbe, cfg Config) *API {
	a := &API{
		mux:          http.NewServeMux(),
		auth:         svc,
		providers:    providers,
		store:        store,
		catalog:      cat,
		readyProbe:   rp,
		version:      cfg.Version,
		frontendURL:  cfg.FrontendURL,
		redirectPath: cfg.RedirectPath,
		cookieName:   cfg.CookieName,
		cookieTTL:    cfg.CookieTTL,
		cookieSecure: cfg.CookieSecure,
		ratePerSec:   cfg.RateLimitPerSec,
		rateBurst:    cfg.RateLimitBurst,
	}
	if a.redirectPath == "" {
		a.redirectPath = "/dashboard"
	}
	if a.cookieName == "" {
		a.cookieName = "lexora_sid"
	}
	if a.cookieTTL <= 0 {
		a.cookieTTL = 24 * time.Hour
	}
	a.routes()
	return a
}

func (a *API) routes() {
	m := a.mux

	// health/ready/metrics stay outside the auth chain
	m.HandleFunc("GET /healthz", a.Healthz)
	m.HandleFunc("GET /readyz", a.Ready)
	m.Handle("GET /metrics", obs.Handler())

	// authentication
	m.HandleFunc("POST /api/auth/magic-link", a.RequestMagicLink)
	m.HandleFunc("GET /api/auth/verify-magic-link", a.VerifyMagicLink)
	m.HandleFunc("POST /api/auth/refresh-token", a.RefreshToken)
	m.HandleFunc("POST /api/auth/logout", a.requireSession(a.Logout))
	m.HandleFunc("GET /api/auth/me", a.requireUser(a.Me))
	for _, name := range a.providerNames() {
		m.HandleFunc("GET /api/auth/"+name, a.oauthStart(name))
		m.HandleFunc("GET /api/auth/"+name+"/callback", a.oauthCallback(name))
		m.HandleFunc("POST /api/auth/"+name+"/callback", a.oauthCallback(name))
	}

	// catalog, readable by any authenticated licensed user
	withLicense := func(h http.HandlerFunc) http.HandlerFunc {
		return a.requireUser(a.requireOrganization(a.requireLicense(h)))
	}
	m.HandleFunc("GET /api/standards", withLicense(a.ListStandards))
	m.HandleFunc("GET /api/standards/{id}", withLicense(a.GetStandard))
	m.HandleFunc("GET /api/topics", withLicense(a.ListTopics))
	m.HandleFunc("GET /api/topics/{id}", withLicense(a.GetTopic))
	m.HandleFunc("GET /api/fda-organizations", withLicense(a.ListFDAOrganizations))
	m.HandleFunc("GET /api/fda-organizations/{id}", withLicense(a.GetFDAOrganization))

	// organizations
	withOrg := func(h http.HandlerFunc) http.HandlerFunc {
		return a.requireUser(a.requireOrganization(h))
	}
	m.HandleFunc("POST /api/organizations", a.requireUser(a.CreateOrganization))
	m.HandleFunc("GET /api/organizations", withLicense(a.GetOrganization))
	m.HandleFunc("PUT /api/organizations", withOrg(a.UpdateOrganization))

	// organization membership and user administration
	m.HandleFunc("GET /api/users", withOrg(a.ListOrganizationUsers))
	m.HandleFunc("POST /api/users", withOrg(a.InviteOrganizationUser))
	m.HandleFunc("PUT /api/users/{id}", withOrg(a.UpdateUser))
	m.HandleFunc("DELETE /api/users/{id}", withOrg(a.DeleteUser))
	m.HandleFunc("DELETE /api/users/{id}/organization", withOrg(a.RemoveOrganizationUser))

	// teams
	m.HandleFunc("GET /api/teams", withLicense(a.ListTeams))
	m.HandleFunc("POST /api/teams", withLicense(a.CreateTeam))
	m.HandleFunc("GET /api/teams/{id}", withLicense(a.requireTeamMember(a.GetTeam)))
	m.HandleFunc("PUT /api/teams/{id}", withLicense(a.requireTeamMember(a.UpdateTeam)))
	m.HandleFunc("DELETE /api/teams/{id}", withLicense(a.requireTeamMember(a.DeleteTeam)))
	m.HandleFunc("GET /api/teams/{id}/members", withLicense(a.requireTeamMember(a.ListTeamMembers)))
	m.HandleFunc("PUT /api/teams/{id}/members", withLicense(a.requireTeamMember(a.ReplaceTeamMembers)))
	m.HandleFunc("POST /api/teams/{id}/members", withLicense(a.requireTeamMember(a.AddTeamMember)))
	m.HandleFunc("DELETE /api/teams/{id}/members/{userID}", withLicense(a.requireTeamMember(a.RemoveTeamMember)))

	m.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondError(w, errTypeNotFound, "route not found")
	})
}

func (a *API) providerNames() []string {
	if a.providers == nil {
		return nil
	}
	return a.providers.Names()
}

// Handler wires the middleware stack around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = obs.Instrument(h)
	h = MaxBodyBytes(h, 1<<20)
	if a.ratePerSec > 0 {
		h = RateLimit(h, a.rateBurst, a.ratePerSec)
	}
	h = CORS(h, a.frontendURL)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]any{
		"service": "lexora-api",
		"version": a.version,
	}, "")
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		respondError(w, errTypeNetwork, "database unreachable")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"ready": true}, "")
}
