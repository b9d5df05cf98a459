package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/api/teams/abc":                "/api/teams/:id",
		"/api/teams/abc/members":        "/api/teams/:id/members",
		"/api/standards/abc":            "/api/standards/:id",
		"/api/topics/abc":               "/api/topics/:id",
		"/api/fda-organizations/abc":    "/api/fda-organizations/:id",
		"/api/standards":                "/api/standards",
		"/api/auth/verify-magic-link":   "/api/auth/verify-magic-link",
		"/api/teams/abc/members/def":    "/api/teams/:id/members/:id",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
