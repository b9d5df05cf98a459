package httpapi

import (
	"net/http"
	"strings"
	"time"

	"lexora.io/internal/audit"
	"lexora.io/internal/auth"
	"lexora.io/internal/ids"
)

type organizationView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func orgView(o *auth.Organization) organizationView {
	return organizationView{ID: o.ID, Name: o.Name, CreatedAt: o.CreatedAt}
}

// CreateOrganization handles POST /api/organizations. The creating user
// becomes a member of the new organization in the same transaction.
func (a *API) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, errTypeValidation, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(w, errTypeValidation, "organization name is required")
		return
	}

	now := time.Now().UTC()
	org := &auth.Organization{
		ID:        ids.New(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.Organizations(r.Context()).CreateWithOwner(r.Context(), org, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.OrganizationCreated, map[string]any{
		"organization_id": org.ID,
	})
	writeSuccess(w, http.StatusCreated, orgView(org), "Organization created")
}

type licenseView struct {
	SeatsLimit int       `json:"seatsLimit"`
	ValidUntil time.Time `json:"validUntil"`
}

type teamSummaryView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"memberCount"`
}

type organizationDetailView struct {
	organizationView
	License      *licenseView      `json:"license"`
	CurrentSeats int               `json:"currentSeats"`
	Teams        []teamSummaryView `json:"teams"`
}

// GetOrganization handles GET /api/organizations: the caller's own
// organization with its license, seat usage and team roster.
func (a *API) GetOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, _ := auth.OrganizationIDFromContext(r.Context())
	org, err := a.store.Organizations(r.Context()).Find(r.Context(), orgID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	detail := organizationDetailView{
		organizationView: orgView(org),
		Teams:            []teamSummaryView{},
	}
	if lic, ok := auth.LicenseFromContext(r.Context()); ok {
		detail.License = &licenseView{SeatsLimit: lic.SeatsLimit, ValidUntil: lic.ValidUntil}
	}
	seats, err := a.store.Users(r.Context()).CountActiveByOrg(r.Context(), orgID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	detail.CurrentSeats = seats

	teams := a.store.Teams(r.Context())
	list, err := teams.ListByOrg(r.Context(), orgID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	for _, t := range list {
		members, err := teams.Members(r.Context(), t.ID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		detail.Teams = append(detail.Teams, teamSummaryView{
			ID:          t.ID,
			Name:        t.Name,
			MemberCount: len(members),
		})
	}
	writeSuccess(w, http.StatusOK, detail, "")
}

// UpdateOrganization handles PUT /api/organizations.
func (a *API) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, _ := auth.OrganizationIDFromContext(r.Context())

	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, errTypeValidation, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(w, errTypeValidation, "organization name is required")
		return
	}

	orgs := a.store.Organizations(r.Context())
	org, err := orgs.Find(r.Context(), orgID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	org.Name = name
	org.UpdatedAt = time.Now().UTC()
	if err := orgs.Update(r.Context(), org); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.OrganizationUpdated, map[string]any{
		"organization_id": org.ID,
	})
	writeSuccess(w, http.StatusOK, orgView(org), "Organization updated")
}

// ListOrganizationUsers handles GET /api/users: the members of the caller's
// organization.
func (a *API) ListOrganizationUsers(w http.ResponseWriter, r *http.Request) {
	orgID, _ := auth.OrganizationIDFromContext(r.Context())
	users, err := a.store.Users(r.Context()).ListByOrg(r.Context(), orgID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, newUserView(u))
	}
	writeSuccess(w, http.StatusOK, out, "")
}

type userView struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"firstName,omitempty"`
	LastName  string     `json:"lastName,omitempty"`
	IsActive  bool       `json:"isActive"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

func newUserView(u *auth.User) userView {
	return userView{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsActive:  u.IsActive,
		LastLogin: u.LastLogin,
	}
}
