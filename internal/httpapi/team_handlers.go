package httpapi

import (
	"net/http"
	"strings"
	"time"

	"lexora.io/internal/audit"
	"lexora.io/internal/auth"
	"lexora.io/internal/ids"
)

type teamView struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"createdAt"`
}

func newTeamView(t *auth.Team) teamView {
	return teamView{
		ID:             t.ID,
		OrganizationID: t.OrganizationID,
		Name:           t.Name,
		CreatedAt:      t.CreatedAt,
	}
}

// ListTeams handles GET /api/teams for the caller's organization.
func (a *API) ListTeams(w http.ResponseWriter, r *http.Request) {
	orgID, _ := auth.OrganizationIDFromContext(r.Context())
	teams, err := a.store.Teams(r.Context()).ListByOrg(r.Context(), orgID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]teamView, 0, len(teams))
	for _, t := range teams {
		out = append(out, newTeamView(t))
	}
	writeSuccess(w, http.StatusOK, out, "")
}

// CreateTeam handles POST /api/teams. The creator is added as the first
// member.
func (a *API) CreateTeam(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
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
		respondError(w, errTypeValidation, "team name is required")
		return
	}

	now := time.Now().UTC()
	team := &auth.Team{
		ID:             ids.New(),
		OrganizationID: orgID,
		Name:           name,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	teams := a.store.Teams(r.Context())
	if err := teams.Create(r.Context(), team); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := teams.AddMember(r.Context(), team.ID, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.TeamCreated, map[string]any{"team_id": team.ID})
	writeSuccess(w, http.StatusCreated, newTeamView(team), "Team created")
}

// GetTeam handles GET /api/teams/{id}.
func (a *API) GetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := a.teamInOrg(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, newTeamView(team), "")
}

// UpdateTeam handles PUT /api/teams/{id}.
func (a *API) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	team, err := a.teamInOrg(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, errTypeValidation, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(w, errTypeValidation, "team name is required")
		return
	}

	team.Name = name
	team.UpdatedAt = time.Now().UTC()
	if err := a.store.Teams(r.Context()).Update(r.Context(), team); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, newTeamView(team), "Team updated")
}

// DeleteTeam handles DELETE /api/teams/{id}.
func (a *API) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	team, err := a.teamInOrg(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := a.store.Teams(r.Context()).Delete(r.Context(), team.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.TeamDeleted, map[string]any{"team_id": team.ID})
	writeSuccess(w, http.StatusOK, nil, "Team deleted")
}

// ListTeamMembers handles GET /api/teams/{id}/members.
func (a *API) ListTeamMembers(w http.ResponseWriter, r *http.Request) {
	team, err := a.teamInOrg(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	members, err := a.store.Teams(r.Context()).Members(r.Context(), team.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]userView, 0, len(members))
	for _, m := range members {
		out = append(out, newUserView(m))
	}
	writeSuccess(w, http.StatusOK, out, "")
}

// ReplaceTeamMembers handles PUT /api/teams/{id}/members: the submitted list
// becomes the team's full membership in one transaction.
func (a *API) ReplaceTeamMembers(w http.ResponseWriter, r *http.Request) {
	team, err := a.teamInOrg(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var req struct {
		UserIDs []string `json:"userIds"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, errTypeValidation, err.Error())
		return
	}
	if len(req.UserIDs) == 0 {
		respondError(w, errTypeValidation, "at least one member is required")
		return
	}

	if err := a.store.Teams(r.Context()).ReplaceMembers(r.Context(), team.ID, req.UserIDs); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.TeamMembersReplaced, map[string]any{
		"team_id": team.ID,
		"count":   len(req.UserIDs),
	})
	writeSuccess(w, http.StatusOK, nil, "Team members updated")
}

// AddTeamMember handles POST /api/teams/{id}/members: add one user from the
// caller's organization to the team.
func (a *API) AddTeamMember(w http.ResponseWriter, r *http.Request) {
	team, err := a.teamInOrg(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var req struct {
		UserID string `json:"userId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, errTypeValidation, err.Error())
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		respondError(w, errTypeValidation, "user id is required")
		return
	}
	user, err := a.store.Users(r.Context()).Find(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if user.OrganizationID != team.OrganizationID {
		writeServiceError(w, auth.ErrNotFound)
		return
	}

	if err := a.store.Teams(r.Context()).AddMember(r.Context(), team.ID, user.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.TeamMemberAdded, map[string]any{
		"team_id":        team.ID,
		"target_user_id": user.ID,
	})
	writeSuccess(w, http.StatusOK, nil, "Team member added")
}

// RemoveTeamMember handles DELETE /api/teams/{id}/members/{userID}.
func (a *API) RemoveTeamMember(w http.ResponseWriter, r *http.Request) {
	team, err := a.teamInOrg(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	userID := r.PathValue("userID")
	if userID == "" {
		respondError(w, errTypeValidation, "user id is required")
		return
	}
	if err := a.store.Teams(r.Context()).RemoveMember(r.Context(), team.ID, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.TeamMemberRemoved, map[string]any{
		"team_id":        team.ID,
		"target_user_id": userID,
	})
	writeSuccess(w, http.StatusOK, nil, "Team member removed")
}

// teamInOrg loads the addressed team and confirms it belongs to the caller's
// organization; teams elsewhere are indistinguishable from missing ones.
func (a *API) teamInOrg(r *http.Request) (*auth.Team, error) {
	orgID, _ := auth.OrganizationIDFromContext(r.Context())
	team, err := a.store.Teams(r.Context()).Find(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if team.OrganizationID != orgID {
		return nil, auth.ErrNotFound
	}
	return team, nil
}
