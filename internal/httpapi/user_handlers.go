package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"lexora.io/internal/audit"
	"lexora.io/internal/auth"
	"lexora.io/internal/ids"
)

// InviteOrganizationUser handles POST /api/users: add a user to the caller's
// organization by email. A known address is attached to the organization; an
// unknown one gets a fresh account, with a local password when one is
// supplied and magic-link login otherwise.
func (a *API) InviteOrganizationUser(w http.ResponseWriter, r *http.Request) {
	orgID, _ := auth.OrganizationIDFromContext(r.Context())

	var req struct {
		Email     string `json:"email"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Password  string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, errTypeValidation, err.Error())
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		respondError(w, errTypeValidation, "a valid email is required")
		return
	}

	users := a.store.Users(r.Context())
	user, err := users.FindByEmail(r.Context(), email)
	switch {
	case err == nil:
		if err := users.SetOrganization(r.Context(), user.ID, orgID); err != nil {
			writeServiceError(w, err)
			return
		}
		user.OrganizationID = orgID
	case errors.Is(err, auth.ErrNotFound):
		user = &auth.User{
			ID:             ids.New(),
			Email:          email,
			FirstName:      strings.TrimSpace(req.FirstName),
			LastName:       strings.TrimSpace(req.LastName),
			OrganizationID: orgID,
			AuthType:       auth.AuthTypeMagicLink,
			IsActive:       true,
		}
		if req.Password != "" {
			hash, err := auth.HashPassword(req.Password)
			if err != nil {
				respondError(w, errTypeValidation, err.Error())
				return
			}
			user.PasswordHash = hash
			user.AuthType = auth.AuthTypeLocal
		}
		if err := users.Create(r.Context(), user); err != nil {
			writeServiceError(w, err)
			return
		}
	default:
		writeServiceError(w, err)
		return
	}

	_ = audit.LogEvent(r.Context(), audit.OrganizationUserAdded, map[string]any{
		"target_user_id": user.ID,
	})
	writeSuccess(w, http.StatusCreated, newUserView(user), "User added to organization")
}

// UpdateUser handles PUT /api/users/{id}: names, the active flag and an
// optional password change for a member of the caller's organization.
func (a *API) UpdateUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.userInOrg(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var req struct {
		FirstName *string `json:"firstName"`
		LastName  *string `json:"lastName"`
		IsActive  *bool   `json:"isActive"`
		Password  string  `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, errTypeValidation, err.Error())
		return
	}

	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			respondError(w, errTypeValidation, err.Error())
			return
		}
		user.PasswordHash = hash
		user.AuthType = auth.AuthTypeLocal
	}
	user.UpdatedAt = time.Now().UTC()

	if err := a.store.Users(r.Context()).Update(r.Context(), user); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.UserUpdated, map[string]any{
		"target_user_id": user.ID,
	})
	writeSuccess(w, http.StatusOK, newUserView(user), "User updated")
}

// RemoveOrganizationUser handles DELETE /api/users/{id}/organization: detach
// the user from the caller's organization. The account itself survives.
func (a *API) RemoveOrganizationUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.userInOrg(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := a.store.Users(r.Context()).SetOrganization(r.Context(), user.ID, ""); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.OrganizationUserRemoved, map[string]any{
		"target_user_id": user.ID,
	})
	writeSuccess(w, http.StatusOK, nil, "User removed from organization")
}

// DeleteUser handles DELETE /api/users/{id}. Tokens, sessions and team
// memberships go with the row via the schema's cascades.
func (a *API) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.userInOrg(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := a.store.Users(r.Context()).Delete(r.Context(), user.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.UserDeleted, map[string]any{
		"target_user_id": user.ID,
	})
	writeSuccess(w, http.StatusOK, nil, "User deleted")
}

// userInOrg loads the addressed user and confirms they belong to the caller's
// organization; users elsewhere are indistinguishable from missing ones.
func (a *API) userInOrg(r *http.Request) (*auth.User, error) {
	orgID, _ := auth.OrganizationIDFromContext(r.Context())
	user, err := a.store.Users(r.Context()).Find(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if user.OrganizationID != orgID {
		return nil, auth.ErrNotFound
	}
	return user, nil
}
