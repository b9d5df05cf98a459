package httpapi

import (
	"net/http"
	"strconv"

	"lexora.io/internal/catalog"
)

// ListStandards handles GET /api/standards with paging, filters and the
// allow-listed sort parameters.
func (a *API) ListStandards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := catalog.ListParams{
		OrganizationID: q.Get("organization_id"),
		TopicID:        q.Get("topic_id"),
		Search:         q.Get("search"),
		Page:           intQuery(q.Get("page")),
		Limit:          intQuery(q.Get("limit")),
		SortBy:         catalog.ParseSortColumn(q.Get("sort_by")),
		SortOrder:      catalog.ParseSortOrder(q.Get("sort_order")),
	}
	params = params.Normalize()

	items, total, err := a.catalog.ListStandards(r.Context(), params)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if items == nil {
		items = []*catalog.Standard{}
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"items": items,
		"pagination": map[string]any{
			"page":  params.Page,
			"limit": params.Limit,
			"total": total,
		},
	}, "")
}

// GetStandard handles GET /api/standards/{id}.
func (a *API) GetStandard(w http.ResponseWriter, r *http.Request) {
	std, err := a.catalog.FindStandard(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, std, "")
}

// ListTopics handles GET /api/topics.
func (a *API) ListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := a.catalog.ListTopics(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if topics == nil {
		topics = []*catalog.Topic{}
	}
	writeSuccess(w, http.StatusOK, topics, "")
}

// GetTopic handles GET /api/topics/{id}.
func (a *API) GetTopic(w http.ResponseWriter, r *http.Request) {
	topic, err := a.catalog.FindTopic(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, topic, "")
}

// ListFDAOrganizations handles GET /api/fda-organizations.
func (a *API) ListFDAOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := a.catalog.ListFDAOrganizations(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if orgs == nil {
		orgs = []*catalog.FDAOrganization{}
	}
	writeSuccess(w, http.StatusOK, orgs, "")
}

// GetFDAOrganization handles GET /api/fda-organizations/{id}.
func (a *API) GetFDAOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := a.catalog.FindFDAOrganization(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, org, "")
}

func intQuery(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
