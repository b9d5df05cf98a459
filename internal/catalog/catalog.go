// Package catalog serves the searchable collection of regulatory standards
// tagged by topic and issuing FDA organization.
package catalog

import (
	"context"
	"strings"
	"time"
)

// Sort columns accepted by the standards listing. Anything else falls back to
// the default; user input is mapped through this enum and never concatenated
// into SQL.
type SortColumn string

const (
	SortByIssueDate SortColumn = "issue_date"
	SortByTitle     SortColumn = "title"
)

// SortOrder is the accepted sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

const (
	defaultPageSize = 24
	maxPageSize     = 100
)

// ParseSortColumn maps raw input onto the allow list.
func ParseSortColumn(raw string) SortColumn {
	switch SortColumn(strings.ToLower(strings.TrimSpace(raw))) {
	case SortByTitle:
		return SortByTitle
	default:
		return SortByIssueDate
	}
}

// ParseSortOrder maps raw input onto the allow list.
func ParseSortOrder(raw string) SortOrder {
	switch SortOrder(strings.ToLower(strings.TrimSpace(raw))) {
	case SortAsc:
		return SortAsc
	default:
		return SortDesc
	}
}

// ListParams filters and pages the standards collection.
type ListParams struct {
	OrganizationID string
	TopicID        string
	Search         string
	Page           int
	Limit          int
	SortBy         SortColumn
	SortOrder      SortOrder
}

// Normalize applies defaults and bounds.
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.SortBy == "" {
		p.SortBy = SortByIssueDate
	}
	if p.SortOrder == "" {
		p.SortOrder = SortDesc
	}
	return p
}

// Ref is an id/name pair for tagged relations.
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Standard is a regulatory standards document.
type Standard struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	IssueDate     *time.Time `json:"issueDate,omitempty"`
	Organizations []Ref      `json:"organizations"`
	Topics        []Ref      `json:"topics"`
}

// Topic is a subject tag.
type Topic struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// FDAOrganization is an issuing body.
type FDAOrganization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store describes read operations over the catalog.
type Store interface {
	ListStandards(ctx context.Context, params ListParams) ([]*Standard, int, error)
	FindStandard(ctx context.Context, id string) (*Standard, error)
	ListTopics(ctx context.Context) ([]*Topic, error)
	FindTopic(ctx context.Context, id string) (*Topic, error)
	ListFDAOrganizations(ctx context.Context) ([]*FDAOrganization, error)
	FindFDAOrganization(ctx context.Context, id string) (*FDAOrganization, error)
}
