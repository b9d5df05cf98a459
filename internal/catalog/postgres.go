package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotFound reports a missing catalog row.
var ErrNotFound = errors.New("catalog: not found")

// PGStore reads the catalog from Postgres.
type PGStore struct {
	db *sql.DB
}

// NewPGStore wraps db.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const standardSelect = `
select s.id, s.title, s.issue_date,
       coalesce(orgs.items, '[]') as organizations,
       coalesce(tops.items, '[]') as topics
from standards s
left join lateral (
    select json_agg(json_build_object('id', fo.id, 'name', fo.name)) as items
    from standard_organizations so
    join fda_organizations fo on fo.id = so.fda_organization_id
    where so.standard_id = s.id
) orgs on true
left join lateral (
    select json_agg(json_build_object('id', t.id, 'name', t.name)) as items
    from standard_topics st
    join topics t on t.id = st.topic_id
    where st.standard_id = s.id
) tops on true`

func (s *PGStore) ListStandards(ctx context.Context, params ListParams) ([]*Standard, int, error) {
	params = params.Normalize()

	var conds []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if params.OrganizationID != "" {
		conds = append(conds, fmt.Sprintf(
			"exists (select 1 from standard_organizations so where so.standard_id = s.id and so.fda_organization_id = %s)",
			next(params.OrganizationID)))
	}
	if params.TopicID != "" {
		conds = append(conds, fmt.Sprintf(
			"exists (select 1 from standard_topics st where st.standard_id = s.id and st.topic_id = %s)",
			next(params.TopicID)))
	}
	if params.Search != "" {
		conds = append(conds, fmt.Sprintf("s.title ilike %s", next("%"+params.Search+"%")))
	}
	where := ""
	if len(conds) > 0 {
		where = " where " + strings.Join(conds, " and ")
	}

	var total int
	countQuery := "select count(*) from standards s" + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count standards: %w", err)
	}

	// Sort column and direction come from the enums, never from raw input.
	var orderCol string
	switch params.SortBy {
	case SortByTitle:
		orderCol = "s.title"
	default:
		orderCol = "s.issue_date"
	}
	dir := "desc"
	if params.SortOrder == SortAsc {
		dir = "asc"
	}

	query := standardSelect + where +
		fmt.Sprintf(" order by %s %s nulls last, s.id %s limit %s offset %s",
			orderCol, dir, dir,
			next(params.Limit), next((params.Page-1)*params.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list standards: %w", err)
	}
	defer rows.Close()

	var out []*Standard
	for rows.Next() {
		st, err := scanStandard(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *PGStore) FindStandard(ctx context.Context, id string) (*Standard, error) {
	row := s.db.QueryRowContext(ctx, standardSelect+" where s.id = $1", id)
	st, err := scanStandard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStandard(row rowScanner) (*Standard, error) {
	var st Standard
	var issueDate sql.NullTime
	var orgsJSON, topicsJSON []byte
	if err := row.Scan(&st.ID, &st.Title, &issueDate, &orgsJSON, &topicsJSON); err != nil {
		return nil, err
	}
	if issueDate.Valid {
		t := issueDate.Time
		st.IssueDate = &t
	}
	if err := json.Unmarshal(orgsJSON, &st.Organizations); err != nil {
		return nil, fmt.Errorf("decode standard organizations: %w", err)
	}
	if err := json.Unmarshal(topicsJSON, &st.Topics); err != nil {
		return nil, fmt.Errorf("decode standard topics: %w", err)
	}
	if st.Organizations == nil {
		st.Organizations = []Ref{}
	}
	if st.Topics == nil {
		st.Topics = []Ref{}
	}
	return &st, nil
}

func (s *PGStore) ListTopics(ctx context.Context) ([]*Topic, error) {
	rows, err := s.db.QueryContext(ctx,
		"select id, name, created_at from topics order by name asc")
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	var out []*Topic
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *PGStore) FindTopic(ctx context.Context, id string) (*Topic, error) {
	var t Topic
	err := s.db.QueryRowContext(ctx,
		"select id, name, created_at from topics where id = $1", id).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PGStore) ListFDAOrganizations(ctx context.Context) ([]*FDAOrganization, error) {
	rows, err := s.db.QueryContext(ctx,
		"select id, name, created_at from fda_organizations order by name asc")
	if err != nil {
		return nil, fmt.Errorf("list fda organizations: %w", err)
	}
	defer rows.Close()

	var out []*FDAOrganization
	for rows.Next() {
		var o FDAOrganization
		if err := rows.Scan(&o.ID, &o.Name, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

func (s *PGStore) FindFDAOrganization(ctx context.Context, id string) (*FDAOrganization, error) {
	var o FDAOrganization
	err := s.db.QueryRowContext(ctx,
		"select id, name, created_at from fda_organizations where id = $1", id).
		Scan(&o.ID, &o.Name, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}
