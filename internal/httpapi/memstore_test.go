package httpapi

import (
	"context"
	"sync"
	"time"

	"lexora.io/internal/auth"
	"lexora.io/internal/catalog"
)

// memStore is an in-memory auth.Store used by the handler tests.
type memStore struct {
	mu sync.Mutex

	users      map[string]*auth.User
	magicLinks map[string]*auth.MagicLinkToken // keyed by token
	refresh    map[string]*auth.RefreshToken   // keyed by token
	sessions   map[string]*auth.Session
	orgs       map[string]*auth.Organization
	licenses   []*auth.License
	teams      map[string]*auth.Team
	members    map[string]map[string]bool // teamID -> userID set
}

func newMemStore() *memStore {
	return &memStore{
		users:      make(map[string]*auth.User),
		magicLinks: make(map[string]*auth.MagicLinkToken),
		refresh:    make(map[string]*auth.RefreshToken),
		sessions:   make(map[string]*auth.Session),
		orgs:       make(map[string]*auth.Organization),
		teams:      make(map[string]*auth.Team),
		members:    make(map[string]map[string]bool),
	}
}

func (m *memStore) Users(context.Context) auth.UserStore               { return (*memUsers)(m) }
func (m *memStore) MagicLinkTokens(context.Context) auth.MagicLinkTokenStore {
	return (*memMagicLinks)(m)
}
func (m *memStore) RefreshTokens(context.Context) auth.RefreshTokenStore { return (*memRefresh)(m) }
func (m *memStore) Sessions(context.Context) auth.SessionStore           { return (*memSessions)(m) }
func (m *memStore) Organizations(context.Context) auth.OrganizationStore { return (*memOrgs)(m) }
func (m *memStore) Licenses(context.Context) auth.LicenseStore           { return (*memLicenses)(m) }
func (m *memStore) Teams(context.Context) auth.TeamStore                 { return (*memTeams)(m) }

type memUsers memStore

func (m *memUsers) Create(_ context.Context, u *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return auth.ErrAlreadyExists
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) Find(_ context.Context, id string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memUsers) FindByExternalID(_ context.Context, provider, externalID string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if (provider == auth.AuthTypeGoogle && u.GoogleID == externalID) ||
			(provider == auth.AuthTypeMicrosoft && u.MicrosoftID == externalID) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memUsers) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	u.LastLogin = &at
	return nil
}

func (m *memUsers) Update(_ context.Context, u *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return auth.ErrNotFound
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) SetOrganization(_ context.Context, userID, orgID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	u.OrganizationID = orgID
	return nil
}

func (m *memUsers) ListByOrg(_ context.Context, orgID string) ([]*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*auth.User
	for _, u := range m.users {
		if u.OrganizationID == orgID {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memUsers) CountActiveByOrg(_ context.Context, orgID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.users {
		if u.OrganizationID == orgID && u.IsActive {
			n++
		}
	}
	return n, nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return auth.ErrNotFound
	}
	delete(m.users, id)
	for _, set := range m.members {
		delete(set, id)
	}
	return nil
}

type memMagicLinks memStore

func (m *memMagicLinks) Create(_ context.Context, tok *auth.MagicLinkToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tok
	m.magicLinks[tok.Token] = &cp
	return nil
}

func (m *memMagicLinks) Redeem(_ context.Context, token string, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.magicLinks[token]
	if !ok {
		return "", auth.ErrNotFound
	}
	if !rec.ExpiresAt.After(now) {
		return "", &auth.TokenExpiredError{ExpiredAt: rec.ExpiresAt}
	}
	delete(m.magicLinks, token)
	return rec.UserID, nil
}

type memRefresh memStore

func (m *memRefresh) Create(_ context.Context, tok *auth.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tok
	m.refresh[tok.Token] = &cp
	return nil
}

func (m *memRefresh) FindValid(_ context.Context, token string, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.refresh[token]
	if !ok || !rec.ExpiresAt.After(now) {
		return "", auth.ErrNotFound
	}
	return rec.UserID, nil
}

func (m *memRefresh) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refresh, token)
	return nil
}

type memSessions memStore

func (m *memSessions) Create(_ context.Context, s *auth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessions) Find(_ context.Context, id string, now time.Time) (*auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !s.ExpiresAt.After(now) {
		return nil, auth.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

type memOrgs memStore

func (m *memOrgs) CreateWithOwner(_ context.Context, org *auth.Organization, ownerUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[ownerUserID]
	if !ok {
		return auth.ErrNotFound
	}
	cp := *org
	m.orgs[org.ID] = &cp
	u.OrganizationID = org.ID
	return nil
}

func (m *memOrgs) Find(_ context.Context, id string) (*auth.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrgs) Update(_ context.Context, org *auth.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[org.ID]; !ok {
		return auth.ErrNotFound
	}
	cp := *org
	m.orgs[org.ID] = &cp
	return nil
}

type memLicenses memStore

func (m *memLicenses) FindCurrent(_ context.Context, orgID string, now time.Time) (*auth.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *auth.License
	for _, lic := range m.licenses {
		if lic.OrganizationID != orgID || !lic.ValidUntil.After(now) {
			continue
		}
		if best == nil || lic.ValidUntil.After(best.ValidUntil) {
			best = lic
		}
	}
	if best == nil {
		return nil, auth.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

type memTeams memStore

func (m *memTeams) Create(_ context.Context, team *auth.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *team
	m.teams[team.ID] = &cp
	return nil
}

func (m *memTeams) Find(_ context.Context, id string) (*auth.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTeams) ListByOrg(_ context.Context, orgID string) ([]*auth.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*auth.Team
	for _, t := range m.teams {
		if t.OrganizationID == orgID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTeams) ListByUser(_ context.Context, userID string) ([]auth.TeamRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []auth.TeamRef
	for teamID, set := range m.members {
		if set[userID] {
			if t, ok := m.teams[teamID]; ok {
				out = append(out, auth.TeamRef{ID: t.ID, Name: t.Name})
			}
		}
	}
	return out, nil
}

func (m *memTeams) Update(_ context.Context, team *auth.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.teams[team.ID]; !ok {
		return auth.ErrNotFound
	}
	cp := *team
	m.teams[team.ID] = &cp
	return nil
}

func (m *memTeams) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.teams, id)
	delete(m.members, id)
	return nil
}

func (m *memTeams) Members(_ context.Context, teamID string) ([]*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*auth.User
	for userID := range m.members[teamID] {
		if u, ok := m.users[userID]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTeams) IsMember(_ context.Context, teamID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members[teamID][userID], nil
}

func (m *memTeams) AddMember(_ context.Context, teamID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[teamID] == nil {
		m.members[teamID] = make(map[string]bool)
	}
	m.members[teamID][userID] = true
	return nil
}

func (m *memTeams) RemoveMember(_ context.Context, teamID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members[teamID], userID)
	return nil
}

func (m *memTeams) ReplaceMembers(_ context.Context, teamID string, userIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		set[id] = true
	}
	m.members[teamID] = set
	return nil
}

// memCatalog is a canned catalog.Store.
type memCatalog struct {
	standards []*catalog.Standard
	topics    []*catalog.Topic
	fdaOrgs   []*catalog.FDAOrganization
}

func (m *memCatalog) ListStandards(_ context.Context, params catalog.ListParams) ([]*catalog.Standard, int, error) {
	return m.standards, len(m.standards), nil
}

func (m *memCatalog) FindStandard(_ context.Context, id string) (*catalog.Standard, error) {
	for _, s := range m.standards {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (m *memCatalog) ListTopics(_ context.Context) ([]*catalog.Topic, error) {
	return m.topics, nil
}

func (m *memCatalog) FindTopic(_ context.Context, id string) (*catalog.Topic, error) {
	for _, t := range m.topics {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (m *memCatalog) ListFDAOrganizations(_ context.Context) ([]*catalog.FDAOrganization, error) {
	return m.fdaOrgs, nil
}

func (m *memCatalog) FindFDAOrganization(_ context.Context, id string) (*catalog.FDAOrganization, error) {
	for _, o := range m.fdaOrgs {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, catalog.ErrNotFound
}

// captureMailer records the last magic link it was asked to deliver.
type captureMailer struct {
	mu   sync.Mutex
	to   string
	link string
}

func (c *captureMailer) SendMagicLink(_ context.Context, to, link string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.to = to
	c.link = link
	return nil
}

func (c *captureMailer) lastLink() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link
}
