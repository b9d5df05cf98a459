package auth

import (
	"context"
	"sync"
	"time"
)

// fakeStore is an in-memory Store for service tests.
type fakeStore struct {
	mu sync.Mutex

	users      map[string]*User
	magicLinks map[string]*MagicLinkToken
	refresh    map[string]*RefreshToken
	sessions   map[string]*Session
	orgs       map[string]*Organization
	licenses   []*License
	teams      map[string]*Team
	members    map[string]map[string]bool

	failCreateSession bool
	failLastLogin     bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      make(map[string]*User),
		magicLinks: make(map[string]*MagicLinkToken),
		refresh:    make(map[string]*RefreshToken),
		sessions:   make(map[string]*Session),
		orgs:       make(map[string]*Organization),
		teams:      make(map[string]*Team),
		members:    make(map[string]map[string]bool),
	}
}

func (f *fakeStore) Users(context.Context) UserStore                     { return (*fakeUsers)(f) }
func (f *fakeStore) MagicLinkTokens(context.Context) MagicLinkTokenStore { return (*fakeMagic)(f) }
func (f *fakeStore) RefreshTokens(context.Context) RefreshTokenStore     { return (*fakeRefresh)(f) }
func (f *fakeStore) Sessions(context.Context) SessionStore               { return (*fakeSessions)(f) }
func (f *fakeStore) Organizations(context.Context) OrganizationStore     { return (*fakeOrgs)(f) }
func (f *fakeStore) Licenses(context.Context) LicenseStore               { return (*fakeLicenses)(f) }
func (f *fakeStore) Teams(context.Context) TeamStore                     { return (*fakeTeams)(f) }

type fakeUsers fakeStore

func (f *fakeUsers) Create(_ context.Context, u *User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return ErrAlreadyExists
		}
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) Find(_ context.Context, id string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeUsers) FindByExternalID(_ context.Context, provider, externalID string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if (provider == AuthTypeGoogle && u.GoogleID == externalID) ||
			(provider == AuthTypeMicrosoft && u.MicrosoftID == externalID) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeUsers) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLastLogin {
		return ErrNotFound
	}
	u, ok := f.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.LastLogin = &at
	return nil
}

func (f *fakeUsers) Update(_ context.Context, u *User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; !ok {
		return ErrNotFound
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) SetOrganization(_ context.Context, userID, orgID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.OrganizationID = orgID
	return nil
}

func (f *fakeUsers) ListByOrg(_ context.Context, orgID string) ([]*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*User
	for _, u := range f.users {
		if u.OrganizationID == orgID {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeUsers) CountActiveByOrg(_ context.Context, orgID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.users {
		if u.OrganizationID == orgID && u.IsActive {
			n++
		}
	}
	return n, nil
}

func (f *fakeUsers) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
	return nil
}

type fakeMagic fakeStore

func (f *fakeMagic) Create(_ context.Context, tok *MagicLinkToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *tok
	f.magicLinks[tok.Token] = &cp
	return nil
}

func (f *fakeMagic) Redeem(_ context.Context, token string, now time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.magicLinks[token]
	if !ok {
		return "", ErrNotFound
	}
	if !rec.ExpiresAt.After(now) {
		return "", &TokenExpiredError{ExpiredAt: rec.ExpiresAt}
	}
	delete(f.magicLinks, token)
	return rec.UserID, nil
}

type fakeRefresh fakeStore

func (f *fakeRefresh) Create(_ context.Context, tok *RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *tok
	f.refresh[tok.Token] = &cp
	return nil
}

func (f *fakeRefresh) FindValid(_ context.Context, token string, now time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.refresh[token]
	if !ok || !rec.ExpiresAt.After(now) {
		return "", ErrNotFound
	}
	return rec.UserID, nil
}

func (f *fakeRefresh) Delete(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, token)
	return nil
}

type fakeSessions fakeStore

func (f *fakeSessions) Create(_ context.Context, s *Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateSession {
		return ErrNotFound
	}
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeSessions) Find(_ context.Context, id string, now time.Time) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || !s.ExpiresAt.After(now) {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

type fakeOrgs fakeStore

func (f *fakeOrgs) CreateWithOwner(_ context.Context, org *Organization, ownerUserID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[ownerUserID]
	if !ok {
		return ErrNotFound
	}
	cp := *org
	f.orgs[org.ID] = &cp
	u.OrganizationID = org.ID
	return nil
}

func (f *fakeOrgs) Find(_ context.Context, id string) (*Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrgs) Update(_ context.Context, org *Organization) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orgs[org.ID]; !ok {
		return ErrNotFound
	}
	cp := *org
	f.orgs[org.ID] = &cp
	return nil
}

type fakeLicenses fakeStore

func (f *fakeLicenses) FindCurrent(_ context.Context, orgID string, now time.Time) (*License, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *License
	for _, lic := range f.licenses {
		if lic.OrganizationID != orgID || !lic.ValidUntil.After(now) {
			continue
		}
		if best == nil || lic.ValidUntil.After(best.ValidUntil) {
			best = lic
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

type fakeTeams fakeStore

func (f *fakeTeams) Create(_ context.Context, team *Team) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *team
	f.teams[team.ID] = &cp
	return nil
}

func (f *fakeTeams) Find(_ context.Context, id string) (*Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.teams[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTeams) ListByOrg(_ context.Context, orgID string) ([]*Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Team
	for _, t := range f.teams {
		if t.OrganizationID == orgID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeTeams) ListByUser(_ context.Context, userID string) ([]TeamRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []TeamRef
	for teamID, set := range f.members {
		if set[userID] {
			if t, ok := f.teams[teamID]; ok {
				out = append(out, TeamRef{ID: t.ID, Name: t.Name})
			}
		}
	}
	return out, nil
}

func (f *fakeTeams) Update(_ context.Context, team *Team) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.teams[team.ID]; !ok {
		return ErrNotFound
	}
	cp := *team
	f.teams[team.ID] = &cp
	return nil
}

func (f *fakeTeams) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.teams, id)
	delete(f.members, id)
	return nil
}

func (f *fakeTeams) Members(_ context.Context, teamID string) ([]*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*User
	for userID := range f.members[teamID] {
		if u, ok := f.users[userID]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeTeams) IsMember(_ context.Context, teamID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[teamID][userID], nil
}

func (f *fakeTeams) AddMember(_ context.Context, teamID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[teamID] == nil {
		f.members[teamID] = make(map[string]bool)
	}
	f.members[teamID][userID] = true
	return nil
}

func (f *fakeTeams) RemoveMember(_ context.Context, teamID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[teamID], userID)
	return nil
}

func (f *fakeTeams) ReplaceMembers(_ context.Context, teamID string, userIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		set[id] = true
	}
	f.members[teamID] = set
	return nil
}

// fakeMailer records deliveries and can be told to fail.
type fakeMailer struct {
	mu   sync.Mutex
	sent []string // links in delivery order
	to   string
	fail error
}

func (m *fakeMailer) SendMagicLink(_ context.Context, to, link string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.to = to
	m.sent = append(m.sent, link)
	return nil
}

func (m *fakeMailer) lastLink() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1]
}
