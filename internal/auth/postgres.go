package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"lexora.io/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(context.Context) UserStore { return &userStore{db: s.db} }

func (s *PGStore) MagicLinkTokens(context.Context) MagicLinkTokenStore {
	return &magicLinkTokenStore{db: s.db}
}
func (s *PGStore) RefreshTokens(context.Context) RefreshTokenStore {
	return &refreshTokenStore{db: s.db}
}
func (s *PGStore) Sessions(context.Context) SessionStore { return &sessionStore{db: s.db} }
func (s *PGStore) Organizations(context.Context) OrganizationStore {
	return &orgStore{db: s.db}
}
func (s *PGStore) Licenses(context.Context) LicenseStore { return &licenseStore{db: s.db} }
func (s *PGStore) Teams(context.Context) TeamStore       { return &teamStore{db: s.db} }

// translateConstraint maps store-constraint violations to domain errors so
// raw constraint names never leak to clients.
func translateConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}

// User store ---------------------------------------------------------------

type userStore struct{ db *sql.DB }

const userColumns = `id, email, password_hash, first_name, last_name, organization_id,
	auth_type, google_id, microsoft_id, is_active, last_login, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var (
		u            User
		passwordHash sql.NullString
		firstName    sql.NullString
		lastName     sql.NullString
		orgID        sql.NullString
		googleID     sql.NullString
		microsoftID  sql.NullString
		lastLogin    sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &passwordHash, &firstName, &lastName, &orgID,
		&u.AuthType, &googleID, &microsoftID, &u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.PasswordHash = passwordHash.String
	u.FirstName = firstName.String
	u.LastName = lastName.String
	u.OrganizationID = orgID.String
	u.GoogleID = googleID.String
	u.MicrosoftID = microsoftID.String
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

func (s *userStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, password_hash, first_name, last_name, organization_id,
			auth_type, google_id, microsoft_id, is_active, last_login)
		 values($1,$2,nullif($3,''),nullif($4,''),nullif($5,''),nullif($6,''),$7,nullif($8,''),nullif($9,''),$10,$11)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.OrganizationID,
		u.AuthType, u.GoogleID, u.MicrosoftID, u.IsActive, u.LastLogin,
	)
	return translateConstraint(err)
}

func (s *userStore) Find(ctx context.Context, id string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id))
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email))
}

func (s *userStore) FindByExternalID(ctx context.Context, provider, externalID string) (*User, error) {
	var column string
	switch provider {
	case AuthTypeGoogle:
		column = "google_id"
	case AuthTypeMicrosoft:
		column = "microsoft_id"
	default:
		return nil, fmt.Errorf("auth: unknown provider %q", provider)
	}
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where `+column+`=$1`, externalID))
}

func (s *userStore) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update users set last_login=$1, updated_at=now() where id=$2`, at, userID)
	return err
}

func (s *userStore) Update(ctx context.Context, u *User) error {
	res, err := s.db.ExecContext(ctx,
		`update users set email=$1, password_hash=nullif($2,''), first_name=nullif($3,''),
			last_name=nullif($4,''), is_active=$5, updated_at=now() where id=$6`,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, u.IsActive, u.ID)
	if err != nil {
		return translateConstraint(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *userStore) SetOrganization(ctx context.Context, userID, orgID string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set organization_id=nullif($1,''), updated_at=now() where id=$2`, orgID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *userStore) ListByOrg(ctx context.Context, orgID string) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users where organization_id=$1 order by created_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *userStore) CountActiveByOrg(ctx context.Context, orgID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`select count(*) from users where organization_id=$1 and is_active`, orgID).Scan(&count)
	return count, err
}

func (s *userStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Magic link token store ---------------------------------------------------

type magicLinkTokenStore struct{ db *sql.DB }

func (s *magicLinkTokenStore) Create(ctx context.Context, tok *MagicLinkToken) error {
	if tok.ID == "" {
		tok.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into magic_link_tokens(id, user_id, token, expires_at) values($1,$2,$3,$4)`,
		tok.ID, tok.UserID, tok.Token, tok.ExpiresAt)
	return translateConstraint(err)
}

// Redeem deletes the row and returns the owner in one statement, so that two
// near-simultaneous redemptions of the same token cannot both succeed: the
// second observes zero rows.
func (s *magicLinkTokenStore) Redeem(ctx context.Context, token string, now time.Time) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx,
		`delete from magic_link_tokens where token=$1 and expires_at > $2 returning user_id`,
		token, now).Scan(&userID)
	if err == nil {
		return userID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	// Nothing was deleted. An expired row stays in place; distinguish it so
	// the caller can report the expiry instant.
	var expiresAt time.Time
	err = s.db.QueryRowContext(ctx,
		`select expires_at from magic_link_tokens where token=$1`, token).Scan(&expiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", ErrNotFound
	case err != nil:
		return "", err
	}
	return "", &TokenExpiredError{ExpiredAt: expiresAt}
}

// Refresh token store ------------------------------------------------------

type refreshTokenStore struct{ db *sql.DB }

func (s *refreshTokenStore) Create(ctx context.Context, tok *RefreshToken) error {
	if tok.ID == "" {
		tok.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into refresh_tokens(id, user_id, token, expires_at) values($1,$2,$3,$4)`,
		tok.ID, tok.UserID, tok.Token, tok.ExpiresAt)
	return translateConstraint(err)
}

func (s *refreshTokenStore) FindValid(ctx context.Context, token string, now time.Time) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx,
		`select user_id from refresh_tokens where token=$1 and expires_at > $2`,
		token, now).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return userID, err
}

func (s *refreshTokenStore) Delete(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `delete from refresh_tokens where token=$1`, token)
	return err
}

// Session store ------------------------------------------------------------

type sessionStore struct{ db *sql.DB }

func (s *sessionStore) Create(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx,
		`insert into session(sid, user_id, expires_at) values($1,$2,$3)`,
		sess.ID, sess.UserID, sess.ExpiresAt)
	return translateConstraint(err)
}

func (s *sessionStore) Find(ctx context.Context, id string, now time.Time) (*Session, error) {
	var sess Session
	sess.ID = id
	err := s.db.QueryRowContext(ctx,
		`select user_id, expires_at, created_at from session where sid=$1 and expires_at > $2`,
		id, now).Scan(&sess.UserID, &sess.ExpiresAt, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *sessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `delete from session where sid=$1`, id)
	return err
}

// Organization store -------------------------------------------------------

type orgStore struct{ db *sql.DB }

func (s *orgStore) CreateWithOwner(ctx context.Context, org *Organization, ownerUserID string) error {
	if org.ID == "" {
		org.ID = ids.New()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`insert into organizations(id, name) values($1,$2)`, org.ID, org.Name); err != nil {
		return translateConstraint(err)
	}
	res, err := tx.ExecContext(ctx,
		`update users set organization_id=$1, updated_at=now() where id=$2`, org.ID, ownerUserID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *orgStore) Find(ctx context.Context, id string) (*Organization, error) {
	var org Organization
	err := s.db.QueryRowContext(ctx,
		`select id, name, created_at, updated_at from organizations where id=$1`, id).
		Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (s *orgStore) Update(ctx context.Context, org *Organization) error {
	res, err := s.db.ExecContext(ctx,
		`update organizations set name=$1, updated_at=now() where id=$2`, org.Name, org.ID)
	if err != nil {
		return translateConstraint(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// License store ------------------------------------------------------------

type licenseStore struct{ db *sql.DB }

func (s *licenseStore) FindCurrent(ctx context.Context, orgID string, now time.Time) (*License, error) {
	var lic License
	err := s.db.QueryRowContext(ctx,
		`select id, organization_id, seats_limit, valid_until, created_at, updated_at
		 from licenses where organization_id=$1 and valid_until > $2
		 order by valid_until desc limit 1`,
		orgID, now).Scan(&lic.ID, &lic.OrganizationID, &lic.SeatsLimit, &lic.ValidUntil,
		&lic.CreatedAt, &lic.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lic, nil
}

// Team store ---------------------------------------------------------------

type teamStore struct{ db *sql.DB }

func (s *teamStore) Create(ctx context.Context, team *Team) error {
	if team.ID == "" {
		team.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into teams(id, organization_id, name) values($1,$2,$3)`,
		team.ID, team.OrganizationID, team.Name)
	return translateConstraint(err)
}

func (s *teamStore) Find(ctx context.Context, id string) (*Team, error) {
	var team Team
	err := s.db.QueryRowContext(ctx,
		`select id, organization_id, name, created_at, updated_at from teams where id=$1`, id).
		Scan(&team.ID, &team.OrganizationID, &team.Name, &team.CreatedAt, &team.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (s *teamStore) ListByOrg(ctx context.Context, orgID string) ([]*Team, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, organization_id, name, created_at, updated_at
		 from teams where organization_id=$1 order by created_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		var team Team
		if err := rows.Scan(&team.ID, &team.OrganizationID, &team.Name, &team.CreatedAt, &team.UpdatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, &team)
	}
	return teams, rows.Err()
}

func (s *teamStore) ListByUser(ctx context.Context, userID string) ([]TeamRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`select t.id, t.name from teams t
		 join team_members tm on tm.team_id = t.id
		 where tm.user_id=$1 order by t.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []TeamRef
	for rows.Next() {
		var ref TeamRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (s *teamStore) Update(ctx context.Context, team *Team) error {
	res, err := s.db.ExecContext(ctx,
		`update teams set name=$1, updated_at=now() where id=$2`, team.Name, team.ID)
	if err != nil {
		return translateConstraint(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *teamStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from teams where id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *teamStore) Members(ctx context.Context, teamID string) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+prefixedUserColumns("u")+` from users u
		 join team_members tm on tm.user_id = u.id
		 where tm.team_id=$1 order by u.created_at`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *teamStore) IsMember(ctx context.Context, teamID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from team_members where team_id=$1 and user_id=$2)`,
		teamID, userID).Scan(&exists)
	return exists, err
}

func (s *teamStore) AddMember(ctx context.Context, teamID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into team_members(team_id, user_id) values($1,$2) on conflict do nothing`,
		teamID, userID)
	return err
}

func (s *teamStore) RemoveMember(ctx context.Context, teamID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`delete from team_members where team_id=$1 and user_id=$2`, teamID, userID)
	return err
}

func (s *teamStore) ReplaceMembers(ctx context.Context, teamID string, userIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `delete from team_members where team_id=$1`, teamID); err != nil {
		return err
	}
	for _, userID := range userIDs {
		if _, err := tx.ExecContext(ctx,
			`insert into team_members(team_id, user_id) values($1,$2)`, teamID, userID); err != nil {
			return translateConstraint(err)
		}
	}
	return tx.Commit()
}

func prefixedUserColumns(alias string) string {
	return alias + `.id, ` + alias + `.email, ` + alias + `.password_hash, ` + alias + `.first_name, ` +
		alias + `.last_name, ` + alias + `.organization_id, ` + alias + `.auth_type, ` + alias + `.google_id, ` +
		alias + `.microsoft_id, ` + alias + `.is_active, ` + alias + `.last_login, ` + alias + `.created_at, ` +
		alias + `.updated_at`
}
