package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func newMockStore(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPGStore(db), mock
}

func TestRedeemDeletesAndReturnsOwner(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`delete from magic_link_tokens where token=\$1 and expires_at > \$2 returning user_id`).
		WithArgs("tok-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("user-1"))

	userID, err := store.MagicLinkTokens(context.Background()).Redeem(context.Background(), "tok-1", now)
	if err != nil {
		t.Fatal(err)
	}
	if userID != "user-1" {
		t.Errorf("user id = %q", userID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRedeemExpiredReportsInstant(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expiredAt := now.Add(-time.Minute)

	mock.ExpectQuery(`delete from magic_link_tokens`).
		WithArgs("tok-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectQuery(`select expires_at from magic_link_tokens where token=\$1`).
		WithArgs("tok-1").
		WillReturnRows(sqlmock.NewRows([]string{"expires_at"}).AddRow(expiredAt))

	_, err := store.MagicLinkTokens(context.Background()).Redeem(context.Background(), "tok-1", now)
	var expired *TokenExpiredError
	if !errors.As(err, &expired) {
		t.Fatalf("err = %v, want TokenExpiredError", err)
	}
	if !expired.ExpiredAt.Equal(expiredAt) {
		t.Errorf("expired at %s, want %s", expired.ExpiredAt, expiredAt)
	}
}

func TestRedeemUnknownToken(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`delete from magic_link_tokens`).
		WithArgs("tok-x", now).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectQuery(`select expires_at from magic_link_tokens`).
		WithArgs("tok-x").
		WillReturnRows(sqlmock.NewRows([]string{"expires_at"}))

	_, err := store.MagicLinkTokens(context.Background()).Redeem(context.Background(), "tok-x", now)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateUserTranslatesUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`insert into users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err := store.Users(context.Background()).Create(context.Background(), &User{
		ID: "u1", Email: "dup@example.com",
	})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestFindValidRefreshTokenExcludesExpired(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`select user_id from refresh_tokens where token=\$1 and expires_at > \$2`).
		WithArgs("tok-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	_, err := store.RefreshTokens(context.Background()).FindValid(context.Background(), "tok-1", now)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteRefreshTokenIsIdempotent(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`delete from refresh_tokens where token=\$1`).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.RefreshTokens(context.Background()).Delete(context.Background(), "gone"); err != nil {
		t.Fatalf("deleting an absent token: %v", err)
	}
}

func TestCreateOrganizationWithOwnerIsTransactional(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`insert into organizations`).
		WithArgs("org-1", "Acme").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`update users set organization_id=\$1`).
		WithArgs("org-1", "user-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.Organizations(context.Background()).CreateWithOwner(context.Background(),
		&Organization{ID: "org-1", Name: "Acme"}, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCreateOrganizationRollsBackOnOwnerFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`insert into organizations`).
		WithArgs("org-1", "Acme").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`update users set organization_id=\$1`).
		WithArgs("org-1", "ghost").
		WillReturnError(errors.New("no such user"))
	mock.ExpectRollback()

	err := store.Organizations(context.Background()).CreateWithOwner(context.Background(),
		&Organization{ID: "org-1", Name: "Acme"}, "ghost")
	if err == nil {
		t.Fatal("owner failure did not abort the transaction")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestFindCurrentLicenseQuery(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`from licenses where organization_id=\$1 and valid_until > \$2\s+order by valid_until desc limit 1`).
		WithArgs("org-1", now).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "organization_id", "seats_limit", "valid_until", "created_at", "updated_at"}).
			AddRow("lic-1", "org-1", 10, now.Add(time.Hour), now, now))

	lic, err := store.Licenses(context.Background()).FindCurrent(context.Background(), "org-1", now)
	if err != nil {
		t.Fatal(err)
	}
	if lic.SeatsLimit != 10 {
		t.Errorf("seats = %d", lic.SeatsLimit)
	}
}

func TestReplaceTeamMembersIsTransactional(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`delete from team_members where team_id=\$1`).
		WithArgs("team-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`insert into team_members`).
		WithArgs("team-1", "u1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`insert into team_members`).
		WithArgs("team-1", "u2").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.Teams(context.Background()).ReplaceMembers(context.Background(),
		"team-1", []string{"u1", "u2"})
	if err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSetOrganizationDetachesWithEmptyID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`update users set organization_id=nullif\(\$1,''\)`).
		WithArgs("", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Users(context.Background()).SetOrganization(context.Background(), "user-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
