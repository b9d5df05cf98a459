package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestListStandardsFiltersAndPages(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery(`select count\(\*\) from standards s where .*ilike`).
		WithArgs("org-1", "%filtration%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(37))

	issued := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`order by s\.title asc, s\.id asc limit \$3 offset \$4`).
		WithArgs("org-1", "%filtration%", 24, 24).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "issue_date", "organizations", "topics"}).
			AddRow("std-1", "Sterile Filtration", issued,
				`[{"id":"org-1","name":"CDER"}]`, `[]`))

	store := NewPGStore(db)
	items, total, err := store.ListStandards(context.Background(), ListParams{
		OrganizationID: "org-1",
		Search:         "filtration",
		Page:           2,
		SortBy:         ParseSortColumn("title"),
		SortOrder:      ParseSortOrder("asc"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if total != 37 {
		t.Errorf("total = %d, want 37", total)
	}
	if len(items) != 1 || items[0].Title != "Sterile Filtration" {
		t.Fatalf("unexpected items: %+v", items)
	}
	if len(items[0].Organizations) != 1 || items[0].Organizations[0].Name != "CDER" {
		t.Errorf("organizations not decoded: %+v", items[0].Organizations)
	}
	if len(items[0].Topics) != 0 || items[0].Topics == nil {
		t.Errorf("empty topics should decode to empty slice, got %+v", items[0].Topics)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestFindStandardNotFound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery(`where s\.id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "issue_date", "organizations", "topics"}))

	_, err = NewPGStore(db).FindStandard(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
