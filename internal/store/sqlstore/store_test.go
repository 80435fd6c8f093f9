// internal/store/sqlstore/store_test.go
//
// sqlmock tests pin the exact SQL; the SQLite test runs the real thing in
// memory.
//
// Run: go test ./internal/store/sqlstore -v

package sqlstore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/relay/internal/database"
	"github.com/yanizio/relay/internal/store"
)

func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s := New(sqlx.NewDb(db, "mysql"), database.MySQL)
	s.newID = func() string { return "fixed-id" }
	s.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return s, mock
}

func TestCreateInsertsJSON(t *testing.T) {
	s, mock := mockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(qInsert)).
		WithArgs("users", "fixed-id", sqlmock.AnyArg(), "2026-03-01T09:00:00Z", "2026-03-01T09:00:00Z").
		WillReturnResult(sqlmock.NewResult(0, 1))

	d, err := s.Collection("users").Create(context.Background(), store.Document{"name": "Ana"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.ID() != "fixed-id" || d["name"] != "Ana" {
		t.Fatalf("unexpected doc: %#v", d)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestFindByIDMissingIsNotFoundEveryTime(t *testing.T) {
	s, mock := mockStore(t)
	for i := 0; i < 2; i++ {
		mock.ExpectQuery(regexp.QuoteMeta(qByID)).
			WithArgs("users", "gone").
			WillReturnRows(sqlmock.NewRows([]string{"body"}))
	}

	users := s.Collection("users")
	for i := 0; i < 2; i++ {
		if _, err := users.FindByID(context.Background(), "gone"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("lookup %d: want ErrNotFound, got %v", i, err)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestDeleteReadsThenDeletes(t *testing.T) {
	s, mock := mockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(qByID)).
		WithArgs("users", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow(`{"id":"u1","name":"Ana"}`))
	mock.ExpectExec(regexp.QuoteMeta(qDelete)).
		WithArgs("users", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	d, err := s.Collection("users").Delete(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if d["name"] != "Ana" {
		t.Fatalf("unexpected doc: %#v", d)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestUpdateMissingRollsBack(t *testing.T) {
	s, mock := mockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(qByID)).
		WithArgs("users", "gone").
		WillReturnRows(sqlmock.NewRows([]string{"body"}))
	mock.ExpectRollback()

	_, err := s.Collection("users").Update(context.Background(), "gone", store.Document{"name": "x"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestInsertManyFailureReportsNothingWritten(t *testing.T) {
	s, mock := mockStore(t)
	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(qInsert))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	n, err := s.Collection("users").InsertMany(context.Background(), []store.Document{
		{"name": "Ana"}, {"name": "Bea"}, {"name": "Cy"},
	})
	if err == nil {
		t.Fatalf("want insert error")
	}
	if n != 0 {
		t.Fatalf("rolled back batch reported %d written", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	db, err := database.Open(database.SQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s := New(db, database.SQLite)
	defer s.Close()

	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	users := s.Collection("users")
	n, err := users.InsertMany(ctx, []store.Document{
		{"name": "Ana", "city": "Delhi", "age": 31},
		{"name": "Raj", "city": "Delhi", "age": 45},
		{"name": "Lee", "city": "London", "age": 19},
	})
	if err != nil || n != 3 {
		t.Fatalf("InsertMany = %d, %v", n, err)
	}

	delhi, err := users.Find(ctx, store.Filter{"city": "Delhi"})
	if err != nil || len(delhi) != 2 {
		t.Fatalf("Find = %d docs, %v", len(delhi), err)
	}

	id := delhi[0].ID()
	upd, err := users.Update(ctx, id, store.Document{"age": 32})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if upd["age"] != 32 {
		t.Fatalf("age = %v", upd["age"])
	}
	got, _ := users.FindByID(ctx, id)
	if got["age"] != float64(32) {
		t.Fatalf("stored age = %#v", got["age"])
	}

	groups, err := store.GroupBy(ctx, s, "users", store.GroupSpec{
		MatchField: "age", MatchAbove: 20, GroupField: "city", AvgField: "age",
	})
	if err != nil || len(groups) != 1 || groups[0].Key != "Delhi" || groups[0].Count != 2 {
		t.Fatalf("groups = %+v, %v", groups, err)
	}

	if _, err := users.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := users.FindByID(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("after delete: %v", err)
	}

	removed, err := users.DeleteMany(ctx, nil)
	if err != nil || removed != 2 {
		t.Fatalf("DeleteMany = %d, %v", removed, err)
	}
}
