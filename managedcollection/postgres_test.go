package managedcollection

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/ironbee-oss/rulecore/arena"
	rerrors "github.com/ironbee-oss/rulecore/errors"
	"github.com/ironbee-oss/rulecore/field"
	"github.com/ironbee-oss/rulecore/vars"
)

func newMockHandler(t *testing.T) (*PostgresHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	db := sqlx.NewDb(mockDB, "postgres")
	return NewPostgresHandler(db), mock, func() { db.Close() }
}

func TestPostgresHandler_SelectionPrefix(t *testing.T) {
	h, _, closeFn := newMockHandler(t)
	defer closeFn()

	accept, data, err := h.selection("sql:blocklist", "")
	if err != nil {
		t.Fatalf("selection error: %v", err)
	}
	if !accept {
		t.Fatal("selection should accept sql:-prefixed names")
	}
	if data.(*postgresHandlerData).listName != "blocklist" {
		t.Errorf("listName = %q, want blocklist", data.(*postgresHandlerData).listName)
	}

	accept, _, err = h.selection("redis:blocklist", "")
	if err != nil {
		t.Fatalf("selection error: %v", err)
	}
	if accept {
		t.Error("selection should not accept non-sql-prefixed names")
	}
}

func TestPostgresHandler_PopulateAndPersist(t *testing.T) {
	h, mock, closeFn := newMockHandler(t)
	defer closeFn()

	mock.ExpectQuery("SELECT value FROM managed_collection_items").
		WithArgs("blocklist").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("1.2.3.4").AddRow("5.6.7.8"))

	cfg := vars.NewConfig()
	store := vars.NewStore(cfg)
	tx := NewTX(store)
	ar := arena.New()
	ctx := context.Background()

	engine := NewEngine()
	if _, err := h.Register(engine, "postgres"); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	coll, err := engine.Select("sql:blocklist", "")
	if err != nil {
		t.Fatalf("Select error: %v", err)
	}
	if err := tx.Populate(ctx, ar, coll); err != nil {
		t.Fatalf("Populate error: %v", err)
	}

	src, _ := cfg.Acquire(ar, "sql:blocklist")
	f, _ := src.Get(store)
	children, _ := f.List()
	if len(children) != 2 {
		t.Fatalf("len(children) = %d, want 2", len(children))
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM managed_collection_items").WithArgs("blocklist").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO managed_collection_items").WithArgs("blocklist", 0, "1.2.3.4").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO managed_collection_items").WithArgs("blocklist", 1, "5.6.7.8").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := tx.PersistAll(ctx, ar); err != nil {
		t.Fatalf("PersistAll error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresHandler_PersistRollsBackOnInsertFailure(t *testing.T) {
	h, mock, closeFn := newMockHandler(t)
	defer closeFn()

	cfg := vars.NewConfig()
	store := vars.NewStore(cfg)
	src, err := cfg.Register("sql:failing", vars.PhaseNone, vars.PhaseNone)
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	target, err := src.Initialize(store, field.TypeList)
	if err != nil {
		t.Fatalf("Initialize error: %v", err)
	}
	target.Append(field.NewByteString("", "x"))

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM managed_collection_items").WithArgs("failing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO managed_collection_items").WithArgs("failing", 0, "x").
		WillReturnError(rerrors.EOTHER("test", "simulated insert failure"))
	mock.ExpectRollback()

	ar := arena.New()
	ctx := context.Background()
	if err := h.persist(ctx, ar, &postgresHandlerData{listName: "failing"}, "sql:failing", store, target); err == nil {
		t.Fatal("expected persist error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
