package managedcollection

import (
	"context"
	"embed"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/jmoiron/sqlx"

	"github.com/ironbee-oss/rulecore/arena"
	rerrors "github.com/ironbee-oss/rulecore/errors"
	"github.com/ironbee-oss/rulecore/field"
	"github.com/ironbee-oss/rulecore/vars"
)

//go:embed migrations/*.sql
var postgresMigrations embed.FS

// PostgresTablePrefix is the name prefix a collection name must carry for
// the Postgres handler to accept it, e.g. "sql:blocklist" maps to the
// managed_collection_items rows for list_name="blocklist".
const PostgresTablePrefix = "sql:"

// PostgresHandler persists a managed collection as ordered rows in the
// managed_collection_items table, one row per list-field child.
type PostgresHandler struct {
	db *sqlx.DB
}

// NewPostgresHandler wraps an already-connected *sqlx.DB.
func NewPostgresHandler(db *sqlx.DB) *PostgresHandler {
	return &PostgresHandler{db: db}
}

// Migrate brings the handler's schema up to date using the embedded
// migrations, via golang-migrate with the postgres driver.
func Migrate(db *sqlx.DB) error {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return rerrors.Wrap(rerrors.KindEOTHER, "Migrate", "postgres driver instance", err)
	}
	src, err := iofs.New(postgresMigrations, "migrations")
	if err != nil {
		return rerrors.Wrap(rerrors.KindEOTHER, "Migrate", "embedded migration source", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return rerrors.Wrap(rerrors.KindEOTHER, "Migrate", "migrate instance", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return rerrors.Wrap(rerrors.KindEOTHER, "Migrate", "migrate up", err)
	}
	return nil
}

type postgresHandlerData struct {
	listName string
}

// Register installs this handler on engine under name.
func (h *PostgresHandler) Register(engine *Engine, name string) (*Handler, error) {
	return engine.Register(name, h.selection, h.populate, h.persist)
}

func (h *PostgresHandler) selection(name, params string) (bool, any, error) {
	if !strings.HasPrefix(name, PostgresTablePrefix) {
		return false, nil, nil
	}
	listName := strings.TrimPrefix(name, PostgresTablePrefix)
	if listName == "" {
		return false, nil, rerrors.EINVAL("PostgresHandler.selection", "empty list name after prefix: "+name)
	}
	return true, &postgresHandlerData{listName: listName}, nil
}

func (h *PostgresHandler) populate(ctx context.Context, ar *arena.Arena, handlerData any, name, params string, store *vars.Store, target *field.Field) error {
	data := handlerData.(*postgresHandlerData)

	var rows []struct {
		Value string `db:"value"`
	}
	err := h.db.SelectContext(ctx, &rows,
		`SELECT value FROM managed_collection_items WHERE list_name = $1 ORDER BY position`,
		data.listName)
	if err != nil {
		return rerrors.Wrap(rerrors.KindEOTHER, "PostgresHandler.populate", "select "+data.listName, err)
	}
	for _, r := range rows {
		target.Append(field.NewByteString("", r.Value))
	}
	return nil
}

func (h *PostgresHandler) persist(ctx context.Context, ar *arena.Arena, handlerData any, name string, store *vars.Store, target *field.Field) error {
	data := handlerData.(*postgresHandlerData)
	children, _ := target.List()

	tx, err := h.db.BeginTxx(ctx, nil)
	if err != nil {
		return rerrors.Wrap(rerrors.KindEOTHER, "PostgresHandler.persist", "begin tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM managed_collection_items WHERE list_name = $1`, data.listName); err != nil {
		return rerrors.Wrap(rerrors.KindEOTHER, "PostgresHandler.persist", "delete "+data.listName, err)
	}
	for i, c := range children {
		v, _ := c.String()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO managed_collection_items (list_name, position, value) VALUES ($1, $2, $3)`,
			data.listName, i, v); err != nil {
			return rerrors.Wrap(rerrors.KindEOTHER, "PostgresHandler.persist", "insert "+data.listName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return rerrors.Wrap(rerrors.KindEOTHER, "PostgresHandler.persist", "commit "+data.listName, err)
	}
	return nil
}
