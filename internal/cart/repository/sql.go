package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/cart/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// SQLRepository stores carts in a single table with items as JSON.
// The same queries serve Postgres and SQLite.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
}

func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return db, nil
}

func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	return db, nil
}

func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

// RunMigrations applies the embedded schema for the repository dialect.
func (r *SQLRepository) RunMigrations() error {
	var (
		driver database.Driver
		err    error
	)
	switch r.dialect {
	case DialectPostgres:
		driver, err = postgres.WithInstance(r.db, &postgres.Config{
			MigrationsTable: "carts_schema_migrations",
		})
	case DialectSQLite:
		driver, err = sqlite.WithInstance(r.db, &sqlite.Config{})
	default:
		return fmt.Errorf("unsupported dialect %q", r.dialect)
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations/"+string(r.dialect))
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(r.dialect), driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (r *SQLRepository) FindByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	query := r.rebind(`
		SELECT id, user_id, items, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`)

	cart, err := scanCart(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return cart, nil
}

func (r *SQLRepository) Save(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	items := cart.Items
	if items == nil {
		items = []domain.CartItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cart items: %w", err)
	}

	id := cart.ID
	if id == "" {
		id = uuid.NewString()
	}

	query := r.rebind(`
		INSERT INTO carts (id, user_id, items, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET items = excluded.items, updated_at = excluded.updated_at
	`)

	_, err = r.db.ExecContext(ctx, query,
		id,
		cart.UserID,
		string(itemsJSON),
		r.timeArg(cart.CreatedAt),
		r.timeArg(cart.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}

	return r.FindByUser(ctx, cart.UserID)
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}

var placeholder = regexp.MustCompile(`\$\d+`)

// rebind rewrites $n placeholders for drivers that only take ?.
// Queries must use their placeholders in ascending order.
func (r *SQLRepository) rebind(query string) string {
	if r.dialect == DialectSQLite {
		return placeholder.ReplaceAllString(query, "?")
	}
	return query
}

func (r *SQLRepository) timeArg(t time.Time) any {
	if r.dialect == DialectSQLite {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC()
}

func scanCart(row *sql.Row) (*domain.Cart, error) {
	var (
		cart               domain.Cart
		itemsJSON          []byte
		createdAt, updated dbTime
	)
	if err := row.Scan(&cart.ID, &cart.UserID, &itemsJSON, &createdAt, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &cart.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart items: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	cart.CreatedAt = time.Time(createdAt)
	cart.UpdatedAt = time.Time(updated)
	return &cart, nil
}

// dbTime scans TIMESTAMPTZ values from Postgres and RFC3339 text from SQLite.
type dbTime time.Time

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*t = dbTime(v.UTC())
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into time", src)
	}
}

func (t *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = dbTime(parsed.UTC())
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}
