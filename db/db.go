package db

//nolint:golint,revive
import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/xbridge/bridge-coordinator/config"
)

const migrationsSource = "file://db/migrations"

type DB struct {
	cfg *config.DBConfig
	db  *sqlx.DB
}

func (db *DB) Migrate() error {
	m, err := migrate.New(migrationsSource, db.dbURL("pgx"))
	if err != nil {
		return fmt.Errorf("can't connect to postgres database: %w", err)
	}
	defer m.Close()
	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("can't apply postgres database migrations: %w", err)
	}
	return nil
}

func (db *DB) dbURL(scheme string) string {
	u := url.URL{
		Scheme: scheme,
		User:   url.UserPassword(db.cfg.User, db.cfg.Password),
		Host:   fmt.Sprintf("%s:%d", db.cfg.Host, db.cfg.Port),
		Path:   db.cfg.DB,
	}
	return u.String()
}

func NewDB(cfg *config.DBConfig) (*DB, error) {
	db := &DB{
		cfg: cfg,
	}
	conn, err := sqlx.ConnectContext(context.Background(), "pgx", db.dbURL("postgres"))
	if err != nil {
		return nil, fmt.Errorf("can't connect to postgres database: %w", err)
	}
	conn.SetMaxIdleConns(3)
	conn.SetMaxOpenConns(10)
	db.db = conn
	return db, nil
}

func ConnectToDBAndMigrate(cfg *config.DBConfig) (*DB, error) {
	db, err := NewDB(cfg)
	if err != nil {
		return nil, err
	}
	err = db.Migrate()
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	defer ObserveDuration(getCurrentFuncName(2))()
	return db.db.ExecContext(ctx, query, args...)
}

// ExecAffected runs a conditional write and reports how many rows it touched.
func (db *DB) ExecAffected(ctx context.Context, query string, args ...interface{}) (int64, error) {
	defer ObserveDuration(getCurrentFuncName(2))()
	res, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (db *DB) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	defer ObserveDuration(getCurrentFuncName(2))()
	err := db.db.GetContext(ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (db *DB) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	defer ObserveDuration(getCurrentFuncName(2))()
	return db.db.SelectContext(ctx, dest, query, args...)
}

func getCurrentFuncName(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	details := runtime.FuncForPC(pc)
	if details == nil {
		return "unknown"
	}
	name := details.Name()
	name = name[strings.LastIndex(name, ".")+1:]
	name = strings.TrimPrefix(name, "(*")
	name = strings.Replace(name, ")", "", 1)
	return name
}
