package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/smallbiznis/lubeqc/pkg/db"
)

//go:embed migrations
var embeddedMigrations embed.FS

// RunMigrations applies the embedded schema for the given backend type.
func RunMigrations(conn *sql.DB, dbType string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}

	dir, driver, err := driverFor(conn, dbType)
	if err != nil {
		return err
	}

	sub, err := fs.Sub(embeddedMigrations, "migrations/"+dir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, dir, driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB.
	return nil
}

func driverFor(conn *sql.DB, dbType string) (string, database.Driver, error) {
	var (
		dir    string
		driver database.Driver
		err    error
	)
	switch dbType {
	case db.TypePostgres:
		dir = "postgres"
		driver, err = postgres.WithInstance(conn, &postgres.Config{})
	case db.TypeMySQL:
		dir = "mysql"
		driver, err = mysql.WithInstance(conn, &mysql.Config{})
	case db.TypeSQLite, db.TypeSQLite3, "":
		dir = "sqlite"
		driver, err = sqlite3.WithInstance(conn, &sqlite3.Config{})
	default:
		return "", nil, fmt.Errorf("unsupported %s type", dbType)
	}
	if err != nil {
		return "", nil, fmt.Errorf("create migration driver: %w", err)
	}
	return dir, driver, nil
}
