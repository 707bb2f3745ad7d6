package migration

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	// Blank import required for PostgreSQL driver registration for migrations
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	// SQLite драйвер для локального хранилища клиента
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sqlite/*.sql
var sqliteFS embed.FS

// Migrator - интерфейс для самой библиотеки migrate.Migrate
type Migrator interface {
	Up() error
	Close() (error, error)
}

// MigrationEngine - фабрика для создания мигратора (чтобы не лезть в ФС и БД в тестах)
type MigrationEngine func(sourceURL, databaseURL string) (Migrator, error)

type Migration struct {
	sourceURL   string
	databaseURL string
	engine      MigrationEngine
}

func NewMigration(sourceURL, databaseURL string, engine MigrationEngine) *Migration {
	return &Migration{
		sourceURL:   sourceURL,
		databaseURL: databaseURL,
		engine:      engine,
	}
}

// NewPostgres - миграции сервера из каталога MIGRATIONS_PATH.
func NewPostgres(migrationsPath, databaseURI string) *Migration {
	return NewMigration("file://"+migrationsPath, databaseURI, DefaultEngine)
}

// NewSQLite - встроенные миграции локальной базы клиента.
func NewSQLite(dbPath string) *Migration {
	return NewMigration("iofs://sqlite", "sqlite3://"+dbPath, EmbeddedEngine(sqliteFS, "sqlite"))
}

// DefaultEngine - реальная реализация для продакшена
func DefaultEngine(sourceURL, databaseURL string) (Migrator, error) {
	return migrate.New(sourceURL, databaseURL)
}

// EmbeddedEngine читает миграции из fs.FS вместо файловой системы.
// sourceURL в этом случае игнорируется.
func EmbeddedEngine(fsys fs.FS, dir string) MigrationEngine {
	return func(_ string, databaseURL string) (Migrator, error) {
		src, err := iofs.New(fsys, dir)
		if err != nil {
			return nil, fmt.Errorf("open embedded migrations: %w", err)
		}
		return migrate.NewWithSourceInstance("iofs", src, databaseURL)
	}
}

func (mg *Migration) Up() (err error) {
	m, err := mg.engine(mg.sourceURL, mg.databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		serr, dberr := m.Close()
		if serr != nil {
			if err != nil {
				err = fmt.Errorf("%w; migration source error: %v", err, serr)
			} else {
				err = serr
			}
		}
		if dberr != nil {
			if err != nil {
				err = fmt.Errorf("%w; migration database error: %v", err, dberr)
			} else {
				err = dberr
			}
		}
	}()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w; migration up error", err)
	}
	return nil
}
