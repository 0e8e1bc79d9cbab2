// Package database opens and migrates the GORM connections used by the SQL
// recording backend.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/marsgrid/ticksync/internal/model"
)

// ErrNoDumpPath is returned when a dump is requested without a target file.
var ErrNoDumpPath = errors.New("sqlite dump path not set")

// Recordings are written by one goroutine and read back once, so durability
// is traded for insert speed.
var sqlitePragmas = []string{
	"PRAGMA user_version = 1;",
	"PRAGMA journal_mode = MEMORY;",
	"PRAGMA synchronous = OFF;",
	"PRAGMA cache_size = -32000;",
	"PRAGMA temp_store = MEMORY;",
}

// PostgresSettings are read from the db.* configuration keys.
type PostgresSettings struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

// PostgresFromConfig reads the db.* keys.
func PostgresFromConfig() PostgresSettings {
	return PostgresSettings{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		User:     viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

func (s PostgresSettings) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		s.Host, s.Port, s.User, s.Password, s.Database)
}

// Manager owns one recording database connection.
type Manager struct {
	DB *gorm.DB
	// InMemory is set when SQLite runs without a backing file; such a
	// database is lost on Close unless DumpTo is called first.
	InMemory bool

	pool *sql.DB
	log  zerolog.Logger
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{log: log}
}

// Connect tries Postgres first when preferPostgres is set and falls back to
// SQLite at sqlitePath, or a private in-memory database when that is empty.
func (m *Manager) Connect(preferPostgres bool, sqlitePath string) error {
	if preferPostgres {
		err := m.adopt(openPostgres(PostgresFromConfig()))
		if err == nil {
			err = m.pool.Ping()
		}
		if err == nil {
			m.pool.SetMaxOpenConns(10)
			m.log.Info().Msg("Connected to Postgres")
			return nil
		}
		m.log.Error().Err(err).Msg("Postgres unavailable, falling back to SQLite")
		_ = m.Close()
		m.DB, m.pool = nil, nil
	}

	dsn := sqlitePath
	m.InMemory = sqlitePath == ""
	if m.InMemory {
		dsn = fmt.Sprintf("file:ticksync-%s?mode=memory&cache=shared", uuid.NewString())
	}
	if err := m.adopt(openSQLite(dsn)); err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}

	for _, pragma := range sqlitePragmas {
		if err := m.DB.Exec(pragma).Error; err != nil {
			return fmt.Errorf("sqlite %q: %w", pragma, err)
		}
	}
	if m.InMemory {
		m.log.Info().Msg("Using in-memory SQLite")
	} else {
		m.log.Info().Str("path", sqlitePath).Msg("Using SQLite file")
	}
	return nil
}

func (m *Manager) adopt(db *gorm.DB, err error) error {
	if err != nil {
		return err
	}
	pool, err := db.DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	m.DB, m.pool = db, pool
	return nil
}

func openPostgres(s PostgresSettings) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  s.DSN(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        10000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

func openSQLite(dsn string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// Dialect is "postgres" or "sqlite", empty before Connect.
func (m *Manager) Dialect() string {
	if m.DB == nil {
		return ""
	}
	return m.DB.Dialector.Name()
}

// Migrate creates or updates the recording tables.
func (m *Manager) Migrate() error {
	if err := m.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("migrate %s schema: %w", m.Dialect(), err)
	}
	m.log.Debug().Str("dialect", m.Dialect()).Int("tables", len(model.DatabaseModels)).Msg("Schema migrated")
	return nil
}

// DumpTo copies the whole database into a fresh SQLite file at path.
func (m *Manager) DumpTo(path string) error {
	began := time.Now()
	if err := VacuumInto(m.DB, path); err != nil {
		return err
	}
	m.log.Info().Str("path", path).Dur("took", time.Since(began)).Msg("Database dumped")
	return nil
}

func (m *Manager) Close() error {
	if m.pool == nil {
		return nil
	}
	return m.pool.Close()
}

// VacuumInto writes db to path with VACUUM INTO. An existing file at path
// is replaced, since VACUUM INTO refuses to overwrite.
func VacuumInto(db *gorm.DB, path string) error {
	if path == "" {
		return ErrNoDumpPath
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	quoted := "'" + strings.ReplaceAll(path, "'", "''") + "'"
	if err := db.Exec("VACUUM INTO " + quoted).Error; err != nil {
		return fmt.Errorf("vacuum into %s: %w", path, err)
	}
	return nil
}
