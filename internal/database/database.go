package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryPath selects an in-process database instead of a file.
const MemoryPath = ":memory:"

// schema is applied on every start. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS markers (
		id TEXT PRIMARY KEY NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS marker_images (
		id TEXT PRIMARY KEY NOT NULL,
		marker_id TEXT NOT NULL,
		uri TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (marker_id) REFERENCES markers (id) ON DELETE CASCADE
	);`,
	`CREATE INDEX IF NOT EXISTS idx_marker_images_marker_id ON marker_images (marker_id);`,
}

// Manager handles the database connection and schema.
type Manager struct {
	DB     *gorm.DB
	SqlDB  *sql.DB
	Path   string
	Logger zerolog.Logger
}

// NewManager creates a new database manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		Logger: log,
	}
}

// Connect opens the sqlite database at path. An empty path or MemoryPath
// uses an in-memory database. The pool is limited to one connection: the
// store has a single writer and an in-memory database lives only as long as
// its connection.
func (m *Manager) Connect(path string) error {
	db, err := m.GetSqliteDB(path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite db: %w", err)
	}
	m.DB = db
	m.Path = path

	m.SqlDB, err = m.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	m.SqlDB.SetMaxOpenConns(1)
	m.SqlDB.SetMaxIdleConns(1)
	m.SqlDB.SetConnMaxLifetime(0)

	if err := m.SqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}

	m.Logger.Info().Str("path", m.displayPath()).Msg("Connected to database")
	return nil
}

func (m *Manager) displayPath() string {
	if m.Path == "" || m.Path == MemoryPath {
		return MemoryPath
	}
	return m.Path
}

// DSN builds a glebarez/go-sqlite DSN for path with foreign keys enforced.
func DSN(path string) string {
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path == "" || path == MemoryPath {
		return "file::memory:?" + pragmas
	}
	return path + "?" + pragmas
}

// GetSqliteDB returns a connection to a SQLite database.
// If path is empty, uses an in-memory database.
func (m *Manager) GetSqliteDB(path string) (*gorm.DB, error) {
	if path != "" && path != MemoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("error creating db directory: %w", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(DSN(path)), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if path == "" || path == MemoryPath {
		m.Logger.Debug().Msg("Using local SQLite DB in memory")
	} else {
		m.Logger.Debug().Str("path", path).Msg("Using local SQLite DB")
	}

	// set PRAGMAS
	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA temp_store = MEMORY;",
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	return db, nil
}

// Setup creates the tables and indexes if they don't exist. Existing rows are
// never touched, so it is safe to call on every start.
func (m *Manager) Setup() error {
	if m.DB == nil {
		return fmt.Errorf("database not connected")
	}
	for _, stmt := range schema {
		if err := m.DB.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	m.Logger.Debug().Msg("Database setup complete")
	return nil
}

// ForeignKeysEnabled reports whether the connection enforces foreign keys.
func (m *Manager) ForeignKeysEnabled() (bool, error) {
	var enabled int
	if err := m.DB.Raw("PRAGMA foreign_keys;").Scan(&enabled).Error; err != nil {
		return false, err
	}
	return enabled == 1, nil
}

// DumpToDisk vacuums the database into a standalone file at path, replacing
// any existing file.
func (m *Manager) DumpToDisk(path string) error {
	if path == "" {
		return fmt.Errorf("backup file path not set")
	}

	// remove existing file if it exists
	if exists, err := os.Stat(path); err == nil && exists != nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("error removing existing DB file: %w", err)
		}
	}

	start := time.Now()
	if err := m.DB.Exec("VACUUM INTO ?", path).Error; err != nil {
		return fmt.Errorf("error dumping DB to disk: %w", err)
	}

	m.Logger.Debug().Dur("duration", time.Since(start)).Str("path", path).Msg("Dumped DB to disk")
	return nil
}

// Close releases the underlying connection.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	return m.SqlDB.Close()
}
