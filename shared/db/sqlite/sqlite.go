package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/dfryer1193/sitecounts/shared/db"
	_ "modernc.org/sqlite"
)

const (
	defaultPath = "./sitecounts.db"

	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"

	busyTimeoutMillis = 10000
)

// connectionPragmas are applied by the driver to every pooled connection.
// busy_timeout goes first so the others wait on a locked database.
var connectionPragmas = []string{
	fmt.Sprintf("busy_timeout(%d)", busyTimeoutMillis),
	"foreign_keys(1)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"cache_size(-64000)",
}

// dataSourceName appends the connection pragmas to path. Transactions start
// with BEGIN IMMEDIATE so a writer waits for the lock instead of failing when
// it upgrades from a read.
func dataSourceName(path string) string {
	params := url.Values{}
	for _, pragma := range connectionPragmas {
		params.Add("_pragma", pragma)
	}
	params.Set("_txlock", "immediate")

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params.Encode()
}

type SQLiteConfig struct {
	Path string
}

// NewSQLiteConfig reads SQLITE_DB_PATH, falling back to ./sitecounts.db.
func NewSQLiteConfig() *SQLiteConfig {
	path := os.Getenv("SQLITE_DB_PATH")
	if path == "" {
		path = defaultPath
	}

	return &SQLiteConfig{
		Path: path,
	}
}

// SQLiteDB implements db.Database for SQLite
type SQLiteDB struct {
	dbPath string
	db     *sql.DB
}

func NewSQLiteDB(cfg *SQLiteConfig) db.Database {
	return &SQLiteDB{
		dbPath: cfg.Path,
	}
}

// Connect opens the database and runs pending migrations.
func (s *SQLiteDB) Connect() error {
	if s.db != nil {
		return fmt.Errorf("database already connected")
	}

	conn, err := sql.Open("sqlite", dataSourceName(s.dbPath))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: gets its own database.
	if s.dbPath == MemoryPath {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	s.db = conn
	return nil
}

func (s *SQLiteDB) Close() error {
	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteDB) DB() *sql.DB {
	return s.db
}
