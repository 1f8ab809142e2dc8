package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dfryer1193/sitecounts/shared/db"
)

func TestNewSQLiteConfig(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     string
	}{
		{
			name:     "env variable",
			envValue: "/tmp/env.db",
			want:     "/tmp/env.db",
		},
		{
			name: "default path",
			want: "./sitecounts.db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("SQLITE_DB_PATH", tt.envValue)
			} else {
				os.Unsetenv("SQLITE_DB_PATH")
			}

			cfg := NewSQLiteConfig()
			if cfg.Path != tt.want {
				t.Errorf("Path = %q, want %q", cfg.Path, tt.want)
			}

			sqliteDB, ok := NewSQLiteDB(cfg).(*SQLiteDB)
			if !ok {
				t.Fatal("NewSQLiteDB did not return *SQLiteDB")
			}
			if sqliteDB.dbPath != tt.want {
				t.Errorf("dbPath = %q, want %q", sqliteDB.dbPath, tt.want)
			}
		})
	}
}

func TestSQLiteDB_ConnectTwice(t *testing.T) {
	database := NewSQLiteDB(&SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err := database.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer database.Close()

	if err := database.Connect(); err == nil {
		t.Error("Expected error connecting an already connected database")
	}
}

func TestSQLiteDB_CloseWithoutConnect(t *testing.T) {
	database := NewSQLiteDB(&SQLiteConfig{Path: MemoryPath})
	if err := database.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if database.DB() != nil {
		t.Error("DB() should be nil before Connect")
	}
}

func TestSQLiteDB_Memory(t *testing.T) {
	database := NewSQLiteDB(&SQLiteConfig{Path: MemoryPath})
	if err := database.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer database.Close()

	var count int
	err := database.DB().QueryRow("SELECT COUNT(*) FROM post_types").Scan(&count)
	if err != nil {
		t.Fatalf("Failed to query post_types: %v", err)
	}
	if count != 5 {
		t.Errorf("seeded post types = %d, want 5", count)
	}
}

func TestSQLiteDB_InterfaceCompliance(t *testing.T) {
	var _ db.Database = (*SQLiteDB)(nil)
}

func TestDataSourceName(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantPrefix string
	}{
		{name: "file path", path: "/tmp/site.db", wantPrefix: "/tmp/site.db?"},
		{name: "memory", path: MemoryPath, wantPrefix: ":memory:?"},
		{name: "existing query", path: "file:site.db?mode=rwc", wantPrefix: "file:site.db?mode=rwc&"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dataSourceName(tt.path)
			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Errorf("dataSourceName(%q) = %q, want prefix %q", tt.path, got, tt.wantPrefix)
			}
			for _, want := range []string{"_pragma=busy_timeout%2810000%29", "_pragma=foreign_keys%281%29", "_txlock=immediate"} {
				if !strings.Contains(got, want) {
					t.Errorf("dataSourceName(%q) = %q, missing %q", tt.path, got, want)
				}
			}
		})
	}
}

// Pragmas must hold on every pooled connection, not only the first one.
func TestSQLiteDB_PragmasOnEveryConnection(t *testing.T) {
	database := NewSQLiteDB(&SQLiteConfig{Path: filepath.Join(t.TempDir(), "pool.db")})
	if err := database.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	var conns []*sql.Conn
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	for i := 0; i < 4; i++ {
		c, err := database.DB().Conn(ctx)
		if err != nil {
			t.Fatalf("Conn() error = %v", err)
		}
		conns = append(conns, c)

		var foreignKeys, busyTimeout int
		if err := c.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
			t.Fatalf("PRAGMA foreign_keys error = %v", err)
		}
		if err := c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
			t.Fatalf("PRAGMA busy_timeout error = %v", err)
		}
		if foreignKeys != 1 {
			t.Errorf("connection %d: foreign_keys = %d, want 1", i, foreignKeys)
		}
		if busyTimeout != busyTimeoutMillis {
			t.Errorf("connection %d: busy_timeout = %d, want %d", i, busyTimeout, busyTimeoutMillis)
		}
	}
}
