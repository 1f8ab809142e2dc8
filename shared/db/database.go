package db

import (
	"database/sql"
)

// Database owns the lifecycle of the content store connection.
type Database interface {
	Connect() error
	Close() error
	DB() *sql.DB
}
