package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/matheus3301/hanger/internal/bus"
	"go.uber.org/zap"
)

// DB is the shared document store backing every synchronized record.
// Committed writes are announced on the bus so live watchers can resnapshot.
type DB struct {
	*sql.DB
	bus    *bus.Bus
	logger *zap.Logger
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
// Transactions take the write lock up front so read-modify-write updates
// cannot deadlock against each other.
func Open(path string, b *bus.Bus, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if b == nil {
		b = bus.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{DB: db, bus: b, logger: logger}, nil
}

// Bus returns the bus change notifications are published on.
func (db *DB) Bus() *bus.Bus {
	return db.bus
}
