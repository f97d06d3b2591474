package storage

import (
	"context"
	"log/slog"
	"sync"
)

// Handle is a process-wide, lazily opened database connection.
// The first successful Get opens the database and later calls reuse it.
// A failed open is not remembered, so the next Get tries again.
type Handle struct {
	driver string
	dsn    string

	mu sync.Mutex
	db *DB
}

// NewHandle returns a Handle that will open driver/dsn on first use.
func NewHandle(driver, dsn string) *Handle {
	return &Handle{driver: driver, dsn: dsn}
}

// Get returns the shared connection, opening it if necessary.
func (h *Handle) Get(ctx context.Context) (*DB, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.db != nil {
		slog.Debug("Using existing database connection", "driver", h.driver)
		return h.db, nil
	}

	slog.Info("Connecting to database...", "driver", h.driver)
	db, err := Open(ctx, h.driver, h.dsn)
	if err != nil {
		slog.Error("Database connection failed", "driver", h.driver, "error", err)
		return nil, err
	}
	h.db = db
	slog.Info("Database connected", "driver", h.driver)
	return db, nil
}

// Close closes the connection if it was opened. The Handle can be reused
// afterwards and will reconnect on the next Get.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	return err
}
