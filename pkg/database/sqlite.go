package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// ErrClosed is returned by Handle.DB after Close.
var ErrClosed = errors.New("database handle closed")

// SQLiteConfig holds the embedded store settings.
type SQLiteConfig struct {
	Path         string        `env:"DATABASE_PATH" envDefault:"data/fittingroom.db"`
	BusyTimeout  time.Duration `env:"DATABASE_BUSY_TIMEOUT" envDefault:"5s"`
	MaxOpenConns int           `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"4"`
}

func (c SQLiteConfig) dsn() string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	if c.Path != MemoryPath {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + c.Path + "?" + q.Encode()
}

// OpenSQLite opens and pings the database at cfg.Path, creating its parent
// directory when needed.
func OpenSQLite(ctx context.Context, cfg SQLiteConfig) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite: empty database path")
	}
	if cfg.Path != MemoryPath {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen < 1 || cfg.Path == MemoryPath {
		// Every connection to :memory: is a separate database.
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", cfg.Path, err)
	}
	return db, nil
}

// Handle opens the embedded database on first use and keeps it open until
// Close. A failed open is not cached; the next call tries again.
type Handle struct {
	cfg    SQLiteConfig
	setup  func(context.Context, *sql.DB) error
	logger *slog.Logger

	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// NewHandle returns an unopened handle. setup, when non-nil, runs once right
// after the database is opened (typically migrations).
func NewHandle(cfg SQLiteConfig, setup func(context.Context, *sql.DB) error, logger *slog.Logger) *Handle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handle{cfg: cfg, setup: setup, logger: logger}
}

// Path is the configured database path.
func (h *Handle) Path() string { return h.cfg.Path }

// DB returns the open database, opening it if necessary.
func (h *Handle) DB(ctx context.Context) (*sql.DB, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	if h.db != nil {
		return h.db, nil
	}

	db, err := OpenSQLite(ctx, h.cfg)
	if err != nil {
		return nil, err
	}
	if h.setup != nil {
		if err := h.setup(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("prepare sqlite %s: %w", h.cfg.Path, err)
		}
	}

	h.logger.Info("sqlite database opened", slog.String("path", h.cfg.Path))
	h.db = db
	return db, nil
}

// Opened reports whether the database is currently open.
func (h *Handle) Opened() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.db != nil
}

// Close releases the database. Further DB calls fail with ErrClosed.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	return err
}
