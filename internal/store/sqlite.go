// Package store provides storage backends for clinic-bot.
//
// This file implements the SQLite-backed store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ah3edsaad3-bit/clinic-bot/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists bookings and transcripts in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN. The DSN is a
// file path to the database; the parent directory is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveBooking inserts a booking.
func (s *SQLiteStore) SaveBooking(ctx context.Context, b models.Booking) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bookings (id, user_id, name, phone, service, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Name, b.Phone, string(b.Service), b.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveBooking failed", "error", err, "bookingID", b.ID)
		return fmt.Errorf("failed to insert booking %s: %w", b.ID, err)
	}
	slog.Debug("SQLiteStore SaveBooking succeeded", "bookingID", b.ID)
	return nil
}

// ListBookings returns all bookings, newest first.
func (s *SQLiteStore) ListBookings(ctx context.Context) ([]models.Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, phone, service, created_at FROM bookings ORDER BY created_at DESC`)
	if err != nil {
		slog.Error("SQLiteStore ListBookings query failed", "error", err)
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		var b models.Booking
		var service string
		if err := rows.Scan(&b.ID, &b.UserID, &b.Name, &b.Phone, &service, &b.CreatedAt); err != nil {
			slog.Error("SQLiteStore ListBookings scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan booking row: %w", err)
		}
		b.Service = models.Service(service)
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate booking rows: %w", err)
	}
	slog.Debug("SQLiteStore ListBookings succeeded", "count", len(bookings))
	return bookings, nil
}

// CountBookingsSince returns how many bookings were created at or after since.
func (s *SQLiteStore) CountBookingsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE created_at >= ?`, since).Scan(&count)
	if err != nil {
		slog.Error("SQLiteStore CountBookingsSince failed", "error", err)
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// AddTranscriptEntry appends one message to a user's transcript.
func (s *SQLiteStore) AddTranscriptEntry(ctx context.Context, e models.TranscriptEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts (user_id, role, body, time) VALUES (?, ?, ?, ?)`,
		e.UserID, e.Role, e.Body, e.Time)
	if err != nil {
		slog.Error("SQLiteStore AddTranscriptEntry failed", "error", err, "userID", e.UserID)
		return fmt.Errorf("failed to insert transcript entry for %s: %w", e.UserID, err)
	}
	return nil
}

// GetTranscript returns a user's transcript in insertion order.
func (s *SQLiteStore) GetTranscript(ctx context.Context, userID string) ([]models.TranscriptEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, role, body, time FROM transcripts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		slog.Error("SQLiteStore GetTranscript query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer rows.Close()

	var entries []models.TranscriptEntry
	for rows.Next() {
		var e models.TranscriptEntry
		if err := rows.Scan(&e.UserID, &e.Role, &e.Body, &e.Time); err != nil {
			return nil, fmt.Errorf("failed to scan transcript row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transcript rows: %w", err)
	}
	return entries, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
