// Package store provides storage backends for clinic-bot.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/ah3edsaad3-bit/clinic-bot/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists bookings and transcripts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// SaveBooking inserts a booking.
func (s *PostgresStore) SaveBooking(ctx context.Context, b models.Booking) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bookings (id, user_id, name, phone, service, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		b.ID, b.UserID, b.Name, b.Phone, string(b.Service), b.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveBooking failed", "error", err, "bookingID", b.ID)
		return fmt.Errorf("failed to insert booking %s: %w", b.ID, err)
	}
	slog.Debug("PostgresStore SaveBooking succeeded", "bookingID", b.ID)
	return nil
}

// ListBookings returns all bookings, newest first.
func (s *PostgresStore) ListBookings(ctx context.Context) ([]models.Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, phone, service, created_at FROM bookings ORDER BY created_at DESC`)
	if err != nil {
		slog.Error("PostgresStore ListBookings query failed", "error", err)
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		var b models.Booking
		var service string
		if err := rows.Scan(&b.ID, &b.UserID, &b.Name, &b.Phone, &service, &b.CreatedAt); err != nil {
			slog.Error("PostgresStore ListBookings scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan booking row: %w", err)
		}
		b.Service = models.Service(service)
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate booking rows: %w", err)
	}
	slog.Debug("PostgresStore ListBookings succeeded", "count", len(bookings))
	return bookings, nil
}

// CountBookingsSince returns how many bookings were created at or after since.
func (s *PostgresStore) CountBookingsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE created_at >= $1`, since).Scan(&count)
	if err != nil {
		slog.Error("PostgresStore CountBookingsSince failed", "error", err)
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// AddTranscriptEntry appends one message to a user's transcript.
func (s *PostgresStore) AddTranscriptEntry(ctx context.Context, e models.TranscriptEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts (user_id, role, body, time) VALUES ($1, $2, $3, $4)`,
		e.UserID, e.Role, e.Body, e.Time)
	if err != nil {
		slog.Error("PostgresStore AddTranscriptEntry failed", "error", err, "userID", e.UserID)
		return fmt.Errorf("failed to insert transcript entry for %s: %w", e.UserID, err)
	}
	return nil
}

// GetTranscript returns a user's transcript in insertion order.
func (s *PostgresStore) GetTranscript(ctx context.Context, userID string) ([]models.TranscriptEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, role, body, time FROM transcripts WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		slog.Error("PostgresStore GetTranscript query failed", "error", err, "userID", userID)
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

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
