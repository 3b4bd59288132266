// Package store provides storage backends for clinic-bot.
//
// It includes an in-memory store for tests and single-instance deployments,
// plus SQLite and PostgreSQL backends for persistent bookings and transcripts.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ah3edsaad3-bit/clinic-bot/internal/models"
)

// Store persists bookings and conversation transcripts.
type Store interface {
	SaveBooking(ctx context.Context, booking models.Booking) error
	ListBookings(ctx context.Context) ([]models.Booking, error)
	CountBookingsSince(ctx context.Context, since time.Time) (int, error)
	AddTranscriptEntry(ctx context.Context, entry models.TranscriptEntry) error
	GetTranscript(ctx context.Context, userID string) ([]models.TranscriptEntry, error)
	Close() error
}

// Opts holds configuration options for database-backed stores.
type Opts struct {
	DSN string
}

// Option defines a configuration option for a store.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType reports which driver a DSN belongs to: "postgres" for
// PostgreSQL URLs or key=value connection strings, "sqlite3" otherwise.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// InMemoryStore keeps bookings and transcripts in process memory.
type InMemoryStore struct {
	mu          sync.Mutex
	bookings    []models.Booking
	transcripts map[string][]models.TranscriptEntry
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		transcripts: make(map[string][]models.TranscriptEntry),
	}
}

// SaveBooking appends a booking.
func (s *InMemoryStore) SaveBooking(_ context.Context, booking models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings = append(s.bookings, booking)
	return nil
}

// ListBookings returns all bookings, newest first.
func (s *InMemoryStore) ListBookings(_ context.Context) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.Booking(nil), s.bookings...)
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// CountBookingsSince returns how many bookings were created at or after the
// given time.
func (s *InMemoryStore) CountBookingsSince(_ context.Context, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, b := range s.bookings {
		if !b.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// AddTranscriptEntry appends one message to a user's transcript.
func (s *InMemoryStore) AddTranscriptEntry(_ context.Context, entry models.TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[entry.UserID] = append(s.transcripts[entry.UserID], entry)
	return nil
}

// GetTranscript returns a user's transcript in insertion order.
func (s *InMemoryStore) GetTranscript(_ context.Context, userID string) ([]models.TranscriptEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TranscriptEntry(nil), s.transcripts[userID]...), nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
