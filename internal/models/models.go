// Package models defines the core data structures for clinic-bot.
//
// It includes types for intents, clinic services, booking state and
// conversation records, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// Intent categorizes a coalesced user turn.
type Intent string

const (
	// IntentBooking indicates the user wants to book an appointment.
	IntentBooking Intent = "booking"
	// IntentPrice indicates a price or offer inquiry.
	IntentPrice Intent = "price"
	// IntentMedical indicates a symptom or medical complaint.
	IntentMedical Intent = "medical"
	// IntentComplaint indicates dissatisfaction or an escalation request.
	IntentComplaint Intent = "complaint"
	// IntentNormal is the default category for everything else.
	IntentNormal Intent = "normal"
)

// Service identifies a clinic service from the treatment catalog.
type Service string

const (
	ServiceZirconCrown     Service = "zircon_crown"
	ServicePorcelainCrown  Service = "porcelain_crown"
	ServiceCosmeticFilling Service = "cosmetic_filling"
	ServiceFilling         Service = "filling"
	ServiceExtraction      Service = "extraction"
	ServiceWhitening       Service = "whitening"
	ServiceCleaning        Service = "cleaning"
	ServiceOrthodontics    Service = "orthodontics"
	ServiceImplant         Service = "implant"
	// ServiceUnspecified is the sentinel returned when no catalog keyword
	// matches; callers carry forward the session's tracked service instead.
	ServiceUnspecified Service = "unspecified"
)

// BookingState tracks progress through the booking flow.
type BookingState string

const (
	// BookingIdle means no booking flow is active.
	BookingIdle BookingState = "idle"
	// BookingAwaitingName means the bot asked for the customer's full name.
	BookingAwaitingName BookingState = "awaiting_name"
	// BookingAwaitingPhone means the bot asked for the customer's phone number.
	BookingAwaitingPhone BookingState = "awaiting_phone"
	// BookingConfirmed is reached transiently when name and phone are
	// collected; the flow resets to BookingIdle immediately after dispatch.
	BookingConfirmed BookingState = "confirmed"
)

// Validation constants shared across modules.
const (
	// MaxHistoryTurns caps per-session conversation history (FIFO eviction).
	MaxHistoryTurns = 10
	// PhoneLength is the exact digit count of a valid local phone number.
	PhoneLength = 11
	// PhonePrefix is the required local trunk prefix.
	PhonePrefix = "07"
	// MaxNameLength bounds candidate customer names.
	MaxNameLength = 60
	// MaxTeethCount bounds quantity extraction for price estimates.
	MaxTeethCount = 32
)

// Error variables for better error handling and testability.
var (
	ErrEmptyRecipient  = errors.New("recipient cannot be empty")
	ErrEmptyBody       = errors.New("message body cannot be empty")
	ErrInvalidPhone    = errors.New("phone number must be 11 digits starting with 07")
	ErrSessionNotFound = errors.New("session not found")
)

// BookingDraft is a partially collected booking, valid only while a booking
// flow is active.
type BookingDraft struct {
	Name    string  `json:"name"`
	Phone   string  `json:"phone"`
	Service Service `json:"service"`
}

// Reset clears the draft so a confirmed booking cannot leak into the next one.
func (d *BookingDraft) Reset() {
	d.Name = ""
	d.Phone = ""
	d.Service = ""
}

// Booking is a confirmed appointment request ready for operator follow-up.
type Booking struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Service   Service   `json:"service"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation roles used in history and transcripts.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one (role, text) pair of conversation history supplied as
// context to the generative model.
type ChatTurn struct {
	Role    string `json:"role"` // RoleUser or RoleAssistant
	Content string `json:"content"`
}

// TranscriptEntry is one persisted message of a conversation transcript.
type TranscriptEntry struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Body   string `json:"body"`
	Time   int64  `json:"time"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and
// optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
