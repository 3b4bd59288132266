package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ah3edsaad3-bit/clinic-bot/internal/models"
)

// rootHandler is a plain-text liveness check.
func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "clinic-bot is running")
}

// webhookHandler dispatches the Meta webhook: GET is the verification
// handshake, POST carries inbound events.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodGet:
		s.webhook.HandleVerification(w, r)
	case http.MethodPost:
		s.webhook.HandleInbound(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		slog.Warn("Server.webhookHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// healthHandler reports service health as JSON.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", map[string]int{
		"active_sessions": s.sessions.Len(),
	}))
}

// sessionsHandler lists the currently tracked sessions.
func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"count":    s.sessions.Len(),
		"user_ids": s.sessions.UserIDs(),
	}))
}

// bookingsHandler lists stored bookings, newest first.
func (s *Server) bookingsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	bookings, err := s.store.ListBookings(r.Context())
	if err != nil {
		slog.Error("Server.bookingsHandler: list failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list bookings"))
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(bookings))
}
