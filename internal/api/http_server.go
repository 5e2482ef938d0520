package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"bookflow/internal/backend"
	"bookflow/internal/config"
	"bookflow/internal/domain"
	"bookflow/internal/models"
	"bookflow/internal/service"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the public wizard session endpoints and the
// api-key-guarded staff endpoints.
type HTTPServer struct {
	cfg          config.APIConfig
	sessionsCfg  config.SessionsConfig
	wizard       *service.WizardService
	lifecycle    domain.LifecycleService
	availability domain.AvailabilityGateway
	states       domain.StateManager
	auth         *HTTPAuth
	server       *http.Server
	logger       zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	sessionsCfg config.SessionsConfig,
	wizard *service.WizardService,
	lifecycle domain.LifecycleService,
	availability domain.AvailabilityGateway,
	states domain.StateManager,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:          cfg,
		sessionsCfg:  sessionsCfg,
		wizard:       wizard,
		lifecycle:    lifecycle,
		availability: availability,
		states:       states,
		auth:         NewHTTPAuth(cfg),
		logger:       logger.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", srv.handleHealth)

	// Public session endpoints
	mux.HandleFunc("POST /api/v1/workspaces/{workspace}/sessions", srv.handleStartSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}", srv.handleGetSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/booking-type", srv.handleSelectBookingType)
	mux.HandleFunc("POST /api/v1/sessions/{id}/calendar", srv.handleMoveMonth)
	mux.HandleFunc("POST /api/v1/sessions/{id}/date", srv.handleSelectDate)
	mux.HandleFunc("POST /api/v1/sessions/{id}/slot", srv.handleSelectSlot)
	mux.HandleFunc("POST /api/v1/sessions/{id}/back", srv.handleBack)
	mux.HandleFunc("POST /api/v1/sessions/{id}/submit", srv.handleSubmit)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", srv.handleAbandonSession)

	// Staff endpoints behind api-key auth
	mux.Handle("POST /api/v1/workspaces/{workspace}/bookings/{id}/status",
		srv.auth.Wrap(http.HandlerFunc(srv.handleUpdateStatus)))
	mux.Handle("POST /api/v1/workspaces/{workspace}/bookings/{id}/send-confirmation",
		srv.auth.Wrap(http.HandlerFunc(srv.handleSendConfirmation)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           loggingMiddleware(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the configured root handler, for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleStartSession(w http.ResponseWriter, r *http.Request) {
	if !s.allowSessionRequest(w, r) {
		return
	}

	var body struct {
		Timezone string `json:"timezone"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := s.wizard.StartSession(r.Context(), r.PathValue("workspace"), body.Timezone)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.buildView(r.Context(), state))
}

func (s *HTTPServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.wizard.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.buildView(r.Context(), state))
}

func (s *HTTPServer) handleSelectBookingType(w http.ResponseWriter, r *http.Request) {
	if !s.allowSessionRequest(w, r) {
		return
	}

	var body struct {
		Slug string `json:"slug"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.Slug) == "" {
		writeError(w, http.StatusBadRequest, "slug is required")
		return
	}

	state, err := s.wizard.SelectBookingType(r.Context(), r.PathValue("id"), body.Slug)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.buildView(r.Context(), state))
}

func (s *HTTPServer) handleMoveMonth(w http.ResponseWriter, r *http.Request) {
	if !s.allowSessionRequest(w, r) {
		return
	}

	var body struct {
		Direction string `json:"direction"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Direction != "prev" && body.Direction != "next" {
		writeError(w, http.StatusBadRequest, "direction must be prev or next")
		return
	}

	state, err := s.wizard.MoveMonth(r.Context(), r.PathValue("id"), body.Direction)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.buildView(r.Context(), state))
}

func (s *HTTPServer) handleSelectDate(w http.ResponseWriter, r *http.Request) {
	if !s.allowSessionRequest(w, r) {
		return
	}

	var body struct {
		Date string `json:"date"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := time.Parse("2006-01-02", body.Date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	state, err := s.wizard.SelectDate(r.Context(), r.PathValue("id"), body.Date)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.buildView(r.Context(), state))
}

func (s *HTTPServer) handleSelectSlot(w http.ResponseWriter, r *http.Request) {
	if !s.allowSessionRequest(w, r) {
		return
	}

	var body struct {
		StartAt time.Time `json:"start_at"`
		EndAt   time.Time `json:"end_at"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.StartAt.IsZero() || body.EndAt.IsZero() {
		writeError(w, http.StatusBadRequest, "start_at and end_at are required")
		return
	}

	state, err := s.wizard.SelectSlot(r.Context(), r.PathValue("id"), body.StartAt, body.EndAt)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.buildView(r.Context(), state))
}

func (s *HTTPServer) handleBack(w http.ResponseWriter, r *http.Request) {
	if !s.allowSessionRequest(w, r) {
		return
	}

	state, err := s.wizard.Back(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.buildView(r.Context(), state))
}

func (s *HTTPServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if !s.allowSessionRequest(w, r) {
		return
	}

	var details models.ContactDetails
	if err := decodeBody(r, &details); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := s.wizard.Submit(r.Context(), r.PathValue("id"), details)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.buildView(r.Context(), state))
}

// handleAbandonSession discards the session snapshot immediately instead of
// letting it sit out the TTL. Idempotent: clearing an unknown session is a 204.
func (s *HTTPServer) handleAbandonSession(w http.ResponseWriter, r *http.Request) {
	if !s.allowSessionRequest(w, r) {
		return
	}

	if err := s.states.ClearSession(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status        string `json:"status"`
		CurrentStatus string `json:"current_status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Status == "" || body.CurrentStatus == "" {
		writeError(w, http.StatusBadRequest, "status and current_status are required")
		return
	}

	persisted, err := s.lifecycle.UpdateStatus(r.Context(),
		r.PathValue("workspace"), r.PathValue("id"),
		body.Status, body.CurrentStatus, bearerToken(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":                  r.PathValue("id"),
		"status":              persisted,
		"allowed_transitions": models.AllowedTransitions(persisted),
	})
}

func (s *HTTPServer) handleSendConfirmation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Booking models.Booking `json:"booking"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Booking.ID == "" {
		writeError(w, http.StatusBadRequest, "booking is required")
		return
	}

	attempts, err := s.lifecycle.SendConfirmation(r.Context(),
		r.PathValue("workspace"), body.Booking, bearerToken(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	views := make([]map[string]string, 0, len(attempts))
	for _, a := range attempts {
		v := map[string]string{
			"kind":    string(a.Kind),
			"outcome": string(a.Outcome),
		}
		if a.Err != nil {
			v["error"] = a.Err.Error()
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": views})
}

// sessionView is the step-shaped response every session endpoint returns.
type sessionView struct {
	SessionID    string                    `json:"session_id"`
	WorkspaceID  string                    `json:"workspace_id"`
	Step         string                    `json:"step"`
	Timezone     string                    `json:"timezone"`
	Error        string                    `json:"error,omitempty"`
	BookingTypes []models.BookingType      `json:"booking_types,omitempty"`
	BookingType  *models.BookingType       `json:"booking_type,omitempty"`
	Calendar     *models.CalendarMonth     `json:"calendar,omitempty"`
	SelectedDate string                    `json:"selected_date,omitempty"`
	Slots        []models.AvailabilitySlot `json:"slots,omitempty"`
	Details      *models.ContactDetails    `json:"details,omitempty"`
	Booking      *models.Booking           `json:"booking,omitempty"`
}

func (s *HTTPServer) buildView(ctx context.Context, state *models.WizardState) sessionView {
	view := sessionView{
		SessionID:   state.SessionID,
		WorkspaceID: state.WorkspaceID,
		Step:        state.Step,
		Timezone:    state.Timezone,
		Error:       state.LastError,
		BookingType: state.BookingType,
	}

	switch state.Step {
	case models.StepSelectType:
		types, err := s.availability.ListBookingTypes(ctx, state.WorkspaceID)
		if err != nil {
			s.logger.Error().Err(err).Str("session_id", state.SessionID).Msg("Failed to list booking types for view")
		} else {
			view.BookingTypes = types
		}
	case models.StepSelectDate:
		grid := s.wizard.CalendarView(state)
		view.Calendar = &grid
	case models.StepSelectSlot:
		view.SelectedDate = state.SelectedDate
		view.Slots = state.Slots
	case models.StepEnterDetails:
		view.SelectedDate = state.SelectedDate
		if state.SelectedSlot != nil {
			view.Slots = []models.AvailabilitySlot{*state.SelectedSlot}
		}
	case models.StepDone:
		view.Details = state.Details
		view.Booking = state.Booking
	}

	return view
}

// allowSessionRequest applies the per-client session rate limit backed by the
// state repository.
func (s *HTTPServer) allowSessionRequest(w http.ResponseWriter, r *http.Request) bool {
	if s.sessionsCfg.RateLimitRequests <= 0 {
		return true
	}

	key := r.PathValue("id")
	if key == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil || host == "" {
			host = clientKeyUnknown
		}
		key = host
	}

	window := time.Duration(s.sessionsCfg.RateLimitWindow) * time.Second
	allowed, err := s.states.CheckRateLimit(r.Context(), key, s.sessionsCfg.RateLimitRequests, window)
	if err == nil && !allowed {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return false
	}
	return true
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	var apiErr *backend.APIError

	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrWrongStep), errors.Is(err, service.ErrSessionDone),
		errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrUnknownBookingType), errors.Is(err, service.ErrMissingContact):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &apiErr):
		// Propagate the backend's verdict verbatim
		writeError(w, apiErr.StatusCode, apiErr.Error())
	case strings.Contains(err.Error(), "invalid contact details"):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, out any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
