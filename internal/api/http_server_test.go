package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bookflow/internal/config"
	"bookflow/internal/events"
	"bookflow/internal/metrics"
	"bookflow/internal/models"
	"bookflow/internal/notify"
	"bookflow/internal/repository"
	"bookflow/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAvailability struct {
	types []models.BookingType
	dates []string
	slots []models.AvailabilitySlot
}

func (s *stubAvailability) ListBookingTypes(ctx context.Context, workspaceID string) ([]models.BookingType, error) {
	return s.types, nil
}

func (s *stubAvailability) DateAvailability(ctx context.Context, workspaceID, slug, fromDate, toDate string) ([]string, error) {
	return s.dates, nil
}

func (s *stubAvailability) SlotAvailability(ctx context.Context, workspaceID, slug, day string) ([]models.AvailabilitySlot, error) {
	return s.slots, nil
}

type stubBookings struct {
	booking        *models.Booking
	formTemplateID string
	createCalls    int
	statusCalls    int
	updateErr      error
}

func (s *stubBookings) CreateBooking(ctx context.Context, workspaceID string, req models.CreateBookingRequest) (*models.Booking, error) {
	s.createCalls++
	b := *s.booking
	b.StartAt = req.StartAt
	b.EndAt = req.EndAt
	b.ContactName = req.FullName
	b.ContactEmail = req.Email
	b.ContactPhone = req.Phone
	return &b, nil
}

func (s *stubBookings) FormLink(ctx context.Context, workspaceID, bookingID string) (string, error) {
	return s.formTemplateID, nil
}

func (s *stubBookings) UpdateStatus(ctx context.Context, workspaceID, bookingID, status, bearerToken string) (string, error) {
	s.statusCalls++
	if s.updateErr != nil {
		return "", s.updateErr
	}
	return status, nil
}

type stubNotifier struct {
	confirmations int
	formLinks     int
}

func (s *stubNotifier) SendConfirmation(ctx context.Context, booking *models.Booking) []notify.Attempt {
	s.confirmations++
	email := notify.Attempt{Kind: notify.KindEmailConfirmation, Outcome: notify.OutcomeSkipped}
	if booking.ContactEmail != "" {
		email.Outcome = notify.OutcomeSent
	}
	sms := notify.Attempt{Kind: notify.KindSMSConfirmation, Outcome: notify.OutcomeSkipped}
	if booking.ContactPhone != "" {
		sms.Outcome = notify.OutcomeSent
	}
	return []notify.Attempt{email, sms}
}

func (s *stubNotifier) SendFormLink(ctx context.Context, workspaceID string, booking *models.Booking, formTemplateID string) notify.Attempt {
	s.formLinks++
	if formTemplateID == "" || booking.ContactEmail == "" {
		return notify.Attempt{Kind: notify.KindFormLinkEmail, Outcome: notify.OutcomeSkipped}
	}
	return notify.Attempt{Kind: notify.KindFormLinkEmail, Outcome: notify.OutcomeSent}
}

type serverFixture struct {
	srv      *HTTPServer
	bookings *stubBookings
	notifier *stubNotifier
	date     string
	start    time.Time
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	logger := zerolog.Nop()

	// A date safely in the future keeps the today-floor out of the way
	day := time.Now().UTC().AddDate(0, 0, 7)
	date := day.Format("2006-01-02")
	start := time.Date(day.Year(), day.Month(), day.Day(), 14, 0, 0, 0, time.UTC)

	availability := &stubAvailability{
		types: []models.BookingType{{ID: "bt-1", Name: "Consultation", Slug: "consultation", DurationMinutes: 60}},
		dates: []string{date},
		slots: []models.AvailabilitySlot{{SlotStart: start, SlotEnd: start.Add(time.Hour), IsAvailable: true}},
	}
	bookings := &stubBookings{
		booking:        &models.Booking{ID: "b-1", Status: models.StatusPending, ContactID: "c-1", BookingTypeSlug: "consultation"},
		formTemplateID: "tmpl-1",
	}
	notifier := &stubNotifier{}
	bus := events.NewEventBus()

	states := service.NewStateService(repository.NewMemoryStateRepository(time.Hour), &logger)
	pipeline := service.NewPipeline(bookings, notifier, bus, &logger)
	wizard := service.NewWizardService(states, availability, pipeline, bus, &logger)
	lifecycle := service.NewLifecycleService(bookings, notifier, bus, &logger)

	srv := NewHTTPServer(authConfig(), config.SessionsConfig{}, wizard, lifecycle, availability, states, &logger)
	return &serverFixture{srv: srv, bookings: bookings, notifier: notifier, date: date, start: start}
}

func (f *serverFixture) do(t *testing.T, method, path string, body any, setup func(*http.Request)) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if setup != nil {
		setup(req)
	}

	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	var parsed map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	}
	return rec, parsed
}

func staffHeaders(r *http.Request) {
	r.Header.Set("x-api-key", "staff-key")
	r.Header.Set("x-api-extra", "staff-extra")
	r.Header.Set("Authorization", "Bearer staff-token")
}

func TestSessionFlow(t *testing.T) {
	f := newServerFixture(t)

	rec, view := f.do(t, http.MethodPost, "/api/v1/workspaces/ws-1/sessions", map[string]string{"timezone": "UTC"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, models.StepSelectType, view["step"])
	assert.NotEmpty(t, view["booking_types"])

	sessionID := view["session_id"].(string)
	base := "/api/v1/sessions/" + sessionID

	rec, view = f.do(t, http.MethodPost, base+"/booking-type", map[string]string{"slug": "consultation"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StepSelectDate, view["step"])
	assert.NotNil(t, view["calendar"])

	rec, view = f.do(t, http.MethodPost, base+"/date", map[string]string{"date": f.date}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StepSelectSlot, view["step"])
	assert.NotEmpty(t, view["slots"])

	rec, view = f.do(t, http.MethodPost, base+"/slot", map[string]string{
		"start_at": f.start.Format(time.RFC3339),
		"end_at":   f.start.Add(time.Hour).Format(time.RFC3339),
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StepEnterDetails, view["step"])

	rec, view = f.do(t, http.MethodPost, base+"/submit", map[string]string{
		"full_name": "Jane Doe",
		"email":     "jane@example.com",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StepDone, view["step"])
	require.NotNil(t, view["booking"])
	assert.Equal(t, "b-1", view["booking"].(map[string]any)["id"])

	assert.Equal(t, 1, f.bookings.createCalls)
	assert.Equal(t, 1, f.notifier.confirmations)
	assert.Equal(t, 1, f.notifier.formLinks)

	// GET reflects the completed session
	rec, view = f.do(t, http.MethodGet, base, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StepDone, view["step"])
}

func TestSessionErrors(t *testing.T) {
	f := newServerFixture(t)

	t.Run("UnknownSession", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodGet, "/api/v1/sessions/missing", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("MissingSlug", func(t *testing.T) {
		rec, view := f.do(t, http.MethodPost, "/api/v1/workspaces/ws-1/sessions", nil, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		sessionID := view["session_id"].(string)

		rec, _ = f.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/booking-type", map[string]string{}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UnknownBookingType", func(t *testing.T) {
		rec, view := f.do(t, http.MethodPost, "/api/v1/workspaces/ws-1/sessions", nil, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		sessionID := view["session_id"].(string)

		rec, _ = f.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/booking-type", map[string]string{"slug": "massage"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("SubmitAtWrongStep", func(t *testing.T) {
		rec, view := f.do(t, http.MethodPost, "/api/v1/workspaces/ws-1/sessions", nil, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		sessionID := view["session_id"].(string)

		rec, _ = f.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/submit", map[string]string{
			"full_name": "Jane Doe",
			"email":     "jane@example.com",
		}, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("BadDateFormat", func(t *testing.T) {
		rec, view := f.do(t, http.MethodPost, "/api/v1/workspaces/ws-1/sessions", nil, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		sessionID := view["session_id"].(string)

		rec, _ = f.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/date", map[string]string{"date": "June 10"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSessionAbandon(t *testing.T) {
	f := newServerFixture(t)

	rec, view := f.do(t, http.MethodPost, "/api/v1/workspaces/ws-1/sessions", map[string]string{"timezone": "UTC"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	sessionID := view["session_id"].(string)

	rec, _ = f.do(t, http.MethodDelete, "/api/v1/sessions/"+sessionID, nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/sessions/"+sessionID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Clearing a session that never existed is still a no-op success
	rec, _ = f.do(t, http.MethodDelete, "/api/v1/sessions/never-existed", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequestMetricsUseRoutePattern(t *testing.T) {
	metrics.Register()
	f := newServerFixture(t)

	// Two distinct session ids must collapse into one endpoint label
	f.do(t, http.MethodGet, "/api/v1/sessions/aaaa-1111", nil, nil)
	f.do(t, http.MethodGet, "/api/v1/sessions/bbbb-2222", nil, nil)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	var endpoints []string
	for _, family := range families {
		if family.GetName() != "bookflow_http_requests_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "endpoint" {
					endpoints = append(endpoints, label.GetValue())
				}
			}
		}
	}

	assert.Contains(t, endpoints, "GET /api/v1/sessions/{id}")
	for _, endpoint := range endpoints {
		assert.NotContains(t, endpoint, "aaaa-1111")
		assert.NotContains(t, endpoint, "bbbb-2222")
	}
}

func TestStaffUpdateStatus(t *testing.T) {
	t.Run("RequiresAuth", func(t *testing.T) {
		f := newServerFixture(t)
		rec, _ := f.do(t, http.MethodPost, "/api/v1/workspaces/ws-1/bookings/b-1/status", map[string]string{
			"status":         models.StatusConfirmed,
			"current_status": models.StatusPending,
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("AllowedTransition", func(t *testing.T) {
		f := newServerFixture(t)
		rec, resp := f.do(t, http.MethodPost, "/api/v1/workspaces/ws-1/bookings/b-1/status", map[string]string{
			"status":         models.StatusConfirmed,
			"current_status": models.StatusPending,
		}, staffHeaders)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, models.StatusConfirmed, resp["status"])
		assert.ElementsMatch(t,
			[]any{models.StatusCompleted, models.StatusNoShow},
			resp["allowed_transitions"])
	})

	t.Run("TerminalStatusHidesControls", func(t *testing.T) {
		f := newServerFixture(t)
		rec, resp := f.do(t, http.MethodPost, "/api/v1/workspaces/ws-1/bookings/b-1/status", map[string]string{
			"status":         models.StatusCompleted,
			"current_status": models.StatusConfirmed,
		}, staffHeaders)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, models.StatusCompleted, resp["status"])
		assert.Nil(t, resp["allowed_transitions"])
	})

	t.Run("InvalidTransition", func(t *testing.T) {
		f := newServerFixture(t)
		rec, _ := f.do(t, http.MethodPost, "/api/v1/workspaces/ws-1/bookings/b-1/status", map[string]string{
			"status":         models.StatusConfirmed,
			"current_status": models.StatusCompleted,
		}, staffHeaders)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, 0, f.bookings.statusCalls)
	})
}

func TestStaffSendConfirmation(t *testing.T) {
	t.Run("PendingBookingGetsImplicitConfirm", func(t *testing.T) {
		f := newServerFixture(t)
		rec, resp := f.do(t, http.MethodPost, "/api/v1/workspaces/ws-1/bookings/b-1/send-confirmation", map[string]any{
			"booking": models.Booking{
				ID:           "b-1",
				Status:       models.StatusPending,
				ContactName:  "Jane Doe",
				ContactEmail: "jane@example.com",
			},
		}, staffHeaders)
		require.Equal(t, http.StatusOK, rec.Code)

		attempts := resp["attempts"].([]any)
		require.Len(t, attempts, 2)
		first := attempts[0].(map[string]any)
		assert.Equal(t, string(notify.KindEmailConfirmation), first["kind"])
		assert.Equal(t, string(notify.OutcomeSent), first["outcome"])

		assert.Equal(t, 1, f.bookings.statusCalls)
	})

	t.Run("ConfirmedBookingSkipsStatusWrite", func(t *testing.T) {
		f := newServerFixture(t)
		rec, _ := f.do(t, http.MethodPost, "/api/v1/workspaces/ws-1/bookings/b-1/send-confirmation", map[string]any{
			"booking": models.Booking{
				ID:           "b-1",
				Status:       models.StatusConfirmed,
				ContactEmail: "jane@example.com",
			},
		}, staffHeaders)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, f.bookings.statusCalls)
	})

	t.Run("ImplicitConfirmFailureStillOK", func(t *testing.T) {
		f := newServerFixture(t)
		f.bookings.updateErr = fmt.Errorf("backend down")

		rec, _ := f.do(t, http.MethodPost, "/api/v1/workspaces/ws-1/bookings/b-1/send-confirmation", map[string]any{
			"booking": models.Booking{
				ID:           "b-1",
				Status:       models.StatusPending,
				ContactEmail: "jane@example.com",
			},
		}, staffHeaders)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("MissingBooking", func(t *testing.T) {
		f := newServerFixture(t)
		rec, _ := f.do(t, http.MethodPost, "/api/v1/workspaces/ws-1/bookings/b-1/send-confirmation",
			map[string]any{}, staffHeaders)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	f := newServerFixture(t)
	rec, resp := f.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp["status"])
}
