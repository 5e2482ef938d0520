package service

import (
	"context"
	"fmt"
	"time"

	"bookflow/internal/domain"
	"bookflow/internal/events"
	"bookflow/internal/metrics"
	"bookflow/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WizardService drives the public booking flow:
// type -> date -> slot -> details -> done.
//
// Selection problems the customer can fix (unavailable date, stale slot,
// failed availability fetch) are written to the state's LastError overlay and
// do not move the step. Fatal problems (missing session, wrong step, failed
// booking creation) come back as errors.
type WizardService struct {
	states       domain.StateManager
	availability domain.AvailabilityGateway
	pipeline     *Pipeline
	eventBus     domain.EventPublisher
	validate     *validator.Validate
	logger       zerolog.Logger

	now func() time.Time
}

func NewWizardService(
	states domain.StateManager,
	availability domain.AvailabilityGateway,
	pipeline *Pipeline,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *WizardService {
	return &WizardService{
		states:       states,
		availability: availability,
		pipeline:     pipeline,
		eventBus:     eventBus,
		validate:     validator.New(),
		logger:       logger.With().Str("component", "wizard").Logger(),
		now:          time.Now,
	}
}

// StartSession creates a fresh session at the type step. An invalid timezone
// falls back to the default rather than failing the session.
func (s *WizardService) StartSession(ctx context.Context, workspaceID, timezone string) (*models.WizardState, error) {
	if timezone == "" {
		timezone = models.DefaultTimezone
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		s.logger.Warn().Str("timezone", timezone).Msg("Unknown timezone, falling back to default")
		timezone = models.DefaultTimezone
	}

	now := s.now()
	state := &models.WizardState{
		SessionID:   uuid.NewString(),
		WorkspaceID: workspaceID,
		Step:        models.StepSelectType,
		Timezone:    timezone,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.states.SaveSession(ctx, state); err != nil {
		return nil, err
	}

	metrics.IncSessionStarted()
	s.logger.Info().
		Str("session_id", state.SessionID).
		Str("workspace_id", workspaceID).
		Str("timezone", timezone).
		Msg("Wizard session started")

	return state, nil
}

func (s *WizardService) GetSession(ctx context.Context, sessionID string) (*models.WizardState, error) {
	return s.load(ctx, sessionID)
}

// SelectBookingType picks the service and moves to the date step. Any prior
// date/slot selection is discarded and the calendar cursor resets to the
// current month in the session's timezone.
func (s *WizardService) SelectBookingType(ctx context.Context, sessionID, slug string) (*models.WizardState, error) {
	state, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.Step == models.StepDone {
		return nil, ErrSessionDone
	}

	types, err := s.availability.ListBookingTypes(ctx, state.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list booking types: %w", err)
	}

	var selected *models.BookingType
	for i := range types {
		if types[i].Slug == slug {
			selected = &types[i]
			break
		}
	}
	if selected == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBookingType, slug)
	}

	today := s.now().In(state.Location())
	state.BookingType = selected
	state.CalendarYear = today.Year()
	state.CalendarMonth = int(today.Month())
	state.SelectedDate = ""
	state.Slots = nil
	state.SelectedSlot = nil
	state.Step = models.StepSelectDate
	state.LastError = ""

	s.refreshAvailability(ctx, state)

	if err := s.states.SaveSession(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// MoveMonth shifts the calendar cursor and re-queries availability. The step
// stays at date.
func (s *WizardService) MoveMonth(ctx context.Context, sessionID, direction string) (*models.WizardState, error) {
	state, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.Step != models.StepSelectDate {
		return nil, ErrWrongStep
	}

	var delta int
	switch direction {
	case "prev":
		delta = -1
	case "next":
		delta = 1
	default:
		return nil, fmt.Errorf("unknown calendar direction %q", direction)
	}

	state.CalendarYear, state.CalendarMonth = models.ShiftMonth(state.CalendarYear, state.CalendarMonth, delta)
	state.LastError = ""
	s.refreshAvailability(ctx, state)

	if err := s.states.SaveSession(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// SelectDate confirms an available, not-past date and fetches its slots.
func (s *WizardService) SelectDate(ctx context.Context, sessionID, date string) (*models.WizardState, error) {
	state, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.Step != models.StepSelectDate {
		return nil, ErrWrongStep
	}

	// Civil YYYY-MM-DD dates compare correctly as strings.
	today := state.Today(s.now())
	switch {
	case date < today:
		return s.overlay(ctx, state, ErrPastDate)
	case !state.DateAvailable(date):
		return s.overlay(ctx, state, ErrDateNotAvailable)
	}

	slots, err := s.availability.SlotAvailability(ctx, state.WorkspaceID, state.BookingType.Slug, date)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("Slot availability fetch failed")
		return s.overlay(ctx, state, fmt.Errorf("failed to load time slots"))
	}

	state.SelectedDate = date
	state.Slots = slots
	state.SelectedSlot = nil
	state.Step = models.StepSelectSlot
	state.LastError = ""

	if err := s.states.SaveSession(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// SelectSlot picks a fetched, still-available slot and advances to details.
func (s *WizardService) SelectSlot(ctx context.Context, sessionID string, start, end time.Time) (*models.WizardState, error) {
	state, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.Step != models.StepSelectSlot {
		return nil, ErrWrongStep
	}

	slot := state.FindSlot(start, end)
	if slot == nil || !slot.IsAvailable {
		return s.overlay(ctx, state, ErrSlotNotAvailable)
	}

	state.SelectedSlot = slot
	state.Step = models.StepEnterDetails
	state.LastError = ""

	if err := s.states.SaveSession(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Back steps the wizard one step backwards, discarding only what the
// abandoned step had chosen.
func (s *WizardService) Back(ctx context.Context, sessionID string) (*models.WizardState, error) {
	state, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch state.Step {
	case models.StepEnterDetails:
		state.SelectedSlot = nil
		state.Step = models.StepSelectSlot
	case models.StepSelectSlot:
		state.SelectedDate = ""
		state.Slots = nil
		state.Step = models.StepSelectDate
	case models.StepSelectDate:
		state.BookingType = nil
		state.AvailableDates = nil
		state.CalendarYear = 0
		state.CalendarMonth = 0
		state.Step = models.StepSelectType
	case models.StepDone:
		return nil, ErrSessionDone
	default:
		return nil, ErrWrongStep
	}
	state.LastError = ""

	if err := s.states.SaveSession(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Submit validates the contact details, runs the booking pipeline and, on
// success, completes the session. Creation failures are fatal and leave the
// wizard at the details step.
func (s *WizardService) Submit(ctx context.Context, sessionID string, details models.ContactDetails) (*models.WizardState, error) {
	state, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.Step != models.StepEnterDetails {
		return nil, ErrWrongStep
	}
	if state.SelectedSlot == nil || state.BookingType == nil {
		return nil, ErrWrongStep
	}

	details = details.Normalize()
	if !details.HasContactChannel() {
		return nil, ErrMissingContact
	}
	if err := s.validate.Struct(details); err != nil {
		return nil, fmt.Errorf("invalid contact details: %w", err)
	}

	start := state.SelectedSlot.SlotStart
	end := state.SelectedSlot.SlotEnd
	if !end.After(start) {
		return nil, fmt.Errorf("slot end must be after start")
	}

	req := models.CreateBookingRequest{
		BookingTypeSlug: state.BookingType.Slug,
		StartAt:         start.UTC(),
		EndAt:           end.UTC(),
		FullName:        details.FullName,
		Email:           details.Email,
		Phone:           details.Phone,
	}

	booking, _, err := s.pipeline.Run(ctx, state.WorkspaceID, state.SessionID, req)
	if err != nil {
		return nil, err
	}

	state.Details = &details
	state.Booking = booking
	state.Step = models.StepDone
	state.LastError = ""

	if err := s.states.SaveSession(ctx, state); err != nil {
		// The booking exists; a failed snapshot write must not fail the flow.
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to persist completed session")
	}

	_ = s.eventBus.PublishJSON(events.EventWizardCompleted, events.BookingEventPayload{
		BookingID:       booking.ID,
		WorkspaceID:     state.WorkspaceID,
		BookingTypeSlug: booking.BookingTypeSlug,
		Status:          booking.Status,
		StartAt:         booking.StartAt,
		EndAt:           booking.EndAt,
		ContactName:     booking.ContactName,
		SessionID:       state.SessionID,
	})

	return state, nil
}

// CalendarView renders the month grid for the session's current cursor.
func (s *WizardService) CalendarView(state *models.WizardState) models.CalendarMonth {
	available := make(map[string]bool, len(state.AvailableDates))
	for _, d := range state.AvailableDates {
		available[d] = true
	}
	return models.BuildCalendarMonth(state.CalendarYear, state.CalendarMonth, available, state.Today(s.now()))
}

func (s *WizardService) load(ctx context.Context, sessionID string) (*models.WizardState, error) {
	state, err := s.states.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrSessionNotFound
	}
	return state, nil
}

// refreshAvailability re-queries date availability for the cursor month. A
// failed fetch leaves the set empty and surfaces through the overlay; the
// customer retries via month navigation.
func (s *WizardService) refreshAvailability(ctx context.Context, state *models.WizardState) {
	from, to := models.MonthBounds(state.CalendarYear, state.CalendarMonth)
	if today := state.Today(s.now()); from < today && to >= today {
		from = today
	}

	dates, err := s.availability.DateAvailability(ctx, state.WorkspaceID, state.BookingType.Slug, from, to)
	if err != nil {
		s.logger.Error().Err(err).
			Str("session_id", state.SessionID).
			Str("slug", state.BookingType.Slug).
			Msg("Date availability fetch failed")
		state.AvailableDates = nil
		state.LastError = "failed to load availability"
		return
	}
	state.AvailableDates = dates
}

// overlay records a non-fatal selection problem without moving the step.
func (s *WizardService) overlay(ctx context.Context, state *models.WizardState, cause error) (*models.WizardState, error) {
	state.LastError = cause.Error()
	if err := s.states.SaveSession(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}
