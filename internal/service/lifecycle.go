package service

import (
	"context"
	"fmt"

	"bookflow/internal/domain"
	"bookflow/internal/events"
	"bookflow/internal/metrics"
	"bookflow/internal/models"
	"bookflow/internal/notify"

	"github.com/rs/zerolog"
)

// LifecycleService is the staff-side status machine. The backend persists the
// status; this service enforces the transition table before calling out and
// records every transition.
type LifecycleService struct {
	bookings domain.BookingGateway
	notifier domain.Notifier
	eventBus domain.EventPublisher
	logger   zerolog.Logger
}

func NewLifecycleService(bookings domain.BookingGateway, notifier domain.Notifier, eventBus domain.EventPublisher, logger *zerolog.Logger) *LifecycleService {
	return &LifecycleService{
		bookings: bookings,
		notifier: notifier,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "lifecycle").Logger(),
	}
}

// UpdateStatus performs one explicit staff-driven transition. Transport
// failures are fatal to the action and surfaced to the caller.
func (s *LifecycleService) UpdateStatus(ctx context.Context, workspaceID, bookingID, newStatus, currentStatus, bearerToken string) (string, error) {
	if !transitionAllowed(currentStatus, newStatus) {
		return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, currentStatus, newStatus)
	}

	persisted, err := s.bookings.UpdateStatus(ctx, workspaceID, bookingID, newStatus, bearerToken)
	if err != nil {
		return "", fmt.Errorf("failed to update booking status: %w", err)
	}

	s.recordTransition(workspaceID, bookingID, currentStatus, persisted)
	return persisted, nil
}

// SendConfirmation re-dispatches the confirmation notifications for an
// existing booking. When a send succeeded and the booking is still pending,
// it additionally attempts the implicit pending -> confirmed transition; a
// failure of that side effect is logged and swallowed.
func (s *LifecycleService) SendConfirmation(ctx context.Context, workspaceID string, booking models.Booking, bearerToken string) ([]notify.Attempt, error) {
	attempts := s.notifier.SendConfirmation(ctx, &booking)

	anySent := false
	for _, a := range attempts {
		metrics.IncNotificationAttempt(string(a.Kind), string(a.Outcome))
		if a.Outcome == notify.OutcomeSent {
			anySent = true
			_ = s.eventBus.PublishJSON(events.EventConfirmationSent, events.NotificationEventPayload{
				BookingID:   booking.ID,
				WorkspaceID: workspaceID,
				Kind:        string(a.Kind),
				Outcome:     string(a.Outcome),
			})
		}
	}

	if anySent && booking.Status == models.StatusPending {
		persisted, err := s.bookings.UpdateStatus(ctx, workspaceID, booking.ID, models.StatusConfirmed, bearerToken)
		if err != nil {
			s.logger.Error().Err(err).
				Str("booking_id", booking.ID).
				Msg("Implicit confirm after resend failed")
		} else {
			s.recordTransition(workspaceID, booking.ID, models.StatusPending, persisted)
		}
	}

	return attempts, nil
}

func (s *LifecycleService) recordTransition(workspaceID, bookingID, from, to string) {
	metrics.IncStatusTransition(to)
	_ = s.eventBus.PublishJSON(events.EventStatusChanged, events.StatusEventPayload{
		BookingID:   bookingID,
		WorkspaceID: workspaceID,
		From:        from,
		To:          to,
	})
	s.logger.Info().
		Str("booking_id", bookingID).
		Str("from", from).
		Str("to", to).
		Msg("Booking status changed")
}

func transitionAllowed(from, to string) bool {
	if models.TerminalStatus(from) {
		return false
	}
	for _, allowed := range models.AllowedTransitions(from) {
		if allowed == to {
			return true
		}
	}
	return false
}
