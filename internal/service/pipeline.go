package service

import (
	"context"

	"bookflow/internal/domain"
	"bookflow/internal/events"
	"bookflow/internal/metrics"
	"bookflow/internal/models"
	"bookflow/internal/notify"

	"github.com/rs/zerolog"
)

// Pipeline runs the booking submission sequence: creation strictly first,
// then the best-effort notification fan-out. Creation failure is fatal and
// nothing else is attempted; notification failures never propagate. Each
// notification path is invoked at most once per successful creation — the
// dispatch endpoints are not idempotent, and no client-side dedup token is
// sent on creation.
type Pipeline struct {
	bookings domain.BookingGateway
	notifier domain.Notifier
	eventBus domain.EventPublisher
	logger   zerolog.Logger
}

func NewPipeline(bookings domain.BookingGateway, notifier domain.Notifier, eventBus domain.EventPublisher, logger *zerolog.Logger) *Pipeline {
	return &Pipeline{
		bookings: bookings,
		notifier: notifier,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "pipeline").Logger(),
	}
}

// Run creates the booking and fans out the notifications. The returned
// attempts cover both confirmation paths and the form-link path.
func (p *Pipeline) Run(ctx context.Context, workspaceID, sessionID string, req models.CreateBookingRequest) (*models.Booking, []notify.Attempt, error) {
	booking, err := p.bookings.CreateBooking(ctx, workspaceID, req)
	if err != nil {
		return nil, nil, err
	}

	metrics.IncBookingCreated()
	_ = p.eventBus.PublishJSON(events.EventBookingCreated, events.BookingEventPayload{
		BookingID:       booking.ID,
		WorkspaceID:     workspaceID,
		BookingTypeSlug: booking.BookingTypeSlug,
		Status:          booking.Status,
		StartAt:         booking.StartAt,
		EndAt:           booking.EndAt,
		ContactName:     booking.ContactName,
		SessionID:       sessionID,
	})

	attempts := p.notifier.SendConfirmation(ctx, booking)
	attempts = append(attempts, p.sendFormLink(ctx, workspaceID, booking))

	for _, a := range attempts {
		p.recordAttempt(workspaceID, booking.ID, a)
	}

	return booking, attempts, nil
}

// sendFormLink looks up the linked form template and, when one exists and the
// contact has an email, dispatches the form-link email. Best-effort,
// independent of the confirmation outcome. Without a contact email the step
// is skipped entirely, including the lookup.
func (p *Pipeline) sendFormLink(ctx context.Context, workspaceID string, booking *models.Booking) notify.Attempt {
	if booking.ContactEmail == "" {
		return notify.Attempt{Kind: notify.KindFormLinkEmail, Outcome: notify.OutcomeSkipped}
	}

	templateID, err := p.bookings.FormLink(ctx, workspaceID, booking.ID)
	if err != nil {
		p.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("Form link lookup failed")
		return notify.Attempt{Kind: notify.KindFormLinkEmail, Outcome: notify.OutcomeFailed, Err: err}
	}
	return p.notifier.SendFormLink(ctx, workspaceID, booking, templateID)
}

func (p *Pipeline) recordAttempt(workspaceID, bookingID string, a notify.Attempt) {
	metrics.IncNotificationAttempt(string(a.Kind), string(a.Outcome))

	payload := events.NotificationEventPayload{
		BookingID:   bookingID,
		WorkspaceID: workspaceID,
		Kind:        string(a.Kind),
		Outcome:     string(a.Outcome),
	}

	switch a.Outcome {
	case notify.OutcomeFailed:
		if a.Err != nil {
			payload.Error = a.Err.Error()
		}
		_ = p.eventBus.PublishJSON(events.EventNotificationFailed, payload)
	case notify.OutcomeSent:
		eventType := events.EventConfirmationSent
		if a.Kind == notify.KindFormLinkEmail {
			eventType = events.EventFormLinkSent
		}
		_ = p.eventBus.PublishJSON(eventType, payload)
	}
}
