package domain

import (
	"context"
	"time"

	"bookflow/internal/models"
	"bookflow/internal/notify"
)

// AvailabilityGateway reads booking types and availability from the backend.
// Dates are civil YYYY-MM-DD strings; the backend owns availability truth.
type AvailabilityGateway interface {
	ListBookingTypes(ctx context.Context, workspaceID string) ([]models.BookingType, error)
	DateAvailability(ctx context.Context, workspaceID, slug, fromDate, toDate string) ([]string, error)
	SlotAvailability(ctx context.Context, workspaceID, slug, day string) ([]models.AvailabilitySlot, error)
}

// BookingGateway writes bookings and reads booking-scoped lookups.
type BookingGateway interface {
	CreateBooking(ctx context.Context, workspaceID string, req models.CreateBookingRequest) (*models.Booking, error)
	FormLink(ctx context.Context, workspaceID, bookingID string) (string, error)
	UpdateStatus(ctx context.Context, workspaceID, bookingID, status, bearerToken string) (string, error)
}

// Notifier dispatches the best-effort post-booking notifications. Attempts
// report sent/skipped/failed; they never fail the calling flow.
type Notifier interface {
	SendConfirmation(ctx context.Context, booking *models.Booking) []notify.Attempt
	SendFormLink(ctx context.Context, workspaceID string, booking *models.Booking, formTemplateID string) notify.Attempt
}

type StateRepository interface {
	GetState(ctx context.Context, sessionID string) (*models.WizardState, error)
	SetState(ctx context.Context, state *models.WizardState) error
	ClearState(ctx context.Context, sessionID string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type StateManager interface {
	GetSession(ctx context.Context, sessionID string) (*models.WizardState, error)
	SaveSession(ctx context.Context, state *models.WizardState) error
	ClearSession(ctx context.Context, sessionID string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// WizardService drives the customer-facing booking flow. Every call returns
// the updated session view; fatal errors come back as errors, non-fatal ones
// land in the state's LastError overlay.
type WizardService interface {
	StartSession(ctx context.Context, workspaceID, timezone string) (*models.WizardState, error)
	GetSession(ctx context.Context, sessionID string) (*models.WizardState, error)
	SelectBookingType(ctx context.Context, sessionID, slug string) (*models.WizardState, error)
	MoveMonth(ctx context.Context, sessionID, direction string) (*models.WizardState, error)
	SelectDate(ctx context.Context, sessionID, date string) (*models.WizardState, error)
	SelectSlot(ctx context.Context, sessionID string, start, end time.Time) (*models.WizardState, error)
	Back(ctx context.Context, sessionID string) (*models.WizardState, error)
	Submit(ctx context.Context, sessionID string, details models.ContactDetails) (*models.WizardState, error)
}

// LifecycleService is the staff-side status machine over Booking.status.
type LifecycleService interface {
	UpdateStatus(ctx context.Context, workspaceID, bookingID, newStatus, currentStatus, bearerToken string) (string, error)
	SendConfirmation(ctx context.Context, workspaceID string, booking models.Booking, bearerToken string) ([]notify.Attempt, error)
}
