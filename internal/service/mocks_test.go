package service

import (
	"context"

	"bookflow/internal/models"
	"bookflow/internal/notify"

	"github.com/stretchr/testify/mock"
)

type mockAvailability struct {
	mock.Mock
}

func (m *mockAvailability) ListBookingTypes(ctx context.Context, workspaceID string) ([]models.BookingType, error) {
	args := m.Called(ctx, workspaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BookingType), args.Error(1)
}

func (m *mockAvailability) DateAvailability(ctx context.Context, workspaceID, slug, fromDate, toDate string) ([]string, error) {
	args := m.Called(ctx, workspaceID, slug, fromDate, toDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockAvailability) SlotAvailability(ctx context.Context, workspaceID, slug, day string) ([]models.AvailabilitySlot, error) {
	args := m.Called(ctx, workspaceID, slug, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AvailabilitySlot), args.Error(1)
}

type mockBookings struct {
	mock.Mock
}

func (m *mockBookings) CreateBooking(ctx context.Context, workspaceID string, req models.CreateBookingRequest) (*models.Booking, error) {
	args := m.Called(ctx, workspaceID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookings) FormLink(ctx context.Context, workspaceID, bookingID string) (string, error) {
	args := m.Called(ctx, workspaceID, bookingID)
	return args.String(0), args.Error(1)
}

func (m *mockBookings) UpdateStatus(ctx context.Context, workspaceID, bookingID, status, bearerToken string) (string, error) {
	args := m.Called(ctx, workspaceID, bookingID, status, bearerToken)
	return args.String(0), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendConfirmation(ctx context.Context, booking *models.Booking) []notify.Attempt {
	args := m.Called(ctx, booking)
	return args.Get(0).([]notify.Attempt)
}

func (m *mockNotifier) SendFormLink(ctx context.Context, workspaceID string, booking *models.Booking, formTemplateID string) notify.Attempt {
	args := m.Called(ctx, workspaceID, booking, formTemplateID)
	return args.Get(0).(notify.Attempt)
}
