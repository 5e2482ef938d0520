package service

import (
	"context"
	"testing"

	"bookflow/internal/events"
	"bookflow/internal/models"
	"bookflow/internal/notify"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newLifecycle(bookings *mockBookings, notifier *mockNotifier, bus *events.EventBus) *LifecycleService {
	logger := zerolog.Nop()
	return NewLifecycleService(bookings, notifier, bus, &logger)
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("AllowedTransition", func(t *testing.T) {
		bookings := new(mockBookings)
		bus := events.NewEventBus()
		svc := newLifecycle(bookings, new(mockNotifier), bus)

		bookings.On("UpdateStatus", ctx, "ws-1", "b-1", models.StatusConfirmed, "token").
			Return(models.StatusConfirmed, nil)

		var changed int
		bus.Subscribe(events.EventStatusChanged, func(e *events.Event) error { changed++; return nil })

		status, err := svc.UpdateStatus(ctx, "ws-1", "b-1", models.StatusConfirmed, models.StatusPending, "token")
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, status)
		assert.Equal(t, 1, changed)
	})

	t.Run("CompletedFromConfirmed", func(t *testing.T) {
		bookings := new(mockBookings)
		svc := newLifecycle(bookings, new(mockNotifier), events.NewEventBus())

		bookings.On("UpdateStatus", ctx, "ws-1", "b-1", models.StatusCompleted, "token").
			Return(models.StatusCompleted, nil)

		status, err := svc.UpdateStatus(ctx, "ws-1", "b-1", models.StatusCompleted, models.StatusConfirmed, "token")
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, status)
	})

	t.Run("TerminalStatusRejectsTransitions", func(t *testing.T) {
		bookings := new(mockBookings)
		svc := newLifecycle(bookings, new(mockNotifier), events.NewEventBus())

		for _, terminal := range []string{models.StatusCompleted, models.StatusNoShow} {
			require.True(t, models.TerminalStatus(terminal))
			for _, target := range []string{models.StatusPending, models.StatusConfirmed, models.StatusCompleted, models.StatusNoShow} {
				_, err := svc.UpdateStatus(ctx, "ws-1", "b-1", target, terminal, "token")
				assert.ErrorIs(t, err, ErrInvalidTransition)
			}
		}
		bookings.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ConfirmedCannotGoBackToPending", func(t *testing.T) {
		svc := newLifecycle(new(mockBookings), new(mockNotifier), events.NewEventBus())

		_, err := svc.UpdateStatus(ctx, "ws-1", "b-1", models.StatusPending, models.StatusConfirmed, "token")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("BackendFailureIsFatal", func(t *testing.T) {
		bookings := new(mockBookings)
		svc := newLifecycle(bookings, new(mockNotifier), events.NewEventBus())

		bookings.On("UpdateStatus", ctx, "ws-1", "b-1", models.StatusNoShow, "token").
			Return("", assert.AnError)

		_, err := svc.UpdateStatus(ctx, "ws-1", "b-1", models.StatusNoShow, models.StatusPending, "token")
		assert.Error(t, err)
	})
}

func TestSendConfirmation(t *testing.T) {
	ctx := context.Background()

	booking := models.Booking{
		ID:           "b-1",
		Status:       models.StatusPending,
		ContactName:  "Jane Doe",
		ContactEmail: "jane@example.com",
	}

	t.Run("SentOnPendingTriggersImplicitConfirm", func(t *testing.T) {
		bookings := new(mockBookings)
		notifier := new(mockNotifier)
		svc := newLifecycle(bookings, notifier, events.NewEventBus())

		notifier.On("SendConfirmation", ctx, &booking).Return([]notify.Attempt{
			{Kind: notify.KindEmailConfirmation, Outcome: notify.OutcomeSent},
			{Kind: notify.KindSMSConfirmation, Outcome: notify.OutcomeSkipped},
		})
		bookings.On("UpdateStatus", ctx, "ws-1", "b-1", models.StatusConfirmed, "token").
			Return(models.StatusConfirmed, nil)

		attempts, err := svc.SendConfirmation(ctx, "ws-1", booking, "token")
		require.NoError(t, err)
		assert.Len(t, attempts, 2)
		bookings.AssertNumberOfCalls(t, "UpdateStatus", 1)
	})

	t.Run("ImplicitConfirmFailureIsSwallowed", func(t *testing.T) {
		bookings := new(mockBookings)
		notifier := new(mockNotifier)
		svc := newLifecycle(bookings, notifier, events.NewEventBus())

		notifier.On("SendConfirmation", ctx, &booking).Return([]notify.Attempt{
			{Kind: notify.KindEmailConfirmation, Outcome: notify.OutcomeSent},
		})
		bookings.On("UpdateStatus", ctx, "ws-1", "b-1", models.StatusConfirmed, "token").
			Return("", assert.AnError)

		attempts, err := svc.SendConfirmation(ctx, "ws-1", booking, "token")
		require.NoError(t, err)
		assert.NotEmpty(t, attempts)
	})

	t.Run("ConfirmedBookingDoesNotWriteStatus", func(t *testing.T) {
		bookings := new(mockBookings)
		notifier := new(mockNotifier)
		svc := newLifecycle(bookings, notifier, events.NewEventBus())

		confirmed := booking
		confirmed.Status = models.StatusConfirmed
		notifier.On("SendConfirmation", ctx, &confirmed).Return([]notify.Attempt{
			{Kind: notify.KindEmailConfirmation, Outcome: notify.OutcomeSent},
		})

		_, err := svc.SendConfirmation(ctx, "ws-1", confirmed, "token")
		require.NoError(t, err)
		bookings.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("NothingSentNoStatusWrite", func(t *testing.T) {
		bookings := new(mockBookings)
		notifier := new(mockNotifier)
		svc := newLifecycle(bookings, notifier, events.NewEventBus())

		notifier.On("SendConfirmation", ctx, &booking).Return([]notify.Attempt{
			{Kind: notify.KindEmailConfirmation, Outcome: notify.OutcomeFailed, Err: assert.AnError},
			{Kind: notify.KindSMSConfirmation, Outcome: notify.OutcomeSkipped},
		})

		_, err := svc.SendConfirmation(ctx, "ws-1", booking, "token")
		require.NoError(t, err)
		bookings.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAllowedTransitionsVisibility(t *testing.T) {
	// Terminal statuses offer no controls
	assert.Empty(t, models.AllowedTransitions(models.StatusCompleted))
	assert.Empty(t, models.AllowedTransitions(models.StatusNoShow))
	assert.Empty(t, models.AllowedTransitions(models.StatusCancelled))

	assert.ElementsMatch(t,
		[]string{models.StatusConfirmed, models.StatusCompleted, models.StatusNoShow},
		models.AllowedTransitions(models.StatusPending))
	assert.ElementsMatch(t,
		[]string{models.StatusCompleted, models.StatusNoShow},
		models.AllowedTransitions(models.StatusConfirmed))
}
