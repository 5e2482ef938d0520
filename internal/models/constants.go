package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
	StatusNoShow    = "no_show"
)

// Wizard steps, in flow order.
const (
	StepSelectType   = "type"
	StepSelectDate   = "date"
	StepSelectSlot   = "slot"
	StepEnterDetails = "details"
	StepDone         = "done"
)

const (
	// DefaultSessionTTL время жизни сессии мастера бронирования
	DefaultSessionTTL = 24 * 60 * 60 // 24 часа в секундах

	// DefaultTimezone used when the frontend does not report one
	DefaultTimezone = "UTC"

	// RateLimitRequests количество запросов в окне
	RateLimitRequests = 60

	// RateLimitWindow окно ограничения частоты запросов
	RateLimitWindow = 60 // 1 минута в секундах
)

// TerminalStatus reports whether no further status transitions are offered.
func TerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusNoShow
}

// AllowedTransitions returns the statuses staff may move a booking to from
// the given status. Empty for terminal statuses, so callers hide the controls.
func AllowedTransitions(status string) []string {
	switch status {
	case StatusPending:
		return []string{StatusConfirmed, StatusCompleted, StatusNoShow}
	case StatusConfirmed:
		return []string{StatusCompleted, StatusNoShow}
	default:
		return nil
	}
}
