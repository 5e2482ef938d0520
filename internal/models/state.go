package models

import (
	"time"
)

// WizardState is the transient, per-session snapshot of the booking wizard.
// It lives in the state repository for the duration of the flow and is the
// only mutable state this core owns.
type WizardState struct {
	SessionID   string `json:"session_id"`
	WorkspaceID string `json:"workspace_id"`
	Step        string `json:"step"`
	Timezone    string `json:"timezone"`

	BookingType *BookingType `json:"booking_type,omitempty"`

	// Calendar cursor and the availability set fetched for it.
	CalendarYear   int      `json:"calendar_year,omitempty"`
	CalendarMonth  int      `json:"calendar_month,omitempty"` // 1..12
	AvailableDates []string `json:"available_dates,omitempty"`

	SelectedDate string             `json:"selected_date,omitempty"` // YYYY-MM-DD
	Slots        []AvailabilitySlot `json:"slots,omitempty"`
	SelectedSlot *AvailabilitySlot  `json:"selected_slot,omitempty"`

	Details *ContactDetails `json:"details,omitempty"`
	Booking *Booking        `json:"booking,omitempty"`

	// LastError is a non-blocking overlay; it never resets the step.
	LastError string `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location resolves the session's IANA timezone, falling back to UTC.
func (s *WizardState) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DateAvailable reports whether the date is in the fetched availability set.
func (s *WizardState) DateAvailable(date string) bool {
	for _, d := range s.AvailableDates {
		if d == date {
			return true
		}
	}
	return false
}

// FindSlot returns the fetched slot matching the interval, or nil.
func (s *WizardState) FindSlot(start, end time.Time) *AvailabilitySlot {
	for i := range s.Slots {
		if s.Slots[i].SlotStart.Equal(start) && s.Slots[i].SlotEnd.Equal(end) {
			return &s.Slots[i]
		}
	}
	return nil
}

// Today returns the current calendar date in the session's timezone.
func (s *WizardState) Today(now time.Time) string {
	return now.In(s.Location()).Format("2006-01-02")
}
