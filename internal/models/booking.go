package models

import (
	"strings"
	"time"
)

type BookingType struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Slug            string `json:"slug"`
	Description     string `json:"description,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
}

// AvailabilitySlot is a derived, ephemeral interval returned by the backend.
// Only slots with IsAvailable are selectable.
type AvailabilitySlot struct {
	SlotStart   time.Time `json:"slot_start"`
	SlotEnd     time.Time `json:"slot_end"`
	StaffName   string    `json:"staff_name,omitempty"`
	IsAvailable bool      `json:"is_available"`
}

type Booking struct {
	ID              string    `json:"id"`
	Status          string    `json:"status"` // pending, confirmed, cancelled, completed, no_show
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	ContactID       string    `json:"contact_id"`
	ContactName     string    `json:"contact_name"`
	ContactEmail    string    `json:"contact_email,omitempty"`
	ContactPhone    string    `json:"contact_phone,omitempty"`
	BookingTypeSlug string    `json:"booking_type_slug"`
	ConversationID  string    `json:"conversation_id,omitempty"`
}

// CreateBookingRequest is the payload for the public booking creation call.
// Timestamps must already be UTC.
type CreateBookingRequest struct {
	BookingTypeSlug string    `json:"booking_type_slug"`
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	FullName        string    `json:"full_name"`
	Email           string    `json:"email,omitempty"`
	Phone           string    `json:"phone,omitempty"`
}

// ContactDetails is what the customer types into the final wizard step.
// A submission requires at least one channel (email or phone) after trimming.
type ContactDetails struct {
	FullName string `json:"full_name" validate:"required,min=1,max=200"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,min=5,max=32"`
}

// Normalize trims whitespace from all fields.
func (c ContactDetails) Normalize() ContactDetails {
	return ContactDetails{
		FullName: strings.TrimSpace(c.FullName),
		Email:    strings.TrimSpace(c.Email),
		Phone:    strings.TrimSpace(c.Phone),
	}
}

// HasContactChannel reports whether at least one contact channel is present.
func (c ContactDetails) HasContactChannel() bool {
	return strings.TrimSpace(c.Email) != "" || strings.TrimSpace(c.Phone) != ""
}
