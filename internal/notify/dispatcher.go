package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"bookflow/internal/config"
	"bookflow/internal/models"

	"github.com/rs/zerolog"
)

// Dispatcher posts notification payloads to the outbound dispatch endpoints.
// An unconfigured URL or a missing contact channel yields a skipped attempt;
// transport and non-2xx failures yield failed attempts. Nothing here ever
// returns an error to the caller.
type Dispatcher struct {
	confirmationEmailURL string
	confirmationSMSURL   string
	formLinkEmailURL     string
	httpClient           *http.Client
	logger               zerolog.Logger
}

func NewDispatcher(cfg config.NotifyConfig, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		confirmationEmailURL: cfg.ConfirmationEmailURL,
		confirmationSMSURL:   cfg.ConfirmationSMSURL,
		formLinkEmailURL:     cfg.FormLinkEmailURL,
		httpClient:           &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger:               logger.With().Str("component", "notify").Logger(),
	}
}

type confirmationPayload struct {
	BookingID   string    `json:"booking_id"`
	ContactName string    `json:"contact_name"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	StartAt     time.Time `json:"start_at"`
}

type formLinkPayload struct {
	WorkspaceID    string `json:"workspaceId"`
	BookingID      string `json:"bookingId"`
	ContactID      string `json:"contactId"`
	ContactName    string `json:"contactName"`
	ContactEmail   string `json:"contactEmail"`
	FormTemplateID string `json:"formTemplateId"`
}

// SendConfirmation attempts the email and sms confirmation paths, one attempt
// per present contact channel.
func (d *Dispatcher) SendConfirmation(ctx context.Context, booking *models.Booking) []Attempt {
	attempts := []Attempt{
		d.sendEmailConfirmation(ctx, booking),
		d.sendSMSConfirmation(ctx, booking),
	}
	for _, a := range attempts {
		d.logAttempt(booking.ID, a)
	}
	return attempts
}

func (d *Dispatcher) sendEmailConfirmation(ctx context.Context, booking *models.Booking) Attempt {
	if booking.ContactEmail == "" {
		return skipped(KindEmailConfirmation)
	}
	if d.confirmationEmailURL == "" {
		return skipped(KindEmailConfirmation)
	}

	payload := confirmationPayload{
		BookingID:   booking.ID,
		ContactName: booking.ContactName,
		Email:       booking.ContactEmail,
		StartAt:     booking.StartAt,
	}
	if err := d.post(ctx, d.confirmationEmailURL, payload); err != nil {
		return failed(KindEmailConfirmation, err)
	}
	return sent(KindEmailConfirmation)
}

func (d *Dispatcher) sendSMSConfirmation(ctx context.Context, booking *models.Booking) Attempt {
	if booking.ContactPhone == "" {
		return skipped(KindSMSConfirmation)
	}
	if d.confirmationSMSURL == "" {
		return skipped(KindSMSConfirmation)
	}

	payload := confirmationPayload{
		BookingID:   booking.ID,
		ContactName: booking.ContactName,
		Phone:       booking.ContactPhone,
		StartAt:     booking.StartAt,
	}
	if err := d.post(ctx, d.confirmationSMSURL, payload); err != nil {
		return failed(KindSMSConfirmation, err)
	}
	return sent(KindSMSConfirmation)
}

// SendFormLink emails the intake form link. Requires a linked template and a
// contact email; skipped otherwise.
func (d *Dispatcher) SendFormLink(ctx context.Context, workspaceID string, booking *models.Booking, formTemplateID string) Attempt {
	var attempt Attempt
	switch {
	case formTemplateID == "" || booking.ContactEmail == "" || d.formLinkEmailURL == "":
		attempt = skipped(KindFormLinkEmail)
	default:
		payload := formLinkPayload{
			WorkspaceID:    workspaceID,
			BookingID:      booking.ID,
			ContactID:      booking.ContactID,
			ContactName:    booking.ContactName,
			ContactEmail:   booking.ContactEmail,
			FormTemplateID: formTemplateID,
		}
		if err := d.post(ctx, d.formLinkEmailURL, payload); err != nil {
			attempt = failed(KindFormLinkEmail, err)
		} else {
			attempt = sent(KindFormLinkEmail)
		}
	}
	d.logAttempt(booking.ID, attempt)
	return attempt
}

func (d *Dispatcher) post(ctx context.Context, endpoint string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("dispatch endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) logAttempt(bookingID string, a Attempt) {
	event := d.logger.Info()
	if a.Outcome == OutcomeFailed {
		event = d.logger.Error().Err(a.Err)
	}
	event.
		Str("booking_id", bookingID).
		Str("kind", string(a.Kind)).
		Str("outcome", string(a.Outcome)).
		Msg("Notification attempt")
}
