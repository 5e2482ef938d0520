package notify

import "fmt"

// Kind identifies one of the best-effort notification paths that run after a
// booking is created.
type Kind string

const (
	KindEmailConfirmation Kind = "email_confirmation"
	KindSMSConfirmation   Kind = "sms_confirmation"
	KindFormLinkEmail     Kind = "form_link_email"
)

// Outcome of a single notification attempt. Attempts never alter the booking;
// failed outcomes are logged by the caller and absorbed.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Attempt is the inspectable result of one notification call, replacing
// silent catch-and-drop around fire-and-forget sends.
type Attempt struct {
	Kind    Kind
	Outcome Outcome
	Err     error
}

func (a Attempt) String() string {
	if a.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", a.Kind, a.Outcome, a.Err)
	}
	return fmt.Sprintf("%s: %s", a.Kind, a.Outcome)
}

func sent(kind Kind) Attempt    { return Attempt{Kind: kind, Outcome: OutcomeSent} }
func skipped(kind Kind) Attempt { return Attempt{Kind: kind, Outcome: OutcomeSkipped} }
func failed(kind Kind, err error) Attempt {
	return Attempt{Kind: kind, Outcome: OutcomeFailed, Err: err}
}
