package core

import "time"

// Submission is a contact form entry that passed validation.
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`

	// Honeypot holds the hidden "website" field; real visitors leave it empty.
	Honeypot string `json:"-"`

	ClientID    string    `json:"ip"`
	SubmittedAt time.Time `json:"timestamp"`
}

// RejectionReason classifies why a submission or query was refused.
type RejectionReason string

const (
	ReasonHoneypot           RejectionReason = "honeypot"
	ReasonMissingFields      RejectionReason = "missing_fields"
	ReasonInvalidFieldTypes  RejectionReason = "invalid_field_types"
	ReasonInvalidEmailFormat RejectionReason = "invalid_email_format"
	ReasonMissingQuery       RejectionReason = "missing_query"
)

// Rejection is returned by the validators. Honeypot rejections are
// suppressed: callers must answer them with a normal success.
type Rejection struct {
	Reason  RejectionReason
	Message string
}

func (r *Rejection) Error() string {
	return r.Message
}

// Suppressed reports whether the rejection must be hidden from the sender.
func (r *Rejection) Suppressed() bool {
	return r != nil && r.Reason == ReasonHoneypot
}

var (
	ErrHoneypot           = &Rejection{Reason: ReasonHoneypot, Message: "honeypot field populated"}
	ErrMissingFields      = &Rejection{Reason: ReasonMissingFields, Message: "All fields are required"}
	ErrInvalidFieldTypes  = &Rejection{Reason: ReasonInvalidFieldTypes, Message: "Invalid field types"}
	ErrInvalidEmailFormat = &Rejection{Reason: ReasonInvalidEmailFormat, Message: "Invalid email format"}
	ErrMissingQuery       = &Rejection{Reason: ReasonMissingQuery, Message: "Query parameter is required"}
)

// DispatchResult is the outcome of forwarding a submission downstream.
type DispatchResult struct {
	// Ack is the provider acknowledgment (message id, document id).
	Ack string
	// Reason is a short, log-only description of a failure.
	Reason string
	Err    error
}

// Delivered builds a successful result.
func Delivered(ack string) DispatchResult {
	return DispatchResult{Ack: ack}
}

// Failed builds a failed result. err may be nil when reason says enough.
func Failed(reason string, err error) DispatchResult {
	if reason == "" {
		reason = "dispatch failed"
	}
	return DispatchResult{Reason: reason, Err: err}
}

// OK reports whether the submission was delivered.
func (r DispatchResult) OK() bool {
	return r.Reason == "" && r.Err == nil
}
