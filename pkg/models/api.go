package models

// ErrorType categorises API failures for clients.
type ErrorType string

const (
	GeneralErrorType    ErrorType = "general"
	ValidationErrorType ErrorType = "validation"
	NotFoundErrorType   ErrorType = "not_found"
)

// APIResponse is the JSON envelope for all HTTP responses.
type APIResponse struct {
	Status    string    `json:"status"`
	Data      any       `json:"data,omitempty"`
	Message   string    `json:"message,omitempty"`
	ErrorType ErrorType `json:"error_type,omitempty"`
}

// Event kinds published on the per-device stream.
type EventKind string

const (
	EventReading      EventKind = "reading"
	EventAlertRaised  EventKind = "alert_raised"
	EventAlertHandled EventKind = "alert_handled"
)

// Event is one message on the per-device stream. Payload carries the full
// Reading or Alert record.
type Event struct {
	Kind     EventKind `json:"kind"`
	DeviceID string    `json:"device_id"`
	Payload  any       `json:"payload"`
}
