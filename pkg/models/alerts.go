package models

import "time"

// AlertID uniquely identifies a raised alert.
type AlertID int64

// Category is the classifier's output label for a reading.
type Category string

const (
	CategoryNormal       Category = "NORMAL"
	CategoryWarningLow   Category = "WARNING_LOW"
	CategoryWarningHigh  Category = "WARNING_HIGH"
	CategoryCriticalLow  Category = "CRITICAL_LOW"
	CategoryCriticalHigh Category = "CRITICAL_HIGH"
)

// Severity is the coarse urgency derived from a category. It drives
// notification template choice and display routing.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// categorySeverity is the closed mapping from category to severity. Normal
// readings never become alerts, so their severity is only relevant for
// display defaults.
var categorySeverity = map[Category]Severity{
	CategoryCriticalLow:  SeverityCritical,
	CategoryCriticalHigh: SeverityCritical,
	CategoryWarningLow:   SeverityHigh,
	CategoryWarningHigh:  SeverityHigh,
	CategoryNormal:       SeverityMedium,
}

// Severity returns the urgency level for the category.
func (c Category) Severity() Severity {
	if s, ok := categorySeverity[c]; ok {
		return s
	}
	return SeverityMedium
}

// Abnormal reports whether a reading with this category raises an alert.
func (c Category) Abnormal() bool {
	_, known := categorySeverity[c]
	return known && c != CategoryNormal
}

// Alert is a persisted record raised when a reading falls outside normal
// bounds. Handled fields are set together by MarkAlertHandled and never
// cleared; delivery fields are overwritten as a unit by each dispatch attempt,
// including attempts made after the alert was handled.
type Alert struct {
	ID        AlertID  `json:"id"`
	DeviceID  string   `json:"device_id"`
	Category  Category `json:"category"`
	HeartRate int      `json:"heart_rate"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`

	// ReadingID is a weak reference to the triggering reading; the reading
	// store owns the record.
	ReadingID ReadingID `json:"reading_id"`

	Handled   bool       `json:"handled"`
	HandledBy string     `json:"handled_by,omitempty"`
	HandledAt *time.Time `json:"handled_at,omitempty"`

	Notified    bool       `json:"notified"`
	NotifiedAt  *time.Time `json:"notified_at,omitempty"`
	NotifyError string     `json:"notify_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// AlertFilter holds the independent optional filters for alert queries.
type AlertFilter struct {
	DeviceID string
	Category Category
	Handled  *bool
}

// AlertPage is one page of an alert listing, newest first.
type AlertPage struct {
	Items []*Alert `json:"items"`
	Total int      `json:"total"`
	Page  int      `json:"page"`
	Pages int      `json:"pages"`
}

// StatsWindow selects the time window for aggregate queries.
type StatsWindow string

const (
	StatsWindow24h StatsWindow = "24h"
	StatsWindow7d  StatsWindow = "7d"
	StatsWindow30d StatsWindow = "30d"
)

// Duration returns the wall-clock span of the window, defaulting unknown
// values to 24 hours.
func (w StatsWindow) Duration() time.Duration {
	switch w {
	case StatsWindow7d:
		return 7 * 24 * time.Hour
	case StatsWindow30d:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// AlertStats summarises alerts created within a window. All counts are
// computed from the same snapshot filter.
type AlertStats struct {
	Total       int         `json:"total"`
	Critical    int         `json:"critical"`
	Warning     int         `json:"warning"`
	Handled     int         `json:"handled"`
	Unhandled   int         `json:"unhandled"`
	Window      StatsWindow `json:"window"`
	WindowStart time.Time   `json:"window_start"`
	WindowEnd   time.Time   `json:"window_end"`
}

// MarkHandledRequest names the actor acknowledging an alert.
type MarkHandledRequest struct {
	Actor string `json:"actor"`
}

// DeliveryOutcome reports the result of one notification dispatch attempt.
type DeliveryOutcome struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DefaultAlertPageLimit is the page size used when the caller omits one.
const DefaultAlertPageLimit = 50

// MaxAlertPageLimit is the hard ceiling for a single alerts page.
const MaxAlertPageLimit = 500

// UnhandledAlertLimit caps the unhandled-alerts convenience listing.
const UnhandledAlertLimit = 100
