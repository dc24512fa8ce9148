package models

import "time"

// Setting is a runtime configuration value stored in the database. Values
// are kept as strings and coerced by the typed store getters.
type Setting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	ValueType   string    `json:"value_type"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	IsSensitive bool      `json:"is_sensitive"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpsertSettingRequest is the admin payload for changing one setting.
type UpsertSettingRequest struct {
	Value       string `json:"value"`
	ValueType   string `json:"value_type"`
	Category    string `json:"category"`
	Description string `json:"description"`
	IsSensitive bool   `json:"is_sensitive"`
}

// Setting keys read at dispatch time so operators can change notification
// behavior without a restart.
const (
	SettingAlertsEnabled    = "alerts.enabled"
	SettingAlertsRecipients = "alerts.recipients"
	SettingSMTPHost         = "alerts.smtp_host"
	SettingSMTPPort         = "alerts.smtp_port"
	SettingSMTPUsername     = "alerts.smtp_username"
	SettingSMTPPassword     = "alerts.smtp_password"
	SettingSMTPFrom         = "alerts.smtp_from"
	SettingSMTPReplyTo      = "alerts.smtp_reply_to"
	SettingSMTPSecurity     = "alerts.smtp_security"
	SettingSMTPTimeout      = "alerts.request_timeout"
)
