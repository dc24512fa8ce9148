package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/pulsegrid/pulsegrid/internal/config"
	"github.com/pulsegrid/pulsegrid/internal/metrics"
	"github.com/pulsegrid/pulsegrid/internal/sqlite"
	"github.com/pulsegrid/pulsegrid/pkg/models"
)

// Dispatcher sends email notifications for alerts and records the delivery
// outcome on the alert row. SMTP settings and the recipient list are read
// from the settings table on every dispatch so operators can change them
// without a restart; the static config only supplies defaults.
type Dispatcher struct {
	db        *sqlite.DB
	defaults  config.AlertsConfig
	log       *slog.Logger
	newSender func(EmailSenderOptions) Sender
}

func NewDispatcher(db *sqlite.DB, defaults config.AlertsConfig, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		db:       db,
		defaults: defaults,
		log:      log.With("component", "dispatcher"),
		newSender: func(opts EmailSenderOptions) Sender {
			return NewEmailSender(opts)
		},
	}
}

// Enabled reports whether alert notifications are currently switched on.
func (d *Dispatcher) Enabled(ctx context.Context) bool {
	return d.db.GetBoolSetting(ctx, models.SettingAlertsEnabled, d.defaults.Enabled)
}

// Dispatch sends the notification for one alert and persists the outcome.
//
// When no recipients are configured it returns ErrNoRecipients and the
// alert's delivery fields are left untouched. Any real attempt, success or
// failure, overwrites the delivery fields as a unit. A failure to persist
// the outcome is logged and swallowed: delivery already happened and must
// not be reported as failed.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *models.Alert) (models.DeliveryOutcome, error) {
	recipients := d.db.GetStringSliceSetting(ctx, models.SettingAlertsRecipients, d.defaults.Recipients)
	if len(recipients) == 0 {
		d.log.Warn("skipping notification, no recipients configured", "alert_id", alert.ID)
		return models.DeliveryOutcome{}, ErrNoRecipients
	}

	sender := d.newSender(d.senderOptions(ctx))
	messageID, err := sender.Send(ctx, Notification{Alert: alert, Recipients: recipients})

	// A send timestamp only exists for a successful delivery; a failed
	// attempt records the error with a null notified_at.
	var notifiedAt *time.Time
	outcome := models.DeliveryOutcome{Success: err == nil, MessageID: messageID}
	if err != nil {
		if errors.Is(err, ErrNoRecipients) {
			return models.DeliveryOutcome{}, ErrNoRecipients
		}
		outcome.Error = err.Error()
		metrics.NotificationsFailed.Inc()
		d.log.Error("alert notification failed",
			"alert_id", alert.ID,
			"device_id", alert.DeviceID,
			"error", err,
		)
	} else {
		now := time.Now().UTC()
		notifiedAt = &now
		metrics.NotificationsSent.Inc()
		d.log.Info("alert notification sent",
			"alert_id", alert.ID,
			"device_id", alert.DeviceID,
			"recipients", len(recipients),
		)
	}

	if persistErr := d.db.UpdateAlertDelivery(ctx, alert.ID, outcome.Success, notifiedAt, outcome.Error); persistErr != nil {
		d.log.Error("failed to record delivery status", "alert_id", alert.ID, "error", persistErr)
	} else {
		alert.Notified = outcome.Success
		alert.NotifiedAt = notifiedAt
		alert.NotifyError = outcome.Error
	}

	return outcome, nil
}

func (d *Dispatcher) senderOptions(ctx context.Context) EmailSenderOptions {
	return EmailSenderOptions{
		Host:     d.db.GetSettingWithDefault(ctx, models.SettingSMTPHost, d.defaults.SMTPHost),
		Port:     d.db.GetIntSetting(ctx, models.SettingSMTPPort, d.defaults.SMTPPort),
		Username: d.db.GetSettingWithDefault(ctx, models.SettingSMTPUsername, d.defaults.SMTPUsername),
		Password: d.db.GetSettingWithDefault(ctx, models.SettingSMTPPassword, d.defaults.SMTPPassword),
		From:     d.db.GetSettingWithDefault(ctx, models.SettingSMTPFrom, d.defaults.SMTPFrom),
		ReplyTo:  d.db.GetSettingWithDefault(ctx, models.SettingSMTPReplyTo, d.defaults.SMTPReplyTo),
		Security: strings.ToLower(d.db.GetSettingWithDefault(ctx, models.SettingSMTPSecurity, d.defaults.SMTPSecurity)),
		Timeout:  d.db.GetDurationSetting(ctx, models.SettingSMTPTimeout, d.defaults.RequestTimeout),
		Logger:   d.log,
	}
}
