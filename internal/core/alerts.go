package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulsegrid/pulsegrid/internal/metrics"
	"github.com/pulsegrid/pulsegrid/internal/notify"
	"github.com/pulsegrid/pulsegrid/internal/sqlite"
	"github.com/pulsegrid/pulsegrid/internal/stream"
	"github.com/pulsegrid/pulsegrid/pkg/models"
)

var (
	// ErrAlertNotFound is returned when an alert ID does not exist.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrMissingActor is returned when a handle request omits the actor.
	ErrMissingActor = errors.New("actor is required")
)

// GetAlert retrieves a single alert by ID.
func GetAlert(ctx context.Context, db *sqlite.DB, alertID models.AlertID) (*models.Alert, error) {
	alert, err := db.GetAlert(ctx, alertID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to load alert: %w", err)
	}
	return alert, nil
}

// ListAlerts returns one page of alerts matching the filter, newest first.
func ListAlerts(ctx context.Context, db *sqlite.DB, filter models.AlertFilter, page, limit int) (*models.AlertPage, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = models.DefaultAlertPageLimit
	}
	if limit > models.MaxAlertPageLimit {
		limit = models.MaxAlertPageLimit
	}

	items, total, err := db.ListAlerts(ctx, filter, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return &models.AlertPage{
		Items: items,
		Total: total,
		Page:  page,
		Pages: pages,
	}, nil
}

// ListUnhandledAlerts returns the newest unhandled alerts, optionally
// scoped to one device.
func ListUnhandledAlerts(ctx context.Context, db *sqlite.DB, deviceID string) ([]*models.Alert, error) {
	alerts, err := db.ListUnhandledAlerts(ctx, deviceID, models.UnhandledAlertLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unhandled alerts: %w", err)
	}
	return alerts, nil
}

// MarkAlertHandled acknowledges an alert on behalf of the named actor and
// publishes the change on the device stream.
//
// Handling is terminal and idempotent in shape: marking an already handled
// alert simply rewrites the handled fields, and when two actors race the
// last write wins.
func MarkAlertHandled(ctx context.Context, db *sqlite.DB, log *slog.Logger, hub *stream.Hub, alertID models.AlertID, actor string) (*models.Alert, error) {
	if actor == "" {
		return nil, ErrMissingActor
	}

	if err := db.MarkAlertHandled(ctx, alertID, actor, time.Now().UTC()); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to mark alert handled: %w", err)
	}
	metrics.AlertsHandled.Inc()

	alert, err := db.GetAlert(ctx, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload alert: %w", err)
	}
	log.Info("alert handled", "alert_id", alert.ID, "device_id", alert.DeviceID, "actor", actor)

	publish(hub, models.Event{Kind: models.EventAlertHandled, DeviceID: alert.DeviceID, Payload: alert})
	return alert, nil
}

// GetAlertStats aggregates alerts raised within the window, optionally
// scoped to one device. All counts come from a single query so they are
// mutually consistent.
func GetAlertStats(ctx context.Context, db *sqlite.DB, deviceID string, window models.StatsWindow) (*models.AlertStats, error) {
	end := time.Now().UTC()
	start := end.Add(-window.Duration())

	total, critical, warning, handled, unhandled, err := db.CountAlertsSince(ctx, deviceID, start)
	if err != nil {
		return nil, fmt.Errorf("failed to compute alert statistics: %w", err)
	}
	return &models.AlertStats{
		Total:       total,
		Critical:    critical,
		Warning:     warning,
		Handled:     handled,
		Unhandled:   unhandled,
		Window:      window,
		WindowStart: start,
		WindowEnd:   end,
	}, nil
}

// ResendAlertEmail re-dispatches the notification for an existing alert,
// regardless of its handled state. The new attempt overwrites the previous
// delivery outcome.
func ResendAlertEmail(ctx context.Context, db *sqlite.DB, log *slog.Logger, dispatcher *notify.Dispatcher, alertID models.AlertID) (*models.Alert, models.DeliveryOutcome, error) {
	alert, err := GetAlert(ctx, db, alertID)
	if err != nil {
		return nil, models.DeliveryOutcome{}, err
	}

	outcome, err := dispatcher.Dispatch(ctx, alert)
	if err != nil {
		return alert, models.DeliveryOutcome{}, err
	}
	log.Info("alert notification resent", "alert_id", alert.ID, "success", outcome.Success)
	return alert, outcome, nil
}
