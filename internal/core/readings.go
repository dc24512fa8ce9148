// Package core implements the domain operations behind the HTTP API:
// reading ingestion and classification, alert lifecycle and window
// statistics.
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
	// ErrInvalidReading wraps all reading validation failures.
	ErrInvalidReading = errors.New("invalid reading")

	// ErrReadingNotFound is returned when a device has no stored readings.
	ErrReadingNotFound = errors.New("reading not found")
)

// ValidateReading checks an ingestion payload without touching storage.
func ValidateReading(req models.IngestReadingRequest) error {
	if req.DeviceID == "" {
		return fmt.Errorf("%w: device_id is required", ErrInvalidReading)
	}
	if req.HeartRate < models.MinHeartRate || req.HeartRate > models.MaxHeartRate {
		return fmt.Errorf("%w: heart_rate %d outside [%d, %d]",
			ErrInvalidReading, req.HeartRate, models.MinHeartRate, models.MaxHeartRate)
	}
	if req.SpO2 != nil && (*req.SpO2 < models.MinSpO2 || *req.SpO2 > models.MaxSpO2) {
		return fmt.Errorf("%w: spo2 %d outside [%d, %d]",
			ErrInvalidReading, *req.SpO2, models.MinSpO2, models.MaxSpO2)
	}
	if req.Temperature != nil && (*req.Temperature < models.MinTemperature || *req.Temperature > models.MaxTemperature) {
		return fmt.Errorf("%w: temperature %.1f outside [%.1f, %.1f]",
			ErrInvalidReading, *req.Temperature, models.MinTemperature, models.MaxTemperature)
	}
	if !models.ValidBloodPressure(req.BloodPressure) {
		return fmt.Errorf("%w: blood_pressure %q is not of the form NNN/NN", ErrInvalidReading, req.BloodPressure)
	}
	return nil
}

// IngestReading validates and stores one sample, classifies it, raises an
// alert for abnormal readings, triggers notification dispatch when enabled
// and publishes events on the device stream.
//
// Notification delivery is best effort: a failed or skipped dispatch never
// fails the ingestion, the reading and alert are already durable.
func IngestReading(ctx context.Context, db *sqlite.DB, log *slog.Logger, hub *stream.Hub, dispatcher *notify.Dispatcher, req models.IngestReadingRequest) (*models.IngestResult, error) {
	if err := ValidateReading(req); err != nil {
		metrics.ReadingsRejected.Inc()
		return nil, err
	}

	capturedAt := time.Now().UTC()
	if req.CapturedAt != nil {
		capturedAt = req.CapturedAt.UTC()
	}
	reading := &models.Reading{
		DeviceID:      req.DeviceID,
		HeartRate:     req.HeartRate,
		SpO2:          req.SpO2,
		Temperature:   req.Temperature,
		BloodPressure: req.BloodPressure,
		CapturedAt:    capturedAt,
	}
	if err := db.InsertReading(ctx, reading); err != nil {
		return nil, fmt.Errorf("failed to store reading: %w", err)
	}
	metrics.ReadingsIngested.Inc()

	category := Classify(reading.HeartRate)
	result := &models.IngestResult{Reading: reading, Category: category}

	publish(hub, models.Event{Kind: models.EventReading, DeviceID: reading.DeviceID, Payload: reading})

	if !category.Abnormal() {
		return result, nil
	}

	alert := &models.Alert{
		DeviceID:  reading.DeviceID,
		Category:  category,
		HeartRate: reading.HeartRate,
		Message:   AlertMessage(category, reading.HeartRate),
		Severity:  category.Severity(),
		ReadingID: reading.ID,
	}
	if err := db.InsertAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to store alert: %w", err)
	}
	metrics.AlertsRaised(string(alert.Severity)).Inc()
	log.Warn("abnormal reading, alert raised",
		"device_id", alert.DeviceID,
		"alert_id", alert.ID,
		"category", alert.Category,
		"heart_rate", alert.HeartRate,
	)

	if dispatcher != nil && dispatcher.Enabled(ctx) {
		if _, err := dispatcher.Dispatch(ctx, alert); err != nil {
			if errors.Is(err, notify.ErrNoRecipients) {
				log.Warn("alert notification skipped", "alert_id", alert.ID, "reason", "no recipients")
			} else {
				log.Error("alert notification dispatch error", "alert_id", alert.ID, "error", err)
			}
		}
	}

	publish(hub, models.Event{Kind: models.EventAlertRaised, DeviceID: alert.DeviceID, Payload: alert})

	result.Alert = alert
	return result, nil
}

// GetLatestReading returns the newest stored reading for a device.
func GetLatestReading(ctx context.Context, db *sqlite.DB, deviceID string) (*models.Reading, error) {
	reading, err := db.LatestReading(ctx, deviceID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return nil, ErrReadingNotFound
		}
		return nil, fmt.Errorf("failed to load latest reading: %w", err)
	}
	return reading, nil
}

// GetReadingHistory returns a device's readings over the window, newest
// first, together with aggregate statistics over the returned rows.
func GetReadingHistory(ctx context.Context, db *sqlite.DB, deviceID string, window models.StatsWindow, limit int) (*models.ReadingHistory, error) {
	if limit <= 0 {
		limit = models.DefaultHistoryLimit
	}
	if limit > models.MaxHistoryLimit {
		limit = models.MaxHistoryLimit
	}

	end := time.Now().UTC()
	start := end.Add(-window.Duration())
	readings, err := db.ListReadingsSince(ctx, deviceID, start, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load reading history: %w", err)
	}

	return &models.ReadingHistory{
		Window:      window,
		WindowStart: start,
		WindowEnd:   end,
		Stats:       summarizeReadings(readings),
		Readings:    readings,
	}, nil
}

func summarizeReadings(readings []*models.Reading) models.ReadingStats {
	stats := models.ReadingStats{Count: len(readings)}
	if len(readings) == 0 {
		return stats
	}

	var (
		hrSum   int
		hrMin   = readings[0].HeartRate
		hrMax   = readings[0].HeartRate
		spo2Sum int
		spo2N   int
		tempSum float64
		tempN   int
	)
	for _, r := range readings {
		hrSum += r.HeartRate
		if r.HeartRate < hrMin {
			hrMin = r.HeartRate
		}
		if r.HeartRate > hrMax {
			hrMax = r.HeartRate
		}
		if r.SpO2 != nil {
			spo2Sum += *r.SpO2
			spo2N++
		}
		if r.Temperature != nil {
			tempSum += *r.Temperature
			tempN++
		}
	}

	stats.AvgHeartRate = hrSum / len(readings)
	stats.MinHeartRate = &hrMin
	stats.MaxHeartRate = &hrMax
	if spo2N > 0 {
		avg := spo2Sum / spo2N
		stats.AvgSpO2 = &avg
	}
	if tempN > 0 {
		avg := tempSum / float64(tempN)
		stats.AvgTemperature = &avg
	}
	return stats
}

func publish(hub *stream.Hub, event models.Event) {
	if hub == nil {
		return
	}
	hub.Publish(event)
	metrics.EventsPublished.Inc()
}
