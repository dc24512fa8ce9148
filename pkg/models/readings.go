package models

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ReadingID uniquely identifies a stored reading.
type ReadingID int64

// Heart rate bounds accepted from devices. Values outside this range are
// rejected before anything is persisted.
const (
	MinHeartRate = 0
	MaxHeartRate = 250
)

// Optional vital ranges. A reading may omit any of these fields entirely.
const (
	MinSpO2        = 0
	MaxSpO2        = 100
	MinTemperature = -10.0
	MaxTemperature = 50.0
)

// bloodPressurePattern matches the "systolic/diastolic" wire format devices
// report, e.g. "120/80".
var bloodPressurePattern = regexp.MustCompile(`^\d{2,3}/\d{2,3}$`)

// Reading is one timestamped sensor sample from a monitoring device.
// Readings are immutable once stored; a correction is a new reading.
type Reading struct {
	ID            ReadingID `json:"id"`
	DeviceID      string    `json:"device_id"`
	HeartRate     int       `json:"heart_rate"`
	SpO2          *int      `json:"spo2,omitempty"`
	Temperature   *float64  `json:"temperature,omitempty"`
	BloodPressure string    `json:"blood_pressure,omitempty"`
	CapturedAt    time.Time `json:"captured_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// Systolic returns the systolic component of the blood pressure, or nil when
// no pressure was reported.
func (r *Reading) Systolic() *int {
	return bloodPressureComponent(r.BloodPressure, 0)
}

// Diastolic returns the diastolic component of the blood pressure, or nil when
// no pressure was reported.
func (r *Reading) Diastolic() *int {
	return bloodPressureComponent(r.BloodPressure, 1)
}

func bloodPressureComponent(pressure string, idx int) *int {
	if pressure == "" || !bloodPressurePattern.MatchString(pressure) {
		return nil
	}
	parts := strings.SplitN(pressure, "/", 2)
	v, err := strconv.Atoi(parts[idx])
	if err != nil {
		return nil
	}
	return &v
}

// ValidBloodPressure reports whether the given string is a well-formed
// "NN/NN" pressure value. The empty string is valid (field omitted).
func ValidBloodPressure(pressure string) bool {
	if pressure == "" {
		return true
	}
	return bloodPressurePattern.MatchString(pressure)
}

// IngestReadingRequest is the payload a device posts for each sample.
// CapturedAt is optional; arrival time is used when the device omits it.
type IngestReadingRequest struct {
	DeviceID      string     `json:"device_id"`
	HeartRate     int        `json:"heart_rate"`
	SpO2          *int       `json:"spo2"`
	Temperature   *float64   `json:"temperature"`
	BloodPressure string     `json:"blood_pressure"`
	CapturedAt    *time.Time `json:"captured_at"`
}

// IngestResult is returned to the device after a sample is processed. Alert
// is nil when the reading classified as normal.
type IngestResult struct {
	Reading  *Reading `json:"reading"`
	Alert    *Alert   `json:"alert,omitempty"`
	Category Category `json:"category"`
}

// ReadingStats summarises a window of readings for one device.
type ReadingStats struct {
	Count          int      `json:"count"`
	AvgHeartRate   int      `json:"avg_heart_rate"`
	MinHeartRate   *int     `json:"min_heart_rate,omitempty"`
	MaxHeartRate   *int     `json:"max_heart_rate,omitempty"`
	AvgSpO2        *int     `json:"avg_spo2,omitempty"`
	AvgTemperature *float64 `json:"avg_temperature,omitempty"`
}

// ReadingHistory bundles the readings of a time window with their aggregate
// statistics.
type ReadingHistory struct {
	Window      StatsWindow  `json:"window"`
	WindowStart time.Time    `json:"window_start"`
	WindowEnd   time.Time    `json:"window_end"`
	Stats       ReadingStats `json:"stats"`
	Readings    []*Reading   `json:"readings"`
}

// DefaultHistoryLimit caps reading history queries when the caller does not
// specify a limit.
const DefaultHistoryLimit = 100

// MaxHistoryLimit is the hard ceiling for a single history query.
const MaxHistoryLimit = 1000
