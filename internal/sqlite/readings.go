package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pulsegrid/pulsegrid/pkg/models"
)

const (
	insertReadingQuery = `INSERT INTO readings (
    device_id,
    heart_rate,
    spo2,
    temperature,
    blood_pressure,
    captured_at
) VALUES (?, ?, ?, ?, ?, ?)
RETURNING id, created_at`

	selectReadingBase = `SELECT
    id,
    device_id,
    heart_rate,
    spo2,
    temperature,
    blood_pressure,
    captured_at,
    created_at
FROM readings`

	latestReadingQuery = selectReadingBase + `
WHERE device_id = ?
ORDER BY created_at DESC, id DESC
LIMIT 1`

	readingsSinceQuery = selectReadingBase + `
WHERE device_id = ? AND created_at >= ?
ORDER BY created_at DESC, id DESC
LIMIT ?`
)

// sqliteTimeLayout matches the format datetime('now') stores, so window
// cutoffs compare correctly against created_at defaults.
const sqliteTimeLayout = "2006-01-02 15:04:05"

// The readings table is append-only: there are intentionally no UPDATE or
// DELETE statements here. A correction is a new reading.

// InsertReading stores a new reading and fills in its id and created
// timestamp.
func (db *DB) InsertReading(ctx context.Context, reading *models.Reading) error {
	if reading == nil {
		return fmt.Errorf("reading payload is required")
	}

	row := db.writeDB.QueryRowContext(ctx, insertReadingQuery,
		reading.DeviceID,
		reading.HeartRate,
		nullableInt(reading.SpO2),
		nullableFloat(reading.Temperature),
		nullableString(reading.BloodPressure),
		reading.CapturedAt.UTC(),
	)

	var (
		id        int64
		createdAt time.Time
	)
	if err := row.Scan(&id, &createdAt); err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	reading.ID = models.ReadingID(id)
	reading.CreatedAt = createdAt
	return nil
}

// GetReading retrieves one reading by id.
func (db *DB) GetReading(ctx context.Context, id models.ReadingID) (*models.Reading, error) {
	row := db.readDB.QueryRowContext(ctx, selectReadingBase+" WHERE id = ?", int64(id))
	return scanReading(row)
}

// LatestReading returns the most recent reading for a device.
func (db *DB) LatestReading(ctx context.Context, deviceID string) (*models.Reading, error) {
	row := db.readDB.QueryRowContext(ctx, latestReadingQuery, deviceID)
	return scanReading(row)
}

// ListReadingsSince returns up to limit readings for a device created at or
// after the given time, newest first.
func (db *DB) ListReadingsSince(ctx context.Context, deviceID string, since time.Time, limit int) ([]*models.Reading, error) {
	rows, err := db.readDB.QueryContext(ctx, readingsSinceQuery, deviceID, since.UTC().Format(sqliteTimeLayout), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	defer rows.Close()

	var readings []*models.Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating readings: %w", err)
	}
	return readings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (*models.Reading, error) {
	var (
		reading       models.Reading
		id            int64
		spo2          sql.NullInt64
		temperature   sql.NullFloat64
		bloodPressure sql.NullString
	)
	err := row.Scan(
		&id,
		&reading.DeviceID,
		&reading.HeartRate,
		&spo2,
		&temperature,
		&bloodPressure,
		&reading.CapturedAt,
		&reading.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan reading: %w", err)
	}
	reading.ID = models.ReadingID(id)
	if spo2.Valid {
		v := int(spo2.Int64)
		reading.SpO2 = &v
	}
	if temperature.Valid {
		v := temperature.Float64
		reading.Temperature = &v
	}
	if bloodPressure.Valid {
		reading.BloodPressure = bloodPressure.String
	}
	return &reading, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
