package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pulsegrid/pulsegrid/pkg/models"
)

const (
	insertAlertQuery = `INSERT INTO alerts (
    device_id,
    category,
    heart_rate,
    message,
    severity,
    reading_id
) VALUES (?, ?, ?, ?, ?, ?)
RETURNING id, created_at`

	selectAlertBase = `SELECT
    id,
    device_id,
    category,
    heart_rate,
    message,
    severity,
    reading_id,
    handled,
    handled_by,
    handled_at,
    notified,
    notified_at,
    notify_error,
    created_at
FROM alerts`

	markHandledQuery = `UPDATE alerts
SET handled = 1,
    handled_by = ?,
    handled_at = ?
WHERE id = ?`

	updateDeliveryQuery = `UPDATE alerts
SET notified = ?,
    notified_at = ?,
    notify_error = ?
WHERE id = ?`

	unhandledAlertsQuery = selectAlertBase + `
WHERE handled = 0`

	alertStatsQuery = `SELECT
    COUNT(*),
    COALESCE(SUM(CASE WHEN severity = 'critical' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN severity != 'critical' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(handled), 0),
    COALESCE(SUM(1 - handled), 0)
FROM alerts
WHERE created_at >= ?`
)

// InsertAlert stores a newly raised alert and fills in its id and created
// timestamp.
func (db *DB) InsertAlert(ctx context.Context, alert *models.Alert) error {
	if alert == nil {
		return fmt.Errorf("alert payload is required")
	}

	row := db.writeDB.QueryRowContext(ctx, insertAlertQuery,
		alert.DeviceID,
		string(alert.Category),
		alert.HeartRate,
		alert.Message,
		string(alert.Severity),
		int64(alert.ReadingID),
	)

	var (
		id        int64
		createdAt time.Time
	)
	if err := row.Scan(&id, &createdAt); err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	alert.ID = models.AlertID(id)
	alert.CreatedAt = createdAt
	return nil
}

// GetAlert retrieves an alert by id.
func (db *DB) GetAlert(ctx context.Context, alertID models.AlertID) (*models.Alert, error) {
	row := db.readDB.QueryRowContext(ctx, selectAlertBase+" WHERE id = ?", int64(alertID))
	return scanAlert(row)
}

// MarkAlertHandled sets the handled triple on an alert. The update is
// unconditional: re-marking rewrites the same terminal state and a racing
// second actor wins (last writer wins, no optimistic guard).
func (db *DB) MarkAlertHandled(ctx context.Context, alertID models.AlertID, actor string, at time.Time) error {
	res, err := db.writeDB.ExecContext(ctx, markHandledQuery, actor, at.UTC(), int64(alertID))
	if err != nil {
		return fmt.Errorf("failed to mark alert handled: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAlertDelivery overwrites the delivery fields as a unit with the
// outcome of the latest dispatch attempt.
func (db *DB) UpdateAlertDelivery(ctx context.Context, alertID models.AlertID, notified bool, notifiedAt *time.Time, notifyError string) error {
	var at any
	if notifiedAt != nil {
		at = notifiedAt.UTC()
	}
	res, err := db.writeDB.ExecContext(ctx, updateDeliveryQuery,
		boolToInt(notified),
		at,
		nullableString(notifyError),
		int64(alertID),
	)
	if err != nil {
		return fmt.Errorf("failed to update alert delivery status: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAlerts returns one page of alerts matching the filter, newest first,
// along with the total count over the same filter.
func (db *DB) ListAlerts(ctx context.Context, filter models.AlertFilter, limit, offset int) ([]*models.Alert, int, error) {
	where, args := buildAlertFilter(filter)

	countQuery := "SELECT COUNT(*) FROM alerts" + where
	var total int
	if err := db.readDB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	listQuery := selectAlertBase + where + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	listArgs := append(append([]any{}, args...), limit, offset)
	rows, err := db.readDB.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, 0, err
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating alerts: %w", err)
	}
	return alerts, total, nil
}

// ListUnhandledAlerts returns the most recent unhandled alerts, optionally
// scoped to one device.
func (db *DB) ListUnhandledAlerts(ctx context.Context, deviceID string, limit int) ([]*models.Alert, error) {
	query := unhandledAlertsQuery
	args := []any{}
	if deviceID != "" {
		query += " AND device_id = ?"
		args = append(args, deviceID)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unhandled alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unhandled alerts: %w", err)
	}
	return alerts, nil
}

// CountAlertsSince computes the window statistics in a single pass so all
// counts come from the same snapshot.
func (db *DB) CountAlertsSince(ctx context.Context, deviceID string, since time.Time) (total, critical, warning, handled, unhandled int, err error) {
	query := alertStatsQuery
	args := []any{since.UTC().Format(sqliteTimeLayout)}
	if deviceID != "" {
		query += " AND device_id = ?"
		args = append(args, deviceID)
	}
	row := db.readDB.QueryRowContext(ctx, query, args...)
	if err = row.Scan(&total, &critical, &warning, &handled, &unhandled); err != nil {
		err = fmt.Errorf("failed to compute alert statistics: %w", err)
	}
	return
}

func buildAlertFilter(filter models.AlertFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.DeviceID != "" {
		clauses = append(clauses, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.Handled != nil {
		clauses = append(clauses, "handled = ?")
		args = append(args, boolToInt(*filter.Handled))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var (
		alert       models.Alert
		id          int64
		readingID   int64
		handled     int
		handledBy   sql.NullString
		handledAt   sql.NullTime
		notified    int
		notifiedAt  sql.NullTime
		notifyError sql.NullString
	)
	err := row.Scan(
		&id,
		&alert.DeviceID,
		&alert.Category,
		&alert.HeartRate,
		&alert.Message,
		&alert.Severity,
		&readingID,
		&handled,
		&handledBy,
		&handledAt,
		&notified,
		&notifiedAt,
		&notifyError,
		&alert.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan alert: %w", err)
	}
	alert.ID = models.AlertID(id)
	alert.ReadingID = models.ReadingID(readingID)
	alert.Handled = handled != 0
	if handledBy.Valid {
		alert.HandledBy = handledBy.String
	}
	if handledAt.Valid {
		t := handledAt.Time
		alert.HandledAt = &t
	}
	alert.Notified = notified != 0
	if notifiedAt.Valid {
		t := notifiedAt.Time
		alert.NotifiedAt = &t
	}
	if notifyError.Valid {
		alert.NotifyError = notifyError.String
	}
	return &alert, nil
}
