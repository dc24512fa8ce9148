package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pulsegrid/pulsegrid/pkg/models"
)

const (
	getSettingQuery = `SELECT value FROM settings WHERE key = ?`

	listSettingsQuery = `SELECT key, value, value_type, category, description, is_sensitive, updated_at
FROM settings
ORDER BY category, key`

	listSettingsByCategoryQuery = `SELECT key, value, value_type, category, description, is_sensitive, updated_at
FROM settings
WHERE category = ?
ORDER BY key`

	upsertSettingQuery = `INSERT INTO settings (key, value, value_type, category, description, is_sensitive, updated_at)
VALUES (?, ?, ?, ?, ?, ?, datetime('now'))
ON CONFLICT(key) DO UPDATE SET
    value = excluded.value,
    value_type = excluded.value_type,
    category = excluded.category,
    description = excluded.description,
    is_sensitive = excluded.is_sensitive,
    updated_at = datetime('now')`

	deleteSettingQuery = `DELETE FROM settings WHERE key = ?`
)

// GetSetting retrieves a setting value from the database.
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := db.readDB.QueryRowContext(ctx, getSettingQuery, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// GetSettingWithDefault retrieves a setting value or returns the default if not found.
func (db *DB) GetSettingWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := db.GetSetting(ctx, key)
	if err != nil {
		return defaultValue
	}
	return value
}

// GetBoolSetting retrieves a boolean setting value.
func (db *DB) GetBoolSetting(ctx context.Context, key string, defaultValue bool) bool {
	value, err := db.GetSetting(ctx, key)
	if err != nil {
		return defaultValue
	}
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolVal
}

// GetIntSetting retrieves an integer setting value.
func (db *DB) GetIntSetting(ctx context.Context, key string, defaultValue int) int {
	value, err := db.GetSetting(ctx, key)
	if err != nil {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// GetDurationSetting retrieves a duration setting value.
func (db *DB) GetDurationSetting(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	value, err := db.GetSetting(ctx, key)
	if err != nil {
		return defaultValue
	}
	durationVal, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return durationVal
}

// GetStringSliceSetting retrieves a comma separated list setting, trimming
// whitespace and dropping empty entries.
func (db *DB) GetStringSliceSetting(ctx context.Context, key string, defaultValue []string) []string {
	value, err := db.GetSetting(ctx, key)
	if err != nil {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// ListSettings retrieves all settings.
func (db *DB) ListSettings(ctx context.Context) ([]models.Setting, error) {
	rows, err := db.readDB.QueryContext(ctx, listSettingsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()
	return collectSettings(rows)
}

// ListSettingsByCategory retrieves settings for a specific category.
func (db *DB) ListSettingsByCategory(ctx context.Context, category string) ([]models.Setting, error) {
	rows, err := db.readDB.QueryContext(ctx, listSettingsByCategoryQuery, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings for category %s: %w", category, err)
	}
	defer rows.Close()
	return collectSettings(rows)
}

// UpsertSetting inserts or updates a setting.
func (db *DB) UpsertSetting(ctx context.Context, key, value, valueType, category, description string, isSensitive bool) error {
	_, err := db.writeDB.ExecContext(ctx, upsertSettingQuery,
		key,
		value,
		valueType,
		category,
		nullableString(description),
		boolToInt(isSensitive),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting deletes a setting.
func (db *DB) DeleteSetting(ctx context.Context, key string) error {
	if _, err := db.writeDB.ExecContext(ctx, deleteSettingQuery, key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

func collectSettings(rows *sql.Rows) ([]models.Setting, error) {
	var settings []models.Setting
	for rows.Next() {
		var (
			s           models.Setting
			description sql.NullString
			isSensitive int
		)
		if err := rows.Scan(&s.Key, &s.Value, &s.ValueType, &s.Category, &description, &isSensitive, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		if description.Valid {
			s.Description = description.String
		}
		s.IsSensitive = isSensitive != 0
		settings = append(settings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}
	return settings, nil
}
