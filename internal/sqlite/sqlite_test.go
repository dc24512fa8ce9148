package sqlite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/pulsegrid/pulsegrid/internal/config"
	"github.com/pulsegrid/pulsegrid/pkg/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInsertAndGetReading(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	spo2 := 97
	temp := 36.8
	reading := &models.Reading{
		DeviceID:      "monitor-1",
		HeartRate:     72,
		SpO2:          &spo2,
		Temperature:   &temp,
		BloodPressure: "118/76",
		CapturedAt:    time.Now().UTC(),
	}
	if err := db.InsertReading(ctx, reading); err != nil {
		t.Fatalf("InsertReading failed: %v", err)
	}
	if reading.ID == 0 {
		t.Fatal("reading id not assigned")
	}
	if reading.CreatedAt.IsZero() {
		t.Fatal("created_at not assigned")
	}

	stored, err := db.GetReading(ctx, reading.ID)
	if err != nil {
		t.Fatalf("GetReading failed: %v", err)
	}
	if stored.HeartRate != 72 {
		t.Errorf("heart rate = %d, want 72", stored.HeartRate)
	}
	if stored.SpO2 == nil || *stored.SpO2 != 97 {
		t.Errorf("spo2 = %v, want 97", stored.SpO2)
	}
	if stored.Temperature == nil || *stored.Temperature != 36.8 {
		t.Errorf("temperature = %v, want 36.8", stored.Temperature)
	}
	if stored.BloodPressure != "118/76" {
		t.Errorf("blood pressure = %q, want 118/76", stored.BloodPressure)
	}
}

func TestReadingOptionalFieldsStayNil(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	reading := &models.Reading{DeviceID: "monitor-1", HeartRate: 60, CapturedAt: time.Now().UTC()}
	if err := db.InsertReading(ctx, reading); err != nil {
		t.Fatalf("InsertReading failed: %v", err)
	}

	stored, err := db.GetReading(ctx, reading.ID)
	if err != nil {
		t.Fatalf("GetReading failed: %v", err)
	}
	if stored.SpO2 != nil || stored.Temperature != nil || stored.BloodPressure != "" {
		t.Errorf("optional fields not nil: %+v", stored)
	}
}

func TestLatestReadingNotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.LatestReading(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got err %v, want ErrNotFound", err)
	}
}

func TestListReadingsSinceOrdering(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	var ids []models.ReadingID
	for _, hr := range []int{60, 65, 70} {
		r := &models.Reading{DeviceID: "monitor-1", HeartRate: hr, CapturedAt: time.Now().UTC()}
		if err := db.InsertReading(ctx, r); err != nil {
			t.Fatalf("InsertReading failed: %v", err)
		}
		ids = append(ids, r.ID)
	}

	readings, err := db.ListReadingsSince(ctx, "monitor-1", time.Now().UTC().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("ListReadingsSince failed: %v", err)
	}
	if len(readings) != 3 {
		t.Fatalf("got %d readings, want 3", len(readings))
	}
	// Newest first; equal timestamps fall back to id order.
	if readings[0].ID != ids[2] {
		t.Errorf("first reading id = %d, want %d", readings[0].ID, ids[2])
	}

	limited, err := db.ListReadingsSince(ctx, "monitor-1", time.Now().UTC().Add(-time.Hour), 2)
	if err != nil {
		t.Fatalf("limited ListReadingsSince failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d readings with limit 2", len(limited))
	}
}

func insertAlert(t *testing.T, db *DB, deviceID string) *models.Alert {
	t.Helper()
	ctx := context.Background()
	reading := &models.Reading{DeviceID: deviceID, HeartRate: 130, CapturedAt: time.Now().UTC()}
	if err := db.InsertReading(ctx, reading); err != nil {
		t.Fatalf("InsertReading failed: %v", err)
	}
	alert := &models.Alert{
		DeviceID:  deviceID,
		Category:  models.CategoryCriticalHigh,
		HeartRate: 130,
		Message:   "Critical high heart rate: 130 bpm (> 110)",
		Severity:  models.SeverityCritical,
		ReadingID: reading.ID,
	}
	if err := db.InsertAlert(ctx, alert); err != nil {
		t.Fatalf("InsertAlert failed: %v", err)
	}
	return alert
}

func TestInsertAndGetAlert(t *testing.T) {
	db := testDB(t)
	alert := insertAlert(t, db, "monitor-1")

	stored, err := db.GetAlert(context.Background(), alert.ID)
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if stored.Category != models.CategoryCriticalHigh {
		t.Errorf("category = %s, want CRITICAL_HIGH", stored.Category)
	}
	if stored.Severity != models.SeverityCritical {
		t.Errorf("severity = %s, want critical", stored.Severity)
	}
	if stored.Handled || stored.HandledAt != nil || stored.HandledBy != "" {
		t.Errorf("fresh alert has handled fields set: %+v", stored)
	}
	if stored.Notified || stored.NotifiedAt != nil || stored.NotifyError != "" {
		t.Errorf("fresh alert has delivery fields set: %+v", stored)
	}
}

func TestMarkAlertHandledStore(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	alert := insertAlert(t, db, "monitor-1")

	if err := db.MarkAlertHandled(ctx, alert.ID, "nurse-7", time.Now().UTC()); err != nil {
		t.Fatalf("MarkAlertHandled failed: %v", err)
	}
	stored, err := db.GetAlert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if !stored.Handled || stored.HandledBy != "nurse-7" || stored.HandledAt == nil {
		t.Errorf("handled fields not set together: %+v", stored)
	}

	if err := db.MarkAlertHandled(ctx, 9999, "nurse-7", time.Now().UTC()); !errors.Is(err, ErrNotFound) {
		t.Errorf("got err %v, want ErrNotFound", err)
	}
}

func TestUpdateAlertDelivery(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	alert := insertAlert(t, db, "monitor-1")

	// Failed attempts carry no send timestamp.
	if err := db.UpdateAlertDelivery(ctx, alert.ID, false, nil, "connection refused"); err != nil {
		t.Fatalf("UpdateAlertDelivery failed: %v", err)
	}
	stored, _ := db.GetAlert(ctx, alert.ID)
	if stored.Notified || stored.NotifyError != "connection refused" || stored.NotifiedAt != nil {
		t.Errorf("failure outcome not recorded: %+v", stored)
	}

	// A later success overwrites all three fields as a unit.
	at := time.Now().UTC()
	if err := db.UpdateAlertDelivery(ctx, alert.ID, true, &at, ""); err != nil {
		t.Fatalf("second UpdateAlertDelivery failed: %v", err)
	}
	stored, _ = db.GetAlert(ctx, alert.ID)
	if !stored.Notified || stored.NotifyError != "" || stored.NotifiedAt == nil {
		t.Errorf("success outcome did not overwrite failure: %+v", stored)
	}

	if err := db.UpdateAlertDelivery(ctx, 9999, true, &at, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("got err %v, want ErrNotFound", err)
	}
}

func TestSettingsRoundtrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, err := db.GetSetting(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got err %v, want ErrNotFound", err)
	}
	if got := db.GetSettingWithDefault(ctx, "missing", "fallback"); got != "fallback" {
		t.Errorf("default = %q, want fallback", got)
	}

	if err := db.UpsertSetting(ctx, "alerts.enabled", "true", "boolean", "alerts", "", false); err != nil {
		t.Fatalf("UpsertSetting failed: %v", err)
	}
	if !db.GetBoolSetting(ctx, "alerts.enabled", false) {
		t.Error("bool setting not read back")
	}

	// Upsert overwrites in place.
	if err := db.UpsertSetting(ctx, "alerts.enabled", "false", "boolean", "alerts", "", false); err != nil {
		t.Fatalf("second UpsertSetting failed: %v", err)
	}
	if db.GetBoolSetting(ctx, "alerts.enabled", true) {
		t.Error("updated setting not read back")
	}

	if err := db.UpsertSetting(ctx, "alerts.request_timeout", "7s", "string", "alerts", "", false); err != nil {
		t.Fatalf("UpsertSetting failed: %v", err)
	}
	if got := db.GetDurationSetting(ctx, "alerts.request_timeout", time.Second); got != 7*time.Second {
		t.Errorf("duration setting = %v, want 7s", got)
	}
}

func TestListSettingsByCategory(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.UpsertSetting(ctx, "alerts.enabled", "true", "boolean", "alerts", "", false); err != nil {
		t.Fatalf("UpsertSetting failed: %v", err)
	}
	if err := db.UpsertSetting(ctx, "alerts.smtp_host", "mail.example.com", "string", "alerts", "", false); err != nil {
		t.Fatalf("UpsertSetting failed: %v", err)
	}
	if err := db.UpsertSetting(ctx, "display.timezone", "UTC", "string", "general", "", false); err != nil {
		t.Fatalf("UpsertSetting failed: %v", err)
	}

	settings, err := db.ListSettingsByCategory(ctx, "alerts")
	if err != nil {
		t.Fatalf("ListSettingsByCategory failed: %v", err)
	}
	if len(settings) != 2 {
		t.Fatalf("got %d settings, want 2", len(settings))
	}
	for _, s := range settings {
		if s.Category != "alerts" {
			t.Errorf("setting %s has category %q, want alerts", s.Key, s.Category)
		}
	}

	settings, err = db.ListSettingsByCategory(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("ListSettingsByCategory failed: %v", err)
	}
	if len(settings) != 0 {
		t.Errorf("got %d settings for unknown category, want 0", len(settings))
	}
}

func TestDeleteSetting(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.UpsertSetting(ctx, "alerts.enabled", "true", "boolean", "alerts", "", false); err != nil {
		t.Fatalf("UpsertSetting failed: %v", err)
	}
	if err := db.DeleteSetting(ctx, "alerts.enabled"); err != nil {
		t.Fatalf("DeleteSetting failed: %v", err)
	}
	if _, err := db.GetSetting(ctx, "alerts.enabled"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got err %v after delete, want ErrNotFound", err)
	}

	// Deleting an absent key is a no-op.
	if err := db.DeleteSetting(ctx, "alerts.enabled"); err != nil {
		t.Errorf("second DeleteSetting returned %v", err)
	}
}

func TestGetStringSliceSetting(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	defaults := []string{"fallback@example.com"}
	if got := db.GetStringSliceSetting(ctx, "alerts.recipients", defaults); len(got) != 1 || got[0] != "fallback@example.com" {
		t.Errorf("default slice = %v", got)
	}

	if err := db.UpsertSetting(ctx, "alerts.recipients", " a@example.com , b@example.com ,", "string", "alerts", "", false); err != nil {
		t.Fatalf("UpsertSetting failed: %v", err)
	}
	got := db.GetStringSliceSetting(ctx, "alerts.recipients", nil)
	if len(got) != 2 || got[0] != "a@example.com" || got[1] != "b@example.com" {
		t.Errorf("parsed slice = %v, want two trimmed entries", got)
	}
}
