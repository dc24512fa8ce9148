package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/pulsegrid/pulsegrid/internal/config"
	"github.com/pulsegrid/pulsegrid/internal/sqlite"
	"github.com/pulsegrid/pulsegrid/pkg/models"
)

type fakeSender struct {
	sent      []Notification
	messageID string
	err       error
}

func (f *fakeSender) Send(_ context.Context, n Notification) (string, error) {
	f.sent = append(f.sent, n)
	return f.messageID, f.err
}

func testDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(sqlite.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func insertTestAlert(t *testing.T, db *sqlite.DB) *models.Alert {
	t.Helper()
	ctx := context.Background()

	reading := &models.Reading{DeviceID: "monitor-1", HeartRate: 130, CapturedAt: time.Now().UTC()}
	if err := db.InsertReading(ctx, reading); err != nil {
		t.Fatalf("failed to insert reading: %v", err)
	}
	alert := &models.Alert{
		DeviceID:  "monitor-1",
		Category:  models.CategoryCriticalHigh,
		HeartRate: 130,
		Message:   "Critical high heart rate: 130 bpm (> 110)",
		Severity:  models.SeverityCritical,
		ReadingID: reading.ID,
	}
	if err := db.InsertAlert(ctx, alert); err != nil {
		t.Fatalf("failed to insert alert: %v", err)
	}
	return alert
}

func newTestDispatcher(db *sqlite.DB, sender Sender) *Dispatcher {
	d := NewDispatcher(db, config.AlertsConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.newSender = func(EmailSenderOptions) Sender { return sender }
	return d
}

func TestDispatchNoRecipients(t *testing.T) {
	db := testDB(t)
	alert := insertTestAlert(t, db)
	sender := &fakeSender{}
	d := newTestDispatcher(db, sender)

	_, err := d.Dispatch(context.Background(), alert)
	if !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("got err %v, want ErrNoRecipients", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("sender was invoked %d times, want 0", len(sender.sent))
	}

	// Delivery fields stay untouched when nothing was attempted.
	stored, err := db.GetAlert(context.Background(), alert.ID)
	if err != nil {
		t.Fatalf("failed to reload alert: %v", err)
	}
	if stored.Notified || stored.NotifiedAt != nil || stored.NotifyError != "" {
		t.Errorf("delivery fields were modified: %+v", stored)
	}
}

func TestDispatchSuccessRecordsDelivery(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if err := db.UpsertSetting(ctx, models.SettingAlertsRecipients, "oncall@example.com, backup@example.com", "string", "alerts", "", false); err != nil {
		t.Fatalf("failed to seed recipients: %v", err)
	}
	alert := insertTestAlert(t, db)
	sender := &fakeSender{messageID: "<msg-1@test>"}
	d := newTestDispatcher(db, sender)

	outcome, err := d.Dispatch(ctx, alert)
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if !outcome.Success || outcome.MessageID != "<msg-1@test>" {
		t.Errorf("outcome = %+v, want success with message id", outcome)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sender invoked %d times, want 1", len(sender.sent))
	}
	if got := sender.sent[0].Recipients; len(got) != 2 {
		t.Errorf("recipients = %v, want 2 entries", got)
	}

	stored, err := db.GetAlert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("failed to reload alert: %v", err)
	}
	if !stored.Notified {
		t.Error("alert not marked notified")
	}
	if stored.NotifiedAt == nil {
		t.Error("notified_at not set")
	}
	if stored.NotifyError != "" {
		t.Errorf("notify_error = %q, want empty", stored.NotifyError)
	}
}

func TestDispatchFailureRecordsError(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if err := db.UpsertSetting(ctx, models.SettingAlertsRecipients, "oncall@example.com", "string", "alerts", "", false); err != nil {
		t.Fatalf("failed to seed recipients: %v", err)
	}
	alert := insertTestAlert(t, db)
	sender := &fakeSender{err: fmt.Errorf("connection refused")}
	d := newTestDispatcher(db, sender)

	outcome, err := d.Dispatch(ctx, alert)
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if outcome.Success {
		t.Error("outcome reports success for a failed send")
	}
	if outcome.Error == "" {
		t.Error("outcome error is empty")
	}

	stored, err := db.GetAlert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("failed to reload alert: %v", err)
	}
	if stored.Notified {
		t.Error("failed send marked notified")
	}
	// A timestamp means "sent at"; transport failures must leave it null.
	if stored.NotifiedAt != nil {
		t.Errorf("notified_at = %v after transport failure, want null", stored.NotifiedAt)
	}
	if stored.NotifyError == "" {
		t.Error("notify_error not recorded")
	}
	if alert.NotifiedAt != nil {
		t.Errorf("in-memory notified_at = %v after transport failure, want nil", alert.NotifiedAt)
	}
}

// A later attempt overwrites the delivery fields as a unit, whatever the
// earlier outcome was.
func TestDispatchOverwritesPreviousOutcome(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if err := db.UpsertSetting(ctx, models.SettingAlertsRecipients, "oncall@example.com", "string", "alerts", "", false); err != nil {
		t.Fatalf("failed to seed recipients: %v", err)
	}
	alert := insertTestAlert(t, db)

	failing := &fakeSender{err: fmt.Errorf("timeout")}
	if _, err := newTestDispatcher(db, failing).Dispatch(ctx, alert); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}

	working := &fakeSender{messageID: "<msg-2@test>"}
	if _, err := newTestDispatcher(db, working).Dispatch(ctx, alert); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}

	stored, err := db.GetAlert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("failed to reload alert: %v", err)
	}
	if !stored.Notified {
		t.Error("retry success not recorded")
	}
	if stored.NotifiedAt == nil {
		t.Error("send time not recorded on retry success")
	}
	if stored.NotifyError != "" {
		t.Errorf("stale notify_error survived retry: %q", stored.NotifyError)
	}
}

func TestEnabledReadsSettings(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	d := newTestDispatcher(db, &fakeSender{})

	if d.Enabled(ctx) {
		t.Error("enabled with no setting and false default")
	}
	if err := db.UpsertSetting(ctx, models.SettingAlertsEnabled, "true", "boolean", "alerts", "", false); err != nil {
		t.Fatalf("failed to seed setting: %v", err)
	}
	if !d.Enabled(ctx) {
		t.Error("setting change not picked up without restart")
	}
}
