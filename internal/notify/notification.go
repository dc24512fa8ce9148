package notify

import (
	"context"
	"errors"

	"github.com/pulsegrid/pulsegrid/pkg/models"
)

// ErrNoRecipients is returned by Dispatch when no recipient list is
// configured. The alert's delivery fields are left untouched in that case.
var ErrNoRecipients = errors.New("no notification recipients configured")

// Notification is one outbound alert message with its resolved recipients.
type Notification struct {
	Alert      *models.Alert
	Recipients []string
}

// Sender delivers a notification and returns an opaque message id on
// success.
type Sender interface {
	Send(ctx context.Context, notification Notification) (string, error)
}
