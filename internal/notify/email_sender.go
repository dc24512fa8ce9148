package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/pulsegrid/pulsegrid/pkg/models"
)

const (
	smtpSecurityNone     = "none"
	smtpSecurityStartTLS = "starttls"
	smtpSecurityTLS      = "tls"
)

type EmailSenderOptions struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	ReplyTo       string
	Security      string
	Timeout       time.Duration
	SkipTLSVerify bool
	Logger        *slog.Logger
}

// EmailSender delivers alert notifications over SMTP using a short-lived
// connection per dispatch.
type EmailSender struct {
	host          string
	port          int
	username      string
	password      string
	from          string
	replyTo       string
	security      string
	timeout       time.Duration
	skipTLSVerify bool
	logger        *slog.Logger
}

func NewEmailSender(opts EmailSenderOptions) *EmailSender {
	security := strings.ToLower(strings.TrimSpace(opts.Security))
	switch security {
	case smtpSecurityNone, smtpSecurityStartTLS, smtpSecurityTLS:
	default:
		security = smtpSecurityStartTLS
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailSender{
		host:          strings.TrimSpace(opts.Host),
		port:          opts.Port,
		username:      strings.TrimSpace(opts.Username),
		password:      opts.Password,
		from:          strings.TrimSpace(opts.From),
		replyTo:       strings.TrimSpace(opts.ReplyTo),
		security:      security,
		timeout:       timeout,
		skipTLSVerify: opts.SkipTLSVerify,
		logger:        logger.With("component", "email_sender"),
	}
}

// Send delivers the notification to every recipient. A shared message id
// identifies the batch; partial failures are collected and reported
// together.
func (s *EmailSender) Send(ctx context.Context, notification Notification) (string, error) {
	if notification.Alert == nil {
		return "", fmt.Errorf("notification has no alert")
	}
	recipients := uniqueEmails(notification.Recipients)
	if len(recipients) == 0 {
		return "", ErrNoRecipients
	}
	if s.host == "" || s.port == 0 || s.from == "" {
		return "", fmt.Errorf("smtp is not configured")
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), s.host)
	var errs []string
	for _, recipient := range recipients {
		message := s.buildMessage(notification, recipient, messageID)
		if err := s.sendEmail(ctx, recipient, message); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", recipient, err))
		}
	}
	if len(errs) > 0 {
		return messageID, fmt.Errorf("email delivery failed: %s", strings.Join(errs, "; "))
	}
	return messageID, nil
}

func (s *EmailSender) buildMessage(notification Notification, recipient, messageID string) []byte {
	alert := notification.Alert
	subject := fmt.Sprintf("[PulseGrid] %s alert for device %s",
		strings.ToUpper(string(alert.Severity)), alert.DeviceID)
	body := s.buildBody(alert)
	headers := []string{
		fmt.Sprintf("From: %s", s.from),
		fmt.Sprintf("To: %s", recipient),
		fmt.Sprintf("Subject: %s", subject),
		fmt.Sprintf("Message-ID: %s", messageID),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
	}
	if s.replyTo != "" {
		headers = append(headers, fmt.Sprintf("Reply-To: %s", s.replyTo))
	}
	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + body)
}

func (s *EmailSender) buildBody(alert *models.Alert) string {
	lines := []string{
		fmt.Sprintf("Device: %s", alert.DeviceID),
		fmt.Sprintf("Severity: %s", strings.ToUpper(string(alert.Severity))),
		fmt.Sprintf("Category: %s", alert.Category),
		fmt.Sprintf("Heart Rate: %d bpm", alert.HeartRate),
	}
	if alert.Message != "" {
		lines = append(lines, fmt.Sprintf("Message: %s", alert.Message))
	}
	lines = append(lines, fmt.Sprintf("Raised At: %s", alert.CreatedAt.Format(time.RFC3339)))
	if alert.Severity == models.SeverityCritical {
		lines = append(lines, "", "This reading is outside critical bounds. Immediate attention is required.")
	}
	return strings.Join(lines, "\n") + "\n"
}

func (s *EmailSender) sendEmail(ctx context.Context, recipient string, message []byte) error {
	client, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(s.from); err != nil {
		return err
	}
	if err := client.Rcpt(recipient); err != nil {
		return err
	}
	writer, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := writer.Write(message); err != nil {
		_ = writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func (s *EmailSender) connect(ctx context.Context) (*smtp.Client, error) {
	address := fmt.Sprintf("%s:%d", s.host, s.port)
	dialer := &net.Dialer{Timeout: s.timeout}
	var (
		conn net.Conn
		err  error
	)
	if s.security == smtpSecurityTLS {
		tlsConfig := &tls.Config{ServerName: s.host, InsecureSkipVerify: s.skipTLSVerify} // #nosec G402
		conn, err = tls.DialWithDialer(dialer, "tcp", address, tlsConfig)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", address)
	}
	if err != nil {
		return nil, err
	}
	if s.timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.timeout))
	}
	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if s.security == smtpSecurityStartTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			_ = client.Close()
			return nil, fmt.Errorf("smtp server does not support STARTTLS")
		}
		tlsConfig := &tls.Config{ServerName: s.host, InsecureSkipVerify: s.skipTLSVerify} // #nosec G402
		if err := client.StartTLS(tlsConfig); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	if s.username != "" {
		auth := smtp.PlainAuth("", s.username, s.password, s.host)
		if err := client.Auth(auth); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	return client, nil
}

func uniqueEmails(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, email := range emails {
		normalized := strings.TrimSpace(email)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
