package notify

import (
	"context"

	"github.com/goliatone/go-print"

	users "github.com/ogehub/go-users"
)

// Outbound is the logged form of a notification.
type Outbound struct {
	Kind    string `json:"kind"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Link    string `json:"link"`
	Name    string `json:"name,omitempty"`
}

// LogNotifier writes notifications to the log instead of sending them. It
// is the delivery channel when no SMTP server is configured.
type LogNotifier struct {
	logger users.Logger
}

var _ users.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger users.Logger) *LogNotifier {
	if logger == nil {
		logger = users.NopLogger()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) SendVerificationLink(_ context.Context, email, link, displayName string) error {
	l.log(Outbound{
		Kind:    string(kindVerification),
		To:      email,
		Subject: SubjectVerifyEmail,
		Link:    link,
		Name:    displayName,
	})
	return nil
}

func (l *LogNotifier) SendResetLink(_ context.Context, email, link string) error {
	l.log(Outbound{
		Kind:    string(kindReset),
		To:      email,
		Subject: SubjectResetPassword,
		Link:    link,
	})
	return nil
}

func (l *LogNotifier) log(msg Outbound) {
	l.logger.Info("outbound notification", "message", print.MaybePrettyJSON(msg))
}
