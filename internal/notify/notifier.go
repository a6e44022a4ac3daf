// Package notify delivers fire-and-forget user notifications.
package notify

import (
	"context"

	"dude/internal/infra"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a single user-facing notice.
type Notification struct {
	Severity Severity
	Title    string
	Body     string
}

// Notifier emits notifications. Implementations must not block the caller on
// delivery and must never fail the surrounding operation.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// LogNotifier writes notifications to the service log. It stands in for a push
// delivery channel in environments without one.
type LogNotifier struct {
	logger infra.Logger
}

func NewLogNotifier(logger infra.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, notification Notification) {
	event := n.logger.Info()
	switch notification.Severity {
	case SeverityWarning:
		event = n.logger.Warn()
	case SeverityError:
		event = n.logger.Error()
	}
	event.Str("title", notification.Title).Msg(notification.Body)
}

var _ Notifier = (*LogNotifier)(nil)
