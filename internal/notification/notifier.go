// Package notification delivers operator alerts about robot activity:
// placements, fills, lifecycle hooks and scheduled job results.
package notification

import (
	"context"

	"github.com/rxtech-lab/argo-robots/internal/logger"
	"go.uber.org/zap"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the log. It is used when no chat is configured.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notify")}
}

func (n *LogNotifier) Send(_ context.Context, alert Alert) error {
	n.log.Info(alert.Message, zap.String("level", string(alert.Level)), zap.String("title", alert.Title))

	return nil
}

// Deliver sends alert and logs a failure instead of returning it.
// Notifications never interrupt trading.
func Deliver(ctx context.Context, n Notifier, log *logger.Logger, alert Alert) {
	if n == nil {
		return
	}

	if err := n.Send(ctx, alert); err != nil {
		log.Warn("failed to deliver notification", zap.String("title", alert.Title), zap.Error(err))
	}
}

var (
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = (*TelegramNotifier)(nil)
)
