package alerting

import (
	"context"

	"github.com/TisoneK/selectorengine/telemetry/logging"
)

// Notifier delivers an Alert to one channel (spec §6 "notifications.channels
// ⊆ {log,email,webhook,slack}"). A concrete integration (SMTP, an HTTP
// webhook, a Slack bot token) can satisfy this later; apart from
// LogNotifier, the implementations here are deliberately stubs so Engine has
// something real, not a mock, to exercise in tests.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// LogNotifier writes alerts through a logging.Logger. This is the only
// notifier with a fully real delivery mechanism; the others need an actual
// integration to be more than a stub.
type LogNotifier struct{ logger logging.Logger }

func NewLogNotifier(logger logging.Logger) *LogNotifier {
	if logger == nil {
		logger = logging.New(nil)
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, a Alert) error {
	n.logger.WarnCtx(ctx, "alert: "+a.Message, "severity", a.Severity, "metric", a.Metric, "value", a.Value, "threshold", a.Threshold)
	return nil
}

// recordingNotifier is the shared shape behind Email/Webhook/Slack: each
// records delivered alerts in-process rather than reaching an external
// system, so callers can swap in a real client without changing Engine.
type recordingNotifier struct {
	delivered []Alert
}

func (n *recordingNotifier) record(a Alert) error {
	n.delivered = append(n.delivered, a)
	return nil
}

// Delivered returns every alert handed to this notifier so far.
func (n *recordingNotifier) Delivered() []Alert { return n.delivered }

// EmailNotifier is a stub satisfying Notifier for the "email" channel.
type EmailNotifier struct{ recordingNotifier }

func NewEmailNotifier() *EmailNotifier { return &EmailNotifier{} }
func (n *EmailNotifier) Notify(ctx context.Context, a Alert) error { return n.record(a) }

// WebhookNotifier is a stub satisfying Notifier for the "webhook" channel.
type WebhookNotifier struct{ recordingNotifier }

func NewWebhookNotifier() *WebhookNotifier { return &WebhookNotifier{} }
func (n *WebhookNotifier) Notify(ctx context.Context, a Alert) error { return n.record(a) }

// SlackNotifier is a stub satisfying Notifier for the "slack" channel.
type SlackNotifier struct{ recordingNotifier }

func NewSlackNotifier() *SlackNotifier { return &SlackNotifier{} }
func (n *SlackNotifier) Notify(ctx context.Context, a Alert) error { return n.record(a) }
