// Package dispatch turns leak verdicts into audited, notified alert events.
// Logging and delivery are deliberately non-transactional: the audit append is
// attempted for every qualifying event, and a delivery failure never rolls it
// back.
package dispatch

import (
	"context"
	"errors"
	"log"
	"time"

	"aquawatch/internal/observability/metrics"
)

// AlertLog is the durable, append-only audit trail.
type AlertLog interface {
	Append(event Event) error
	Seen(deviceID string, ts time.Time) bool
}

// Archiver mirrors alert events into secondary storage. Best effort; failures
// are reported but never block the dispatch path.
type Archiver interface {
	Archive(ctx context.Context, event Event) error
}

// Outcome reports what happened to one dispatched event.
type Outcome struct {
	Duplicate bool
	Logged    bool
	Delivered bool
}

// Dispatcher deduplicates alert events, logs them durably, and attempts one
// best-effort outward delivery.
type Dispatcher struct {
	alertLog AlertLog
	channel  Channel
	archiver Archiver
	template *Template
	timeout  time.Duration
	logger   *log.Logger
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithChannel enables outward delivery. Absence disables delivery but not
// logging.
func WithChannel(channel Channel) Option {
	return func(d *Dispatcher) {
		d.channel = channel
	}
}

// WithArchiver enables the secondary alert archive.
func WithArchiver(archiver Archiver) Option {
	return func(d *Dispatcher) {
		d.archiver = archiver
	}
}

// WithDeliveryTimeout bounds each delivery attempt.
func WithDeliveryTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithTemplate overrides the alert title template.
func WithTemplate(template *Template) Option {
	return func(d *Dispatcher) {
		if template != nil {
			d.template = template
		}
	}
}

// NewDispatcher constructs a dispatcher over a durable alert log.
func NewDispatcher(alertLog AlertLog, logger *log.Logger, opts ...Option) (*Dispatcher, error) {
	if alertLog == nil {
		return nil, errors.New("dispatch: nil alert log")
	}
	if logger == nil {
		logger = log.Default()
	}
	template, err := NewTemplate("")
	if err != nil {
		return nil, err
	}
	dispatcher := &Dispatcher{
		alertLog: alertLog,
		template: template,
		timeout:  10 * time.Second,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(dispatcher)
	}
	return dispatcher, nil
}

// Dispatch runs one event through dedup, audit logging, archiving and
// delivery. It never returns an error: log and delivery failures are reported
// through the outcome and the logger, so ingestion always gets a decision.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) Outcome {
	if d == nil || d.alertLog == nil {
		return Outcome{}
	}
	if err := event.Validate(); err != nil {
		d.logger.Printf("dispatch: invalid event dropped: %v", err)
		return Outcome{}
	}

	if d.alertLog.Seen(event.DeviceID, event.Timestamp) {
		metrics.IncAlertDeduplicated()
		return Outcome{Duplicate: true}
	}

	outcome := Outcome{}
	if err := d.alertLog.Append(event); err != nil {
		metrics.IncAlertLogged(metrics.ResultError)
		d.logger.Printf("dispatch: audit append failed for %s: %v", event.Key(), err)
	} else {
		metrics.IncAlertLogged(metrics.ResultSuccess)
		outcome.Logged = true
	}

	if d.archiver != nil {
		if err := d.archiver.Archive(ctx, event); err != nil {
			d.logger.Printf("dispatch: archive failed for %s: %v", event.Key(), err)
		}
	}

	if d.channel == nil {
		return outcome
	}
	outcome.Delivered = d.deliver(ctx, event)
	return outcome
}

// deliver makes a single attempt; a non-success response or transport error is
// reported as a warning and swallowed.
func (d *Dispatcher) deliver(ctx context.Context, event Event) bool {
	sendCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	timestamp := event.Timestamp.UTC().Format(time.RFC3339)
	title, err := d.template.Render(event, timestamp)
	if err != nil {
		d.logger.Printf("dispatch: title render failed for %s: %v", event.Key(), err)
		title = "Leak Alert: device " + event.DeviceID
	}

	payload := Payload{
		DeviceID:    event.DeviceID,
		FlowRate:    event.FlowRate,
		WaterLevel:  event.WaterLevel,
		Temperature: event.Temperature,
		Timestamp:   timestamp,
		Title:       title,
	}
	if err := d.channel.Send(sendCtx, payload); err != nil {
		metrics.IncAlertDelivered(metrics.ResultError)
		d.logger.Printf("dispatch: delivery failed for %s: %v", event.Key(), err)
		return false
	}
	metrics.IncAlertDelivered(metrics.ResultSuccess)
	return true
}
