package events

import (
	"context"
	"time"

	"github.com/openvax/vaxclinic-platform/pkg/logging"
)

// Handler delivers one event to a transport. A returned error leaves the
// event undelivered for the next pass.
type Handler interface {
	Handle(ctx context.Context, event *Event) error
}

// LogHandler writes events to the structured log. It stands in for an SMS or
// push transport in deployments that have none configured.
type LogHandler struct {
	logger *logging.Logger
}

// NewLogHandler creates a log-backed handler.
func NewLogHandler(logger *logging.Logger) *LogHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogHandler{logger: logger}
}

// Handle logs the event.
func (h *LogHandler) Handle(_ context.Context, event *Event) error {
	h.logger.Info("appointment event",
		"event_id", event.ID,
		"event_type", event.Type,
		"clinic_id", event.ClinicID,
		"payload", string(event.Payload),
	)
	return nil
}

// Deliverer drains the outbox on a fixed interval.
type Deliverer struct {
	outbox    *Outbox
	handler   Handler
	interval  time.Duration
	batchSize int
	logger    *logging.Logger
}

// NewDeliverer creates a deliverer. Zero interval and batch size fall back
// to 2s and 25.
func NewDeliverer(outbox *Outbox, handler Handler, interval time.Duration, batchSize int, logger *logging.Logger) *Deliverer {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 25
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{outbox: outbox, handler: handler, interval: interval, batchSize: batchSize, logger: logger}
}

// Run delivers until ctx is cancelled.
func (d *Deliverer) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.DeliverPending(ctx)
		}
	}
}

// DeliverPending drains one batch. Failures are logged and retried on the
// next tick.
func (d *Deliverer) DeliverPending(ctx context.Context) {
	pending, err := d.outbox.FetchUndelivered(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("failed to fetch outbox events", "error", err)
		return
	}
	for _, event := range pending {
		if err := d.handler.Handle(ctx, event); err != nil {
			d.logger.Error("failed to deliver event", "event_id", event.ID, "error", err)
			continue
		}
		if err := d.outbox.MarkDelivered(ctx, event.ID); err != nil {
			d.logger.Error("failed to mark event delivered", "event_id", event.ID, "error", err)
		}
	}
}
