package metrics

import (
	"context"

	"modrelay/internal/discord"
	"modrelay/internal/types"
)

// Delivery matches the webhook client's Send signature.
type Delivery interface {
	Send(ctx context.Context, destination string, msg *discord.Message, opts discord.SendOptions) (*discord.Result, error)
}

// InstrumentedDelivery wraps a Delivery and records outcome and latency
// metrics under a fixed label. The label is the logical destination or source
// name, never the webhook URL.
type InstrumentedDelivery struct {
	next    Delivery
	metrics DeliveryMetrics
	label   string
	clock   types.Clock
}

// Instrument wraps next so every Send is recorded under label.
func Instrument(next Delivery, m DeliveryMetrics, label string, clock types.Clock) *InstrumentedDelivery {
	return &InstrumentedDelivery{next: next, metrics: m, label: label, clock: clock}
}

// Send delegates to the wrapped delivery and records the attempt.
func (d *InstrumentedDelivery) Send(ctx context.Context, destination string, msg *discord.Message, opts discord.SendOptions) (*discord.Result, error) {
	start := d.clock.Now()
	res, err := d.next.Send(ctx, destination, msg, opts)
	d.metrics.RecordLatency(ctx, d.label, d.clock.Now().Sub(start))

	switch {
	case err != nil:
		d.metrics.RecordDelivery(ctx, d.label, ResultFailure)
	default:
		d.metrics.RecordDelivery(ctx, d.label, ResultFor(res.Success, res.RateLimited))
	}
	return res, err
}
