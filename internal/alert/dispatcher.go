package alert

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the per-channel delivery outcome. Skipped means the channel
// had no contact configured and was never attempted; it is distinct from
// a failed attempt.
type Status string

const (
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Outcome records one channel's result.
type Outcome struct {
	Channel string
	Status  Status
	Err     error
}

// Message is the channel-agnostic alert body. Channels use what they can:
// the chat bot sends Text only, email sends Subject plus Text and falls
// back to wrapping Text when HTML is empty.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// Channel is one delivery mechanism.
type Channel interface {
	Name() string
	// Configured reports whether the channel has enough contact data to
	// attempt a send at all.
	Configured() bool
	Send(ctx context.Context, msg Message) error
}

const defaultTimeout = 10 * time.Second

// Dispatcher fans a message out to its channels. Every channel is
// attempted independently under its own timeout; one channel failing or
// hanging never blocks or suppresses another.
type Dispatcher struct {
	channels []Channel
	timeout  time.Duration
}

func NewDispatcher(timeout time.Duration, channels ...Channel) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Dispatcher{channels: channels, timeout: timeout}
}

// Dispatch attempts delivery on every configured channel concurrently and
// returns one outcome per channel, in channel order.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) []Outcome {
	outcomes := make([]Outcome, len(d.channels))

	var g errgroup.Group
	for i, ch := range d.channels {
		if !ch.Configured() {
			outcomes[i] = Outcome{Channel: ch.Name(), Status: StatusSkipped}
			slog.DebugContext(ctx, "Alert channel not configured, skipping", "channel", ch.Name())
			continue
		}
		i, ch := i, ch
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()

			if err := ch.Send(sendCtx, msg); err != nil {
				outcomes[i] = Outcome{Channel: ch.Name(), Status: StatusFailed, Err: err}
				slog.WarnContext(ctx, "Alert delivery failed",
					"channel", ch.Name(),
					"error", err)
				return nil // a channel failure is recorded, not propagated
			}
			outcomes[i] = Outcome{Channel: ch.Name(), Status: StatusDelivered}
			slog.InfoContext(ctx, "Alert delivered", "channel", ch.Name())
			return nil
		})
	}
	g.Wait()

	return outcomes
}
