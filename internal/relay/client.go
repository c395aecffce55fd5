// Package relay wraps the wire transport to Nostr relays. The rest of the
// client consumes it through the Transport interface: subscriptions deliver
// parsed Envelopes, never raw payloads, and publishes report one status per
// relay.
package relay

import (
	"context"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/sandwichfarm/emojichat/internal/config"
	"github.com/sandwichfarm/emojichat/internal/ops"
)

// Envelope is a single parsed transport item: either an event or the
// end-of-stored-events marker. Exactly one of the two is set.
type Envelope struct {
	Event *nostr.Event
	EOSE  bool
	Relay string
}

// PublishStatus is one relay's acknowledgement of a publish
type PublishStatus struct {
	Relay   string
	OK      bool
	Message string
}

// Transport is the capability the subscription controller and composer
// consume. Implemented by Client; tests substitute fakes.
type Transport interface {
	// SubscribeBounded streams stored events matching the filter from all
	// given relays, emits a single EOSE envelope once stored events are
	// exhausted, then closes the channel.
	SubscribeBounded(ctx context.Context, relays []string, filter nostr.Filter) <-chan Envelope

	// SubscribeLive opens an unbounded stream against a single relay. The
	// channel closes when the underlying subscription dies; reconnecting is
	// the caller's responsibility.
	SubscribeLive(ctx context.Context, relay string, filter nostr.Filter) <-chan Envelope

	// Publish sends a signed event to the given relays and reports one
	// status per relay once all have responded or the context expires.
	Publish(ctx context.Context, relays []string, event *nostr.Event) []PublishStatus
}

// Client is the production Transport over a shared nostr.SimplePool
type Client struct {
	pool   *nostr.SimplePool
	policy config.RelayPolicy
	logger *ops.Logger
}

// New creates a relay client. The pool keeps one connection per relay URL
// across all subscriptions.
func New(ctx context.Context, policy config.RelayPolicy, logger *ops.Logger) *Client {
	return &Client{
		pool:   nostr.NewSimplePool(ctx),
		policy: policy,
		logger: logger.WithComponent("relay"),
	}
}

// ConnectTimeout returns the configured per-connection timeout
func (c *Client) ConnectTimeout() time.Duration {
	if c.policy.ConnectTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.policy.ConnectTimeoutMs) * time.Millisecond
}

// SubscribeBounded implements Transport using SubManyEose, which closes its
// channel after every relay reported EOSE. The close is translated into an
// explicit EOSE envelope so downstream code never has to interpret channel
// state.
func (c *Client) SubscribeBounded(ctx context.Context, relays []string, filter nostr.Filter) <-chan Envelope {
	out := make(chan Envelope, 64)
	go pumpBounded(ctx, c.pool.SubManyEose(ctx, relays, nostr.Filters{filter}), out)
	return out
}

// pumpBounded forwards pool events to out and terminates the stream with an
// EOSE envelope. Every send blocks until the consumer takes it; the marker in
// particular must not be dropped under backpressure, or a completed fetch
// would be reported as a transport failure.
func pumpBounded(ctx context.Context, in <-chan nostr.RelayEvent, out chan Envelope) {
	defer close(out)

	for relayEvent := range in {
		if relayEvent.Event == nil {
			continue
		}
		env := Envelope{Event: relayEvent.Event}
		if relayEvent.Relay != nil {
			env.Relay = relayEvent.Relay.URL
		}
		select {
		case out <- env:
		case <-ctx.Done():
			return
		}
	}

	// The pool closed the stream. Without a context error this means
	// stored events are exhausted.
	if ctx.Err() == nil {
		select {
		case out <- Envelope{EOSE: true}:
		case <-ctx.Done():
		}
	}
}

// SubscribeLive implements Transport with a single-relay SubMany stream
func (c *Client) SubscribeLive(ctx context.Context, relay string, filter nostr.Filter) <-chan Envelope {
	out := make(chan Envelope, 64)

	go func() {
		defer close(out)

		for relayEvent := range c.pool.SubMany(ctx, []string{relay}, nostr.Filters{filter}) {
			if relayEvent.Event == nil {
				continue
			}
			select {
			case out <- Envelope{Event: relayEvent.Event, Relay: relay}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Publish implements Transport using PublishMany and collects the per-relay
// results.
func (c *Client) Publish(ctx context.Context, relays []string, event *nostr.Event) []PublishStatus {
	statuses := make([]PublishStatus, 0, len(relays))

	for result := range c.pool.PublishMany(ctx, relays, *event) {
		status := PublishStatus{
			Relay: result.RelayURL,
			OK:    result.Error == nil,
		}
		if result.Error != nil {
			status.Message = result.Error.Error()
		}
		c.logger.LogPublishResult(event.ID, status.Relay, status.OK, status.Message)
		statuses = append(statuses, status)
	}

	return statuses
}

// Close closes all relay connections
func (c *Client) Close() {
	c.pool.Close("client shutting down")
}
