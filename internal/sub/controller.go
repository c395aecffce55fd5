// Package sub owns the subscription lifecycles against the relay transport:
// the bounded history fetch, the unbounded live tail, and on-demand bounded
// profile fetches. All incoming items pass the same validation before they
// can reach the event store.
package sub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/sandwichfarm/emojichat/internal/config"
	"github.com/sandwichfarm/emojichat/internal/ops"
	"github.com/sandwichfarm/emojichat/internal/profiles"
	"github.com/sandwichfarm/emojichat/internal/relay"
	"github.com/sandwichfarm/emojichat/internal/store"
)

// Logical subscription purposes. At most one handle per purpose is active;
// starting a new one cancels its predecessor.
const (
	PurposeHistory  = "history"
	PurposeLive     = "live"
	PurposeProfiles = "profiles"
)

// ErrValidation marks an incoming item that is not a structurally valid
// event. Such items are dropped with a diagnostic and never stored.
var ErrValidation = errors.New("invalid event")

// TransportError reports a terminal failure of a bounded subscription.
// Live subscriptions never produce it; they retry instead.
type TransportError struct {
	Purpose string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s subscription failed: %v", e.Purpose, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Controller drives the subscription state machines and feeds validated
// events into the store and profile cache.
type Controller struct {
	transport relay.Transport
	store     *store.Store
	profiles  *profiles.Cache
	logger    *ops.Logger

	publishRelays []string
	profileRelays []string
	historyLimit  int
	retryBackoff  time.Duration

	handles handleSet
}

// NewController wires a controller from config and collaborators
func NewController(cfg *config.Config, transport relay.Transport, st *store.Store, pc *profiles.Cache, logger *ops.Logger) *Controller {
	backoff := time.Duration(cfg.Relays.Policy.RetryBackoffMs) * time.Millisecond
	if backoff <= 0 {
		backoff = 5 * time.Second
	}

	return &Controller{
		transport:     transport,
		store:         st,
		profiles:      pc,
		logger:        logger.WithComponent("sub"),
		publishRelays: cfg.Relays.Publish,
		profileRelays: cfg.Relays.Profiles,
		historyLimit:  cfg.Feed.HistoryLimit,
		retryBackoff:  backoff,
	}
}

// FetchHistory starts a fresh bounded fetch of the most recent notes. Any
// prior history run is cancelled first. The returned handle completes on
// the end-of-stored-events marker or fails terminally on transport error.
func (c *Controller) FetchHistory(ctx context.Context) *Handle {
	filter := nostr.Filter{
		Kinds: []int{nostr.KindTextNote},
		Limit: c.historyLimit,
	}
	return c.startBounded(ctx, PurposeHistory, c.publishRelays, filter)
}

// FetchProfiles starts a bounded metadata fetch for the given author batch.
// A new batch supersedes any in-flight profile fetch: slow results from the
// old batch are dropped, not merged.
func (c *Controller) FetchProfiles(ctx context.Context, authors []string) *Handle {
	if len(authors) == 0 {
		return nil
	}
	c.logger.LogProfileBatch(len(authors), c.handles.peek(PurposeProfiles) != nil)

	filter := nostr.Filter{
		Kinds:   []int{nostr.KindProfileMetadata},
		Authors: authors,
	}
	return c.startBounded(ctx, PurposeProfiles, c.profileRelays, filter)
}

// StartLive opens the unbounded live tail: one substream per publish relay,
// each with its own retry loop so one failing relay never interrupts the
// others. The handle terminates only through cancellation.
func (c *Controller) StartLive(ctx context.Context) *Handle {
	subCtx, cancel := context.WithCancel(ctx)
	handle := newHandle(PurposeLive, Unbounded, cancel)
	c.handles.replace(PurposeLive, handle)

	handle.transition(Active)
	c.logger.LogSubscription(PurposeLive, Active.String(), "relays", len(c.publishRelays))

	filter := nostr.Filter{Kinds: []int{nostr.KindTextNote}}
	for _, relayURL := range c.publishRelays {
		go c.runSubstream(subCtx, handle, relayURL, filter)
	}

	return handle
}

// Cancel cancels the active handle for a purpose, if any
func (c *Controller) Cancel(purpose string) {
	if h := c.handles.peek(purpose); h != nil {
		h.Cancel()
	}
}

// Shutdown cancels every active subscription
func (c *Controller) Shutdown() {
	for _, purpose := range []string{PurposeHistory, PurposeLive, PurposeProfiles} {
		c.Cancel(purpose)
	}
}

// startBounded runs the shared bounded-subscription loop for history and
// profile fetches.
func (c *Controller) startBounded(ctx context.Context, purpose string, relays []string, filter nostr.Filter) *Handle {
	subCtx, cancel := context.WithCancel(ctx)
	handle := newHandle(purpose, Bounded, cancel)
	c.handles.replace(purpose, handle)

	go func() {
		handle.transition(Active)
		c.logger.LogSubscription(purpose, Active.String(), "relays", len(relays))

		stream := c.transport.SubscribeBounded(subCtx, relays, filter)
		for env := range stream {
			if env.EOSE {
				handle.finish(Completed, nil)
				c.logger.LogSubscription(purpose, Completed.String())
				return
			}
			c.ingest(env)
		}

		// Stream closed without the marker: cancellation or transport
		// failure. A context error means someone above us pulled the plug,
		// whether through Handle.Cancel or the caller's own context; that
		// is never a transport failure.
		if subCtx.Err() != nil {
			handle.finish(Cancelled, nil)
			return
		}
		err := fmt.Errorf("stream closed before end of stored events")
		handle.finish(Failed, &TransportError{Purpose: purpose, Err: err})
		c.logger.LogSubscription(purpose, Failed.String(), "error", err)
	}()

	return handle
}

// runSubstream tails one relay and reconnects with a fixed backoff until
// the subscription is cancelled. Other relays' substreams are unaffected.
func (c *Controller) runSubstream(ctx context.Context, handle *Handle, relayURL string, filter nostr.Filter) {
	for {
		stream := c.transport.SubscribeLive(ctx, relayURL, filter)
		for env := range stream {
			if env.EOSE {
				continue
			}
			c.ingest(env)
		}

		if ctx.Err() != nil {
			return
		}

		err := fmt.Errorf("live stream from %s closed", relayURL)
		c.logger.LogRelayRetry(relayURL, c.retryBackoff, err)
		handle.transition(Retrying)

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.retryBackoff):
		}
		handle.transition(Active)
	}
}

// ingest validates one incoming envelope and routes it to the store or the
// profile cache. Invalid items are dropped with a diagnostic.
func (c *Controller) ingest(env relay.Envelope) {
	event := env.Event
	if err := validate(event); err != nil {
		id := ""
		if event != nil {
			id = event.ID
		}
		c.logger.LogDroppedEvent(env.Relay, err.Error(), id)
		return
	}

	switch event.Kind {
	case nostr.KindTextNote:
		c.store.Add(event)

	case nostr.KindProfileMetadata:
		profile, err := profiles.ParseProfile(event)
		if err != nil {
			// A single bad metadata document; the cache stays as-is.
			c.logger.LogDroppedEvent(env.Relay, err.Error(), event.ID)
			return
		}
		c.profiles.Upsert(event.PubKey, profile)
	}
}

// validate checks that an incoming item is a structurally complete event of
// a kind this client consumes. The EOSE marker never reaches this point; it
// is routed to lifecycle handling upstream.
func validate(event *nostr.Event) error {
	if event == nil {
		return fmt.Errorf("%w: nil event", ErrValidation)
	}
	if event.ID == "" {
		return fmt.Errorf("%w: missing id", ErrValidation)
	}
	if event.PubKey == "" {
		return fmt.Errorf("%w: missing pubkey", ErrValidation)
	}
	if event.CreatedAt <= 0 {
		return fmt.Errorf("%w: missing created_at", ErrValidation)
	}
	if event.Kind != nostr.KindTextNote && event.Kind != nostr.KindProfileMetadata {
		return fmt.Errorf("%w: unsupported kind %d", ErrValidation, event.Kind)
	}
	return nil
}
