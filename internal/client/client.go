// Package client is the composition root: it owns every component of a
// session and wires them together explicitly. Nothing here is global; two
// clients in one process stay fully independent.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sandwichfarm/emojichat/internal/compose"
	"github.com/sandwichfarm/emojichat/internal/config"
	"github.com/sandwichfarm/emojichat/internal/feed"
	"github.com/sandwichfarm/emojichat/internal/ops"
	"github.com/sandwichfarm/emojichat/internal/profiles"
	"github.com/sandwichfarm/emojichat/internal/relay"
	"github.com/sandwichfarm/emojichat/internal/store"
	"github.com/sandwichfarm/emojichat/internal/sub"
)

// FeedListener receives each recomputed feed projection
type FeedListener func(entries []feed.Entry)

// Client is one emojichat session: event store, profile cache, subscription
// controller, projection and composer, bound to a set of relays and an
// optional signing identity.
type Client struct {
	cfg    *config.Config
	logger *ops.Logger

	store      *store.Store
	profiles   *profiles.Cache
	transport  relay.Transport
	signer     relay.Signer
	controller *sub.Controller
	projector  *feed.Projector
	composer   *compose.Composer

	watchdog       time.Duration
	closeTransport func()

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener FeedListener
}

// New builds a session from config. The signing key may be absent; the
// session then works read-only and Send fails with a signing error.
func New(cfg *config.Config, logger *ops.Logger) (*Client, error) {
	signer, err := relay.NewKeySigner(cfg.Identity.Nsec)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	c := newSession(cfg, logger, signer)
	transport := relay.New(c.ctx, cfg.Relays.Policy, logger)
	c.bind(transport)
	c.closeTransport = transport.Close
	return c, nil
}

// NewWithTransport builds a session over a caller-supplied transport and
// signer. The production constructor is New; this one exists so the session
// wiring can be exercised against substitute transports.
func NewWithTransport(cfg *config.Config, logger *ops.Logger, transport relay.Transport, signer relay.Signer) *Client {
	c := newSession(cfg, logger, signer)
	c.bind(transport)
	return c
}

func newSession(cfg *config.Config, logger *ops.Logger, signer relay.Signer) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	watchdog := time.Duration(cfg.Feed.EoseTimeoutSeconds) * time.Second
	if watchdog <= 0 {
		watchdog = 20 * time.Second
	}

	return &Client{
		cfg:      cfg,
		logger:   logger,
		store:    store.New(),
		profiles: profiles.NewCache(),
		signer:   signer,
		watchdog: watchdog,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// bind wires the transport-dependent components
func (c *Client) bind(transport relay.Transport) {
	cfg, logger, signer := c.cfg, c.logger, c.signer

	c.transport = transport
	c.controller = sub.NewController(cfg, c.transport, c.store, c.profiles, logger)
	c.composer = compose.New(signer, c.transport, cfg.Relays.Publish, logger)
	c.projector = feed.NewProjector(c.store, c.profiles, logger,
		func(authors []string) {
			// Profile fetches ride the session context, not the
			// projection's caller: a superseding batch cancels them, the
			// caller going away does not.
			c.controller.FetchProfiles(c.ctx, authors)
		},
		c.dispatch,
	)
	c.projector.Attach()
}

// OnFeed registers the presentation callback. The current projection is
// delivered immediately so a late subscriber starts from a rendered state.
func (c *Client) OnFeed(fn FeedListener) {
	c.mu.Lock()
	c.listener = fn
	c.mu.Unlock()
	c.projector.Rebuild()
}

func (c *Client) dispatch(entries []feed.Entry) {
	c.mu.Lock()
	fn := c.listener
	c.mu.Unlock()
	if fn != nil {
		fn(entries)
	}
}

// Connect resolves the signing identity. Failure is reported but leaves the
// session usable for reading.
func (c *Client) Connect(ctx context.Context) (string, error) {
	pubkey, err := c.signer.PublicKey(ctx)
	if err != nil {
		return "", &compose.SigningError{Err: err}
	}
	c.logger.Info("connected", "pubkey", profiles.TruncatePubkey(pubkey))
	return pubkey, nil
}

// FetchHistory starts a fresh bounded history fetch and waits for it. The
// configured watchdog unblocks the call if no end-of-stored-events marker
// arrives in time; the subscription itself keeps running, so late stored
// events still land in the feed. A transport failure of the bounded fetch
// is terminal and returned; the caller may re-trigger.
func (c *Client) FetchHistory(ctx context.Context) error {
	handle := c.controller.FetchHistory(c.ctx)

	select {
	case <-handle.Done():
		if handle.State() == sub.Failed {
			return handle.Err()
		}
		return nil
	case <-time.After(c.watchdog):
		c.logger.Warn("history fetch watchdog fired, feed may still be loading",
			"timeout", c.watchdog.String())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartLive opens the live tail. Call once per session; a second call
// replaces the first.
func (c *Client) StartLive() {
	c.controller.StartLive(c.ctx)
}

// Composer exposes the composition flow (input buffer, reply context, Send)
func (c *Client) Composer() *compose.Composer {
	return c.composer
}

// Profiles exposes the profile cache for display resolution
func (c *Client) Profiles() *profiles.Cache {
	return c.profiles
}

// Store exposes the event store
func (c *Client) Store() *store.Store {
	return c.store
}

// Close tears the session down: all subscriptions are cancelled and relay
// connections closed.
func (c *Client) Close() {
	c.controller.Shutdown()
	c.cancel()
	if c.closeTransport != nil {
		c.closeTransport()
	}
}
