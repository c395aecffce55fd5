// Package compose builds, signs and publishes outgoing notes. Every failure
// leaves the compose buffer and reply context intact so the user can retry;
// only a confirmed publish clears them. There is no optimistic insert: the
// published note reaches the feed when the live subscription observes it
// coming back from a relay.
package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nbd-wtf/go-nostr"

	"github.com/sandwichfarm/emojichat/internal/feed"
	"github.com/sandwichfarm/emojichat/internal/ops"
	"github.com/sandwichfarm/emojichat/internal/relay"
)

// Local validation failures. Neither reaches the signer or the transport.
var (
	ErrEmptyContent = errors.New("cannot send an empty note")
	ErrNotEmojiOnly = errors.New("note must contain only emoji")
)

// SigningError wraps a signer failure: unavailable, unauthorized, or the
// user declined. Compose state is preserved for retry.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string { return fmt.Sprintf("signing failed: %v", e.Err) }
func (e *SigningError) Unwrap() error { return e.Err }

// PublishError reports that no relay accepted the note. Reason carries the
// first relay-supplied rejection message, if any.
type PublishError struct {
	Reason string
}

func (e *PublishError) Error() string {
	if e.Reason == "" {
		return "no relay accepted the note"
	}
	return fmt.Sprintf("no relay accepted the note: %s", e.Reason)
}

// FlowState is the composition flow's current phase
type FlowState int

const (
	Idle FlowState = iota
	Composing
	Signing
	Publishing
)

func (s FlowState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Composing:
		return "composing"
	case Signing:
		return "signing"
	case Publishing:
		return "publishing"
	}
	return "unknown"
}

// ReplyContext records which note is being replied to. At most one is
// pending; it survives failed sends and clears on success or explicit
// cancellation.
type ReplyContext struct {
	ParentID     string
	ParentAuthor string
}

// Composer owns the compose buffer, the pending reply context, and the
// send flow.
type Composer struct {
	signer    relay.Signer
	transport relay.Transport
	relays    []string
	logger    *ops.Logger

	mu    sync.Mutex
	input string
	reply *ReplyContext
	state FlowState
}

// New creates a composer that publishes to the given relays
func New(signer relay.Signer, transport relay.Transport, relays []string, logger *ops.Logger) *Composer {
	return &Composer{
		signer:    signer,
		transport: transport,
		relays:    relays,
		logger:    logger.WithComponent("compose"),
		state:     Idle,
	}
}

// SetInput replaces the compose buffer
func (c *Composer) SetInput(content string) {
	c.mu.Lock()
	c.input = content
	if c.state == Idle && content != "" {
		c.state = Composing
	}
	c.mu.Unlock()
}

// Append adds to the compose buffer (the emoji picker path)
func (c *Composer) Append(fragment string) {
	c.mu.Lock()
	c.input += fragment
	if c.state == Idle && c.input != "" {
		c.state = Composing
	}
	c.mu.Unlock()
}

// Input returns the current compose buffer
func (c *Composer) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// State returns the current flow state
func (c *Composer) State() FlowState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetReplyContext marks the next send as a reply to the given note
func (c *Composer) SetReplyContext(parentID, parentAuthor string) {
	c.mu.Lock()
	c.reply = &ReplyContext{ParentID: parentID, ParentAuthor: parentAuthor}
	c.mu.Unlock()
}

// ClearReplyContext cancels a pending reply
func (c *Composer) ClearReplyContext() {
	c.mu.Lock()
	c.reply = nil
	c.mu.Unlock()
}

// ReplyContext returns the pending reply target, if any
func (c *Composer) ReplyContext() *ReplyContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reply == nil {
		return nil
	}
	r := *c.reply
	return &r
}

// Send validates, signs and publishes the current compose buffer. On
// success the buffer and reply context are cleared and the signed event is
// returned. On any failure both are preserved and the flow returns to
// Composing.
func (c *Composer) Send(ctx context.Context) (*nostr.Event, error) {
	c.mu.Lock()
	content := strings.TrimSpace(c.input)
	reply := c.reply
	c.mu.Unlock()

	// Local validation: rejected before anything touches the network
	if content == "" {
		return nil, ErrEmptyContent
	}
	if !feed.IsEmojiOnly(content) {
		return nil, ErrNotEmojiOnly
	}

	event := buildTemplate(content, reply)

	c.setState(Signing)
	if err := c.signer.Sign(ctx, event); err != nil {
		c.setState(Composing)
		return nil, &SigningError{Err: err}
	}

	c.setState(Publishing)
	statuses := c.transport.Publish(ctx, c.relays, event)

	accepted := 0
	reason := ""
	for _, status := range statuses {
		if status.OK {
			accepted++
		} else if reason == "" {
			reason = status.Message
		}
	}

	// One accepting relay is enough; the note will flow back through the
	// live subscription.
	if accepted == 0 {
		c.setState(Composing)
		return nil, &PublishError{Reason: reason}
	}

	c.logger.Info("note published",
		"event_id", event.ID,
		"accepted", accepted,
		"relays", len(statuses),
		"reply", reply != nil)

	c.mu.Lock()
	c.input = ""
	c.reply = nil
	c.state = Idle
	c.mu.Unlock()

	return event, nil
}

func (c *Composer) setState(s FlowState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// buildTemplate constructs the outgoing event. A reply carries exactly two
// tags: the reply relation to the parent note and the informational p tag
// for the parent's author.
func buildTemplate(content string, reply *ReplyContext) *nostr.Event {
	event := &nostr.Event{
		Kind:      nostr.KindTextNote,
		Content:   content,
		CreatedAt: nostr.Now(),
		Tags:      nostr.Tags{},
	}

	if reply != nil {
		event.Tags = nostr.Tags{
			nostr.Tag{"e", reply.ParentID, "", "reply"},
			nostr.Tag{"p", reply.ParentAuthor},
		}
	}

	return event
}
