// Package profiles caches author display metadata parsed from kind-0 events.
package profiles

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nbd-wtf/go-nostr"
)

// ErrBadMetadata marks a kind-0 event whose content is not a valid metadata
// document. The offending update is discarded; the cache is untouched.
var ErrBadMetadata = errors.New("malformed profile metadata")

// Profile holds the display metadata for a single author. ObservedAt is the
// created_at of the kind-0 event it was parsed from and drives the
// staleness rule.
type Profile struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	PictureURL  string `json:"picture"`
	NIP05       string `json:"nip05"`
	ObservedAt  nostr.Timestamp
}

// ParseProfile parses a kind-0 event into a Profile. Content that is not a
// JSON object yields ErrBadMetadata.
func ParseProfile(event *nostr.Event) (Profile, error) {
	if event == nil || event.Kind != nostr.KindProfileMetadata {
		return Profile{}, fmt.Errorf("%w: expected kind 0", ErrBadMetadata)
	}

	var p Profile
	if err := json.Unmarshal([]byte(event.Content), &p); err != nil {
		return Profile{}, fmt.Errorf("%w: %s", ErrBadMetadata, err)
	}
	p.ObservedAt = event.CreatedAt
	return p, nil
}

// Cache maps author pubkeys to their latest-known profile. It also tracks
// which authors have had a metadata fetch requested this session, so the
// same author is never fetched twice. The requested set is deliberately
// never cleared: a profile fetched once stays as fetched even if it changes
// server-side later. Accepted staleness trade-off.
type Cache struct {
	mu        sync.RWMutex
	entries   map[string]Profile
	requested map[string]struct{}
}

// NewCache creates an empty profile cache
func NewCache() *Cache {
	return &Cache{
		entries:   make(map[string]Profile),
		requested: make(map[string]struct{}),
	}
}

// Upsert applies the staleness rule: the cache keeps the entry with the
// greatest ObservedAt seen so far. An incoming profile strictly older than
// the cached one is discarded. Returns whether the cache changed.
func (c *Cache) Upsert(author string, p Profile) bool {
	if author == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[author]; ok && p.ObservedAt < existing.ObservedAt {
		return false
	}
	c.entries[author] = p
	return true
}

// Get returns the cached profile for an author, if any
func (c *Cache) Get(author string) (Profile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.entries[author]
	return p, ok
}

// HasRequested reports whether a metadata fetch was already requested for
// the author this session.
func (c *Cache) HasRequested(author string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.requested[author]
	return ok
}

// MarkRequested records that a metadata fetch was requested for the author
func (c *Cache) MarkRequested(author string) {
	c.mu.Lock()
	c.requested[author] = struct{}{}
	c.mu.Unlock()
}

// ClaimUnrequested returns the subset of authors never requested before and
// marks them requested in the same step, so concurrent projections cannot
// claim the same author twice. Order of the input is preserved.
func (c *Cache) ClaimUnrequested(authors []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	claimed := make([]string, 0, len(authors))
	for _, author := range authors {
		if author == "" {
			continue
		}
		if _, ok := c.requested[author]; ok {
			continue
		}
		c.requested[author] = struct{}{}
		claimed = append(claimed, author)
	}
	return claimed
}

// DisplayName resolves the best display string for an author:
// display_name > name > nip05 > truncated pubkey.
func (c *Cache) DisplayName(author string) string {
	c.mu.RLock()
	p, ok := c.entries[author]
	c.mu.RUnlock()

	if ok {
		if p.DisplayName != "" {
			return p.DisplayName
		}
		if p.Name != "" {
			return p.Name
		}
		if p.NIP05 != "" {
			return p.NIP05
		}
	}
	return TruncatePubkey(author)
}

// PictureURL resolves the avatar for an author, falling back to a
// deterministic placeholder keyed by the pubkey when none is cached.
func (c *Cache) PictureURL(author string) string {
	c.mu.RLock()
	p, ok := c.entries[author]
	c.mu.RUnlock()

	if ok && p.PictureURL != "" {
		return p.PictureURL
	}
	return PlaceholderPicture(author)
}

// PlaceholderPicture returns a deterministic placeholder avatar URL for a
// pubkey. Same pubkey, same picture.
func PlaceholderPicture(pubkey string) string {
	return "https://robohash.org/" + pubkey + ".png?set=set4"
}

// TruncatePubkey shortens a pubkey for display
func TruncatePubkey(pubkey string) string {
	if len(pubkey) <= 16 {
		return pubkey
	}
	return pubkey[:8] + "..." + pubkey[len(pubkey)-8:]
}
