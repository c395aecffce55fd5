// Package feed derives the visible timeline from the event store: it keeps
// only emoji-only notes, threads replies beneath their parents, and orders
// the result deterministically. The projection is a pure function of the
// store contents; it assumes its inputs were validated upstream.
package feed

import (
	"sort"
	"sync"

	"github.com/nbd-wtf/go-nostr"

	"github.com/sandwichfarm/emojichat/internal/ops"
	"github.com/sandwichfarm/emojichat/internal/profiles"
	"github.com/sandwichfarm/emojichat/internal/store"
)

// Entry is one rendered feed position: an event at a thread depth.
// Depth 0 is top-level; children are indented one level per reply hop.
type Entry struct {
	Event *nostr.Event
	Depth int
}

// Build computes the threaded, filtered projection of the given notes.
//
// Rules: only emoji-only notes survive the filter; a reply whose parent is
// in the filtered set nests under it, otherwise it is promoted to top-level
// (threading is best-effort, never lossy). Top-level entries are ordered
// newest first; within a thread, children run oldest first, depth-first.
// All ties break on event ID so the projection is deterministic.
func Build(notes []*nostr.Event) []Entry {
	filtered := make([]*nostr.Event, 0, len(notes))
	inSet := make(map[string]*nostr.Event)
	for _, note := range notes {
		if note == nil || !IsEmojiOnly(note.Content) {
			continue
		}
		if _, dup := inSet[note.ID]; dup {
			continue
		}
		filtered = append(filtered, note)
		inSet[note.ID] = note
	}

	roots := make([]*nostr.Event, 0, len(filtered))
	children := make(map[string][]*nostr.Event)
	for _, note := range filtered {
		parent, isReply := ReplyParent(note)
		if isReply && parent != note.ID && inSet[parent] != nil {
			children[parent] = append(children[parent], note)
			continue
		}
		roots = append(roots, note)
	}

	sortNewestFirst(roots)
	for _, siblings := range children {
		sortOldestFirst(siblings)
	}

	entries := make([]Entry, 0, len(filtered))
	visited := make(map[string]bool, len(filtered))

	var walk func(note *nostr.Event, depth int)
	walk = func(note *nostr.Event, depth int) {
		if visited[note.ID] {
			return
		}
		visited[note.ID] = true
		entries = append(entries, Entry{Event: note, Depth: depth})
		for _, child := range children[note.ID] {
			walk(child, depth+1)
		}
	}

	for _, root := range roots {
		walk(root, 0)
	}

	// Reply cycles between fabricated events would leave every member
	// parked in a children bucket. Promote whatever the walk missed.
	if len(entries) < len(filtered) {
		orphans := make([]*nostr.Event, 0)
		for _, note := range filtered {
			if !visited[note.ID] {
				orphans = append(orphans, note)
			}
		}
		sortNewestFirst(orphans)
		for _, orphan := range orphans {
			walk(orphan, 0)
		}
	}

	return entries
}

// Authors returns the distinct author pubkeys of the given entries,
// first-seen order.
func Authors(entries []Entry) []string {
	seen := make(map[string]struct{})
	authors := make([]string, 0)
	for _, entry := range entries {
		if _, ok := seen[entry.Event.PubKey]; ok {
			continue
		}
		seen[entry.Event.PubKey] = struct{}{}
		authors = append(authors, entry.Event.PubKey)
	}
	return authors
}

func sortNewestFirst(notes []*nostr.Event) {
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].CreatedAt != notes[j].CreatedAt {
			return notes[i].CreatedAt > notes[j].CreatedAt
		}
		return notes[i].ID < notes[j].ID
	})
}

func sortOldestFirst(notes []*nostr.Event) {
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].CreatedAt != notes[j].CreatedAt {
			return notes[i].CreatedAt < notes[j].CreatedAt
		}
		return notes[i].ID < notes[j].ID
	})
}

// Projector recomputes the projection on every store change, requests
// metadata for newly seen authors, and hands the entries to the
// presentation callback.
type Projector struct {
	store    *store.Store
	profiles *profiles.Cache
	logger   *ops.Logger

	// fetchProfiles receives each freshly claimed author batch
	fetchProfiles func(authors []string)
	// deliver receives the recomputed projection
	deliver func(entries []Entry)

	mu sync.Mutex // serializes rebuilds so deliveries stay ordered
}

// NewProjector creates a projector. Call Attach to start receiving store
// changes.
func NewProjector(st *store.Store, pc *profiles.Cache, logger *ops.Logger, fetchProfiles func([]string), deliver func([]Entry)) *Projector {
	return &Projector{
		store:         st,
		profiles:      pc,
		logger:        logger.WithComponent("feed"),
		fetchProfiles: fetchProfiles,
		deliver:       deliver,
	}
}

// Attach registers the projector on the store and renders the current state
// once.
func (p *Projector) Attach() {
	p.store.OnChange(p.Rebuild)
	p.Rebuild()
}

// Rebuild recomputes and delivers the projection from the current store
// contents.
func (p *Projector) Rebuild() {
	p.mu.Lock()
	defer p.mu.Unlock()

	notes := p.store.QueryByKind(nostr.KindTextNote)
	entries := Build(notes)

	if batch := p.profiles.ClaimUnrequested(Authors(entries)); len(batch) > 0 {
		p.logger.Debug("requesting profiles for new authors", "count", len(batch))
		p.fetchProfiles(batch)
	}

	if p.deliver != nil {
		p.deliver(entries)
	}
}
