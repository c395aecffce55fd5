package feed

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nbd-wtf/go-nostr"
)

func emojiNote(id, author string, createdAt int64) *nostr.Event {
	return &nostr.Event{
		ID:        id,
		PubKey:    author,
		Kind:      nostr.KindTextNote,
		Content:   "😀",
		CreatedAt: nostr.Timestamp(createdAt),
	}
}

func emojiReply(id, author string, createdAt int64, parentID string) *nostr.Event {
	e := emojiNote(id, author, createdAt)
	e.Tags = nostr.Tags{{"e", parentID, "", "reply"}}
	return e
}

func shape(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Event.ID
	}
	return out
}

func TestBuild_FiltersNonEmoji(t *testing.T) {
	notes := []*nostr.Event{
		emojiNote("a", "alice", 1),
		{ID: "b", PubKey: "bob", Kind: nostr.KindTextNote, Content: "hello", CreatedAt: 2},
	}

	entries := Build(notes)
	if diff := cmp.Diff([]string{"a"}, shape(entries)); diff != "" {
		t.Errorf("unexpected entries (-want +got):\n%s", diff)
	}
}

func TestBuild_ThreadsRepliesOldestFirst(t *testing.T) {
	// Root at t=10 with two replies arriving out of order. Children run
	// oldest first beneath the root.
	a := emojiNote("a", "alice", 10)
	b := emojiReply("b", "bob", 20, "a")
	c := emojiReply("c", "carol", 15, "a")

	entries := Build([]*nostr.Event{a, b, c})

	if diff := cmp.Diff([]string{"a", "c", "b"}, shape(entries)); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
	wantDepths := []int{0, 1, 1}
	for i, want := range wantDepths {
		if entries[i].Depth != want {
			t.Errorf("entry %d: depth = %d, want %d", i, entries[i].Depth, want)
		}
	}
}

func TestBuild_RootsNewestFirst(t *testing.T) {
	entries := Build([]*nostr.Event{
		emojiNote("old", "alice", 5),
		emojiNote("new", "bob", 50),
		emojiNote("mid", "carol", 25),
	})

	if diff := cmp.Diff([]string{"new", "mid", "old"}, shape(entries)); diff != "" {
		t.Errorf("unexpected root order (-want +got):\n%s", diff)
	}
}

func TestBuild_OrphanReplyPromoted(t *testing.T) {
	// The parent never made it through the filter, so the reply shows up
	// top-level rather than disappearing.
	orphan := emojiReply("orphan", "alice", 10, "missing-parent")

	entries := Build([]*nostr.Event{orphan})
	if len(entries) != 1 || entries[0].Depth != 0 {
		t.Fatalf("expected orphan at top level, got %+v", entries)
	}
}

func TestBuild_ReplyToFilteredParentPromoted(t *testing.T) {
	parent := &nostr.Event{ID: "p", PubKey: "alice", Kind: nostr.KindTextNote, Content: "words", CreatedAt: 5}
	reply := emojiReply("r", "bob", 10, "p")

	entries := Build([]*nostr.Event{parent, reply})
	if diff := cmp.Diff([]string{"r"}, shape(entries)); diff != "" {
		t.Errorf("unexpected entries (-want +got):\n%s", diff)
	}
	if entries[0].Depth != 0 {
		t.Errorf("expected promoted reply at depth 0, got %d", entries[0].Depth)
	}
}

func TestBuild_NestedThreadDepths(t *testing.T) {
	a := emojiNote("a", "alice", 10)
	b := emojiReply("b", "bob", 20, "a")
	c := emojiReply("c", "carol", 30, "b")

	entries := Build([]*nostr.Event{a, b, c})

	if diff := cmp.Diff([]string{"a", "b", "c"}, shape(entries)); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
	for i, want := range []int{0, 1, 2} {
		if entries[i].Depth != want {
			t.Errorf("entry %d: depth = %d, want %d", i, entries[i].Depth, want)
		}
	}
}

func TestBuild_CycleNeverDropsEvents(t *testing.T) {
	// Two fabricated events replying to each other. Neither is a root,
	// but both must still appear.
	x := emojiReply("x", "alice", 10, "y")
	y := emojiReply("y", "bob", 20, "x")

	entries := Build([]*nostr.Event{x, y})
	if len(entries) != 2 {
		t.Fatalf("expected both cycle members in projection, got %d entries", len(entries))
	}
}

func TestBuild_SelfReplyTreatedAsRoot(t *testing.T) {
	self := emojiReply("s", "alice", 10, "s")

	entries := Build([]*nostr.Event{self})
	if len(entries) != 1 || entries[0].Depth != 0 {
		t.Fatalf("expected self-reply at top level, got %+v", entries)
	}
}

func TestAuthors_DistinctFirstSeen(t *testing.T) {
	entries := Build([]*nostr.Event{
		emojiNote("a", "alice", 30),
		emojiNote("b", "bob", 20),
		emojiNote("c", "alice", 10),
	})

	if diff := cmp.Diff([]string{"alice", "bob"}, Authors(entries)); diff != "" {
		t.Errorf("unexpected authors (-want +got):\n%s", diff)
	}
}
