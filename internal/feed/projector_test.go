package feed

import (
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sandwichfarm/emojichat/internal/config"
	"github.com/sandwichfarm/emojichat/internal/ops"
	"github.com/sandwichfarm/emojichat/internal/profiles"
	"github.com/sandwichfarm/emojichat/internal/store"
)

func TestProjector_RebuildsOnStoreChange(t *testing.T) {
	st := store.New()
	pc := profiles.NewCache()
	logger := ops.NewLoggerWithWriter(&config.Logging{Level: "error"}, io.Discard)

	var deliveries [][]string
	var batches [][]string

	p := NewProjector(st, pc, logger,
		func(authors []string) { batches = append(batches, authors) },
		func(entries []Entry) { deliveries = append(deliveries, shape(entries)) })
	p.Attach()

	// Attach delivers the empty projection once
	if len(deliveries) != 1 || len(deliveries[0]) != 0 {
		t.Fatalf("expected one empty initial delivery, got %v", deliveries)
	}

	st.Add(emojiNote("a", "alice", 10))
	st.Add(emojiNote("b", "bob", 20))

	if len(deliveries) != 3 {
		t.Fatalf("expected a delivery per store change, got %d", len(deliveries))
	}
	if diff := cmp.Diff([]string{"b", "a"}, deliveries[2]); diff != "" {
		t.Errorf("unexpected final projection (-want +got):\n%s", diff)
	}
}

func TestProjector_RequestsEachAuthorOnce(t *testing.T) {
	st := store.New()
	pc := profiles.NewCache()
	logger := ops.NewLoggerWithWriter(&config.Logging{Level: "error"}, io.Discard)

	requested := make(map[string]int)
	p := NewProjector(st, pc, logger,
		func(authors []string) {
			for _, a := range authors {
				requested[a]++
			}
		},
		nil)
	p.Attach()

	st.Add(emojiNote("a", "alice", 10))
	st.Add(emojiNote("b", "alice", 20))
	st.Add(emojiNote("c", "bob", 30))

	if requested["alice"] != 1 {
		t.Errorf("expected alice requested once, got %d", requested["alice"])
	}
	if requested["bob"] != 1 {
		t.Errorf("expected bob requested once, got %d", requested["bob"])
	}
}

func TestProjector_IgnoresNonEmojiAuthors(t *testing.T) {
	st := store.New()
	pc := profiles.NewCache()
	logger := ops.NewLoggerWithWriter(&config.Logging{Level: "error"}, io.Discard)

	var requested []string
	p := NewProjector(st, pc, logger,
		func(authors []string) { requested = append(requested, authors...) },
		nil)
	p.Attach()

	loud := emojiNote("n", "loud", 10)
	loud.Content = "HELLO"
	st.Add(loud)

	if len(requested) != 0 {
		t.Errorf("filtered-out authors must not trigger profile fetches, got %v", requested)
	}
}
