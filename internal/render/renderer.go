// Package render is the terminal presentation adapter. It consumes the feed
// projection as data and knows nothing about how it was derived.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rivo/uniseg"

	"github.com/sandwichfarm/emojichat/internal/config"
	"github.com/sandwichfarm/emojichat/internal/feed"
	"github.com/sandwichfarm/emojichat/internal/profiles"
)

// Renderer writes the threaded feed to a terminal. Each entry is numbered
// so the compose loop can target replies by index.
type Renderer struct {
	out      io.Writer
	display  config.Display
	profiles *profiles.Cache

	mu      sync.Mutex
	entries []feed.Entry
}

// New creates a renderer
func New(out io.Writer, display config.Display, pc *profiles.Cache) *Renderer {
	return &Renderer{
		out:      out,
		display:  display,
		profiles: pc,
	}
}

// Render prints the projection and remembers it for Lookup
func (r *Renderer) Render(entries []feed.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = entries

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\n--- feed (%d notes) ---\n", len(entries)))
	for i, entry := range entries {
		sb.WriteString(r.renderEntry(i, entry))
	}
	fmt.Fprint(r.out, sb.String())
}

// Lookup returns the entry at a rendered index, for reply targeting
func (r *Renderer) Lookup(index int) (feed.Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.entries) {
		return feed.Entry{}, false
	}
	return r.entries[index], true
}

func (r *Renderer) renderEntry(index int, entry feed.Entry) string {
	indent := strings.Repeat(r.threadIndent(), entry.Depth)

	content := entry.Event.Content
	if max := r.display.MaxContentLength; max > 0 {
		content = truncateGraphemes(content, max)
	}

	name := r.profiles.DisplayName(entry.Event.PubKey)
	when := entry.Event.CreatedAt.Time().Format(r.timestampFormat())

	return fmt.Sprintf("%s[%d] %s  by %s (%s)\n", indent, index, content, name, when)
}

// truncateGraphemes cuts content after max grapheme clusters and appends an
// ellipsis. Cutting at byte offsets would split emoji sequences mid-rune.
func truncateGraphemes(s string, max int) string {
	count := 0
	state := -1
	rest := s
	for len(rest) > 0 {
		_, rest, _, state = uniseg.StepString(rest, state)
		count++
		if count == max && len(rest) > 0 {
			return s[:len(s)-len(rest)] + "..."
		}
	}
	return s
}

func (r *Renderer) threadIndent() string {
	if r.display.ThreadIndent == "" {
		return "  "
	}
	return r.display.ThreadIndent
}

func (r *Renderer) timestampFormat() string {
	if r.display.TimestampFormat == "" {
		return "2006-01-02 15:04"
	}
	return r.display.TimestampFormat
}
