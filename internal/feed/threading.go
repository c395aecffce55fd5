package feed

import (
	"fmt"

	"github.com/nbd-wtf/go-nostr"
)

// ThreadInfo contains thread relationship information extracted from a note
type ThreadInfo struct {
	RootEventID  string   // The root event of the thread
	ReplyToID    string   // The direct parent event being replied to
	MentionedIDs []string // Other events referenced without a reply relation
}

// ParseThreadInfo extracts thread relationships from a note's e tags using
// NIP-10. Both the preferred marked format and the deprecated positional
// format are understood, since the network carries plenty of each.
func ParseThreadInfo(event *nostr.Event) (*ThreadInfo, error) {
	if event.Kind != nostr.KindTextNote {
		return nil, fmt.Errorf("expected kind 1 note, got %d", event.Kind)
	}

	info := &ThreadInfo{
		MentionedIDs: make([]string, 0),
	}

	eTags := make([]nostr.Tag, 0)
	for _, tag := range event.Tags {
		if len(tag) >= 2 && tag[0] == "e" {
			eTags = append(eTags, tag)
		}
	}

	if len(eTags) == 0 {
		// Not a reply, it's a root post
		return info, nil
	}

	if hasMarkedTags(eTags) {
		return parseMarkedFormat(eTags), nil
	}

	return parsePositionalFormat(eTags), nil
}

// hasMarkedTags checks if any e tag has a marker (root/reply/mention)
func hasMarkedTags(eTags []nostr.Tag) bool {
	for _, tag := range eTags {
		if len(tag) >= 4 && tag[3] != "" {
			return true
		}
	}
	return false
}

// parseMarkedFormat parses NIP-10 marked e tags (preferred format)
func parseMarkedFormat(eTags []nostr.Tag) *ThreadInfo {
	info := &ThreadInfo{
		MentionedIDs: make([]string, 0),
	}

	for _, tag := range eTags {
		eventID := tag[1]
		marker := ""
		if len(tag) >= 4 {
			marker = tag[3]
		}

		switch marker {
		case "root":
			info.RootEventID = eventID
		case "reply":
			info.ReplyToID = eventID
		case "mention":
			info.MentionedIDs = append(info.MentionedIDs, eventID)
		default:
			// No marker - treat as mention
			info.MentionedIDs = append(info.MentionedIDs, eventID)
		}
	}

	// A bare root marker means the note replies directly to the root
	if info.ReplyToID == "" && info.RootEventID != "" {
		info.ReplyToID = info.RootEventID
	}
	if info.ReplyToID != "" && info.RootEventID == "" {
		info.RootEventID = info.ReplyToID
	}

	return info
}

// parsePositionalFormat parses the deprecated positional e tag format
func parsePositionalFormat(eTags []nostr.Tag) *ThreadInfo {
	info := &ThreadInfo{
		MentionedIDs: make([]string, 0),
	}

	switch len(eTags) {
	case 1:
		// Single e tag: reply to this event (which is also the root)
		info.RootEventID = eTags[0][1]
		info.ReplyToID = eTags[0][1]

	case 2:
		// Two e tags: [root, reply]
		info.RootEventID = eTags[0][1]
		info.ReplyToID = eTags[1][1]

	default:
		// Many e tags: [root, ...mentions, reply]
		info.RootEventID = eTags[0][1]
		info.ReplyToID = eTags[len(eTags)-1][1]

		for i := 1; i < len(eTags)-1; i++ {
			info.MentionedIDs = append(info.MentionedIDs, eTags[i][1])
		}
	}

	return info
}

// IsReply returns true if this note replies to another event
func (ti *ThreadInfo) IsReply() bool {
	return ti.ReplyToID != ""
}

// ReplyParent returns the direct parent ID of a note, if it is a reply.
// Parse failures and root posts report no parent.
func ReplyParent(event *nostr.Event) (string, bool) {
	info, err := ParseThreadInfo(event)
	if err != nil || !info.IsReply() {
		return "", false
	}
	return info.ReplyToID, true
}
