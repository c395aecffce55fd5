package feed

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

func TestParseThreadInfo_MarkedFormat(t *testing.T) {
	event := &nostr.Event{
		Kind: nostr.KindTextNote,
		Tags: nostr.Tags{
			{"e", "root-event-id", "", "root"},
			{"e", "parent-event-id", "", "reply"},
			{"e", "mention-event-id", "", "mention"},
		},
	}

	info, err := ParseThreadInfo(event)
	if err != nil {
		t.Fatalf("ParseThreadInfo() error = %v", err)
	}

	if info.RootEventID != "root-event-id" {
		t.Errorf("Expected root 'root-event-id', got %s", info.RootEventID)
	}
	if info.ReplyToID != "parent-event-id" {
		t.Errorf("Expected reply 'parent-event-id', got %s", info.ReplyToID)
	}
	if len(info.MentionedIDs) != 1 || info.MentionedIDs[0] != "mention-event-id" {
		t.Errorf("Expected mention 'mention-event-id', got %v", info.MentionedIDs)
	}
}

func TestParseThreadInfo_MarkedRootOnly(t *testing.T) {
	event := &nostr.Event{
		Kind: nostr.KindTextNote,
		Tags: nostr.Tags{
			{"e", "root-id", "", "root"},
		},
	}

	info, err := ParseThreadInfo(event)
	if err != nil {
		t.Fatalf("ParseThreadInfo() error = %v", err)
	}

	// A bare root marker is a direct reply to the root
	if info.ReplyToID != "root-id" {
		t.Errorf("Expected reply 'root-id', got %s", info.ReplyToID)
	}
}

func TestParseThreadInfo_PositionalFormat_OneTag(t *testing.T) {
	event := &nostr.Event{
		Kind: nostr.KindTextNote,
		Tags: nostr.Tags{
			{"e", "parent-id"},
		},
	}

	info, err := ParseThreadInfo(event)
	if err != nil {
		t.Fatalf("ParseThreadInfo() error = %v", err)
	}

	if info.RootEventID != "parent-id" {
		t.Errorf("Expected root 'parent-id', got %s", info.RootEventID)
	}
	if info.ReplyToID != "parent-id" {
		t.Errorf("Expected reply 'parent-id', got %s", info.ReplyToID)
	}
}

func TestParseThreadInfo_PositionalFormat_TwoTags(t *testing.T) {
	event := &nostr.Event{
		Kind: nostr.KindTextNote,
		Tags: nostr.Tags{
			{"e", "root-id"},
			{"e", "parent-id"},
		},
	}

	info, err := ParseThreadInfo(event)
	if err != nil {
		t.Fatalf("ParseThreadInfo() error = %v", err)
	}

	if info.RootEventID != "root-id" {
		t.Errorf("Expected root 'root-id', got %s", info.RootEventID)
	}
	if info.ReplyToID != "parent-id" {
		t.Errorf("Expected reply 'parent-id', got %s", info.ReplyToID)
	}
}

func TestParseThreadInfo_PositionalFormat_ManyTags(t *testing.T) {
	event := &nostr.Event{
		Kind: nostr.KindTextNote,
		Tags: nostr.Tags{
			{"e", "root-id"},
			{"e", "mention1"},
			{"e", "mention2"},
			{"e", "parent-id"},
		},
	}

	info, err := ParseThreadInfo(event)
	if err != nil {
		t.Fatalf("ParseThreadInfo() error = %v", err)
	}

	if info.RootEventID != "root-id" {
		t.Errorf("Expected root 'root-id', got %s", info.RootEventID)
	}
	if info.ReplyToID != "parent-id" {
		t.Errorf("Expected reply 'parent-id', got %s", info.ReplyToID)
	}
	if len(info.MentionedIDs) != 2 {
		t.Errorf("Expected 2 mentions, got %d", len(info.MentionedIDs))
	}
}

func TestParseThreadInfo_NoTags(t *testing.T) {
	event := &nostr.Event{
		Kind: nostr.KindTextNote,
		Tags: nostr.Tags{},
	}

	info, err := ParseThreadInfo(event)
	if err != nil {
		t.Fatalf("ParseThreadInfo() error = %v", err)
	}

	if info.IsReply() {
		t.Error("Expected event not to be a reply")
	}
}

func TestParseThreadInfo_InvalidKind(t *testing.T) {
	event := &nostr.Event{Kind: nostr.KindProfileMetadata}

	if _, err := ParseThreadInfo(event); err == nil {
		t.Error("Expected error for non-note kind")
	}
}

func TestReplyParent(t *testing.T) {
	reply := &nostr.Event{
		Kind: nostr.KindTextNote,
		Tags: nostr.Tags{{"e", "parent-id", "", "reply"}},
	}
	parent, ok := ReplyParent(reply)
	if !ok || parent != "parent-id" {
		t.Errorf("ReplyParent() = %q, %v; want parent-id, true", parent, ok)
	}

	root := &nostr.Event{Kind: nostr.KindTextNote}
	if _, ok := ReplyParent(root); ok {
		t.Error("expected root post to have no parent")
	}
}
