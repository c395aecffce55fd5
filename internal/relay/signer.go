package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// ErrNoSigner is returned when signing is requested but no key is
// configured. The caller surfaces this to the user; read-only use stays
// available.
var ErrNoSigner = errors.New("no signing key configured")

// Signer is the identity capability. Signing happens outside the client
// core; the core only sees the finished event.
type Signer interface {
	// PublicKey returns the hex pubkey of the signing identity
	PublicKey(ctx context.Context) (string, error)

	// Sign fills in PubKey, ID and Sig on the event template
	Sign(ctx context.Context, event *nostr.Event) error
}

// KeySigner signs locally with a secret key taken from the environment
// (nsec or raw hex).
type KeySigner struct {
	secret string
	pubkey string
}

// NewKeySigner parses an nsec or hex secret key. An empty key yields a
// signer that fails with ErrNoSigner on every call, which keeps the
// read-only path working without special-casing.
func NewKeySigner(secret string) (*KeySigner, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &KeySigner{}, nil
	}

	if strings.HasPrefix(secret, "nsec1") {
		prefix, decoded, err := nip19.Decode(secret)
		if err != nil || prefix != "nsec" {
			return nil, fmt.Errorf("invalid nsec: %w", err)
		}
		secret = decoded.(string)
	}

	pubkey, err := nostr.GetPublicKey(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid secret key: %w", err)
	}

	return &KeySigner{secret: secret, pubkey: pubkey}, nil
}

// PublicKey implements Signer
func (s *KeySigner) PublicKey(ctx context.Context) (string, error) {
	if s.secret == "" {
		return "", ErrNoSigner
	}
	return s.pubkey, nil
}

// Sign implements Signer
func (s *KeySigner) Sign(ctx context.Context, event *nostr.Event) error {
	if s.secret == "" {
		return ErrNoSigner
	}
	if err := event.Sign(s.secret); err != nil {
		return fmt.Errorf("failed to sign event: %w", err)
	}
	return nil
}
