package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// IdentityKind selects how a creator is keyed.
type IdentityKind string

const (
	IdentityWallet IdentityKind = "wallet"
	IdentitySocial IdentityKind = "social"
)

// ErrInvalidIdentity is returned when an identity key cannot be parsed or validated.
var ErrInvalidIdentity = errors.New("invalid creator identity")

// CreatorIdentity is the durable key coins are attributed to.
// It is either a wallet address or a social handle.
type CreatorIdentity struct {
	Kind IdentityKind
	Key  string
}

// WalletIdentity builds a wallet-keyed identity.
func WalletIdentity(address string) CreatorIdentity {
	return CreatorIdentity{Kind: IdentityWallet, Key: strings.TrimSpace(address)}
}

// SocialIdentity builds a handle-keyed identity. The handle is normalised.
func SocialIdentity(handle string) CreatorIdentity {
	return CreatorIdentity{Kind: IdentitySocial, Key: NormalizeHandle(handle)}
}

// NormalizeHandle strips a leading "@" and lower-cases the handle.
func NormalizeHandle(handle string) string {
	h := strings.TrimSpace(handle)
	h = strings.TrimPrefix(h, "@")
	return strings.ToLower(h)
}

// String returns the persisted form "<kind>:<key>".
func (id CreatorIdentity) String() string {
	return string(id.Kind) + ":" + id.Key
}

// IsZero reports whether the identity is unset.
func (id CreatorIdentity) IsZero() bool {
	return id.Kind == "" && id.Key == ""
}

// Validate checks the key against the rules of its kind.
func (id CreatorIdentity) Validate() error {
	switch id.Kind {
	case IdentityWallet:
		if !IsWalletAddress(id.Key) {
			return fmt.Errorf("%w: wallet %q", ErrInvalidIdentity, id.Key)
		}
	case IdentitySocial:
		if id.Key == "" || strings.ContainsAny(id.Key, " /:") {
			return fmt.Errorf("%w: handle %q", ErrInvalidIdentity, id.Key)
		}
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidIdentity, id.Kind)
	}
	return nil
}

// ParseIdentity parses the persisted "<kind>:<key>" form.
func ParseIdentity(s string) (CreatorIdentity, error) {
	kind, key, ok := strings.Cut(s, ":")
	if !ok {
		return CreatorIdentity{}, fmt.Errorf("%w: %q", ErrInvalidIdentity, s)
	}
	var id CreatorIdentity
	switch IdentityKind(kind) {
	case IdentityWallet:
		id = WalletIdentity(key)
	case IdentitySocial:
		id = SocialIdentity(key)
	default:
		return CreatorIdentity{}, fmt.Errorf("%w: kind %q", ErrInvalidIdentity, kind)
	}
	if err := id.Validate(); err != nil {
		return CreatorIdentity{}, err
	}
	return id, nil
}

// IdentityFromLookup interprets a user-supplied lookup key.
// Accepts the persisted form, a wallet address or a social handle.
func IdentityFromLookup(s string) (CreatorIdentity, error) {
	s = strings.TrimSpace(s)
	if id, err := ParseIdentity(s); err == nil {
		return id, nil
	}
	if IsWalletAddress(s) {
		return WalletIdentity(s), nil
	}
	id := SocialIdentity(s)
	if err := id.Validate(); err != nil {
		return CreatorIdentity{}, err
	}
	return id, nil
}

// IsWalletAddress reports whether s is a base58 encoded 32-byte public key.
func IsWalletAddress(s string) bool {
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	b, err := base58.Decode(s)
	return err == nil && len(b) == 32
}
