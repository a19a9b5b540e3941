// Package identity maps coins to durable creator identities.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/observability"
)

// Mode selects the resolution strategy.
type Mode string

const (
	ModeWallet Mode = "wallet"
	ModeSocial Mode = "social"
)

// Resolution failures. All of them leave the coin without a creator.
var (
	ErrMetadataUnavailable  = errors.New("metadata unavailable")
	ErrNoIdentitySignal     = errors.New("no identity signal")
	ErrUpstreamLookupFailed = errors.New("upstream lookup failed")
)

// Resolution is a resolved creator identity with optional display metadata.
type Resolution struct {
	Identity    domain.CreatorIdentity
	Wallet      string // launch wallet of the coin
	ExternalID  *string
	DisplayName *string
	ProfileURL  *string
}

// Creator returns a zero-valued creator record for this resolution.
func (r *Resolution) Creator(now int64) *domain.Creator {
	c := &domain.Creator{
		Identity:    r.Identity,
		ExternalID:  r.ExternalID,
		DisplayName: r.DisplayName,
		ProfileURL:  r.ProfileURL,
		FirstSeenAt: now,
		UpdatedAt:   now,
	}
	if r.Wallet != "" {
		w := r.Wallet
		c.Wallet = &w
	}
	return c
}

// Resolver produces a creator identity for a coin.
// Implementations are stateless and safe to retry.
type Resolver interface {
	Resolve(ctx context.Context, coin *domain.Coin) (*Resolution, error)
	Mode() Mode
}

// New returns the resolver for mode. Social mode requires opts.
func New(mode string, opts SocialResolverOptions) (Resolver, error) {
	switch Mode(mode) {
	case ModeWallet:
		return NewWalletResolver(), nil
	case ModeSocial:
		if opts.Social == nil || opts.Documents == nil {
			return nil, fmt.Errorf("social resolver requires a social lookup and a document fetcher")
		}
		return NewSocialResolver(opts), nil
	default:
		return nil, fmt.Errorf("unknown identity mode %q", mode)
	}
}

// WalletResolver keys creators by launch wallet.
type WalletResolver struct{}

var _ Resolver = (*WalletResolver)(nil)

// NewWalletResolver creates a wallet-mode resolver.
func NewWalletResolver() *WalletResolver {
	return &WalletResolver{}
}

// Mode returns ModeWallet.
func (r *WalletResolver) Mode() Mode { return ModeWallet }

// Resolve uses the coin's creator wallet verbatim.
func (r *WalletResolver) Resolve(ctx context.Context, coin *domain.Coin) (*Resolution, error) {
	if coin == nil || !domain.IsWalletAddress(coin.CreatorWallet) {
		observability.RecordIdentityResolution(string(ModeWallet), "no_signal")
		return nil, fmt.Errorf("%w: invalid creator wallet", ErrNoIdentitySignal)
	}
	observability.RecordIdentityResolution(string(ModeWallet), "ok")
	return &Resolution{
		Identity: domain.WalletIdentity(coin.CreatorWallet),
		Wallet:   coin.CreatorWallet,
	}, nil
}
