package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/observability"
	"github.com/Selopol/padre-pump-backend/internal/social"
)

// MetadataSource reads on-chain token metadata.
type MetadataSource interface {
	FetchMetadata(ctx context.Context, mint string) (*domain.TokenMetadata, error)
}

// SocialResolverOptions configures SocialResolver.
type SocialResolverOptions struct {
	Metadata  MetadataSource // optional; used when the record has no metadata URI
	Documents DocumentFetcher
	Social    social.Lookup
}

// SocialResolver keys creators by the social account referenced in coin metadata.
// A post reference wins over a community reference.
type SocialResolver struct {
	metadata  MetadataSource
	documents DocumentFetcher
	social    social.Lookup
}

var _ Resolver = (*SocialResolver)(nil)

// NewSocialResolver creates a social-mode resolver.
func NewSocialResolver(opts SocialResolverOptions) *SocialResolver {
	return &SocialResolver{
		metadata:  opts.Metadata,
		documents: opts.Documents,
		social:    opts.Social,
	}
}

// Mode returns ModeSocial.
func (r *SocialResolver) Mode() Mode { return ModeSocial }

// Resolve finds social references in the record and its metadata document and
// resolves the post author, or the community owner when no post is referenced.
func (r *SocialResolver) Resolve(ctx context.Context, coin *domain.Coin) (*Resolution, error) {
	res, err := r.resolve(ctx, coin)
	observability.RecordIdentityResolution(string(ModeSocial), outcome(err))
	return res, err
}

func (r *SocialResolver) resolve(ctx context.Context, coin *domain.Coin) (*Resolution, error) {
	if coin == nil {
		return nil, fmt.Errorf("%w: nil coin", ErrNoIdentitySignal)
	}

	refs := ExtractFromStrings(coin.Twitter, coin.Website, coin.Telegram, coin.Description)

	doc, docErr := r.document(ctx, coin)
	if docErr == nil {
		refs.merge(ExtractReferences(doc))
	} else if refs.Empty() {
		return nil, docErr
	}

	if refs.Empty() {
		return nil, fmt.Errorf("%w: mint %s", ErrNoIdentitySignal, coin.Mint)
	}

	// Community owners are only consulted when the coin carries no post
	// reference at all. A post whose author cannot be looked up fails the
	// resolution rather than attributing the coin to someone else.
	var lastErr error
	for _, id := range refs.PostIDs {
		p, err := r.social.PostAuthor(ctx, id)
		if err != nil {
			lastErr = err
			continue
		}
		return resolution(p, coin.CreatorWallet)
	}
	if len(refs.PostIDs) > 0 {
		return nil, fmt.Errorf("%w: post author: %v", ErrUpstreamLookupFailed, lastErr)
	}
	for _, id := range refs.CommunityIDs {
		p, err := r.social.CommunityOwner(ctx, id)
		if err != nil {
			lastErr = err
			continue
		}
		return resolution(p, coin.CreatorWallet)
	}
	return nil, fmt.Errorf("%w: %v", ErrUpstreamLookupFailed, lastErr)
}

// document returns the metadata document of coin, reading the URI on-chain when the
// record does not carry one.
func (r *SocialResolver) document(ctx context.Context, coin *domain.Coin) ([]byte, error) {
	uri := coin.MetadataURI
	if uri == "" {
		if r.metadata == nil {
			return nil, fmt.Errorf("%w: no metadata uri", ErrMetadataUnavailable)
		}
		meta, err := r.metadata.FetchMetadata(ctx, coin.Mint)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
		}
		if meta == nil || meta.URI == nil || *meta.URI == "" {
			return nil, fmt.Errorf("%w: on-chain metadata has no uri", ErrMetadataUnavailable)
		}
		uri = *meta.URI
	}

	doc, err := r.documents.FetchDocument(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}
	return doc, nil
}

func resolution(p *social.Profile, wallet string) (*Resolution, error) {
	res := &Resolution{
		Identity: domain.SocialIdentity(p.Handle),
		Wallet:   wallet,
	}
	if err := res.Identity.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamLookupFailed, err)
	}
	if p.ID != "" {
		id := p.ID
		res.ExternalID = &id
	}
	if p.Name != "" {
		name := p.Name
		res.DisplayName = &name
	}
	if p.URL != "" {
		u := p.URL
		res.ProfileURL = &u
	}
	return res, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMetadataUnavailable):
		return "metadata_unavailable"
	case errors.Is(err, ErrNoIdentitySignal):
		return "no_signal"
	case errors.Is(err, ErrUpstreamLookupFailed):
		return "lookup_failed"
	default:
		return "error"
	}
}
