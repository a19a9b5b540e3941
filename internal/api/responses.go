package api

import (
	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/pipeline"
)

// Envelope wraps every response body.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Error codes carried in Envelope.Error.
const (
	codeBadRequest  = "bad_request"
	codeNotFound    = "not_found"
	codeInternal    = "internal_error"
	codeUnavailable = "service_unavailable"
)

// HealthResponse is the response for the health endpoint.
type HealthResponse struct {
	Status   string           `json:"status"`
	Database string           `json:"database"`
	Pipeline *pipeline.Status `json:"pipeline,omitempty"`
}

// CoinView is the API projection of a coin.
type CoinView struct {
	Mint          string  `json:"mint"`
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	ImageURI      string  `json:"image_uri,omitempty"`
	MetadataURI   string  `json:"metadata_uri,omitempty"`
	Twitter       string  `json:"twitter,omitempty"`
	Telegram      string  `json:"telegram,omitempty"`
	Website       string  `json:"website,omitempty"`
	CreatorWallet string  `json:"creator_wallet"`
	Creator       string  `json:"creator,omitempty"`
	BondingCurve  string  `json:"bonding_curve,omitempty"`
	CreatedAt     int64   `json:"created_at"`
	IsMigrated    bool    `json:"is_migrated"`
	MigratedAt    *int64  `json:"migrated_at,omitempty"`
	MarketCapUSD  float64 `json:"usd_market_cap"`
	FirstSeenAt   int64   `json:"first_seen_at"`
}

// CreatorView is the API projection of a creator.
type CreatorView struct {
	ID          string              `json:"id"`
	Kind        domain.IdentityKind `json:"kind"`
	Key         string              `json:"key"`
	Wallet      *string             `json:"wallet,omitempty"`
	ExternalID  *string             `json:"external_id,omitempty"`
	DisplayName *string             `json:"display_name,omitempty"`
	ProfileURL  *string             `json:"profile_url,omitempty"`
	Stats       domain.CreatorStats `json:"stats"`
	FirstSeenAt int64               `json:"first_seen_at"`
	UpdatedAt   int64               `json:"updated_at"`
}

// CreatorDetail is a creator with its coins.
type CreatorDetail struct {
	Creator CreatorView `json:"creator"`
	Coins   []CoinView  `json:"coins"`
}

// CoinDetail is a coin with its creator, if attributed.
type CoinDetail struct {
	Coin    CoinView     `json:"coin"`
	Creator *CreatorView `json:"creator,omitempty"`
}

// AlertView is the API projection of an alert.
type AlertView struct {
	ID          string               `json:"id"`
	Mint        string               `json:"mint"`
	Creator     string               `json:"creator"`
	TriggeredAt int64                `json:"triggered_at"`
	Read        bool                 `json:"read"`
	Source      domain.AlertSource   `json:"source"`
	Snapshot    domain.AlertSnapshot `json:"snapshot"`
	CoinSymbol  string               `json:"coin_symbol"`
	CoinName    string               `json:"coin_name"`
	CoinImage   string               `json:"coin_image,omitempty"`
	DisplayName *string              `json:"display_name,omitempty"`
	ProfileURL  *string              `json:"profile_url,omitempty"`
}

// SearchResponse holds search matches by kind.
type SearchResponse struct {
	Creators []CreatorView `json:"creators,omitempty"`
	Coins    []CoinView    `json:"coins,omitempty"`
}

// BatchRequest is the body of the coin batch endpoint.
type BatchRequest struct {
	Mints []string `json:"mints"`
}

func coinView(c *domain.Coin) CoinView {
	return CoinView{
		Mint:          c.Mint,
		Symbol:        c.Symbol,
		Name:          c.Name,
		Description:   c.Description,
		ImageURI:      c.ImageURI,
		MetadataURI:   c.MetadataURI,
		Twitter:       c.Twitter,
		Telegram:      c.Telegram,
		Website:       c.Website,
		CreatorWallet: c.CreatorWallet,
		Creator:       c.CreatorID(),
		BondingCurve:  c.BondingCurve,
		CreatedAt:     c.CreatedAt,
		IsMigrated:    c.IsMigrated,
		MigratedAt:    c.MigratedAt,
		MarketCapUSD:  c.MarketCapUSD,
		FirstSeenAt:   c.FirstSeenAt,
	}
}

func coinViews(coins []*domain.Coin) []CoinView {
	out := make([]CoinView, 0, len(coins))
	for _, c := range coins {
		out = append(out, coinView(c))
	}
	return out
}

func creatorView(c *domain.Creator) CreatorView {
	return CreatorView{
		ID:          c.Identity.String(),
		Kind:        c.Identity.Kind,
		Key:         c.Identity.Key,
		Wallet:      c.Wallet,
		ExternalID:  c.ExternalID,
		DisplayName: c.DisplayName,
		ProfileURL:  c.ProfileURL,
		Stats:       c.Stats,
		FirstSeenAt: c.FirstSeenAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func creatorViews(creators []*domain.Creator) []CreatorView {
	out := make([]CreatorView, 0, len(creators))
	for _, c := range creators {
		out = append(out, creatorView(c))
	}
	return out
}

func alertViews(alerts []*domain.AlertView) []AlertView {
	out := make([]AlertView, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, AlertView{
			ID:          a.ID,
			Mint:        a.Mint,
			Creator:     a.Creator.String(),
			TriggeredAt: a.TriggeredAt,
			Read:        a.Read,
			Source:      a.Source,
			Snapshot:    a.Snapshot,
			CoinSymbol:  a.CoinSymbol,
			CoinName:    a.CoinName,
			CoinImage:   a.CoinImage,
			DisplayName: a.DisplayName,
			ProfileURL:  a.ProfileURL,
		})
	}
	return out
}
