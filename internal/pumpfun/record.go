package pumpfun

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Selopol/padre-pump-backend/internal/domain"
)

// ErrInvalidRecord marks a feed element that lacks required fields.
var ErrInvalidRecord = errors.New("invalid upstream record")

// rawCoin holds the documented fields of a feed record.
// Anything else stays in the verbatim blob.
type rawCoin struct {
	Mint             string   `json:"mint"`
	Name             string   `json:"name"`
	Symbol           string   `json:"symbol"`
	Description      string   `json:"description"`
	ImageURI         string   `json:"image_uri"`
	MetadataURI      string   `json:"metadata_uri"`
	Twitter          string   `json:"twitter"`
	Telegram         string   `json:"telegram"`
	Website          string   `json:"website"`
	Creator          string   `json:"creator"`
	BondingCurve     string   `json:"bonding_curve"`
	CreatedTimestamp int64    `json:"created_timestamp"`
	Complete         bool     `json:"complete"`
	USDMarketCap     *float64 `json:"usd_market_cap"`
}

// userCoinsEnvelope is the object form some creator endpoints answer with.
type userCoinsEnvelope struct {
	Coins []json.RawMessage `json:"coins"`
}

// decodeCoins parses a feed body. Elements that fail validation are dropped and counted.
func decodeCoins(body []byte, detectedAt int64) ([]*domain.Coin, int, error) {
	elems, err := splitElements(body)
	if err != nil {
		return nil, 0, err
	}

	coins := make([]*domain.Coin, 0, len(elems))
	dropped := 0
	for _, elem := range elems {
		coin, err := decodeCoin(elem, detectedAt)
		if err != nil {
			dropped++
			continue
		}
		coins = append(coins, coin)
	}
	return coins, dropped, nil
}

func splitElements(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '{' {
		var env userCoinsEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, err
		}
		return env.Coins, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, err
	}
	return elems, nil
}

// decodeCoin validates one element and maps it onto a Coin.
func decodeCoin(elem json.RawMessage, detectedAt int64) (*domain.Coin, error) {
	var r rawCoin
	if err := json.Unmarshal(elem, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	r.Mint = strings.TrimSpace(r.Mint)
	if r.Mint == "" {
		return nil, fmt.Errorf("%w: missing mint", ErrInvalidRecord)
	}

	coin := &domain.Coin{
		Mint:          r.Mint,
		Symbol:        r.Symbol,
		Name:          r.Name,
		Description:   r.Description,
		ImageURI:      r.ImageURI,
		MetadataURI:   r.MetadataURI,
		Twitter:       r.Twitter,
		Telegram:      r.Telegram,
		Website:       r.Website,
		CreatorWallet: strings.TrimSpace(r.Creator),
		BondingCurve:  r.BondingCurve,
		CreatedAt:     r.CreatedTimestamp,
		IsMigrated:    r.Complete,
		Raw:           append(json.RawMessage(nil), elem...),
	}
	if r.USDMarketCap != nil {
		coin.MarketCapUSD = *r.USDMarketCap
	}
	if coin.IsMigrated {
		at := detectedAt
		coin.MigratedAt = &at
	}
	return coin, nil
}
