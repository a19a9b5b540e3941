package pumpfun

import (
	"context"

	"github.com/Selopol/padre-pump-backend/internal/domain"
)

// MaxConsecutivePageFailures ends paging after this many failed pages in a row.
const MaxConsecutivePageFailures = 3

// Page is one upstream page. Received counts every element the feed sent,
// including records dropped while decoding.
type Page struct {
	Coins    []*domain.Coin
	Received int
}

// PageFunc fetches one page.
type PageFunc func(ctx context.Context, offset, limit int) (Page, error)

// CoinPages adapts a fetcher that never drops records.
func CoinPages(fetch func(ctx context.Context, offset, limit int) ([]*domain.Coin, error)) PageFunc {
	return func(ctx context.Context, offset, limit int) (Page, error) {
		coins, err := fetch(ctx, offset, limit)
		if err != nil {
			return Page{}, err
		}
		return Page{Coins: coins, Received: len(coins)}, nil
	}
}

// PageResult is the outcome of Paginate.
type PageResult struct {
	Coins   []*domain.Coin
	Pages   int   // pages fetched successfully
	Errors  int   // pages that failed
	LastErr error // most recent page error
}

// Paginate walks pages of pageSize until max coins are collected, a page with
// fewer received elements than requested signals end-of-data, ctx is done or MaxConsecutivePageFailures pages fail in a row.
// A failed page is counted and skipped. maxCoins <= 0 means no cap.
func Paginate(ctx context.Context, fetch PageFunc, pageSize, maxCoins int) PageResult {
	var res PageResult
	if pageSize <= 0 {
		return res
	}

	failures := 0
	for offset := 0; maxCoins <= 0 || offset < maxCoins; offset += pageSize {
		if ctx.Err() != nil {
			res.LastErr = ctx.Err()
			return res
		}

		limit := pageSize
		if maxCoins > 0 && offset+limit > maxCoins {
			limit = maxCoins - offset
		}

		page, err := fetch(ctx, offset, limit)
		if err != nil {
			res.Errors++
			res.LastErr = err
			failures++
			if failures >= MaxConsecutivePageFailures {
				return res
			}
			continue
		}
		failures = 0
		res.Pages++
		res.Coins = append(res.Coins, page.Coins...)

		if page.Received < limit {
			return res
		}
	}
	return res
}
