package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/storage"
)

const (
	defaultCreatorLimit = 50
	defaultCoinLimit    = 20
	defaultAlertLimit   = 50
	defaultSearchLimit  = 20
	maxLimit            = 100
	minQueryLength      = 2
	maxBatchBody        = 64 << 10
	healthTimeout       = 2 * time.Second
)

// parseLimit returns the limit query value, def when absent or invalid, capped at maxLimit.
func parseLimit(r *http.Request, def int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

func parseOffset(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// health handles GET /api/health
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Database: "connected"}
	if s.status != nil {
		st := s.status.Status()
		resp.Pipeline = &st
	}

	if err := s.store.Ping(ctx); err != nil {
		s.logger.WithError(err).Warn("health check: store unreachable")
		resp.Status = "degraded"
		resp.Database = "disconnected"
		s.jsonResponse(w, http.StatusServiceUnavailable, Envelope{
			Data:    resp,
			Error:   codeUnavailable,
			Message: "database unavailable",
		})
		return
	}
	s.ok(w, resp)
}

// stats handles GET /api/stats
func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	overview, err := s.store.Overview(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.ok(w, overview)
}

// listCreators handles GET /api/creators
func (s *Server) listCreators(w http.ResponseWriter, r *http.Request) {
	sort := storage.SortSuccessRate
	if v := r.URL.Query().Get("sort"); v != "" {
		sort = storage.CreatorSort(v)
		if !sort.IsValid() {
			s.errorResponse(w, http.StatusBadRequest, codeBadRequest,
				fmt.Sprintf("sort must be one of %s, %s, %s, %s",
					storage.SortSuccessRate, storage.SortMigrations, storage.SortTotalCoins, storage.SortRecent))
			return
		}
	}

	creators, err := s.store.ListCreators(r.Context(), storage.ListCreatorsParams{
		Limit:  parseLimit(r, defaultCreatorLimit),
		Offset: parseOffset(r),
		Sort:   sort,
	})
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.ok(w, creatorViews(creators))
}

// getCreator handles GET /api/creators/{id}
func (s *Server) getCreator(w http.ResponseWriter, r *http.Request) {
	id, err := domain.IdentityFromLookup(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, codeBadRequest, "invalid creator id")
		return
	}

	creator, err := s.store.GetCreator(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, codeNotFound, "creator not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	coins, err := s.store.CoinsByCreator(r.Context(), id)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.ok(w, CreatorDetail{Creator: creatorView(creator), Coins: coinViews(coins)})
}

// recentCoins handles GET /api/coins/recent
func (s *Server) recentCoins(w http.ResponseWriter, r *http.Request) {
	coins, err := s.store.RecentCoins(r.Context(), parseLimit(r, defaultCoinLimit))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.ok(w, coinViews(coins))
}

// getCoin handles GET /api/coins/{mint}
func (s *Server) getCoin(w http.ResponseWriter, r *http.Request) {
	coin, err := s.store.GetCoin(r.Context(), r.PathValue("mint"))
	if errors.Is(err, storage.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, codeNotFound, "coin not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	detail := CoinDetail{Coin: coinView(coin)}
	if coin.Creator != nil {
		creator, err := s.store.GetCreator(r.Context(), *coin.Creator)
		switch {
		case err == nil:
			view := creatorView(creator)
			detail.Creator = &view
		case !errors.Is(err, storage.ErrNotFound):
			s.internalError(w, r, err)
			return
		}
	}
	s.ok(w, detail)
}

// batchCoins handles POST /api/coins/batch
func (s *Server) batchCoins(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBody)).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, codeBadRequest, "body must be {\"mints\": [...]}")
		return
	}
	if len(req.Mints) == 0 {
		s.errorResponse(w, http.StatusBadRequest, codeBadRequest, "mints must not be empty")
		return
	}
	if len(req.Mints) > storage.MaxBatchMints {
		s.errorResponse(w, http.StatusBadRequest, codeBadRequest,
			fmt.Sprintf("at most %d mints per request", storage.MaxBatchMints))
		return
	}

	coins, err := s.store.CoinsByMints(r.Context(), req.Mints)
	if errors.Is(err, storage.ErrInvalidInput) {
		s.errorResponse(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.ok(w, coinViews(coins))
}

// search handles GET /api/search
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(q) < minQueryLength {
		s.errorResponse(w, http.StatusBadRequest, codeBadRequest,
			fmt.Sprintf("q must be at least %d characters", minQueryLength))
		return
	}

	kind := r.URL.Query().Get("type")
	if kind == "" {
		kind = "all"
	}
	if kind != "all" && kind != "creators" && kind != "coins" {
		s.errorResponse(w, http.StatusBadRequest, codeBadRequest, "type must be creators, coins or all")
		return
	}
	limit := parseLimit(r, defaultSearchLimit)

	resp := SearchResponse{}
	if kind != "coins" {
		creators, err := s.store.SearchCreators(r.Context(), q, limit)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		resp.Creators = creatorViews(creators)
	}
	if kind != "creators" {
		coins, err := s.store.SearchCoins(r.Context(), q, limit)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		resp.Coins = coinViews(coins)
	}
	s.ok(w, resp)
}

// listAlerts handles GET /api/alerts
func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.store.ListAlerts(r.Context(), parseLimit(r, defaultAlertLimit), parseBool(r.URL.Query().Get("unread_only")))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.ok(w, alertViews(alerts))
}

// markAlertRead handles POST /api/alerts/{id}/read
func (s *Server) markAlertRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.store.MarkAlertRead(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, codeNotFound, "alert not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, Envelope{Success: true, Message: "alert marked as read"})
}
