package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/storage"
)

// InsertAlert creates an alert. Returns false if one already exists for (mint, creator).
func (s *Store) InsertAlert(_ context.Context, a *domain.Alert) (bool, error) {
	if a == nil || a.ID == "" || a.Mint == "" {
		return false, fmt.Errorf("%w: alert without id or mint", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := a.Mint + "|" + a.Creator.String()
	if _, exists := s.alertKeys[key]; exists {
		return false, nil
	}
	if _, ok := s.coins[a.Mint]; !ok {
		return false, fmt.Errorf("%w: coin %s not found", storage.ErrInvalidInput, a.Mint)
	}
	if _, ok := s.creators[a.Creator.String()]; !ok {
		return false, fmt.Errorf("%w: creator %s not found", storage.ErrInvalidInput, a.Creator)
	}
	if _, exists := s.alerts[a.ID]; exists {
		return false, storage.ErrDuplicateKey
	}

	stored := *a
	stored.Snapshot = cloneSnapshot(a.Snapshot)
	s.alerts[a.ID] = &stored
	s.alertKeys[key] = a.ID
	return true, nil
}

// MarkAlertRead flips the read flag.
func (s *Store) MarkAlertRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return storage.ErrNotFound
	}
	a.Read = true
	return nil
}

// ListAlerts returns alerts joined with coin and creator details, newest first.
func (s *Store) ListAlerts(_ context.Context, limit int, unreadOnly bool) ([]*domain.AlertView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var views []*domain.AlertView
	for _, a := range s.alerts {
		if unreadOnly && a.Read {
			continue
		}
		view := &domain.AlertView{Alert: *a}
		view.Snapshot = cloneSnapshot(a.Snapshot)
		if coin, ok := s.coins[a.Mint]; ok {
			view.CoinSymbol = coin.Symbol
			view.CoinName = coin.Name
			view.CoinImage = coin.ImageURI
		}
		if creator, ok := s.creators[a.Creator.String()]; ok {
			view.DisplayName = copyString(creator.DisplayName)
			view.ProfileURL = copyString(creator.ProfileURL)
		}
		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool {
		if views[i].TriggeredAt != views[j].TriggeredAt {
			return views[i].TriggeredAt > views[j].TriggeredAt
		}
		return views[i].ID < views[j].ID
	})

	if limit > 0 && len(views) > limit {
		views = views[:limit]
	}
	return views, nil
}
