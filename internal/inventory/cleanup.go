package inventory

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stocksavvy/stocksavvy/internal/store"
)

const cleanupParallelism = 8

// CleanupOldSoldProducts flags sold products whose sale date is at least the
// retention period old as archived. Products stay in the served list.
// Re-flagging an archived product is harmless.
func (s *Service) CleanupOldSoldProducts(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.SoldRetention).Format(DateLayout)
	docs, err := s.store.ListWhere(ctx, store.CollectionProducts,
		store.Where(fieldStatus, store.OpEq, string(StatusSold)),
		store.Where(fieldSaleDate, store.OpLte, cutoff),
	)
	if err != nil {
		return 0, persistence("query sold products", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cleanupParallelism)
	for _, doc := range docs {
		id := doc.ID()
		ids = append(ids, id)
		g.Go(func() error {
			return s.store.Update(gctx, store.CollectionProducts, id, store.Document{fieldArchived: true})
		})
	}
	if err := g.Wait(); err != nil {
		return 0, persistence("archive sold products", err)
	}

	s.markArchived(ids)
	s.notify(ctx, ChangeKindCleanup, ids...)
	return len(ids), nil
}

// RunCleanup sweeps once immediately and then on every interval until ctx
// is cancelled. Failures are logged and the next tick tries again.
func (s *Service) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	s.sweep(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	count, err := s.CleanupOldSoldProducts(ctx)
	if err != nil {
		s.log().Error("archive old sold products", slog.Any("error", err))
		return
	}
	s.log().Info("archived old sold products", slog.Int("count", count))
}

func (s *Service) markArchived(ids []string) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if _, ok := set[s.products[i].ID]; ok {
			s.products[i].Archived = true
		}
	}
}
