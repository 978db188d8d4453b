package jobs

import (
	"context"
	"time"

	"github.com/emrgen/canvas/internal/service"
	"github.com/emrgen/canvas/internal/store"
	"github.com/sirupsen/logrus"
)

// ShareRefreshTask re-snapshots shares whose public blob has gone stale,
// a batch at a time, so long-lived shares keep tracking their entities
// even when no one re-publishes them explicitly.
type ShareRefreshTask struct {
	shares *service.ShareService
	store  store.Store
	cron   string
	maxAge time.Duration
	batch  int
}

func NewShareRefreshTask(interval string, maxAge time.Duration, shares *service.ShareService, store store.Store) *ShareRefreshTask {
	return &ShareRefreshTask{
		shares: shares,
		store:  store,
		cron:   interval,
		maxAge: maxAge,
		batch:  100,
	}
}

func (s *ShareRefreshTask) Schedule() string {
	return s.cron
}

func (s *ShareRefreshTask) Run() {
	ctx := context.Background()

	stale, err := s.store.ListStaleShares(ctx, time.Now().Add(-s.maxAge), s.batch)
	if err != nil {
		logrus.Errorf("share refresh: list stale shares: %v", err)
		return
	}

	for _, share := range stale {
		if err := s.shares.RefreshShare(ctx, share.ID); err != nil {
			logrus.Errorf("share refresh: share %s: %v", share.ID, err)
		}
	}
}
