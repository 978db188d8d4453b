package jobs

import (
	"context"

	"github.com/emrgen/canvas/internal/service"
	"github.com/emrgen/canvas/internal/store"
	"github.com/sirupsen/logrus"
)

// UsageResyncTask periodically recounts every user's library entities so
// the quota counters cannot drift after partial failures.
type UsageResyncTask struct {
	shares *service.ShareService
	store  store.Store
	cron   string
}

func NewUsageResyncTask(interval string, shares *service.ShareService, store store.Store) *UsageResyncTask {
	return &UsageResyncTask{
		shares: shares,
		store:  store,
		cron:   interval,
	}
}

func (u *UsageResyncTask) Schedule() string {
	return u.cron
}

func (u *UsageResyncTask) Run() {
	ctx := context.Background()

	quotas, err := u.store.ListQuotas(ctx)
	if err != nil {
		logrus.Errorf("usage resync: list quotas: %v", err)
		return
	}

	for _, quota := range quotas {
		if err := u.shares.ResyncUsage(ctx, quota.UID); err != nil {
			logrus.Errorf("usage resync: uid %s: %v", quota.UID, err)
		}
	}
}
