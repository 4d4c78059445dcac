package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Purger removes audit rows older than a cutoff.
type Purger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type AuditRetentionWorker struct {
	repo         Purger
	logger       logrus.FieldLogger
	retention    time.Duration
	tickInterval time.Duration
	now          func() time.Time
}

func NewAuditRetentionWorker(repo Purger, retention time.Duration, logger logrus.FieldLogger) *AuditRetentionWorker {
	return &AuditRetentionWorker{
		repo:         repo,
		logger:       logger,
		retention:    retention,
		tickInterval: time.Hour,
		now:          time.Now,
	}
}

// Start purges once immediately and then on every tick until ctx is done.
func (w *AuditRetentionWorker) Start(ctx context.Context) {
	w.logger.WithField("retention", w.retention.String()).Info("audit retention worker started")

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.purge(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("audit retention worker stopped")
			return
		case <-ticker.C:
			w.purge(ctx)
		}
	}
}

func (w *AuditRetentionWorker) purge(ctx context.Context) {
	cutoff := w.now().Add(-w.retention)

	n, err := w.repo.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		w.logger.WithError(err).Error("purging audit rows failed")
		return
	}
	if n > 0 {
		w.logger.WithFields(logrus.Fields{"rows": n, "cutoff": cutoff}).Info("audit rows purged")
	}
}
