// Package notifier watches the outage log and the event outbox. It keeps
// the open-outage and backlog gauges current and raises outages that have
// been open suspiciously long.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stationops/pims/internal/clock"
	"github.com/stationops/pims/internal/events"
	"github.com/stationops/pims/internal/observability/metrics"
	"github.com/stationops/pims/internal/observability/tracing"
	outagedomain "github.com/stationops/pims/internal/outage/domain"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Outbox  *events.Outbox
	Metrics *metrics.EngineMetrics `optional:"true"`
	Config  Config                 `optional:"true"`
}

type Worker struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	outbox  *events.Outbox
	metrics *metrics.EngineMetrics
	cfg     Config
	client  *http.Client

	mu     sync.Mutex
	warned map[int64]struct{}
}

func NewWorker(p Params) *Worker {
	return &Worker{
		db:      p.DB,
		log:     p.Log.Named("outage.notifier"),
		clock:   p.Clock,
		outbox:  p.Outbox,
		metrics: p.Metrics,
		cfg:     p.Config.withDefaults(),
		client:  tracing.WrapHTTPClient(&http.Client{Timeout: 10 * time.Second}),
		warned:  make(map[int64]struct{}),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(); err != nil {
			w.log.Warn("outage watchdog run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) RunOnce() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var open []outagedomain.Record
	if err := w.db.WithContext(ctx).
		Where("ended_at IS NULL").
		Find(&open).Error; err != nil {
		return err
	}
	w.metrics.SetOutagesOpen(len(open))

	now := w.clock.Now()
	for _, r := range open {
		if now.Sub(r.StartedAt) < w.cfg.OpenWarnAfter {
			continue
		}
		if w.alreadyWarned(int64(r.ID)) {
			continue
		}
		w.log.Warn("outage open past threshold",
			zap.String("scope", string(r.Scope)),
			zap.String("type", r.OutageType),
			zap.Time("started_at", r.StartedAt),
			zap.Duration("open_for", now.Sub(r.StartedAt)),
		)
		if err := w.notify(ctx, r, now); err != nil {
			w.log.Warn("outage webhook delivery failed", zap.Error(err))
			continue
		}
		w.markWarned(int64(r.ID))
	}

	pending, err := w.outbox.Pending(ctx)
	if err != nil {
		return err
	}
	w.metrics.SetEventsPending(pending)
	return nil
}

func (w *Worker) notify(ctx context.Context, r outagedomain.Record, now time.Time) error {
	if w.cfg.WebhookURL == "" {
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"outage_id":   r.ID.String(),
		"scope":       r.Scope,
		"outage_type": r.OutageType,
		"started_at":  r.StartedAt.Format(time.RFC3339),
		"open_hours":  now.Sub(r.StartedAt).Hours(),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func (w *Worker) alreadyWarned(id int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.warned[id]
	return ok
}

func (w *Worker) markWarned(id int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.warned[id] = struct{}{}
}
