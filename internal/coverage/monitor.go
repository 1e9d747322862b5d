package coverage

import (
	"context"
	"time"

	"github.com/flyingrobots/wfm-core/internal/domain"
	"github.com/flyingrobots/wfm-core/internal/gateway"
	"go.uber.org/zap"
)

// IntervalFunc receives the latest coverage join for one service.
type IntervalFunc func(serviceID string, intervals []domain.CoverageInterval)

// WatchConfig tunes the real-time monitoring loop.
type WatchConfig struct {
	Interval time.Duration // default 30s
	Window   time.Duration // how far ahead to join forecast, default 2h
}

func (c WatchConfig) withDefaults() WatchConfig {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.Window <= 0 {
		c.Window = 2 * time.Hour
	}
	return c
}

// Watch runs Analyze on a fixed cadence for one service until ctx is
// cancelled, delivering each result to onInterval.
func (a *Analyzer) Watch(ctx context.Context, serviceID string, cfg WatchConfig, onInterval IntervalFunc, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			r := gateway.Range{Start: now, End: now.Add(cfg.Window)}
			intervals, err := a.Analyze(ctx, serviceID, r)
			if err != nil {
				log.Warn("coverage analysis failed", zap.String("service_id", serviceID), zap.Error(err))
				continue
			}
			if onInterval != nil {
				onInterval(serviceID, intervals)
			}
		}
	}
}
