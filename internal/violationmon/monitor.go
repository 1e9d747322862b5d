// Package violationmon implements the Violation Monitor: a real-time
// poller over recent block changes, a periodic full-population sweep,
// and an alert processor that drains the bounded queue into delivery.
package violationmon

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/flyingrobots/wfm-core/internal/compliance"
	"github.com/flyingrobots/wfm-core/internal/domain"
	"github.com/flyingrobots/wfm-core/internal/gateway"
	"github.com/flyingrobots/wfm-core/internal/obs"
	"go.uber.org/zap"
)

// ChangeSource supplies the block-change events the real-time poller
// re-evaluates. gatewayChangeSource answers it from whatever Gateway is
// wired in; *gateway.BlockChangeStream answers it straight from Redis so
// the poll survives process restarts. The Planner's adjustment operations
// do not write change events to either source.
type ChangeSource interface {
	Since(ctx context.Context, since time.Time) ([]gateway.BlockChange, error)
}

type gatewayChangeSource struct{ gw gateway.Gateway }

func (g gatewayChangeSource) Since(ctx context.Context, since time.Time) ([]gateway.BlockChange, error) {
	return g.gw.RecentBlockChanges(ctx, since)
}

// AlertStore is the durable backing for queued alerts, satisfied by
// *gateway.AlertQueueStore. When wired, every alert the in-process
// AlertQueue accepts is also persisted so a restart does not lose
// whatever was still queued for delivery.
type AlertStore interface {
	Push(ctx context.Context, payload string) error
	Drain(ctx context.Context, n int) ([]string, error)
}

// Sender delivers a drained batch of alerts to their recipients. The
// in-process reference Sender just logs; a production Sender would post
// to email/Slack/PagerDuty.
type Sender interface {
	Send(ctx context.Context, recipient string, alerts []domain.Alert) error
}

// LogSender is the reference Sender, grounded on the teacher's
// structured-logging idiom: every delivered alert is one log line,
// nothing is silently dropped.
type LogSender struct{ log *zap.Logger }

func NewLogSender(log *zap.Logger) *LogSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, recipient string, alerts []domain.Alert) error {
	for _, a := range alerts {
		s.log.Info("alert delivered",
			zap.String("recipient", recipient),
			zap.String("severity", string(a.Severity)),
			zap.String("message", a.Message))
	}
	return nil
}

// Config tunes the Monitor's polling cadence and queue shape.
type Config struct {
	RealTimeInterval      time.Duration // default 5s
	RealTimeIntervalBusy  time.Duration // default 2s, used once queue depth exceeds BusyThreshold
	BusyThreshold         int
	BatchSweepInterval    time.Duration // default 30m
	QueueCapacity         int           // default 1000
	CooldownWindow        time.Duration // default 1h
	DrainBatchSize        int           // default 50
	DrainInterval         time.Duration // default 1m ("50/minute")
}

func (c Config) withDefaults() Config {
	if c.RealTimeInterval <= 0 {
		c.RealTimeInterval = 5 * time.Second
	}
	if c.RealTimeIntervalBusy <= 0 {
		c.RealTimeIntervalBusy = 2 * time.Second
	}
	if c.BusyThreshold <= 0 {
		c.BusyThreshold = 100
	}
	if c.BatchSweepInterval <= 0 {
		c.BatchSweepInterval = 30 * time.Minute
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 1000
	}
	if c.CooldownWindow <= 0 {
		c.CooldownWindow = time.Hour
	}
	if c.DrainBatchSize <= 0 {
		c.DrainBatchSize = 50
	}
	if c.DrainInterval <= 0 {
		c.DrainInterval = time.Minute
	}
	return c
}

// Monitor ties the compliance Engine, Gateway and alert queue together
// into the always-on violation pipeline.
type Monitor struct {
	cfg      Config
	gw       gateway.Gateway
	changes  ChangeSource
	store    AlertStore
	engine   *compliance.Engine
	queue    *AlertQueue
	cooldown *Cooldown
	sender   Sender
	log      *zap.Logger

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	lastScan time.Time
	scanMu   sync.Mutex
}

// NewMonitor builds a Monitor; any zero fields in cfg take their
// spec.md §4.E defaults. The real-time poll defaults to gw's own
// RecentBlockChanges; call WithChangeSource to point it at a
// Redis-backed BlockChangeStream instead.
func NewMonitor(cfg Config, gw gateway.Gateway, engine *compliance.Engine, sender Sender, log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	if sender == nil {
		sender = NewLogSender(log)
	}
	return &Monitor{
		cfg:      cfg,
		gw:       gw,
		changes:  gatewayChangeSource{gw: gw},
		engine:   engine,
		queue:    NewAlertQueue(cfg.QueueCapacity, 0, 0),
		cooldown: NewCooldown(cfg.CooldownWindow),
		sender:   sender,
		log:      log,
	}
}

// WithChangeSource points the real-time poller at a durable change feed
// (typically a *gateway.BlockChangeStream) instead of the Gateway's own
// RecentBlockChanges.
func (m *Monitor) WithChangeSource(src ChangeSource) *Monitor {
	m.changes = src
	return m
}

// WithAlertStore wires a durable backing store (typically a
// *gateway.AlertQueueStore) behind the in-process alert queue: every
// accepted alert is persisted there too, and Start rehydrates whatever
// was left queued by a previous process before resuming normal polling.
func (m *Monitor) WithAlertStore(store AlertStore) *Monitor {
	m.store = store
	return m
}

// Start launches the real-time poller, the batch sweep, and the alert
// processor as background goroutines tied to ctx.
func (m *Monitor) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.lastScan = time.Now()

	if m.store != nil {
		m.restoreFromStore(runCtx)
	}

	m.wg.Add(3)
	go m.runRealTime(runCtx)
	go m.runBatchSweep(runCtx)
	go m.runProcessor(runCtx)
}

// restoreFromStore drains whatever alerts survived a prior process's
// shutdown out of the durable store and back into the in-process queue,
// so a restart does not silently drop what was already pending delivery.
func (m *Monitor) restoreFromStore(ctx context.Context) {
	for {
		payloads, err := m.store.Drain(ctx, m.cfg.DrainBatchSize)
		if err != nil {
			m.log.Warn("alert store restore failed", zap.Error(err))
			return
		}
		if len(payloads) == 0 {
			return
		}
		for _, p := range payloads {
			var alert domain.Alert
			if err := json.Unmarshal([]byte(p), &alert); err != nil {
				m.log.Warn("alert store payload decode failed", zap.Error(err))
				continue
			}
			if err := m.queue.Push(alert); err != nil {
				m.log.Warn("restored alert rejected by queue", zap.Error(err))
			}
		}
	}
}

// Stop cancels the background loops and performs the two-phase shutdown
// drain: stop producing new alerts, then drain whatever is still queued
// before returning, so a shutdown never silently discards alerts.
func (m *Monitor) Stop(ctx context.Context) {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	for m.queue.Depth() > 0 {
		batch := m.queue.Drain(m.cfg.DrainBatchSize)
		m.deliver(ctx, batch)
	}
}

func (m *Monitor) runRealTime(ctx context.Context) {
	defer m.wg.Done()
	interval := m.cfg.RealTimeInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.scan(ctx)
			if m.queue.Depth() > m.cfg.BusyThreshold && interval != m.cfg.RealTimeIntervalBusy {
				interval = m.cfg.RealTimeIntervalBusy
				ticker.Reset(interval)
			} else if m.queue.Depth() <= m.cfg.BusyThreshold && interval != m.cfg.RealTimeInterval {
				interval = m.cfg.RealTimeInterval
				ticker.Reset(interval)
			}
		}
	}
}

func (m *Monitor) runBatchSweep(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.BatchSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepAll(ctx)
		}
	}
}

func (m *Monitor) runProcessor(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.DrainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch := m.queue.Drain(m.cfg.DrainBatchSize)
			m.deliver(ctx, batch)
		}
	}
}

func (m *Monitor) deliver(ctx context.Context, batch []domain.Alert) {
	for recipient, alerts := range groupByRecipient(batch) {
		if err := m.sender.Send(ctx, recipient, alerts); err != nil {
			m.log.Warn("alert delivery failed", zap.String("recipient", recipient), zap.Error(err))
			continue
		}
		obs.AlertsSent.Add(float64(len(alerts)))
	}
}

// scan polls recent block changes since the last scan and re-evaluates
// only the affected employees, the incremental path spec.md §4.E calls
// out to keep real-time checks cheap.
func (m *Monitor) scan(ctx context.Context) {
	m.scanMu.Lock()
	since := m.lastScan
	m.lastScan = time.Now()
	m.scanMu.Unlock()

	changes, err := m.changes.Since(ctx, since)
	if err != nil {
		m.log.Warn("recent block change poll failed", zap.Error(err))
		return
	}
	seen := make(map[string]bool)
	for _, c := range changes {
		if seen[c.EmployeeID] {
			continue
		}
		seen[c.EmployeeID] = true
		m.evaluateAndEnqueue(ctx, c.EmployeeID, c.ShiftDate)
	}
}

// sweepAll re-evaluates every employee referenced in currently loaded
// shifts over a trailing window, the safety-net path that catches
// anything the incremental scan missed.
func (m *Monitor) sweepAll(ctx context.Context) {
	window := gateway.Range{Start: time.Now().Add(-14 * 24 * time.Hour), End: time.Now().Add(24 * time.Hour)}
	shifts, err := m.gw.LoadShifts(ctx, window, nil)
	if err != nil {
		m.log.Warn("batch sweep shift load failed", zap.Error(err))
		return
	}
	seen := make(map[string]bool)
	for _, s := range shifts {
		if seen[s.EmployeeID] {
			continue
		}
		seen[s.EmployeeID] = true
		m.evaluateAndEnqueue(ctx, s.EmployeeID, time.Now())
	}
}

func (m *Monitor) evaluateAndEnqueue(ctx context.Context, employeeID string, around time.Time) {
	r := gateway.Range{Start: around.AddDate(0, 0, -7), End: around.AddDate(0, 0, 1)}
	res, err := m.engine.ValidateOne(ctx, employeeID, r, false)
	if err != nil {
		m.log.Warn("compliance re-evaluation failed", zap.String("employee_id", employeeID), zap.Error(err))
		return
	}
	for _, v := range res.Violations {
		m.enqueueAlert(ctx, employeeID, v)
	}
}

func (m *Monitor) enqueueAlert(ctx context.Context, employeeID string, v domain.Violation) {
	key := domain.CoalescingKey{
		EmployeeID:    employeeID,
		ViolationType: v.RuleID,
		ShiftDate:     v.OccurredAt.Truncate(24 * time.Hour),
	}
	if !m.cooldown.Allow(key, time.Now()) {
		obs.AlertsDropped.Inc()
		return
	}
	alert := domain.Alert{
		Severity:   v.Severity,
		Message:    v.Detail,
		Recipients: []string{fmt.Sprintf("manager-of:%s", employeeID)},
		Key:        key,
		Status:     domain.AlertQueued,
		CreatedAt:  time.Now(),
	}
	if err := m.queue.Push(alert); err != nil {
		m.log.Warn("alert enqueue rejected", zap.Error(err))
		return
	}
	if m.store != nil {
		payload, err := json.Marshal(alert)
		if err != nil {
			m.log.Warn("alert payload encode failed", zap.Error(err))
			return
		}
		if err := m.store.Push(ctx, string(payload)); err != nil {
			m.log.Warn("alert store persist failed", zap.Error(err))
		}
	}
}
