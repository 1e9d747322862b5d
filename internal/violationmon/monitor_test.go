package violationmon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/flyingrobots/wfm-core/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertQueuePushRejectsAtCapacity(t *testing.T) {
	q := NewAlertQueue(1, 0, 0)
	require.NoError(t, q.Push(domain.Alert{Severity: domain.SeverityLow}))
	err := q.Push(domain.Alert{Severity: domain.SeverityLow})
	require.Error(t, err)
}

func TestAlertQueueDrainOrdersBySeverity(t *testing.T) {
	q := NewAlertQueue(10, 0, 0)
	require.NoError(t, q.Push(domain.Alert{Severity: domain.SeverityLow}))
	require.NoError(t, q.Push(domain.Alert{Severity: domain.SeverityCritical}))
	require.NoError(t, q.Push(domain.Alert{Severity: domain.SeverityMedium}))

	out := q.Drain(10)
	require.Len(t, out, 3)
	assert.Equal(t, domain.SeverityCritical, out[0].Severity)
	assert.Equal(t, domain.SeverityMedium, out[1].Severity)
	assert.Equal(t, domain.SeverityLow, out[2].Severity)
}

func TestCooldownSuppressesWithinWindow(t *testing.T) {
	c := NewCooldown(time.Hour)
	key := domain.CoalescingKey{EmployeeID: "e1", ViolationType: "DAILY_HOURS"}
	now := time.Now()
	assert.True(t, c.Allow(key, now))
	assert.False(t, c.Allow(key, now.Add(time.Minute)))
	assert.True(t, c.Allow(key, now.Add(2*time.Hour)))
}

type recordingSender struct {
	mu   sync.Mutex
	sent int
}

func (s *recordingSender) Send(_ context.Context, _ string, alerts []domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent += len(alerts)
	return nil
}

func TestMonitorStopDrainsQueue(t *testing.T) {
	sender := &recordingSender{}
	m := NewMonitor(Config{DrainInterval: time.Hour}, nil, nil, sender, nil)
	require.NoError(t, m.queue.Push(domain.Alert{Severity: domain.SeverityHigh, Recipients: []string{"mgr1"}}))
	require.NoError(t, m.queue.Push(domain.Alert{Severity: domain.SeverityLow, Recipients: []string{"mgr1"}}))

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	cancel()
	m.Stop(context.Background())

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, 2, sender.sent)
	assert.Equal(t, 0, m.queue.Depth())
}
