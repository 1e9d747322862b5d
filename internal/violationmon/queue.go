package violationmon

import (
	"sort"
	"sync"
	"time"

	"github.com/flyingrobots/wfm-core/internal/domain"
	"github.com/flyingrobots/wfm-core/internal/obs"
	"github.com/flyingrobots/wfm-core/internal/wfmerrors"
	"golang.org/x/time/rate"
)

var severityRank = map[domain.Severity]int{
	domain.SeverityCritical: 0,
	domain.SeverityHigh:     1,
	domain.SeverityMedium:   2,
	domain.SeverityLow:      3,
}

// AlertQueue is a bounded, severity-ordered, in-process queue of pending
// alerts. Producers are rate-limited so a burst of violations cannot
// starve the drain loop's own CPU budget, the same backpressure idiom
// the teacher applies to webhook delivery.
type AlertQueue struct {
	mu       sync.Mutex
	items    []domain.Alert
	capacity int
	limiter  *rate.Limiter
}

// NewAlertQueue builds a bounded queue. capacity<=0 uses the spec
// default of 1000; producerRate<=0 disables rate limiting.
func NewAlertQueue(capacity int, producerRate rate.Limit, burst int) *AlertQueue {
	if capacity <= 0 {
		capacity = 1000
	}
	var limiter *rate.Limiter
	if producerRate > 0 {
		limiter = rate.NewLimiter(producerRate, burst)
	}
	return &AlertQueue{capacity: capacity, limiter: limiter}
}

// Push enqueues an alert, returning a Capacity error if the queue is
// full or the producer rate limit rejects the attempt.
func (q *AlertQueue) Push(a domain.Alert) error {
	if q.limiter != nil && !q.limiter.Allow() {
		obs.AlertsDropped.Inc()
		return wfmerrors.Capacity("alert producer rate limit exceeded")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		obs.AlertsDropped.Inc()
		return wfmerrors.Capacity("alert queue at capacity")
	}
	q.items = append(q.items, a)
	obs.AlertsEnqueued.Inc()
	obs.AlertQueueDepth.Set(float64(len(q.items)))
	return nil
}

// Drain removes up to n alerts, most severe first and stably ordered
// within a severity by enqueue time, matching the processor's "drains
// in batches of <=50" cadence (§4.E).
func (q *AlertQueue) Drain(n int) []domain.Alert {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n <= 0 || n > len(q.items) {
		n = len(q.items)
	}
	sort.SliceStable(q.items, func(i, j int) bool {
		return severityRank[q.items[i].Severity] < severityRank[q.items[j].Severity]
	})
	out := make([]domain.Alert, n)
	copy(out, q.items[:n])
	q.items = q.items[n:]
	obs.AlertQueueDepth.Set(float64(len(q.items)))
	return out
}

// Depth returns the current queue length.
func (q *AlertQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// groupByRecipient buckets a drained batch by its first recipient, so
// the sender can issue one delivery per manager instead of one per
// violation.
func groupByRecipient(alerts []domain.Alert) map[string][]domain.Alert {
	out := make(map[string][]domain.Alert)
	for _, a := range alerts {
		recipient := "unassigned"
		if len(a.Recipients) > 0 {
			recipient = a.Recipients[0]
		}
		out[recipient] = append(out[recipient], a)
	}
	return out
}

// Cooldown deduplicates alerts sharing a CoalescingKey within a window,
// process-local only (spec.md Open Question resolution: sent-alert
// dedup does not need to survive a restart or span replicas).
type Cooldown struct {
	mu       sync.Mutex
	window   time.Duration
	lastSent map[domain.CoalescingKey]time.Time
}

// NewCooldown builds a Cooldown; window<=0 uses the spec default of 1h.
func NewCooldown(window time.Duration) *Cooldown {
	if window <= 0 {
		window = time.Hour
	}
	return &Cooldown{window: window, lastSent: make(map[domain.CoalescingKey]time.Time)}
}

// Allow reports whether an alert for this key may be sent now, and if
// so records the send time so subsequent calls within the window are
// suppressed.
func (c *Cooldown) Allow(key domain.CoalescingKey, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if last, ok := c.lastSent[key]; ok && now.Sub(last) < c.window {
		return false
	}
	c.lastSent[key] = now
	return true
}
