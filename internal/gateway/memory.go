package gateway

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flyingrobots/wfm-core/internal/domain"
	"github.com/flyingrobots/wfm-core/internal/wfmerrors"
	"github.com/google/uuid"
)

// MemoryGateway is a point-in-time-consistent, transactional, idempotent
// reference implementation of Gateway backed by in-process maps. It is
// the gateway used by tests across every other package, and doubles as
// the executable specification of the interface's guarantees: a
// production Gateway (see sql.go) must behave identically from the
// caller's point of view.
type MemoryGateway struct {
	mu sync.RWMutex

	employees   map[string]domain.Employee
	shifts      []domain.Shift
	forecasts   []domain.ForecastInterval
	activity    []domain.AgentActivityInterval
	queues      map[string]domain.QueueSnapshot
	thresholds  map[string][]domain.ThresholdConfig
	preferences []SchedulePreference

	blocks       map[string][]domain.TimetableBlock // keyed by employeeID
	violations   map[string]domain.Violation         // keyed by id, for idempotent writes
	alerts       map[string]domain.Alert             // keyed by id
	changes      []BlockChange
	events       []MonitoringEvent
}

// NewMemoryGateway returns an empty gateway ready for seeding via the
// SeedX helpers below.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		employees:  make(map[string]domain.Employee),
		queues:     make(map[string]domain.QueueSnapshot),
		thresholds: make(map[string][]domain.ThresholdConfig),
		blocks:     make(map[string][]domain.TimetableBlock),
		violations: make(map[string]domain.Violation),
		alerts:     make(map[string]domain.Alert),
	}
}

// --- seeding helpers (test/bootstrap only, not part of Gateway) ---

func (g *MemoryGateway) SeedEmployee(e domain.Employee) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.employees[e.ID] = e
}

func (g *MemoryGateway) SeedShift(s domain.Shift) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.shifts = append(g.shifts, s)
}

func (g *MemoryGateway) SeedForecast(f domain.ForecastInterval) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.forecasts = append(g.forecasts, f)
}

func (g *MemoryGateway) SeedActivity(a domain.AgentActivityInterval) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.activity = append(g.activity, a)
}

func (g *MemoryGateway) SeedQueueSnapshot(q domain.QueueSnapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queues[q.ServiceID] = q
}

func (g *MemoryGateway) SeedThreshold(t domain.ThresholdConfig) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.thresholds[t.ServiceID] = append(g.thresholds[t.ServiceID], t)
}

func (g *MemoryGateway) SeedPreference(p SchedulePreference) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.preferences = append(g.preferences, p)
}

func (g *MemoryGateway) SeedBlockChange(c BlockChange) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.changes = append(g.changes, c)
}

// --- reads (snapshot semantics: copy out under RLock) ---

func inRange(t time.Time, r Range) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

func containsID(ids []string, id string) bool {
	if len(ids) == 0 {
		return true
	}
	for _, want := range ids {
		if want == id {
			return true
		}
	}
	return false
}

func (g *MemoryGateway) LoadShifts(_ context.Context, r Range, employeeIDs []string) ([]domain.Shift, error) {
	if !r.Valid() {
		return nil, wfmerrors.Validation("range", "end before start")
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []domain.Shift
	for _, s := range g.shifts {
		if !containsID(employeeIDs, s.EmployeeID) {
			continue
		}
		if s.Date.Before(r.Start) || !s.Date.Before(r.End) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (g *MemoryGateway) LoadForecast(_ context.Context, r Range, serviceIDs []string) ([]domain.ForecastInterval, error) {
	if !r.Valid() {
		return nil, wfmerrors.Validation("range", "end before start")
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []domain.ForecastInterval
	for _, f := range g.forecasts {
		if !containsID(serviceIDs, f.ServiceID) {
			continue
		}
		if !inRange(f.DateTime, r) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (g *MemoryGateway) LoadActivity(_ context.Context, r Range, employeeIDs []string) ([]domain.AgentActivityInterval, error) {
	if !r.Valid() {
		return nil, wfmerrors.Validation("range", "end before start")
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []domain.AgentActivityInterval
	for _, a := range g.activity {
		if !containsID(employeeIDs, a.AgentID) {
			continue
		}
		if !inRange(a.DateTime, r) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (g *MemoryGateway) LoadQueueSnapshot(_ context.Context, serviceID string) (domain.QueueSnapshot, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	q, ok := g.queues[serviceID]
	if !ok {
		return domain.QueueSnapshot{}, wfmerrors.NotFound("queue_snapshot", serviceID)
	}
	return q, nil
}

func (g *MemoryGateway) LoadThresholds(_ context.Context, serviceID string) ([]domain.ThresholdConfig, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]domain.ThresholdConfig, len(g.thresholds[serviceID]))
	copy(out, g.thresholds[serviceID])
	return out, nil
}

func (g *MemoryGateway) LoadEmployeeProfiles(_ context.Context, ids []string) ([]domain.Employee, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]domain.Employee, 0, len(ids))
	for _, id := range ids {
		e, ok := g.employees[id]
		if !ok {
			return nil, wfmerrors.NotFound("employee", id)
		}
		out = append(out, e)
	}
	return out, nil
}

func (g *MemoryGateway) LoadSchedulePreferences(_ context.Context, r Range, employeeIDs []string) ([]SchedulePreference, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []SchedulePreference
	for _, p := range g.preferences {
		if !containsID(employeeIDs, p.EmployeeID) {
			continue
		}
		if p.Date.Before(r.Start) || !p.Date.Before(r.End) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (g *MemoryGateway) RecentBlockChanges(_ context.Context, since time.Time) ([]BlockChange, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []BlockChange
	for _, c := range g.changes {
		if c.ChangedAt.After(since) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChangedAt.Before(out[j].ChangedAt) })
	return out, nil
}

// --- writes (transactional per call, idempotent on client-supplied ids) ---

func (g *MemoryGateway) PersistTimetableBlocks(_ context.Context, blocks []domain.TimetableBlock) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, b := range blocks {
		existing := g.blocks[b.EmployeeID]
		replaced := false
		for i, cur := range existing {
			if cur.Start.Equal(b.Start) {
				if cur.IsLocked && !b.IsLocked {
					return wfmerrors.Conflict("attempted write over locked block")
				}
				existing[i] = b
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, b)
		}
		g.blocks[b.EmployeeID] = existing
	}
	return nil
}

func (g *MemoryGateway) PersistViolations(_ context.Context, violations []domain.Violation) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, v := range violations {
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		g.violations[v.ID] = v // idempotent: same id overwrites with identical content
	}
	return nil
}

func (g *MemoryGateway) PersistAlerts(_ context.Context, alerts []domain.Alert) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, a := range alerts {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if existing, ok := g.alerts[a.ID]; ok && existing.Status == domain.AlertAcknowledged {
			return wfmerrors.Conflict("alert coalescing key already sealed")
		}
		g.alerts[a.ID] = a
	}
	return nil
}

func (g *MemoryGateway) RecordMonitoringEvent(_ context.Context, ev MonitoringEvent) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	g.events = append(g.events, ev)
	return nil
}

func (g *MemoryGateway) UpdateBlock(_ context.Context, employeeID string, at time.Time, changes BlockChangeSet) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	blocks := g.blocks[employeeID]
	for i, b := range blocks {
		if !b.Start.Equal(at) {
			continue
		}
		if b.IsLocked {
			return wfmerrors.Conflict("block is locked")
		}
		if changes.Activity != nil {
			b.Activity = *changes.Activity
		}
		if changes.SkillID != nil {
			b.SkillID = *changes.SkillID
		}
		if changes.ProjectID != nil {
			b.ProjectID = *changes.ProjectID
		}
		if changes.Lock != nil {
			b.IsLocked = *changes.Lock
		}
		blocks[i] = b
		g.blocks[employeeID] = blocks
		return nil
	}
	return wfmerrors.NotFound("timetable_block", employeeID)
}

func (g *MemoryGateway) UpsertThresholdConfig(_ context.Context, cfg domain.ThresholdConfig) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	existing := g.thresholds[cfg.ServiceID]
	for i, t := range existing {
		if t.Metric == cfg.Metric {
			existing[i] = cfg
			g.thresholds[cfg.ServiceID] = existing
			return nil
		}
	}
	g.thresholds[cfg.ServiceID] = append(existing, cfg)
	return nil
}

// BlocksFor returns a snapshot copy of the blocks persisted for an
// employee, sorted by start time. Test/inspection helper.
func (g *MemoryGateway) BlocksFor(employeeID string) []domain.TimetableBlock {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]domain.TimetableBlock, len(g.blocks[employeeID]))
	copy(out, g.blocks[employeeID])
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// AlertsSnapshot returns a snapshot copy of all persisted alerts.
func (g *MemoryGateway) AlertsSnapshot() []domain.Alert {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]domain.Alert, 0, len(g.alerts))
	for _, a := range g.alerts {
		out = append(out, a)
	}
	return out
}

// ViolationsSnapshot returns a snapshot copy of all persisted violations.
func (g *MemoryGateway) ViolationsSnapshot() []domain.Violation {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]domain.Violation, 0, len(g.violations))
	for _, v := range g.violations {
		out = append(out, v)
	}
	return out
}

var _ Gateway = (*MemoryGateway)(nil)
