// Package gateway implements the §4.A Repository Gateway: the sole
// point of contact between the WFM compute core and persisted state.
// Every other package reads and writes exclusively through the Gateway
// interface defined here; no package issues its own queries.
//
// Read operations are point-in-time consistent within a single call
// (snapshot semantics); write operations are transactional per call and
// idempotent when given a client-supplied id. Every operation returns an
// explicit wfmerrors.Kind on failure — no silent partial success.
package gateway

import (
	"context"
	"time"

	"github.com/flyingrobots/wfm-core/internal/domain"
)

// Range is a half-open UTC time range [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the range is well-formed (spec.md §7
// ValidationError: "date_range inverted").
func (r Range) Valid() bool {
	return !r.End.Before(r.Start)
}

// SchedulePreference is an employee's preferred shift boundaries and
// day-off flags for one date.
type SchedulePreference struct {
	EmployeeID     string
	Date           time.Time
	PreferredStart *time.Duration
	PreferredEnd   *time.Duration
	DayOff         bool
}

// BlockChange is one row from recent_block_changes, consumed by the
// Violation Monitor's real-time task.
type BlockChange struct {
	EmployeeID string
	ShiftDate  time.Time
	ChangedAt  time.Time
	Reason     string
}

// BlockChangeSet describes a manual adjustment applied to a block range
// via update_block.
type BlockChangeSet struct {
	Activity  *domain.ActivityType
	SkillID   *string
	ProjectID *string
	Lock      *bool
}

// MonitoringEvent is an audit record emitted by the Coverage Analyzer or
// Violation Monitor via record_monitoring_event.
type MonitoringEvent struct {
	ID        string
	ServiceID string
	Kind      string // e.g. "coverage_tick", "violation_detected", "alert_enqueued"
	At        time.Time
	Detail    string
}

// Gateway is the read/write contract of spec.md §4.A. Implementations
// must honor the snapshot/transactional/idempotent guarantees described
// in the package doc.
type Gateway interface {
	LoadShifts(ctx context.Context, r Range, employeeIDs []string) ([]domain.Shift, error)
	LoadForecast(ctx context.Context, r Range, serviceIDs []string) ([]domain.ForecastInterval, error)
	LoadActivity(ctx context.Context, r Range, employeeIDs []string) ([]domain.AgentActivityInterval, error)
	LoadQueueSnapshot(ctx context.Context, serviceID string) (domain.QueueSnapshot, error)
	LoadThresholds(ctx context.Context, serviceID string) ([]domain.ThresholdConfig, error)
	LoadEmployeeProfiles(ctx context.Context, ids []string) ([]domain.Employee, error)
	LoadSchedulePreferences(ctx context.Context, r Range, employeeIDs []string) ([]SchedulePreference, error)
	RecentBlockChanges(ctx context.Context, since time.Time) ([]BlockChange, error)

	PersistTimetableBlocks(ctx context.Context, blocks []domain.TimetableBlock) error
	PersistViolations(ctx context.Context, violations []domain.Violation) error
	PersistAlerts(ctx context.Context, alerts []domain.Alert) error
	RecordMonitoringEvent(ctx context.Context, ev MonitoringEvent) error
	UpdateBlock(ctx context.Context, employeeID string, at time.Time, changes BlockChangeSet) error
	UpsertThresholdConfig(ctx context.Context, cfg domain.ThresholdConfig) error
}
