// Package domain holds the entities of the §3 data model: employees,
// skills, shifts, timetable blocks, forecasts, violations, alerts and
// coverage intervals. These types are shared read-only across every
// component and are produced/consumed only through internal/gateway.
package domain

import "time"

// EmploymentType classifies how an employee is engaged.
type EmploymentType string

const (
	EmploymentFullTime   EmploymentType = "full_time"
	EmploymentPartTime   EmploymentType = "part_time"
	EmploymentContract   EmploymentType = "contract"
	EmploymentIntern     EmploymentType = "intern"
	EmploymentConsultant EmploymentType = "consultant"
)

// AgeCategory distinguishes minor-worker rules from adult rules.
type AgeCategory string

const (
	AgeAdult AgeCategory = "adult"
	AgeMinor AgeCategory = "minor"
)

// SkillCategory classifies a Skill.
type SkillCategory string

const (
	SkillTechnical     SkillCategory = "technical"
	SkillSoft          SkillCategory = "soft"
	SkillLanguage      SkillCategory = "language"
	SkillDomain        SkillCategory = "domain"
	SkillCertification SkillCategory = "certification"
)

// Skill is immutable once referenced by an assignment.
type Skill struct {
	ID       string
	Name     string
	Category SkillCategory
	ParentID string // optional
}

// SkillCapability is an employee's proficiency in one skill.
type SkillCapability struct {
	SkillID       string
	Proficiency   int // 1-5
	Certification bool
}

// Constraints bounds an employee's schedulable hours and permissions.
type Constraints struct {
	MaxDailyHours   float64
	MaxWeeklyHours  float64
	NightWorkOK     bool
	WeekendWorkOK   bool
	OvertimeAllowed bool
	WorkRateFactor  float64 // (0,1]
}

// Employee is created externally and mutated only via the gateway.
type Employee struct {
	ID             string
	DisplayName    string
	EmployeeNumber string
	Employment     EmploymentType
	AgeCategory    AgeCategory
	OrganizationID string
	DepartmentID   string
	PrimaryGroupID string
	Capabilities   []SkillCapability
	Constraints    Constraints
}

// PrimarySkill returns the capability with the highest proficiency, or
// the zero value and false if the employee has no capabilities.
func (e Employee) PrimarySkill() (SkillCapability, bool) {
	if len(e.Capabilities) == 0 {
		return SkillCapability{}, false
	}
	best := e.Capabilities[0]
	for _, c := range e.Capabilities[1:] {
		if c.Proficiency > best.Proficiency {
			best = c
		}
	}
	return best, true
}

// IsMonoSkill reports whether the employee has exactly one capability.
func (e Employee) IsMonoSkill() bool {
	return len(e.Capabilities) == 1
}

// ShiftStatus is the publication state of a Shift.
type ShiftStatus string

const (
	ShiftScheduled ShiftStatus = "scheduled"
	ShiftConfirmed ShiftStatus = "confirmed"
	ShiftPublished ShiftStatus = "published"
)

// Shift is produced externally; it is the source of truth for timetable
// generation. Start/End are time-of-day; End may be numerically before
// Start, which signals an overnight shift (the envelope extends into the
// next calendar day).
type Shift struct {
	ID         string
	EmployeeID string
	Date       time.Time // date only, UTC midnight
	Start      time.Duration // offset from Date midnight
	End        time.Duration // offset from Date midnight; < Start means crosses midnight
	Status     ShiftStatus
}

// CrossesMidnight reports whether the shift extends into the next day.
func (s Shift) CrossesMidnight() bool {
	return s.End <= s.Start
}

// Duration returns the wall-clock length of the shift honoring midnight
// crossing (invariant §3.6).
func (s Shift) Duration() time.Duration {
	if s.CrossesMidnight() {
		return (24*time.Hour - s.Start) + s.End
	}
	return s.End - s.Start
}

// StartAt and EndAt return absolute UTC instants for the shift.
func (s Shift) StartAt() time.Time { return s.Date.Add(s.Start) }
func (s Shift) EndAt() time.Time   { return s.Date.Add(s.Duration()).Add(s.Start) }

// ActivityType is the label on a TimetableBlock.
type ActivityType string

const (
	ActivityWork         ActivityType = "work"
	ActivityLunch        ActivityType = "lunch"
	ActivityShortBreak   ActivityType = "short_break"
	ActivityProject      ActivityType = "project"
	ActivityTraining     ActivityType = "training"
	ActivityMeeting      ActivityType = "meeting"
	ActivityDowntime     ActivityType = "downtime"
	ActivityNotAvailable ActivityType = "not_available"
)

// BlockInterval is the canonical 15-minute quantum.
const BlockInterval = 15 * time.Minute

// TimetableBlock is one interval of one employee with a single activity
// label. Produced by the Planner; mutable only via audited adjustments.
type TimetableBlock struct {
	EmployeeID   string
	Start        time.Time // absolute UTC instant, aligned to :00/:15/:30/:45
	Activity     ActivityType
	SkillID      string // optional
	ProjectID    string // optional
	IsLocked     bool
	TemplateCode string
	CreatedAt    time.Time
}

// End returns the exclusive end instant of the block.
func (b TimetableBlock) End() time.Time { return b.Start.Add(BlockInterval) }

// ForecastInterval is a 15-minute demand estimate for a service.
type ForecastInterval struct {
	ServiceID         string
	DateTime          time.Time
	RequiredAgents    float64
	ServiceLevelTarget float64 // percentage, 0-100
	HandleTimeSeconds float64
}

// QueueSnapshot is a point-in-time read of live queue telemetry.
type QueueSnapshot struct {
	ServiceID          string
	Timestamp          time.Time
	CallsWaiting       int
	LongestWaitSeconds float64
	AgentsAvailable    int
	AgentsBusy         int
	CurrentServiceLevel float64 // percentage
}

// AgentActivityInterval is observed agent telemetry for one interval.
type AgentActivityInterval struct {
	AgentID          string
	DateTime         time.Time
	LoginSeconds     float64
	ProductiveSeconds float64
	BreakSeconds     float64
	GroupID          string
}

// RuleCategory classifies a compliance Rule.
type RuleCategory string

const (
	RuleWorkingTime       RuleCategory = "working_time"
	RuleBreaks            RuleCategory = "breaks"
	RuleOvertime          RuleCategory = "overtime"
	RuleRestPeriods       RuleCategory = "rest_periods"
	RuleSpecialConditions RuleCategory = "special_conditions"
)

// PenaltyTier is the severity tier a Rule assigns on breach.
type PenaltyTier string

const (
	PenaltyWarning PenaltyTier = "warning"
	PenaltyFine    PenaltyTier = "fine"
	PenaltySerious PenaltyTier = "serious"
)

// Severity is the escalation level assigned to a concrete Violation or
// Alert, derived from magnitude (see internal/compliance).
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Violation references an existing rule and a concrete employee.
type Violation struct {
	ID             string
	EmployeeID     string
	OccurredAt     time.Time
	RuleID         string
	Tier           PenaltyTier // the tier this specific breach was scored at, not just the rule's static default
	Observed       float64
	Required       float64
	Severity       Severity
	MagnitudeScore float64 // supplemented: continuous magnitude, see SPEC_FULL.md
	Detail         string
	Remediation    []string
}

// AlertStatus tracks delivery progress of an Alert.
type AlertStatus string

const (
	AlertQueued       AlertStatus = "queued"
	AlertSent         AlertStatus = "sent"
	AlertAcknowledged AlertStatus = "acknowledged"
)

// CoalescingKey deduplicates alerts within the cooldown window.
type CoalescingKey struct {
	EmployeeID    string
	ViolationType string
	ShiftDate     time.Time // date only
}

// Alert groups one or more violations for delivery to managers.
type Alert struct {
	ID            string
	ViolationIDs  []string
	Severity      Severity
	Message       string
	Recipients    []string
	Key           CoalescingKey
	Status        AlertStatus
	CreatedAt     time.Time
}

// CoverageStatus classifies a CoverageInterval.
type CoverageStatus string

const (
	CoverageOptimal  CoverageStatus = "optimal"
	CoverageAdequate CoverageStatus = "adequate"
	CoverageShortage CoverageStatus = "shortage"
	CoverageSurplus  CoverageStatus = "surplus"
)

// CoverageInterval is the per-interval join of forecast vs staffed vs
// live agents, per §3 invariant 5.
type CoverageInterval struct {
	ServiceID         string
	DateTime          time.Time
	ForecastAgents    float64
	PlannedAgents     float64
	LiveAgents        float64
	HasLiveData       bool
	CoveragePct       float64
	Status            CoverageStatus
	ProjectedSL       float64
	Gap               float64
}

// ThresholdDirection says which side of a threshold is the bad side.
type ThresholdDirection string

const (
	DirectionBelow ThresholdDirection = "below"
	DirectionAbove ThresholdDirection = "above"
)

// ThresholdConfig configures alerting bands for one service metric.
type ThresholdConfig struct {
	ServiceID  string
	Metric     string
	Warning    float64
	Critical   float64
	Emergency  float64
	Direction  ThresholdDirection
	AutoAlert  bool
}
