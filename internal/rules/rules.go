// Package rules implements the §4.B Rule Catalog & Matrix: the fixed,
// versioned ruleset loaded once per process with a TTL-based refresh, and
// a vectorizable per-category threshold matrix for branch-free batch
// evaluation.
//
// Dynamic rule/parameter dispatch (runtime reflection of metric names) is
// replaced here by a tagged variant (RuleID) and a dispatch table keyed
// by that variant, per spec.md §9.
package rules

import (
	"sync"
	"time"

	"github.com/flyingrobots/wfm-core/internal/domain"
	"github.com/flyingrobots/wfm-core/internal/obs"
	"github.com/flyingrobots/wfm-core/internal/wfmerrors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RuleID is the tagged variant naming one of the canonical rules.
type RuleID string

const (
	DailyHours      RuleID = "DAILY_HOURS"
	WeeklyHours     RuleID = "WEEKLY_HOURS"
	RestBetween     RuleID = "REST_BETWEEN"
	BreakQuota      RuleID = "BREAK_QUOTA"
	Lunch           RuleID = "LUNCH"
	ConsecutiveDays RuleID = "CONSECUTIVE_DAYS"
)

// evaluationOrder fixes rule order for deterministic violation lists
// (spec.md §4.C "Rule order is fixed").
var evaluationOrder = []RuleID{DailyHours, WeeklyHours, RestBetween, BreakQuota, Lunch, ConsecutiveDays}

// Rule is one row of the §4.B canonical table.
type Rule struct {
	ID       RuleID
	Category domain.RuleCategory
	Tier     domain.PenaltyTier // tier assigned on breach; empty for DailyHours and WeeklyHours, see TierOf
}

// Thresholds is the per-age-category numeric representation of one rule,
// the "vectorizable" matrix cell of spec.md §4.B.
type Thresholds struct {
	Standard float64 // e.g. daily standard cap, weekly standard cap
	Max      float64 // e.g. daily max cap, weekly max cap
}

// Matrix is the immutable, per-category threshold table. Once loaded it
// is never mutated; refresh swaps the pointer (spec.md §5 "Shared
// resources").
type Matrix struct {
	loadedAt time.Time
	byAge    map[domain.AgeCategory]map[RuleID]Thresholds
}

// ThresholdsFor returns the thresholds for a rule under an age category.
func (m *Matrix) ThresholdsFor(age domain.AgeCategory, id RuleID) (Thresholds, bool) {
	byRule, ok := m.byAge[age]
	if !ok {
		return Thresholds{}, false
	}
	t, ok := byRule[id]
	return t, ok
}

func buildMatrix() *Matrix {
	return &Matrix{
		loadedAt: time.Now(),
		byAge: map[domain.AgeCategory]map[RuleID]Thresholds{
			domain.AgeAdult: {
				DailyHours:      {Standard: 8, Max: 12},
				WeeklyHours:     {Standard: 40, Max: 48},
				RestBetween:     {Standard: 11, Max: 11},
				BreakQuota:      {Standard: 7.5, Max: 7.5}, // required break minutes per hour worked (15 min / 2 h)
				Lunch:           {Standard: 30, Max: 60},
				ConsecutiveDays: {Standard: 6, Max: 6},
			},
			domain.AgeMinor: {
				DailyHours:      {Standard: 7, Max: 7},
				WeeklyHours:     {Standard: 35, Max: 35},
				RestBetween:     {Standard: 11, Max: 11},
				BreakQuota:      {Standard: 7.5, Max: 7.5},
				Lunch:           {Standard: 30, Max: 60},
				ConsecutiveDays: {Standard: 6, Max: 6},
			},
		},
	}
}

// Catalog definitions keyed by RuleID, used for category lookups by the
// Compliance Engine. DailyHours and WeeklyHours carry no static Tier:
// §4.B splits their breach into fine (above Standard) or serious (above
// Max), so the Compliance Engine picks the tier per breach instead of
// through TierOf.
var catalog = map[RuleID]Rule{
	DailyHours:      {ID: DailyHours, Category: domain.RuleWorkingTime},
	WeeklyHours:     {ID: WeeklyHours, Category: domain.RuleOvertime},
	RestBetween:     {ID: RestBetween, Category: domain.RuleRestPeriods, Tier: domain.PenaltyFine},
	BreakQuota:      {ID: BreakQuota, Category: domain.RuleBreaks, Tier: domain.PenaltyWarning},
	Lunch:           {ID: Lunch, Category: domain.RuleBreaks, Tier: domain.PenaltyWarning},
	ConsecutiveDays: {ID: ConsecutiveDays, Category: domain.RuleRestPeriods, Tier: domain.PenaltyFine},
}

var orderIndex = func() map[RuleID]int {
	m := make(map[RuleID]int, len(evaluationOrder))
	for i, id := range evaluationOrder {
		m[id] = i
	}
	return m
}()

// EvaluationOrder returns the fixed rule evaluation order.
func EvaluationOrder() []RuleID {
	out := make([]RuleID, len(evaluationOrder))
	copy(out, evaluationOrder)
	return out
}

// CategoryOf returns the category of a rule id.
func CategoryOf(id RuleID) domain.RuleCategory {
	return catalog[id].Category
}

// TierOf returns the penalty tier a rule assigns on breach. DailyHours
// and WeeklyHours have no single tier (see catalog); callers evaluating
// those two rules must derive the tier themselves from which cap was
// crossed.
func TierOf(id RuleID) domain.PenaltyTier {
	return catalog[id].Tier
}

// OrderOf returns a rule's position in the fixed evaluation order, for
// stable-sorting violation lists.
func OrderOf(id RuleID) int {
	return orderIndex[id]
}

// Entry returns the catalog row for a rule id.
func Entry(id RuleID) Rule {
	return catalog[id]
}

// Catalog loads the fixed ruleset once per process with a TTL-based
// refresh (default 24h per spec.md §4.B), guarded by a refresh lock so
// readers always see a fully-built Matrix (spec.md §5 "atomically swap
// the pointer under a refresh lock").
type Catalog struct {
	mu      sync.RWMutex
	matrix  *Matrix
	ttl     time.Duration
	log     *zap.Logger
	cron    *cron.Cron
}

// NewCatalog builds and loads a Catalog with the given refresh TTL.
func NewCatalog(ttl time.Duration, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Catalog{ttl: ttl, log: log}
	c.matrix = buildMatrix()
	obs.RuleMatrixReloads.Inc()
	return c
}

// Current returns the live Matrix, refreshing it first if its TTL has
// elapsed. Upstream-equivalent load failures are fatal to the requesting
// operation per spec.md §7; since the catalog is fixed in configuration
// here there is no load failure mode, but the error return is kept for
// API stability with a future externally-loaded catalog.
func (c *Catalog) Current() (*Matrix, error) {
	c.mu.RLock()
	m := c.matrix
	stale := time.Since(m.loadedAt) >= c.ttl
	c.mu.RUnlock()
	if !stale {
		return m, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.matrix.loadedAt) < c.ttl {
		return c.matrix, nil // lost the race to another refresher
	}
	fresh := buildMatrix()
	c.matrix = fresh
	obs.RuleMatrixReloads.Inc()
	c.log.Debug("rule matrix refreshed")
	return fresh, nil
}

// MustCurrent is Current without the (always-nil in this implementation)
// error, for call sites that cannot fail fast.
func (c *Catalog) MustCurrent() *Matrix {
	m, err := c.Current()
	if err != nil {
		panic(wfmerrors.Wrap(wfmerrors.KindUpstream, "rule catalog load", err))
	}
	return m
}

// StartScheduledRefresh forces an eager refresh on a cron schedule
// (five-field expression with an optional leading seconds field, e.g.
// "0 3 * * *" for daily at 03:00 or "* * * * * *" for every second)
// instead of waiting for a reader to observe a stale TTL. This keeps the
// matrix current on processes with low query volume, where Current's
// lazy refresh might not be hit for a while past the TTL.
func (c *Catalog) StartScheduledRefresh(spec string) error {
	parser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	sched := cron.New(cron.WithParser(parser))
	_, err := sched.AddFunc(spec, func() {
		c.mu.Lock()
		c.matrix = buildMatrix()
		c.mu.Unlock()
		obs.RuleMatrixReloads.Inc()
		c.log.Info("rule matrix refreshed on schedule", obs.String("schedule", spec))
	})
	if err != nil {
		return wfmerrors.Validation("refresh_schedule", err.Error())
	}
	sched.Start()
	c.cron = sched
	return nil
}

// StopScheduledRefresh stops the cron scheduler started by
// StartScheduledRefresh, if any, waiting for an in-flight refresh to
// finish.
func (c *Catalog) StopScheduledRefresh() {
	if c.cron == nil {
		return
	}
	<-c.cron.Stop().Done()
}
