// Package compliance implements the Compliance Engine: per-employee and
// bulk labor-rule validation against the rule catalog in internal/rules.
package compliance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/flyingrobots/wfm-core/internal/domain"
	"github.com/flyingrobots/wfm-core/internal/gateway"
	"github.com/flyingrobots/wfm-core/internal/obs"
	"github.com/flyingrobots/wfm-core/internal/rules"
	"github.com/flyingrobots/wfm-core/internal/wfmerrors"
	"go.uber.org/zap"
)

// Penalty weights by severity, applied to the compliance score. A
// perfect record scores 1.0; each violation subtracts its tier's
// weight, floored at 0.
const (
	penaltyWarning = 0.10
	penaltyFine    = 0.20
	penaltySerious = 0.40

	compliantThreshold = 0.95
)

func penaltyFor(tier domain.PenaltyTier) float64 {
	switch tier {
	case domain.PenaltyWarning:
		return penaltyWarning
	case domain.PenaltyFine:
		return penaltyFine
	case domain.PenaltySerious:
		return penaltySerious
	default:
		return penaltyWarning
	}
}

// RuleObservation records one rule's observed-vs-required values for one
// employee-day, whether or not it breached, so a caller can render a full
// compliance report rather than only the violations.
type RuleObservation struct {
	RuleID   rules.RuleID
	Date     time.Time
	Observed float64
	Required float64
	Passed   bool
}

// Result is the outcome of validating one employee over a date range.
type Result struct {
	EmployeeID   string
	Range        gateway.Range
	Score        float64
	Compliant    bool
	Violations   []domain.Violation
	Observations []RuleObservation
}

// BulkResult aggregates per-employee Results for validate_batch.
type BulkResult struct {
	Results          []Result
	CompliantCount   int
	ViolationCount   int
	EmployeesChecked int
}

var defaultLunchWindow = lunchWindow{
	EarliestStart:  11 * time.Hour,
	LatestStart:    14 * time.Hour,
	MinDurationMin: 30,
	MaxDurationMin: 60,
	MinHoursBefore: 2,
}

// Engine evaluates compliance for employees against the current rule
// matrix, consulting a TTL cache before recomputing.
type Engine struct {
	gw    gateway.Gateway
	cat   *rules.Catalog
	cache *Cache
	log   *zap.Logger
}

// NewEngine wires a Gateway and rule Catalog into a ready-to-use Engine.
// A nil cache disables caching entirely (every call recomputes).
func NewEngine(gw gateway.Gateway, cat *rules.Catalog, cache *Cache, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{gw: gw, cat: cat, cache: cache, log: log}
}

// ValidateOne evaluates a single employee's compliance over a date
// range, optionally honoring the cache. Any error from the employee
// profile lookup (NotFound included) is returned as is; shift and
// activity load failures are wrapped as KindUpstream.
func (e *Engine) ValidateOne(ctx context.Context, employeeID string, r gateway.Range, useCache bool) (Result, error) {
	if useCache && e.cache != nil {
		if res, ok := e.cache.Get(employeeID, r); ok {
			return res, nil
		}
	}

	employees, err := e.gw.LoadEmployeeProfiles(ctx, []string{employeeID})
	if err != nil {
		return Result{}, err
	}
	employee := employees[0]

	shifts, err := e.gw.LoadShifts(ctx, r, []string{employeeID})
	if err != nil {
		return Result{}, wfmerrors.Wrap(wfmerrors.KindUpstream, "load shifts for compliance", err)
	}
	activity, err := e.gw.LoadActivity(ctx, r, []string{employeeID})
	if err != nil {
		return Result{}, wfmerrors.Wrap(wfmerrors.KindUpstream, "load activity for compliance", err)
	}

	res := e.evaluate(employee, shifts, activity, r)

	if e.cache != nil {
		e.cache.Put(employeeID, r, res)
	}
	return res, nil
}

// evaluate runs the fixed rule-evaluation order from internal/rules
// against one employee's preloaded work data, entirely in memory.
func (e *Engine) evaluate(employee domain.Employee, shifts []domain.Shift, activity []domain.AgentActivityInterval, r gateway.Range) Result {
	matrix := e.cat.MustCurrent()
	data := loadEmployeeWorkData(shifts, activity, defaultLunchWindow)

	var violations []domain.Violation
	var observations []RuleObservation
	observe := func(id rules.RuleID, date time.Time, observed, required float64, passed bool) {
		observations = append(observations, RuleObservation{RuleID: id, Date: date, Observed: observed, Required: required, Passed: passed})
	}

	for _, day := range data.Days {
		agg := data.ByDay[day]
		date, _ := time.Parse("2006-01-02", day)

		if t, ok := matrix.ThresholdsFor(employee.AgeCategory, rules.DailyHours); ok {
			passed := agg.WorkedHours <= t.Standard
			observe(rules.DailyHours, date, agg.WorkedHours, t.Standard, passed)
			if !passed {
				tier, required := domain.PenaltyFine, t.Standard
				if agg.WorkedHours > t.Max {
					tier, required = domain.PenaltySerious, t.Max
				}
				violations = append(violations, e.violation(employee.ID, rules.DailyHours, tier, date,
					fmt.Sprintf("worked %.2fh against a %.2fh daily cap", agg.WorkedHours, required),
					agg.WorkedHours, required))
			}
		}

		weekly := data.weeklyHours(date)
		if t, ok := matrix.ThresholdsFor(employee.AgeCategory, rules.WeeklyHours); ok {
			passed := weekly <= t.Standard
			observe(rules.WeeklyHours, date, weekly, t.Standard, passed)
			if !passed {
				tier, required := domain.PenaltyFine, t.Standard
				if weekly > t.Max {
					tier, required = domain.PenaltySerious, t.Max
				}
				violations = append(violations, e.violation(employee.ID, rules.WeeklyHours, tier, date,
					fmt.Sprintf("weekly total %.2fh against a %.2fh cap", weekly, required),
					weekly, required))
			}
		}

		if gap, ok := data.restBetween(date); ok {
			if t, tok := matrix.ThresholdsFor(employee.AgeCategory, rules.RestBetween); tok {
				gapHours := gap.Hours()
				passed := gapHours >= t.Standard
				observe(rules.RestBetween, date, gapHours, t.Standard, passed)
				if !passed {
					violations = append(violations, e.violation(employee.ID, rules.RestBetween, rules.TierOf(rules.RestBetween), date,
						fmt.Sprintf("only %.2fh rest before shift, %.2fh required", gapHours, t.Standard),
						gapHours, t.Standard))
				}
			}
		}

		if t, ok := matrix.ThresholdsFor(employee.AgeCategory, rules.BreakQuota); ok {
			requiredBreakMin := agg.WorkedHours * t.Standard
			passed := agg.BreakMinutes >= requiredBreakMin
			observe(rules.BreakQuota, date, agg.BreakMinutes, requiredBreakMin, passed)
			if !passed {
				violations = append(violations, e.violation(employee.ID, rules.BreakQuota, rules.TierOf(rules.BreakQuota), date,
					fmt.Sprintf("took %.1fmin break against %.1fmin required", agg.BreakMinutes, requiredBreakMin),
					agg.BreakMinutes, requiredBreakMin))
			}
		}

		if t, ok := matrix.ThresholdsFor(employee.AgeCategory, rules.Lunch); ok {
			applies := agg.WorkedHours >= defaultLunchWindow.MinHoursBefore
			if applies {
				observe(rules.Lunch, date, boolToFloat(agg.LunchTakenOK), 1, agg.LunchTakenOK)
				if !agg.LunchTakenOK {
					violations = append(violations, e.violation(employee.ID, rules.Lunch, rules.TierOf(rules.Lunch), date,
						"no qualifying lunch break observed in the required window",
						0, t.Standard))
				}
			}
		}

		consecutive := data.consecutiveWorkedDaysEnding(date)
		if t, ok := matrix.ThresholdsFor(employee.AgeCategory, rules.ConsecutiveDays); ok {
			passed := float64(consecutive) <= t.Max
			observe(rules.ConsecutiveDays, date, float64(consecutive), t.Max, passed)
			if !passed {
				violations = append(violations, e.violation(employee.ID, rules.ConsecutiveDays, rules.TierOf(rules.ConsecutiveDays), date,
					fmt.Sprintf("%d consecutive worked days against a %d day limit", consecutive, int(t.Max)),
					float64(consecutive), t.Max))
			}
		}
	}

	sort.SliceStable(violations, func(i, j int) bool {
		oi, oj := rules.OrderOf(rules.RuleID(violations[i].RuleID)), rules.OrderOf(rules.RuleID(violations[j].RuleID))
		if oi != oj {
			return oi < oj
		}
		return violations[i].OccurredAt.Before(violations[j].OccurredAt)
	})

	score := 1.0
	for _, v := range violations {
		score -= penaltyFor(v.Tier)
		obs.ViolationsDetected.WithLabelValues(v.RuleID, string(v.Severity)).Inc()
	}
	if score < 0 {
		score = 0
	}

	return Result{
		EmployeeID:   employee.ID,
		Range:        r,
		Score:        score,
		Compliant:    score >= compliantThreshold,
		Violations:   violations,
		Observations: observations,
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (e *Engine) violation(employeeID string, ruleID rules.RuleID, tier domain.PenaltyTier, date time.Time, detail string, observed, required float64) domain.Violation {
	magnitude := 0.0
	if required > 0 {
		magnitude = (observed - required) / required
		if magnitude < 0 {
			magnitude = -magnitude
		}
	}
	return domain.Violation{
		EmployeeID:     employeeID,
		OccurredAt:     date,
		RuleID:         string(ruleID),
		Tier:           tier,
		Observed:       observed,
		Required:       required,
		Severity:       severityFromMagnitude(magnitude),
		MagnitudeScore: magnitude,
		Detail:         detail,
		Remediation:    []string{suggestionFor(ruleID)},
	}
}

// severityFromMagnitude maps how far a violation exceeds its threshold
// onto the alerting severity scale (supplemented from the magnitude
// score the original distillation dropped; see SPEC_FULL.md).
func severityFromMagnitude(magnitude float64) domain.Severity {
	switch {
	case magnitude >= 1.00:
		return domain.SeverityCritical
	case magnitude >= 0.50:
		return domain.SeverityHigh
	case magnitude >= 0.25:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

func suggestionFor(ruleID rules.RuleID) string {
	switch ruleID {
	case rules.DailyHours:
		return "shorten the shift or split it across two days"
	case rules.WeeklyHours:
		return "reduce scheduled hours elsewhere in the week"
	case rules.RestBetween:
		return "push the next shift's start later or end the prior shift earlier"
	case rules.BreakQuota:
		return "add a short break block proportional to hours worked"
	case rules.Lunch:
		return "insert a 30-60 minute lunch block between 2h into the shift and 14:00"
	case rules.ConsecutiveDays:
		return "schedule a rest day before the limit is reached"
	default:
		return "review the shift against the applicable threshold"
	}
}

// ValidateBatch evaluates many employees with bounded parallelism,
// aggregating per-employee Results. A single employee's fatal error does
// not abort the batch; it is recorded and counted separately.
func (e *Engine) ValidateBatch(ctx context.Context, employeeIDs []string, r gateway.Range, parallel int) (BulkResult, []error) {
	if parallel < 1 {
		parallel = 1
	}
	type out struct {
		res Result
		err error
	}
	results := make([]out, len(employeeIDs))
	sem := make(chan struct{}, parallel)
	done := make(chan int, len(employeeIDs))

	for i, id := range employeeIDs {
		go func(i int, id string) {
			sem <- struct{}{}
			defer func() { <-sem; done <- i }()
			res, err := e.ValidateOne(ctx, id, r, true)
			results[i] = out{res: res, err: err}
		}(i, id)
	}
	for range employeeIDs {
		<-done
	}

	var bulk BulkResult
	var errs []error
	for _, o := range results {
		if o.err != nil {
			errs = append(errs, o.err)
			continue
		}
		bulk.Results = append(bulk.Results, o.res)
		bulk.EmployeesChecked++
		if o.res.Compliant {
			bulk.CompliantCount++
		}
		bulk.ViolationCount += len(o.res.Violations)
	}
	return bulk, errs
}
