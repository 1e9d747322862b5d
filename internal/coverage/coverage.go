// Package coverage implements the Coverage Analyzer: the per-interval
// join of forecast, planned and live staffing, gap detection, and
// service-level projection.
package coverage

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/flyingrobots/wfm-core/internal/domain"
	"github.com/flyingrobots/wfm-core/internal/gateway"
	"github.com/flyingrobots/wfm-core/internal/obs"
	"github.com/flyingrobots/wfm-core/internal/wfmerrors"
)

// Gap severity bands, keyed by the fraction of required agents missing
// (required-planned)/required. Matches the alerting severity scale used
// elsewhere so coverage gaps and compliance violations share one
// vocabulary.
var gapSeverityBands = []struct {
	minFraction float64
	severity    domain.Severity
}{
	{minFraction: 0.30, severity: domain.SeverityCritical},
	{minFraction: 0.15, severity: domain.SeverityHigh},
	{minFraction: 0.05, severity: domain.SeverityMedium},
	{minFraction: 0, severity: domain.SeverityLow},
}

func severityForGapFraction(frac float64) domain.Severity {
	for _, b := range gapSeverityBands {
		if frac >= b.minFraction {
			return b.severity
		}
	}
	return domain.SeverityLow
}

// Analyzer joins forecast/planned/live staffing per interval.
type Analyzer struct {
	gw gateway.Gateway
}

// NewAnalyzer wires a Gateway into a ready-to-use Analyzer.
func NewAnalyzer(gw gateway.Gateway) *Analyzer {
	return &Analyzer{gw: gw}
}

// Analyze loads forecast, planned headcount (derived from shifts) and a
// live queue snapshot for one service over a range, and returns one
// CoverageInterval per forecast point.
func (a *Analyzer) Analyze(ctx context.Context, serviceID string, r gateway.Range) ([]domain.CoverageInterval, error) {
	forecast, err := a.gw.LoadForecast(ctx, r, []string{serviceID})
	if err != nil {
		return nil, err
	}
	shifts, err := a.gw.LoadShifts(ctx, r, nil)
	if err != nil {
		return nil, err
	}
	snapshot, err := a.gw.LoadQueueSnapshot(ctx, serviceID)
	if err != nil && !isNotFound(err) {
		return nil, err
	}

	planned := plannedAgentsByInterval(shifts)

	sort.Slice(forecast, func(i, j int) bool { return forecast[i].DateTime.Before(forecast[j].DateTime) })

	out := make([]domain.CoverageInterval, 0, len(forecast))
	for _, f := range forecast {
		ci := domain.CoverageInterval{
			ServiceID:      serviceID,
			DateTime:       f.DateTime,
			ForecastAgents: f.RequiredAgents,
			PlannedAgents:  planned[f.DateTime.Truncate(domain.BlockInterval)],
		}
		if !snapshot.Timestamp.IsZero() && withinInterval(snapshot.Timestamp, f.DateTime) {
			ci.HasLiveData = true
			ci.LiveAgents = float64(snapshot.AgentsAvailable + snapshot.AgentsBusy)
		}

		staffed := ci.PlannedAgents
		if ci.HasLiveData {
			staffed = ci.LiveAgents
		}
		ci.Gap = f.RequiredAgents - staffed
		switch {
		case f.RequiredAgents > 0:
			ci.CoveragePct = staffed / f.RequiredAgents * 100
			ci.Status = statusFor(ci.CoveragePct)
		case staffed > 0:
			// invariant §3.5: zero demand with nonzero staffing is unbounded
			// surplus, not the 100% (optimal) that a naive ratio would imply.
			ci.CoveragePct = math.Inf(1)
			ci.Status = domain.CoverageSurplus
		default:
			ci.CoveragePct = 100
			ci.Status = statusFor(ci.CoveragePct)
		}
		ci.ProjectedSL = projectedServiceLevel(ci.CoveragePct, f.ServiceLevelTarget)

		if ci.Status == domain.CoverageShortage {
			frac := 0.0
			if f.RequiredAgents > 0 {
				frac = ci.Gap / f.RequiredAgents
			}
			obs.CoverageGapsDetected.WithLabelValues(string(severityForGapFraction(frac))).Inc()
		}
		obs.CoverageStatusGauge.WithLabelValues(serviceID, string(ci.Status)).Set(1)

		out = append(out, ci)
	}
	return out, nil
}

func isNotFound(err error) bool {
	return wfmerrors.KindOf(err) == wfmerrors.KindNotFound
}

func withinInterval(t, intervalStart time.Time) bool {
	return !t.Before(intervalStart) && t.Before(intervalStart.Add(domain.BlockInterval))
}

// plannedAgentsByInterval counts, for every 15-minute interval, how many
// shifts cover it. This is the schedule-side half of the coverage join;
// it does not consult timetable blocks (not exposed as a read op),
// matching the rest of this package's Gateway surface.
func plannedAgentsByInterval(shifts []domain.Shift) map[time.Time]float64 {
	out := make(map[time.Time]float64)
	for _, s := range shifts {
		start := s.StartAt().Truncate(domain.BlockInterval)
		end := s.EndAt()
		for t := start; t.Before(end); t = t.Add(domain.BlockInterval) {
			out[t]++
		}
	}
	return out
}

// statusFor classifies a coverage percentage into the four-way status
// per spec.md §4.F thresholds: shortage < 85%, adequate 85-95%, optimal
// 95-105%, surplus > 105%.
func statusFor(coveragePct float64) domain.CoverageStatus {
	switch {
	case coveragePct < 85:
		return domain.CoverageShortage
	case coveragePct < 95:
		return domain.CoverageAdequate
	case coveragePct <= 105:
		return domain.CoverageOptimal
	default:
		return domain.CoverageSurplus
	}
}

// projectedServiceLevel is the piecewise approximation of an Erlang-C
// service-level curve as a function of staffing ratio, explicitly
// non-calibrated against a real traffic model (see SPEC_FULL.md Open
// Question resolution: no Erlang-C/queueing-theory library exists in
// the dependency corpus, so this is a deliberately simple heuristic,
// not a queueing-theoretic projection).
func projectedServiceLevel(coveragePct, target float64) float64 {
	if target <= 0 {
		target = 80
	}
	ratio := coveragePct / 100
	switch {
	case ratio >= 1.05:
		return math.Min(target+(ratio-1.05)*40, 100)
	case ratio >= 1.0:
		return target
	default:
		deficit := 1.0 - ratio
		return math.Max(target-deficit*150, 0)
	}
}

// CostImpact estimates the hourly staffing cost of a shortage gap at a
// given fully-loaded hourly rate, a simple linear model grounded on the
// same "no cost library in corpus" decision as the optimizer's
// cost-minimizing mode.
func CostImpact(gapAgents float64, hourlyRate float64) float64 {
	if gapAgents <= 0 {
		return 0
	}
	return gapAgents * hourlyRate
}

// Report wraps Analyze's per-interval output with a rolling summary, so
// a caller gets a trend line alongside the raw intervals without
// re-averaging them itself.
type Report struct {
	Intervals          []domain.CoverageInterval
	AverageProjectedSL float64
	ShortageIntervals  int
}

// Summarize builds a Report from Analyze's output.
func (a *Analyzer) Summarize(ctx context.Context, serviceID string, r gateway.Range) (Report, error) {
	intervals, err := a.Analyze(ctx, serviceID, r)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Intervals: intervals}
	var total float64
	for _, ci := range intervals {
		total += ci.ProjectedSL
		if ci.Status == domain.CoverageShortage {
			rep.ShortageIntervals++
		}
	}
	if len(intervals) > 0 {
		rep.AverageProjectedSL = total / float64(len(intervals))
	}
	return rep, nil
}
