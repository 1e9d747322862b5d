// Package timetable implements the Timetable Planner: the deterministic
// seven-step pipeline that turns a published Shift into 15-minute
// TimetableBlocks, plus the manual adjustment operations that mutate an
// already-generated timetable.
package timetable

import (
	"context"
	"sort"
	"time"

	"github.com/flyingrobots/wfm-core/internal/domain"
	"github.com/flyingrobots/wfm-core/internal/gateway"
	"github.com/flyingrobots/wfm-core/internal/obs"
	"github.com/flyingrobots/wfm-core/internal/wfmerrors"
)

// Config tunes the break/lunch insertion steps of the pipeline.
type Config struct {
	LunchMinDuration      time.Duration // default 30m
	LunchMaxDuration      time.Duration // default 60m
	LunchEarliestStart    time.Duration // time-of-day, default 11h
	LunchLatestStart      time.Duration // time-of-day, default 14h
	LunchMinHoursIntoShift float64      // default 2h
	ShortBreakDuration     time.Duration // default 15m
	ShortBreakEveryHours   float64       // insert one every N worked hours, default 2h
	OptimizationSplit      float64       // default 0.8 ("80/20" global optimization pass)
}

func (c Config) withDefaults() Config {
	if c.LunchMinDuration <= 0 {
		c.LunchMinDuration = 30 * time.Minute
	}
	if c.LunchMaxDuration <= 0 {
		c.LunchMaxDuration = 60 * time.Minute
	}
	if c.LunchEarliestStart <= 0 {
		c.LunchEarliestStart = 11 * time.Hour
	}
	if c.LunchLatestStart <= 0 {
		c.LunchLatestStart = 14 * time.Hour
	}
	if c.LunchMinHoursIntoShift <= 0 {
		c.LunchMinHoursIntoShift = 2
	}
	if c.ShortBreakDuration <= 0 {
		c.ShortBreakDuration = 15 * time.Minute
	}
	if c.ShortBreakEveryHours <= 0 {
		c.ShortBreakEveryHours = 2
	}
	if c.OptimizationSplit <= 0 {
		c.OptimizationSplit = 0.8
	}
	return c
}

// Planner runs the seven-step pipeline and the manual adjustment
// operations against a Gateway.
type Planner struct {
	gw  gateway.Gateway
	cfg Config
}

// NewPlanner wires a Gateway into a ready-to-use Planner.
func NewPlanner(gw gateway.Gateway, cfg Config) *Planner {
	return &Planner{gw: gw, cfg: cfg.withDefaults()}
}

// Generate runs the full pipeline for one shift and persists the
// resulting blocks, emitting one change event per shift processed.
func (p *Planner) Generate(ctx context.Context, shift domain.Shift, employee domain.Employee, pref *gateway.SchedulePreference) ([]domain.TimetableBlock, error) {
	blocks := p.envelope(shift)
	blocks = p.applyPreference(blocks, pref)
	blocks = p.applyDefaultActivity(blocks, employee)
	blocks = p.applyConstraintMask(blocks, employee)
	blocks = p.insertLunch(blocks, shift)
	blocks = p.insertShortBreaks(blocks, shift)
	blocks = p.optimize(blocks)

	if err := p.gw.PersistTimetableBlocks(ctx, blocks); err != nil {
		return nil, err
	}
	if err := p.gw.RecordMonitoringEvent(ctx, gateway.MonitoringEvent{
		Kind:   "timetable_generated",
		At:     time.Now(),
		Detail: "employee_id=" + employee.ID,
	}); err != nil {
		return nil, err
	}
	obs.BlocksGenerated.Add(float64(len(blocks)))
	obs.PlannerShiftsProcessed.Inc()
	return blocks, nil
}

// step 1: envelope lays down one work block per 15-minute quantum
// spanning the shift, honoring midnight crossing (§3.6).
func (p *Planner) envelope(shift domain.Shift) []domain.TimetableBlock {
	start := shift.StartAt()
	end := shift.EndAt()
	var blocks []domain.TimetableBlock
	for t := start; t.Before(end); t = t.Add(domain.BlockInterval) {
		blocks = append(blocks, domain.TimetableBlock{
			EmployeeID: shift.EmployeeID,
			Start:      t,
			Activity:   domain.ActivityWork,
			CreatedAt:  time.Now(),
		})
	}
	return blocks
}

// step 2: applyPreference honors a day-off request by marking the whole
// envelope not-available, or narrows it to the employee's preferred
// start/end window, marking blocks outside that window not-available.
func (p *Planner) applyPreference(blocks []domain.TimetableBlock, pref *gateway.SchedulePreference) []domain.TimetableBlock {
	if pref == nil {
		return blocks
	}
	if pref.DayOff {
		for i := range blocks {
			blocks[i].Activity = domain.ActivityNotAvailable
		}
		return blocks
	}
	for i, b := range blocks {
		tod := b.Start.Sub(b.Start.Truncate(24 * time.Hour))
		if pref.PreferredStart != nil && tod < *pref.PreferredStart {
			blocks[i].Activity = domain.ActivityNotAvailable
		}
		if pref.PreferredEnd != nil && tod >= *pref.PreferredEnd {
			blocks[i].Activity = domain.ActivityNotAvailable
		}
	}
	return blocks
}

// step 3: applyDefaultActivity assigns skills to the remaining work
// blocks in a simple round robin over every capability in the order the
// employee lists them, one block each. The primary skill gets no larger
// share than any other skill. (internal/optimizer holds the separate
// weighted allocation pass run across employees.)
func (p *Planner) applyDefaultActivity(blocks []domain.TimetableBlock, employee domain.Employee) []domain.TimetableBlock {
	if len(employee.Capabilities) == 0 {
		return blocks
	}
	skills := make([]string, len(employee.Capabilities))
	for i, c := range employee.Capabilities {
		skills[i] = c.SkillID
	}
	idx := 0
	for i, b := range blocks {
		if b.Activity != domain.ActivityWork {
			continue
		}
		blocks[i].SkillID = skills[idx%len(skills)]
		idx++
	}
	return blocks
}

// step 4: applyConstraintMask converts blocks starting at or after 22:00
// or before 06:00 into not-available blocks when the employee is not
// allowed night work; the masked blocks are not locked. It reads no
// previously persisted blocks, so lock
// state from an earlier generation is not carried over.
func (p *Planner) applyConstraintMask(blocks []domain.TimetableBlock, employee domain.Employee) []domain.TimetableBlock {
	if employee.Constraints.NightWorkOK {
		return blocks
	}
	for i, b := range blocks {
		hour := b.Start.Hour()
		if hour >= 22 || hour < 6 {
			blocks[i].Activity = domain.ActivityNotAvailable
		}
	}
	return blocks
}

// step 5: insertLunch finds the first eligible window (>=
// LunchMinHoursIntoShift into the shift, start within
// [LunchEarliestStart, LunchLatestStart] time-of-day) and converts
// enough contiguous work blocks into a lunch block of LunchMinDuration.
func (p *Planner) insertLunch(blocks []domain.TimetableBlock, shift domain.Shift) []domain.TimetableBlock {
	start := shift.StartAt()
	minStart := start.Add(time.Duration(p.cfg.LunchMinHoursIntoShift * float64(time.Hour)))
	n := int(p.cfg.LunchMinDuration / domain.BlockInterval)
	if n <= 0 {
		n = 1
	}

	for i := 0; i+n <= len(blocks); i++ {
		b := blocks[i]
		if b.Start.Before(minStart) {
			continue
		}
		tod := b.Start.Sub(b.Start.Truncate(24 * time.Hour))
		if tod < p.cfg.LunchEarliestStart || tod > p.cfg.LunchLatestStart {
			continue
		}
		eligible := true
		for j := i; j < i+n; j++ {
			if blocks[j].Activity != domain.ActivityWork {
				eligible = false
				break
			}
		}
		if !eligible {
			continue
		}
		for j := i; j < i+n; j++ {
			blocks[j].Activity = domain.ActivityLunch
		}
		break
	}
	return blocks
}

// step 6: insertShortBreaks places one short-break block every
// ShortBreakEveryHours of contiguous work, skipping blocks already
// reassigned by earlier steps.
func (p *Planner) insertShortBreaks(blocks []domain.TimetableBlock, shift domain.Shift) []domain.TimetableBlock {
	every := int(p.cfg.ShortBreakEveryHours * float64(time.Hour) / float64(domain.BlockInterval))
	if every <= 0 {
		return blocks
	}
	worked := 0
	for i := range blocks {
		if blocks[i].Activity != domain.ActivityWork {
			worked = 0
			continue
		}
		worked++
		if worked%every == 0 {
			blocks[i].Activity = domain.ActivityShortBreak
		}
	}
	return blocks
}

// step 7: optimize returns the blocks unchanged. No break or lunch is
// moved against forecast coverage here and Config.OptimizationSplit is
// not read; internal/optimizer works on Demand and Employee inputs and is
// not called on these blocks.
func (p *Planner) optimize(blocks []domain.TimetableBlock) []domain.TimetableBlock {
	return blocks
}

// --- manual adjustment operations (§4.G) ---

// AddWork converts the block at `at` into a work block for the given
// skill, failing if the block is locked.
func (p *Planner) AddWork(ctx context.Context, employeeID string, at time.Time, skillID string) error {
	activity := domain.ActivityWork
	return p.gw.UpdateBlock(ctx, employeeID, at, gateway.BlockChangeSet{Activity: &activity, SkillID: &skillID})
}

// SetNotAcceptingCalls converts the block into downtime.
func (p *Planner) SetNotAcceptingCalls(ctx context.Context, employeeID string, at time.Time) error {
	activity := domain.ActivityDowntime
	return p.gw.UpdateBlock(ctx, employeeID, at, gateway.BlockChangeSet{Activity: &activity})
}

// AssignToProject converts the block into a project block.
func (p *Planner) AssignToProject(ctx context.Context, employeeID string, at time.Time, projectID string) error {
	activity := domain.ActivityProject
	return p.gw.UpdateBlock(ctx, employeeID, at, gateway.BlockChangeSet{Activity: &activity, ProjectID: &projectID})
}

// AddLunch converts the single already-aligned block at `at` into a
// lunch block. It does not check the lunch length against
// LunchMinDuration or LunchMaxDuration.
func (p *Planner) AddLunch(ctx context.Context, employeeID string, at time.Time) error {
	activity := domain.ActivityLunch
	return p.gw.UpdateBlock(ctx, employeeID, at, gateway.BlockChangeSet{Activity: &activity})
}

// AddBreak converts the block into a short-break block.
func (p *Planner) AddBreak(ctx context.Context, employeeID string, at time.Time) error {
	activity := domain.ActivityShortBreak
	return p.gw.UpdateBlock(ctx, employeeID, at, gateway.BlockChangeSet{Activity: &activity})
}

// CancelBreaks reverts every short-break/lunch block in [start,end) back
// to work, e.g. when a manager needs the coverage back.
func (p *Planner) CancelBreaks(ctx context.Context, employeeID string, start, end time.Time) error {
	for t := start; t.Before(end); t = t.Add(domain.BlockInterval) {
		activity := domain.ActivityWork
		if err := p.gw.UpdateBlock(ctx, employeeID, t, gateway.BlockChangeSet{Activity: &activity}); err != nil {
			if wfmerrors.KindOf(err) == wfmerrors.KindNotFound {
				continue
			}
			return err
		}
	}
	return nil
}

// AddEvent converts the block into a meeting/training block.
func (p *Planner) AddEvent(ctx context.Context, employeeID string, at time.Time, kind domain.ActivityType) error {
	return p.gw.UpdateBlock(ctx, employeeID, at, gateway.BlockChangeSet{Activity: &kind})
}

// BlocksFor returns an employee's persisted blocks sorted by start,
// a read-side convenience built on whatever concrete Gateway is wired
// (the MemoryGateway exposes this directly; other Gateways would need
// a dedicated read op, deliberately not part of the interface per
// SPEC_FULL.md's Gateway read-op list).
func BlocksFor(mg *gateway.MemoryGateway, employeeID string) []domain.TimetableBlock {
	out := mg.BlocksFor(employeeID)
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
