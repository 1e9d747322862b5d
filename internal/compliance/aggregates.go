package compliance

import (
	"sort"
	"time"

	"github.com/flyingrobots/wfm-core/internal/domain"
	"github.com/flyingrobots/wfm-core/internal/gateway"
)

// dailyAggregate is the per-day vector the spec's §9 redesign note
// describes: "preserve the contract (per-day vectors of hours/breaks/
// overtime_shifts), but implement as simple per-day iteration" rather
// than NumPy-style vectorization.
type dailyAggregate struct {
	Date         time.Time
	WorkedHours  float64
	ShiftCount   int
	BreakMinutes float64
	LunchTakenOK bool // a contiguous break in the eligible lunch window of the right duration was observed
	ShiftEnds    []time.Time
	ShiftStarts  []time.Time
}

// employeeWorkData is everything the rule matrix needs for one employee
// over a range, loaded once via the gateway and never touched again
// during evaluation (§4.D "no database calls in hot path").
type employeeWorkData struct {
	Employee domain.Employee
	Shifts   []domain.Shift
	ByDay    map[string]*dailyAggregate // keyed by date.Format("2006-01-02")
	Days     []string                  // sorted keys of ByDay
}

func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

// loadEmployeeWorkData aggregates one employee's already-loaded shifts
// and activity intervals into per-day vectors. It makes no Gateway calls;
// ValidateOne does the one LoadShifts and one LoadActivity call.
func loadEmployeeWorkData(shifts []domain.Shift, activity []domain.AgentActivityInterval, lunch lunchWindow) *employeeWorkData {
	d := &employeeWorkData{ByDay: make(map[string]*dailyAggregate)}

	for _, s := range shifts {
		d.Shifts = append(d.Shifts, s)
		key := dayKey(s.Date)
		agg, ok := d.ByDay[key]
		if !ok {
			agg = &dailyAggregate{Date: s.Date}
			d.ByDay[key] = agg
		}
		agg.ShiftCount++
		agg.ShiftStarts = append(agg.ShiftStarts, s.StartAt())
		agg.ShiftEnds = append(agg.ShiftEnds, s.EndAt())
	}

	// Group activity intervals per shift so break/lunch windows are
	// evaluated against the shift they belong to, then roll into the
	// day's aggregate.
	for _, s := range shifts {
		key := dayKey(s.Date)
		agg := d.ByDay[key]
		start, end := s.StartAt(), s.EndAt()

		var worked, breakMin float64
		type run struct {
			start time.Time
			mins  float64
		}
		var runs []run
		var cur *run

		var relevant []domain.AgentActivityInterval
		for _, a := range activity {
			if !a.DateTime.Before(start) && a.DateTime.Before(end) {
				relevant = append(relevant, a)
			}
		}
		sort.Slice(relevant, func(i, j int) bool { return relevant[i].DateTime.Before(relevant[j].DateTime) })

		for _, a := range relevant {
			worked += a.ProductiveSeconds / 3600.0
			bm := a.BreakSeconds / 60.0
			breakMin += bm
			if bm > 0 {
				if cur == nil {
					cur = &run{start: a.DateTime, mins: bm}
				} else {
					cur.mins += bm
				}
			} else if cur != nil {
				runs = append(runs, *cur)
				cur = nil
			}
		}
		if cur != nil {
			runs = append(runs, *cur)
		}

		for _, r := range runs {
			hoursIntoShift := r.start.Sub(start).Hours()
			tod := r.start.Sub(r.start.Truncate(24 * time.Hour))
			if hoursIntoShift >= lunch.MinHoursBefore &&
				tod >= lunch.EarliestStart && tod <= lunch.LatestStart &&
				r.mins >= float64(lunch.MinDurationMin) && r.mins <= float64(lunch.MaxDurationMin) {
				agg.LunchTakenOK = true
			}
		}

		agg.WorkedHours += worked
		agg.BreakMinutes += breakMin
	}

	for k := range d.ByDay {
		d.Days = append(d.Days, k)
	}
	sort.Strings(d.Days)
	return d
}

type lunchWindow struct {
	EarliestStart  time.Duration
	LatestStart    time.Duration
	MinDurationMin int
	MaxDurationMin int
	MinHoursBefore float64
}

// weeklyHours sums WorkedHours for the ISO week containing date.
func (d *employeeWorkData) weeklyHours(date time.Time) float64 {
	y, w := date.ISOWeek()
	var total float64
	for _, k := range d.Days {
		agg := d.ByDay[k]
		ay, aw := agg.Date.ISOWeek()
		if ay == y && aw == w {
			total += agg.WorkedHours
		}
	}
	return total
}

// consecutiveWorkedDaysEnding returns the count of consecutive calendar
// days with at least one shift, ending on (and including) date.
func (d *employeeWorkData) consecutiveWorkedDaysEnding(date time.Time) int {
	count := 0
	cursor := date
	for {
		key := dayKey(cursor)
		agg, ok := d.ByDay[key]
		if !ok || agg.ShiftCount == 0 {
			break
		}
		count++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return count
}

// restBetween returns the gap before the first shift on `date`, compared
// against the most recent shift end strictly before it (across the whole
// loaded range, not just the same day, to catch overnight shifts).
func (d *employeeWorkData) restBetween(date time.Time) (time.Duration, bool) {
	key := dayKey(date)
	agg, ok := d.ByDay[key]
	if !ok || len(agg.ShiftStarts) == 0 {
		return 0, false
	}
	sort.Slice(agg.ShiftStarts, func(i, j int) bool { return agg.ShiftStarts[i].Before(agg.ShiftStarts[j]) })
	firstStart := agg.ShiftStarts[0]

	var prevEnd time.Time
	found := false
	for _, s := range d.Shifts {
		end := s.EndAt()
		if end.Before(firstStart) && (!found || end.After(prevEnd)) {
			prevEnd = end
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return firstStart.Sub(prevEnd), true
}

var _ = gateway.Range{} // compile-time reminder this package consumes gateway-shaped ranges
