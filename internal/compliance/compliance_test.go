package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/flyingrobots/wfm-core/internal/domain"
	"github.com/flyingrobots/wfm-core/internal/gateway"
	"github.com/flyingrobots/wfm-core/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*gateway.MemoryGateway, *Engine) {
	t.Helper()
	gw := gateway.NewMemoryGateway()
	cat := rules.NewCatalog(24*time.Hour, nil)
	eng := NewEngine(gw, cat, NewCache(time.Hour), nil)
	return gw, eng
}

func seedFullCompliance(gw *gateway.MemoryGateway, employeeID string, date time.Time) {
	gw.SeedEmployee(domain.Employee{ID: employeeID, AgeCategory: domain.AgeAdult})
	gw.SeedShift(domain.Shift{ID: "s1", EmployeeID: employeeID, Date: date, Start: 9 * time.Hour, End: 17 * time.Hour})

	start := date.Add(9 * time.Hour)
	// 8h scheduled: a qualifying 30-min lunch at 12:00, two 15-min short
	// breaks, and the remainder productive — satisfies both BREAK_QUOTA
	// (7.5 min break per hour worked) and LUNCH.
	for i := 0; i < 32; i++ { // 32 * 15min = 8h
		t := start.Add(time.Duration(i) * 15 * time.Minute)
		switch i {
		case 12, 13: // 12:00-12:30 lunch
			gw.SeedActivity(domain.AgentActivityInterval{AgentID: employeeID, DateTime: t, BreakSeconds: 15 * 60})
		case 4, 20: // two short breaks
			gw.SeedActivity(domain.AgentActivityInterval{AgentID: employeeID, DateTime: t, BreakSeconds: 15 * 60})
		default:
			gw.SeedActivity(domain.AgentActivityInterval{AgentID: employeeID, DateTime: t, ProductiveSeconds: 15 * 60})
		}
	}
}

func TestValidateOneCleanRecordIsCompliant(t *testing.T) {
	gw, eng := newTestEngine(t)
	date := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	seedFullCompliance(gw, "e1", date)

	r := gateway.Range{Start: date, End: date.AddDate(0, 0, 1)}
	res, err := eng.ValidateOne(context.Background(), "e1", r, false)
	require.NoError(t, err)
	assert.True(t, res.Compliant, "expected clean record to be compliant, violations: %+v", res.Violations)
	assert.NotEmpty(t, res.Observations, "expected per-rule observations even on a clean record")
	for _, ob := range res.Observations {
		assert.True(t, ob.Passed, "rule %s should have passed on a clean record", ob.RuleID)
	}
}

func TestValidateOneNotFoundPropagates(t *testing.T) {
	_, eng := newTestEngine(t)
	r := gateway.Range{Start: time.Now(), End: time.Now().Add(24 * time.Hour)}
	_, err := eng.ValidateOne(context.Background(), "missing", r, false)
	require.Error(t, err)
}

func TestValidateOneDetectsDailyHoursViolation(t *testing.T) {
	gw, eng := newTestEngine(t)
	date := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	gw.SeedEmployee(domain.Employee{ID: "e2", AgeCategory: domain.AgeAdult})
	gw.SeedShift(domain.Shift{ID: "s2", EmployeeID: "e2", Date: date, Start: 6 * time.Hour, End: 20 * time.Hour})

	start := date.Add(6 * time.Hour)
	for i := 0; i < 56; i++ { // 14h scheduled, all productive, no breaks: a daily-hours breach
		t := start.Add(time.Duration(i) * 15 * time.Minute)
		gw.SeedActivity(domain.AgentActivityInterval{AgentID: "e2", DateTime: t, ProductiveSeconds: 15 * 60})
	}

	r := gateway.Range{Start: date, End: date.AddDate(0, 0, 1)}
	res, err := eng.ValidateOne(context.Background(), "e2", r, false)
	require.NoError(t, err)
	assert.False(t, res.Compliant)
	found := false
	for _, v := range res.Violations {
		if v.RuleID == string(rules.DailyHours) {
			found = true
		}
	}
	assert.True(t, found, "expected a DAILY_HOURS violation, got %+v", res.Violations)
}

func TestValidateOneDailyHoursBetweenStandardAndMaxIsFineTier(t *testing.T) {
	gw, eng := newTestEngine(t)
	date := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	gw.SeedEmployee(domain.Employee{ID: "e3", AgeCategory: domain.AgeAdult})
	gw.SeedShift(domain.Shift{ID: "s3", EmployeeID: "e3", Date: date, Start: 6 * time.Hour, End: 17 * time.Hour})

	start := date.Add(6 * time.Hour)
	for i := 0; i < 44; i++ { // 11h scheduled, all productive: above the 8h standard cap, below the 12h max
		t := start.Add(time.Duration(i) * 15 * time.Minute)
		gw.SeedActivity(domain.AgentActivityInterval{AgentID: "e3", DateTime: t, ProductiveSeconds: 15 * 60})
	}

	r := gateway.Range{Start: date, End: date.AddDate(0, 0, 1)}
	res, err := eng.ValidateOne(context.Background(), "e3", r, false)
	require.NoError(t, err)
	assert.False(t, res.Compliant)

	var found *domain.Violation
	for i, v := range res.Violations {
		if v.RuleID == string(rules.DailyHours) {
			found = &res.Violations[i]
		}
	}
	require.NotNil(t, found, "expected a DAILY_HOURS violation for 11h worked, got %+v", res.Violations)
	assert.Equal(t, domain.PenaltyFine, found.Tier, "11h worked exceeds the 8h standard cap but not the 12h max, so the breach must be fine-tier")
}

func TestValidateOneWeeklyHoursExceedingStandardByAnyAmountViolates(t *testing.T) {
	gw, eng := newTestEngine(t)
	weekStart := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC) // Monday
	gw.SeedEmployee(domain.Employee{ID: "e4", AgeCategory: domain.AgeAdult})

	// Five 8h days (Mon-Fri) plus a 1h shift on Saturday: 41h total,
	// 1h over the 40h weekly standard cap, still well under the 48h max.
	for d := 0; d < 5; d++ {
		day := weekStart.AddDate(0, 0, d)
		gw.SeedShift(domain.Shift{ID: "wk" + day.Format("2006-01-02"), EmployeeID: "e4", Date: day, Start: 9 * time.Hour, End: 17 * time.Hour})
		start := day.Add(9 * time.Hour)
		for i := 0; i < 32; i++ {
			t := start.Add(time.Duration(i) * 15 * time.Minute)
			gw.SeedActivity(domain.AgentActivityInterval{AgentID: "e4", DateTime: t, ProductiveSeconds: 15 * 60})
		}
	}
	satur := weekStart.AddDate(0, 0, 5)
	gw.SeedShift(domain.Shift{ID: "wk-sat", EmployeeID: "e4", Date: satur, Start: 9 * time.Hour, End: 10 * time.Hour})
	start := satur.Add(9 * time.Hour)
	for i := 0; i < 4; i++ {
		t := start.Add(time.Duration(i) * 15 * time.Minute)
		gw.SeedActivity(domain.AgentActivityInterval{AgentID: "e4", DateTime: t, ProductiveSeconds: 15 * 60})
	}

	r := gateway.Range{Start: weekStart, End: weekStart.AddDate(0, 0, 7)}
	res, err := eng.ValidateOne(context.Background(), "e4", r, false)
	require.NoError(t, err)

	found := false
	for _, v := range res.Violations {
		if v.RuleID == string(rules.WeeklyHours) {
			found = true
			assert.Equal(t, domain.PenaltyFine, v.Tier, "41h is over the 40h standard cap but under the 48h max, so this must be fine-tier")
		}
	}
	assert.True(t, found, "expected a WEEKLY_HOURS violation when weekly total exceeds the standard cap by any amount, got %+v", res.Violations)
}

func TestValidateBatchAggregatesAcrossEmployees(t *testing.T) {
	gw, eng := newTestEngine(t)
	date := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	seedFullCompliance(gw, "e1", date)
	seedFullCompliance(gw, "e2", date)

	r := gateway.Range{Start: date, End: date.AddDate(0, 0, 1)}
	bulk, errs := eng.ValidateBatch(context.Background(), []string{"e1", "e2"}, r, 2)
	assert.Empty(t, errs)
	assert.Equal(t, 2, bulk.EmployeesChecked)
	assert.Equal(t, 2, bulk.CompliantCount)
}

func TestCacheHitAvoidsRecompute(t *testing.T) {
	gw, eng := newTestEngine(t)
	date := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	seedFullCompliance(gw, "e1", date)
	r := gateway.Range{Start: date, End: date.AddDate(0, 0, 1)}

	first, err := eng.ValidateOne(context.Background(), "e1", r, true)
	require.NoError(t, err)

	eng.cache.Put("e1", r, Result{EmployeeID: "e1", Compliant: false, Score: 0})
	cached, err := eng.ValidateOne(context.Background(), "e1", r, true)
	require.NoError(t, err)
	assert.NotEqual(t, first.Compliant, cached.Compliant, "expected the stale cache entry to be served back")
}
