package coverage

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/flyingrobots/wfm-core/internal/domain"
	"github.com/flyingrobots/wfm-core/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeDetectsShortage(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	date := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	gw.SeedForecast(domain.ForecastInterval{ServiceID: "svc1", DateTime: date, RequiredAgents: 10, ServiceLevelTarget: 80})
	// Only 2 agents' shifts cover the interval: clear shortage.
	gw.SeedShift(domain.Shift{ID: "s1", EmployeeID: "e1", Date: date.Truncate(24 * time.Hour), Start: 9 * time.Hour, End: 17 * time.Hour})
	gw.SeedShift(domain.Shift{ID: "s2", EmployeeID: "e2", Date: date.Truncate(24 * time.Hour), Start: 9 * time.Hour, End: 17 * time.Hour})

	a := NewAnalyzer(gw)
	day := date.Truncate(24 * time.Hour)
	out, err := a.Analyze(context.Background(), "svc1", gateway.Range{Start: day, End: day.AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, domain.CoverageShortage, out[0].Status)
	assert.Greater(t, out[0].Gap, 0.0)
}

func TestAnalyzeOptimalWithMatchingStaffing(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	date := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	gw.SeedForecast(domain.ForecastInterval{ServiceID: "svc1", DateTime: date, RequiredAgents: 2, ServiceLevelTarget: 80})
	gw.SeedShift(domain.Shift{ID: "s1", EmployeeID: "e1", Date: date.Truncate(24 * time.Hour), Start: 9 * time.Hour, End: 17 * time.Hour})
	gw.SeedShift(domain.Shift{ID: "s2", EmployeeID: "e2", Date: date.Truncate(24 * time.Hour), Start: 9 * time.Hour, End: 17 * time.Hour})

	a := NewAnalyzer(gw)
	day := date.Truncate(24 * time.Hour)
	out, err := a.Analyze(context.Background(), "svc1", gateway.Range{Start: day, End: day.AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, domain.CoverageOptimal, out[0].Status)
}

func TestAnalyzeAdequateWithSlightUnderstaffing(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	date := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	// 9 staffed against 10 required = 90%: within the 85-95% adequate band.
	gw.SeedForecast(domain.ForecastInterval{ServiceID: "svc1", DateTime: date, RequiredAgents: 10, ServiceLevelTarget: 80})
	for i := 0; i < 9; i++ {
		id := strconv.Itoa(i)
		gw.SeedShift(domain.Shift{ID: "s" + id, EmployeeID: "e" + id, Date: date.Truncate(24 * time.Hour), Start: 9 * time.Hour, End: 17 * time.Hour})
	}

	a := NewAnalyzer(gw)
	day := date.Truncate(24 * time.Hour)
	out, err := a.Analyze(context.Background(), "svc1", gateway.Range{Start: day, End: day.AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, domain.CoverageAdequate, out[0].Status)
}

func TestAnalyzeZeroForecastWithStaffingIsSurplus(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	date := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	gw.SeedForecast(domain.ForecastInterval{ServiceID: "svc1", DateTime: date, RequiredAgents: 0, ServiceLevelTarget: 80})
	gw.SeedShift(domain.Shift{ID: "s1", EmployeeID: "e1", Date: date.Truncate(24 * time.Hour), Start: 9 * time.Hour, End: 17 * time.Hour})

	a := NewAnalyzer(gw)
	day := date.Truncate(24 * time.Hour)
	out, err := a.Analyze(context.Background(), "svc1", gateway.Range{Start: day, End: day.AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, domain.CoverageSurplus, out[0].Status, "zero demand with nonzero staffing is unbounded surplus, not 100%% adequate/optimal")
}

func TestStatusForBoundaries(t *testing.T) {
	assert.Equal(t, domain.CoverageShortage, statusFor(84.9))
	assert.Equal(t, domain.CoverageAdequate, statusFor(90))
	assert.Equal(t, domain.CoverageOptimal, statusFor(100))
	assert.Equal(t, domain.CoverageOptimal, statusFor(105))
	assert.Equal(t, domain.CoverageSurplus, statusFor(110))
	assert.Equal(t, domain.CoverageSurplus, statusFor(130))
}

func TestCostImpactZeroWhenNoGap(t *testing.T) {
	assert.Equal(t, 0.0, CostImpact(-1, 50))
	assert.Equal(t, 100.0, CostImpact(2, 50))
}

func TestSummarizeAveragesProjectedSL(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	date := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	gw.SeedForecast(domain.ForecastInterval{ServiceID: "svc1", DateTime: date, RequiredAgents: 10, ServiceLevelTarget: 80})
	gw.SeedShift(domain.Shift{ID: "s1", EmployeeID: "e1", Date: date.Truncate(24 * time.Hour), Start: 9 * time.Hour, End: 17 * time.Hour})
	gw.SeedShift(domain.Shift{ID: "s2", EmployeeID: "e2", Date: date.Truncate(24 * time.Hour), Start: 9 * time.Hour, End: 17 * time.Hour})

	a := NewAnalyzer(gw)
	day := date.Truncate(24 * time.Hour)
	rep, err := a.Summarize(context.Background(), "svc1", gateway.Range{Start: day, End: day.AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, rep.Intervals, 1)
	assert.Equal(t, 1, rep.ShortageIntervals)
	assert.Equal(t, rep.Intervals[0].ProjectedSL, rep.AverageProjectedSL)
}
