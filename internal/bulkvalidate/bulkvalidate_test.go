package bulkvalidate

import (
	"context"
	"testing"
	"time"

	"github.com/flyingrobots/wfm-core/internal/compliance"
	"github.com/flyingrobots/wfm-core/internal/domain"
	"github.com/flyingrobots/wfm-core/internal/gateway"
	"github.com/flyingrobots/wfm-core/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCleanEmployee(gw *gateway.MemoryGateway, id string, date time.Time) {
	gw.SeedEmployee(domain.Employee{ID: id, AgeCategory: domain.AgeAdult})
	gw.SeedShift(domain.Shift{ID: id + "-s1", EmployeeID: id, Date: date, Start: 9 * time.Hour, End: 17 * time.Hour})
	start := date.Add(9 * time.Hour)
	for i := 0; i < 32; i++ {
		t := start.Add(time.Duration(i) * 15 * time.Minute)
		switch i {
		case 12, 13, 4, 20:
			gw.SeedActivity(domain.AgentActivityInterval{AgentID: id, DateTime: t, BreakSeconds: 15 * 60})
		default:
			gw.SeedActivity(domain.AgentActivityInterval{AgentID: id, DateTime: t, ProductiveSeconds: 15 * 60})
		}
	}
}

func TestRunProcessesAllEmployeesAndReportsProgress(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	cat := rules.NewCatalog(24*time.Hour, nil)
	engine := compliance.NewEngine(gw, cat, compliance.NewCache(time.Hour), nil)
	validator := NewValidator(engine, nil)

	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ids := []string{"e1", "e2", "e3"}
	for _, id := range ids {
		seedCleanEmployee(gw, id, date)
	}

	var progressCalls int
	report := validator.Run(context.Background(), ids, gateway.Range{Start: date, End: date.AddDate(0, 0, 1)}, func(p Progress) {
		progressCalls++
	})

	assert.False(t, report.Cancelled)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 3, report.Compliant)
	assert.Empty(t, report.Errors)
	assert.Greater(t, progressCalls, 0)
}

func TestRunStopsOnCancellation(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	cat := rules.NewCatalog(24*time.Hour, nil)
	engine := compliance.NewEngine(gw, cat, compliance.NewCache(time.Hour), nil)
	validator := NewValidator(engine, nil)

	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seedCleanEmployee(gw, "e1", date)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := validator.Run(ctx, []string{"e1"}, gateway.Range{Start: date, End: date.AddDate(0, 0, 1)}, nil)
	require.True(t, report.Cancelled)
}

func TestPlanForScalesWithPopulation(t *testing.T) {
	small, smallConc := planFor(50)
	large, largeConc := planFor(5000)
	assert.Less(t, small, large)
	assert.Less(t, smallConc, largeConc)
}
