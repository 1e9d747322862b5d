package timetable

import (
	"context"
	"testing"
	"time"

	"github.com/flyingrobots/wfm-core/internal/domain"
	"github.com/flyingrobots/wfm-core/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testShift(date time.Time) domain.Shift {
	return domain.Shift{ID: "s1", EmployeeID: "e1", Date: date, Start: 9 * time.Hour, End: 17 * time.Hour}
}

func TestGenerateProducesFullEnvelope(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	p := NewPlanner(gw, Config{})
	date := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	shift := testShift(date)
	employee := domain.Employee{ID: "e1", Constraints: domain.Constraints{NightWorkOK: true},
		Capabilities: []domain.SkillCapability{{SkillID: "skill1", Proficiency: 3}}}

	blocks, err := p.Generate(context.Background(), shift, employee, nil)
	require.NoError(t, err)
	assert.Equal(t, 32, len(blocks)) // 8h / 15min

	persisted := BlocksFor(gw, "e1")
	assert.Len(t, persisted, 32)
}

func TestGenerateInsertsLunchAndBreaks(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	p := NewPlanner(gw, Config{})
	date := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	shift := testShift(date)
	employee := domain.Employee{ID: "e1", Constraints: domain.Constraints{NightWorkOK: true},
		Capabilities: []domain.SkillCapability{{SkillID: "skill1", Proficiency: 3}}}

	blocks, err := p.Generate(context.Background(), shift, employee, nil)
	require.NoError(t, err)

	var lunchCount, breakCount int
	for _, b := range blocks {
		switch b.Activity {
		case domain.ActivityLunch:
			lunchCount++
		case domain.ActivityShortBreak:
			breakCount++
		}
	}
	assert.Equal(t, 2, lunchCount, "expected a 30-minute lunch (2 blocks)")
	assert.Greater(t, breakCount, 0, "expected at least one short break")
}

func TestGenerateHonorsDayOffPreference(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	p := NewPlanner(gw, Config{})
	date := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	shift := testShift(date)
	employee := domain.Employee{ID: "e1", Constraints: domain.Constraints{NightWorkOK: true}}
	pref := &gateway.SchedulePreference{EmployeeID: "e1", Date: date, DayOff: true}

	blocks, err := p.Generate(context.Background(), shift, employee, pref)
	require.NoError(t, err)
	for _, b := range blocks {
		assert.Equal(t, domain.ActivityNotAvailable, b.Activity)
	}
}

func TestAddWorkRejectsLockedBlock(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	p := NewPlanner(gw, Config{})
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, gw.PersistTimetableBlocks(context.Background(), []domain.TimetableBlock{
		{EmployeeID: "e1", Start: start, Activity: domain.ActivityWork, IsLocked: true},
	}))

	err := p.AddWork(context.Background(), "e1", start, "skill1")
	require.Error(t, err)
}

func TestCancelBreaksRevertsToWork(t *testing.T) {
	gw := gateway.NewMemoryGateway()
	p := NewPlanner(gw, Config{})
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, gw.PersistTimetableBlocks(context.Background(), []domain.TimetableBlock{
		{EmployeeID: "e1", Start: start, Activity: domain.ActivityLunch},
		{EmployeeID: "e1", Start: start.Add(15 * time.Minute), Activity: domain.ActivityLunch},
	}))

	require.NoError(t, p.CancelBreaks(context.Background(), "e1", start, start.Add(30*time.Minute)))

	persisted := BlocksFor(gw, "e1")
	for _, b := range persisted {
		assert.Equal(t, domain.ActivityWork, b.Activity)
	}
}
