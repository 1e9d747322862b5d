package rules

import (
	"testing"
	"time"

	"github.com/flyingrobots/wfm-core/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrixThresholdsByAge(t *testing.T) {
	c := NewCatalog(24*time.Hour, nil)
	m, err := c.Current()
	require.NoError(t, err)

	adult, ok := m.ThresholdsFor(domain.AgeAdult, DailyHours)
	require.True(t, ok)
	assert.Equal(t, 8.0, adult.Standard)
	assert.Equal(t, 12.0, adult.Max)

	minor, ok := m.ThresholdsFor(domain.AgeMinor, WeeklyHours)
	require.True(t, ok)
	assert.Equal(t, 35.0, minor.Standard)
}

func TestEvaluationOrderIsFixed(t *testing.T) {
	order := EvaluationOrder()
	require.Equal(t, []RuleID{DailyHours, WeeklyHours, RestBetween, BreakQuota, Lunch, ConsecutiveDays}, order)
}

func TestCatalogRefreshesOnTTLExpiry(t *testing.T) {
	c := NewCatalog(1*time.Millisecond, nil)
	first, err := c.Current()
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := c.Current()
	require.NoError(t, err)
	assert.NotSame(t, first, second, "expected matrix pointer to be swapped after TTL expiry")
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, domain.RuleOvertime, CategoryOf(WeeklyHours))
	assert.Equal(t, domain.RuleBreaks, CategoryOf(Lunch))
}

func TestStartScheduledRefreshRejectsInvalidSpec(t *testing.T) {
	c := NewCatalog(24*time.Hour, nil)
	err := c.StartScheduledRefresh("not a cron spec")
	require.Error(t, err)
}

func TestStartScheduledRefreshRunsOnSchedule(t *testing.T) {
	c := NewCatalog(24*time.Hour, nil)
	before, err := c.Current()
	require.NoError(t, err)

	require.NoError(t, c.StartScheduledRefresh("* * * * * *"))
	defer c.StopScheduledRefresh()

	require.Eventually(t, func() bool {
		after, err := c.Current()
		return err == nil && after != before
	}, 2*time.Second, 20*time.Millisecond)
}
