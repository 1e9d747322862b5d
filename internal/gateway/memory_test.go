package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/flyingrobots/wfm-core/internal/domain"
	"github.com/flyingrobots/wfm-core/internal/wfmerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGatewayLoadEmployeeProfilesNotFound(t *testing.T) {
	g := NewMemoryGateway()
	_, err := g.LoadEmployeeProfiles(context.Background(), []string{"missing"})
	require.Error(t, err)
	assert.Equal(t, wfmerrors.KindNotFound, wfmerrors.KindOf(err))
}

func TestMemoryGatewayShiftRangeFilter(t *testing.T) {
	g := NewMemoryGateway()
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	g.SeedShift(domain.Shift{ID: "s1", EmployeeID: "e1", Date: base, Start: 9 * time.Hour, End: 17 * time.Hour})
	g.SeedShift(domain.Shift{ID: "s2", EmployeeID: "e1", Date: base.AddDate(0, 0, 10), Start: 9 * time.Hour, End: 17 * time.Hour})

	out, err := g.LoadShifts(context.Background(), Range{Start: base, End: base.AddDate(0, 0, 1)}, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "s1", out[0].ID)
}

func TestMemoryGatewayPersistBlocksRejectsLockedOverwrite(t *testing.T) {
	g := NewMemoryGateway()
	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	require.NoError(t, g.PersistTimetableBlocks(ctx, []domain.TimetableBlock{
		{EmployeeID: "e1", Start: start, Activity: domain.ActivityNotAvailable, IsLocked: true},
	}))

	err := g.PersistTimetableBlocks(ctx, []domain.TimetableBlock{
		{EmployeeID: "e1", Start: start, Activity: domain.ActivityWork, IsLocked: false},
	})
	require.Error(t, err)
	assert.Equal(t, wfmerrors.KindConflict, wfmerrors.KindOf(err))
}

func TestMemoryGatewayRecentBlockChangesOrderedAndFiltered(t *testing.T) {
	g := NewMemoryGateway()
	now := time.Now()
	g.SeedBlockChange(BlockChange{EmployeeID: "e1", ChangedAt: now.Add(-10 * time.Minute)})
	g.SeedBlockChange(BlockChange{EmployeeID: "e2", ChangedAt: now.Add(-1 * time.Minute)})

	out, err := g.RecentBlockChanges(context.Background(), now.Add(-5*time.Minute))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "e2", out[0].EmployeeID)
}

func TestMemoryGatewayUpdateBlockLocked(t *testing.T) {
	g := NewMemoryGateway()
	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, g.PersistTimetableBlocks(ctx, []domain.TimetableBlock{
		{EmployeeID: "e1", Start: start, Activity: domain.ActivityWork, IsLocked: true},
	}))
	act := domain.ActivityMeeting
	err := g.UpdateBlock(ctx, "e1", start, BlockChangeSet{Activity: &act})
	require.Error(t, err)
	assert.Equal(t, wfmerrors.KindConflict, wfmerrors.KindOf(err))
}
