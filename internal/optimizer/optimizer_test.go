package optimizer

import (
	"testing"

	"github.com/flyingrobots/wfm-core/internal/domain"
	"github.com/stretchr/testify/assert"
)

func testEmployees() []domain.Employee {
	return []domain.Employee{
		{ID: "e1", Capabilities: []domain.SkillCapability{{SkillID: "sales", Proficiency: 5}, {SkillID: "support", Proficiency: 2}}},
		{ID: "e2", Capabilities: []domain.SkillCapability{{SkillID: "sales", Proficiency: 2}}},
		{ID: "e3", Capabilities: []domain.SkillCapability{{SkillID: "support", Proficiency: 4}}},
	}
}

func TestOptimizePriorityFillsHighestPriorityFirst(t *testing.T) {
	demand := []Demand{
		{SkillID: "support", RequiredFTE: 1, Priority: 2},
		{SkillID: "sales", RequiredFTE: 1, Priority: 1},
	}
	capacity := map[string]float64{"e1": 1, "e2": 1, "e3": 1}
	res := Optimize(ModePriority, demand, testEmployees(), capacity)
	requireNonEmpty(t, res.Assignments)
	assert.Equal(t, ModePriority, res.Mode)
	assert.Greater(t, res.Score, 0.0)
	assert.Equal(t, "sales", res.BySkill[0].SkillID)
}

func TestOptimizeCostMinimizingPrefersCheaperDemandFirst(t *testing.T) {
	demand := []Demand{
		{SkillID: "sales", RequiredFTE: 1, HourlyCost: 50},
		{SkillID: "support", RequiredFTE: 1, HourlyCost: 20},
	}
	capacity := map[string]float64{"e1": 1, "e2": 1, "e3": 1}
	res := Optimize(ModeCostMinimizing, demand, testEmployees(), capacity)
	assert.NotEmpty(t, res.Assignments)
	assert.Equal(t, "support", res.BySkill[0].SkillID)
}

func TestOptimizeFullyCoversWithEnoughCapacity(t *testing.T) {
	demand := []Demand{{SkillID: "sales", RequiredFTE: 1}}
	capacity := map[string]float64{"e1": 1, "e2": 1}
	res := Optimize(ModeLoadBalanced, demand, testEmployees(), capacity)
	assert.Equal(t, 1.0, res.Score)
	requireNonEmpty(t, res.BySkill)
	assert.Equal(t, 1.0, res.BySkill[0].AllocatedFTE)
}

func TestValidateProficiencyFlagsUnderqualifiedAssignment(t *testing.T) {
	assignments := []Assignment{{EmployeeID: "e2", SkillID: "sales", FTE: 1}}
	violations := ValidateProficiency(assignments, testEmployees(), map[string]int{"sales": 4})
	assert.Len(t, violations, 1)
}

func requireNonEmpty(t *testing.T, v interface{}) {
	t.Helper()
	switch vv := v.(type) {
	case []Assignment:
		assert.NotEmpty(t, vv)
	case []SkillBreakdown:
		assert.NotEmpty(t, vv)
	}
}
