// Package optimizer implements the Multi-Skill Optimizer: assignment of
// operators to queues/skills under one of four modes. No linear-
// programming or constraint-solver library exists anywhere in the
// example corpus this module was grounded on, so every mode below is a
// deliberately simple greedy heuristic over standard-library sorts
// rather than a simplex/ILP formulation (see DESIGN.md).
package optimizer

import (
	"sort"

	"github.com/flyingrobots/wfm-core/internal/domain"
	"github.com/flyingrobots/wfm-core/internal/obs"
)

// Mode selects the optimizer's allocation strategy.
type Mode string

const (
	ModePriority        Mode = "priority"
	ModeLoadBalanced    Mode = "load_balanced"
	ModeCostMinimizing  Mode = "cost_minimizing"
	ModeSkillDevelopment Mode = "skill_development"
)

// Demand is one queue/skill's required headcount for the planning
// window, with an optional priority tier (1 = highest) and hourly cost.
type Demand struct {
	SkillID      string
	RequiredFTE  float64
	Priority     int
	HourlyCost   float64
}

// Assignment is one operator's allocated share of one skill.
type Assignment struct {
	EmployeeID string
	SkillID    string
	FTE        float64
}

// SkillBreakdown summarizes how one skill's demand was covered.
type SkillBreakdown struct {
	SkillID       string
	RequiredFTE   float64
	AllocatedFTE  float64
	OperatorCount int
}

// OperatorBreakdown summarizes one operator's resulting allocation.
type OperatorBreakdown struct {
	EmployeeID string
	TotalFTE   float64
	SkillCount int
}

// Result is the full output of one optimization run.
type Result struct {
	Mode        Mode
	Assignments []Assignment
	BySkill     []SkillBreakdown
	ByOperator  []OperatorBreakdown
	Score       float64 // 0-1, see scoreFor
}

// candidate is an operator's eligibility for one skill, precomputed once
// per run so every mode shares the same input shape.
type candidate struct {
	EmployeeID  string
	SkillID     string
	Proficiency int
	Available   float64 // remaining FTE capacity for the window
}

func buildCandidates(employees []domain.Employee, capacity map[string]float64) []candidate {
	var out []candidate
	for _, e := range employees {
		avail := capacity[e.ID]
		if avail <= 0 {
			avail = 1.0
		}
		for _, c := range e.Capabilities {
			out = append(out, candidate{EmployeeID: e.ID, SkillID: c.SkillID, Proficiency: c.Proficiency, Available: avail})
		}
	}
	return out
}

// Optimize assigns employees to demand using the given mode. capacity
// maps employee id to available FTE for the window; employees absent
// from the map default to 1.0 FTE.
func Optimize(mode Mode, demand []Demand, employees []domain.Employee, capacity map[string]float64) Result {
	switch mode {
	case ModeLoadBalanced:
		return optimizeLoadBalanced(demand, employees, capacity)
	case ModeCostMinimizing:
		return optimizeCostMinimizing(demand, employees, capacity)
	case ModeSkillDevelopment:
		return optimizeSkillDevelopment(demand, employees, capacity)
	default:
		return optimizePriority(demand, employees, capacity)
	}
}

// optimizePriority fills the highest-priority (lowest Priority number)
// skills first, preferring each skill's most proficient operators.
func optimizePriority(demand []Demand, employees []domain.Employee, capacity map[string]float64) Result {
	ordered := append([]Demand(nil), demand...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })
	return allocateGreedy(ModePriority, ordered, employees, capacity, func(a, b candidate) bool {
		return a.Proficiency > b.Proficiency
	})
}

// optimizeLoadBalanced spreads allocation across operators evenly by
// processing demand in descending size and, within a skill, preferring
// operators with the most remaining capacity (so no one operator is
// saturated before another has started).
func optimizeLoadBalanced(demand []Demand, employees []domain.Employee, capacity map[string]float64) Result {
	ordered := append([]Demand(nil), demand...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].RequiredFTE > ordered[j].RequiredFTE })
	return allocateGreedy(ModeLoadBalanced, ordered, employees, capacity, func(a, b candidate) bool {
		return a.Available > b.Available
	})
}

// optimizeCostMinimizing fills cheapest-per-hour demand first, and
// within a skill prefers the least proficient operator that still
// qualifies (proficiency >= 1), since the cheapest adequate assignment
// is the goal rather than the best possible one.
func optimizeCostMinimizing(demand []Demand, employees []domain.Employee, capacity map[string]float64) Result {
	ordered := append([]Demand(nil), demand...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].HourlyCost < ordered[j].HourlyCost })
	return allocateGreedy(ModeCostMinimizing, ordered, employees, capacity, func(a, b candidate) bool {
		return a.Proficiency < b.Proficiency
	})
}

// optimizeSkillDevelopment prefers operators below the target
// proficiency (3) for a skill, so they accrue hours against it, falling
// back to the most proficient once every under-target operator is
// saturated.
func optimizeSkillDevelopment(demand []Demand, employees []domain.Employee, capacity map[string]float64) Result {
	const developmentTarget = 3
	ordered := append([]Demand(nil), demand...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })
	return allocateGreedy(ModeSkillDevelopment, ordered, employees, capacity, func(a, b candidate) bool {
		aDev, bDev := a.Proficiency < developmentTarget, b.Proficiency < developmentTarget
		if aDev != bDev {
			return aDev
		}
		if aDev {
			return a.Proficiency < b.Proficiency
		}
		return a.Proficiency > b.Proficiency
	})
}

func allocateGreedy(mode Mode, demand []Demand, employees []domain.Employee, capacity map[string]float64, less func(a, b candidate) bool) Result {
	candidates := buildCandidates(employees, capacity)
	bySkill := make(map[string][]candidate)
	for _, c := range candidates {
		bySkill[c.SkillID] = append(bySkill[c.SkillID], c)
	}

	remaining := make(map[string]float64) // employeeID -> FTE left
	for id, v := range capacity {
		remaining[id] = v
	}

	var assignments []Assignment
	skillBreakdown := make(map[string]*SkillBreakdown)
	operatorFTE := make(map[string]float64)
	operatorSkills := make(map[string]map[string]bool)

	for _, d := range demand {
		pool := append([]candidate(nil), bySkill[d.SkillID]...)
		sort.SliceStable(pool, func(i, j int) bool { return less(pool[i], pool[j]) })

		need := d.RequiredFTE
		sb := &SkillBreakdown{SkillID: d.SkillID, RequiredFTE: d.RequiredFTE}
		for _, c := range pool {
			if need <= 0 {
				break
			}
			avail, ok := remaining[c.EmployeeID]
			if !ok {
				avail = c.Available
			}
			if avail <= 0 {
				continue
			}
			take := avail
			if take > need {
				take = need
			}
			remaining[c.EmployeeID] = avail - take
			need -= take

			assignments = append(assignments, Assignment{EmployeeID: c.EmployeeID, SkillID: d.SkillID, FTE: take})
			sb.AllocatedFTE += take
			sb.OperatorCount++
			operatorFTE[c.EmployeeID] += take
			if operatorSkills[c.EmployeeID] == nil {
				operatorSkills[c.EmployeeID] = make(map[string]bool)
			}
			operatorSkills[c.EmployeeID][d.SkillID] = true
		}
		skillBreakdown[d.SkillID] = sb
	}

	res := Result{Mode: mode, Assignments: assignments}
	for _, d := range demand {
		res.BySkill = append(res.BySkill, *skillBreakdown[d.SkillID])
	}
	for id, fte := range operatorFTE {
		res.ByOperator = append(res.ByOperator, OperatorBreakdown{EmployeeID: id, TotalFTE: fte, SkillCount: len(operatorSkills[id])})
	}
	sort.Slice(res.ByOperator, func(i, j int) bool { return res.ByOperator[i].EmployeeID < res.ByOperator[j].EmployeeID })

	res.Score = scoreFor(res.BySkill)
	obs.OptimizerScore.WithLabelValues(string(mode)).Set(res.Score)
	return res
}

// scoreFor is the fraction of total required FTE actually covered,
// averaged across skills so no single oversized skill dominates the
// score.
func scoreFor(bySkill []SkillBreakdown) float64 {
	if len(bySkill) == 0 {
		return 1
	}
	var total float64
	for _, s := range bySkill {
		if s.RequiredFTE <= 0 {
			total += 1
			continue
		}
		covered := s.AllocatedFTE / s.RequiredFTE
		if covered > 1 {
			covered = 1
		}
		total += covered
	}
	return total / float64(len(bySkill))
}

// ValidateProficiency reports whether every assignment meets a minimum
// proficiency requirement for its skill, per spec.md's "proficiency
// requirement validation check".
func ValidateProficiency(assignments []Assignment, employees []domain.Employee, minProficiency map[string]int) []Assignment {
	profOf := make(map[string]map[string]int) // employeeID -> skillID -> proficiency
	for _, e := range employees {
		m := make(map[string]int)
		for _, c := range e.Capabilities {
			m[c.SkillID] = c.Proficiency
		}
		profOf[e.ID] = m
	}

	var violations []Assignment
	for _, a := range assignments {
		min, ok := minProficiency[a.SkillID]
		if !ok {
			continue
		}
		if profOf[a.EmployeeID][a.SkillID] < min {
			violations = append(violations, a)
		}
	}
	return violations
}
