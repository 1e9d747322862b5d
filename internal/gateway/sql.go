package gateway

import (
	"context"
	"time"

	"github.com/flyingrobots/wfm-core/internal/domain"
	"github.com/flyingrobots/wfm-core/internal/wfmerrors"
	"github.com/jmoiron/sqlx"
)

// employeeRow, shiftRow and their sqlx struct tags sketch the schema a
// production Gateway would bind to (the "employees", "shifts" logical
// tables of spec.md §6). This file demonstrates that the Gateway
// interface is swappable onto a real database without requiring a live
// connection for the test suite: SQLGateway implements
// LoadEmployeeProfiles and LoadShifts only; no other Gateway operation
// is implemented or sketched here.
type employeeRow struct {
	ID             string  `db:"id"`
	DisplayName    string  `db:"display_name"`
	EmployeeNumber string  `db:"employee_number"`
	Employment     string  `db:"employment_type"`
	AgeCategory    string  `db:"age_category"`
	OrganizationID string  `db:"organization_id"`
	DepartmentID   string  `db:"department_id"`
	PrimaryGroupID string  `db:"primary_group_id"`
	MaxDailyHours  float64 `db:"max_daily_hours"`
	MaxWeeklyHours float64 `db:"max_weekly_hours"`
	NightWorkOK    bool    `db:"night_work_allowed"`
	WeekendWorkOK  bool    `db:"weekend_work_allowed"`
	OvertimeOK     bool    `db:"overtime_allowed"`
	WorkRateFactor float64 `db:"work_rate_factor"`
}

type shiftRow struct {
	ID         string    `db:"id"`
	EmployeeID string    `db:"employee_id"`
	Date       time.Time `db:"shift_date"`
	StartSec   int64     `db:"start_seconds"`
	EndSec     int64     `db:"end_seconds"`
	Status     string    `db:"status"`
}

// SQLGateway implements the Repository Gateway's single-table reads
// against a `*sqlx.DB`. It is intentionally partial: the rest of the
// Gateway interface (multi-table loads, writes) belongs to a future
// migration and is left undefined here rather than faked, per the rule
// that every operation must return an explicit error kind instead of a
// hand-rolled stub masquerading as a real implementation.
type SQLGateway struct {
	db *sqlx.DB
}

// NewSQLGateway wraps an already-connected *sqlx.DB (e.g. via
// sqlx.Connect("pgx", dsn)).
func NewSQLGateway(db *sqlx.DB) *SQLGateway {
	return &SQLGateway{db: db}
}

// LoadEmployeeProfiles demonstrates the binding: a single parametrized
// IN query mapped straight onto employeeRow via sqlx.Select, then
// translated into domain.Employee. Skill capabilities would join against
// `employee_skills`; omitted here since MemoryGateway is the gateway
// exercised by every other package's tests.
func (g *SQLGateway) LoadEmployeeProfiles(ctx context.Context, ids []string) ([]domain.Employee, error) {
	if g.db == nil {
		return nil, wfmerrors.Upstream("load_employee_profiles", errNoConnection)
	}
	query, args, err := sqlx.In(`SELECT id, display_name, employee_number, employment_type,
		age_category, organization_id, department_id, primary_group_id,
		max_daily_hours, max_weekly_hours, night_work_allowed, weekend_work_allowed,
		overtime_allowed, work_rate_factor FROM employees WHERE id IN (?)`, ids)
	if err != nil {
		return nil, wfmerrors.Wrap(wfmerrors.KindValidation, "build employee query", err)
	}
	query = g.db.Rebind(query)
	var rows []employeeRow
	if err := g.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wfmerrors.Upstream("load_employee_profiles", err)
	}
	out := make([]domain.Employee, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Employee{
			ID:             r.ID,
			DisplayName:    r.DisplayName,
			EmployeeNumber: r.EmployeeNumber,
			Employment:     domain.EmploymentType(r.Employment),
			AgeCategory:    domain.AgeCategory(r.AgeCategory),
			OrganizationID: r.OrganizationID,
			DepartmentID:   r.DepartmentID,
			PrimaryGroupID: r.PrimaryGroupID,
			Constraints: domain.Constraints{
				MaxDailyHours:   r.MaxDailyHours,
				MaxWeeklyHours:  r.MaxWeeklyHours,
				NightWorkOK:     r.NightWorkOK,
				WeekendWorkOK:   r.WeekendWorkOK,
				OvertimeAllowed: r.OvertimeOK,
				WorkRateFactor:  r.WorkRateFactor,
			},
		})
	}
	return out, nil
}

// LoadShifts demonstrates the range-bounded query shape; date handling
// follows the invariant that a shift's date column is the calendar day
// the shift *starts* (§3.6).
func (g *SQLGateway) LoadShifts(ctx context.Context, r Range, employeeIDs []string) ([]domain.Shift, error) {
	if g.db == nil {
		return nil, wfmerrors.Upstream("load_shifts", errNoConnection)
	}
	if !r.Valid() {
		return nil, wfmerrors.Validation("range", "end before start")
	}
	var rows []shiftRow
	query := `SELECT id, employee_id, shift_date, start_seconds, end_seconds, status
		FROM shifts WHERE shift_date >= $1 AND shift_date < $2`
	args := []interface{}{r.Start, r.End}
	if len(employeeIDs) > 0 {
		q2, a2, err := sqlx.In(query+` AND employee_id IN (?)`, append(args, employeeIDs)...)
		if err != nil {
			return nil, wfmerrors.Wrap(wfmerrors.KindValidation, "build shift query", err)
		}
		query, args = g.db.Rebind(q2), a2
	}
	if err := g.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wfmerrors.Upstream("load_shifts", err)
	}
	out := make([]domain.Shift, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Shift{
			ID:         r.ID,
			EmployeeID: r.EmployeeID,
			Date:       r.Date,
			Start:      time.Duration(r.StartSec) * time.Second,
			End:        time.Duration(r.EndSec) * time.Second,
			Status:     domain.ShiftStatus(r.Status),
		})
	}
	return out, nil
}

var errNoConnection = wfmerrors.New(wfmerrors.KindUpstream, "sql gateway has no live connection")

var _ interface {
	LoadEmployeeProfiles(context.Context, []string) ([]domain.Employee, error)
	LoadShifts(context.Context, Range, []string) ([]domain.Shift, error)
} = (*SQLGateway)(nil)
