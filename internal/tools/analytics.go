package tools

import (
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// activityWindow is the lookback for the "active students" analytics tool.
const activityWindow = 7 * 24 * time.Hour

// RecentStudentsInput defines input for the getRecentOnboardedStudents tool.
type RecentStudentsInput struct {
	Limit int32 `json:"limit,omitempty" jsonschema_description:"Maximum number of students to return (default 5)"`
}

// TotalStudentsInput defines input for the getTotalStudents tool.
type TotalStudentsInput struct{}

// DepartmentBreakdownInput defines input for the getStudentsByDepartment tool.
type DepartmentBreakdownInput struct{}

// ActiveStudentsInput defines input for the getActiveStudentsLast7Days tool.
type ActiveStudentsInput struct{}

func (c *Catalog) registerAnalyticsTools(g *genkit.Genkit) {
	genkit.DefineTool(g, "getTotalStudents",
		"Return the total number of enrolled students.",
		c.TotalStudents)

	genkit.DefineTool(g, "getStudentsByDepartment",
		"Return the number of students per department, largest first.",
		c.StudentsByDepartment)

	genkit.DefineTool(g, "getRecentOnboardedStudents",
		"Return the most recently added students, newest first. "+
			"Accepts an optional limit, default 5.",
		c.RecentStudents)

	genkit.DefineTool(g, "getActiveStudentsLast7Days",
		"Return students with recorded activity in the last 7 days, "+
			"most recently active first.",
		c.ActiveStudents)
}

// TotalStudents returns the student head count.
func (c *Catalog) TotalStudents(tc *ai.ToolContext, _ TotalStudentsInput) (Result, error) {
	c.logger.Debug("TotalStudents called")

	count, err := c.records.CountStudents(tc.Context)
	if err != nil {
		return Result{}, fmt.Errorf("counting students: %w", err)
	}
	return Success("Total students", map[string]any{"total_students": count}), nil
}

// StudentsByDepartment returns the per-department enrollment breakdown.
func (c *Catalog) StudentsByDepartment(tc *ai.ToolContext, _ DepartmentBreakdownInput) (Result, error) {
	c.logger.Debug("StudentsByDepartment called")

	breakdown, err := c.records.StudentsByDepartment(tc.Context)
	if err != nil {
		return Result{}, fmt.Errorf("grouping students by department: %w", err)
	}
	return Success("Students by department", map[string]any{"students_by_department": breakdown}), nil
}

// RecentStudents returns the latest onboarded students. Non-positive limits
// fall back to 5.
func (c *Catalog) RecentStudents(tc *ai.ToolContext, input RecentStudentsInput) (Result, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 5
	}
	c.logger.Debug("RecentStudents called", "limit", limit)

	students, err := c.records.RecentStudents(tc.Context, limit)
	if err != nil {
		return Result{}, fmt.Errorf("listing recent students: %w", err)
	}
	return Success("Recently onboarded students", map[string]any{"recent_students": students}), nil
}

// ActiveStudents returns students with activity log entries inside the
// 7-day window.
func (c *Catalog) ActiveStudents(tc *ai.ToolContext, _ ActiveStudentsInput) (Result, error) {
	c.logger.Debug("ActiveStudents called")

	cutoff := time.Now().UTC().Add(-activityWindow)
	students, err := c.records.ActiveStudentsSince(tc.Context, cutoff)
	if err != nil {
		return Result{}, fmt.Errorf("listing active students: %w", err)
	}
	return Success("Active students in the last 7 days", map[string]any{"active_last_7_days": students}), nil
}
