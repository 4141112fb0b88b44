package tools

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/go-playground/validator/v10"

	"campusagent/internal/store"
)

// updatableFields lists the student fields the updateStudent tool may change.
var updatableFields = []string{"name", "department", "email", "student_id"}

// UpdatableFields returns the whitelist of student fields open to updates.
func UpdatableFields() []string {
	return updatableFields
}

// NormalizeUpdateValue converts a raw field/value pair into the typed value
// the record store accepts. Email values are lowercased and checked for
// format, campus IDs must parse as integers, and fields outside the whitelist
// are rejected. The returned error message is safe to show to callers.
func NormalizeUpdateValue(validate *validator.Validate, field, newValue string) (any, error) {
	switch field {
	case "name", "department":
		return newValue, nil
	case "email":
		email := strings.ToLower(strings.TrimSpace(newValue))
		if err := validate.Var(email, "required,email"); err != nil {
			return nil, fmt.Errorf("invalid email address: %q", newValue)
		}
		return email, nil
	case "student_id":
		id, err := strconv.ParseInt(strings.TrimSpace(newValue), 10, 64)
		if err != nil {
			return nil, errors.New("student_id must be an integer")
		}
		return id, nil
	default:
		return nil, fmt.Errorf("invalid field %q, allowed: %s", field, strings.Join(updatableFields, ", "))
	}
}

// AddStudentInput defines input for the addStudent tool.
type AddStudentInput struct {
	Name       string `json:"name" jsonschema_description:"Full name of the student"`
	StudentID  int64  `json:"student_id" jsonschema_description:"Numeric campus ID of the student"`
	Department string `json:"department" jsonschema_description:"Department the student is enrolled in"`
	Email      string `json:"email" jsonschema_description:"Email address of the student (must be unique)"`
}

// GetStudentInput defines input for the getStudent tool.
type GetStudentInput struct {
	Identifier string `json:"identifier" jsonschema_description:"Student email or numeric campus ID"`
}

// UpdateStudentInput defines input for the updateStudent tool.
type UpdateStudentInput struct {
	Identifier string `json:"identifier" jsonschema_description:"Student email or numeric campus ID"`
	Field      string `json:"field" jsonschema_description:"Field to update: name, department, email or student_id"`
	NewValue   string `json:"new_value" jsonschema_description:"New value for the field"`
}

// DeleteStudentInput defines input for the deleteStudent tool.
type DeleteStudentInput struct {
	Identifier string `json:"identifier" jsonschema_description:"Student email or numeric campus ID"`
}

// ListStudentsInput defines input for the listStudents tool. It has no
// parameters; the type exists for schema generation.
type ListStudentsInput struct{}

func (c *Catalog) registerStudentTools(g *genkit.Genkit) {
	genkit.DefineTool(g, "addStudent",
		"Add a new student record. The email must be unique across all students. "+
			"Returns the created record including its generated ID.",
		c.AddStudent)

	genkit.DefineTool(g, "getStudent",
		"Look up a single student by email or numeric campus ID. "+
			"Returns the full student record.",
		c.GetStudent)

	genkit.DefineTool(g, "updateStudent",
		"Update one field of a student record, located by email or campus ID. "+
			"Allowed fields: name, department, email, student_id.",
		c.UpdateStudent)

	genkit.DefineTool(g, "deleteStudent",
		"Delete a student record, located by email or campus ID. "+
			"This is permanent.",
		c.DeleteStudent)

	genkit.DefineTool(g, "listStudents",
		"List all student records, newest first.",
		c.ListStudents)
}

// AddStudent creates a student record after normalizing and validating the
// email. Duplicate emails are reported as a conflict the model can relay.
func (c *Catalog) AddStudent(tc *ai.ToolContext, input AddStudentInput) (Result, error) {
	c.logger.Info("AddStudent called", "email", input.Email)

	if strings.TrimSpace(input.Name) == "" {
		return Failure(KindValidation, "name is required"), nil
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := c.validate.Var(email, "required,email"); err != nil {
		return Failure(KindValidation, fmt.Sprintf("invalid email address: %q", input.Email)), nil
	}

	st, err := c.records.CreateStudent(tc.Context, input.Name, input.StudentID, input.Department, email)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return Failure(KindConflict, fmt.Sprintf("student with email %s already exists", email)), nil
		}
		return Result{}, fmt.Errorf("adding student: %w", err)
	}

	c.touchActivity(tc, st.Email)
	return Success("Student added successfully", st), nil
}

// GetStudent resolves an identifier to a student record.
func (c *Catalog) GetStudent(tc *ai.ToolContext, input GetStudentInput) (Result, error) {
	c.logger.Debug("GetStudent called", "identifier", input.Identifier)

	st, err := c.resolveStudent(tc.Context, input.Identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Failure(KindNotFound, "student not found"), nil
		}
		return Result{}, err
	}
	return Success("Student found", st), nil
}

// UpdateStudent changes one whitelisted field on a student record. Email
// updates are normalized and checked for uniqueness; campus ID updates must
// parse as an integer.
func (c *Catalog) UpdateStudent(tc *ai.ToolContext, input UpdateStudentInput) (Result, error) {
	c.logger.Info("UpdateStudent called", "identifier", input.Identifier, "field", input.Field)

	value, normErr := NormalizeUpdateValue(c.validate, input.Field, input.NewValue)
	if normErr != nil {
		return Failure(KindValidation, normErr.Error()), nil
	}

	st, err := c.resolveStudent(tc.Context, input.Identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Failure(KindNotFound, "student not found"), nil
		}
		return Result{}, err
	}

	updated, err := c.records.UpdateStudentField(tc.Context, st.ID, input.Field, value)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateEmail):
			return Failure(KindConflict, fmt.Sprintf("student with email %v already exists", value)), nil
		case errors.Is(err, store.ErrNotFound):
			// Deleted between resolution and update.
			return Failure(KindNotFound, "student not found"), nil
		default:
			return Result{}, fmt.Errorf("updating student: %w", err)
		}
	}

	c.touchActivity(tc, updated.Email)
	return Success("Student updated successfully", updated), nil
}

// DeleteStudent removes a student record located by identifier.
func (c *Catalog) DeleteStudent(tc *ai.ToolContext, input DeleteStudentInput) (Result, error) {
	c.logger.Info("DeleteStudent called", "identifier", input.Identifier)

	st, err := c.resolveStudent(tc.Context, input.Identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Failure(KindNotFound, "student not found"), nil
		}
		return Result{}, err
	}

	if err := c.records.DeleteStudent(tc.Context, st.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Failure(KindNotFound, "student not found"), nil
		}
		return Result{}, fmt.Errorf("deleting student: %w", err)
	}

	return Success("Student deleted successfully", nil), nil
}

// touchActivity records a write against the activity log. Failures are logged
// and ignored; the log feeds analytics, not correctness.
func (c *Catalog) touchActivity(tc *ai.ToolContext, email string) {
	if err := c.records.RecordActivity(tc.Context, email, time.Now()); err != nil {
		c.logger.Warn("recording activity", "email", email, "error", err)
	}
}

// ListStudents returns all student records, newest first.
func (c *Catalog) ListStudents(tc *ai.ToolContext, _ ListStudentsInput) (Result, error) {
	c.logger.Debug("ListStudents called")

	students, err := c.records.ListStudents(tc.Context)
	if err != nil {
		return Result{}, fmt.Errorf("listing students: %w", err)
	}
	return Success(fmt.Sprintf("%d students", len(students)), map[string]any{"students": students}), nil
}
