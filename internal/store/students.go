package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// studentColumns maps updatable field names to their table columns.
// Anything outside this map is rejected with ErrInvalidField before any SQL
// is built, so field names never reach the query text unchecked.
var studentColumns = map[string]string{
	"name":       "name",
	"department": "department",
	"email":      "email",
	"student_id": "student_id",
}

const studentSelect = `SELECT id, name, student_id, department, email, created_at FROM students`

func scanStudent(row pgx.Row) (*Student, error) {
	var (
		st Student
		id pgtype.UUID
	)
	if err := row.Scan(&id, &st.Name, &st.CampusID, &st.Department, &st.Email, &st.CreatedAt); err != nil {
		return nil, err
	}
	st.ID = pgToUUID(id)
	return &st, nil
}

// CreateStudent inserts a new student record. The caller is responsible for
// normalizing the email; the unique index enforces case-insensitive
// uniqueness and collisions surface as ErrDuplicateEmail.
func (s *Store) CreateStudent(ctx context.Context, name string, campusID int64, department, email string) (*Student, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO students (name, student_id, department, email)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, name, student_id, department, email, created_at`,
		name, campusID, department, email)

	st, err := scanStudent(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
		}
		return nil, fmt.Errorf("inserting student: %w", err)
	}

	s.logger.Debug("created student", "id", st.ID, "email", st.Email)
	return st, nil
}

// StudentByEmail looks up a student by email, case-insensitively.
func (s *Store) StudentByEmail(ctx context.Context, email string) (*Student, error) {
	row := s.pool.QueryRow(ctx, studentSelect+` WHERE LOWER(email) = LOWER($1)`, email)
	st, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying student by email: %w", err)
	}
	return st, nil
}

// StudentByCampusID looks up a student by numeric campus ID. Campus IDs are
// not unique; the earliest-created match wins.
func (s *Store) StudentByCampusID(ctx context.Context, campusID int64) (*Student, error) {
	row := s.pool.QueryRow(ctx, studentSelect+` WHERE student_id = $1 ORDER BY created_at LIMIT 1`, campusID)
	st, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying student by campus ID: %w", err)
	}
	return st, nil
}

// StudentByID looks up a student by internal record ID.
func (s *Store) StudentByID(ctx context.Context, id uuid.UUID) (*Student, error) {
	row := s.pool.QueryRow(ctx, studentSelect+` WHERE id = $1`, uuidToPg(id))
	st, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying student by ID: %w", err)
	}
	return st, nil
}

// ListStudents returns all students, newest first.
func (s *Store) ListStudents(ctx context.Context) ([]*Student, error) {
	return s.queryStudents(ctx, studentSelect+` ORDER BY created_at DESC`)
}

// RecentStudents returns the most recently created students, newest first.
func (s *Store) RecentStudents(ctx context.Context, limit int32) ([]*Student, error) {
	return s.queryStudents(ctx, studentSelect+` ORDER BY created_at DESC LIMIT $1`, limit)
}

// UpdateStudentField updates a single whitelisted field on a student record
// and returns the updated record. Allowed fields: name, department, email,
// student_id. Email collisions surface as ErrDuplicateEmail.
func (s *Store) UpdateStudentField(ctx context.Context, id uuid.UUID, field string, value any) (*Student, error) {
	column, ok := studentColumns[field]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidField, field)
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE students SET `+column+` = $1 WHERE id = $2
		 RETURNING id, name, student_id, department, email, created_at`,
		value, uuidToPg(id))

	st, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateEmail, value)
		}
		return nil, fmt.Errorf("updating student %s: %w", id, err)
	}

	s.logger.Debug("updated student", "id", id, "field", field)
	return st, nil
}

// DeleteStudent removes a student record.
func (s *Store) DeleteStudent(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM students WHERE id = $1`, uuidToPg(id))
	if err != nil {
		return fmt.Errorf("deleting student %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.logger.Debug("deleted student", "id", id)
	return nil
}

// CountStudents returns the total number of student records.
func (s *Store) CountStudents(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM students`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting students: %w", err)
	}
	return count, nil
}

// StudentsByDepartment returns the per-department enrollment breakdown,
// largest department first.
func (s *Store) StudentsByDepartment(ctx context.Context) ([]DepartmentCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT department, COUNT(*) FROM students GROUP BY department ORDER BY COUNT(*) DESC, department`)
	if err != nil {
		return nil, fmt.Errorf("grouping students by department: %w", err)
	}
	defer rows.Close()

	var out []DepartmentCount
	for rows.Next() {
		var dc DepartmentCount
		if err := rows.Scan(&dc.Department, &dc.Count); err != nil {
			return nil, fmt.Errorf("scanning department count: %w", err)
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

// ActiveStudentsSince returns students with at least one activity log entry
// at or after cutoff, most recently active first.
func (s *Store) ActiveStudentsSince(ctx context.Context, cutoff time.Time) ([]*Student, error) {
	return s.queryStudents(ctx,
		`SELECT s.id, s.name, s.student_id, s.department, s.email, s.created_at
		 FROM students s
		 JOIN (
		     SELECT student_email, MAX(last_active) AS last_active
		     FROM activity_log
		     WHERE last_active >= $1
		     GROUP BY student_email
		 ) a ON LOWER(s.email) = LOWER(a.student_email)
		 ORDER BY a.last_active DESC`,
		cutoff)
}

func (s *Store) queryStudents(ctx context.Context, sql string, args ...any) ([]*Student, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying students: %w", err)
	}
	defer rows.Close()

	var out []*Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning student: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
