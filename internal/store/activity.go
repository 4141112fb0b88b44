package store

import (
	"context"
	"fmt"
	"time"
)

// RecordActivity appends an activity log entry for the given student email.
// The timestamp defaults to now when zero.
func (s *Store) RecordActivity(ctx context.Context, studentEmail string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO activity_log (student_email, last_active) VALUES ($1, $2)`,
		studentEmail, at)
	if err != nil {
		return fmt.Errorf("recording activity: %w", err)
	}
	return nil
}
