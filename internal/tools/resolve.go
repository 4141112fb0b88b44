package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"campusagent/internal/store"
)

// ResolveStudent resolves a free-form identifier to a student record.
//
// Resolution order: the trimmed identifier is first tried as an email
// (case-insensitive); if no record matches and the identifier parses as an
// integer, it is tried as a campus ID. Campus IDs are not unique, so the
// earliest-created match wins. Anything else is a miss, reported as
// store.ErrNotFound. Every student-targeted operation, tool or HTTP route,
// goes through this one function so a caller gets the same resolution
// everywhere.
func ResolveStudent(ctx context.Context, records Records, identifier string) (*store.Student, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, store.ErrNotFound
	}

	st, err := records.StudentByEmail(ctx, strings.ToLower(identifier))
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("resolving %q by email: %w", identifier, err)
	}

	campusID, parseErr := strconv.ParseInt(identifier, 10, 64)
	if parseErr != nil {
		return nil, store.ErrNotFound
	}

	st, err = records.StudentByCampusID(ctx, campusID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("resolving %q by campus ID: %w", identifier, err)
	}
	return st, nil
}

func (c *Catalog) resolveStudent(ctx context.Context, identifier string) (*store.Student, error) {
	return ResolveStudent(ctx, c.records, identifier)
}
