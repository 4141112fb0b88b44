package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"campusagent/internal/store"
	"campusagent/internal/thread"
)

// MemRecords is an in-memory stand-in for the record store. It mirrors the
// store's semantics: case-insensitive unique emails, non-unique campus IDs
// with earliest-created match, sentinel errors from the store package.
//
// Thread-safe for concurrent use.
type MemRecords struct {
	mu       sync.Mutex
	students map[uuid.UUID]*store.Student
	admins   map[string]*store.Admin
	activity []activityEntry
	clock    int64 // orders creations within the same wall-clock instant
}

type activityEntry struct {
	email string
	at    time.Time
}

// NewMemRecords creates an empty in-memory record store.
func NewMemRecords() *MemRecords {
	return &MemRecords{
		students: make(map[uuid.UUID]*store.Student),
		admins:   make(map[string]*store.Admin),
	}
}

func (m *MemRecords) nextCreatedAt() time.Time {
	m.clock++
	return time.Now().UTC().Add(time.Duration(m.clock) * time.Microsecond)
}

// CreateStudent inserts a student, enforcing email uniqueness.
func (m *MemRecords) CreateStudent(_ context.Context, name string, campusID int64, department, email string) (*store.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, st := range m.students {
		if strings.EqualFold(st.Email, email) {
			return nil, fmt.Errorf("%w: %s", store.ErrDuplicateEmail, email)
		}
	}

	st := &store.Student{
		ID:         uuid.New(),
		Name:       name,
		CampusID:   campusID,
		Department: department,
		Email:      email,
		CreatedAt:  m.nextCreatedAt(),
	}
	m.students[st.ID] = st
	cp := *st
	return &cp, nil
}

// StudentByEmail looks up a student by email, case-insensitively.
func (m *MemRecords) StudentByEmail(_ context.Context, email string) (*store.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, st := range m.students {
		if strings.EqualFold(st.Email, email) {
			cp := *st
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

// StudentByCampusID returns the earliest-created student with the campus ID.
func (m *MemRecords) StudentByCampusID(_ context.Context, campusID int64) (*store.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var match *store.Student
	for _, st := range m.students {
		if st.CampusID != campusID {
			continue
		}
		if match == nil || st.CreatedAt.Before(match.CreatedAt) {
			match = st
		}
	}
	if match == nil {
		return nil, store.ErrNotFound
	}
	cp := *match
	return &cp, nil
}

// UpdateStudentField updates one whitelisted field.
func (m *MemRecords) UpdateStudentField(_ context.Context, id uuid.UUID, field string, value any) (*store.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.students[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	switch field {
	case "name":
		st.Name = value.(string)
	case "department":
		st.Department = value.(string)
	case "email":
		email := value.(string)
		for otherID, other := range m.students {
			if otherID != id && strings.EqualFold(other.Email, email) {
				return nil, fmt.Errorf("%w: %s", store.ErrDuplicateEmail, email)
			}
		}
		st.Email = email
	case "student_id":
		st.CampusID = value.(int64)
	default:
		return nil, fmt.Errorf("%w: %s", store.ErrInvalidField, field)
	}

	cp := *st
	return &cp, nil
}

// DeleteStudent removes a student record.
func (m *MemRecords) DeleteStudent(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.students[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.students, id)
	return nil
}

// ListStudents returns all students, newest first.
func (m *MemRecords) ListStudents(_ context.Context) ([]*store.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedStudentsLocked(), nil
}

// RecentStudents returns the newest students up to limit.
func (m *MemRecords) RecentStudents(_ context.Context, limit int32) ([]*store.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.sortedStudentsLocked()
	if int32(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountStudents returns the number of students.
func (m *MemRecords) CountStudents(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.students)), nil
}

// StudentsByDepartment returns the per-department breakdown, largest first.
func (m *MemRecords) StudentsByDepartment(_ context.Context) ([]store.DepartmentCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]int64)
	for _, st := range m.students {
		counts[st.Department]++
	}
	out := make([]store.DepartmentCount, 0, len(counts))
	for dept, count := range counts {
		out = append(out, store.DepartmentCount{Department: dept, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Department < out[j].Department
	})
	return out, nil
}

// RecordActivity appends an activity entry.
func (m *MemRecords) RecordActivity(_ context.Context, studentEmail string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if at.IsZero() {
		at = time.Now().UTC()
	}
	m.activity = append(m.activity, activityEntry{email: studentEmail, at: at})
	return nil
}

// ActiveStudentsSince returns students with activity at or after cutoff,
// most recently active first.
func (m *MemRecords) ActiveStudentsSince(_ context.Context, cutoff time.Time) ([]*store.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	latest := make(map[string]time.Time)
	for _, e := range m.activity {
		if e.at.Before(cutoff) {
			continue
		}
		key := strings.ToLower(e.email)
		if e.at.After(latest[key]) {
			latest[key] = e.at
		}
	}

	var out []*store.Student
	for _, st := range m.students {
		if _, ok := latest[strings.ToLower(st.Email)]; ok {
			cp := *st
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return latest[strings.ToLower(out[i].Email)].After(latest[strings.ToLower(out[j].Email)])
	})
	return out, nil
}

// CreateAdmin inserts an admin account.
func (m *MemRecords) CreateAdmin(_ context.Context, email, passwordHash, displayName string) (*store.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(email)
	if _, ok := m.admins[key]; ok {
		return nil, fmt.Errorf("%w: %s", store.ErrDuplicateEmail, email)
	}
	a := &store.Admin{
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		Verified:     true,
		CreatedAt:    time.Now().UTC(),
	}
	m.admins[key] = a
	cp := *a
	return &cp, nil
}

// AdminByEmail looks up an admin account.
func (m *MemRecords) AdminByEmail(_ context.Context, email string) (*store.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.admins[strings.ToLower(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemRecords) sortedStudentsLocked() []*store.Student {
	out := make([]*store.Student, 0, len(m.students))
	for _, st := range m.students {
		cp := *st
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// MemThreads is an in-memory stand-in for the thread store.
//
// Thread-safe for concurrent use.
type MemThreads struct {
	mu       sync.Mutex
	byOwner  map[string]*thread.Thread
	messages map[uuid.UUID][]*thread.Message
}

// NewMemThreads creates an empty in-memory thread store.
func NewMemThreads() *MemThreads {
	return &MemThreads{
		byOwner:  make(map[string]*thread.Thread),
		messages: make(map[uuid.UUID][]*thread.Message),
	}
}

// OpenForOwner returns the owner's thread, creating it on first use.
func (m *MemThreads) OpenForOwner(_ context.Context, ownerEmail string) (*thread.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.byOwner[ownerEmail]; ok {
		t.UpdatedAt = time.Now().UTC()
		cp := *t
		return &cp, nil
	}
	now := time.Now().UTC()
	t := &thread.Thread{
		ID:         uuid.New(),
		OwnerEmail: ownerEmail,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.byOwner[ownerEmail] = t
	cp := *t
	return &cp, nil
}

// History returns the most recent messages in ascending sequence order.
func (m *MemThreads) History(_ context.Context, threadID uuid.UUID, limit int32) ([]*thread.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := m.messages[threadID]
	if int32(len(msgs)) > limit {
		msgs = msgs[int32(len(msgs))-limit:]
	}
	out := make([]*thread.Message, len(msgs))
	for i, msg := range msgs {
		cp := *msg
		out[i] = &cp
	}
	return out, nil
}

// AppendMessages appends messages with sequential sequence numbers.
func (m *MemThreads) AppendMessages(_ context.Context, threadID uuid.UUID, messages []*thread.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := false
	for _, t := range m.byOwner {
		if t.ID == threadID {
			found = true
			break
		}
	}
	if !found {
		return thread.ErrNotFound
	}

	seq := int64(len(m.messages[threadID]))
	for i, msg := range messages {
		cp := *msg
		cp.ID = uuid.New()
		cp.ThreadID = threadID
		cp.SequenceNumber = seq + int64(i) + 1
		cp.CreatedAt = time.Now().UTC()
		m.messages[threadID] = append(m.messages[threadID], &cp)
	}
	return nil
}

// Reset deletes the owner's thread and messages.
func (m *MemThreads) Reset(_ context.Context, ownerEmail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.byOwner[ownerEmail]; ok {
		delete(m.messages, t.ID)
		delete(m.byOwner, ownerEmail)
	}
	return nil
}
