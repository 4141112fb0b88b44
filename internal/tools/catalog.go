// Package tools implements the agent's tool catalog: student record
// management, enrollment analytics, campus FAQ lookups and notifications.
//
// Design principles follow the rest of the codebase:
//   - Dependency injection: the Catalog captures its record store and logger
//     at construction, tools hold no package-level state.
//   - Domain failures are data: handlers return an error Result with a nil Go
//     error so the model can read the failure and correct itself. A non-nil
//     Go error is reserved for infrastructure faults.
//
// Tools are registered with Genkit via Register() during agent setup.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"campusagent/internal/log"
	"campusagent/internal/store"
)

// toolNames is the single source of truth for registered tool names.
var toolNames = []string{
	"addStudent",
	"getStudent",
	"updateStudent",
	"deleteStudent",
	"listStudents",
	"getTotalStudents",
	"getStudentsByDepartment",
	"getRecentOnboardedStudents",
	"getActiveStudentsLast7Days",
	"getCafeteriaTimings",
	"getLibraryHours",
	"getEventSchedule",
	"sendEmail",
}

// ToolNames returns all registered tool names.
func ToolNames() []string {
	return toolNames
}

// Records defines the record store operations the catalog depends on.
// Defined here, by the consumer, so tests can substitute an in-memory store.
type Records interface {
	CreateStudent(ctx context.Context, name string, campusID int64, department, email string) (*store.Student, error)
	StudentByEmail(ctx context.Context, email string) (*store.Student, error)
	StudentByCampusID(ctx context.Context, campusID int64) (*store.Student, error)
	UpdateStudentField(ctx context.Context, id uuid.UUID, field string, value any) (*store.Student, error)
	DeleteStudent(ctx context.Context, id uuid.UUID) error
	ListStudents(ctx context.Context) ([]*store.Student, error)
	RecentStudents(ctx context.Context, limit int32) ([]*store.Student, error)
	CountStudents(ctx context.Context) (int64, error)
	StudentsByDepartment(ctx context.Context) ([]store.DepartmentCount, error)
	ActiveStudentsSince(ctx context.Context, cutoff time.Time) ([]*store.Student, error)
	RecordActivity(ctx context.Context, studentEmail string, at time.Time) error
}

// Notifier delivers messages to students. The default implementation only
// logs the delivery; real transports plug in behind this interface.
type Notifier interface {
	Send(ctx context.Context, email, message string) error
}

// Catalog holds the tool handlers and their dependencies.
type Catalog struct {
	records  Records
	notifier Notifier
	validate *validator.Validate
	logger   log.Logger
}

// NewCatalog creates the tool catalog. A nil notifier falls back to the
// logging notifier; records and logger are required.
func NewCatalog(records Records, notifier Notifier, logger log.Logger) (*Catalog, error) {
	if records == nil {
		return nil, fmt.Errorf("records store is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	c := &Catalog{
		records:  records,
		notifier: notifier,
		validate: validator.New(),
		logger:   logger,
	}
	if c.notifier == nil {
		c.notifier = &LogNotifier{Logger: logger}
	}
	return c, nil
}

// Register registers every catalog tool with Genkit.
func (c *Catalog) Register(g *genkit.Genkit) {
	c.registerStudentTools(g)
	c.registerAnalyticsTools(g)
	c.registerFAQTools(g)
	c.registerNotificationTools(g)
	c.logger.Info("tool catalog registered", "count", len(toolNames))
}

// Refs resolves all registered tools into references for generation calls.
func Refs(g *genkit.Genkit) []ai.ToolRef {
	refs := make([]ai.ToolRef, 0, len(toolNames))
	for _, name := range toolNames {
		if tool := genkit.LookupTool(g, name); tool != nil {
			refs = append(refs, tool)
		}
	}
	return refs
}

// LogNotifier is the default Notifier: it records the delivery in the log and
// reports success. Matches an environment where no mail transport is wired.
type LogNotifier struct {
	Logger log.Logger
}

// Send logs the outgoing message.
func (n *LogNotifier) Send(_ context.Context, email, message string) error {
	n.Logger.Info("notification sent", "to", email, "message", message)
	return nil
}
