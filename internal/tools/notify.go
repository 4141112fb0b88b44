package tools

import (
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"campusagent/internal/store"
)

// SendEmailInput defines input for the sendEmail tool.
type SendEmailInput struct {
	Identifier string `json:"identifier" jsonschema_description:"Student email or numeric campus ID of the recipient"`
	Message    string `json:"message" jsonschema_description:"Message body to send"`
}

func (c *Catalog) registerNotificationTools(g *genkit.Genkit) {
	genkit.DefineTool(g, "sendEmail",
		"Send an email message to a student, located by email or campus ID.",
		c.SendEmail)
}

// SendEmail resolves the recipient and hands the message to the notifier.
func (c *Catalog) SendEmail(tc *ai.ToolContext, input SendEmailInput) (Result, error) {
	c.logger.Info("SendEmail called", "identifier", input.Identifier)

	if strings.TrimSpace(input.Message) == "" {
		return Failure(KindValidation, "message is required"), nil
	}

	st, err := c.resolveStudent(tc.Context, input.Identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Failure(KindNotFound, "student not found"), nil
		}
		return Result{}, err
	}

	if err := c.notifier.Send(tc.Context, st.Email, input.Message); err != nil {
		return Result{}, fmt.Errorf("sending email to %s: %w", st.Email, err)
	}

	return Success(fmt.Sprintf("Email sent to %s", st.Email), nil), nil
}
