// Package agent implements the conversational campus-admin agent: an
// explicit dispatch loop that alternates model generation with tool
// execution until the model produces a final answer or the turn budget runs
// out.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"campusagent/internal/thread"
	"campusagent/internal/tools"
)

const (
	// systemPrompt instructs the model on its role and tool discipline.
	systemPrompt = "You are the Campus Admin assistant. You must only perform actions " +
		"after the admin asks. You can call the provided tools to manage students, " +
		"analytics, FAQ and notifications. Report tool failures back to the admin " +
		"in plain language."

	// fallbackResponse is returned when the model produces an empty final
	// message.
	fallbackResponse = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

	// BudgetExceededResponse is the assistant answer recorded and delivered
	// when the model keeps requesting tools past the turn budget.
	BudgetExceededResponse = "I could not complete the request within the allowed number of tool calls. Please try a simpler request."
)

// Sentinel errors for agent execution.
var (
	// ErrTurnBudgetExceeded indicates the model kept requesting tools past
	// the configured turn limit.
	ErrTurnBudgetExceeded = errors.New("turn budget exceeded")

	// ErrStreamAborted indicates the stream consumer rejected a chunk.
	ErrStreamAborted = errors.New("stream aborted")
)

// EventKind discriminates stream events.
type EventKind int

const (
	// EventText carries a fragment of the model's answer text.
	EventText EventKind = iota
	// EventToolStart announces a tool invocation.
	EventToolStart
	// EventToolEnd reports a completed tool invocation and its status.
	EventToolEnd
)

// Event is one unit of streaming output from the dispatch loop.
type Event struct {
	Kind   EventKind
	Text   string // text fragment, EventText only
	Tool   string // tool name, tool events only
	Status string // "running", "success" or "error", tool events only
}

// StreamCallback receives dispatch events as they happen. Returning an error
// aborts the execution.
type StreamCallback func(ctx context.Context, event Event) error

// ToolCall summarizes one executed tool invocation.
type ToolCall struct {
	Name   string       `json:"name"`
	Status tools.Status `json:"status"`
}

// Response is the complete result of an agent execution.
type Response struct {
	FinalText string     `json:"final_text"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Threads defines the conversation persistence the agent depends on.
type Threads interface {
	OpenForOwner(ctx context.Context, ownerEmail string) (*thread.Thread, error)
	History(ctx context.Context, threadID uuid.UUID, limit int32) ([]*thread.Message, error)
	AppendMessages(ctx context.Context, threadID uuid.UUID, messages []*thread.Message) error
}

// Config contains all required parameters for the Agent.
type Config struct {
	Genkit  *genkit.Genkit
	Threads Threads
	Logger  *slog.Logger

	// ModelName is the provider-qualified model name
	// (e.g. "googleai/gemini-2.5-flash").
	ModelName string

	// MaxTurns bounds the generate/dispatch loop. Zero uses the default of 5.
	MaxTurns int

	// HistoryLimit is the number of persisted messages loaded as context.
	// Zero uses the default of 100.
	HistoryLimit int32

	// RetryConfig tunes transient-failure retries (zero-value uses defaults).
	RetryConfig RetryConfig

	// RateLimiter throttles model calls. Nil creates a default limiter.
	RateLimiter *rate.Limiter

	// CallTimeout bounds each individual model call. Zero uses the default
	// of 90 seconds; negative disables the bound.
	CallTimeout time.Duration
}

// validate checks that all required parameters are present.
func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Threads == nil {
		return errors.New("thread store is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// Agent runs admin conversations. It is stateless across requests; all state
// lives in the thread store. Configuration is captured immutably at
// construction, so the agent is safe for concurrent use.
type Agent struct {
	g            *genkit.Genkit
	threads      Threads
	logger       *slog.Logger
	modelName    string
	maxTurns     int
	historyLimit int32
	retryConfig  RetryConfig
	rateLimiter  *rate.Limiter
	callTimeout  time.Duration
}

// New creates an Agent from the given configuration.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 5
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 100
	}
	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}
	callTimeout := cfg.CallTimeout
	if callTimeout == 0 {
		callTimeout = 90 * time.Second
	}

	a := &Agent{
		g:            cfg.Genkit,
		threads:      cfg.Threads,
		logger:       cfg.Logger,
		modelName:    cfg.ModelName,
		maxTurns:     maxTurns,
		historyLimit: historyLimit,
		retryConfig:  retryConfig,
		rateLimiter:  rl,
		callTimeout:  callTimeout,
	}

	a.logger.Info("agent initialized", "model", a.modelName, "maxTurns", a.maxTurns)
	return a, nil
}

// Execute runs one conversation turn for the admin (non-streaming).
func (a *Agent) Execute(ctx context.Context, ownerEmail, input string) (*Response, error) {
	return a.ExecuteStream(ctx, ownerEmail, input, nil)
}

// ExecuteStream runs one conversation turn with optional streaming output.
// If callback is non-nil it receives text fragments and tool lifecycle events
// as they happen; the final response is always returned after the loop
// completes.
func (a *Agent) ExecuteStream(ctx context.Context, ownerEmail, input string, callback StreamCallback) (*Response, error) {
	th, err := a.threads.OpenForOwner(ctx, ownerEmail)
	if err != nil {
		return nil, fmt.Errorf("opening thread: %w", err)
	}

	history, err := a.threads.History(ctx, th.ID, a.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	// Deep copy: genkit mutates message content in place during rendering,
	// and history slices may be shared across concurrent requests.
	messages := deepCopyMessages(thread.ToModelMessages(history))

	userMsg := ai.NewUserMessage(ai.NewTextPart(input))
	messages = append(messages, userMsg)
	a.persistTurn(ctx, th.ID, userMsg)

	resp, err := a.dispatch(ctx, th.ID, messages, callback)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(resp.FinalText) == "" {
		a.logger.Warn("model returned empty final response", "owner", ownerEmail)
		resp.FinalText = fallbackResponse
	}

	a.persistTurn(ctx, th.ID, &ai.Message{
		Role:    ai.RoleModel,
		Content: []*ai.Part{ai.NewTextPart(resp.FinalText)},
	})

	return resp, nil
}

// persistTurn appends one message to the thread. Best-effort: a storage
// hiccup should not turn a delivered answer into a user-facing failure.
func (a *Agent) persistTurn(ctx context.Context, threadID uuid.UUID, msg *ai.Message) {
	turn := &thread.Message{Role: string(msg.Role), Content: msg.Content}
	if err := a.threads.AppendMessages(ctx, threadID, []*thread.Message{turn}); err != nil {
		a.logger.Warn("appending message to thread", "role", msg.Role, "error", err)
	}
}

// dispatch runs the generate/tool loop. Each iteration asks the model for a
// continuation; tool requests are executed manually and their results fed
// back as tool messages. Tool-request and observation turns are persisted as
// they are appended, so the thread never loses an observation the model saw.
// The loop ends when the model answers without requesting tools, or fails
// with ErrTurnBudgetExceeded when the budget runs out first.
func (a *Agent) dispatch(ctx context.Context, threadID uuid.UUID, messages []*ai.Message, callback StreamCallback) (*Response, error) {
	toolRefs := tools.Refs(a.g)
	var calls []ToolCall

	for turn := 0; turn < a.maxTurns; turn++ {
		opts := []ai.GenerateOption{
			ai.WithModelName(a.modelName),
			ai.WithSystem(systemPrompt),
			ai.WithMessages(messages...),
			ai.WithTools(toolRefs...),
			ai.WithReturnToolRequests(true),
		}
		if callback != nil {
			opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
				text := chunk.Text()
				if text == "" {
					return nil
				}
				if err := callback(ctx, Event{Kind: EventText, Text: text}); err != nil {
					return fmt.Errorf("%w: %v", ErrStreamAborted, err)
				}
				return nil
			}))
		}

		resp, err := a.generateWithRetry(ctx, opts)
		if err != nil {
			return nil, err
		}
		if resp.Message != nil {
			messages = append(messages, resp.Message)
		}

		requests := resp.ToolRequests()
		if len(requests) == 0 {
			// The final assistant turn is persisted by the caller, after
			// empty-response fallback handling.
			a.logger.Debug("dispatch finished", "turns", turn+1, "toolCalls", len(calls))
			return &Response{FinalText: resp.Text(), ToolCalls: calls}, nil
		}

		if resp.Message != nil {
			a.persistTurn(ctx, threadID, resp.Message)
		}

		observation, turnCalls, err := a.runTools(ctx, requests, callback)
		if err != nil {
			return nil, err
		}
		calls = append(calls, turnCalls...)
		messages = append(messages, observation)
		a.persistTurn(ctx, threadID, observation)
	}

	a.logger.Warn("turn budget exceeded", "maxTurns", a.maxTurns, "toolCalls", len(calls))
	a.persistTurn(ctx, threadID, &ai.Message{
		Role:    ai.RoleModel,
		Content: []*ai.Part{ai.NewTextPart(BudgetExceededResponse)},
	})
	return nil, fmt.Errorf("%w: model kept requesting tools after %d turns", ErrTurnBudgetExceeded, a.maxTurns)
}

// runTools executes the model's tool requests in order and collects their
// outputs into a single tool message. Unknown tool names become error
// observations the model can recover from; infrastructure failures abort the
// execution.
func (a *Agent) runTools(ctx context.Context, requests []*ai.ToolRequest, callback StreamCallback) (*ai.Message, []ToolCall, error) {
	parts := make([]*ai.Part, 0, len(requests))
	calls := make([]ToolCall, 0, len(requests))

	for _, req := range requests {
		if callback != nil {
			if err := callback(ctx, Event{Kind: EventToolStart, Tool: req.Name, Status: "running"}); err != nil {
				return nil, nil, fmt.Errorf("%w: %v", ErrStreamAborted, err)
			}
		}

		output, status, err := a.runTool(ctx, req)
		if err != nil {
			return nil, nil, err
		}
		calls = append(calls, ToolCall{Name: req.Name, Status: status})

		if callback != nil {
			if err := callback(ctx, Event{Kind: EventToolEnd, Tool: req.Name, Status: string(status)}); err != nil {
				return nil, nil, fmt.Errorf("%w: %v", ErrStreamAborted, err)
			}
		}

		parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
			Name:   req.Name,
			Ref:    req.Ref,
			Output: output,
		}))
	}

	return &ai.Message{Role: ai.RoleTool, Content: parts}, calls, nil
}

// runTool executes a single tool request. The returned output is always a
// model-readable observation: unknown tool names, schema-validation failures
// and handler errors all become error results the model can recover from.
// A non-nil error is reserved for context cancellation, which aborts the
// whole execution.
func (a *Agent) runTool(ctx context.Context, req *ai.ToolRequest) (any, tools.Status, error) {
	tool := genkit.LookupTool(a.g, req.Name)
	if tool == nil {
		a.logger.Warn("model requested unknown tool", "tool", req.Name)
		result := tools.Failure(tools.KindNotFound, fmt.Sprintf("tool %q does not exist", req.Name))
		return result, tools.StatusError, nil
	}

	a.logger.Debug("running tool", "tool", req.Name)
	output, err := tool.RunRaw(ctx, req.Input)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", fmt.Errorf("running tool %s: %w", req.Name, err)
		}
		a.logger.Warn("tool execution failed", "tool", req.Name, "error", err)
		result := tools.Failure(tools.KindInternal, err.Error())
		return result, tools.StatusError, nil
	}

	return output, resultStatus(output), nil
}

// resultStatus extracts the tool result status from a raw tool output.
// Outputs arrive either as tools.Result or, after JSON round-tripping, as
// map[string]any.
func resultStatus(output any) tools.Status {
	switch v := output.(type) {
	case tools.Result:
		return v.Status
	case *tools.Result:
		return v.Status
	case map[string]any:
		if s, ok := v["status"].(string); ok {
			return tools.Status(s)
		}
	}
	return tools.StatusSuccess
}

// deepCopyMessages creates independent copies of messages and their parts so
// concurrent executions never share mutable content.
func deepCopyMessages(msgs []*ai.Message) []*ai.Message {
	if msgs == nil {
		return nil
	}
	copied := make([]*ai.Message, len(msgs))
	for i, msg := range msgs {
		parts := make([]*ai.Part, len(msg.Content))
		for j, part := range msg.Content {
			parts[j] = deepCopyPart(part)
		}
		copied[i] = &ai.Message{
			Role:     msg.Role,
			Content:  parts,
			Metadata: shallowCopyMap(msg.Metadata),
		}
	}
	return copied
}

// deepCopyPart copies an ai.Part. ToolRequest.Input and ToolResponse.Output
// are copied by reference; generation only mutates the content slice itself.
func deepCopyPart(p *ai.Part) *ai.Part {
	if p == nil {
		return nil
	}
	cp := &ai.Part{
		Kind:        p.Kind,
		ContentType: p.ContentType,
		Text:        p.Text,
		Custom:      shallowCopyMap(p.Custom),
		Metadata:    shallowCopyMap(p.Metadata),
	}
	if p.ToolRequest != nil {
		cp.ToolRequest = &ai.ToolRequest{
			Input: p.ToolRequest.Input,
			Name:  p.ToolRequest.Name,
			Ref:   p.ToolRequest.Ref,
		}
	}
	if p.ToolResponse != nil {
		cp.ToolResponse = &ai.ToolResponse{
			Name:   p.ToolResponse.Name,
			Output: p.ToolResponse.Output,
			Ref:    p.ToolResponse.Ref,
		}
	}
	return cp
}

func shallowCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
