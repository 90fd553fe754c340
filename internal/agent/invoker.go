// Package agent is the boundary to the hosted language-model agent. The core
// only hands over a prompt with the user and session it belongs to; prompt
// construction and tool execution happen on the agent side.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"brain2-assistant/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore"
	"github.com/google/uuid"
)

// maxResponseBytes bounds how much of the runtime's response is read.
const maxResponseBytes = 1 << 20

// Request is one agent invocation.
type Request struct {
	Prompt    string `json:"prompt"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// Result is the structured outcome of an invocation. Entities the agent
// extracted are returned as inputs for the caller to persist; an agent that
// writes through its own tools returns only a reply.
type Result struct {
	Reply     string                 `json:"reply"`
	Tasks     []domain.TaskInput     `json:"tasks,omitempty"`
	Todos     []domain.TodoInput     `json:"todos,omitempty"`
	Reminders []domain.ReminderInput `json:"reminders,omitempty"`
}

// Invoker runs the agent.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Result, error)
}

// RuntimeAPI is the subset of the Bedrock AgentCore client the invoker needs.
type RuntimeAPI interface {
	InvokeAgentRuntime(ctx context.Context, params *bedrockagentcore.InvokeAgentRuntimeInput, optFns ...func(*bedrockagentcore.Options)) (*bedrockagentcore.InvokeAgentRuntimeOutput, error)
}

var _ RuntimeAPI = (*bedrockagentcore.Client)(nil)

// AgentCoreInvoker invokes an agent hosted on a Bedrock AgentCore runtime.
type AgentCoreInvoker struct {
	client     RuntimeAPI
	runtimeARN string
	qualifier  string
	timeout    time.Duration
}

type Option func(*AgentCoreInvoker)

// WithQualifier selects a runtime endpoint other than the default one.
func WithQualifier(qualifier string) Option {
	return func(i *AgentCoreInvoker) { i.qualifier = strings.TrimSpace(qualifier) }
}

// WithTimeout bounds each invocation. Zero leaves the caller's deadline alone.
func WithTimeout(timeout time.Duration) Option {
	return func(i *AgentCoreInvoker) { i.timeout = timeout }
}

// NewAgentCoreInvoker creates an invoker for the runtime identified by
// runtimeARN.
func NewAgentCoreInvoker(client RuntimeAPI, runtimeARN string, opts ...Option) (*AgentCoreInvoker, error) {
	runtimeARN = strings.TrimSpace(runtimeARN)
	if runtimeARN == "" {
		return nil, errors.New("agent: runtime ARN must not be empty")
	}
	if client == nil {
		return nil, errors.New("agent: runtime client must not be nil")
	}
	i := &AgentCoreInvoker{client: client, runtimeARN: runtimeARN}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// RuntimeSessionID maps a conversation to the runtime session that keeps its
// context. AgentCore requires at least 33 characters, so the id is a name-based
// UUID of the session.
func RuntimeSessionID(sessionID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("brain2-session"+domain.KeySeparator+sessionID)).String()
}

// Invoke sends req as the JSON payload and decodes the agent's result. A
// response that is not a result object becomes the reply text.
func (i *AgentCoreInvoker) Invoke(ctx context.Context, req Request) (Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("agent: marshal request: %w", err)
	}
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	in := &bedrockagentcore.InvokeAgentRuntimeInput{
		AgentRuntimeArn:  aws.String(i.runtimeARN),
		Payload:          payload,
		ContentType:      aws.String("application/json"),
		Accept:           aws.String("application/json"),
		RuntimeSessionId: aws.String(RuntimeSessionID(req.SessionID)),
	}
	if i.qualifier != "" {
		in.Qualifier = aws.String(i.qualifier)
	}

	out, err := i.client.InvokeAgentRuntime(ctx, in)
	if err != nil {
		return Result{}, fmt.Errorf("agent: invoke runtime: %w", err)
	}
	if out.Response == nil {
		return Result{}, nil
	}
	defer out.Response.Close()

	raw, err := io.ReadAll(io.LimitReader(out.Response, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("agent: read response: %w", err)
	}
	return decodeResult(raw), nil
}

func decodeResult(raw []byte) Result {
	var result Result
	if err := json.Unmarshal(raw, &result); err == nil {
		return result
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return Result{Reply: text}
	}
	return Result{Reply: strings.TrimSpace(string(raw))}
}
