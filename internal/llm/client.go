// Package llm provides the LLM inference client used for instrument research
// and decision synthesis. Structured output is obtained through a forced tool
// call whose input schema defines the expected JSON shape.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Role represents a message role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ToolDefinition describes a tool the model may (or must) call. Forcing a
// single tool call is how this package extracts schema-conforming JSON.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// CompletionRequest is a single completion call.
type CompletionRequest struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	Messages    []Message       `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature *float64        `json:"temperature,omitempty"`
	Tool        *ToolDefinition `json:"tool,omitempty"`
	ForceTool   bool            `json:"force_tool,omitempty"`
}

// CompletionResponse is the provider-normalized result.
type CompletionResponse struct {
	ID         string          `json:"id"`
	Model      string          `json:"model"`
	Text       string          `json:"text"`
	ToolInput  json.RawMessage `json:"tool_input,omitempty"`
	StopReason string          `json:"stop_reason"`
	Usage      UsageMetrics    `json:"usage"`
	LatencyMs  int64           `json:"latency_ms"`
}

// UsageMetrics tracks token usage for run-level accounting.
type UsageMetrics struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ClientConfig holds provider connection settings.
type ClientConfig struct {
	APIKey      string
	BaseURL     string
	HTTPTimeout time.Duration
}

// Client is the inference interface the research agent depends on.
type Client interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	Close() error
}

// ErrRateLimited indicates provider rate limiting; callers may retry later.
type ErrRateLimited struct {
	RetryAfter time.Duration
}

func (e ErrRateLimited) Error() string {
	return "rate limited, retry after " + e.RetryAfter.String()
}

// ErrAPIFailure is any non-retryable provider error.
type ErrAPIFailure struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e ErrAPIFailure) Error() string {
	return fmt.Sprintf("llm api error (status %d, %s): %s", e.StatusCode, e.Kind, e.Message)
}
