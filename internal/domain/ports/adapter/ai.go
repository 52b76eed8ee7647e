package adapter

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one conversation turn sent to the model.
// Assistant turns that requested a tool carry ToolCalls; tool turns carry the
// id and name of the call they answer.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// ToolCall is a request from the model to run one named tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolParam describes one argument of a tool. Type is a JSON schema type;
// ItemsType is the element type when Type is "array".
type ToolParam struct {
	Name        string
	Type        string
	ItemsType   string
	Description string
	Required    bool
}

// ToolSpec is the schema advertised to the model for one tool.
type ToolSpec struct {
	Name        string
	Description string
	Params      []ToolParam
}

// JSONSchema renders the parameters as a JSON schema object.
func (s ToolSpec) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Params))
	required := make([]string, 0, len(s.Params))
	for _, p := range s.Params {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Type == "array" && p.ItemsType != "" {
			prop["items"] = map[string]any{"type": p.ItemsType}
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

type ReplyKind int

const (
	ReplyFinal ReplyKind = iota
	ReplyToolRequest
)

func (k ReplyKind) String() string {
	if k == ReplyToolRequest {
		return "tool_request"
	}
	return "final"
}

// Usage for a single model call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ModelReply is either final text or one tool request.
// Text may accompany a tool request; it is then the assistant's preamble.
type ModelReply struct {
	Kind     ReplyKind
	Text     string
	ToolCall *ToolCall
	Usage    Usage
}

// ModelClient is the port for the remote LLM.
// One call is one request/response; implementations do not retry.
type ModelClient interface {
	Invoke(ctx context.Context, messages []Message, tools []ToolSpec) (*ModelReply, error)
}

// TokenCounter estimates prompt size for a conversation.
type TokenCounter interface {
	CountTokens(messages []Message) int
}

// ModelError is the typed failure returned by ModelClient implementations.
// Detail holds the provider's response body; it is for logs only and is not
// part of Error().
type ModelError struct {
	Provider   string
	StatusCode int
	Err        error
	Detail     string
}

func (e *ModelError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: http %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }
