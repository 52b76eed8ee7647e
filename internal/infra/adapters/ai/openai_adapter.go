package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"portfolio-advisor/internal/domain/ports/adapter"
)

var _ adapter.ModelClient = (*OpenAIAdapter)(nil)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultMetisBaseURL  = "https://api.metisai.ir/openai/v1"
)

// OpenAIAdapter talks to any OpenAI-compatible /chat/completions endpoint.
// The same adapter serves OpenAI and the Metis gateway; only base URL and
// provider label differ.
type OpenAIAdapter struct {
	provider  string
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
}

type OpenAIOptions struct {
	Provider  string // "openai" or "metis"
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

func NewOpenAIAdapter(opts OpenAIOptions) (*OpenAIAdapter, error) {
	if opts.APIKey == "" {
		return nil, errors.New("openai: empty api key")
	}
	if opts.Provider == "" {
		opts.Provider = "openai"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultOpenAIBaseURL
		if opts.Provider == "metis" {
			opts.BaseURL = DefaultMetisBaseURL
		}
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &OpenAIAdapter{
		provider:  opts.Provider,
		apiKey:    opts.APIKey,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		client:    &http.Client{Timeout: opts.Timeout},
	}, nil
}

// --- wire types ---

type oaFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type oaToolCall struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Function oaFunctionCall `json:"function"`
}

type oaMessage struct {
	Role       string       `json:"role"`
	Content    *string      `json:"content"`
	ToolCalls  []oaToolCall `json:"tool_calls,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
	Name       string       `json:"name,omitempty"`
}

type oaFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type oaTool struct {
	Type     string     `json:"type"`
	Function oaFunction `json:"function"`
}

type oaRequest struct {
	Model     string      `json:"model"`
	Messages  []oaMessage `json:"messages"`
	Tools     []oaTool    `json:"tools,omitempty"`
	MaxTokens int         `json:"max_tokens,omitempty"`
}

type oaResponse struct {
	Choices []struct {
		Message      oaMessage `json:"message"`
		FinishReason string    `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (a *OpenAIAdapter) Invoke(ctx context.Context, messages []adapter.Message, tools []adapter.ToolSpec) (*adapter.ModelReply, error) {
	body, err := json.Marshal(oaRequest{
		Model:     a.model,
		Messages:  toOpenAIMessages(messages),
		Tools:     toOpenAITools(tools),
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return nil, a.fail(0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, a.fail(0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, a.fail(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &adapter.ModelError{
			Provider:   a.provider,
			StatusCode: resp.StatusCode,
			Err:        errors.New("request rejected by provider"),
			Detail:     string(bytes.TrimSpace(snippet)),
		}
	}

	var payload oaResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, a.fail(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	if len(payload.Choices) == 0 {
		return nil, a.fail(resp.StatusCode, errors.New("no choices in response"))
	}

	msg := payload.Choices[0].Message
	reply := &adapter.ModelReply{
		Kind: adapter.ReplyFinal,
		Usage: adapter.Usage{
			PromptTokens:     payload.Usage.PromptTokens,
			CompletionTokens: payload.Usage.CompletionTokens,
			TotalTokens:      payload.Usage.TotalTokens,
		},
	}
	if msg.Content != nil {
		reply.Text = *msg.Content
	}
	// only the first requested call is honored per turn
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		args := json.RawMessage(tc.Function.Arguments)
		if len(bytes.TrimSpace(args)) == 0 {
			args = json.RawMessage("{}")
		}
		reply.Kind = adapter.ReplyToolRequest
		reply.ToolCall = &adapter.ToolCall{ID: id, Name: tc.Function.Name, Arguments: args}
	}
	return reply, nil
}

func (a *OpenAIAdapter) fail(status int, err error) error {
	return &adapter.ModelError{Provider: a.provider, StatusCode: status, Err: err}
}

func toOpenAIMessages(msgs []adapter.Message) []oaMessage {
	out := make([]oaMessage, 0, len(msgs))
	for _, m := range msgs {
		content := m.Content
		om := oaMessage{Role: m.Role, Content: &content}
		switch m.Role {
		case adapter.RoleAssistant:
			for _, tc := range m.ToolCalls {
				om.ToolCalls = append(om.ToolCalls, oaToolCall{
					ID:       tc.ID,
					Type:     "function",
					Function: oaFunctionCall{Name: tc.Name, Arguments: string(tc.Arguments)},
				})
			}
			if len(om.ToolCalls) > 0 && content == "" {
				om.Content = nil
			}
		case adapter.RoleTool:
			om.ToolCallID = m.ToolCallID
		}
		out = append(out, om)
	}
	return out
}

func toOpenAITools(specs []adapter.ToolSpec) []oaTool {
	if len(specs) == 0 {
		return nil
	}
	out := make([]oaTool, 0, len(specs))
	for _, s := range specs {
		out = append(out, oaTool{
			Type: "function",
			Function: oaFunction{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.JSONSchema(),
			},
		})
	}
	return out
}
