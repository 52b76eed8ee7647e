// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"portfolio-advisor/internal/domain/ports/adapter"
)

var _ adapter.ModelClient = (*GeminiAdapter)(nil)

type GeminiAdapter struct {
	client *genai.Client
	model  string
	maxOut int
}

// NewGeminiAdapter creates a Gemini adapter using the official SDK.
func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, model string, maxOut int) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiAdapter{client: c, model: model, maxOut: maxOut}, nil
}

func (g *GeminiAdapter) Invoke(ctx context.Context, messages []adapter.Message, tools []adapter.ToolSpec) (*adapter.ModelReply, error) {
	system, contents := toGenAIContents(messages)
	if len(contents) == 0 {
		return nil, &adapter.ModelError{Provider: "gemini", Err: errors.New("no messages")}
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Tools:             toGenAITools(tools),
	}
	if g.maxOut > 0 {
		cfg.MaxOutputTokens = int32(g.maxOut)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, &adapter.ModelError{
				Provider:   "gemini",
				StatusCode: apiErr.Code,
				Err:        errors.New("request rejected by provider"),
				Detail:     apiErr.Message,
			}
		}
		return nil, &adapter.ModelError{Provider: "gemini", Err: err}
	}
	return fromGenAIResponse(resp)
}

func fromGenAIResponse(resp *genai.GenerateContentResponse) (*adapter.ModelReply, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &adapter.ModelError{Provider: "gemini", Err: errors.New("no candidates in response")}
	}
	reply := &adapter.ModelReply{Kind: adapter.ReplyFinal, Text: textOf(resp.Candidates[0].Content)}
	if resp.UsageMetadata != nil {
		reply.Usage = adapter.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	if calls := resp.FunctionCalls(); len(calls) > 0 {
		fc := calls[0]
		args, err := json.Marshal(fc.Args)
		if err != nil || fc.Args == nil {
			args = []byte("{}")
		}
		id := fc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		reply.Kind = adapter.ReplyToolRequest
		reply.ToolCall = &adapter.ToolCall{ID: id, Name: fc.Name, Arguments: args}
	}
	return reply, nil
}

// toGenAIContents maps the conversation onto Gemini turns. System messages
// become the system instruction; tool results go back as function responses
// on a user turn.
func toGenAIContents(msgs []adapter.Message) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case adapter.RoleSystem:
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, &genai.Part{Text: m.Content})
		case adapter.RoleAssistant, "model":
			c := &genai.Content{Role: genai.RoleModel}
			if m.Content != "" {
				c.Parts = append(c.Parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal(tc.Arguments, &args)
				c.Parts = append(c.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args}})
			}
			if len(c.Parts) == 0 {
				c.Parts = append(c.Parts, &genai.Part{Text: ""})
			}
			out = append(out, c)
		case adapter.RoleTool:
			var output any
			if err := json.Unmarshal([]byte(m.Content), &output); err != nil {
				output = m.Content
			}
			out = append(out, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					ID:       m.ToolCallID,
					Name:     m.ToolName,
					Response: map[string]any{"output": output},
				}}},
			})
		default:
			out = append(out, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}
	return system, out
}

func toGenAITools(specs []adapter.ToolSpec) []*genai.Tool {
	if len(specs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, s := range specs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  toGenAISchema(s),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func toGenAISchema(s adapter.ToolSpec) *genai.Schema {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(s.Params)),
	}
	for _, p := range s.Params {
		prop := &genai.Schema{Type: genaiType(p.Type), Description: p.Description}
		if p.Type == "array" && p.ItemsType != "" {
			prop.Items = &genai.Schema{Type: genaiType(p.ItemsType)}
		}
		schema.Properties[p.Name] = prop
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return schema
}

func genaiType(t string) genai.Type {
	switch t {
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

func textOf(c *genai.Content) string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Parts {
		if p != nil && p.Text != "" && !p.Thought {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

