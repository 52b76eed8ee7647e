package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"portfolio-advisor/internal/domain/ports/adapter"
)

var priceTool = adapter.ToolSpec{
	Name:        "get_stock_prices",
	Description: "daily prices",
	Params:      []adapter.ToolParam{{Name: "symbols", Type: "array", ItemsType: "string", Required: true}},
}

func newTestOpenAI(t *testing.T, h http.HandlerFunc) *OpenAIAdapter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	a, err := NewOpenAIAdapter(OpenAIOptions{APIKey: "sk-secret", BaseURL: srv.URL + "/", Model: "gpt-4o-mini", MaxTokens: 2000})
	if err != nil {
		t.Fatalf("NewOpenAIAdapter: %v", err)
	}
	return a
}

func TestOpenAIAdapter_ToolCall(t *testing.T) {
	var got oaRequest
	a := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-secret" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{
			"choices":[{"message":{"role":"assistant","content":null,"tool_calls":[
				{"id":"call_1","type":"function","function":{"name":"get_stock_prices","arguments":"{\"symbols\":[\"AAPL\"]}"}},
				{"id":"call_2","type":"function","function":{"name":"get_intraday_stock_prices","arguments":"{}"}}
			]},"finish_reason":"tool_calls"}],
			"usage":{"prompt_tokens":120,"completion_tokens":15,"total_tokens":135}}`))
	})

	msgs := []adapter.Message{
		{Role: adapter.RoleSystem, Content: "sys"},
		{Role: adapter.RoleUser, Content: "q"},
		{Role: adapter.RoleAssistant, ToolCalls: []adapter.ToolCall{{ID: "c0", Name: "get_stock_prices", Arguments: json.RawMessage(`{"symbols":["MSFT"]}`)}}},
		{Role: adapter.RoleTool, ToolCallID: "c0", ToolName: "get_stock_prices", Content: `[]`},
	}
	reply, err := a.Invoke(context.Background(), msgs, []adapter.ToolSpec{priceTool})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if reply.Kind != adapter.ReplyToolRequest || reply.ToolCall.ID != "call_1" || reply.ToolCall.Name != "get_stock_prices" {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if string(reply.ToolCall.Arguments) != `{"symbols":["AAPL"]}` {
		t.Fatalf("arguments = %s", reply.ToolCall.Arguments)
	}
	if reply.Usage.TotalTokens != 135 || reply.Usage.PromptTokens != 120 {
		t.Fatalf("usage not mapped: %+v", reply.Usage)
	}

	if got.Model != "gpt-4o-mini" || got.MaxTokens != 2000 {
		t.Fatalf("unexpected request header fields %+v", got)
	}
	if len(got.Tools) != 1 || got.Tools[0].Type != "function" || got.Tools[0].Function.Name != "get_stock_prices" {
		t.Fatalf("tools not advertised: %+v", got.Tools)
	}
	if len(got.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(got.Messages))
	}
	if am := got.Messages[2]; am.Content != nil || len(am.ToolCalls) != 1 || am.ToolCalls[0].Function.Arguments != `{"symbols":["MSFT"]}` {
		t.Fatalf("assistant tool turn not encoded: %+v", am)
	}
	if tm := got.Messages[3]; tm.ToolCallID != "c0" || tm.Role != "tool" {
		t.Fatalf("tool turn not encoded: %+v", tm)
	}
}

func TestOpenAIAdapter_FinalAndMissingCallID(t *testing.T) {
	calls := 0
	a := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hold."}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","tool_calls":[{"type":"function","function":{"name":"get_stock_prices","arguments":""}}]}}]}`))
	})

	reply, err := a.Invoke(context.Background(), []adapter.Message{{Role: adapter.RoleUser, Content: "q"}}, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if reply.Kind != adapter.ReplyFinal || reply.Text != "Hold." {
		t.Fatalf("unexpected reply %+v", reply)
	}

	reply, err = a.Invoke(context.Background(), []adapter.Message{{Role: adapter.RoleUser, Content: "q"}}, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.HasPrefix(reply.ToolCall.ID, "call_") || string(reply.ToolCall.Arguments) != "{}" {
		t.Fatalf("expected generated id and empty args, got %+v", reply.ToolCall)
	}
}

func TestOpenAIAdapter_HTTPError(t *testing.T) {
	a := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited","echo":"user portfolio AAPL"}`))
	})

	_, err := a.Invoke(context.Background(), []adapter.Message{{Role: adapter.RoleUser, Content: "q"}}, nil)
	var me *adapter.ModelError
	if !errors.As(err, &me) {
		t.Fatalf("expected ModelError, got %T %v", err, err)
	}
	if me.StatusCode != http.StatusTooManyRequests || me.Provider != "openai" {
		t.Fatalf("unexpected model error %+v", me)
	}
	if strings.Contains(err.Error(), "sk-secret") {
		t.Fatal("api key leaked into error")
	}
	if strings.Contains(err.Error(), "portfolio") || !strings.Contains(me.Detail, "rate limited") {
		t.Fatalf("response body must stay in Detail only: err=%q detail=%q", err.Error(), me.Detail)
	}
}

func TestNewOpenAIAdapter_Defaults(t *testing.T) {
	if _, err := NewOpenAIAdapter(OpenAIOptions{}); err == nil {
		t.Fatal("expected error for empty key")
	}
	a, err := NewOpenAIAdapter(OpenAIOptions{Provider: "metis", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewOpenAIAdapter: %v", err)
	}
	if a.baseURL != DefaultMetisBaseURL || a.model != "gpt-4o-mini" {
		t.Fatalf("unexpected defaults base=%s model=%s", a.baseURL, a.model)
	}
}
