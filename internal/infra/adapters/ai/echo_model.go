package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"portfolio-advisor/internal/domain/ports/adapter"
)

var _ adapter.ModelClient = (*EchoModel)(nil)

// EchoModel is the dev-mode model. It never calls a tool and answers with a
// short summary of what it was asked, so the whole pipeline can run without
// provider credentials.
type EchoModel struct {
	log   *zerolog.Logger
	delay time.Duration
}

func NewEchoModel(log *zerolog.Logger) *EchoModel {
	return &EchoModel{log: log, delay: 100 * time.Millisecond}
}

func (e *EchoModel) Invoke(ctx context.Context, messages []adapter.Message, tools []adapter.ToolSpec) (*adapter.ModelReply, error) {
	select {
	case <-time.After(e.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == adapter.RoleUser {
			last = messages[i].Content
			break
		}
	}
	if e.log != nil {
		e.log.Debug().Int("messages", len(messages)).Int("tools", len(tools)).Msg("echo model invoked")
	}

	text := fmt.Sprintf("[echo] %d messages received. Last question: %s", len(messages), lastLine(last))
	return &adapter.ModelReply{
		Kind: adapter.ReplyFinal,
		Text: text,
		Usage: adapter.Usage{
			PromptTokens:     approxTokens(messages),
			CompletionTokens: len(text) / 4,
			TotalTokens:      approxTokens(messages) + len(text)/4,
		},
	}, nil
}

// lastLine pulls the question out of the guidance template.
func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	return s
}

func approxTokens(messages []adapter.Message) int {
	n := 0
	for _, m := range messages {
		n += len(m.Content) / 4
		for _, tc := range m.ToolCalls {
			n += (len(tc.Name) + len(tc.Arguments)) / 4
		}
	}
	return n
}
