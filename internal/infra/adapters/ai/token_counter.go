package ai

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"portfolio-advisor/internal/domain/ports/adapter"
)

var _ adapter.TokenCounter = (*TiktokenCounter)(nil)

// per-message framing overhead used by the chat format
const tokensPerMessage = 3

// TiktokenCounter estimates prompt tokens with the model's BPE. Models
// tiktoken does not know fall back to cl100k_base, and if no encoding can
// be loaded at all the estimate degrades to len/4.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTiktokenCounter(model string, log *zerolog.Logger) *TiktokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil && log != nil {
		log.Warn().Err(err).Str("model", model).Msg("tiktoken encoding unavailable, using length estimate")
	}
	return &TiktokenCounter{enc: enc}
}

func (c *TiktokenCounter) CountTokens(messages []adapter.Message) int {
	total := 0
	for _, m := range messages {
		total += tokensPerMessage + c.count(m.Role) + c.count(m.Content)
		for _, tc := range m.ToolCalls {
			total += c.count(tc.Name) + c.count(string(tc.Arguments))
		}
	}
	return total
}

func (c *TiktokenCounter) count(s string) int {
	if s == "" {
		return 0
	}
	if c.enc == nil {
		return (len(s) + 3) / 4
	}
	return len(c.enc.Encode(s, nil, nil))
}
