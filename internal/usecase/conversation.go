package usecase

import (
	"encoding/json"
	"fmt"
	"time"

	"portfolio-advisor/internal/domain/model"
	"portfolio-advisor/internal/domain/ports/adapter"
)

// NotSignedInContext stands in for the portfolio when the job has no user.
const NotSignedInContext = "this user is not signed in."

const guidanceTemplate = `You are an AI financial advisor assistant with access to real-time market data.

Context:
- User's portfolio: %s
- Current date: %s
- You have access to tools to fetch stock price data for analysis

Guidelines:
- Provide specific, actionable advice based on the user's actual holdings
- Use the get_stock_prices tool when you need daily market data and get_intraday_stock_prices for today's movement
- Consider risk, diversification, and the user's portfolio composition
- Support your recommendations with data when possible
- Cross check that the latest snapshot matches the holdings data before relying on it

User's question: %s`

// ConversationBuilder turns a job input plus portfolio context into the
// ordered message list sent to the model.
type ConversationBuilder struct {
	now func() time.Time
}

func NewConversationBuilder(now func() time.Time) *ConversationBuilder {
	if now == nil {
		now = time.Now
	}
	return &ConversationBuilder{now: now}
}

// Build emits the paired history turns followed by one user turn carrying
// the guidance text, the portfolio JSON, the current date and the question.
// A nil holdings slice renders as an empty portfolio; an empty UserID
// renders the not-signed-in sentinel instead.
func (b *ConversationBuilder) Build(in model.AdvisoryInput, holdings []model.Holding) []adapter.Message {
	pairs := in.PairedTurns()
	msgs := make([]adapter.Message, 0, len(pairs)*2+1)
	for _, p := range pairs {
		msgs = append(msgs,
			adapter.Message{Role: adapter.RoleUser, Content: p.Prompt},
			adapter.Message{Role: adapter.RoleAssistant, Content: p.Response},
		)
	}

	msgs = append(msgs, adapter.Message{
		Role:    adapter.RoleUser,
		Content: fmt.Sprintf(guidanceTemplate, portfolioJSON(in.UserID, holdings), b.now().Format("2006-01-02"), in.Prompt),
	})
	return msgs
}

func portfolioJSON(userID string, holdings []model.Holding) string {
	var v any = holdings
	switch {
	case userID == "":
		v = []string{NotSignedInContext}
	case holdings == nil:
		v = []model.Holding{}
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}
