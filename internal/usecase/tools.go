package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"portfolio-advisor/internal/domain"
	"portfolio-advisor/internal/domain/model"
	"portfolio-advisor/internal/domain/ports/adapter"
)

const (
	ToolDailyPrices    = "get_stock_prices"
	ToolIntradayPrices = "get_intraday_stock_prices"
)

type toolFunc func(ctx context.Context, symbols []string) ([]model.PriceSeries, error)

// ToolRegistry is the closed set of tools the model may call.
type ToolRegistry struct {
	specs []adapter.ToolSpec
	funcs map[string]toolFunc
}

func NewToolRegistry(prices adapter.PriceProvider) *ToolRegistry {
	symbols := adapter.ToolParam{
		Name:        "symbols",
		Type:        "array",
		ItemsType:   "string",
		Description: "Ticker symbols, e.g. [\"AAPL\", \"MSFT\"]",
		Required:    true,
	}
	return &ToolRegistry{
		specs: []adapter.ToolSpec{
			{
				Name:        ToolDailyPrices,
				Description: "Get daily historical stock prices for a list of symbols.",
				Params:      []adapter.ToolParam{symbols},
			},
			{
				Name:        ToolIntradayPrices,
				Description: "Get intraday stock prices for a list of symbols.",
				Params:      []adapter.ToolParam{symbols},
			},
		},
		funcs: map[string]toolFunc{
			ToolDailyPrices:    prices.DailyPrices,
			ToolIntradayPrices: prices.IntradayPrices,
		},
	}
}

// Specs returns the static schema list sent with every model call.
func (r *ToolRegistry) Specs() []adapter.ToolSpec {
	out := make([]adapter.ToolSpec, len(r.specs))
	copy(out, r.specs)
	return out
}

func (r *ToolRegistry) Has(name string) bool {
	_, ok := r.funcs[name]
	return ok
}

// Invoke runs the named tool with the raw JSON arguments from the model.
func (r *ToolRegistry) Invoke(ctx context.Context, name string, args json.RawMessage) (any, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTool, name)
	}
	symbols, err := parseSymbols(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	res, err := fn(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return res, nil
}

func parseSymbols(args json.RawMessage) ([]string, error) {
	var in struct {
		Symbols []string `json:"symbols"`
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: missing arguments", domain.ErrInvalidArgument)
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("%w: malformed arguments: %v", domain.ErrInvalidArgument, err)
	}

	seen := make(map[string]struct{}, len(in.Symbols))
	out := make([]string, 0, len(in.Symbols))
	for _, s := range in.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: symbols must not be empty", domain.ErrInvalidArgument)
	}
	return out, nil
}
