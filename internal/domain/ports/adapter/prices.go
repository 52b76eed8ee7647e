package adapter

import (
	"context"

	"portfolio-advisor/internal/domain/model"
)

// PriceProvider is the market data collaborator used by the advisory tools.
type PriceProvider interface {
	DailyPrices(ctx context.Context, symbols []string) ([]model.PriceSeries, error)
	IntradayPrices(ctx context.Context, symbols []string) ([]model.PriceSeries, error)
}
