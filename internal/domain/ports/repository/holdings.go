package repository

import (
	"context"

	"portfolio-advisor/internal/domain/model"
)

// HoldingsRepository is the portfolio store consulted for job context.
type HoldingsRepository interface {
	// GetHoldings returns the user's positions; an unknown user has none.
	GetHoldings(ctx context.Context, userID string) ([]model.Holding, error)
	// ReplaceHoldings overwrites the user's positions.
	ReplaceHoldings(ctx context.Context, userID string, holdings []model.Holding) error
}
