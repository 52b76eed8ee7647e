package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"portfolio-advisor/internal/domain/model"
	"portfolio-advisor/internal/domain/ports/repository"
)

var _ repository.HoldingsRepository = (*holdingsRepo)(nil)

type holdingsRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewHoldingsRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *holdingsRepo {
	return &holdingsRepo{pool: pool, tm: tm}
}

func (r *holdingsRepo) GetHoldings(ctx context.Context, userID string) ([]model.Holding, error) {
	rows, err := queryRows(ctx, r.pool, nil, `
SELECT symbol, quantity, avg_cost
FROM holdings
WHERE user_id = $1
ORDER BY symbol;`, userID)
	if err != nil {
		return nil, fmt.Errorf("query holdings: %w", err)
	}
	defer rows.Close()

	out := []model.Holding{}
	for rows.Next() {
		var h model.Holding
		if err := rows.Scan(&h.Symbol, &h.Quantity, &h.AvgCost); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *holdingsRepo) ReplaceHoldings(ctx context.Context, userID string, holdings []model.Holding) error {
	return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := execSQL(ctx, r.pool, tx, `DELETE FROM holdings WHERE user_id = $1;`, userID); err != nil {
			return fmt.Errorf("clear holdings: %w", err)
		}
		now := time.Now().UTC()
		for _, h := range holdings {
			_, err := execSQL(ctx, r.pool, tx, `
INSERT INTO holdings (user_id, symbol, quantity, avg_cost, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, symbol) DO UPDATE SET
  quantity = EXCLUDED.quantity,
  avg_cost = EXCLUDED.avg_cost,
  updated_at = EXCLUDED.updated_at;`,
				userID, strings.ToUpper(strings.TrimSpace(h.Symbol)), h.Quantity, h.AvgCost, now)
			if err != nil {
				return fmt.Errorf("insert holding %s: %w", h.Symbol, err)
			}
		}
		return nil
	})
}
