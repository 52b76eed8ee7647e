package prices

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"portfolio-advisor/internal/domain/model"
	"portfolio-advisor/internal/domain/ports/adapter"
)

var _ adapter.PriceProvider = (*StaticProvider)(nil)

// StaticProvider fabricates stable series per symbol for dev and tests.
// The same symbol on the same day always yields the same numbers.
type StaticProvider struct {
	days    int
	minutes int
	now     func() time.Time
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{days: 30, minutes: 60, now: time.Now}
}

func (s *StaticProvider) DailyPrices(ctx context.Context, symbols []string) ([]model.PriceSeries, error) {
	end := s.now().UTC().Truncate(24 * time.Hour)
	out := make([]model.PriceSeries, 0, len(symbols))
	for _, sym := range symbols {
		base := basePrice(sym)
		pts := make([]model.PricePoint, 0, s.days)
		for i := s.days - 1; i >= 0; i-- {
			c := wiggle(base, i)
			pts = append(pts, model.PricePoint{
				Date:   end.AddDate(0, 0, -i).Format("2006-01-02"),
				Open:   round2(c * 0.995),
				High:   round2(c * 1.01),
				Low:    round2(c * 0.99),
				Close:  round2(c),
				Volume: int64(1_000_000 + 1000*i),
			})
		}
		out = append(out, model.PriceSeries{Symbol: sym, Interval: model.IntervalDaily, Points: pts, Success: true})
	}
	return out, ctx.Err()
}

func (s *StaticProvider) IntradayPrices(ctx context.Context, symbols []string) ([]model.PriceSeries, error) {
	end := s.now().UTC().Truncate(time.Minute)
	out := make([]model.PriceSeries, 0, len(symbols))
	for _, sym := range symbols {
		base := basePrice(sym)
		pts := make([]model.PricePoint, 0, s.minutes)
		for i := s.minutes - 1; i >= 0; i-- {
			pts = append(pts, model.PricePoint{
				Time:  end.Add(-time.Duration(i) * time.Minute).Format(time.RFC3339),
				Close: round2(wiggle(base, i) * 1.001),
			})
		}
		out = append(out, model.PriceSeries{Symbol: sym, Interval: model.IntervalIntraday, Points: pts, Success: true})
	}
	return out, ctx.Err()
}

func basePrice(symbol string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return 20 + float64(h.Sum32()%480)
}

func wiggle(base float64, i int) float64 {
	return base * (1 + 0.02*math.Sin(float64(i)/3))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
