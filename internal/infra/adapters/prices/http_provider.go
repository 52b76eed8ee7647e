// File: internal/infra/adapters/prices/http_provider.go
package prices

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"portfolio-advisor/internal/domain/model"
	"portfolio-advisor/internal/domain/ports/adapter"
)

var _ adapter.PriceProvider = (*HTTPProvider)(nil)

// HTTPProvider reads price history from the market data service.
//
//	POST {base}/daily/list     {"symbols": [...]}
//	POST {base}/intraday/list  {"symbols": [...]}
//
// Both answer {"results": [{symbol, data, success, error}]}.
type HTTPProvider struct {
	base   string
	client *http.Client
}

func NewHTTPProvider(baseURL string, timeout time.Duration) (*HTTPProvider, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("prices: empty base url")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPProvider{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (p *HTTPProvider) DailyPrices(ctx context.Context, symbols []string) ([]model.PriceSeries, error) {
	return p.list(ctx, "/daily/list", model.IntervalDaily, symbols)
}

func (p *HTTPProvider) IntradayPrices(ctx context.Context, symbols []string) ([]model.PriceSeries, error) {
	return p.list(ctx, "/intraday/list", model.IntervalIntraday, symbols)
}

func (p *HTTPProvider) list(ctx context.Context, path, interval string, symbols []string) ([]model.PriceSeries, error) {
	b, err := json.Marshal(map[string][]string{"symbols": symbols})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prices %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("prices %s: http %d", path, resp.StatusCode)
	}

	var out struct {
		Results []model.PriceSeries `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("prices %s: decode: %w", path, err)
	}
	for i := range out.Results {
		if out.Results[i].Interval == "" {
			out.Results[i].Interval = interval
		}
		if out.Results[i].Points == nil {
			out.Results[i].Points = []model.PricePoint{}
		}
	}
	return out.Results, nil
}
