package model

const (
	IntervalDaily    = "1d"
	IntervalIntraday = "1m"
)

// PricePoint is a single bar. Daily bars carry Date, intraday bars carry Time.
type PricePoint struct {
	Date   string  `json:"date,omitempty"`
	Time   string  `json:"time,omitempty"`
	Open   float64 `json:"open,omitempty"`
	High   float64 `json:"high,omitempty"`
	Low    float64 `json:"low,omitempty"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume,omitempty"`
}

// PriceSeries is the lookup result for one symbol. A failed lookup for one
// symbol does not fail the others; it is reported via Success/Error.
type PriceSeries struct {
	Symbol   string       `json:"symbol"`
	Interval string       `json:"interval,omitempty"`
	Points   []PricePoint `json:"data"`
	Success  bool         `json:"success"`
	Error    string       `json:"error,omitempty"`
}
