package model

// Holding is one position in a user's portfolio.
type Holding struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	AvgCost  float64 `json:"avgCost,omitempty"`
}
