package core

// Bucket is revenue and transaction count aggregated under one key
// (capster, branch, service, payment method).
type Bucket struct {
	Name    string `json:"name"`
	Revenue int64  `json:"revenue"`
	Count   int    `json:"count"`
}

// Totals is the headline figure of any report.
type Totals struct {
	Revenue       int64 `json:"revenue"`
	Count         int   `json:"transaction_count"`
	OperatingDays int   `json:"operating_days"`
	AveragePerDay int64 `json:"average_per_day"`
}
