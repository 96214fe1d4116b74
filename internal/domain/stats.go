package domain

// StatsSnapshot is a point-in-time rollup of the full store contents, shaped
// for the dashboard. Recomputed on demand; there is no incremental state.
type StatsSnapshot struct {
	TotalTransactions      int64   `json:"totalTransactions"`
	FraudulentTransactions int64   `json:"fraudulentTransactions"`
	FraudulentPercentage   float64 `json:"fraudulentPercentage"`
	TotalAmount            float64 `json:"totalAmount"`

	// FlagStats counts flag occurrences over fraudulent transactions only.
	FlagStats []FlagCount `json:"flagStats"`

	// TimelineData buckets the trailing 24 hours by hour. Sparse: only
	// buckets with at least one transaction appear.
	TimelineData Timeline `json:"timelineData"`

	RiskDistribution   RiskDistribution `json:"riskDistribution"`
	TopLocations       []LocationCount  `json:"topLocations"`
	RecentTransactions []*Transaction   `json:"recentTransactions"`
}

// FlagCount is the occurrence count for one flag value.
type FlagCount struct {
	Flag  Flag  `json:"flag"`
	Count int64 `json:"count"`
}

// Timeline holds the two hourly series: all transactions and fraudulent only.
type Timeline struct {
	All        []TimelinePoint `json:"all"`
	Fraudulent []TimelinePoint `json:"fraudulent"`
}

// TimelinePoint is one hourly bucket, keyed by the truncated-to-hour
// timestamp formatted as "2006-01-02 15:00:00".
type TimelinePoint struct {
	Timestamp string `json:"timestamp"`
	Count     int64  `json:"count"`
}

// RiskDistribution tiers transactions by flag count: high is four or more
// flags, medium is two or three, low is unflagged. Transactions with exactly
// one flag fall in no tier; the dashboard has always binned them this way.
type RiskDistribution struct {
	High   int64 `json:"high"`
	Medium int64 `json:"medium"`
	Low    int64 `json:"low"`
}
