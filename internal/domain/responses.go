package domain

// HealthStatus is the body of GET /healthz. Status is the worst of the
// dependency statuses: healthy, degraded or unhealthy.
type HealthStatus struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth reports one dependency, e.g. "ledger-csv".
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	Detail      string `json:"detail,omitempty"`
	LastChecked string `json:"lastChecked"`
}

// EngineMetrics summarizes query, translation, cache and rate activity
// since process start.
type EngineMetrics struct {
	QueriesExecuted     int64   `json:"queriesExecuted"`
	QueryFailureRate    float64 `json:"queryFailureRate"`
	TranslationFailures int64   `json:"translationFailures"`
	PromptTokens        int64   `json:"promptTokens"`
	CompletionTokens    int64   `json:"completionTokens"`
	StoreCacheHitRate   float64 `json:"storeCacheHitRate"`
	RateFallbacks       int64   `json:"rateFallbacks"`
	LedgerRows          int64   `json:"ledgerRows"`
	Period              string  `json:"period"`
}

// ListResponse is one page of a ledger listing.
type ListResponse[T any] struct {
	Data     []T  `json:"data"`
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasMore  bool `json:"has_more"`
}
