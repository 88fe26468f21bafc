package auth

// Scopes accepted by the step-count API.
const (
	ScopeStepCountsWrite = "stepcounts:write"
	ScopeStepCountsRead  = "stepcounts:read"
)
