package models

// Category is the discrete classification of an anomaly.
type Category string

const (
	CategoryHighErrorRate         Category = "high_error_rate"
	CategorySlowResponse          Category = "slow_response"
	CategoryMemoryLeak            Category = "memory_leak"
	CategoryHighGasCost           Category = "high_gas_cost"
	CategoryDatabaseConnection    Category = "database_connection"
	CategoryCacheMiss             Category = "cache_miss"
	CategoryRateLimit             Category = "rate_limit"
	CategoryAuthenticationFailure Category = "authentication_failure"
	CategoryBlockchainSync        Category = "blockchain_sync"
	CategoryGenericAnomaly        Category = "generic_anomaly"
	CategoryCriticalError         Category = "critical_error"
)

// Categories lists every known anomaly category.
func Categories() []Category {
	return []Category{
		CategoryHighErrorRate,
		CategorySlowResponse,
		CategoryMemoryLeak,
		CategoryHighGasCost,
		CategoryDatabaseConnection,
		CategoryCacheMiss,
		CategoryRateLimit,
		CategoryAuthenticationFailure,
		CategoryBlockchainSync,
		CategoryGenericAnomaly,
		CategoryCriticalError,
	}
}

// ParseCategory validates a category name.
func ParseCategory(name string) (Category, bool) {
	for _, c := range Categories() {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// ActionID identifies a remediation action.
type ActionID string

const (
	ActionRestartService      ActionID = "restart_service"
	ActionScaleUp             ActionID = "scale_up"
	ActionRestartProcess      ActionID = "restart_process"
	ActionOptimizeTransaction ActionID = "optimize_transaction"
	ActionReconnectDatabase   ActionID = "reconnect_database"
	ActionWarmCache           ActionID = "warm_cache"
	ActionThrottleRequests    ActionID = "throttle_requests"
	ActionRefreshTokens       ActionID = "refresh_tokens"
	ActionResyncBlockchain    ActionID = "resync_blockchain"
)

// Actions lists every remediation action.
func Actions() []ActionID {
	return []ActionID{
		ActionRestartService,
		ActionScaleUp,
		ActionRestartProcess,
		ActionOptimizeTransaction,
		ActionReconnectDatabase,
		ActionWarmCache,
		ActionThrottleRequests,
		ActionRefreshTokens,
		ActionResyncBlockchain,
	}
}

// ActionFor returns the remediation bound to a category. generic_anomaly and
// critical_error have no remediation.
func ActionFor(c Category) (ActionID, bool) {
	switch c {
	case CategoryHighErrorRate:
		return ActionRestartService, true
	case CategorySlowResponse:
		return ActionScaleUp, true
	case CategoryMemoryLeak:
		return ActionRestartProcess, true
	case CategoryHighGasCost:
		return ActionOptimizeTransaction, true
	case CategoryDatabaseConnection:
		return ActionReconnectDatabase, true
	case CategoryCacheMiss:
		return ActionWarmCache, true
	case CategoryRateLimit:
		return ActionThrottleRequests, true
	case CategoryAuthenticationFailure:
		return ActionRefreshTokens, true
	case CategoryBlockchainSync:
		return ActionResyncBlockchain, true
	default:
		return "", false
	}
}

// DefaultAnomalyThreshold is the score above which an event counts as an
// anomaly, both for scorer bookkeeping and as the default remediation trigger.
const DefaultAnomalyThreshold = 0.8
