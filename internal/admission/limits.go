package admission

import "github.com/user/oraclegate/internal/config"

// LimitsFrom converts the rate-limit configuration into per-class budgets.
func LimitsFrom(cfg config.RateLimitConfig) map[RouteClass]Limit {
	return map[RouteClass]Limit{
		RouteGeneral: {Max: cfg.GeneralLimit, Window: cfg.GeneralWindow},
		RouteOracle:  {Max: cfg.OracleLimit, Window: cfg.OracleWindow},
		RouteHealth:  {Max: cfg.HealthLimit, Window: cfg.HealthWindow},
	}
}
