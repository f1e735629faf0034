package health

import (
	"context"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

func PingChecker(ping func(ctx context.Context) error) types.HealthChecker {
	return func(ctx context.Context) types.HealthCheck {
		if err := ping(ctx); err != nil {
			return types.HealthCheck{Status: types.StatusUnhealthy, Message: err.Error()}
		}
		return types.HealthCheck{Status: types.StatusHealthy}
	}
}

// LifecycleChecker reports a stopped component as unknown rather than
// unhealthy, since optional surfaces may be disabled on purpose.
func LifecycleChecker(component types.LifecycleManager, details func() map[string]interface{}) types.HealthChecker {
	return func(_ context.Context) types.HealthCheck {
		check := types.HealthCheck{Status: types.StatusHealthy}
		if !component.IsRunning() {
			check.Status = types.StatusUnknown
			check.Message = "not running"
		}
		if details != nil {
			check.Details = details()
		}
		return check
	}
}

func StatusChecker(status func() map[string]interface{}) types.HealthChecker {
	return func(_ context.Context) types.HealthCheck {
		return types.HealthCheck{Status: types.StatusHealthy, Details: status()}
	}
}
