package healthcheck

// HealthcheckFunc is a function that returns a status message, and if the check if healthy or not (false).
// healthchecks must not block, and downstream dependencies should be reported on via a watchdog style, and not by
// making a roundtrip.
type HealthcheckFunc func() (string, HealthyStatus)

type HealthyStatus bool

const (
	Healthy   = HealthyStatus(true)
	Unhealthy = HealthyStatus(false)
)

// HealthCheckProvider is implemented by components which can report on their own health.
type HealthCheckProvider interface {
	HealthChecks() []HealthcheckFunc
}

// MaybeAppendHealthChecks appends the health checks of maybeProvider, if it is a HealthCheckProvider.
func MaybeAppendHealthChecks(healthChecks []HealthcheckFunc, maybeProvider interface{}) []HealthcheckFunc {
	if hcp, ok := maybeProvider.(HealthCheckProvider); ok {
		healthChecks = append(healthChecks, hcp.HealthChecks()...)
	}
	return healthChecks
}

