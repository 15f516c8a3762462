package web

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/atlassian/galerasync/pkg/healthcheck"
)

type healthChecker struct {
	logger       logrus.FieldLogger
	healthChecks []healthcheck.HealthcheckFunc
}

func runHealthChecks(checks []healthcheck.HealthcheckFunc) (good []string, bad []string) {
	// Force it render as an array, not null
	good = []string{}
	bad = []string{}
	for _, check := range checks {
		report, isHealthy := check()
		if isHealthy == healthcheck.Healthy {
			good = append(good, report)
		} else {
			bad = append(bad, report)
		}
	}
	return good, bad
}

// healthCheck reports if the latest reconciliation succeeded.
func (hc *healthChecker) healthCheck(resp http.ResponseWriter, req *http.Request) {
	good, bad := runHealthChecks(hc.healthChecks)
	if len(bad) > 0 {
		hc.logger.WithField("failed", bad).Debug("healthCheck failed")
		writeJSON(resp, http.StatusInternalServerError, map[string][]string{
			"ok":     good,
			"failed": bad,
		})
		return
	}
	writeJSON(resp, http.StatusOK, map[string][]string{
		"ok":     good,
		"failed": bad,
	})
}

func writeJSON(resp http.ResponseWriter, status int, body interface{}) {
	resp.Header().Set("content-type", "application/json")
	resp.WriteHeader(status)
	_ = jsoniter.NewEncoder(resp).Encode(body)
}
