package healthcheck

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type provider struct {
	checks []HealthcheckFunc
}

func (p *provider) HealthChecks() []HealthcheckFunc {
	return p.checks
}

func TestMaybeAppendHealthChecks(t *testing.T) {
	t.Parallel()
	ok := func() (string, HealthyStatus) { return "ok", Healthy }

	checks := MaybeAppendHealthChecks(nil, struct{}{})
	require.Len(t, checks, 0)

	checks = MaybeAppendHealthChecks(checks, &provider{checks: []HealthcheckFunc{ok, ok}})
	require.Len(t, checks, 2)
}
