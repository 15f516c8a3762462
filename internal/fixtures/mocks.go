package fixtures

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atlassian/galerasync/pkg/cluster"
)

// MockResolver implements resolver.Resolver from github.com/atlassian/galerasync/pkg/resolver
type MockResolver struct {
	TB testing.TB

	FnResolve func(ctx context.Context, domain string) ([]net.IP, error)
}

func (m *MockResolver) Resolve(ctx context.Context, domain string) (p0 []net.IP, p1 error) {
	if m.FnResolve != nil {
		return m.FnResolve(ctx, domain)
	}
	assert.Fail(m.TB, "Resolver.Resolve must not be called")
	return
}

// MockApplier implements store.Applier from github.com/atlassian/galerasync/pkg/store
type MockApplier struct {
	TB testing.TB

	FnApply func(ctx context.Context, snapshot cluster.Snapshot) error
}

func (m *MockApplier) Apply(ctx context.Context, snapshot cluster.Snapshot) (p0 error) {
	if m.FnApply != nil {
		return m.FnApply(ctx, snapshot)
	}
	assert.Fail(m.TB, "Applier.Apply must not be called")
	return
}

// IPs parses each address into a net.IP, for building resolver responses.
func IPs(addrs ...string) []net.IP {
	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		ips = append(ips, net.ParseIP(addr))
	}
	return ips
}
