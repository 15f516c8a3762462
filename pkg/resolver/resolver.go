package resolver

import (
	"context"
	"net"
)

// Resolver looks up the addresses a domain currently resolves to.  Implementations must not retry, a failed
// lookup is reported to the caller which decides when to try again.
type Resolver interface {
	// Resolve returns the de-duplicated addresses of domain, in no particular order.  A domain with no addresses
	// may be reported as either an empty result or an error, depending on the implementation.
	Resolve(ctx context.Context, domain string) ([]net.IP, error)
}

// lookupIPAddr is the subset of *net.Resolver used by systemResolver.
type lookupIPAddr interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

type systemResolver struct {
	resolver lookupIPAddr
}

// NewSystemResolver returns a Resolver using the platform resolver, honouring /etc/hosts and /etc/resolv.conf
// (or their equivalents).
func NewSystemResolver() Resolver {
	return &systemResolver{
		resolver: net.DefaultResolver,
	}
}

func (sr *systemResolver) Resolve(ctx context.Context, domain string) ([]net.IP, error) {
	addrs, err := sr.resolver.LookupIPAddr(ctx, domain)
	if err != nil {
		return nil, err
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		ips = append(ips, addr.IP)
	}
	return dedupe(ips), nil
}

func dedupe(ips []net.IP) []net.IP {
	seen := make(map[string]struct{}, len(ips))
	result := ips[:0]
	for _, ip := range ips {
		if ip == nil {
			continue
		}
		key := ip.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, ip)
	}
	return result
}
