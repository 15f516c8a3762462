package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

var errTruncated = errors.New("truncated answer")

// exchanger is the subset of *dns.Client used by dnsResolver.
type exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, address string) (*dns.Msg, time.Duration, error)
}

// udpBufferSize is the EDNS0 payload size advertised on UDP queries.
const udpBufferSize = 4096

type dnsResolver struct {
	client    exchanger // udp
	tcpClient exchanger
	server    string
}

// NewDNSResolver returns a Resolver which sends A and AAAA queries directly to server, bypassing the platform
// resolver.  server is a host with an optional port, port 53 is used if none is given.  Each query is limited to
// timeout.
//
// Queries go over UDP first.  A truncated answer is asked again over TCP, as a large cluster does not fit in a
// datagram.
func NewDNSResolver(server string, timeout time.Duration) Resolver {
	return &dnsResolver{
		client: &dns.Client{
			Net:     "udp",
			UDPSize: udpBufferSize,
			Timeout: timeout,
		},
		tcpClient: &dns.Client{
			Net:     "tcp",
			Timeout: timeout,
		},
		server: withDefaultPort(server, "53"),
	}
}

// Resolve queries the A and then the AAAA records of domain.  Any failed query fails the whole lookup, so a
// partial answer is never reported as the membership.  A successful response with no records is not an error.
func (dr *dnsResolver) Resolve(ctx context.Context, domain string) ([]net.IP, error) {
	var ips []net.IP
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		found, err := dr.query(ctx, domain, qtype)
		if err != nil {
			return nil, err
		}
		ips = append(ips, found...)
	}
	return dedupe(ips), nil
}

func (dr *dnsResolver) query(ctx context.Context, domain string, qtype uint16) ([]net.IP, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), qtype)
	m.RecursionDesired = true
	m.SetEdns0(udpBufferSize, false)

	in, _, err := dr.client.ExchangeContext(ctx, m, dr.server)
	if err != nil {
		return nil, fmt.Errorf("querying %s for %s %s: %w", dr.server, dns.TypeToString[qtype], domain, err)
	}
	if in.Truncated {
		in, _, err = dr.tcpClient.ExchangeContext(ctx, m, dr.server)
		if err != nil {
			return nil, fmt.Errorf("querying %s over tcp for %s %s: %w", dr.server, dns.TypeToString[qtype], domain, err)
		}
		if in.Truncated {
			return nil, fmt.Errorf("querying %s over tcp for %s %s: %w", dr.server, dns.TypeToString[qtype], domain, errTruncated)
		}
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("querying %s for %s %s: %s", dr.server, dns.TypeToString[qtype], domain, dns.RcodeToString[in.Rcode])
	}

	var ips []net.IP
	for _, rr := range in.Answer {
		switch r := rr.(type) {
		case *dns.A:
			ips = append(ips, r.A)
		case *dns.AAAA:
			ips = append(ips, r.AAAA)
		}
	}
	return ips, nil
}

func withDefaultPort(host, port string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(strings.TrimSuffix(strings.TrimPrefix(host, "["), "]"), port)
}
