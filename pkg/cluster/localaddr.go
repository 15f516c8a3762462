package cluster

import (
	"context"
	"errors"
	"fmt"
	"net"
)

const (
	// StrategyInterfaces discovers the local addresses by enumerating the network interfaces.
	StrategyInterfaces = "interfaces"
	// StrategyProbe discovers the local address by opening a socket towards a target and reading back the
	// local endpoint.
	StrategyProbe = "probe"
	// StrategyNone does not discover any local address.
	StrategyNone = "none"
)

// ErrUnknownStrategy is returned when a local address discovery strategy is not recognized.
var ErrUnknownStrategy = errors.New("unknown local address strategy")

// LocalAddresses returns the addresses of this node using the named strategy.  target is only used by
// StrategyProbe, and must be a host:port.
func LocalAddresses(ctx context.Context, strategy, target string) ([]string, error) {
	switch strategy {
	case StrategyInterfaces:
		return InterfaceAddresses()
	case StrategyProbe:
		addr, err := ProbeAddress(ctx, target)
		if err != nil {
			return nil, err
		}
		return []string{addr}, nil
	case StrategyNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// InterfaceAddresses returns the IP of every address assigned to a local network interface, including loopback.
func InterfaceAddresses() ([]string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("listing interface addresses: %w", err)
	}
	ips := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		switch a := addr.(type) {
		case *net.IPNet:
			ips = append(ips, a.IP.String())
		case *net.IPAddr:
			ips = append(ips, a.IP.String())
		}
	}
	return ips, nil
}

// ProbeAddress returns the local IP address that would be used to connect to target.  Useful to get the IP that
// peers see this node as.  It uses a UDP socket, so nothing is actually sent to target.
func ProbeAddress(ctx context.Context, target string) (string, error) {
	// Mostly lifted from https://stackoverflow.com/questions/23558425/how-do-i-get-the-local-ip-address-in-go
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", target)
	if err != nil {
		return "", fmt.Errorf("probing local address towards %s: %w", target, err)
	}
	defer conn.Close()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("probing local address towards %s: unexpected address %v", target, conn.LocalAddr())
	}
	return localAddr.IP.String(), nil
}
