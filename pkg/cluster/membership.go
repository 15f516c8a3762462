package cluster

import (
	"net"
	"sort"
	"strconv"
)

// Build creates the Snapshot for the resolved addrs, less any address in exclusions.  Each address is paired with
// port, duplicates are dropped, and the members are sorted so the result does not depend on resolution order.
//
// If every address is excluded the result is EmptySnapshot.
func Build(addrs []net.IP, port int, exclusions ExclusionSet) Snapshot {
	seen := make(map[string]struct{}, len(addrs))
	hosts := make([]string, 0, len(addrs))
	for _, ip := range addrs {
		if ip == nil {
			continue
		}
		host := ip.String()
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		if exclusions.Contains(host) {
			continue
		}
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	p := strconv.Itoa(port)
	members := make([]string, 0, len(hosts))
	for _, host := range hosts {
		members = append(members, net.JoinHostPort(host, p))
	}
	return NewSnapshot(members)
}
