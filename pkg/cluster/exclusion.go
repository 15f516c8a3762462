package cluster

import (
	"net"
	"sort"
	"strings"
)

// ExclusionSet is an immutable set of addresses which must never appear in a Snapshot.
type ExclusionSet struct {
	addrs map[string]struct{}
}

// NewExclusionSet creates an ExclusionSet from textual addresses.  Addresses are canonicalized so that different
// spellings of the same IP match, anything that doesn't parse as an IP is kept verbatim.  Empty strings are ignored.
func NewExclusionSet(addrs ...string) ExclusionSet {
	es := ExclusionSet{
		addrs: make(map[string]struct{}, len(addrs)),
	}
	for _, addr := range addrs {
		if c := canonical(addr); c != "" {
			es.addrs[c] = struct{}{}
		}
	}
	return es
}

// Union returns a new ExclusionSet with the addresses of both sets.
func (es ExclusionSet) Union(other ExclusionSet) ExclusionSet {
	n := ExclusionSet{
		addrs: make(map[string]struct{}, len(es.addrs)+len(other.addrs)),
	}
	for addr := range es.addrs {
		n.addrs[addr] = struct{}{}
	}
	for addr := range other.addrs {
		n.addrs[addr] = struct{}{}
	}
	return n
}

// Contains returns true if addr, once canonicalized, is in the set.  Matching is exact, there is no subnet or
// prefix matching.
func (es ExclusionSet) Contains(addr string) bool {
	_, ok := es.addrs[canonical(addr)]
	return ok
}

// Len returns the number of addresses in the set.
func (es ExclusionSet) Len() int {
	return len(es.addrs)
}

// List returns the sorted addresses in the set.
func (es ExclusionSet) List() []string {
	l := make([]string, 0, len(es.addrs))
	for addr := range es.addrs {
		l = append(l, addr)
	}
	sort.Strings(l)
	return l
}

func canonical(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
	if ip := net.ParseIP(addr); ip != nil {
		return ip.String()
	}
	return addr
}
