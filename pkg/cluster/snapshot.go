package cluster

import (
	"strings"
)

// Scheme is the prefix of every Galera group communication address.
const Scheme = "gcomm://"

// EmptySnapshot is the membership with no known peers.  It is a valid membership, and is what a node is configured
// with before any peer has been discovered.
const EmptySnapshot = Snapshot(Scheme)

// Snapshot is a serialized membership, for example gcomm://10.0.0.2:4567,10.0.0.3:4567.  Two snapshots are equal
// iff their strings are equal.
type Snapshot string

// NewSnapshot joins members, which are expected to be host:port pairs, into a Snapshot.  Members are kept in the
// order provided.
func NewSnapshot(members []string) Snapshot {
	return Snapshot(Scheme + strings.Join(members, ","))
}

func (s Snapshot) String() string {
	return string(s)
}

// IsEmpty returns true if the snapshot has no members.
func (s Snapshot) IsEmpty() bool {
	return len(s.Members()) == 0
}

// Members returns the host:port pairs in the snapshot.
func (s Snapshot) Members() []string {
	list := strings.TrimPrefix(string(s), Scheme)
	if list == "" {
		return []string{}
	}
	return strings.Split(list, ",")
}
