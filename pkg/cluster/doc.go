package cluster

/*
Cluster membership is derived in two steps:
- a resolver (see pkg/resolver) turns the configured domain into the addresses of every node currently
  registered under it.
- Build turns those addresses into a Snapshot, the gcomm:// string Galera accepts in wsrep_cluster_address,
  after removing the addresses in an ExclusionSet.

The ExclusionSet always contains this node (a Galera node must not list itself as a peer), found by one of the
discovery strategies in localaddr.go, plus anything the operator asks to ignore.  It is built once at startup.

A Snapshot is compared by value, and Build sorts the members, so the same set of addresses always produces the
same string no matter which order the resolver returns them in.
*/
