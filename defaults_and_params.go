package galerasync

import (
	"time"

	"github.com/spf13/pflag"
)

// DefaultIgnore is the default list of addresses that are never part of the membership.
var DefaultIgnore = []string{}

const (
	// DefaultFrequency is the default number of seconds between two resolutions of the domain.
	DefaultFrequency = 5
	// DefaultPort is the default Galera group communication port on the peers.
	DefaultPort = 4567
	// DefaultMembershipKey is the default global variable holding the cluster membership.
	DefaultMembershipKey = "wsrep_cluster_address"
	// DefaultLocalAddress is the default strategy used to discover the addresses of this node.
	DefaultLocalAddress = "interfaces"
	// DefaultDNSTimeout is the default timeout of a single query when a nameserver is configured.
	DefaultDNSTimeout = 2 * time.Second
	// DefaultApplyFailureWarnThreshold is the default number of consecutive failed updates before a warning is logged.
	DefaultApplyFailureWarnThreshold = 10
)

const (
	// ParamDomain is the name of parameter with the domain to resolve.
	ParamDomain = "domain"
	// ParamConnection is the name of parameter with the MySQL connection string.
	ParamConnection = "connection"
	// ParamFile is the name of parameter with the path of a file holding the MySQL connection string.
	ParamFile = "file"
	// ParamFrequency is the name of parameter with the number of seconds between resolutions.
	ParamFrequency = "frequency"
	// ParamPort is the name of parameter with the Galera port of the peers.
	ParamPort = "port"
	// ParamIgnore is the name of parameter with the list of addresses to exclude.
	ParamIgnore = "ignore"
	// ParamLocalAddress is the name of parameter with the local address discovery strategy.
	ParamLocalAddress = "local-address"
	// ParamDNSServer is the name of parameter with the nameserver to query instead of the system resolver.
	ParamDNSServer = "dns-server"
	// ParamDNSTimeout is the name of parameter with the timeout of a single DNS query.
	ParamDNSTimeout = "dns-timeout"
	// ParamMembershipKey is the name of parameter with the global variable holding the membership.
	ParamMembershipKey = "membership-key"
	// ParamApplyFailureWarnThreshold is the name of parameter with the number of consecutive failed updates
	// before a warning is logged.
	ParamApplyFailureWarnThreshold = "apply-failure-warn-threshold"
	// ParamWebAddr is the name of parameter with the address of the status web server.
	ParamWebAddr = "web-addr"
)

// AddFlags adds flags to the specified FlagSet.
func AddFlags(fs *pflag.FlagSet) {
	fs.StringP(ParamDomain, "d", "", "The domain to resolve continuously and monitor for IPs")
	fs.StringP(ParamConnection, "c", "", "A valid MySQL connection string")
	fs.StringP(ParamFile, "f", "", "A path to a file containing a valid MySQL connection string")
	fs.IntP(ParamFrequency, "q", DefaultFrequency, "Seconds to wait before querying the domain name")
	fs.IntP(ParamPort, "p", DefaultPort, "The Galera port on the nodes")
	fs.StringSlice(ParamIgnore, DefaultIgnore, "Comma-separated list of addresses to never include")
	fs.String(ParamLocalAddress, DefaultLocalAddress, "How to discover the addresses of this node: interfaces, probe or none")
	fs.String(ParamDNSServer, "", "If set, query this nameserver instead of using the system resolver")
	fs.Duration(ParamDNSTimeout, DefaultDNSTimeout, "Timeout of a single query to the nameserver")
	fs.String(ParamMembershipKey, DefaultMembershipKey, "The global variable to update")
	fs.Int(ParamApplyFailureWarnThreshold, DefaultApplyFailureWarnThreshold, "Consecutive failed updates before warning (0 to disable)")
	fs.String(ParamWebAddr, "", "If set, serve healthcheck, metrics and membership status on this address")
}
