package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/atlassian/galerasync"
	"github.com/atlassian/galerasync/pkg/cluster"
)

var (
	errNoDomain         = errors.New("a domain is required")
	errNoConnection     = errors.New("one of --connection or --file is required")
	errBothConnection   = errors.New("only one of --connection or --file may be given")
	errEmptyConnection  = errors.New("the connection string is empty")
	errInvalidFrequency = errors.New("frequency must be at least one second")
	errInvalidPort      = errors.New("port must be between 1 and 65535")
)

// config holds the validated settings of the agent.
type config struct {
	domain                    string
	connection                string
	frequency                 time.Duration
	port                      int
	ignore                    []string
	localAddress              string
	dnsServer                 string
	dnsTimeout                time.Duration
	membershipKey             string
	applyFailureWarnThreshold int
	webAddr                   string
}

func newConfig(v *viper.Viper) (*config, error) {
	cfg := &config{
		domain:                    strings.TrimSpace(v.GetString(galerasync.ParamDomain)),
		port:                      v.GetInt(galerasync.ParamPort),
		ignore:                    v.GetStringSlice(galerasync.ParamIgnore),
		localAddress:              v.GetString(galerasync.ParamLocalAddress),
		dnsServer:                 v.GetString(galerasync.ParamDNSServer),
		dnsTimeout:                v.GetDuration(galerasync.ParamDNSTimeout),
		membershipKey:             v.GetString(galerasync.ParamMembershipKey),
		applyFailureWarnThreshold: v.GetInt(galerasync.ParamApplyFailureWarnThreshold),
		webAddr:                   v.GetString(galerasync.ParamWebAddr),
	}

	if cfg.domain == "" {
		return nil, errNoDomain
	}

	frequency := v.GetInt(galerasync.ParamFrequency)
	if frequency < 1 {
		return nil, fmt.Errorf("%w: %d", errInvalidFrequency, frequency)
	}
	cfg.frequency = time.Duration(frequency) * time.Second

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("%w: %d", errInvalidPort, cfg.port)
	}

	switch cfg.localAddress {
	case cluster.StrategyInterfaces, cluster.StrategyProbe, cluster.StrategyNone:
	default:
		return nil, fmt.Errorf("%w: %q", cluster.ErrUnknownStrategy, cfg.localAddress)
	}

	connection, err := readConnection(v.GetString(galerasync.ParamConnection), v.GetString(galerasync.ParamFile))
	if err != nil {
		return nil, err
	}
	cfg.connection = connection

	return cfg, nil
}

// readConnection returns the connection string given directly, or read from file.
func readConnection(connection, file string) (string, error) {
	switch {
	case connection != "" && file != "":
		return "", errBothConnection
	case connection != "":
		return connection, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading connection string: %w", err)
		}
		connection = strings.TrimSpace(string(data))
		if connection == "" {
			return "", fmt.Errorf("%w: %s", errEmptyConnection, file)
		}
		return connection, nil
	default:
		return "", errNoConnection
	}
}
