package main

import (
	"context"
	"net"
	"strconv"

	"github.com/ash2k/stager"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/atlassian/galerasync"
	"github.com/atlassian/galerasync/pkg/cluster"
	"github.com/atlassian/galerasync/pkg/healthcheck"
	"github.com/atlassian/galerasync/pkg/reconciler"
	"github.com/atlassian/galerasync/pkg/resolver"
	"github.com/atlassian/galerasync/pkg/store"
	"github.com/atlassian/galerasync/pkg/util"
	"github.com/atlassian/galerasync/pkg/web"
)

// fallbackProbeTarget is used to find the outbound address when the domain does not resolve at startup.  Nothing
// is sent to it.
const fallbackProbeTarget = "1.1.1.1:1"

type agent struct {
	logger    logrus.FieldLogger
	store     *store.Store
	runnables []galerasync.Runnable
}

// constructAgent wires the resolver, the store and the reconciler together.  It blocks until the store is
// reachable, or the context is closed.
func constructAgent(ctx context.Context, logger logrus.FieldLogger, storeViper *viper.Viper, cfg *config) (*agent, error) {
	var r resolver.Resolver
	if cfg.dnsServer != "" {
		logger.WithField("dns-server", cfg.dnsServer).Info("Using nameserver")
		r = resolver.NewDNSResolver(cfg.dnsServer, cfg.dnsTimeout)
	} else {
		r = resolver.NewSystemResolver()
	}

	exclusions, err := buildExclusions(ctx, logger, r, cfg)
	if err != nil {
		return nil, err
	}

	retry, err := util.GetRetryFromViper(storeViper)
	if err != nil {
		return nil, err
	}
	s, err := store.Connect(ctx, logger, cfg.connection, store.WithMembershipKey(cfg.membershipKey), store.WithBackoff(retry))
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	rec := reconciler.New(logger, r, s, reconciler.Config{
		Domain:                    cfg.domain,
		Port:                      cfg.port,
		Exclusions:                exclusions,
		Frequency:                 cfg.frequency,
		ApplyFailureWarnThreshold: cfg.applyFailureWarnThreshold,
	}, reconciler.NewMetrics(reg))

	a := &agent{
		logger: logger,
		store:  s,
	}

	if cfg.webAddr != "" {
		hs, err := web.NewHttpServer(logger, cfg.webAddr, healthcheck.MaybeAppendHealthChecks(nil, rec), reg, rec)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		a.runnables = galerasync.MaybeAppendRunnable(a.runnables, hs)
	}
	a.runnables = galerasync.MaybeAppendRunnable(a.runnables, rec)

	return a, nil
}

// buildExclusions merges the addresses of this node with the explicitly ignored addresses.
func buildExclusions(ctx context.Context, logger logrus.FieldLogger, r resolver.Resolver, cfg *config) (cluster.ExclusionSet, error) {
	var target string
	if cfg.localAddress == cluster.StrategyProbe {
		target = probeTarget(ctx, logger, r, cfg.domain, cfg.port)
	}
	local, err := cluster.LocalAddresses(ctx, cfg.localAddress, target)
	if err != nil {
		return cluster.ExclusionSet{}, err
	}
	exclusions := cluster.NewExclusionSet(local...).Union(cluster.NewExclusionSet(cfg.ignore...))

	logger.WithFields(logrus.Fields{
		"strategy":   cfg.localAddress,
		"local":      local,
		"exclusions": exclusions.List(),
	}).Info("Excluding addresses from membership")
	return exclusions, nil
}

// probeTarget returns the first resolved peer of the domain, so the probed address is the one peers see.
func probeTarget(ctx context.Context, logger logrus.FieldLogger, r resolver.Resolver, domain string, port int) string {
	ips, err := r.Resolve(ctx, domain)
	if err != nil || len(ips) == 0 {
		logger.WithError(err).WithField("target", fallbackProbeTarget).Warn("Unable to resolve domain for probing, using default route")
		return fallbackProbeTarget
	}
	return net.JoinHostPort(ips[0].String(), strconv.Itoa(port))
}

// Run starts the web server, if any, then the reconciler, and stops them in reverse order once the context is
// closed.
func (a *agent) Run(ctx context.Context) {
	a.logger.Info("Starting")
	defer a.logger.Info("Terminating")
	stgr := stager.New()
	for _, runnable := range a.runnables {
		stage := stgr.NextStage()
		stage.StartWithContext(runnable)
	}
	<-ctx.Done()
	stgr.Shutdown()
}

func (a *agent) Close() error {
	return a.store.Close()
}
