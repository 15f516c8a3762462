package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tilinna/clock"

	"github.com/atlassian/galerasync/pkg/cluster"
	"github.com/atlassian/galerasync/pkg/healthcheck"
	"github.com/atlassian/galerasync/pkg/resolver"
	"github.com/atlassian/galerasync/pkg/store"
)

// Result is the outcome of a single reconciliation.
type Result int

const (
	// ResultNone means no reconciliation has happened yet.
	ResultNone Result = iota
	// ResultUnchanged means the membership matched what was already applied.
	ResultUnchanged
	// ResultApplied means a new membership was applied.
	ResultApplied
	// ResultResolveFailed means the domain could not be resolved.
	ResultResolveFailed
	// ResultApplyFailed means the store rejected the new membership.
	ResultApplyFailed
)

func (r Result) String() string {
	switch r {
	case ResultNone:
		return "none"
	case ResultUnchanged:
		return "unchanged"
	case ResultApplied:
		return "applied"
	case ResultResolveFailed:
		return "resolve_failed"
	case ResultApplyFailed:
		return "apply_failed"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Config is the immutable configuration of a Reconciler.
type Config struct {
	Domain     string
	Port       int
	Exclusions cluster.ExclusionSet
	Frequency  time.Duration

	// ApplyFailureWarnThreshold is how many consecutive failed updates cause a warning.  0 disables the warning.
	ApplyFailureWarnThreshold int
}

// Status is a point in time view of a Reconciler, safe to hand to other goroutines.
type Status struct {
	Domain                   string    `json:"domain"`
	Exclusions               []string  `json:"exclusions"`
	Applied                  string    `json:"applied"`
	Candidate                string    `json:"candidate"`
	LastResult               string    `json:"last_result"`
	LastError                string    `json:"last_error,omitempty"`
	LastReconcile            time.Time `json:"last_reconcile"`
	ConsecutiveApplyFailures int       `json:"consecutive_apply_failures"`
}

// Reconciler keeps the membership of a Galera node in line with the addresses a domain resolves to.  Every tick it
// resolves the domain, builds the membership, and applies it to the store if it differs from the last membership
// which was successfully applied.
//
// The applied membership starts empty, so the first resolution with any peer is always applied.  A failed update
// leaves it untouched, so the same membership is attempted again on the next tick.
type Reconciler struct {
	logger   logrus.FieldLogger
	resolver resolver.Resolver
	applier  store.Applier
	metrics  *Metrics // may be nil
	config   Config

	// Only touched by the goroutine running Reconcile
	applied             cluster.Snapshot
	consecutiveFailures int

	statusLock sync.RWMutex
	status     Status
}

// New creates a Reconciler.  metrics may be nil.
func New(logger logrus.FieldLogger, r resolver.Resolver, applier store.Applier, config Config, metrics *Metrics) *Reconciler {
	return &Reconciler{
		logger:   logger.WithField("domain", config.Domain),
		resolver: r,
		applier:  applier,
		metrics:  metrics,
		config:   config,
		applied:  cluster.EmptySnapshot,
		status: Status{
			Domain:     config.Domain,
			Exclusions: config.Exclusions.List(),
			Applied:    cluster.EmptySnapshot.String(),
			LastResult: ResultNone.String(),
		},
	}
}

// Run reconciles on every tick until the context is closed.  The first reconciliation happens one interval after
// starting.
func (r *Reconciler) Run(ctx context.Context) {
	clck := clock.FromContext(ctx)

	r.logger.WithFields(logrus.Fields{
		"frequency":  r.config.Frequency,
		"port":       r.config.Port,
		"exclusions": r.config.Exclusions.List(),
	}).Info("Starting reconciliation")

	ticker := clck.NewTicker(r.config.Frequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reconcile(ctx)
		}
	}
}

// Reconcile runs a single resolve, build, compare and apply cycle.
func (r *Reconciler) Reconcile(ctx context.Context) Result {
	result, candidate, err := r.reconcile(ctx)

	if r.metrics != nil {
		r.metrics.Cycles.WithLabelValues(result.String()).Inc()
		r.metrics.ApplyFailStreak.Set(float64(r.consecutiveFailures))
		if result == ResultApplied {
			r.metrics.Peers.Set(float64(len(r.applied.Members())))
			r.metrics.LastApplyTime.Set(float64(clock.FromContext(ctx).Now().Unix()))
		}
	}

	r.statusLock.Lock()
	defer r.statusLock.Unlock()
	r.status.Applied = r.applied.String()
	r.status.Candidate = candidate.String()
	r.status.LastResult = result.String()
	r.status.LastError = ""
	if err != nil {
		r.status.LastError = err.Error()
	}
	r.status.LastReconcile = clock.FromContext(ctx).Now()
	r.status.ConsecutiveApplyFailures = r.consecutiveFailures

	return result
}

func (r *Reconciler) reconcile(ctx context.Context) (Result, cluster.Snapshot, error) {
	addrs, err := r.resolver.Resolve(ctx, r.config.Domain)
	if err != nil {
		r.logger.WithError(err).Error("Unable to resolve domain")
		return ResultResolveFailed, "", err
	}

	candidate := cluster.Build(addrs, r.config.Port, r.config.Exclusions)
	if candidate == r.applied {
		r.logger.WithField("membership", candidate).Debug("Membership unchanged")
		return ResultUnchanged, candidate, nil
	}

	logger := r.logger.WithFields(logrus.Fields{
		"old": r.applied.String(),
		"new": candidate.String(),
	})

	if err := r.applier.Apply(ctx, candidate); err != nil {
		r.consecutiveFailures++
		logger.WithError(err).Error("Error executing cluster address update")
		if t := r.config.ApplyFailureWarnThreshold; t > 0 && r.consecutiveFailures%t == 0 {
			logger.WithField("failures", r.consecutiveFailures).Warn("Cluster address update keeps failing")
		}
		return ResultApplyFailed, candidate, err
	}

	r.consecutiveFailures = 0
	r.applied = candidate
	logger.Info("Cluster address updated")
	return ResultApplied, candidate, nil
}

// Applied returns the last membership which was successfully applied.  Must not be called concurrently with
// Reconcile, use Status from other goroutines.
func (r *Reconciler) Applied() cluster.Snapshot {
	return r.applied
}

// Status returns a copy of the current status.  Safe for concurrent use.
func (r *Reconciler) Status() Status {
	r.statusLock.RLock()
	defer r.statusLock.RUnlock()
	s := r.status
	s.Exclusions = append([]string(nil), r.status.Exclusions...)
	return s
}

// HealthChecks reports unhealthy while the latest reconciliation failed.
func (r *Reconciler) HealthChecks() []healthcheck.HealthcheckFunc {
	return []healthcheck.HealthcheckFunc{
		func() (string, healthcheck.HealthyStatus) {
			s := r.Status()
			switch s.LastResult {
			case ResultResolveFailed.String(), ResultApplyFailed.String():
				return fmt.Sprintf("reconciliation of %s failed: %s", s.Domain, s.LastError), healthcheck.Unhealthy
			default:
				return fmt.Sprintf("reconciliation of %s is %s", s.Domain, s.LastResult), healthcheck.Healthy
			}
		},
	}
}
