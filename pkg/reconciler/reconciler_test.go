package reconciler

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/tilinna/clock"

	"github.com/atlassian/galerasync/internal/fixtures"
	"github.com/atlassian/galerasync/pkg/cluster"
	"github.com/atlassian/galerasync/pkg/healthcheck"
)

// scriptedResolver returns its responses in order, repeating the last one forever.
type scriptedResolver struct {
	responses []response
	calls     int
}

type response struct {
	ips []net.IP
	err error
}

func (sr *scriptedResolver) Resolve(ctx context.Context, domain string) ([]net.IP, error) {
	i := sr.calls
	if i >= len(sr.responses) {
		i = len(sr.responses) - 1
	}
	sr.calls++
	return sr.responses[i].ips, sr.responses[i].err
}

func resolves(addrs ...string) response {
	return response{ips: fixtures.IPs(addrs...)}
}

// recordingApplier records every snapshot it is asked to apply, and fails the ones listed in failures.
type recordingApplier struct {
	calls    []cluster.Snapshot
	failures map[int]error
}

func (ra *recordingApplier) Apply(ctx context.Context, snapshot cluster.Snapshot) error {
	n := len(ra.calls)
	ra.calls = append(ra.calls, snapshot)
	return ra.failures[n]
}

func newTestReconciler(t *testing.T, r *scriptedResolver, a *recordingApplier, exclusions ...string) (*Reconciler, *logrusHook) {
	logger, hook := fixtures.NewRecordingLogger(t)
	return New(logger, r, a, Config{
		Domain:                    "galera.test",
		Port:                      4567,
		Exclusions:                cluster.NewExclusionSet(exclusions...),
		Frequency:                 5 * time.Second,
		ApplyFailureWarnThreshold: 3,
	}, nil), &logrusHook{hook: hook}
}

func TestFirstResolutionIsApplied(t *testing.T) {
	t.Parallel()
	r := &scriptedResolver{responses: []response{resolves("10.0.0.1", "10.0.0.2", "10.0.0.3")}}
	a := &recordingApplier{}
	rec, _ := newTestReconciler(t, r, a, "10.0.0.1")

	require.Equal(t, cluster.EmptySnapshot, rec.Applied())
	require.Equal(t, ResultApplied, rec.Reconcile(context.Background()))
	require.Equal(t, []cluster.Snapshot{"gcomm://10.0.0.2:4567,10.0.0.3:4567"}, a.calls)
	require.Equal(t, cluster.Snapshot("gcomm://10.0.0.2:4567,10.0.0.3:4567"), rec.Applied())
}

func TestUnchangedResolutionIsNotApplied(t *testing.T) {
	t.Parallel()
	r := &scriptedResolver{responses: []response{
		resolves("10.0.0.2", "10.0.0.3"),
		resolves("10.0.0.3", "10.0.0.2"), // Same set, different order
	}}
	a := &recordingApplier{}
	rec, _ := newTestReconciler(t, r, a)

	require.Equal(t, ResultApplied, rec.Reconcile(context.Background()))
	require.Equal(t, ResultUnchanged, rec.Reconcile(context.Background()))
	require.Equal(t, ResultUnchanged, rec.Reconcile(context.Background()))
	require.Len(t, a.calls, 1)
}

func TestEmptyMembershipMatchesInitialState(t *testing.T) {
	t.Parallel()
	r := &scriptedResolver{responses: []response{resolves("10.0.0.1")}}
	a := &recordingApplier{}
	rec, _ := newTestReconciler(t, r, a, "10.0.0.1")

	require.Equal(t, ResultUnchanged, rec.Reconcile(context.Background()))
	require.Empty(t, a.calls)
	require.Equal(t, cluster.EmptySnapshot, rec.Applied())
}

func TestChangeToEmptyMembershipIsApplied(t *testing.T) {
	t.Parallel()
	r := &scriptedResolver{responses: []response{
		resolves("10.0.0.1", "10.0.0.2"),
		resolves("10.0.0.1"),
	}}
	a := &recordingApplier{}
	rec, _ := newTestReconciler(t, r, a, "10.0.0.1")

	require.Equal(t, ResultApplied, rec.Reconcile(context.Background()))
	require.Equal(t, ResultApplied, rec.Reconcile(context.Background()))
	require.Equal(t, []cluster.Snapshot{"gcomm://10.0.0.2:4567", "gcomm://"}, a.calls)
	require.Equal(t, cluster.EmptySnapshot, rec.Applied())
}

func TestChangeIsAppliedOnce(t *testing.T) {
	t.Parallel()
	r := &scriptedResolver{responses: []response{
		resolves("10.0.0.2"),
		resolves("10.0.0.2", "10.0.0.3"),
	}}
	a := &recordingApplier{}
	rec, hook := newTestReconciler(t, r, a)

	for i := 0; i < 4; i++ {
		rec.Reconcile(context.Background())
	}
	require.Equal(t, []cluster.Snapshot{"gcomm://10.0.0.2:4567", "gcomm://10.0.0.2:4567,10.0.0.3:4567"}, a.calls)
	require.Equal(t, cluster.Snapshot("gcomm://10.0.0.2:4567,10.0.0.3:4567"), rec.Applied())

	last := hook.last("Cluster address updated")
	require.NotNil(t, last)
	require.Equal(t, "gcomm://10.0.0.2:4567", last.Data["old"])
	require.Equal(t, "gcomm://10.0.0.2:4567,10.0.0.3:4567", last.Data["new"])
}

func TestFailedApplyRetainsTarget(t *testing.T) {
	t.Parallel()
	r := &scriptedResolver{responses: []response{
		resolves("10.0.0.2"),
		resolves("10.0.0.2", "10.0.0.3"),
	}}
	a := &recordingApplier{failures: map[int]error{
		1: errors.New("Access denied; you need the SUPER privilege"),
		2: errors.New("connection reset"),
	}}
	rec, hook := newTestReconciler(t, r, a)

	require.Equal(t, ResultApplied, rec.Reconcile(context.Background()))
	require.Equal(t, ResultApplyFailed, rec.Reconcile(context.Background()))
	require.Equal(t, cluster.Snapshot("gcomm://10.0.0.2:4567"), rec.Applied())
	require.Equal(t, ResultApplyFailed, rec.Reconcile(context.Background()))
	require.Equal(t, cluster.Snapshot("gcomm://10.0.0.2:4567"), rec.Applied())
	require.Equal(t, ResultApplied, rec.Reconcile(context.Background()))
	require.Equal(t, cluster.Snapshot("gcomm://10.0.0.2:4567,10.0.0.3:4567"), rec.Applied())

	require.Equal(t, []cluster.Snapshot{
		"gcomm://10.0.0.2:4567",
		"gcomm://10.0.0.2:4567,10.0.0.3:4567",
		"gcomm://10.0.0.2:4567,10.0.0.3:4567",
		"gcomm://10.0.0.2:4567,10.0.0.3:4567",
	}, a.calls)
	require.Equal(t, 2, hook.count(logrus.ErrorLevel))
}

func TestFailedInitialApplyRetainsEmpty(t *testing.T) {
	t.Parallel()
	r := &scriptedResolver{responses: []response{resolves("10.0.0.2")}}
	a := &recordingApplier{failures: map[int]error{0: errors.New("read-only")}}
	rec, _ := newTestReconciler(t, r, a)

	require.Equal(t, ResultApplyFailed, rec.Reconcile(context.Background()))
	require.Equal(t, cluster.EmptySnapshot, rec.Applied())
	require.Equal(t, ResultApplied, rec.Reconcile(context.Background()))
	require.Equal(t, []cluster.Snapshot{"gcomm://10.0.0.2:4567", "gcomm://10.0.0.2:4567"}, a.calls)
}

func TestResolveFailureDoesNotApply(t *testing.T) {
	t.Parallel()
	r := &scriptedResolver{responses: []response{
		resolves("10.0.0.2"),
		{err: &net.DNSError{Err: "no such host", Name: "galera.test", IsNotFound: true}},
	}}
	a := &recordingApplier{}
	rec, hook := newTestReconciler(t, r, a)

	require.Equal(t, ResultApplied, rec.Reconcile(context.Background()))
	require.Equal(t, cluster.Snapshot("gcomm://10.0.0.2:4567"), rec.Applied())
	errorsBefore := hook.count(logrus.ErrorLevel)

	require.Equal(t, ResultResolveFailed, rec.Reconcile(context.Background()))
	require.Len(t, a.calls, 1)
	require.Equal(t, cluster.Snapshot("gcomm://10.0.0.2:4567"), rec.Applied())
	require.Equal(t, errorsBefore+1, hook.count(logrus.ErrorLevel))

	entry := hook.last("Unable to resolve domain")
	require.NotNil(t, entry)
	require.Equal(t, "galera.test", entry.Data["domain"])
	require.NotNil(t, entry.Data[logrus.ErrorKey])
}

func TestRepeatedFailuresWarn(t *testing.T) {
	t.Parallel()
	r := &scriptedResolver{responses: []response{resolves("10.0.0.2")}}
	failures := map[int]error{}
	for i := 0; i < 7; i++ {
		failures[i] = errors.New("invalid value")
	}
	a := &recordingApplier{failures: failures}
	rec, hook := newTestReconciler(t, r, a)

	for i := 0; i < 7; i++ {
		require.Equal(t, ResultApplyFailed, rec.Reconcile(context.Background()))
	}
	require.Equal(t, 2, hook.count(logrus.WarnLevel)) // at 3 and 6
	require.Equal(t, 7, rec.Status().ConsecutiveApplyFailures)

	require.Equal(t, ResultApplied, rec.Reconcile(context.Background()))
	require.Equal(t, 0, rec.Status().ConsecutiveApplyFailures)
}

func TestRepeatedFailuresWarningDisabled(t *testing.T) {
	t.Parallel()
	logger, hook := fixtures.NewRecordingLogger(t)
	rec := New(logger,
		&scriptedResolver{responses: []response{resolves("10.0.0.2")}},
		&recordingApplier{failures: map[int]error{0: errors.New("a"), 1: errors.New("b"), 2: errors.New("c")}},
		Config{Domain: "galera.test", Port: 4567, Frequency: time.Second},
		nil,
	)
	for i := 0; i < 3; i++ {
		rec.Reconcile(context.Background())
	}
	require.Equal(t, 0, fixtures.CountLevel(hook, logrus.WarnLevel))
}

func TestStatusAndHealth(t *testing.T) {
	t.Parallel()
	r := &scriptedResolver{responses: []response{
		resolves("10.0.0.2"),
		{err: errors.New("server misbehaving")},
		resolves("10.0.0.2"),
	}}
	a := &recordingApplier{}
	rec, _ := newTestReconciler(t, r, a, "10.0.0.1")

	s := rec.Status()
	require.Equal(t, "galera.test", s.Domain)
	require.Equal(t, []string{"10.0.0.1"}, s.Exclusions)
	require.Equal(t, "gcomm://", s.Applied)
	require.Equal(t, "none", s.LastResult)
	checks := rec.HealthChecks()
	require.Len(t, checks, 1)
	_, healthy := checks[0]()
	require.Equal(t, healthcheck.Healthy, healthy)

	rec.Reconcile(context.Background())
	s = rec.Status()
	require.Equal(t, "gcomm://10.0.0.2:4567", s.Applied)
	require.Equal(t, "gcomm://10.0.0.2:4567", s.Candidate)
	require.Equal(t, "applied", s.LastResult)

	rec.Reconcile(context.Background())
	s = rec.Status()
	require.Equal(t, "resolve_failed", s.LastResult)
	require.Equal(t, "server misbehaving", s.LastError)
	message, healthy := checks[0]()
	require.Equal(t, healthcheck.Unhealthy, healthy)
	require.Contains(t, message, "server misbehaving")

	rec.Reconcile(context.Background())
	s = rec.Status()
	require.Equal(t, "unchanged", s.LastResult)
	require.Empty(t, s.LastError)
	_, healthy = checks[0]()
	require.Equal(t, healthcheck.Healthy, healthy)
}

func TestMetrics(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r := &scriptedResolver{responses: []response{
		resolves("10.0.0.2", "10.0.0.3"),
		resolves("10.0.0.2", "10.0.0.3"),
		{err: errors.New("timeout")},
		resolves("10.0.0.2"),
	}}
	a := &recordingApplier{failures: map[int]error{1: errors.New("denied")}}
	rec := New(fixtures.NewTestLogger(t), r, a, Config{Domain: "galera.test", Port: 4567, Frequency: time.Second}, m)

	clck := clock.NewMock(time.Unix(100, 0))
	ctx := clock.Context(context.Background(), clck)
	for i := 0; i < 4; i++ {
		rec.Reconcile(ctx)
	}

	require.EqualValues(t, 1, testutil.ToFloat64(m.Cycles.WithLabelValues("applied")))
	require.EqualValues(t, 1, testutil.ToFloat64(m.Cycles.WithLabelValues("unchanged")))
	require.EqualValues(t, 1, testutil.ToFloat64(m.Cycles.WithLabelValues("resolve_failed")))
	require.EqualValues(t, 1, testutil.ToFloat64(m.Cycles.WithLabelValues("apply_failed")))
	require.EqualValues(t, 2, testutil.ToFloat64(m.Peers))
	require.EqualValues(t, 100, testutil.ToFloat64(m.LastApplyTime))
	require.EqualValues(t, 1, testutil.ToFloat64(m.ApplyFailStreak))
}

func TestRunReconcilesOnTick(t *testing.T) {
	t.Parallel()
	ctxTest, testDone := fixtures.TestContext(t, time.Second)
	defer testDone()

	clck := clock.NewMock(time.Unix(1, 0))
	ctxClock := clock.Context(ctxTest, clck)
	ctxRun, cancel := context.WithCancel(ctxClock)

	applied := make(chan cluster.Snapshot, 10)
	rec := New(
		fixtures.NewTestLogger(t),
		&fixtures.MockResolver{TB: t, FnResolve: func(ctx context.Context, domain string) ([]net.IP, error) {
			require.Equal(t, "galera.test", domain)
			return fixtures.IPs("10.0.0.1", "10.0.0.2"), nil
		}},
		&fixtures.MockApplier{TB: t, FnApply: func(ctx context.Context, snapshot cluster.Snapshot) error {
			applied <- snapshot
			return nil
		}},
		Config{Domain: "galera.test", Port: 4567, Exclusions: cluster.NewExclusionSet("10.0.0.1"), Frequency: 5 * time.Second},
		nil,
	)

	done := make(chan struct{})
	go func() {
		rec.Run(ctxRun)
		close(done)
	}()

	fixtures.NextStep(ctxTest, clck)
	select {
	case <-ctxTest.Done():
		require.FailNow(t, "timed out waiting for apply")
	case s := <-applied:
		require.Equal(t, cluster.Snapshot("gcomm://10.0.0.2:4567"), s)
	}

	// Further ticks find nothing new
	fixtures.NextStep(ctxTest, clck)
	fixtures.NextStep(ctxTest, clck)

	cancel()
	select {
	case <-ctxTest.Done():
		require.FailNow(t, "timed out waiting for Run to return")
	case <-done:
	}
	require.Len(t, applied, 0)
	require.Equal(t, cluster.Snapshot("gcomm://10.0.0.2:4567"), rec.Applied())
}

func TestResultString(t *testing.T) {
	t.Parallel()
	require.Equal(t, "none", ResultNone.String())
	require.Equal(t, "unchanged", ResultUnchanged.String())
	require.Equal(t, "applied", ResultApplied.String())
	require.Equal(t, "resolve_failed", ResultResolveFailed.String())
	require.Equal(t, "apply_failed", ResultApplyFailed.String())
	require.Equal(t, "Result(42)", Result(42).String())
}
