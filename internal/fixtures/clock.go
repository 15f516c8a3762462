package fixtures

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tilinna/clock"
)

// NewAdvancingClock attaches a virtual clock to a context which advances to the next timer as soon as one is
// created, so retry loops run at full speed rather than wall speed.  The returned function stops the clock, it
// also stops if the context is canceled.
func NewAdvancingClock(ctx context.Context) (context.Context, func()) {
	clck := clock.NewMock(time.Unix(1, 0))
	ctx = clock.Context(ctx, clck)
	ch := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
				return
			case <-ctx.Done():
				return
			default:
				clck.AddNext()
				time.Sleep(1) // Allows the system to actually idle, runtime.Gosched() does not.
			}
		}
	}()
	return ctx, func() {
		close(ch)
	}
}

// NextStep will advance the supplied clock.Mock until it moves, or the context.Context is canceled (which typically
// means it timed out in wall-time).  This is useful when testing things that exist inside goroutines, when it's not
// possible to tell when the goroutine is ready to consume mock time.
func NextStep(ctx context.Context, clck *clock.Mock) {
	for _, d := clck.AddNext(); d == 0 && ctx.Err() == nil; _, d = clck.AddNext() {
		time.Sleep(1)
	}
}

// TestContext returns a context that will time out after d, and a cleanup function which must be called when the
// test is done.  Used to enforce a wall-time limit on tests which wait on goroutines.
func TestContext(tb testing.TB, d time.Duration) (context.Context, func()) {
	ctxTest, completeTest := context.WithTimeout(context.Background(), d+100*time.Millisecond)
	go func() {
		after := time.NewTimer(d)
		defer after.Stop()
		select {
		case <-ctxTest.Done():
		case <-after.C:
			require.Fail(tb, "test timed out")
		}
	}()
	return ctxTest, completeTest
}
