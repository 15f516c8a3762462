package fixtures

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type writer struct {
	tb testing.TB
}

var _ io.Writer = (*writer)(nil)

func (w writer) Write(p []byte) (int, error) {
	w.tb.Log(string(p))
	return len(p), nil
}

// NewTestLogger returns a logger which writes to the test log.
func NewTestLogger(tb testing.TB, opts ...func(*logrus.Logger)) logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)

	for _, opt := range opts {
		opt(l)
	}
	l.SetOutput(writer{tb: tb})

	return l
}

// NewRecordingLogger returns a logger which writes to the test log, and a hook which records every entry so
// tests can assert on the events that were emitted.
func NewRecordingLogger(tb testing.TB) (logrus.FieldLogger, *test.Hook) {
	hook := &test.Hook{}
	l := NewTestLogger(tb, func(l *logrus.Logger) {
		l.AddHook(hook)
	})
	return l, hook
}

// CountLevel returns the number of recorded entries at the given level.
func CountLevel(hook *test.Hook, level logrus.Level) int {
	count := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == level {
			count++
		}
	}
	return count
}
