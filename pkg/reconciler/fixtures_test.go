package reconciler

import (
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/atlassian/galerasync/internal/fixtures"
)

type logrusHook struct {
	hook *test.Hook
}

func (lh *logrusHook) count(level logrus.Level) int {
	return fixtures.CountLevel(lh.hook, level)
}

// last returns the most recent entry with the given message, or nil.
func (lh *logrusHook) last(message string) *logrus.Entry {
	entries := lh.hook.AllEntries()
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Message == message {
			return entries[i]
		}
	}
	return nil
}
