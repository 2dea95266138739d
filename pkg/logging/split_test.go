package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"gotest.tools/assert"
)

func TestSplit(t *testing.T) {
	var out, errOut bytes.Buffer
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)
	assert.NilError(t, Split(&out, &errOut)(l))

	l.Debug("quiet")
	l.Warn("careful")
	l.Error("broken")

	assert.Check(t, strings.Contains(out.String(), "quiet"))
	assert.Check(t, strings.Contains(out.String(), "careful"))
	assert.Check(t, !strings.Contains(out.String(), "broken"))
	assert.Check(t, strings.Contains(errOut.String(), "broken"))
	assert.Check(t, !strings.Contains(errOut.String(), "careful"))
}

func TestSplitReplacesHooks(t *testing.T) {
	var first, second bytes.Buffer
	l := logrus.New()
	assert.NilError(t, Split(&first, &first)(l))
	assert.NilError(t, Split(&second, &second)(l))

	l.Info("once")
	assert.Equal(t, first.Len(), 0)
	assert.Equal(t, strings.Count(second.String(), "once"), 1)
}
