package logging

import (
	"io"
	"io/ioutil"

	"github.com/sirupsen/logrus"
)

// SplitHook directs matched levels to its configured output.
type SplitHook struct {
	output io.Writer
	levels []logrus.Level
}

// Fire is invoked when logrus tries to log any message.
func (hook *SplitHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}
	for _, level := range hook.levels {
		if level == entry.Level {
			_, err := hook.output.Write([]byte(line))
			return err
		}
	}
	return nil
}

// Levels returns the log levels this hook is being applied to.
func (hook *SplitHook) Levels() []logrus.Level {
	return hook.levels
}

// Split sends warnings and below to out and errors and above to errOut
// instead of writing every level to a single output.
func Split(out, errOut io.Writer) Setter {
	return func(r *logrus.Logger) error {
		r.SetOutput(ioutil.Discard)
		r.ReplaceHooks(logrus.LevelHooks{})
		r.AddHook(&SplitHook{out, []logrus.Level{
			logrus.WarnLevel, logrus.InfoLevel, logrus.DebugLevel, logrus.TraceLevel}})
		r.AddHook(&SplitHook{errOut, []logrus.Level{
			logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel}})
		return nil
	}
}
