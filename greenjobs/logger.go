package greenjobs

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LogrusAdapter exposes a *logrus.Logger through fetchkit's Logger interface.
type LogrusAdapter struct {
	log *logrus.Logger
}

// NewLogrusAdapter wraps log for use as a fetchkit logger. Key-value pairs
// become logrus fields; a trailing unpaired key is recorded under "extra".
func NewLogrusAdapter(log *logrus.Logger) *LogrusAdapter {
	return &LogrusAdapter{log: log}
}

func (a *LogrusAdapter) Debug(msg string, keysAndValues ...any) {
	a.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (a *LogrusAdapter) Info(msg string, keysAndValues ...any) {
	a.log.WithFields(fields(keysAndValues)).Info(msg)
}

func (a *LogrusAdapter) Warn(msg string, keysAndValues ...any) {
	a.log.WithFields(fields(keysAndValues)).Warn(msg)
}

func (a *LogrusAdapter) Error(msg string, keysAndValues ...any) {
	a.log.WithFields(fields(keysAndValues)).Error(msg)
}

func fields(keysAndValues []any) logrus.Fields {
	f := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	if len(keysAndValues)%2 == 1 {
		f["extra"] = keysAndValues[len(keysAndValues)-1]
	}
	return f
}
