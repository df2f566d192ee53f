package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// logPrefix tags every line, matching what mods expect in the game log.
const logPrefix = "DepLoader"

// newLogger writes level-filtered, timestamped ("14:32:01.45") lines to w.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
		Prefix:          logPrefix,
	})
}

// progress logs how long a command took. Single goroutine only.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time, e.g. "Loaded 12 files (1.234s)".
func (p *progress) done(msg string) {
	p.logger.Info(msg, "elapsed", time.Since(p.start).Round(time.Millisecond))
}
