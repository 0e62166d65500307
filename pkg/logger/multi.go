package logger

import "github.com/hashicorp/go-multierror"

// MultiLogger fans every message out to a set of loggers, in order.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger returns a logger writing to every non-nil l.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

func (m *MultiLogger) each(fn func(Logger)) {
	for _, l := range m.loggers {
		fn(l)
	}
}

func (m *MultiLogger) Info(format string, args ...interface{}) {
	m.each(func(l Logger) { l.Info(format, args...) })
}

func (m *MultiLogger) Warning(format string, args ...interface{}) {
	m.each(func(l Logger) { l.Warning(format, args...) })
}

func (m *MultiLogger) Error(format string, args ...interface{}) {
	m.each(func(l Logger) { l.Error(format, args...) })
}

// Close closes every logger and returns their errors combined.
func (m *MultiLogger) Close() error {
	var merr *multierror.Error
	m.each(func(l Logger) {
		if err := l.Close(); err != nil {
			merr = multierror.Append(merr, err)
		}
	})
	return merr.ErrorOrNil()
}

var _ Logger = (*MultiLogger)(nil)
