package eventlog

// Logger is the interface for run event sinks
type Logger interface {
	// Log records a run event
	Log(event Event)

	// Close flushes any pending writes and closes the logger
	Close() error
}

// NoopLogger discards every event
type NoopLogger struct{}

// Log does nothing
func (n *NoopLogger) Log(_ Event) {}

// Close does nothing and returns nil
func (n *NoopLogger) Close() error {
	return nil
}

var _ Logger = (*NoopLogger)(nil)

// MultiLogger fans events out to several loggers
type MultiLogger []Logger

// Log forwards event to every logger
func (m MultiLogger) Log(event Event) {
	for _, l := range m {
		l.Log(event)
	}
}

// Close closes every logger and returns the first error
func (m MultiLogger) Close() error {
	var first error
	for _, l := range m {
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ Logger = MultiLogger(nil)
