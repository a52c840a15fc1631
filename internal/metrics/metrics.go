// Package metrics is a tiny facade between the pipeline and a metrics
// backend. The pipeline emits named counters and histogram observations;
// where they go (Datadog, nowhere) is decided once at startup.
//
// The default backend discards everything, so library code can emit freely
// without configuration.
package metrics

import "sync"

// Labels are free-form key/value tags attached to an emission.
type Labels map[string]string

// Backend receives metric emissions.
//
// Implementations must be safe for concurrent use; the facade forwards
// calls without additional locking.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)

	// Flush pushes buffered data out; Close stops background work and
	// performs a final flush.
	Flush() error
	Close() error
}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs the process-wide backend. Passing nil restores the
// discarding default. Call once during startup, before pipeline work.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

// IncCounter adds delta to a named counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample of a named distribution.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush forwards to the installed backend.
func Flush() error { return current().Flush() }

// Close forwards to the installed backend.
func Close() error { return current().Close() }

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }
func (nopBackend) Close() error                             { return nil }
