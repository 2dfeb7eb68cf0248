package engine

import "errors"

var (
	// ErrEngineUnreachable marks transport-level connection failures to the
	// inference engine. Retried at the gateway a bounded number of times, then
	// the scenario is aborted.
	ErrEngineUnreachable = errors.New("inference engine unreachable")

	// ErrEngineTimeout marks an engine call that exceeded its deadline.
	// Retried like ErrEngineUnreachable.
	ErrEngineTimeout = errors.New("inference engine timed out")
)

// IsTransport reports whether err is a retryable transport-level engine error.
func IsTransport(err error) bool {
	return errors.Is(err, ErrEngineUnreachable) || errors.Is(err, ErrEngineTimeout)
}
