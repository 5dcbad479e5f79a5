package resilience

import (
	"context"
	"errors"

	"github.com/LavishGent/cachefacade/internal/types"
)

var ErrCircuitOpen = types.ErrCircuitOpen

// IsCircuitOpen returns true if the error is a circuit open error.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, types.ErrCircuitOpen)
}

// Trips reports whether err should count against the breaker. Connection
// failures do; cancellation by the caller does not, since the store never
// had a chance to answer.
func Trips(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, types.ErrConnection)
}
