package prerender

import (
	"fmt"
	"time"

	eventloop "github.com/joeycumines/go-eventloop"
)

// DefaultTimeout is used when a render does not override the timeout.
const DefaultTimeout = 30 * time.Second

// WithTimeout races p against a timer of timeoutMilliseconds. The returned
// promise settles with p's outcome, unchanged, if p settles first, in which
// case the timer is cleared. Otherwise, it is rejected with rejection, and
// p's eventual outcome is discarded.
//
// If timeoutMilliseconds is not positive, p is returned as-is.
//
// WithTimeout must be called on the loop goroutine.
func WithTimeout(js *eventloop.JS, p *eventloop.ChainedPromise, timeoutMilliseconds int, rejection any) *eventloop.ChainedPromise {
	if timeoutMilliseconds <= 0 {
		return p
	}

	result, resolve, reject := js.NewChainedPromise()

	id, err := js.SetTimeout(func() {
		reject(rejection)
	}, timeoutMilliseconds)
	if err != nil {
		reject(fmt.Errorf(`prerender: failed to schedule timeout: %w`, err))
		return result
	}

	p.Then(
		func(value any) any {
			_ = js.ClearTimeout(id)
			resolve(value)
			return nil
		},
		func(reason any) any {
			_ = js.ClearTimeout(id)
			reject(reason)
			return nil
		},
	)

	return result
}

// resolveTimeout applies the override rules: positive values are used
// as-is, zero selects the default, and negative values disable the timeout
// (indicated by a return value <= 0).
func resolveTimeout(overrideMilliseconds int, def time.Duration) int {
	switch {
	case overrideMilliseconds > 0:
		return overrideMilliseconds
	case overrideMilliseconds < 0:
		return -1
	case def <= 0:
		return -1
	default:
		// rounded up, so sub-millisecond defaults still time out
		return int((def + time.Millisecond - 1) / time.Millisecond)
	}
}
