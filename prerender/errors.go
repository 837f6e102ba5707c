package prerender

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoPromise is matched by [*ContractError].
	ErrNoPromise = errors.New(`prerender: boot function did not return a promise`)

	// ErrTimeout is matched by [*TimeoutError].
	ErrTimeout = errors.New(`prerender: boot function timed out`)

	// ErrModuleNotFound indicates that a [Resolver] has no module (or export)
	// registered under the requested name.
	ErrModuleNotFound = errors.New(`prerender: boot module not found`)

	// ErrInvalidRenderResult indicates a boot function resolved with a value
	// that is neither a page nor a redirect.
	ErrInvalidRenderResult = errors.New(`prerender: invalid render result`)
)

// ContractError indicates that a boot function returned without providing
// a promise.
type ContractError struct {
	Module string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf(`Prerendering failed because the boot function in %s did not return a promise.`, e.Module)
}

func (e *ContractError) Is(target error) bool { return target == ErrNoPromise }

// TimeoutError indicates that a boot function's promise did not settle
// within the allotted time.
type TimeoutError struct {
	Module  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf(
		`Prerendering timed out after %dms because the boot function in '%s' returned a promise that did not resolve or reject. `+
			`Make sure that your boot function always resolves or rejects its promise. `+
			`You can change the timeout value using the 'overrideTimeoutMilliseconds' parameter.`,
		e.Timeout.Milliseconds(),
		e.Module,
	)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }
