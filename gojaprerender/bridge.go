package gojaprerender

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
	eventloop "github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-prerender/domaintask"
)

// JSError is a JavaScript value, thrown or used as a rejection reason.
// Error objects populate Name, Message, and Stack. Other values (strings,
// plain objects) populate Message only. The original value is passed back
// unchanged if the error returns to JavaScript.
type JSError struct {
	// value is the original object, reused if the error is passed back to
	// JavaScript
	value   goja.Value
	Name    string
	Message string
	Stack   string
}

func (e *JSError) Error() string {
	if e.Name == `` {
		return e.Message
	}
	if e.Message == `` {
		return e.Name
	}
	return e.Name + `: ` + e.Message
}

// Value returns the original JavaScript value.
func (e *JSError) Value() goja.Value { return e.value }

// exceptionError converts an error returned by goja, e.g. by a
// [goja.Callable], into a Go error.
func (r *Runtime) exceptionError(err error) error {
	var ex *goja.Exception
	if !errors.As(err, &ex) {
		return err
	}
	if e, ok := r.reasonFromValue(ex.Value()).(error); ok {
		return e
	}
	return &JSError{
		value:   ex.Value(),
		Message: stringValue(ex.Value()),
		Stack:   ex.String(),
	}
}

// reasonFromValue converts a thrown value, or rejection reason, to Go.
// Errors that originated in Go are unwrapped, anything else (other than
// undefined) becomes a [JSError], retaining the original value.
func (r *Runtime) reasonFromValue(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) {
		return nil
	}
	if obj, ok := v.(*goja.Object); ok && obj.ClassName() == `Error` {
		if inner := obj.Get(`value`); inner != nil {
			if err, ok := inner.Export().(error); ok {
				return err
			}
		}
		return &JSError{
			value:   v,
			Name:    stringValue(obj.Get(`name`)),
			Message: stringValue(obj.Get(`message`)),
			Stack:   stringValue(obj.Get(`stack`)),
		}
	}
	message := v.String()
	if _, ok := v.(*goja.Object); ok {
		message = fmt.Sprint(v.Export())
	}
	return &JSError{value: v, Message: message}
}

// exportValue converts a fulfilment value to Go.
func exportValue(v goja.Value) any {
	if isNullish(v) {
		return nil
	}
	return v.Export()
}

// toChainedPromise adapts a thenable. It reports false if v has no
// callable then method.
func (r *Runtime) toChainedPromise(v goja.Value) (*eventloop.ChainedPromise, bool) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	then, ok := goja.AssertFunction(obj.Get(`then`))
	if !ok {
		return nil, false
	}

	p, resolve, reject := r.js.NewChainedPromise()

	_, err := then(obj,
		r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			resolve(exportValue(call.Argument(0)))
			return goja.Undefined()
		}),
		r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			reject(r.reasonFromValue(call.Argument(0)))
			return goja.Undefined()
		}),
	)
	if err != nil {
		reject(r.exceptionError(err))
	}

	return p, true
}

// toJSPromise adapts p as a native JavaScript promise.
func (r *Runtime) toJSPromise(p *eventloop.ChainedPromise) goja.Value {
	promise, resolve, reject := r.vm.NewPromise()
	p.Then(
		func(value any) any {
			if err := resolve(r.toJSValue(value)); err != nil {
				r.logger.Err().Err(r.exceptionError(err)).Log(`failed to resolve promise`)
			}
			return nil
		},
		func(reason any) any {
			if err := reject(r.toJSReason(reason)); err != nil {
				r.logger.Err().Err(r.exceptionError(err)).Log(`failed to reject promise`)
			}
			return nil
		},
	)
	return r.vm.ToValue(promise)
}

func (r *Runtime) toJSValue(v any) goja.Value {
	switch v := v.(type) {
	case nil:
		return goja.Undefined()
	case goja.Value:
		return v
	case *eventloop.ChainedPromise:
		return r.toJSPromise(v)
	case *domaintask.Response:
		return r.responseObject(v)
	case error:
		return r.toJSReason(v)
	default:
		return r.vm.ToValue(v)
	}
}

func (r *Runtime) toJSReason(reason any) goja.Value {
	var jsErr *JSError
	switch v := reason.(type) {
	case nil:
		return goja.Undefined()
	case error:
		if errors.As(v, &jsErr) && jsErr.value != nil {
			return jsErr.value
		}
		return r.vm.NewGoError(v)
	default:
		return r.toJSValue(v)
	}
}

func isNullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

func stringValue(v goja.Value) string {
	if isNullish(v) {
		return ``
	}
	return v.String()
}
