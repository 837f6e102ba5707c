package gojaprerender

import (
	"github.com/dop251/goja"
)

func (r *Runtime) bindTimers() error {
	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		`setTimeout`:     r.setTimeout,
		`clearTimeout`:   r.clearTimeout,
		`setImmediate`:   r.setImmediate,
		`clearImmediate`: r.clearImmediate,
		`queueMicrotask`: r.queueMicrotask,
	} {
		if err := r.vm.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) setTimeout(call goja.FunctionCall) goja.Value {
	fn := r.callbackArg(`setTimeout`, call.Argument(0))
	delay := int(call.Argument(1).ToInteger())
	if delay < 0 {
		delay = 0
	}
	args := callbackArgs(call, 2)
	id, err := r.js.SetTimeout(func() { r.invoke(`setTimeout`, fn, args) }, delay)
	if err != nil {
		panic(r.vm.NewGoError(err))
	}
	return r.vm.ToValue(id)
}

func (r *Runtime) clearTimeout(call goja.FunctionCall) goja.Value {
	if id, ok := timerID(call.Argument(0)); ok {
		_ = r.js.ClearTimeout(id)
	}
	return goja.Undefined()
}

func (r *Runtime) setImmediate(call goja.FunctionCall) goja.Value {
	fn := r.callbackArg(`setImmediate`, call.Argument(0))
	args := callbackArgs(call, 1)
	id, err := r.js.SetImmediate(func() { r.invoke(`setImmediate`, fn, args) })
	if err != nil {
		panic(r.vm.NewGoError(err))
	}
	return r.vm.ToValue(id)
}

func (r *Runtime) clearImmediate(call goja.FunctionCall) goja.Value {
	if id, ok := timerID(call.Argument(0)); ok {
		_ = r.js.ClearImmediate(id)
	}
	return goja.Undefined()
}

func (r *Runtime) queueMicrotask(call goja.FunctionCall) goja.Value {
	fn := r.callbackArg(`queueMicrotask`, call.Argument(0))
	if err := r.js.QueueMicrotask(func() { r.invoke(`queueMicrotask`, fn, nil) }); err != nil {
		panic(r.vm.NewGoError(err))
	}
	return goja.Undefined()
}

func (r *Runtime) callbackArg(name string, v goja.Value) goja.Callable {
	fn, ok := goja.AssertFunction(v)
	if !ok {
		panic(r.vm.NewTypeError(name + `: callback must be a function`))
	}
	return fn
}

// invoke calls a timer callback. Uncaught exceptions are logged, since
// there is no caller to propagate them to.
func (r *Runtime) invoke(source string, fn goja.Callable, args []goja.Value) {
	if _, err := fn(goja.Undefined(), args...); err != nil {
		r.logger.Err().
			Err(r.exceptionError(err)).
			Str(`source`, source).
			Log(`uncaught exception in callback`)
	}
}

func callbackArgs(call goja.FunctionCall, from int) []goja.Value {
	if len(call.Arguments) <= from {
		return nil
	}
	return append([]goja.Value(nil), call.Arguments[from:]...)
}

func timerID(v goja.Value) (uint64, bool) {
	if isNullish(v) {
		return 0, false
	}
	id := v.ToInteger()
	if id <= 0 {
		return 0, false
	}
	return uint64(id), true
}
