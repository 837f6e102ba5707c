package gojaprerender

import (
	"github.com/dop251/goja"
	eventloop "github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-prerender/prerender"
)

// jsRenderer adapts a JavaScript function carrying the isServerRenderer
// flag, which was not created by this runtime.
type jsRenderer struct {
	r  *Runtime
	fn goja.Callable
}

var _ prerender.Renderer = (*jsRenderer)(nil)

// jsCreateServerRenderer implements createServerRenderer(bootFunc).
func (r *Runtime) jsCreateServerRenderer(call goja.FunctionCall) goja.Value {
	boot, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(r.vm.NewTypeError(`createServerRenderer: boot function must be a function`))
	}
	return r.exportRenderer(r.serverRenderer(boot))
}

// serverRenderer wraps a JavaScript boot function.
func (r *Runtime) serverRenderer(boot goja.Callable) *prerender.ServerRenderer {
	return prerender.CreateServerRenderer(r.js, func(params *prerender.BootParams) (*eventloop.ChainedPromise, error) {
		ret, err := boot(goja.Undefined(), r.paramsObject(params))
		if err != nil {
			return nil, r.exceptionError(err)
		}
		p, ok := r.toChainedPromise(ret)
		if !ok {
			return nil, nil
		}
		return p, nil
	}, r.rendererOpts...)
}

// exportRenderer exposes sr as a JavaScript function, flagged with
// isServerRenderer.
func (r *Runtime) exportRenderer(sr *prerender.ServerRenderer) goja.Value {
	fn := r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		return r.toJSPromise(sr.RenderToString(
			stringValue(call.Argument(0)),
			bootModuleInfo(call.Argument(1)),
			stringValue(call.Argument(2)),
			stringValue(call.Argument(3)),
			exportValue(call.Argument(4)),
			int(call.Argument(5).ToInteger()),
			stringValue(call.Argument(6)),
		))
	}).(*goja.Object)
	_ = fn.Set(`isServerRenderer`, true)
	r.attachRenderer(fn, sr)
	return fn
}

// attachRenderer stores sr on obj, so it lives exactly as long as obj.
// Non-extensible objects are left as-is, and are wrapped on each resolve.
func (r *Runtime) attachRenderer(obj *goja.Object, sr *prerender.ServerRenderer) {
	_ = obj.DefineDataPropertySymbol(r.rendererKey, r.vm.ToValue(sr), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
}

// attachedRenderer returns the renderer stored by attachRenderer, if any.
func (r *Runtime) attachedRenderer(obj *goja.Object) (*prerender.ServerRenderer, bool) {
	v := obj.GetSymbol(r.rendererKey)
	if isNullish(v) {
		return nil, false
	}
	sr, ok := v.Export().(*prerender.ServerRenderer)
	return sr, ok
}

func (x *jsRenderer) IsServerRenderer() bool { return true }

func (x *jsRenderer) RenderToString(
	applicationBasePath string,
	bootModule prerender.BootModuleInfo,
	absoluteRequestURL string,
	requestPathAndQuery string,
	customDataParameter any,
	overrideTimeoutMilliseconds int,
	requestPathBase string,
) *eventloop.ChainedPromise {
	vm := x.r.vm

	info := vm.NewObject()
	_ = info.Set(`moduleName`, bootModule.ModuleName)
	if bootModule.ExportName != `` {
		_ = info.Set(`exportName`, bootModule.ExportName)
	}
	if bootModule.WebpackConfig != `` {
		_ = info.Set(`webpackConfig`, bootModule.WebpackConfig)
	}

	ret, err := x.fn(goja.Undefined(),
		vm.ToValue(applicationBasePath),
		info,
		vm.ToValue(absoluteRequestURL),
		vm.ToValue(requestPathAndQuery),
		x.r.toJSValue(customDataParameter),
		vm.ToValue(overrideTimeoutMilliseconds),
		vm.ToValue(requestPathBase),
	)
	if err != nil {
		return x.r.js.Reject(x.r.exceptionError(err))
	}

	p, ok := x.r.toChainedPromise(ret)
	if !ok {
		return x.r.js.Reject(&prerender.ContractError{Module: bootModule.ModuleName})
	}
	return p
}

func bootModuleInfo(v goja.Value) prerender.BootModuleInfo {
	obj, ok := v.(*goja.Object)
	if !ok {
		return prerender.BootModuleInfo{ModuleName: stringValue(v)}
	}
	return prerender.BootModuleInfo{
		ModuleName:    stringValue(obj.Get(`moduleName`)),
		ExportName:    stringValue(obj.Get(`exportName`)),
		WebpackConfig: stringValue(obj.Get(`webpackConfig`)),
	}
}
