// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojaprerender

import (
	"errors"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/dop251/goja_nodejs/url"
	eventloop "github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-prerender/prerender"
	"github.com/joeycumines/logiface"
)

// DefaultModuleNames are the names the createServerRenderer module is
// registered under, by default.
var DefaultModuleNames = []string{`prerendering`, `aspnet-prerendering`}

// Runtime is a JavaScript runtime bound to an event loop, which loads and
// runs boot modules. See the package documentation.
type Runtime struct {
	js           *eventloop.JS
	vm           *goja.Runtime
	req          *require.RequireModule
	logger       *logiface.Logger[logiface.Event]
	rendererOpts []prerender.RendererOption
	// rendererKey is a private symbol, under which JS functions hold the Go
	// renderer they represent, for both createServerRenderer results and
	// wrapped legacy boot functions
	rendererKey  *goja.Symbol
}

var _ prerender.Resolver = (*Runtime)(nil)

// New initializes a [Runtime] bound to js.
func New(js *eventloop.JS, opts ...Option) (*Runtime, error) {
	if js == nil {
		return nil, errors.New("gojaprerender: js must not be nil")
	}

	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper(`json`, true))

	r := &Runtime{
		js:           js,
		vm:           vm,
		logger:       cfg.logger,
		rendererOpts: cfg.rendererOpts,
		rendererKey:  goja.NewSymbol(`serverRenderer`),
	}

	var registryOpts []require.Option
	if cfg.loader != nil {
		registryOpts = append(registryOpts, require.WithLoader(cfg.loader))
	}
	registry := require.NewRegistry(registryOpts...)
	registry.RegisterNativeModule(`console`, console.RequireWithPrinter(&consolePrinter{logger: cfg.logger}))
	for _, name := range cfg.moduleNames {
		registry.RegisterNativeModule(name, r.Require())
	}
	r.req = registry.Enable(vm)

	console.Enable(vm)
	url.Enable(vm)

	if err := r.bindTimers(); err != nil {
		return nil, err
	}

	return r, nil
}

// JS returns the event loop adapter the runtime is bound to.
func (r *Runtime) JS() *eventloop.JS { return r.js }

// VM returns the underlying [goja.Runtime].
func (r *Runtime) VM() *goja.Runtime { return r.vm }

// Load requires the module at modulePath, returning its exports.
func (r *Runtime) Load(modulePath string) (goja.Value, error) {
	v, err := r.req.Require(modulePath)
	if err != nil {
		return nil, r.exceptionError(err)
	}
	return v, nil
}

// RunString evaluates src as a script, converting any thrown value into an
// error, see [JSError].
func (r *Runtime) RunString(src string) (goja.Value, error) {
	v, err := r.vm.RunString(src)
	if err != nil {
		return nil, r.exceptionError(err)
	}
	return v, nil
}

// Require returns a [require.ModuleLoader] exporting createServerRenderer,
// for registration under additional names. The loader may only be used
// with this runtime's [goja.Runtime].
func (r *Runtime) Require() require.ModuleLoader {
	return func(vm *goja.Runtime, module *goja.Object) {
		if vm != r.vm {
			panic(vm.NewGoError(errors.New("gojaprerender: module loaded by a foreign runtime")))
		}
		exports := module.Get(`exports`).(*goja.Object)
		r.setupExports(exports)
	}
}

func (r *Runtime) setupExports(exports *goja.Object) {
	_ = exports.Set(`createServerRenderer`, r.vm.ToValue(r.jsCreateServerRenderer))
}
