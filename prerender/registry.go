package prerender

import (
	"fmt"
	"path"
	"strings"
	"sync"

	eventloop "github.com/joeycumines/go-eventloop"
)

// Resolver locates the [Renderer] for a boot module. Resolve is called on
// the loop goroutine.
type Resolver interface {
	Resolve(applicationBasePath string, bootModule BootModuleInfo) (Renderer, error)
}

// Registry is a [Resolver] for boot modules implemented in Go. Each module
// has a default export, and any number of named exports.
//
// An export is either a [Renderer] carrying the server renderer marker (see
// [IsServerRenderer]), which is used directly, or a [BootFunc], which is
// wrapped using [CreateServerRenderer].
//
// Registry is safe for concurrent use.
type Registry struct {
	js      *eventloop.JS
	exports map[string]map[string]any
	opts    []RendererOption
	mu      sync.RWMutex
}

var _ Resolver = (*Registry)(nil)

// NewRegistry initializes an empty [Registry]. The options are applied to
// each [BootFunc] export, as it is wrapped.
func NewRegistry(js *eventloop.JS, opts ...RendererOption) *Registry {
	if js == nil {
		panic(`prerender: nil js`)
	}
	return &Registry{
		js:      js,
		exports: make(map[string]map[string]any),
		opts:    opts,
	}
}

// Register sets the default export of a module.
func (x *Registry) Register(moduleName string, export any) error {
	return x.RegisterExport(moduleName, ``, export)
}

// RegisterExport sets a named export of a module. An empty exportName sets
// the default export.
func (x *Registry) RegisterExport(moduleName, exportName string, export any) error {
	key := normalizeModuleName(moduleName)
	if key == `` {
		return fmt.Errorf(`prerender: invalid module name: %q`, moduleName)
	}

	switch v := export.(type) {
	case BootFunc:
		if v == nil {
			return fmt.Errorf(`prerender: nil boot func for module %q`, moduleName)
		}
	case func(*BootParams) (*eventloop.ChainedPromise, error):
		if v == nil {
			return fmt.Errorf(`prerender: nil boot func for module %q`, moduleName)
		}
		export = BootFunc(v)
	default:
		if !IsServerRenderer(export) {
			return fmt.Errorf(`prerender: unsupported export for module %q: %T`, moduleName, export)
		}
		if _, ok := export.(Renderer); !ok {
			return fmt.Errorf(`prerender: unsupported export for module %q: %T`, moduleName, export)
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	m := x.exports[key]
	if m == nil {
		m = make(map[string]any)
		x.exports[key] = m
	}
	m[exportName] = export
	return nil
}

// Resolve implements [Resolver]. The applicationBasePath is not used, as
// modules are registered under logical names.
func (x *Registry) Resolve(applicationBasePath string, bootModule BootModuleInfo) (Renderer, error) {
	x.mu.RLock()
	export, ok := x.exports[normalizeModuleName(bootModule.ModuleName)][bootModule.ExportName]
	x.mu.RUnlock()

	if !ok {
		if bootModule.ExportName != `` {
			return nil, fmt.Errorf(`%w: %q (export %q)`, ErrModuleNotFound, bootModule.ModuleName, bootModule.ExportName)
		}
		return nil, fmt.Errorf(`%w: %q`, ErrModuleNotFound, bootModule.ModuleName)
	}

	if boot, ok := export.(BootFunc); ok {
		// legacy convention, a bare boot function
		return CreateServerRenderer(x.js, boot, x.opts...), nil
	}

	return export.(Renderer), nil
}

func normalizeModuleName(name string) string {
	name = strings.TrimSpace(name)
	if name == `` {
		return ``
	}
	name = path.Clean(strings.ReplaceAll(name, `\`, `/`))
	name = strings.TrimPrefix(name, `./`)
	if name == `.` {
		return ``
	}
	return name
}
