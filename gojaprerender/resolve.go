package gojaprerender

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/go-prerender/prerender"
)

// Resolve loads the boot module, relative to applicationBasePath, and
// returns its renderer. It implements [prerender.Resolver].
//
// The export used is, in order of preference: bootModule.ExportName (if
// set), the module's exports (if a function), or the module's default
// export. Exports carrying the isServerRenderer flag are invoked directly,
// anything else is treated as a bare boot function.
func (r *Runtime) Resolve(applicationBasePath string, bootModule prerender.BootModuleInfo) (prerender.Renderer, error) {
	modulePath := modulePath(applicationBasePath, bootModule.ModuleName)
	if modulePath == `` {
		return nil, fmt.Errorf(`%w: empty module name`, prerender.ErrModuleNotFound)
	}

	exports, err := r.req.Require(modulePath)
	if err != nil {
		if errors.Is(err, require.ModuleFileDoesNotExistError) || errors.Is(err, require.InvalidModuleError) {
			return nil, fmt.Errorf(`%w: %q: %w`, prerender.ErrModuleNotFound, bootModule.ModuleName, err)
		}
		return nil, fmt.Errorf(`gojaprerender: failed to load %q: %w`, bootModule.ModuleName, r.exceptionError(err))
	}

	export := exports
	if bootModule.ExportName != `` {
		obj, ok := exports.(*goja.Object)
		if ok {
			export = obj.Get(bootModule.ExportName)
		}
		if !ok || isNullish(export) {
			return nil, fmt.Errorf(`%w: %q has no export %q`, prerender.ErrModuleNotFound, bootModule.ModuleName, bootModule.ExportName)
		}
	} else if _, ok := goja.AssertFunction(exports); !ok {
		if obj, ok := exports.(*goja.Object); ok {
			if v := obj.Get(`default`); !isNullish(v) {
				export = v
			}
		}
	}

	return r.rendererFor(bootModule.ModuleName, export)
}

func (r *Runtime) rendererFor(moduleName string, export goja.Value) (prerender.Renderer, error) {
	fn, ok := goja.AssertFunction(export)
	if !ok {
		return nil, fmt.Errorf(`gojaprerender: boot module %q does not export a function`, moduleName)
	}
	obj := export.(*goja.Object)

	if sr, ok := r.attachedRenderer(obj); ok {
		return sr, nil
	}

	if flag := obj.Get(`isServerRenderer`); !isNullish(flag) && flag.ToBoolean() {
		return &jsRenderer{r: r, fn: fn}, nil
	}

	// bare boot function
	sr := r.serverRenderer(fn)
	r.attachRenderer(obj, sr)
	return sr, nil
}

func modulePath(applicationBasePath, moduleName string) string {
	moduleName = filepath.ToSlash(strings.TrimSpace(moduleName))
	if moduleName == `` {
		return ``
	}
	if path.IsAbs(moduleName) {
		return path.Clean(moduleName)
	}
	if applicationBasePath == `` {
		if strings.HasPrefix(moduleName, `./`) || strings.HasPrefix(moduleName, `../`) {
			return moduleName
		}
		return `./` + moduleName
	}
	return path.Join(filepath.ToSlash(applicationBasePath), moduleName)
}
