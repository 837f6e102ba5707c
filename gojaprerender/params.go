package gojaprerender

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-prerender/domaintask"
	"github.com/joeycumines/go-prerender/prerender"
)

// paramsObject builds the argument passed to JavaScript boot functions.
func (r *Runtime) paramsObject(params *prerender.BootParams) *goja.Object {
	obj := r.vm.NewObject()
	_ = obj.Set(`location`, r.locationObject(params.Location))
	_ = obj.Set(`origin`, params.Origin)
	_ = obj.Set(`url`, params.URL)
	_ = obj.Set(`baseUrl`, params.BaseURL)
	_ = obj.Set(`absoluteUrl`, params.AbsoluteURL)
	_ = obj.Set(`domainTasks`, r.toJSPromise(params.DomainTasks))
	_ = obj.Set(`data`, r.toJSValue(params.Data))
	if params.Tasks != nil {
		_ = obj.Set(`tasks`, r.tasksObject(params.Tasks))
	}
	return obj
}

func (r *Runtime) locationObject(loc *prerender.Location) goja.Value {
	if loc == nil {
		return goja.Null()
	}
	obj := r.vm.NewObject()
	_ = obj.Set(`href`, loc.Href)
	_ = obj.Set(`path`, loc.Path)
	_ = obj.Set(`pathname`, loc.Pathname)
	_ = obj.Set(`search`, loc.Search)
	_ = obj.Set(`hash`, loc.Hash)

	query := r.vm.NewObject()
	for k, v := range loc.Query {
		switch v := v.(type) {
		case []string:
			items := make([]any, len(v))
			for i, s := range v {
				items[i] = s
			}
			_ = query.Set(k, r.vm.NewArray(items...))
		default:
			_ = query.Set(k, v)
		}
	}
	_ = obj.Set(`query`, query)

	return obj
}

// tasksObject exposes scope to JavaScript.
func (r *Runtime) tasksObject(scope *domaintask.Scope) *goja.Object {
	obj := r.vm.NewObject()

	_ = obj.Set(`add`, func(call goja.FunctionCall) goja.Value {
		v := call.Argument(0)
		p, ok := r.toChainedPromise(v)
		if !ok {
			panic(r.vm.NewTypeError(`tasks.add: argument must be a promise`))
		}
		scope.AddTask(p)
		return v
	})

	_ = obj.Set(`fetch`, func(call goja.FunctionCall) goja.Value {
		req := &domaintask.Request{URL: stringValue(call.Argument(0))}
		if init, ok := call.Argument(1).(*goja.Object); ok {
			req.Method = stringValue(init.Get(`method`))
			if body := init.Get(`body`); !isNullish(body) {
				req.Body = []byte(body.String())
			}
			if headers, ok := init.Get(`headers`).(*goja.Object); ok {
				req.Header = make(http.Header)
				for _, k := range headers.Keys() {
					req.Header.Add(k, stringValue(headers.Get(k)))
				}
			}
		}
		return r.toJSPromise(scope.Fetch(req))
	})

	_ = obj.Set(`baseUrl`, scope.BaseURL())

	return obj
}

// responseObject models a subset of the fetch API's Response.
func (r *Runtime) responseObject(resp *domaintask.Response) goja.Value {
	obj := r.vm.NewObject()
	_ = obj.Set(`url`, resp.URL)
	_ = obj.Set(`status`, resp.StatusCode)
	_ = obj.Set(`statusText`, strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))))
	_ = obj.Set(`ok`, resp.OK())

	headers := r.vm.NewObject()
	keys := make([]string, 0, len(resp.Header))
	for k := range resp.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_ = headers.Set(strings.ToLower(k), strings.Join(resp.Header.Values(k), `, `))
	}
	_ = obj.Set(`headers`, headers)

	body := string(resp.Body)

	_ = obj.Set(`text`, func(goja.FunctionCall) goja.Value {
		promise, resolve, _ := r.vm.NewPromise()
		_ = resolve(body)
		return r.vm.ToValue(promise)
	})

	_ = obj.Set(`json`, func(goja.FunctionCall) goja.Value {
		promise, resolve, reject := r.vm.NewPromise()
		parse, _ := goja.AssertFunction(r.vm.Get(`JSON`).ToObject(r.vm).Get(`parse`))
		if v, err := parse(goja.Undefined(), r.vm.ToValue(body)); err != nil {
			var reason goja.Value = r.vm.NewGoError(err)
			if ex, ok := err.(*goja.Exception); ok {
				reason = ex.Value()
			}
			_ = reject(reason)
		} else {
			_ = resolve(v)
		}
		return r.vm.ToValue(promise)
	})

	return obj
}
