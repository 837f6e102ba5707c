// Package prerenderhttp exposes a [prerender.Host] (or any [Renderer]) over
// HTTP, for host platforms that invoke prerendering out of process.
//
// Routes:
//
//	POST /render   JSON prerender.Request -> JSON prerender.RenderResult
//	GET  /healthz  liveness
//	GET  /metrics  Prometheus metrics
//
// Failed renders respond 500 with a JSON body of the form
// {"error": "...", "kind": "timeout"}, where kind is one of timeout,
// no_promise, module_not_found, or error. Invalid requests respond 400.
package prerenderhttp
