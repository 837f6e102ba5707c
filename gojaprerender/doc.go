// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package gojaprerender runs JavaScript boot modules, using
// [github.com/dop251/goja], on a [github.com/joeycumines/go-eventloop] loop.
//
// A [Runtime] is a [prerender.Resolver]. Boot modules are loaded as CommonJS
// modules, and typically look like:
//
//	const { createServerRenderer } = require('prerendering');
//
//	module.exports = createServerRenderer(async (params) => {
//	  const res = await params.tasks.fetch('api/products');
//	  const products = await res.json();
//	  await params.domainTasks;
//	  return { html: render(params.location, products) };
//	});
//
// The params object mirrors [prerender.BootParams]: location, origin, url,
// baseUrl, absoluteUrl, domainTasks, data, and tasks. The tasks object
// exposes the render's [domaintask.Scope] as add(promise), fetch(url, init),
// and baseUrl.
//
// Modules that export a bare boot function (without using
// createServerRenderer) are wrapped automatically. Modules that export
// their own function carrying an isServerRenderer flag are invoked
// directly, with the seven positional render parameters.
//
// # Globals
//
// The runtime provides setTimeout, clearTimeout, setImmediate,
// clearImmediate, queueMicrotask, console (routed to a
// [logiface.Logger]), URL, and URLSearchParams.
//
// # Thread Safety
//
// As with [goja.Runtime], a Runtime is not goroutine safe. Other than
// during construction, it must only be used from the loop goroutine.
//
// [logiface.Logger]: https://pkg.go.dev/github.com/joeycumines/logiface#Logger
package gojaprerender
