// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package domaintask tracks the background work started while rendering a
// single request, and reports when that work has gone quiet.
//
// A [Scope] is opened with [Run], which executes a unit of work and then
// invokes a completion handler exactly once: with nil, after every tracked
// task has settled, or with an error, as soon as a tracked task fails (or the
// work itself fails). Tasks are tracked explicitly, via [Scope.AddTask],
// [Scope.Go], and [Scope.Fetch], rather than by intercepting the runtime.
//
// Each scope also carries the absolute base URL of the page being rendered,
// used to resolve relative fetches. The base URL is per-scope state, and is
// made available to helpers via [Scope.Context] / [FromContext], so
// concurrent renders on the same loop never observe each other's value.
//
// # Thread Safety
//
// A Scope is owned by the event loop goroutine. [Run] and every Scope method
// must be called from the loop (e.g. from within [eventloop.Loop.Submit], or
// a promise handler), with the exception of [Scope.Context], [Scope.BaseURL],
// [Scope.ResolveURL], [FromContext], and [ReasonError]. Blocking work
// started with [Scope.Go] runs on its own goroutine, and is settled back on
// the loop.
//
// [eventloop.Loop.Submit]: https://pkg.go.dev/github.com/joeycumines/go-eventloop#Loop.Submit
package domaintask
