// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package prerender runs application boot functions on the server, producing
// either rendered HTML or a redirect instruction for a single request.
//
// The entry point is [CreateServerRenderer], which wraps a [BootFunc] as a
// [ServerRenderer]. Each call to [ServerRenderer.RenderToString]:
//
//  1. Builds the [BootParams] for the request (see [NewBootParams]).
//  2. Opens a [domaintask.Scope], which tracks background work started by
//     the boot function, and records the page's absolute base URL on it.
//  3. Calls the boot function, racing its promise against a timeout (see
//     [WithTimeout]).
//  4. Settles the returned promise exactly once: with the boot result, the
//     boot error, a [*TimeoutError], a [*ContractError], or the first error
//     reported by the scope.
//
// Once the scope reports that every tracked task has settled,
// [BootParams.DomainTasks] is fulfilled, allowing the boot function to
// perform a final render pass using the data it fetched.
//
// # Threading
//
// Renderers, like the [eventloop.JS] they are bound to, must be invoked on
// the loop goroutine. [Host] adapts a [Resolver] into a blocking API that is
// safe for concurrent use, submitting each render to the loop.
//
// # Abandoned work
//
// When the timeout wins the race, the boot function's promise is left to
// settle on its own, and its outcome is discarded. The request's scope is
// closed at the same time, canceling [domaintask.Scope.Context], which
// aborts any in-flight [domaintask.Scope.Go] or [domaintask.Scope.Fetch]
// work.
package prerender
