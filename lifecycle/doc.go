// Package lifecycle decides when engine instances are created and reused.
//
// A Cache holds, per engine.Factory, the last overrides and optionally the
// Future of an instantiation made from exactly those overrides. The Manager
// consults it on every Prepare:
//
//	Prepare(f, {Overrides, FireImmediately: false})
//	    stage the overrides if they differ; no instantiation
//	Prepare(f, {Overrides, FireImmediately: true})
//	    reuse the cached Future while overrides are equal,
//	    otherwise store and return a new one
//
// The new Future is stored under the cache lock before instantiation
// starts, so concurrent callers in the same epoch share one instantiation.
// Instantiation runs detached from the caller's context: cancelling a wait
// never cancels the load. A failed Future is cached like a successful one.
//
// Equality defaults to ShallowEqual. Identical gives map-identity semantics
// for callers that rebuild overrides on every call on purpose.
package lifecycle
