// Package engine defines the execution engine the session core dispatches to,
// and ships a Go interpreter backed implementation.
//
// Invariants:
// - IsReady never mutates engine state; it may be called for every line.
// - Execute reports results and errors on the caller's output, never by return.
// - CurrentNamespace reflects the effect of the last successful Execute.
//
// Usage:
//
//	eng, _ := engine.NewGoEngine(engine.GoEngineConfig{Namespace: "main"})
//	if eng.IsReady(text) {
//		eng.Execute(text, sess)
//	}
package engine
