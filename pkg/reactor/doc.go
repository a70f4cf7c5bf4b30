// Package reactor provides the single logical thread every session event runs on.
//
// Invariants:
// - Tasks execute one at a time, in the order they were posted.
// - A task runs to completion before the next one starts.
// - Posting never blocks; posting after Close fails with ErrClosed.
//
// Usage:
//
//	loop := reactor.New(logger)
//	go loop.Run(ctx)
//	_ = loop.Post(func() { sessions.CreateRemote(ed) })
package reactor
