package engine

import "io"

// ExecContext is the session-side view handed to the engine during Execute
type ExecContext interface {
	// ID is the identity of the session that produced the input
	ID() int
	// Output is the session's output sink
	Output() io.Writer
}

// Engine evaluates complete units of input
type Engine interface {
	// IsReady reports whether text forms a complete dispatchable unit
	IsReady(text string) bool
	// Execute evaluates text, writing results and errors to ctx.Output()
	Execute(text string, ctx ExecContext)
	// CurrentNamespace returns the active evaluation namespace
	CurrentNamespace() string
	// ContinuationIndent returns the suggested indentation for the next line of text
	ContinuationIndent(text string) int
}
