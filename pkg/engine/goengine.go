package engine

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// DefaultNamespace is the namespace reported before any package clause is evaluated
const DefaultNamespace = "main"

// GoEngineConfig configures a GoEngine
type GoEngineConfig struct {
	Namespace string
	Logger    zerolog.Logger
	// Fallback receives output produced outside of Execute, e.g. by goroutines
	// started from evaluated code. Defaults to io.Discard.
	Fallback io.Writer
}

// GoEngine evaluates Go source with an embedded interpreter
type GoEngine struct {
	interp    *interp.Interpreter
	out       *routedWriter
	namespace string
	logger    zerolog.Logger
}

// NewGoEngine creates an interpreter with the standard library loaded
func NewGoEngine(cfg GoEngineConfig) (*GoEngine, error) {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.Fallback == nil {
		cfg.Fallback = io.Discard
	}

	out := &routedWriter{fallback: cfg.Fallback}
	i := interp.New(interp.Options{
		Stdout: out,
		Stderr: out,
	})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib symbols: %w", err)
	}

	return &GoEngine{
		interp:    i,
		out:       out,
		namespace: cfg.Namespace,
		logger:    cfg.Logger.With().Str("component", "engine").Logger(),
	}, nil
}

// IsReady reports whether text is a complete Go statement or declaration
func (e *GoEngine) IsReady(text string) bool {
	return scanBalance(text).ready()
}

// ContinuationIndent suggests two spaces per unclosed bracket
func (e *GoEngine) ContinuationIndent(text string) int {
	return scanBalance(text).indent()
}

// CurrentNamespace returns the package name of the last evaluated package clause
func (e *GoEngine) CurrentNamespace() string {
	return e.namespace
}

// Execute evaluates text and prints its result to the session output
func (e *GoEngine) Execute(text string, ctx ExecContext) {
	w := ctx.Output()
	e.out.route(w)
	defer e.out.reset()

	v, err := e.eval(text)
	if err != nil {
		e.logger.Debug().
			Int("session_id", ctx.ID()).
			Err(err).
			Msg("Evaluation failed")
		fmt.Fprintf(w, "error: %s\n", strings.TrimSpace(err.Error()))
		return
	}

	if ns, ok := packageClause(text); ok {
		e.namespace = ns
		e.logger.Debug().Int("session_id", ctx.ID()).Str("namespace", ns).Msg("Namespace changed")
	}

	if printable(v) {
		fmt.Fprintf(w, "%v\n", v.Interface())
	}
}

func (e *GoEngine) eval(text string) (v reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.interp.Eval(text)
}

func printable(v reflect.Value) bool {
	if !v.IsValid() || !v.CanInterface() {
		return false
	}
	switch v.Kind() {
	case reflect.Func:
		return false
	case reflect.Interface, reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan:
		return !v.IsNil()
	}
	return true
}

// routedWriter forwards interpreter output to the session being served
type routedWriter struct {
	mu       sync.Mutex
	target   io.Writer
	fallback io.Writer
}

func (w *routedWriter) route(target io.Writer) {
	w.mu.Lock()
	w.target = target
	w.mu.Unlock()
}

func (w *routedWriter) reset() {
	w.route(nil)
}

func (w *routedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.target != nil {
		return w.target.Write(p)
	}
	return w.fallback.Write(p)
}
