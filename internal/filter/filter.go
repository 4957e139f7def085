// Package filter evaluates per-event filter expressions.
//
// Expressions see the event header as {kind, display, timestamp} and must
// produce a boolean. They are compiled once at construction and evaluated
// before each dispatch; evaluation failures deliver the event (fail-open) so
// a bad expression degrades to a no-op rather than a silent event sink.
package filter

import (
	"fmt"
	"log"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/mwehr/displaybridge/internal/display"
)

// Filter decides whether an event should be dispatched.
type Filter struct {
	source  string
	program *vm.Program
}

// exprEnv is the evaluation environment shape used for type checking.
func exprEnv() map[string]interface{} {
	return map[string]interface{}{
		"kind":      "",
		"display":   int64(0),
		"timestamp": int64(0),
	}
}

// Compile builds a Filter from an expression like
// `kind == "vsync" && display == 7`.
func Compile(source string) (*Filter, error) {
	program, err := expr.Compile(source, expr.Env(exprEnv()), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling filter expression %q: %w", source, err)
	}
	return &Filter{source: source, program: program}, nil
}

// Match reports whether the event passes the filter.
func (f *Filter) Match(ev *display.Event) bool {
	env := map[string]interface{}{
		"kind":      ev.Kind.String(),
		"display":   int64(ev.DisplayID),
		"timestamp": ev.Timestamp,
	}

	out, err := expr.Run(f.program, env)
	if err != nil {
		log.Printf("Warning: filter %q failed on %v event: %v", f.source, ev.Kind, err)
		return true
	}
	pass, ok := out.(bool)
	if !ok {
		log.Printf("Warning: filter %q produced %T, want bool", f.source, out)
		return true
	}
	return pass
}

// String returns the filter's source expression.
func (f *Filter) String() string { return f.source }
