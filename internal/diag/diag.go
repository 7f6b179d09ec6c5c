// Package diag collects positioned compile-time diagnostics shared by every
// compiler stage: lexer, parser, semantic analyzer, struct layout table,
// optimizer, bytecode generator.
package diag

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/rtmc-lang/rtmc/internal/token"
)

// Severity distinguishes fatal stage failures from non-fatal warnings
// (OptimizationError division-by-zero, queue-full drops surface as
// warnings at runtime via the same shape).
type Severity int

const (
	SevError Severity = iota
	SevWarning
)

// Stage names the taxonomy bucket a Diagnostic belongs to.
type Stage string

const (
	StageLex      Stage = "lex"
	StageParse    Stage = "parse"
	StageSemantic Stage = "semantic"
	StageLayout   Stage = "layout"
	StageOptimize Stage = "optimize"
	StageCodegen  Stage = "codegen"
	StageRuntime  Stage = "runtime"
)

// Diagnostic is one positioned compiler message.
type Diagnostic struct {
	Stage    Stage
	Severity Severity
	Pos      token.Position
	Message  string
	Cause    error
}

func (d Diagnostic) String() string {
	if d.Pos.Filename == "" && d.Pos.Line == 0 {
		return d.Message
	}
	return fmt.Sprintf("%s: %s", d.Pos, d.Message)
}

func (d Diagnostic) Error() string { return d.String() }

// Bag accumulates diagnostics across a single compile-stage pass. Parser and
// Analyzer synchronize past errors and keep going so the bag can report
// every problem before the pipeline aborts, rather than failing on the
// first one.
type Bag struct {
	items []Diagnostic
}

func (b *Bag) Addf(stage Stage, pos token.Position, format string, args ...any) {
	b.items = append(b.items, Diagnostic{
		Stage: stage, Severity: SevError, Pos: pos,
		Message: fmt.Sprintf(format, args...),
	})
}

func (b *Bag) Warnf(stage Stage, pos token.Position, format string, args ...any) {
	b.items = append(b.items, Diagnostic{
		Stage: stage, Severity: SevWarning, Pos: pos,
		Message: fmt.Sprintf(format, args...),
	})
}

func (b *Bag) AddCause(stage Stage, pos token.Position, cause error, format string, args ...any) {
	b.items = append(b.items, Diagnostic{
		Stage: stage, Severity: SevError, Pos: pos,
		Message: fmt.Sprintf(format, args...),
		Cause:   errors.WithStack(cause),
	})
}

// HasErrors reports whether any SevError diagnostic was recorded.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Severity == SevError {
			return true
		}
	}
	return false
}

func (b *Bag) Errors() []Diagnostic {
	out := make([]Diagnostic, 0, len(b.items))
	for _, d := range b.items {
		if d.Severity == SevError {
			out = append(out, d)
		}
	}
	return out
}

func (b *Bag) Warnings() []Diagnostic {
	out := make([]Diagnostic, 0, len(b.items))
	for _, d := range b.items {
		if d.Severity == SevWarning {
			out = append(out, d)
		}
	}
	return out
}

func (b *Bag) All() []Diagnostic { return b.items }

// Err renders every collected error diagnostic as a single multi-line error,
// or nil if the bag holds no errors.
func (b *Bag) Err() error {
	if !b.HasErrors() {
		return nil
	}
	var sb strings.Builder
	for i, d := range b.Errors() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(d.String())
	}
	return errors.New(sb.String())
}
