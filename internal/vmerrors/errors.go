// Package vmerrors formats the four stages of failure the CLI can report
// (lexing, parsing, semantic analysis, and the VM itself) into
// source-line-plus-caret text. It is grounded near-verbatim on the
// go-dws's internal/errors package, generalized from a single
// CompilerError type to one Stage-tagged type covering all four stages.
package vmerrors

import (
	"fmt"
	"strings"

	"github.com/cwbudde/langvm/internal/lang/token"
	"github.com/cwbudde/langvm/internal/vm"
)

// Stage names which pipeline stage produced an error.
type Stage string

const (
	LexStage      Stage = "Lexer Error"
	ParseStage    Stage = "Parse Error"
	SemanticStage Stage = "Semantic Error"
	VMStage       Stage = "VM Error"
)

// Error is one reported failure: which stage raised it, where in the source
// (if the stage has a source position; the VM stage does not), and the
// underlying message.
type Error struct {
	Stage  Stage
	Pos    token.Position // zero value for VMStage
	Result vm.Result       // only meaningful for VMStage
	Msg    string
	Source string
	File   string
}

func (e *Error) Error() string { return e.Format(false) }

// Format renders e the way go-dws's CompilerError.Format does: a
// "Stage in file:line:col" header ("Stage at line:col" when File is empty),
// the offending source line, a caret under
// the column, then the message. VMStage errors have no source position, so
// they render just the stage-tagged KIND and message.
func (e *Error) Format(color bool) string {
	var sb strings.Builder

	if e.Stage == VMStage {
		fmt.Fprintf(&sb, "%s: %s", VMStage, e.Result)
		if e.Msg != "" {
			fmt.Fprintf(&sb, " (%s)", e.Msg)
		}
		return sb.String()
	}

	if e.File != "" {
		fmt.Fprintf(&sb, "%s in %s:%d:%d\n", e.Stage, e.File, e.Pos.Line, e.Pos.Column)
	} else {
		fmt.Fprintf(&sb, "%s at %d:%d\n", e.Stage, e.Pos.Line, e.Pos.Column)
	}

	if line := e.sourceLine(e.Pos.Line); line != "" {
		gutter := fmt.Sprintf("%4d | ", e.Pos.Line)
		sb.WriteString(gutter)
		sb.WriteString(line)
		sb.WriteString("\n")
		sb.WriteString(strings.Repeat(" ", len(gutter)+e.Pos.Column-1))
		if color {
			sb.WriteString("\033[1;31m")
		}
		sb.WriteString("^")
		if color {
			sb.WriteString("\033[0m")
		}
		sb.WriteString("\n")
	}

	if color {
		sb.WriteString("\033[1m")
	}
	sb.WriteString(e.Msg)
	if color {
		sb.WriteString("\033[0m")
	}
	return sb.String()
}

func (e *Error) sourceLine(line int) string {
	if e.Source == "" {
		return ""
	}
	lines := strings.Split(e.Source, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	return lines[line-1]
}

// Lex wraps a lexer error as a Stage-tagged Error.
func Lex(pos token.Position, msg, source, file string) *Error {
	return &Error{Stage: LexStage, Pos: pos, Msg: msg, Source: source, File: file}
}

// Parse wraps a parser error.
func Parse(pos token.Position, msg, source, file string) *Error {
	return &Error{Stage: ParseStage, Pos: pos, Msg: msg, Source: source, File: file}
}

// Semantic wraps a semantic-analysis error.
func Semantic(pos token.Position, msg, source, file string) *Error {
	return &Error{Stage: SemanticStage, Pos: pos, Msg: msg, Source: source, File: file}
}

// VM wraps a non-SUCCESS VM Result in the "VM Error: <KIND>" form.
func VM(result vm.Result) *Error {
	return &Error{Stage: VMStage, Result: result}
}
