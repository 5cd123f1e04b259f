// Package errors defines Ferrous's error taxonomy (spec.md §7): one
// concrete type per Kind, all implementing LuaError so callers can
// switch on Kind() without type-asserting every concrete type.
package errors

import "fmt"

// Position locates an error in source text.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	if p.Line == 0 {
		return "?"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// LuaError is implemented by every error kind in this package.
type LuaError interface {
	error
	Pos() Position
	Kind() string
}

// SyntaxError: lexer or parser failure.
type SyntaxError struct {
	Position
	Msg string
}

func (e *SyntaxError) Error() string { return fmt.Sprintf("syntax error at %s: %s", e.Position, e.Msg) }
func (e *SyntaxError) Pos() Position  { return e.Position }
func (e *SyntaxError) Kind() string   { return "Syntax" }

// CompileError: semantic error during bytecode compilation.
type CompileError struct {
	Position
	Msg string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile error at %s: %s", e.Position, e.Msg)
}
func (e *CompileError) Pos() Position { return e.Position }
func (e *CompileError) Kind() string  { return "Compile" }

// TypeError: operand type mismatch at runtime.
type TypeError struct {
	Position
	Expected string
	Got      string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("attempt to perform arithmetic on a %s value (expected %s)", e.Got, e.Expected)
}
func (e *TypeError) Pos() Position { return e.Position }
func (e *TypeError) Kind() string  { return "Type" }

// ArgError: library/bridge argument violation.
type ArgError struct {
	Position
	FuncName string
	Position1 int
	Msg      string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("bad argument #%d to '%s' (%s)", e.Position1, e.FuncName, e.Msg)
}
func (e *ArgError) Pos() Position { return e.Position }
func (e *ArgError) Kind() string  { return "Arg" }

// ResourceLimitError: a configured limit was exceeded.
type ResourceLimitError struct {
	Position
	Resource string
	Limit    int64
	Used     int64
}

func (e *ResourceLimitError) Error() string {
	return fmt.Sprintf("resource limit exceeded: %s (used %d, limit %d)", e.Resource, e.Used, e.Limit)
}
func (e *ResourceLimitError) Pos() Position { return e.Position }
func (e *ResourceLimitError) Kind() string  { return "ResourceLimit" }

// Aborted: the cooperative kill flag was observed, or the script's
// wall-clock timeout elapsed.
type Aborted struct {
	Position
	Reason string // "killed" or "timeout"
}

func (e *Aborted) Error() string {
	if e.Reason == "" {
		return "script execution aborted"
	}
	return fmt.Sprintf("script execution aborted: %s", e.Reason)
}
func (e *Aborted) Pos() Position { return e.Position }
func (e *Aborted) Kind() string  { return "Aborted" }

// RuntimeError: user-raised (error()) or arithmetic/metamethod failure.
// Value holds the raised Lua value's display string (already converted —
// RuntimeError lives below package value in the dependency graph, so it
// cannot hold a value.Value directly without an import cycle; callers
// that need the original Value attach it as the opaque Payload field).
type RuntimeError struct {
	Position
	Msg     string
	Payload interface{} // typically a value.Value; opaque here to avoid an import cycle
}

func (e *RuntimeError) Error() string { return e.Msg }
func (e *RuntimeError) Pos() Position { return e.Position }
func (e *RuntimeError) Kind() string  { return "Runtime" }

// NoScriptError: EVALSHA referenced an unknown SHA.
type NoScriptError struct {
	SHA string
}

func (e *NoScriptError) Error() string { return fmt.Sprintf("NOSCRIPT No matching script for SHA %s", e.SHA) }
func (e *NoScriptError) Pos() Position { return Position{} }
func (e *NoScriptError) Kind() string  { return "NoScript" }

// InternalError: InvalidHandle/StaleHandle/ProtectionViolation — an
// implementation bug, never supposed to be user-visible. spec.md §7:
// "SHOULD panic in debug builds and surface as a generic ERR internal
// error in release."
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string { return fmt.Sprintf("internal error: %s", e.Reason) }
func (e *InternalError) Pos() Position { return Position{} }
func (e *InternalError) Kind() string  { return "Internal" }

// StorageError wraps a pass-through failure from the storage engine.
type StorageError struct {
	Msg string
}

func (e *StorageError) Error() string { return e.Msg }
func (e *StorageError) Pos() Position { return Position{} }
func (e *StorageError) Kind() string  { return "Storage" }

// NewInvalidHandle / NewStaleHandle / NewProtectionViolation are the
// specific InternalError reasons spec.md §7 names.
func NewInvalidHandle(where string) *InternalError {
	return &InternalError{Reason: fmt.Sprintf("invalid handle in %s", where)}
}
func NewStaleHandle(where string) *InternalError {
	return &InternalError{Reason: fmt.Sprintf("stale handle in %s", where)}
}
func NewProtectionViolation(reg int) *InternalError {
	return &InternalError{Reason: fmt.Sprintf("protection violation writing register %d", reg)}
}
