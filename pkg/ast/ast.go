// Package ast defines the node types the parser produces from a Lua 5.1
// chunk (spec.md §4.4), one struct per node kind, following paserati's
// pkg/parser/ast.go convention (every node carries its own source
// position for error messages) narrowed to Lua's grammar instead of
// JS/TS's much larger one (no classes, generics, decorators, etc.).
package ast

import "github.com/iGentAI/ferrous/pkg/errors"

// Node is implemented by every AST node.
type Node interface {
	Pos() errors.Position
}

// Statement is implemented by every statement node.
type Statement interface {
	Node
	stmtNode()
}

// Expr is implemented by every expression node.
type Expr interface {
	Node
	exprNode()
}

// Chunk is a sequence of statements (a block). The grammar enforces that
// only the last statement may be a Return (spec.md §4.4).
type Chunk struct {
	Position errors.Position
	Stmts    []Statement
}

func (c *Chunk) Pos() errors.Position { return c.Position }

// ---- Statements ----

type LocalAssignStmt struct {
	Position errors.Position
	Names    []string
	Exprs    []Expr
}

type AssignStmt struct {
	Position errors.Position
	Targets  []Expr // NameExpr or IndexExpr
	Exprs    []Expr
}

type CallStmt struct {
	Position errors.Position
	Call     *CallExpr
}

type DoStmt struct {
	Position errors.Position
	Body     *Chunk
}

type WhileStmt struct {
	Position errors.Position
	Cond     Expr
	Body     *Chunk
}

type RepeatStmt struct {
	Position errors.Position
	Body     *Chunk
	Cond     Expr
}

type IfClause struct {
	Cond Expr
	Body *Chunk
}

type IfStmt struct {
	Position errors.Position
	Clauses  []IfClause
	Else     *Chunk // nil if no else branch
}

type NumericForStmt struct {
	Position errors.Position
	Var      string
	Start    Expr
	Stop     Expr
	Step     Expr // nil means implicit 1
	Body     *Chunk
}

type GenericForStmt struct {
	Position errors.Position
	Names    []string
	Exprs    []Expr
	Body     *Chunk
}

// FunctionDeclStmt covers `function name(...) ... end`,
// `local function name(...) ... end`, and `function t.a.b:m(...) ... end`.
type FunctionDeclStmt struct {
	Position errors.Position
	Target   Expr // NameExpr or IndexExpr; nil for a plain local function uses LocalName instead
	LocalName string // set instead of Target when IsLocal
	IsLocal  bool
	IsMethod bool // Target's final segment was `:name`, an implicit self param is added
	Func     *FunctionExpr
}

type ReturnStmt struct {
	Position errors.Position
	Exprs    []Expr
}

type BreakStmt struct {
	Position errors.Position
}

func (s *LocalAssignStmt) Pos() errors.Position  { return s.Position }
func (s *AssignStmt) Pos() errors.Position       { return s.Position }
func (s *CallStmt) Pos() errors.Position         { return s.Position }
func (s *DoStmt) Pos() errors.Position           { return s.Position }
func (s *WhileStmt) Pos() errors.Position        { return s.Position }
func (s *RepeatStmt) Pos() errors.Position        { return s.Position }
func (s *IfStmt) Pos() errors.Position           { return s.Position }
func (s *NumericForStmt) Pos() errors.Position    { return s.Position }
func (s *GenericForStmt) Pos() errors.Position    { return s.Position }
func (s *FunctionDeclStmt) Pos() errors.Position  { return s.Position }
func (s *ReturnStmt) Pos() errors.Position        { return s.Position }
func (s *BreakStmt) Pos() errors.Position         { return s.Position }

func (*LocalAssignStmt) stmtNode()  {}
func (*AssignStmt) stmtNode()       {}
func (*CallStmt) stmtNode()         {}
func (*DoStmt) stmtNode()           {}
func (*WhileStmt) stmtNode()        {}
func (*RepeatStmt) stmtNode()       {}
func (*IfStmt) stmtNode()           {}
func (*NumericForStmt) stmtNode()   {}
func (*GenericForStmt) stmtNode()   {}
func (*FunctionDeclStmt) stmtNode() {}
func (*ReturnStmt) stmtNode()       {}
func (*BreakStmt) stmtNode()        {}

// ---- Expressions ----

type NilExpr struct{ Position errors.Position }
type TrueExpr struct{ Position errors.Position }
type FalseExpr struct{ Position errors.Position }
type VarargExpr struct{ Position errors.Position }

type NumberExpr struct {
	Position errors.Position
	Value    float64
}

type StringExpr struct {
	Position errors.Position
	Value    string
}

type NameExpr struct {
	Position errors.Position
	Name     string
}

// IndexExpr covers both `t[k]` and `t.k` (the latter parsed as Key being
// a StringExpr with DotForm set, purely for nicer error messages).
type IndexExpr struct {
	Position errors.Position
	Object   Expr
	Key      Expr
	DotForm  bool
}

// CallExpr covers plain calls `f(...)` and method calls `o:m(...)`
// (Method non-empty implies Callee is evaluated once and passed as the
// implicit first argument).
type CallExpr struct {
	Position errors.Position
	Callee   Expr
	Method   string
	Args     []Expr
}

type FunctionExpr struct {
	Position errors.Position
	Params   []string
	IsVararg bool
	Body     *Chunk
	Name     string // optional, for debug info / error messages
}

// TableField is one entry of a table constructor. Key == nil means a
// positional (array) entry.
type TableField struct {
	Key   Expr
	Value Expr
}

type TableExpr struct {
	Position errors.Position
	Fields   []TableField
}

type BinaryExpr struct {
	Position errors.Position
	Op       string
	Left     Expr
	Right    Expr
}

type UnaryExpr struct {
	Position errors.Position
	Op       string
	Operand  Expr
}

func (e *NilExpr) Pos() errors.Position      { return e.Position }
func (e *TrueExpr) Pos() errors.Position     { return e.Position }
func (e *FalseExpr) Pos() errors.Position    { return e.Position }
func (e *VarargExpr) Pos() errors.Position   { return e.Position }
func (e *NumberExpr) Pos() errors.Position   { return e.Position }
func (e *StringExpr) Pos() errors.Position   { return e.Position }
func (e *NameExpr) Pos() errors.Position     { return e.Position }
func (e *IndexExpr) Pos() errors.Position    { return e.Position }
func (e *CallExpr) Pos() errors.Position     { return e.Position }
func (e *FunctionExpr) Pos() errors.Position { return e.Position }
func (e *TableExpr) Pos() errors.Position    { return e.Position }
func (e *BinaryExpr) Pos() errors.Position   { return e.Position }
func (e *UnaryExpr) Pos() errors.Position    { return e.Position }

func (*NilExpr) exprNode()      {}
func (*TrueExpr) exprNode()     {}
func (*FalseExpr) exprNode()    {}
func (*VarargExpr) exprNode()   {}
func (*NumberExpr) exprNode()   {}
func (*StringExpr) exprNode()   {}
func (*NameExpr) exprNode()     {}
func (*IndexExpr) exprNode()    {}
func (*CallExpr) exprNode()     {}
func (*FunctionExpr) exprNode() {}
func (*TableExpr) exprNode()    {}
func (*BinaryExpr) exprNode()   {}
func (*UnaryExpr) exprNode()    {}
