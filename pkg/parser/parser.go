// Package parser implements a recursive-descent parser for the Lua 5.1
// grammar (spec.md §4.4), following paserati's pkg/parser/parser.go
// structure: a Pratt-style precedence table for expressions plus a
// straight-line statement parser, but built over Lua's (much smaller)
// grammar instead of JS/TS's.
package parser

import (
	"fmt"

	"github.com/iGentAI/ferrous/pkg/ast"
	"github.com/iGentAI/ferrous/pkg/errors"
	"github.com/iGentAI/ferrous/pkg/lexer"
)

type precedence int

const (
	precNone precedence = iota
	precOr
	precAnd
	precCompare
	precConcat
	precAdd
	precMul
	precUnary
	precPow
)

var binPrec = map[lexer.TokenType]precedence{
	lexer.OR:      precOr,
	lexer.AND:     precAnd,
	lexer.LT:      precCompare,
	lexer.GT:      precCompare,
	lexer.LE:      precCompare,
	lexer.GE:      precCompare,
	lexer.EQ:      precCompare,
	lexer.NEQ:     precCompare,
	lexer.CONCAT:  precConcat,
	lexer.PLUS:    precAdd,
	lexer.MINUS:   precAdd,
	lexer.STAR:    precMul,
	lexer.SLASH:   precMul,
	lexer.PERCENT: precMul,
	lexer.CARET:   precPow,
}

// rightAssoc marks operators that bind right-to-left.
var rightAssoc = map[lexer.TokenType]bool{
	lexer.CONCAT: true,
	lexer.CARET:  true,
}

// Parser consumes a token stream from pkg/lexer and produces a *ast.Chunk.
type Parser struct {
	l    *lexer.Lexer
	cur  lexer.Token
	peek lexer.Token
}

func New(l *lexer.Lexer) (*Parser, error) {
	p := &Parser{l: l}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func Parse(source, name string) (*ast.Chunk, error) {
	p, err := New(lexer.New(source, name))
	if err != nil {
		return nil, err
	}
	return p.ParseChunk()
}

func (p *Parser) advance() error {
	p.cur = p.peek
	tok, err := p.l.NextToken()
	if err != nil {
		return err
	}
	p.peek = tok
	return nil
}

func (p *Parser) pos() errors.Position {
	return errors.Position{Line: p.cur.Line, Column: p.cur.Column}
}

func (p *Parser) at(tt lexer.TokenType) bool { return p.cur.Type == tt }

func (p *Parser) expect(tt lexer.TokenType) (lexer.Token, error) {
	if p.cur.Type != tt {
		return lexer.Token{}, &errors.SyntaxError{
			Position: p.pos(),
			Msg:      fmt.Sprintf("expected %s, got %s (%q)", tt, p.cur.Type, p.cur.Literal),
		}
	}
	tok := p.cur
	if err := p.advance(); err != nil {
		return lexer.Token{}, err
	}
	return tok, nil
}

// ParseChunk parses a whole block until EOF.
func (p *Parser) ParseChunk() (*ast.Chunk, error) {
	chunk, err := p.parseBlock(lexer.EOF)
	if err != nil {
		return nil, err
	}
	if !p.at(lexer.EOF) {
		return nil, &errors.SyntaxError{Position: p.pos(), Msg: "unexpected token after chunk: " + string(p.cur.Type)}
	}
	return chunk, nil
}

func isBlockEnd(tt lexer.TokenType) bool {
	switch tt {
	case lexer.EOF, lexer.END, lexer.ELSE, lexer.ELSEIF, lexer.UNTIL:
		return true
	}
	return false
}

// parseBlock parses statements until a block-ending token (caller checks
// which one). The terminator itself is left unconsumed.
func (p *Parser) parseBlock(terminators ...lexer.TokenType) (*ast.Chunk, error) {
	start := p.pos()
	chunk := &ast.Chunk{Position: start}
	for !isBlockEnd(p.cur.Type) {
		if p.at(lexer.SEMI) {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if p.at(lexer.RETURN) {
			stmt, err := p.parseReturn()
			if err != nil {
				return nil, err
			}
			chunk.Stmts = append(chunk.Stmts, stmt)
			break // return must be the last statement in a block
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		chunk.Stmts = append(chunk.Stmts, stmt)
	}
	_ = terminators
	return chunk, nil
}

func (p *Parser) parseReturn() (ast.Statement, error) {
	pos := p.pos()
	if err := p.advance(); err != nil { // consume 'return'
		return nil, err
	}
	stmt := &ast.ReturnStmt{Position: pos}
	if isBlockEnd(p.cur.Type) || p.at(lexer.SEMI) {
		if p.at(lexer.SEMI) {
			_ = p.advance()
		}
		return stmt, nil
	}
	exprs, err := p.parseExprList()
	if err != nil {
		return nil, err
	}
	stmt.Exprs = exprs
	if p.at(lexer.SEMI) {
		_ = p.advance()
	}
	return stmt, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch p.cur.Type {
	case lexer.LOCAL:
		return p.parseLocal()
	case lexer.IF:
		return p.parseIf()
	case lexer.WHILE:
		return p.parseWhile()
	case lexer.REPEAT:
		return p.parseRepeat()
	case lexer.DO:
		return p.parseDo()
	case lexer.FOR:
		return p.parseFor()
	case lexer.FUNCTION:
		return p.parseFunctionDecl()
	case lexer.BREAK:
		pos := p.pos()
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.BreakStmt{Position: pos}, nil
	default:
		return p.parseExprStatement()
	}
}

func (p *Parser) parseDo() (ast.Statement, error) {
	pos := p.pos()
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.parseBlock(lexer.END)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.END); err != nil {
		return nil, err
	}
	return &ast.DoStmt{Position: pos, Body: body}, nil
}

func (p *Parser) parseLocal() (ast.Statement, error) {
	pos := p.pos()
	if err := p.advance(); err != nil { // consume 'local'
		return nil, err
	}
	if p.at(lexer.FUNCTION) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		nameTok, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		fn, err := p.parseFunctionBody(nameTok.Literal)
		if err != nil {
			return nil, err
		}
		return &ast.FunctionDeclStmt{Position: pos, IsLocal: true, LocalName: nameTok.Literal, Func: fn}, nil
	}
	names := []string{}
	for {
		tok, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		names = append(names, tok.Literal)
		if p.at(lexer.COMMA) {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	stmt := &ast.LocalAssignStmt{Position: pos, Names: names}
	if p.at(lexer.ASSIGN) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		exprs, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		stmt.Exprs = exprs
	}
	return stmt, nil
}

func (p *Parser) parseIf() (ast.Statement, error) {
	pos := p.pos()
	if err := p.advance(); err != nil { // consume 'if'
		return nil, err
	}
	stmt := &ast.IfStmt{Position: pos}
	for {
		cond, err := p.parseExpr(precNone)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.THEN); err != nil {
			return nil, err
		}
		body, err := p.parseBlock(lexer.ELSEIF, lexer.ELSE, lexer.END)
		if err != nil {
			return nil, err
		}
		stmt.Clauses = append(stmt.Clauses, ast.IfClause{Cond: cond, Body: body})
		if p.at(lexer.ELSEIF) {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.at(lexer.ELSE) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		elseBody, err := p.parseBlock(lexer.END)
		if err != nil {
			return nil, err
		}
		stmt.Else = elseBody
	}
	if _, err := p.expect(lexer.END); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseWhile() (ast.Statement, error) {
	pos := p.pos()
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr(precNone)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.DO); err != nil {
		return nil, err
	}
	body, err := p.parseBlock(lexer.END)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.END); err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Position: pos, Cond: cond, Body: body}, nil
}

func (p *Parser) parseRepeat() (ast.Statement, error) {
	pos := p.pos()
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.parseBlock(lexer.UNTIL)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.UNTIL); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr(precNone)
	if err != nil {
		return nil, err
	}
	return &ast.RepeatStmt{Position: pos, Body: body, Cond: cond}, nil
}

func (p *Parser) parseFor() (ast.Statement, error) {
	pos := p.pos()
	if err := p.advance(); err != nil { // consume 'for'
		return nil, err
	}
	firstTok, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	if p.at(lexer.ASSIGN) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		start, err := p.parseExpr(precNone)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.COMMA); err != nil {
			return nil, err
		}
		stop, err := p.parseExpr(precNone)
		if err != nil {
			return nil, err
		}
		var step ast.Expr
		if p.at(lexer.COMMA) {
			if err := p.advance(); err != nil {
				return nil, err
			}
			step, err = p.parseExpr(precNone)
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(lexer.DO); err != nil {
			return nil, err
		}
		body, err := p.parseBlock(lexer.END)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.END); err != nil {
			return nil, err
		}
		return &ast.NumericForStmt{Position: pos, Var: firstTok.Literal, Start: start, Stop: stop, Step: step, Body: body}, nil
	}
	names := []string{firstTok.Literal}
	for p.at(lexer.COMMA) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		tok, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		names = append(names, tok.Literal)
	}
	if _, err := p.expect(lexer.IN); err != nil {
		return nil, err
	}
	exprs, err := p.parseExprList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.DO); err != nil {
		return nil, err
	}
	body, err := p.parseBlock(lexer.END)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.END); err != nil {
		return nil, err
	}
	return &ast.GenericForStmt{Position: pos, Names: names, Exprs: exprs, Body: body}, nil
}

func (p *Parser) parseFunctionDecl() (ast.Statement, error) {
	pos := p.pos()
	if err := p.advance(); err != nil { // consume 'function'
		return nil, err
	}
	nameTok, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	var target ast.Expr = &ast.NameExpr{Position: pos, Name: nameTok.Literal}
	isMethod := false
	funcName := nameTok.Literal
	for p.at(lexer.DOT) || p.at(lexer.COLON) {
		isColon := p.at(lexer.COLON)
		if err := p.advance(); err != nil {
			return nil, err
		}
		fieldTok, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		target = &ast.IndexExpr{
			Position: pos,
			Object:   target,
			Key:      &ast.StringExpr{Position: pos, Value: fieldTok.Literal},
			DotForm:  true,
		}
		funcName = fieldTok.Literal
		if isColon {
			isMethod = true
			break
		}
	}
	fn, err := p.parseFunctionBody(funcName)
	if err != nil {
		return nil, err
	}
	if isMethod {
		fn.Params = append([]string{"self"}, fn.Params...)
	}
	return &ast.FunctionDeclStmt{Position: pos, Target: target, IsMethod: isMethod, Func: fn}, nil
}

func (p *Parser) parseFunctionBody(name string) (*ast.FunctionExpr, error) {
	pos := p.pos()
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	fn := &ast.FunctionExpr{Position: pos, Name: name}
	for !p.at(lexer.RPAREN) {
		if p.at(lexer.ELLIPSIS) {
			fn.IsVararg = true
			if err := p.advance(); err != nil {
				return nil, err
			}
			break
		}
		tok, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, tok.Literal)
		if p.at(lexer.COMMA) {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseBlock(lexer.END)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.END); err != nil {
		return nil, err
	}
	fn.Body = body
	return fn, nil
}

// parseExprStatement parses either a call statement or an assignment,
// disambiguated by what follows the initial prefix expression.
func (p *Parser) parseExprStatement() (ast.Statement, error) {
	pos := p.pos()
	first, err := p.parseSuffixedExpr()
	if err != nil {
		return nil, err
	}
	if p.at(lexer.ASSIGN) || p.at(lexer.COMMA) {
		targets := []ast.Expr{first}
		for p.at(lexer.COMMA) {
			if err := p.advance(); err != nil {
				return nil, err
			}
			next, err := p.parseSuffixedExpr()
			if err != nil {
				return nil, err
			}
			targets = append(targets, next)
		}
		if _, err := p.expect(lexer.ASSIGN); err != nil {
			return nil, err
		}
		exprs, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		return &ast.AssignStmt{Position: pos, Targets: targets, Exprs: exprs}, nil
	}
	call, ok := first.(*ast.CallExpr)
	if !ok {
		return nil, &errors.SyntaxError{Position: pos, Msg: "syntax error: expression used as a statement must be a call"}
	}
	return &ast.CallStmt{Position: pos, Call: call}, nil
}

func (p *Parser) parseExprList() ([]ast.Expr, error) {
	first, err := p.parseExpr(precNone)
	if err != nil {
		return nil, err
	}
	exprs := []ast.Expr{first}
	for p.at(lexer.COMMA) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		next, err := p.parseExpr(precNone)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, next)
	}
	return exprs, nil
}

// parseExpr implements precedence climbing over binPrec.
func (p *Parser) parseExpr(minPrec precedence) (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		prec, ok := binPrec[p.cur.Type]
		if !ok || prec < minPrec {
			break
		}
		op := p.cur
		next := prec + 1
		if rightAssoc[op.Type] {
			next = prec
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseExpr(next)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Position: errors.Position{Line: op.Line, Column: op.Column}, Op: string(op.Type), Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	switch p.cur.Type {
	case lexer.NOT, lexer.MINUS, lexer.HASH:
		op := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseExpr(precUnary)
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Position: errors.Position{Line: op.Line, Column: op.Column}, Op: string(op.Type), Operand: operand}, nil
	default:
		return p.parsePow()
	}
}

// parsePow handles `^`'s higher-than-unary, right-associative binding:
// -2^2 == -(2^2).
func (p *Parser) parsePow() (ast.Expr, error) {
	base, err := p.parseSuffixedExpr()
	if err != nil {
		return nil, err
	}
	if p.at(lexer.CARET) {
		op := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseExpr(precUnary) // unary binds tighter than ^ on the rhs per Lua grammar, rhs itself right assoc
		if err != nil {
			return nil, err
		}
		return &ast.BinaryExpr{Position: errors.Position{Line: op.Line, Column: op.Column}, Op: "^", Left: base, Right: right}, nil
	}
	return base, nil
}

// parseSuffixedExpr parses a primary expression followed by any chain of
// `.field`, `[expr]`, `:method(args)`, or `(args)` suffixes.
func (p *Parser) parseSuffixedExpr() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		pos := p.pos()
		switch p.cur.Type {
		case lexer.DOT:
			if err := p.advance(); err != nil {
				return nil, err
			}
			tok, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			expr = &ast.IndexExpr{Position: pos, Object: expr, Key: &ast.StringExpr{Position: pos, Value: tok.Literal}, DotForm: true}
		case lexer.LBRACKET:
			if err := p.advance(); err != nil {
				return nil, err
			}
			key, err := p.parseExpr(precNone)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RBRACKET); err != nil {
				return nil, err
			}
			expr = &ast.IndexExpr{Position: pos, Object: expr, Key: key}
		case lexer.COLON:
			if err := p.advance(); err != nil {
				return nil, err
			}
			tok, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			expr = &ast.CallExpr{Position: pos, Callee: expr, Method: tok.Literal, Args: args}
		case lexer.LPAREN, lexer.STRING, lexer.LBRACE:
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			expr = &ast.CallExpr{Position: pos, Callee: expr, Args: args}
		default:
			return expr, nil
		}
	}
}

// parseCallArgs parses `(exprlist)`, a bare string literal, or a bare
// table constructor (all valid Lua call-argument forms).
func (p *Parser) parseCallArgs() ([]ast.Expr, error) {
	switch p.cur.Type {
	case lexer.STRING:
		s := &ast.StringExpr{Position: p.pos(), Value: p.cur.Literal}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return []ast.Expr{s}, nil
	case lexer.LBRACE:
		t, err := p.parseTable()
		if err != nil {
			return nil, err
		}
		return []ast.Expr{t}, nil
	case lexer.LPAREN:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.at(lexer.RPAREN) {
			if err := p.advance(); err != nil {
				return nil, err
			}
			return nil, nil
		}
		args, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		return args, nil
	default:
		return nil, &errors.SyntaxError{Position: p.pos(), Msg: "function arguments expected"}
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	pos := p.pos()
	switch p.cur.Type {
	case lexer.NIL:
		_ = p.advance()
		return &ast.NilExpr{Position: pos}, nil
	case lexer.TRUE:
		_ = p.advance()
		return &ast.TrueExpr{Position: pos}, nil
	case lexer.FALSE:
		_ = p.advance()
		return &ast.FalseExpr{Position: pos}, nil
	case lexer.ELLIPSIS:
		_ = p.advance()
		return &ast.VarargExpr{Position: pos}, nil
	case lexer.NUMBER:
		lit := p.cur.Literal
		n, err := parseNumber(lit)
		if err != nil {
			return nil, &errors.SyntaxError{Position: pos, Msg: err.Error()}
		}
		_ = p.advance()
		return &ast.NumberExpr{Position: pos, Value: n}, nil
	case lexer.STRING:
		s := p.cur.Literal
		_ = p.advance()
		return &ast.StringExpr{Position: pos, Value: s}, nil
	case lexer.IDENT:
		name := p.cur.Literal
		_ = p.advance()
		return &ast.NameExpr{Position: pos, Name: name}, nil
	case lexer.LPAREN:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr(precNone)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		// The inner expression is returned unwrapped, so a parenthesized
		// call or `...` is not truncated to one value.
		return inner, nil
	case lexer.LBRACE:
		return p.parseTable()
	case lexer.FUNCTION:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parseFunctionBody("")
	default:
		return nil, &errors.SyntaxError{Position: pos, Msg: "unexpected token in expression: " + string(p.cur.Type)}
	}
}

func (p *Parser) parseTable() (ast.Expr, error) {
	pos := p.pos()
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	t := &ast.TableExpr{Position: pos}
	for !p.at(lexer.RBRACE) {
		var field ast.TableField
		switch {
		case p.at(lexer.LBRACKET):
			if err := p.advance(); err != nil {
				return nil, err
			}
			key, err := p.parseExpr(precNone)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RBRACKET); err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.ASSIGN); err != nil {
				return nil, err
			}
			val, err := p.parseExpr(precNone)
			if err != nil {
				return nil, err
			}
			field = ast.TableField{Key: key, Value: val}
		case p.at(lexer.IDENT) && p.peek.Type == lexer.ASSIGN:
			keyTok := p.cur
			if err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.advance(); err != nil { // consume '='
				return nil, err
			}
			val, err := p.parseExpr(precNone)
			if err != nil {
				return nil, err
			}
			field = ast.TableField{Key: &ast.StringExpr{Position: pos, Value: keyTok.Literal}, Value: val}
		default:
			val, err := p.parseExpr(precNone)
			if err != nil {
				return nil, err
			}
			field = ast.TableField{Value: val}
		}
		t.Fields = append(t.Fields, field)
		if p.at(lexer.COMMA) || p.at(lexer.SEMI) {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return t, nil
}
