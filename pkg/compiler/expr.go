package compiler

import (
	"github.com/iGentAI/ferrous/pkg/arena"
	"github.com/iGentAI/ferrous/pkg/ast"
	"github.com/iGentAI/ferrous/pkg/bytecode"
	"github.com/iGentAI/ferrous/pkg/errors"
	"github.com/iGentAI/ferrous/pkg/value"
)

// compileExpr compiles e into some register (reusing a local's register
// directly when e is a bare name reference) and returns that register.
func (c *Compiler) compileExpr(e ast.Expr) (int, error) {
	if name, ok := e.(*ast.NameExpr); ok {
		res := c.resolveVar(c.fs, name.Name)
		if res.kind == varLocal {
			return res.reg, nil
		}
	}
	dst, err := c.allocReg()
	if err != nil {
		return 0, err
	}
	return c.compileExprTo(e, dst)
}

// compileExprRK compiles e either as a constant-pool RK reference (for
// literals) or into a register, returning the combined RK operand value.
func (c *Compiler) compileExprRK(e ast.Expr) (int, error) {
	switch ex := e.(type) {
	case *ast.NumberExpr:
		idx := c.addConstant(value.Number(ex.Value))
		return bytecode.RKConst(idx), nil
	case *ast.StringExpr:
		idx := c.stringConstant(ex.Value)
		return bytecode.RKConst(idx), nil
	default:
		reg, err := c.compileExpr(e)
		if err != nil {
			return 0, err
		}
		return reg, nil
	}
}

// compileExprTo compiles e, placing its single value into register dst,
// and returns dst.
func (c *Compiler) compileExprTo(e ast.Expr, dst int) (int, error) {
	c.curLine = e.Pos().Line
	switch ex := e.(type) {
	case *ast.NilExpr:
		c.emit(bytecode.ABC(bytecode.OpLoadNil, dst, dst, 0))
	case *ast.TrueExpr:
		c.emit(bytecode.ABC(bytecode.OpLoadBool, dst, 1, 0))
	case *ast.FalseExpr:
		c.emit(bytecode.ABC(bytecode.OpLoadBool, dst, 0, 0))
	case *ast.NumberExpr:
		idx := c.addConstant(value.Number(ex.Value))
		c.emit(bytecode.ABx(bytecode.OpLoadK, dst, idx))
	case *ast.StringExpr:
		idx := c.stringConstant(ex.Value)
		c.emit(bytecode.ABx(bytecode.OpLoadK, dst, idx))
	case *ast.VarargExpr:
		c.emit(bytecode.ABC(bytecode.OpVararg, dst, 2, 0))
	case *ast.NameExpr:
		res := c.resolveVar(c.fs, ex.Name)
		switch res.kind {
		case varLocal:
			if res.reg != dst {
				c.emit(bytecode.ABC(bytecode.OpMove, dst, res.reg, 0))
			}
		case varUpvalue:
			c.emit(bytecode.ABC(bytecode.OpGetUpval, dst, res.reg, 0))
		case varGlobal:
			nameIdx := c.stringConstant(ex.Name)
			c.emit(bytecode.ABx(bytecode.OpGetGlobal, dst, nameIdx))
		}
	case *ast.IndexExpr:
		return c.compileIndexTo(ex, dst)
	case *ast.BinaryExpr:
		return c.compileBinaryTo(ex, dst)
	case *ast.UnaryExpr:
		return c.compileUnaryTo(ex, dst)
	case *ast.TableExpr:
		return c.compileTableTo(ex, dst)
	case *ast.FunctionExpr:
		if err := c.compileFunctionInto(ex, dst); err != nil {
			return 0, err
		}
	case *ast.CallExpr:
		saved := c.fs.freeReg
		r, err := c.compileCall(ex, 2)
		if err != nil {
			return 0, err
		}
		if r != dst {
			c.emit(bytecode.ABC(bytecode.OpMove, dst, r, 0))
		}
		c.freeTo(saved)
		if dst >= c.fs.freeReg {
			c.fs.freeReg = dst + 1
		}
	default:
		return 0, &errors.CompileError{Position: errors.Position{Line: e.Pos().Line}, Msg: "unsupported expression"}
	}
	return dst, nil
}

func (c *Compiler) compileIndexTo(ex *ast.IndexExpr, dst int) (int, error) {
	objReg, err := c.compileExpr(ex.Object)
	if err != nil {
		return 0, err
	}
	release := c.protect(objReg)
	defer release()
	keyRK, err := c.compileExprRK(ex.Key)
	if err != nil {
		return 0, err
	}
	c.emit(bytecode.ABC(bytecode.OpGetTable, dst, objReg, keyRK))
	return dst, nil
}

var binOpcode = map[string]bytecode.OpCode{
	"+": bytecode.OpAdd, "-": bytecode.OpSub, "*": bytecode.OpMul,
	"/": bytecode.OpDiv, "%": bytecode.OpMod, "^": bytecode.OpPow,
	"==": bytecode.OpEq, "<": bytecode.OpLt, "<=": bytecode.OpLe,
}

func (c *Compiler) compileBinaryTo(ex *ast.BinaryExpr, dst int) (int, error) {
	switch ex.Op {
	case "and":
		return c.compileAndTo(ex, dst)
	case "or":
		return c.compileOrTo(ex, dst)
	case "..":
		return c.compileConcatTo(ex, dst)
	case "~=":
		// OpEq: "if (RK(B)==RK(C)) != A then pc++". A=0 makes the jump
		// execute (dst=true, see emitBoolFromTest) exactly when the sides
		// are NOT equal, i.e. the ~= result.
		lhs, err := c.compileExprRK(ex.Left)
		if err != nil {
			return 0, err
		}
		rhs, err := c.compileExprRK(ex.Right)
		if err != nil {
			return 0, err
		}
		c.emit(bytecode.ABC(bytecode.OpEq, 0, lhs, rhs))
		c.emitBoolFromTest(dst)
		return dst, nil
	case ">":
		lhs, err := c.compileExprRK(ex.Right)
		if err != nil {
			return 0, err
		}
		rhs, err := c.compileExprRK(ex.Left)
		if err != nil {
			return 0, err
		}
		c.emit(bytecode.ABC(bytecode.OpLt, 1, lhs, rhs))
		c.emitBoolFromTest(dst)
		return dst, nil
	case ">=":
		lhs, err := c.compileExprRK(ex.Right)
		if err != nil {
			return 0, err
		}
		rhs, err := c.compileExprRK(ex.Left)
		if err != nil {
			return 0, err
		}
		c.emit(bytecode.ABC(bytecode.OpLe, 1, lhs, rhs))
		c.emitBoolFromTest(dst)
		return dst, nil
	case "==", "<", "<=":
		// A=1 makes the jump execute (dst=true) exactly when the
		// comparison holds.
		lhs, err := c.compileExprRK(ex.Left)
		if err != nil {
			return 0, err
		}
		rhs, err := c.compileExprRK(ex.Right)
		if err != nil {
			return 0, err
		}
		c.emit(bytecode.ABC(binOpcode[ex.Op], 1, lhs, rhs))
		c.emitBoolFromTest(dst)
		return dst, nil
	default:
		op, ok := binOpcode[ex.Op]
		if !ok {
			return 0, &errors.CompileError{Position: errors.Position{Line: ex.Position.Line}, Msg: "unknown operator " + ex.Op}
		}
		lhs, err := c.compileExprRK(ex.Left)
		if err != nil {
			return 0, err
		}
		rhs, err := c.compileExprRK(ex.Right)
		if err != nil {
			return 0, err
		}
		c.emit(bytecode.ABC(op, dst, lhs, rhs))
		return dst, nil
	}
}

// emitBoolFromTest follows a comparison opcode with the standard Lua
// idiom: an unconditional JMP over a LOADBOOL-false, landing on a
// LOADBOOL-true. OpEq/OpLt/OpLe ("if cond != A then pc++") fall through
// into that JMP -- taking it, landing on dst=true -- exactly when
// cond == bool(A); otherwise the JMP is skipped and dst=false.
func (c *Compiler) emitBoolFromTest(dst int) {
	c.emit(bytecode.AsBx(bytecode.OpJmp, 0, 1))
	c.emit(bytecode.ABC(bytecode.OpLoadBool, dst, 0, 1))
	c.emit(bytecode.ABC(bytecode.OpLoadBool, dst, 1, 0))
}

// compileAndTo: OpTest ("if bool(R(A)) != C then pc++") falls through to
// the jump -- taking it, which skips the right operand and keeps the
// falsy left value in dst -- exactly when bool(R(dst)) == C, so C=0
// selects "falsy".
func (c *Compiler) compileAndTo(ex *ast.BinaryExpr, dst int) (int, error) {
	if _, err := c.compileExprTo(ex.Left, dst); err != nil {
		return 0, err
	}
	c.emit(bytecode.ABC(bytecode.OpTest, dst, 0, 0))
	skip := c.emitJump()
	if _, err := c.compileExprTo(ex.Right, dst); err != nil {
		return 0, err
	}
	c.patchJumpToHere(skip)
	return dst, nil
}

// compileOrTo: C=1 takes the jump -- skipping the right operand, keeping
// the truthy left value -- exactly when R(dst) is truthy.
func (c *Compiler) compileOrTo(ex *ast.BinaryExpr, dst int) (int, error) {
	if _, err := c.compileExprTo(ex.Left, dst); err != nil {
		return 0, err
	}
	c.emit(bytecode.ABC(bytecode.OpTest, dst, 0, 1))
	skip := c.emitJump()
	if _, err := c.compileExprTo(ex.Right, dst); err != nil {
		return 0, err
	}
	c.patchJumpToHere(skip)
	return dst, nil
}

func (c *Compiler) compileConcatTo(ex *ast.BinaryExpr, dst int) (int, error) {
	// Lua folds a whole right-associative `..` chain into one CONCAT
	// spanning consecutive registers; we approximate that by flattening
	// the chain here rather than nesting register-to-register concats.
	operands := flattenConcat(ex)
	base := c.fs.freeReg
	if dst < base {
		base = dst
	}
	reg := base
	for _, o := range operands {
		release := c.protectRange(base, reg)
		r, err := c.compileExprTo(o, reg)
		release()
		if err != nil {
			return 0, err
		}
		reg = r + 1
	}
	c.emit(bytecode.ABC(bytecode.OpConcat, dst, base, base+len(operands)-1))
	c.freeTo(base)
	if dst >= c.fs.freeReg {
		c.fs.freeReg = dst + 1
	}
	return dst, nil
}

func flattenConcat(e ast.Expr) []ast.Expr {
	bin, ok := e.(*ast.BinaryExpr)
	if !ok || bin.Op != ".." {
		return []ast.Expr{e}
	}
	left := flattenConcat(bin.Left)
	right := flattenConcat(bin.Right)
	return append(left, right...)
}

var unOpcode = map[string]bytecode.OpCode{
	"-": bytecode.OpUnm, "not": bytecode.OpNot, "#": bytecode.OpLen,
}

func (c *Compiler) compileUnaryTo(ex *ast.UnaryExpr, dst int) (int, error) {
	op, ok := unOpcode[ex.Op]
	if !ok {
		return 0, &errors.CompileError{Position: errors.Position{Line: ex.Position.Line}, Msg: "unknown unary operator " + ex.Op}
	}
	operandReg, err := c.compileExpr(ex.Operand)
	if err != nil {
		return 0, err
	}
	c.emit(bytecode.ABC(op, dst, operandReg, 0))
	return dst, nil
}

func (c *Compiler) compileTableTo(ex *ast.TableExpr, dst int) (int, error) {
	c.emit(bytecode.ABC(bytecode.OpNewTable, dst, 0, 0))
	// Field/array-item compilation below allocates scratch registers via
	// c.fs.freeReg; callers don't always have bumped freeReg past dst
	// before handing it to us (e.g. a not-yet-declared local's target
	// register), so without this the first scratch register could alias
	// dst itself and clobber the table reference mid-construction.
	if c.fs.freeReg <= dst {
		c.fs.freeReg = dst + 1
	}
	arrayIdx := 0
	pendingArray := []ast.Expr{}
	flushArray := func() error {
		if len(pendingArray) == 0 {
			return nil
		}
		base := c.fs.freeReg
		reg := base
		for i, item := range pendingArray {
			isLast := i == len(pendingArray)-1
			if isLast && isMultiExpr(item) {
				n, err := c.compileExprMulti(item, reg, -1)
				if err != nil {
					return err
				}
				if n < 0 {
					c.emit(bytecode.ABC(bytecode.OpSetList, dst, 0, 1))
					c.freeTo(base)
					pendingArray = nil
					return nil
				}
				reg += n
				continue
			}
			r, err := c.compileExprTo(item, reg)
			if err != nil {
				return err
			}
			reg = r + 1
		}
		count := reg - base
		c.emit(bytecode.ABC(bytecode.OpSetList, dst, count, 1))
		arrayIdx += count
		c.freeTo(base)
		pendingArray = nil
		return nil
	}
	for _, f := range ex.Fields {
		if f.Key == nil {
			pendingArray = append(pendingArray, f.Value)
			continue
		}
		if err := flushArray(); err != nil {
			return 0, err
		}
		release := c.protect(dst)
		keyRK, err := c.compileExprRK(f.Key)
		if err != nil {
			release()
			return 0, err
		}
		valReg, err := c.compileExpr(f.Value)
		release()
		if err != nil {
			return 0, err
		}
		c.emit(bytecode.ABC(bytecode.OpSetTable, dst, keyRK, valReg))
		c.freeTo(valReg)
	}
	if err := flushArray(); err != nil {
		return 0, err
	}
	return dst, nil
}

// compileExprMulti compiles a call or vararg expression into consecutive
// registers starting at base, requesting `want` results (-1 = all
// available). It returns the number of registers actually filled, or -1
// if the result count is open-ended (want was -1).
func (c *Compiler) compileExprMulti(e ast.Expr, base, want int) (int, error) {
	switch ex := e.(type) {
	case *ast.CallExpr:
		return c.compileCallMulti(ex, base, want)
	case *ast.VarargExpr:
		b := want + 2
		if want < 0 {
			b = 0
		}
		c.emit(bytecode.ABC(bytecode.OpVararg, base, b, 0))
		c.fs.freeReg = base + maxInt(want, 0)
		if want < 0 {
			return -1, nil
		}
		return want, nil
	default:
		r, err := c.compileExprTo(e, base)
		if err != nil {
			return 0, err
		}
		_ = r
		return 1, nil
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// compileCall compiles a call expression for its first result only
// (nresults=2 means 1 value) and returns the register holding it.
func (c *Compiler) compileCall(ex *ast.CallExpr, nresults int) (int, error) {
	base := c.fs.freeReg
	nargs, err := c.compileCallSetup(ex, base)
	if err != nil {
		return 0, err
	}
	c.emit(bytecode.ABC(bytecode.OpCall, base, nargs, nresults))
	if nresults == 0 {
		c.freeTo(base)
	} else {
		c.fs.freeReg = base + nresults - 1
	}
	return base, nil
}

// compileCallMulti compiles a call requesting `want` results (-1 = all)
// starting at base, returning the count filled (-1 if open-ended).
func (c *Compiler) compileCallMulti(ex *ast.CallExpr, base, want int) (int, error) {
	nargs, err := c.compileCallSetup(ex, base)
	if err != nil {
		return 0, err
	}
	cArg := want + 1
	if want < 0 {
		cArg = 0
	}
	c.emit(bytecode.ABC(bytecode.OpCall, base, nargs, cArg))
	if want < 0 {
		c.fs.freeReg = base
		return -1, nil
	}
	c.fs.freeReg = base + want
	return want, nil
}

// compileCallSetup places the callee (and, for method calls, self) plus
// all arguments into consecutive registers starting at base, returning
// the B operand for OpCall (args count + 1, 0 meaning "to top of stack").
func (c *Compiler) compileCallSetup(ex *ast.CallExpr, base int) (int, error) {
	c.fs.freeReg = base
	if _, err := c.allocReg(); err != nil { // callee / self-call receiver slot
		return 0, err
	}
	argStart := base + 1
	if ex.Method != "" {
		calleeReg, err := c.compileExpr(ex.Callee)
		if err != nil {
			return 0, err
		}
		keyIdx := c.stringConstant(ex.Method)
		c.emit(bytecode.ABC(bytecode.OpSelf, base, calleeReg, bytecode.RKConst(keyIdx)))
		c.fs.freeReg = base + 2
		argStart = base + 2
	} else {
		if _, err := c.compileExprTo(ex.Callee, base); err != nil {
			return 0, err
		}
	}
	release := c.protectRange(base, argStart)
	defer release()
	reg := argStart
	openEnded := false
	for i, a := range ex.Args {
		isLast := i == len(ex.Args)-1
		if isLast && isMultiExpr(a) {
			n, err := c.compileExprMulti(a, reg, -1)
			if err != nil {
				return 0, err
			}
			if n < 0 {
				openEnded = true
				break
			}
			reg += n
			continue
		}
		r, err := c.compileExprTo(a, reg)
		if err != nil {
			return 0, err
		}
		reg = r + 1
	}
	if openEnded {
		return 0, nil
	}
	nargs := reg - base - 1 // registers after the callee slot (self included)
	c.fs.freeReg = reg
	return nargs + 1, nil
}

func (c *Compiler) compileFunctionExpr(fn *ast.FunctionExpr) (arena.Handle, error) {
	c.pushFunc(fn.IsVararg)
	c.fs.proto.NumParams = uint8(len(fn.Params))
	c.pushBlock(false)
	for _, p := range fn.Params {
		if _, err := c.declareLocal(p); err != nil {
			return arena.Handle{}, err
		}
	}
	if err := c.compileBlock(fn.Body); err != nil {
		return arena.Handle{}, err
	}
	c.emit(bytecode.ABC(bytecode.OpReturn, 0, 1, 0))
	c.popBlock()
	proto := c.popFunc()
	return c.h.NewProto(proto), nil
}
