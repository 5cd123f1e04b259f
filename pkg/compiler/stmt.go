package compiler

import (
	"github.com/iGentAI/ferrous/pkg/ast"
	"github.com/iGentAI/ferrous/pkg/bytecode"
	"github.com/iGentAI/ferrous/pkg/errors"
	"github.com/iGentAI/ferrous/pkg/value"
)

func (c *Compiler) compileBlock(chunk *ast.Chunk) error {
	for _, s := range chunk.Stmts {
		if err := c.compileStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileStmt(s ast.Statement) error {
	c.curLine = s.Pos().Line
	switch st := s.(type) {
	case *ast.LocalAssignStmt:
		return c.compileLocalAssign(st)
	case *ast.AssignStmt:
		return c.compileAssign(st)
	case *ast.CallStmt:
		_, err := c.compileCall(st.Call, 0)
		return err
	case *ast.DoStmt:
		c.pushBlock(false)
		if err := c.compileBlock(st.Body); err != nil {
			return err
		}
		c.popBlock()
		return nil
	case *ast.IfStmt:
		return c.compileIf(st)
	case *ast.WhileStmt:
		return c.compileWhile(st)
	case *ast.RepeatStmt:
		return c.compileRepeat(st)
	case *ast.NumericForStmt:
		return c.compileNumericFor(st)
	case *ast.GenericForStmt:
		return c.compileGenericFor(st)
	case *ast.FunctionDeclStmt:
		return c.compileFunctionDecl(st)
	case *ast.ReturnStmt:
		return c.compileReturn(st)
	case *ast.BreakStmt:
		return c.compileBreak(st)
	default:
		return &errors.CompileError{Position: errors.Position{Line: s.Pos().Line, Column: s.Pos().Column}, Msg: "unsupported statement"}
	}
}

func (c *Compiler) compileLocalAssign(st *ast.LocalAssignStmt) error {
	base := c.fs.freeReg
	if err := c.compileExprListTo(st.Exprs, len(st.Names), base); err != nil {
		return err
	}
	for i, name := range st.Names {
		c.fs.locals = append(c.fs.locals, localVar{name: name, reg: base + i})
	}
	if base+len(st.Names) > c.fs.freeReg {
		c.fs.freeReg = base + len(st.Names)
	}
	return nil
}

// compileExprListTo evaluates exprs and places exactly `want` values into
// consecutive registers starting at base (padding with nil, truncating
// extras, expanding the last expr if it's a call/vararg and more values
// are wanted than expressions given) -- Lua's multiple-assignment rule.
func (c *Compiler) compileExprListTo(exprs []ast.Expr, want, base int) error {
	if len(exprs) == 0 {
		for i := 0; i < want; i++ {
			c.emit(bytecode.ABC(bytecode.OpLoadNil, base+i, base+i, 0))
		}
		c.freeTo(base)
		c.fs.freeReg = base + want
		return nil
	}
	reg := base
	for i, e := range exprs {
		isLast := i == len(exprs)-1
		if isLast {
			remaining := want - i
			if remaining < 0 {
				remaining = 0
			}
			if isMultiExpr(e) {
				n, err := c.compileExprMulti(e, reg, remaining)
				if err != nil {
					return err
				}
				reg += n
			} else {
				r, err := c.compileExprTo(e, reg)
				if err != nil {
					return err
				}
				reg = r + 1
			}
			continue
		}
		r, err := c.compileExprTo(e, reg)
		if err != nil {
			return err
		}
		reg = r + 1
	}
	for reg < base+want {
		c.emit(bytecode.ABC(bytecode.OpLoadNil, reg, reg, 0))
		reg++
	}
	c.fs.freeReg = base + want
	if c.fs.freeReg < reg {
		c.fs.freeReg = reg
	}
	return nil
}

func isMultiExpr(e ast.Expr) bool {
	switch e.(type) {
	case *ast.CallExpr, *ast.VarargExpr:
		return true
	}
	return false
}

func (c *Compiler) compileAssign(st *ast.AssignStmt) error {
	base := c.fs.freeReg
	if err := c.compileExprListTo(st.Exprs, len(st.Targets), base); err != nil {
		return err
	}
	for i, target := range st.Targets {
		if err := c.compileStoreTo(target, base+i); err != nil {
			return err
		}
	}
	c.freeTo(base)
	return nil
}

// compileStoreTo emits the store instruction(s) assigning R(srcReg) into
// the given assignment target (a local, upvalue, global, or table index).
func (c *Compiler) compileStoreTo(target ast.Expr, srcReg int) error {
	switch t := target.(type) {
	case *ast.NameExpr:
		res := c.resolveVar(c.fs, t.Name)
		switch res.kind {
		case varLocal:
			if res.reg != srcReg {
				c.emit(bytecode.ABC(bytecode.OpMove, res.reg, srcReg, 0))
			}
		case varUpvalue:
			c.emit(bytecode.ABC(bytecode.OpSetUpval, srcReg, res.reg, 0))
		case varGlobal:
			nameIdx := c.stringConstant(t.Name)
			c.emit(bytecode.ABx(bytecode.OpSetGlobal, srcReg, nameIdx))
		}
		return nil
	case *ast.IndexExpr:
		objReg, err := c.compileExpr(t.Object)
		if err != nil {
			return err
		}
		release := c.protect(objReg)
		keyRK, err := c.compileExprRK(t.Key)
		release()
		if err != nil {
			return err
		}
		c.emit(bytecode.ABC(bytecode.OpSetTable, objReg, keyRK, srcReg))
		return nil
	default:
		return &errors.CompileError{Position: errors.Position{Line: target.Pos().Line}, Msg: "cannot assign to this expression"}
	}
}

// compileIf: OpTest(reg,_,0) takes the following jump -- skipping the
// clause body -- exactly when reg is falsy.
func (c *Compiler) compileIf(st *ast.IfStmt) error {
	var endJumps []int
	for i, clause := range st.Clauses {
		condReg, err := c.compileExpr(clause.Cond)
		if err != nil {
			return err
		}
		c.emit(bytecode.ABC(bytecode.OpTest, condReg, 0, 0))
		falseJump := c.emitJump()
		c.freeTo(condReg)
		c.pushBlock(false)
		if err := c.compileBlock(clause.Body); err != nil {
			return err
		}
		c.popBlock()
		hasMore := i < len(st.Clauses)-1 || st.Else != nil
		if hasMore {
			endJumps = append(endJumps, c.emitJump())
		}
		c.patchJumpToHere(falseJump)
	}
	if st.Else != nil {
		c.pushBlock(false)
		if err := c.compileBlock(st.Else); err != nil {
			return err
		}
		c.popBlock()
	}
	for _, j := range endJumps {
		c.patchJumpToHere(j)
	}
	return nil
}

func (c *Compiler) compileWhile(st *ast.WhileStmt) error {
	loopStart := c.pc()
	condReg, err := c.compileExpr(st.Cond)
	if err != nil {
		return err
	}
	c.emit(bytecode.ABC(bytecode.OpTest, condReg, 0, 0))
	exitJump := c.emitJump()
	c.freeTo(condReg)
	c.pushBlock(true)
	if err := c.compileBlock(st.Body); err != nil {
		return err
	}
	block := c.popBlock()
	backJump := c.emitJump()
	c.patchJumpTo(backJump, loopStart)
	c.patchJumpToHere(exitJump)
	for _, j := range block.breakJumps {
		c.patchJumpToHere(j)
	}
	return nil
}

func (c *Compiler) compileRepeat(st *ast.RepeatStmt) error {
	loopStart := c.pc()
	c.pushBlock(true)
	if err := c.compileBlock(st.Body); err != nil {
		return err
	}
	// The until-condition can see locals declared in the body, per Lua 5.1.
	condReg, err := c.compileExpr(st.Cond)
	if err != nil {
		return err
	}
	block := c.popBlock()
	c.emit(bytecode.ABC(bytecode.OpTest, condReg, 0, 0))
	backJump := c.emitJump()
	c.patchJumpTo(backJump, loopStart)
	for _, j := range block.breakJumps {
		c.patchJumpToHere(j)
	}
	return nil
}

func (c *Compiler) compileBreak(st *ast.BreakStmt) error {
	loop := c.innermostLoop()
	if loop == nil {
		return &errors.CompileError{Position: errors.Position{Line: st.Position.Line}, Msg: "break outside a loop"}
	}
	j := c.emitJump()
	loop.breakJumps = append(loop.breakJumps, j)
	return nil
}

func (c *Compiler) compileReturn(st *ast.ReturnStmt) error {
	base := c.fs.freeReg
	if len(st.Exprs) == 0 {
		c.emit(bytecode.ABC(bytecode.OpReturn, base, 1, 0))
		return nil
	}
	last := st.Exprs[len(st.Exprs)-1]
	if len(st.Exprs) == 1 && isMultiExpr(last) {
		n, err := c.compileExprMulti(last, base, -1)
		if err != nil {
			return err
		}
		if n < 0 {
			c.emit(bytecode.ABC(bytecode.OpReturn, base, 0, 0))
		} else {
			c.emit(bytecode.ABC(bytecode.OpReturn, base, n+1, 0))
		}
		return nil
	}
	reg := base
	for i, e := range st.Exprs {
		if i == len(st.Exprs)-1 && isMultiExpr(e) {
			n, err := c.compileExprMulti(e, reg, -1)
			if err != nil {
				return err
			}
			if n < 0 {
				c.emit(bytecode.ABC(bytecode.OpReturn, base, 0, 0))
				return nil
			}
			reg += n
			continue
		}
		r, err := c.compileExprTo(e, reg)
		if err != nil {
			return err
		}
		reg = r + 1
	}
	c.emit(bytecode.ABC(bytecode.OpReturn, base, reg-base+1, 0))
	return nil
}

func (c *Compiler) compileNumericFor(st *ast.NumericForStmt) error {
	base := c.fs.freeReg
	if _, err := c.allocReg(); err != nil { // control var
		return err
	}
	if _, err := c.allocReg(); err != nil { // limit
		return err
	}
	if _, err := c.allocReg(); err != nil { // step
		return err
	}
	if _, err := c.compileExprTo(st.Start, base); err != nil {
		return err
	}
	if _, err := c.compileExprTo(st.Stop, base+1); err != nil {
		return err
	}
	if st.Step != nil {
		if _, err := c.compileExprTo(st.Step, base+2); err != nil {
			return err
		}
	} else {
		idx := c.addConstant(value.Number(1))
		c.emit(bytecode.ABx(bytecode.OpLoadK, base+2, idx))
	}
	prepJump := c.emit(bytecode.AsBx(bytecode.OpForPrep, base, 0))
	loopStart := c.pc()
	c.pushBlock(true)
	loopVarReg, err := c.declareLocal(st.Var)
	if err != nil {
		return err
	}
	_ = loopVarReg
	// base, base+1, base+2 hold the hidden control/limit/step trio that
	// OpForLoop reads and rewrites each iteration; pin them so a nested
	// call or table constructor inside the body can't be handed one of
	// these registers as scratch space.
	release := c.protectRange(base, base+3)
	bodyErr := c.compileBlock(st.Body)
	release()
	if bodyErr != nil {
		return bodyErr
	}
	block := c.popBlock()
	testPC := c.pc()
	loopIns := bytecode.AsBx(bytecode.OpForLoop, base, loopStart-(testPC+1))
	c.emit(loopIns)
	c.patchJumpTo(prepJump, testPC)
	for _, j := range block.breakJumps {
		c.patchJumpToHere(j)
	}
	c.freeTo(base)
	return nil
}

func (c *Compiler) compileGenericFor(st *ast.GenericForStmt) error {
	base := c.fs.freeReg
	if err := c.compileExprListTo(st.Exprs, 3, base); err != nil { // iterator func, state, control
		return err
	}
	c.pushBlock(true)
	varRegs := make([]int, len(st.Names))
	for i, name := range st.Names {
		r, err := c.declareLocal(name)
		if err != nil {
			return err
		}
		varRegs[i] = r
	}
	enterJump := c.emitJump() // first pass goes straight to the iterator call
	loopStart := c.pc()
	// base, base+1, base+2 hold the iterator function/state/control that
	// get re-copied into callBase on every pass; pin them across the body
	// so they survive whatever register churn the body's statements cause.
	release := c.protectRange(base, base+3)
	bodyErr := c.compileBlock(st.Body)
	release()
	if bodyErr != nil {
		return bodyErr
	}
	block := c.popBlock()
	c.patchJumpToHere(enterJump)
	callBase := c.fs.freeReg
	c.emit(bytecode.ABC(bytecode.OpMove, callBase, base, 0))
	c.emit(bytecode.ABC(bytecode.OpMove, callBase+1, base+1, 0))
	c.emit(bytecode.ABC(bytecode.OpMove, callBase+2, base+2, 0))
	c.emit(bytecode.ABC(bytecode.OpCall, callBase, 3, len(st.Names)+1))
	for i, r := range varRegs {
		c.emit(bytecode.ABC(bytecode.OpMove, r, callBase+i, 0))
	}
	c.emit(bytecode.ABC(bytecode.OpTest, varRegs[0], 0, 0))
	exitJump := c.emitJump()
	c.emit(bytecode.ABC(bytecode.OpMove, base+2, varRegs[0], 0))
	backJump := c.emitJump()
	c.patchJumpTo(backJump, loopStart)
	c.patchJumpToHere(exitJump)
	for _, j := range block.breakJumps {
		c.patchJumpToHere(j)
	}
	c.freeTo(base)
	return nil
}

func (c *Compiler) compileFunctionDecl(st *ast.FunctionDeclStmt) error {
	if st.IsLocal {
		reg, err := c.declareLocal(st.LocalName)
		if err != nil {
			return err
		}
		return c.compileFunctionInto(st.Func, reg)
	}
	base := c.fs.freeReg
	if _, err := c.allocReg(); err != nil {
		return err
	}
	if err := c.compileFunctionInto(st.Func, base); err != nil {
		return err
	}
	if err := c.compileStoreTo(st.Target, base); err != nil {
		return err
	}
	c.freeTo(base)
	return nil
}

func (c *Compiler) compileFunctionInto(fn *ast.FunctionExpr, dst int) error {
	protoHandle, err := c.compileFunctionExpr(fn)
	if err != nil {
		return err
	}
	idx := len(c.fs.proto.NestedProtos)
	c.fs.proto.NestedProtos = append(c.fs.proto.NestedProtos, protoHandle)
	c.emit(bytecode.ABx(bytecode.OpClosure, dst, idx))
	return nil
}
