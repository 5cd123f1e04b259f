package vm

import (
	"github.com/iGentAI/ferrous/pkg/arena"
	"github.com/iGentAI/ferrous/pkg/bytecode"
	"github.com/iGentAI/ferrous/pkg/errors"
	"github.com/iGentAI/ferrous/pkg/heap"
	"github.com/iGentAI/ferrous/pkg/value"
)

// getRK resolves an RK-encoded operand: a constant-pool reference if its
// high bit is set, otherwise a register relative to base.
func getRK(proto *heap.FunctionProto, stack []value.Value, base, rk int) value.Value {
	if idx, isConst := bytecode.IsConstant(rk); isConst {
		return proto.Constants[idx]
	}
	return stack[base+rk]
}

// runFrame executes the call frame at th.CallFrames[frameIndex] (already
// pushed by the caller) until it returns, and reports its results.
// top tracks the Lua "stack top" convention for open-ended B=0/C=0
// operand encodings (OpCall/OpReturn/OpVararg/OpSetList): the end of the
// most recent multi-value-producing instruction's result range.
func (vm *VM) runFrame(threadHandle arena.Handle, frameIndex int, varargs []value.Value) ([]value.Value, error) {
	th, ok := vm.H.GetThread(threadHandle)
	if !ok {
		return nil, errors.NewInvalidHandle("vm.runFrame")
	}
	frame := &th.CallFrames[frameIndex]
	closure, ok := vm.H.GetClosure(frame.Closure)
	if !ok {
		return nil, errors.NewInvalidHandle("vm.runFrame")
	}
	proto, ok := vm.H.GetProto(closure.Proto)
	if !ok {
		return nil, errors.NewInvalidHandle("vm.runFrame")
	}
	base := frame.BaseRegister
	top := base

	for {
		if vm.Tracker != nil {
			if err := vm.Tracker.CountInstruction(); err != nil {
				return nil, err
			}
		}
		if frame.PC >= len(proto.Bytecode) {
			return nil, nil
		}
		ins := proto.Bytecode[frame.PC]
		frame.PC++
		stack := th.Stack

		switch ins.OpCode() {
		case bytecode.OpMove:
			stack[base+ins.A()] = stack[base+ins.B()]

		case bytecode.OpLoadK:
			stack[base+ins.A()] = proto.Constants[ins.Bx()]

		case bytecode.OpLoadBool:
			stack[base+ins.A()] = value.Bool(ins.B() != 0)
			if ins.C() != 0 {
				frame.PC++
			}

		case bytecode.OpLoadNil:
			stack[base+ins.A()] = value.Nil

		case bytecode.OpGetUpval:
			v, err := vm.readUpvalue(th, closure.Upvalues[ins.B()])
			if err != nil {
				return nil, err
			}
			stack[base+ins.A()] = v

		case bytecode.OpSetUpval:
			if err := vm.writeUpvalue(th, closure.Upvalues[ins.B()], stack[base+ins.A()]); err != nil {
				return nil, err
			}

		case bytecode.OpGetGlobal:
			name := proto.Constants[ins.Bx()]
			v, err := vm.H.GetTableField(vm.H.Globals(), name)
			if err != nil {
				return nil, err
			}
			stack[base+ins.A()] = v

		case bytecode.OpSetGlobal:
			name := proto.Constants[ins.Bx()]
			if err := vm.H.SetTableField(vm.H.Globals(), name, stack[base+ins.A()]); err != nil {
				return nil, err
			}

		case bytecode.OpGetTable:
			obj := stack[base+ins.B()]
			key := getRK(proto, stack, base, ins.C())
			v, err := vm.index(obj, key)
			if err != nil {
				return nil, vm.withPos(err, proto, frame.PC-1)
			}
			stack[base+ins.A()] = v

		case bytecode.OpSetTable:
			obj := stack[base+ins.A()]
			key := getRK(proto, stack, base, ins.B())
			val := getRK(proto, stack, base, ins.C())
			if err := vm.newindex(obj, key, val); err != nil {
				return nil, vm.withPos(err, proto, frame.PC-1)
			}

		case bytecode.OpNewTable:
			stack[base+ins.A()] = value.TableFromHandle(vm.H.NewTable())

		case bytecode.OpSelf:
			recv := stack[base+ins.B()]
			key := getRK(proto, stack, base, ins.C())
			fn, err := vm.index(recv, key)
			if err != nil {
				return nil, vm.withPos(err, proto, frame.PC-1)
			}
			stack[base+ins.A()+1] = recv
			stack[base+ins.A()] = fn

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod, bytecode.OpPow:
			lhs := getRK(proto, stack, base, ins.B())
			rhs := getRK(proto, stack, base, ins.C())
			result, err := vm.arith(arithOpName(ins.OpCode()), lhs, rhs)
			if err != nil {
				return nil, vm.withPos(err, proto, frame.PC-1)
			}
			stack[base+ins.A()] = result

		case bytecode.OpUnm:
			result, err := vm.unm(stack[base+ins.B()])
			if err != nil {
				return nil, vm.withPos(err, proto, frame.PC-1)
			}
			stack[base+ins.A()] = result

		case bytecode.OpNot:
			stack[base+ins.A()] = value.Bool(!stack[base+ins.B()].Truthy())

		case bytecode.OpLen:
			result, err := vm.length(stack[base+ins.B()])
			if err != nil {
				return nil, vm.withPos(err, proto, frame.PC-1)
			}
			stack[base+ins.A()] = result

		case bytecode.OpConcat:
			b, c := ins.B(), ins.C()
			operands := make([]value.Value, 0, c-b+1)
			for r := b; r <= c; r++ {
				operands = append(operands, stack[base+r])
			}
			result, err := vm.concat(operands)
			if err != nil {
				return nil, vm.withPos(err, proto, frame.PC-1)
			}
			stack[base+ins.A()] = result

		case bytecode.OpJmp:
			frame.PC += ins.SBx()

		case bytecode.OpEq:
			lhs := getRK(proto, stack, base, ins.B())
			rhs := getRK(proto, stack, base, ins.C())
			eq, err := vm.equals(lhs, rhs)
			if err != nil {
				return nil, vm.withPos(err, proto, frame.PC-1)
			}
			if eq != (ins.A() != 0) {
				frame.PC++
			}

		case bytecode.OpLt:
			lhs := getRK(proto, stack, base, ins.B())
			rhs := getRK(proto, stack, base, ins.C())
			lt, err := vm.less(lhs, rhs)
			if err != nil {
				return nil, vm.withPos(err, proto, frame.PC-1)
			}
			if lt != (ins.A() != 0) {
				frame.PC++
			}

		case bytecode.OpLe:
			lhs := getRK(proto, stack, base, ins.B())
			rhs := getRK(proto, stack, base, ins.C())
			le, err := vm.lessEqual(lhs, rhs)
			if err != nil {
				return nil, vm.withPos(err, proto, frame.PC-1)
			}
			if le != (ins.A() != 0) {
				frame.PC++
			}

		case bytecode.OpTest:
			truthy := stack[base+ins.A()].Truthy()
			if truthy != (ins.C() != 0) {
				frame.PC++
			}

		case bytecode.OpTestSet:
			truthy := stack[base+ins.B()].Truthy()
			if truthy == (ins.C() != 0) {
				stack[base+ins.A()] = stack[base+ins.B()]
			} else {
				frame.PC++
			}

		case bytecode.OpCall:
			_, newTop, err := vm.execCall(th, proto, base, ins, top)
			if err != nil {
				return nil, vm.withPos(err, proto, frame.PC-1)
			}
			top = newTop

		case bytecode.OpTailCall:
			results, _, err := vm.execCall(th, proto, base, ins, top)
			if err != nil {
				return nil, vm.withPos(err, proto, frame.PC-1)
			}
			return results, nil

		case bytecode.OpReturn:
			return vm.collectRange(stack, base, ins.A(), ins.B(), top), nil

		case bytecode.OpForPrep:
			a := base + ins.A()
			control, _ := vm.toNumber(stack[a])
			step, _ := vm.toNumber(stack[a+2])
			stack[a] = value.Number(control - step)
			frame.PC += ins.SBx()

		case bytecode.OpForLoop:
			a := base + ins.A()
			control, _ := vm.toNumber(stack[a])
			limit, _ := vm.toNumber(stack[a+1])
			step, _ := vm.toNumber(stack[a+2])
			control += step
			cond := control <= limit
			if step < 0 {
				cond = control >= limit
			}
			if cond {
				stack[a] = value.Number(control)
				stack[a+3] = value.Number(control)
				frame.PC += ins.SBx()
			}

		case bytecode.OpTForLoop:
			a := base + ins.A()
			c := ins.C()
			results, err := vm.Call(stack[a], []value.Value{stack[a+1], stack[a+2]})
			if err != nil {
				return nil, vm.withPos(err, proto, frame.PC-1)
			}
			for i := 0; i < c; i++ {
				if i < len(results) {
					stack[a+3+i] = results[i]
				} else {
					stack[a+3+i] = value.Nil
				}
			}
			if stack[a+3].IsNil() {
				frame.PC++
			} else {
				stack[a+2] = stack[a+3]
			}

		case bytecode.OpSetList:
			a := ins.A()
			count := ins.B()
			if count == 0 {
				count = top - (base + a + 1)
			}
			tbl := stack[base+a]
			n, _ := vm.H.TableLen(tbl.AsHandle())
			for i := 0; i < count; i++ {
				if err := vm.H.SetTableField(tbl.AsHandle(), value.Int(int64(n+i+1)), stack[base+a+1+i]); err != nil {
					return nil, vm.withPos(err, proto, frame.PC-1)
				}
			}

		case bytecode.OpClose:
			if err := vm.H.CloseThreadUpvalues(threadHandle, base+ins.A()); err != nil {
				return nil, err
			}

		case bytecode.OpClosure:
			ch, err := vm.buildClosure(threadHandle, base, closure, ins.Bx(), proto)
			if err != nil {
				return nil, err
			}
			stack[base+ins.A()] = value.ClosureFromHandle(ch)

		case bytecode.OpVararg:
			a, b := ins.A(), ins.B()
			n := b - 1
			if b == 0 {
				n = len(varargs)
			}
			for i := 0; i < n; i++ {
				if i < len(varargs) {
					stack[base+a+i] = varargs[i]
				} else {
					stack[base+a+i] = value.Nil
				}
			}
			if b == 0 {
				top = base + a + n
			}

		default:
			return nil, errors.NewInvalidHandle("vm.runFrame: unknown opcode")
		}
	}
}

func arithOpName(op bytecode.OpCode) string {
	switch op {
	case bytecode.OpAdd:
		return "add"
	case bytecode.OpSub:
		return "sub"
	case bytecode.OpMul:
		return "mul"
	case bytecode.OpDiv:
		return "div"
	case bytecode.OpMod:
		return "mod"
	case bytecode.OpPow:
		return "pow"
	}
	return ""
}

// collectRange gathers R(base+a)..R(base+a+b-2), or R(base+a)..top-1 when
// b==0 (the "return to top" open-ended encoding).
func (vm *VM) collectRange(stack []value.Value, base, a, b, top int) []value.Value {
	if b == 1 {
		return nil
	}
	start := base + a
	end := start + b - 2
	if b == 0 {
		end = top - 1
	}
	if end < start {
		return nil
	}
	out := make([]value.Value, end-start+1)
	copy(out, stack[start:end+1])
	return out
}

// execCall performs an OpCall/OpTailCall: resolve args per B's
// open-ended convention, invoke the callee, place results at A per C's
// convention, and return the new "top" if results were open-ended.
func (vm *VM) execCall(th *heap.Thread, proto *heap.FunctionProto, base int, ins bytecode.Instruction, top int) ([]value.Value, int, error) {
	a, b, c := ins.A(), ins.B(), ins.C()
	calleeReg := base + a
	callee := th.Stack[calleeReg]
	var args []value.Value
	if b == 0 {
		args = append([]value.Value{}, th.Stack[calleeReg+1:top]...)
	} else {
		args = append([]value.Value{}, th.Stack[calleeReg+1:calleeReg+b]...)
	}
	results, err := vm.Call(callee, args)
	if err != nil {
		return nil, top, err
	}
	newTop := top
	if c == 0 {
		th.EnsureStack(calleeReg + len(results) + 1)
		for i, r := range results {
			th.Stack[calleeReg+i] = r
		}
		newTop = calleeReg + len(results)
	} else {
		want := c - 1
		th.EnsureStack(calleeReg + want + 1)
		for i := 0; i < want; i++ {
			if i < len(results) {
				th.Stack[calleeReg+i] = results[i]
			} else {
				th.Stack[calleeReg+i] = value.Nil
			}
		}
	}
	return results, newTop, nil
}

// readUpvalue/writeUpvalue dereference an upvalue handle, whether still
// open (pointing into some thread's live stack) or already closed.
func (vm *VM) readUpvalue(th *heap.Thread, uh arena.Handle) (value.Value, error) {
	uv, ok := vm.H.GetUpvalue(uh)
	if !ok {
		return value.Nil, errors.NewInvalidHandle("vm.readUpvalue")
	}
	if uv.Open {
		return th.Stack[uv.StackIndex], nil
	}
	return uv.Value, nil
}

func (vm *VM) writeUpvalue(th *heap.Thread, uh arena.Handle, v value.Value) error {
	uv, ok := vm.H.GetUpvalue(uh)
	if !ok {
		return errors.NewInvalidHandle("vm.writeUpvalue")
	}
	if uv.Open {
		th.Stack[uv.StackIndex] = v
		return nil
	}
	uv.Value = v
	return nil
}

// withPos attaches the current instruction's source line, when debug
// info is present, to errors bubbling up without position info yet.
func (vm *VM) withPos(err error, proto *heap.FunctionProto, pc int) error {
	if proto.Debug == nil || pc >= len(proto.Debug.Lines) {
		return err
	}
	line := proto.Debug.Lines[pc]
	switch e := err.(type) {
	case *errors.TypeError:
		if e.Line == 0 {
			e.Line = line
		}
		return e
	case *errors.RuntimeError:
		if e.Line == 0 {
			e.Line = line
		}
		return e
	default:
		return err
	}
}
