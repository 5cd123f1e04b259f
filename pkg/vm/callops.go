package vm

import (
	"github.com/iGentAI/ferrous/pkg/arena"
	"github.com/iGentAI/ferrous/pkg/errors"
	"github.com/iGentAI/ferrous/pkg/heap"
	"github.com/iGentAI/ferrous/pkg/value"
)

// frameBase computes where the next pushed call frame's register window
// starts: immediately after the currently-topmost frame's own window,
// matching paserati's non-overlapping window-per-call layout
// (spec.md §4.6's register-window model, realized here as a growth
// cursor over one thread's shared stack rather than separate arenas).
func (vm *VM) frameBase(th *heap.Thread) int {
	if len(th.CallFrames) == 0 {
		return 0
	}
	top := th.CallFrames[len(th.CallFrames)-1]
	closure, ok := vm.H.GetClosure(top.Closure)
	if !ok {
		return top.BaseRegister
	}
	proto, ok := vm.H.GetProto(closure.Proto)
	if !ok {
		return top.BaseRegister
	}
	return top.BaseRegister + int(proto.MaxStackSize)
}

// pushClosureFrame pushes one call frame for fn onto threadHandle's
// thread and runs it to completion (Go-level recursion stands in for an
// explicit frame stack: each nested Lua call gets its own runFrame
// invocation and its own disjoint register window on the shared stack).
func (vm *VM) pushClosureFrame(threadHandle arena.Handle, fn value.Value, args []value.Value) ([]value.Value, error) {
	th, ok := vm.H.GetThread(threadHandle)
	if !ok {
		return nil, errors.NewInvalidHandle("vm.pushClosureFrame")
	}
	closure, ok := vm.H.GetClosure(fn.AsHandle())
	if !ok {
		return nil, errors.NewInvalidHandle("vm.pushClosureFrame")
	}
	proto, ok := vm.H.GetProto(closure.Proto)
	if !ok {
		return nil, errors.NewInvalidHandle("vm.pushClosureFrame")
	}
	base := vm.frameBase(th)
	th.EnsureStack(base + int(proto.MaxStackSize) + 8)
	for i := 0; i < int(proto.NumParams); i++ {
		if i < len(args) {
			th.Stack[base+i] = args[i]
		} else {
			th.Stack[base+i] = value.Nil
		}
	}
	var varargs []value.Value
	if proto.IsVararg && len(args) > int(proto.NumParams) {
		varargs = append(varargs, args[proto.NumParams:]...)
	}
	frameIndex := len(th.CallFrames)
	th.CallFrames = append(th.CallFrames, heap.CallFrame{
		Closure:         fn.AsHandle(),
		BaseRegister:    base,
		ExpectedReturns: -1,
		Kind:            heap.FrameNormal,
	})
	results, err := vm.runFrame(threadHandle, frameIndex, varargs)
	th, _ = vm.H.GetThread(threadHandle)
	th.CallFrames = th.CallFrames[:frameIndex]
	vm.H.CloseThreadUpvalues(threadHandle, base)
	return results, err
}

// buildClosure instantiates proto.NestedProtos[protoIdx] as a closure,
// resolving each upvalue descriptor against the currently executing
// frame: InParentStack captures a (possibly still-open) local from the
// running frame's own window; otherwise the descriptor is copied through
// from the running closure's own upvalue list (spec.md §4.2's "chained"
// upvalue capture for functions nested more than one level deep).
func (vm *VM) buildClosure(threadHandle arena.Handle, base int, parentClosure *heap.Closure, protoIdx int, parentProto *heap.FunctionProto) (arena.Handle, error) {
	childProtoHandle := parentProto.NestedProtos[protoIdx]
	childProto, ok := vm.H.GetProto(childProtoHandle)
	if !ok {
		return arena.Handle{}, errors.NewInvalidHandle("vm.buildClosure")
	}
	ups := make([]arena.Handle, len(childProto.UpvalueDescriptors))
	for i, d := range childProto.UpvalueDescriptors {
		if d.InParentStack {
			uh, err := vm.H.FindOrCreateUpvalue(threadHandle, base+int(d.Index))
			if err != nil {
				return arena.Handle{}, err
			}
			ups[i] = uh
		} else {
			ups[i] = parentClosure.Upvalues[d.Index]
		}
	}
	return vm.H.NewClosure(childProtoHandle, ups), nil
}
