// Package bytecode defines Ferrous's packed 32-bit instruction format and
// opcode set, modeled directly on Lua 5.1's register machine (spec.md
// §3/§4.5). It has no dependency on heap or vm so both can import it
// without creating a cycle: the compiler emits Instructions, the heap
// stores them inside FunctionProto, and the VM decodes and dispatches
// them.
package bytecode

import "fmt"

// OpCode identifies the operation an Instruction performs.
type OpCode uint8

const (
	OpMove       OpCode = iota // A B: R(A) = R(B)
	OpLoadK                    // A Bx: R(A) = K(Bx)
	OpLoadBool                 // A B: R(A) = (B != 0)
	OpLoadNil                  // A: R(A) = nil
	OpGetUpval                 // A B: R(A) = Upvalue[B]
	OpSetUpval                 // A B: Upvalue[B] = R(A)
	OpGetGlobal                // A Bx: R(A) = Globals[K(Bx)]
	OpSetGlobal                // A Bx: Globals[K(Bx)] = R(A)
	OpGetTable                 // A B C: R(A) = R(B)[RK(C)]
	OpSetTable                 // A B C: R(A)[RK(B)] = RK(C)
	OpNewTable                 // A: R(A) = {}
	OpSelf                     // A B C: R(A+1) = R(B); R(A) = R(B)[RK(C)]
	OpAdd                      // A B C: R(A) = RK(B) + RK(C)
	OpSub                      // A B C: R(A) = RK(B) - RK(C)
	OpMul                      // A B C: R(A) = RK(B) * RK(C)
	OpDiv                      // A B C: R(A) = RK(B) / RK(C)
	OpMod                      // A B C: R(A) = RK(B) % RK(C)
	OpPow                      // A B C: R(A) = RK(B) ^ RK(C)
	OpUnm                      // A B: R(A) = -R(B)
	OpNot                      // A B: R(A) = not R(B)
	OpLen                      // A B: R(A) = #R(B)
	OpConcat                   // A B C: R(A) = R(B) .. ... .. R(C)
	OpJmp                      // sBx: pc += sBx
	OpEq                       // A B C: if (RK(B) == RK(C)) != A then pc++
	OpLt                       // A B C: if (RK(B) <  RK(C)) != A then pc++
	OpLe                       // A B C: if (RK(B) <= RK(C)) != A then pc++
	OpTest                     // A C: if bool(R(A)) != C then pc++
	OpTestSet                  // A B C: if bool(R(B)) == C then R(A) = R(B) else pc++
	OpCall                     // A B C: call R(A) with B-1 args, C-1 results
	OpTailCall                 // A B C: tail-call R(A) with B-1 args
	OpReturn                   // A B: return R(A)..R(A+B-2)
	OpForLoop                  // A sBx: numeric for loop step
	OpForPrep                  // A sBx: numeric for loop setup
	OpTForLoop                 // A C: generic for loop step
	OpSetList                  // A B C: array constructor batch store
	OpClose                    // A: close upvalues >= R(A)
	OpClosure                  // A Bx: R(A) = closure(proto[Bx])
	OpVararg                   // A B: R(A)..R(A+B-2) = varargs
)

var opNames = [...]string{
	"MOVE", "LOADK", "LOADBOOL", "LOADNIL", "GETUPVAL", "SETUPVAL",
	"GETGLOBAL", "SETGLOBAL", "GETTABLE", "SETTABLE", "NEWTABLE", "SELF",
	"ADD", "SUB", "MUL", "DIV", "MOD", "POW", "UNM", "NOT", "LEN", "CONCAT",
	"JMP", "EQ", "LT", "LE", "TEST", "TESTSET", "CALL", "TAILCALL",
	"RETURN", "FORLOOP", "FORPREP", "TFORLOOP", "SETLIST", "CLOSE",
	"CLOSURE", "VARARG",
}

func (op OpCode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("OP(%d)", op)
}

// Field widths, matching spec.md §3's bit layout exactly:
// opcode(6) A(8) [B(9) C(9) | Bx(18) | sBx(18) biased by 2^17].
const (
	SizeOp = 6
	SizeA  = 8
	SizeB  = 9
	SizeC  = 9
	SizeBx = SizeB + SizeC // 18

	MaxA  = 1<<SizeA - 1
	MaxB  = 1<<SizeB - 1
	MaxC  = 1<<SizeC - 1
	MaxBx = 1<<SizeBx - 1

	sBxBias = 1 << (SizeBx - 1) // 2^17, so sBx spans [-2^17, 2^17-1]

	// RKBit marks an RK-encoded operand (B or C) as a constant index
	// rather than a register index.
	RKBit = 1 << (SizeB - 1) // high bit of the 9-bit field
	RKMax = RKBit - 1
)

const (
	shiftOp = 0
	shiftA  = shiftOp + SizeOp
	shiftB  = shiftA + SizeA + SizeC
	shiftC  = shiftA + SizeA
	shiftBx = shiftA + SizeA
)

// Instruction is one packed 32-bit bytecode word.
type Instruction uint32

// ABC encodes an A/B/C-format instruction.
func ABC(op OpCode, a, b, c int) Instruction {
	return Instruction(uint32(op)<<shiftOp | uint32(a&MaxA)<<shiftA | uint32(c&MaxC)<<shiftC | uint32(b&MaxB)<<shiftB)
}

// ABx encodes an A/Bx-format instruction (unsigned 18-bit immediate).
func ABx(op OpCode, a, bx int) Instruction {
	return Instruction(uint32(op)<<shiftOp | uint32(a&MaxA)<<shiftA | uint32(bx&MaxBx)<<shiftBx)
}

// AsBx encodes an A/sBx-format instruction (signed 18-bit immediate,
// biased by sBxBias so it stores as an unsigned field).
func AsBx(op OpCode, a, sbx int) Instruction {
	return ABx(op, a, sbx+sBxBias)
}

func (i Instruction) OpCode() OpCode { return OpCode(i >> shiftOp & (1<<SizeOp - 1)) }
func (i Instruction) A() int         { return int(i >> shiftA & (1<<SizeA - 1)) }
func (i Instruction) B() int         { return int(i >> shiftB & (1<<SizeB - 1)) }
func (i Instruction) C() int         { return int(i >> shiftC & (1<<SizeC - 1)) }
func (i Instruction) Bx() int        { return int(i >> shiftBx & (1<<SizeBx - 1)) }
func (i Instruction) SBx() int       { return i.Bx() - sBxBias }

// IsConstant reports whether an RK-encoded operand refers to the
// constant pool rather than a register, and returns the constant index.
func IsConstant(rk int) (idx int, isConst bool) {
	if rk&RKBit != 0 {
		return rk & RKMax, true
	}
	return rk, false
}

// RKConst encodes constant index idx as an RK operand.
func RKConst(idx int) int { return idx | RKBit }

func (i Instruction) String() string {
	op := i.OpCode()
	switch op {
	case OpJmp, OpForLoop, OpForPrep:
		return fmt.Sprintf("%-10s A=%d sBx=%d", op, i.A(), i.SBx())
	case OpLoadK, OpGetGlobal, OpSetGlobal, OpClosure:
		return fmt.Sprintf("%-10s A=%d Bx=%d", op, i.A(), i.Bx())
	default:
		return fmt.Sprintf("%-10s A=%d B=%d C=%d", op, i.A(), i.B(), i.C())
	}
}
