package vm

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/chzyer/readline"
)

// DebugEnv is the environment variable that enables the instruction
// trace: each instruction is disassembled to stderr together with the
// current stack and register contents, and execution pauses for a line of
// input between instructions.
const DebugEnv = "MICA_DEBUG"

// VM executes one function invocation: it owns the evaluation stack and
// the register file, borrows the function's program, and shares the
// module for constant-pool reads and cross-function calls. A VM instance
// lives exactly one call; recursion works because CALL spins up a fresh
// instance over the same module.
type VM struct {
	program []byte
	index   int
	stack   Stack
	regs    []byte
	module  *Module
	debug   bool
}

func newVM(program []byte, args []byte, module *Module) *VM {
	regs := make([]byte, len(args))
	copy(regs, args)
	return &VM{
		program: program,
		regs:    regs,
		module:  module,
		debug:   os.Getenv(DebugEnv) != "",
	}
}

// fault aborts execution with a runtime error. Runtime faults are
// contract violations; nothing catches them below run.
func (vm *VM) fault(format string, args ...any) {
	panic(RuntimeError{Message: fmt.Sprintf(format, args...)})
}

// next consumes and returns the byte at the instruction pointer.
func (vm *VM) next() byte {
	if vm.index >= len(vm.program) {
		vm.fault("unexpected end of program at %d", vm.index)
	}
	b := vm.program[vm.index]
	vm.index++
	return b
}

// nextU16 consumes a big-endian two-byte operand.
func (vm *VM) nextU16() int {
	hi := vm.next()
	lo := vm.next()
	return int(binary.BigEndian.Uint16([]byte{hi, lo}))
}

// nextPayload consumes the four-byte big-endian PUSH_I payload.
func (vm *VM) nextPayload() uint32 {
	if vm.index+4 > len(vm.program) {
		vm.fault("truncated push_i payload at %d", vm.index)
	}
	value := binary.BigEndian.Uint32(vm.program[vm.index:])
	vm.index += 4
	return value
}

func (vm *VM) popByte() byte {
	b, ok := vm.stack.Pop()
	if !ok {
		vm.fault("stack underflow at %d", vm.index)
	}
	return b
}

func (vm *VM) popI32() int32 {
	v, ok := vm.stack.PopI32()
	if !ok {
		vm.fault("stack underflow at %d", vm.index)
	}
	return v
}

func (vm *VM) popF32() float32 {
	v, ok := vm.stack.PopF32()
	if !ok {
		vm.fault("stack underflow at %d", vm.index)
	}
	return v
}

func (vm *VM) popU32() uint32 {
	v, ok := vm.stack.PopU32()
	if !ok {
		vm.fault("stack underflow at %d", vm.index)
	}
	return v
}

// pushBool pushes the single-byte encoding of a comparison result.
func (vm *VM) pushBool(v bool) {
	if v {
		vm.stack.Push(1)
	} else {
		vm.stack.Push(0)
	}
}

// jump validates a branch target and moves the instruction pointer there.
func (vm *VM) jump(target int) {
	if target > len(vm.program) {
		vm.fault("branch target %d out of range", target)
	}
	vm.index = target
}

// condJump consumes the branch operand, pops the condition byte and jumps
// when the byte is one of the accepted values.
func (vm *VM) condJump(accept ...byte) {
	target := vm.nextU16()
	v := vm.popByte()
	for _, a := range accept {
		if v == a {
			vm.jump(target)
			return
		}
	}
}

// run is the fetch/decode/execute loop. It returns the four return-value
// bytes popped by RET_I, or an empty slice when execution falls off the
// end of the program.
func (vm *VM) run() (ret []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			fault, ok := r.(RuntimeError)
			if !ok {
				panic(r)
			}
			ret, err = nil, fault
		}
	}()

	for vm.index < len(vm.program) {
		if vm.debug {
			vm.trace()
		}
		switch op := vm.next(); op {
		case NOP:

		case PUSH_I:
			vm.stack.PushU32(vm.nextPayload())

		case ADD_I:
			rhs := vm.popI32()
			lhs := vm.popI32()
			vm.stack.PushI32(lhs + rhs)
		case SUB_I:
			rhs := vm.popI32()
			lhs := vm.popI32()
			vm.stack.PushI32(lhs - rhs)
		case MUL_I:
			rhs := vm.popI32()
			lhs := vm.popI32()
			vm.stack.PushI32(lhs * rhs)
		case DIV_I:
			rhs := vm.popI32()
			lhs := vm.popI32()
			vm.stack.PushI32(lhs / rhs)
		case MOD_I:
			rhs := vm.popI32()
			lhs := vm.popI32()
			vm.stack.PushI32(lhs % rhs)
		case NEG_I:
			vm.stack.PushI32(-vm.popI32())

		case ADD_F:
			rhs := vm.popF32()
			lhs := vm.popF32()
			vm.stack.PushF32(lhs + rhs)
		case SUB_F:
			rhs := vm.popF32()
			lhs := vm.popF32()
			vm.stack.PushF32(lhs - rhs)
		case MUL_F:
			rhs := vm.popF32()
			lhs := vm.popF32()
			vm.stack.PushF32(lhs * rhs)
		case DIV_F:
			rhs := vm.popF32()
			lhs := vm.popF32()
			vm.stack.PushF32(lhs / rhs)
		case MOD_F:
			rhs := vm.popF32()
			lhs := vm.popF32()
			vm.stack.PushF32(float32(math.Mod(float64(lhs), float64(rhs))))

		case NE:
			rhs := vm.popU32()
			lhs := vm.popU32()
			vm.pushBool(lhs != rhs)
		case EQ:
			rhs := vm.popU32()
			lhs := vm.popU32()
			vm.pushBool(lhs == rhs)

		case GT_I:
			rhs := vm.popI32()
			lhs := vm.popI32()
			vm.pushBool(lhs > rhs)
		case LT_I:
			rhs := vm.popI32()
			lhs := vm.popI32()
			vm.pushBool(lhs < rhs)
		case LE_I:
			rhs := vm.popI32()
			lhs := vm.popI32()
			vm.pushBool(lhs <= rhs)
		case GE_I:
			rhs := vm.popI32()
			lhs := vm.popI32()
			vm.pushBool(lhs >= rhs)

		case GT_F:
			rhs := vm.popF32()
			lhs := vm.popF32()
			vm.pushBool(lhs > rhs)
		case LT_F:
			rhs := vm.popF32()
			lhs := vm.popF32()
			vm.pushBool(lhs < rhs)
		case LE_F:
			rhs := vm.popF32()
			lhs := vm.popF32()
			vm.pushBool(lhs <= rhs)
		case GE_F:
			rhs := vm.popF32()
			lhs := vm.popF32()
			vm.pushBool(lhs >= rhs)

		case NOT:
			if vm.popByte() == 0 {
				vm.stack.Push(1)
			} else {
				vm.stack.Push(0)
			}

		case CMP_I:
			rhs := vm.popI32()
			lhs := vm.popI32()
			switch {
			case lhs == rhs:
				vm.stack.Push(0)
			case lhs > rhs:
				vm.stack.Push(1)
			default:
				vm.stack.Push(2)
			}

		case DUP_I:
			v, ok := vm.stack.PeekU32()
			if !ok {
				vm.fault("stack underflow at %d", vm.index)
			}
			vm.stack.PushU32(v)

		case GOTO:
			vm.jump(vm.nextU16())
		case IF_T:
			vm.condJump(1)
		case IF_F:
			vm.condJump(0)
		case IF_NE:
			vm.condJump(1, 2)
		case IF_EQ:
			vm.condJump(0)
		case IF_GT:
			vm.condJump(1)
		case IF_LT:
			vm.condJump(2)
		case IF_LE:
			vm.condJump(0, 2)
		case IF_GE:
			vm.condJump(0, 1)

		case LOAD_I:
			slot := int(vm.next())
			if slot+4 > len(vm.regs) {
				vm.fault("register slot %d out of range", slot)
			}
			vm.stack.PushBytes(vm.regs[slot : slot+4])

		case STO_I:
			slot := int(vm.next())
			val, ok := vm.stack.PopBytes(4)
			if !ok {
				vm.fault("stack underflow at %d", vm.index)
			}
			if len(vm.regs) < slot+4 {
				for len(vm.regs) < slot {
					vm.regs = append(vm.regs, 0)
				}
				vm.regs = append(vm.regs[:slot], val...)
			} else {
				copy(vm.regs[slot:slot+4], val)
			}

		case LDC:
			index := vm.nextU16()
			value, err := vm.module.ConstString(index)
			if err != nil {
				vm.fault("%v", err)
			}
			vm.stack.PushBytes([]byte(value))
			vm.stack.Push(byte(len(value)))

		case CALL:
			index := vm.nextU16()
			returned, err := vm.module.Call(index, &vm.stack)
			if err != nil {
				panic(RuntimeError{Message: err.Error()})
			}
			vm.stack.PushBytes(returned)

		case VIRTUAL:
			vm.virtual(vm.next())

		case RET_I:
			value, ok := vm.stack.PopBytes(4)
			if !ok {
				vm.fault("stack underflow in return")
			}
			return value, nil

		default:
			vm.fault("unknown opcode 0x%02x at %d", op, vm.index-1)
		}
	}
	return nil, nil
}

// virtual dispatches a host callback by subcode.
func (vm *VM) virtual(call byte) {
	out := vm.module.Output()
	switch call {
	case VirtPrintInt:
		v, ok := vm.stack.PeekI32()
		if !ok {
			vm.fault("stack underflow in print_int")
		}
		fmt.Fprintln(out, v)

	case VirtDebug:
		fmt.Fprintf(out, "STACK: %v\nREGS:  %v\n", vm.stack, vm.regs)

	case VirtPrintStr:
		length := int(vm.popByte())
		value, ok := vm.stack.PopBytes(length)
		if !ok {
			vm.fault("stack underflow in print_str")
		}
		fmt.Fprintln(out, string(value))

	case VirtPrintFloat:
		v, ok := vm.stack.PeekF32()
		if !ok {
			vm.fault("stack underflow in print_float")
		}
		fmt.Fprintln(out, v)
	}
}

// debugInput is shared by every VM instance of the process; the trace is
// process-global anyway since it writes to stderr.
var debugInput *readline.Instance

// trace disassembles the instruction about to execute, dumps the machine
// state and waits for a line of input.
func (vm *VM) trace() {
	line, _ := instructionAt(vm.program, vm.index)
	fmt.Fprintf(os.Stderr, "%s\n    stack: %v\n    regs:  %v\n", line, vm.stack, vm.regs)
	if debugInput == nil {
		rl, err := readline.New("(mica) ")
		if err != nil {
			return
		}
		debugInput = rl
	}
	debugInput.Readline()
}
