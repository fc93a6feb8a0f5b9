package compiler

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mica/diag"
	"mica/parser"
	"mica/vm"
)

// compile parses and generates source, expecting success.
func compile(t *testing.T, source string) *vm.Module {
	ctx := diag.NewContext(source)
	block := parser.New(ctx).Parse()
	require.False(t, ctx.HasErrors(), "parse diagnostics: %v", ctx.Diagnostics())

	module, err := New(ctx).Generate(block)
	require.NoError(t, err)
	return module
}

// compileErr parses and generates source, expecting generation to fail,
// and returns the diagnostics.
func compileErr(t *testing.T, source string) []diag.Diagnostic {
	ctx := diag.NewContext(source)
	block := parser.New(ctx).Parse()
	require.False(t, ctx.HasErrors(), "parse diagnostics: %v", ctx.Diagnostics())

	_, err := New(ctx).Generate(block)
	require.Error(t, err)
	require.IsType(t, CompileError{}, err)
	return ctx.Diagnostics()
}

// mainProgram compiles source and returns main's bytecode.
func mainProgram(t *testing.T, source string) []byte {
	module := compile(t, source)
	main, err := module.GetMain()
	require.NoError(t, err)
	return main.Program()
}

func u16(v int) []byte {
	return binary.BigEndian.AppendUint16(nil, uint16(v))
}

func pushI(v int32) []byte {
	return binary.BigEndian.AppendUint32([]byte{vm.PUSH_I}, uint32(v))
}

func asm(fragments ...[]byte) []byte {
	var out []byte
	for _, f := range fragments {
		out = append(out, f...)
	}
	return out
}

func TestEmptyFunctionBody(t *testing.T) {
	assert.Empty(t, mainProgram(t, "fn main() { }"))
}

func TestPrintIntEmission(t *testing.T) {
	program := mainProgram(t, "fn main() { print_int(5) }")
	expected := asm(pushI(5), []byte{vm.VIRTUAL, vm.VirtPrintInt})
	assert.Equal(t, expected, program)
}

func TestArithmeticEmission(t *testing.T) {
	program := mainProgram(t, "fn main() { print_int(5 + 3 * 2) }")
	expected := asm(
		pushI(5), pushI(3), pushI(2),
		[]byte{vm.MUL_I, vm.ADD_I},
		[]byte{vm.VIRTUAL, vm.VirtPrintInt},
	)
	assert.Equal(t, expected, program)
}

func TestFloatLiteralEmission(t *testing.T) {
	program := mainProgram(t, "fn main() { print_float(1.5) }")
	expected := asm(
		binary.BigEndian.AppendUint32([]byte{vm.PUSH_I}, math.Float32bits(1.5)),
		[]byte{vm.VIRTUAL, vm.VirtPrintFloat},
	)
	assert.Equal(t, expected, program)
}

func TestStringLiteralInterning(t *testing.T) {
	module := compile(t, `fn main() { print_str("hi") }`)
	main, err := module.GetMain()
	require.NoError(t, err)

	// "main" is interned first at offset 0; "hi" follows it
	hiIndex := 5
	value, err := module.ConstString(hiIndex)
	require.NoError(t, err)
	assert.Equal(t, "hi", value)

	expected := asm([]byte{vm.LDC}, u16(hiIndex), []byte{vm.VIRTUAL, vm.VirtPrintStr})
	assert.Equal(t, expected, main.Program())
}

func TestLetAllocatesSequentialSlots(t *testing.T) {
	program := mainProgram(t, "fn main() { let a = 1 let b = 2 a = 3 }")
	expected := asm(
		pushI(1), []byte{vm.STO_I, 0},
		pushI(2), []byte{vm.STO_I, 4},
		pushI(3), []byte{vm.STO_I, 0},
	)
	assert.Equal(t, expected, program)
}

func TestIdentLoad(t *testing.T) {
	program := mainProgram(t, "fn main() { let a = 1 print_int(a) }")
	expected := asm(
		pushI(1), []byte{vm.STO_I, 0},
		[]byte{vm.LOAD_I, 0},
		[]byte{vm.VIRTUAL, vm.VirtPrintInt},
	)
	assert.Equal(t, expected, program)
}

func TestUnaryEmission(t *testing.T) {
	program := mainProgram(t, "fn main() { print_int(-5) print_int(!0) }")
	expected := asm(
		pushI(5), []byte{vm.NEG_I},
		[]byte{vm.VIRTUAL, vm.VirtPrintInt},
		pushI(0), []byte{vm.NOT},
		[]byte{vm.VIRTUAL, vm.VirtPrintInt},
	)
	assert.Equal(t, expected, program)
}

func TestIfWithoutElsePatchesPastBlock(t *testing.T) {
	program := mainProgram(t, "fn main() { if 1 == 2 { print_int(1) } }")
	expected := asm(
		pushI(1), pushI(2), []byte{vm.EQ},
		[]byte{vm.IF_F}, u16(21),
		pushI(1), []byte{vm.VIRTUAL, vm.VirtPrintInt},
	)
	assert.Equal(t, expected, program)
	assert.Len(t, program, 21)
}

func TestIfElseLowering(t *testing.T) {
	program := mainProgram(t, "fn main() { if 1 == 2 { print_int(1) } else { print_int(2) } }")
	expected := asm(
		pushI(1), pushI(2), []byte{vm.EQ},
		// false branches over the then-arm, which ends by branching over
		// the else-arm
		[]byte{vm.IF_F}, u16(24),
		pushI(1), []byte{vm.VIRTUAL, vm.VirtPrintInt},
		[]byte{vm.GOTO}, u16(31),
		pushI(2), []byte{vm.VIRTUAL, vm.VirtPrintInt},
	)
	assert.Equal(t, expected, program)
	assert.Len(t, program, 31)
}

func TestLoopBreakPatching(t *testing.T) {
	program := mainProgram(t, "fn main() { loop { break } }")
	expected := asm(
		// the break branches past the loop's backward goto
		[]byte{vm.GOTO}, u16(6),
		[]byte{vm.GOTO}, u16(0),
	)
	assert.Equal(t, expected, program)
}

func TestNestedLoopBreakBindsInnermost(t *testing.T) {
	program := mainProgram(t, "fn main() { loop { break loop { break } break } }")
	// offsets:
	//  0 goto 15  outer break
	//  3 goto  9  inner break
	//  6 goto  3  inner backward
	//  9 goto 15  outer break
	// 12 goto  0  outer backward
	expected := asm(
		[]byte{vm.GOTO}, u16(15),
		[]byte{vm.GOTO}, u16(9),
		[]byte{vm.GOTO}, u16(3),
		[]byte{vm.GOTO}, u16(15),
		[]byte{vm.GOTO}, u16(0),
	)
	assert.Equal(t, expected, program)
}

func TestReturnEmission(t *testing.T) {
	module := compile(t, "fn one() -> i32 { return 1 } fn main() { print_int(one()) }")
	one, err := module.GetFn(0)
	require.NoError(t, err)
	assert.Equal(t, asm(pushI(1), []byte{vm.RET_I}), one.Program())
	assert.Equal(t, vm.I32, one.ReturnType())
}

func TestCallEmission(t *testing.T) {
	module := compile(t, `
fn add(a: i32, b: i32) -> i32 { return a + b }
fn main() { print_int(add(34, 29)) }
`)
	main, err := module.GetMain()
	require.NoError(t, err)

	// "add" is the first interned constant
	expected := asm(
		pushI(34), pushI(29),
		[]byte{vm.CALL}, u16(0),
		[]byte{vm.VIRTUAL, vm.VirtPrintInt},
	)
	assert.Equal(t, expected, main.Program())

	add, err := module.GetFn(0)
	require.NoError(t, err)
	assert.Equal(t, []vm.Type{vm.I32, vm.I32}, add.Params())
}

func TestForwardReference(t *testing.T) {
	// main calls a function declared after it
	module := compile(t, `
fn main() { print_int(later()) }
fn later() -> i32 { return 7 }
`)
	_, err := module.GetMain()
	assert.NoError(t, err)
}

func TestParamsOccupyFirstSlots(t *testing.T) {
	module := compile(t, "fn f(a: i32, b: i32) -> i32 { let c = 1 return c } fn main() { }")
	f, err := module.GetFn(0)
	require.NoError(t, err)
	expected := asm(
		pushI(1), []byte{vm.STO_I, 8},
		[]byte{vm.LOAD_I, 8},
		[]byte{vm.RET_I},
	)
	assert.Equal(t, expected, f.Program())
}

func TestDuplicateFunction(t *testing.T) {
	diags := compileErr(t, "fn f() { } fn f() { }")
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0].Message, "already defined")
}

func TestTopLevelStatementRejected(t *testing.T) {
	diags := compileErr(t, "let x = 1")
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0].Message, "module top level")
}

func TestUndefinedVariable(t *testing.T) {
	source := "fn main() { let x = 1 x + y }"
	diags := compileErr(t, source)
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0].Message, "'y' is undefined")
	// the diagnostic points at y's span
	assert.Equal(t, "y", diags[0].Span.Text(source))
}

func TestUndefinedMutation(t *testing.T) {
	diags := compileErr(t, "fn main() { x = 1 }")
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0].Message, "'x' is undefined")
}

func TestUnknownFunction(t *testing.T) {
	diags := compileErr(t, "fn main() { missing() }")
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0].Message, "Unknown function: missing")
}

func TestBinaryTypeMismatch(t *testing.T) {
	source := "fn main() { print_int(1 + 2.5) }"
	diags := compileErr(t, source)
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0].Message, "Type mismatch")
	// the diagnostic spans the whole binary form
	assert.Equal(t, "1 + 2.5", diags[0].Span.Text(source))
}

func TestReturnTypeMismatch(t *testing.T) {
	diags := compileErr(t, "fn f() -> i32 { return 1.5 } fn main() { }")
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0].Message, "Cannot return f32")
}

func TestArityMismatch(t *testing.T) {
	diags := compileErr(t, "fn f(a: i32) { } fn main() { f() }")
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0].Message, "takes 1 arguments, got 0")
}

func TestFloatNegationRejected(t *testing.T) {
	diags := compileErr(t, "fn main() { print_float(-1.5) }")
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0].Message, "Unary -")
}

func TestStringArithmeticRejected(t *testing.T) {
	diags := compileErr(t, `fn main() { print_str("a" + "b") }`)
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0].Message, "not defined for str")
}

func TestNestedFunctionRejected(t *testing.T) {
	diags := compileErr(t, "fn main() { fn inner() { } }")
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0].Message, "module top level")
}

func TestParseErrorsAreFatal(t *testing.T) {
	source := "fn main() { let = 5 }"
	ctx := diag.NewContext(source)
	block := parser.New(ctx).Parse()
	require.True(t, ctx.HasErrors())

	_, err := New(ctx).Generate(block)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse errors")
}

// operandWidth returns how many operand bytes each generated opcode
// carries.
func operandWidth(op vm.Opcode) (int, bool) {
	switch op {
	case vm.PUSH_I:
		return 4, true
	case vm.GOTO, vm.IF_T, vm.IF_F, vm.IF_NE, vm.IF_EQ, vm.IF_GT, vm.IF_LT,
		vm.IF_LE, vm.IF_GE, vm.LDC, vm.CALL:
		return 2, true
	case vm.LOAD_I, vm.STO_I, vm.VIRTUAL:
		return 1, true
	case vm.NOP, vm.ADD_I, vm.SUB_I, vm.MUL_I, vm.DIV_I, vm.MOD_I, vm.NEG_I,
		vm.ADD_F, vm.SUB_F, vm.MUL_F, vm.DIV_F, vm.MOD_F, vm.NE, vm.EQ,
		vm.GT_I, vm.LT_I, vm.LE_I, vm.GE_I, vm.GT_F, vm.LT_F, vm.LE_F,
		vm.GE_F, vm.NOT, vm.CMP_I, vm.DUP_I, vm.RET_I:
		return 0, true
	}
	return 0, false
}

// TestGeneratedBranchesTargetInstructionStarts walks every generated
// function: each opcode must be known and every branch operand must land
// on an instruction boundary (or one past the end).
func TestGeneratedBranchesTargetInstructionStarts(t *testing.T) {
	sources := []string{
		"fn main() { if 1 == 1 { print_int(1) } else { print_int(2) } }",
		"fn main() { let i = 0 loop { print_int(i) if i >= 10 { break } i = i + 1 } }",
		"fn main() { loop { loop { break } break } }",
		`fn main() { if 1 < 2 { print_str("a") } else if 2 < 3 { print_str("b") } else { print_str("c") } }`,
		"fn f(n: i32) -> i32 { if n <= 1 { return 1 } return n * f(n - 1) } fn main() { print_int(f(5)) }",
	}
	for _, source := range sources {
		module := compile(t, source)
		for index, function := range module.Functions() {
			program := function.Program()
			starts := map[int]bool{len(program): true}
			var branches []int

			for i := 0; i < len(program); {
				starts[i] = true
				op := program[i]
				width, known := operandWidth(op)
				require.True(t, known, "unknown opcode 0x%02x in fn %d of %q", op, index, source)
				if width == 2 && op != vm.LDC && op != vm.CALL {
					branches = append(branches, int(binary.BigEndian.Uint16(program[i+1:])))
				}
				i += 1 + width
			}

			for _, target := range branches {
				assert.True(t, starts[target],
					"branch target %d is not an instruction start in %q", target, source)
			}
		}
	}
}
