// Package compiler lowers a parsed module body to bytecode. It is a
// single pass over the AST per function, preceded by a signature pre-pass
// so calls can reference functions declared later in the file. The
// compiler also performs the language's only type checking: binary
// operands must agree, a return expression must match the declared
// return type, a stored value must match the variable's type, and unary
// minus takes only i32.
package compiler

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"mica/ast"
	"mica/diag"
	"mica/token"
	"mica/vm"
)

// maxProgram bounds a function's bytecode so branch operands (big-endian
// u16) can always address it.
const maxProgram = 0xffff

// maxRegs bounds a function's register file so slot operands (one byte)
// can always address it.
const maxRegs = 0xff

// variable is one local slot: its byte offset in the register file and
// the type stored there.
type variable struct {
	slot int
	typ  vm.Type
}

// signature is what a call site needs to know about a callee: the
// constant index that identifies it and its declared types.
type signature struct {
	index      int
	params     []vm.Type
	returnType vm.Type
}

// Generator compiles a module body into a vm.Module. It implements the
// AST visitor interfaces; expression visits return the vm.Type of the
// value they leave on the evaluation stack.
type Generator struct {
	context *diag.Context
	source  string
	module  *vm.Module

	// module-level state
	functions map[string]signature

	// per-function state, reset between functions
	out           []byte
	vars          map[string]variable
	varIndex      int
	pendingBreaks []int
	returnType    vm.Type
}

// New creates a generator reporting errors to the given context.
func New(context *diag.Context) *Generator {
	return &Generator{
		context:   context,
		source:    context.Source(),
		module:    vm.NewModule(),
		functions: make(map[string]signature),
	}
}

// Generate compiles the top-level block into a module. Only function
// declarations may appear at the top level. On any error the diagnostic
// context holds the details and the returned error is the first fatal
// condition hit.
func (g *Generator) Generate(block ast.Block) (module *vm.Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			fatal, ok := r.(CompileError)
			if !ok {
				panic(r)
			}
			module, err = nil, fatal
		}
	}()

	// Signature pre-pass: intern every function name and record its
	// declared types before lowering any body, so forward references
	// compile and call sites know their result type without cloning
	// declarations.
	decls := make([]ast.FnDecl, 0, len(block.Body))
	for _, stmt := range block.Body {
		decl, ok := stmt.(ast.FnDecl)
		if !ok {
			g.fail(token.DummySpan(), "Only function declarations are allowed at module top level")
		}
		name := decl.Name.Text(g.source)
		if _, exists := g.functions[name]; exists {
			g.fail(decl.Name, fmt.Sprintf("Function '%s' is already defined", name))
		}
		params := make([]vm.Type, len(decl.Args))
		for i, arg := range decl.Args {
			params[i] = vmType(arg.Type)
		}
		g.functions[name] = signature{
			index:      g.intern(decl.Name, name),
			params:     params,
			returnType: vmType(decl.ReturnType),
		}
		decls = append(decls, decl)
	}

	for _, decl := range decls {
		g.genFunction(decl)
	}
	return g.module, nil
}

// fail reports a diagnostic and aborts compilation.
func (g *Generator) fail(span token.Span, message string) {
	g.context.Error(span, message)
	panic(CompileError{Message: message})
}

// intern adds a string to the module's constant pool, guarding the
// one-byte length prefix and the u16 index space.
func (g *Generator) intern(span token.Span, value string) int {
	if len(value) > 0xff {
		g.fail(span, "String constant exceeds 255 bytes")
	}
	index := g.module.NewConst(value)
	if index > 0xffff {
		g.fail(span, "Constant pool exceeds 65535 bytes")
	}
	return index
}

// vmType maps a source-level type annotation to its runtime type.
func vmType(t ast.Type) vm.Type {
	switch t {
	case ast.TypeInt:
		return vm.I32
	case ast.TypeFloat:
		return vm.F32
	case ast.TypeStr:
		return vm.String
	}
	return vm.Void
}

// genFunction lowers one declaration into a Function and installs it in
// the module at its name's constant index.
func (g *Generator) genFunction(decl ast.FnDecl) {
	sig := g.functions[decl.Name.Text(g.source)]

	g.out = nil
	g.vars = make(map[string]variable)
	g.varIndex = 0
	g.pendingBreaks = nil
	g.returnType = sig.returnType

	// Parameters occupy the first register slots in declaration order;
	// the register file arrives pre-filled with their bytes.
	for i, arg := range decl.Args {
		g.declareVar(arg.Name, sig.params[i])
	}

	g.genBlock(decl.Block)
	if len(g.out) > maxProgram {
		g.fail(decl.Name, fmt.Sprintf("Function '%s' exceeds %d bytes of bytecode", decl.Name.Text(g.source), maxProgram))
	}

	program := make([]byte, len(g.out))
	copy(program, g.out)
	g.module.PushFn(sig.index, vm.NewFunction(program, sig.params, sig.returnType, g.module))
}

// declareVar allocates the next four-byte register slot for a new
// variable.
func (g *Generator) declareVar(name token.Span, typ vm.Type) variable {
	if g.varIndex+4 > maxRegs {
		g.fail(name, "Function uses more than 255 bytes of local variables")
	}
	v := variable{slot: g.varIndex, typ: typ}
	g.vars[name.Text(g.source)] = v
	g.varIndex += 4
	return v
}

// emit appends raw bytes to the current function's program.
func (g *Generator) emit(bytes ...byte) {
	g.out = append(g.out, bytes...)
}

// emitU16 appends a big-endian u16 operand.
func (g *Generator) emitU16(value int) {
	g.out = binary.BigEndian.AppendUint16(g.out, uint16(value))
}

// emitPatch emits a two-byte branch operand placeholder and returns its
// offset for patch.
func (g *Generator) emitPatch() int {
	offset := len(g.out)
	g.emit(0, 0)
	return offset
}

// patch overwrites the placeholder at offset with the current end of the
// program, the usual forward branch target.
func (g *Generator) patch(offset int) {
	binary.BigEndian.PutUint16(g.out[offset:], uint16(len(g.out)))
}

// genBlock lowers every statement of a block in order.
func (g *Generator) genBlock(block ast.Block) {
	for _, stmt := range block.Body {
		stmt.Accept(g)
	}
}

// genExpr lowers an expression and returns the runtime type of the value
// it leaves on the stack.
func (g *Generator) genExpr(expr ast.Expression) vm.Type {
	return expr.Accept(g).(vm.Type)
}

// VisitExpressionStmt lowers an expression statement. The result is left
// on the evaluation stack; the stack is per-call, so a trailing value is
// benign unless observed.
func (g *Generator) VisitExpressionStmt(stmt ast.ExpressionStmt) any {
	g.genExpr(stmt.Expression)
	return nil
}

// VisitAssign lowers a let binding, declaring the variable on first
// sight. Re-binding an existing name stores through the existing slot.
func (g *Generator) VisitAssign(stmt ast.Assign) any {
	typ := g.genExpr(stmt.Value)
	name := stmt.Name.Text(g.source)
	v, ok := g.vars[name]
	if !ok {
		v = g.declareVar(stmt.Name, typ)
	} else if v.typ != typ {
		g.fail(stmt.Name, fmt.Sprintf("Cannot rebind variable '%s' of type %v to %v", name, v.typ, typ))
	}
	g.emit(vm.STO_I, byte(v.slot))
	return nil
}

// VisitMutate lowers an assignment to a variable that must already be
// declared.
func (g *Generator) VisitMutate(stmt ast.Mutate) any {
	typ := g.genExpr(stmt.Value)
	name := stmt.Name.Text(g.source)
	v, ok := g.vars[name]
	if !ok {
		g.fail(stmt.Name, fmt.Sprintf("Variable '%s' is undefined", name))
	}
	if v.typ != typ {
		g.fail(stmt.Name, fmt.Sprintf("Cannot assign %v to variable '%s' of type %v", typ, name, v.typ))
	}
	g.emit(vm.STO_I, byte(v.slot))
	return nil
}

// VisitFnDecl rejects nested function declarations; Generate handles the
// top level.
func (g *Generator) VisitFnDecl(stmt ast.FnDecl) any {
	g.fail(stmt.Name, "Function declarations are only allowed at module top level")
	return nil
}

// VisitReturn lowers a return statement and checks the value against the
// declared return type.
func (g *Generator) VisitReturn(stmt ast.Return) any {
	typ := g.genExpr(stmt.Value)
	if typ != g.returnType {
		g.fail(stmt.Span, fmt.Sprintf("Cannot return %v from a function returning %v", typ, g.returnType))
	}
	g.emit(vm.RET_I)
	return nil
}

// VisitIf lowers an if statement with its else arm: the condition falls
// through into the then block or branches past it; a then block followed
// by an else arm ends with an unconditional branch over it.
func (g *Generator) VisitIf(stmt ast.If) any {
	g.genExpr(stmt.Cond)
	g.emit(vm.IF_F)
	skipThen := g.emitPatch()
	g.genBlock(stmt.Then)

	if stmt.Else == nil {
		g.patch(skipThen)
		return nil
	}

	g.emit(vm.GOTO)
	skipElse := g.emitPatch()
	g.patch(skipThen)
	stmt.Else.Accept(g)
	g.patch(skipElse)
	return nil
}

// VisitElse lowers the block of a plain else arm.
func (g *Generator) VisitElse(stmt ast.Else) any {
	g.genBlock(stmt.Block)
	return nil
}

// VisitLoop lowers an unconditional loop: the body followed by a branch
// back to its start. Breaks inside the body emit forward branches that
// are patched here to the first byte past the loop. The pending list is
// saved and restored around the body so a break always binds to its
// innermost loop.
func (g *Generator) VisitLoop(stmt ast.Loop) any {
	outer := g.pendingBreaks
	g.pendingBreaks = nil

	start := len(g.out)
	g.genBlock(stmt.Block)
	g.emit(vm.GOTO)
	g.emitU16(start)

	for _, offset := range g.pendingBreaks {
		g.patch(offset)
	}
	g.pendingBreaks = outer
	return nil
}

// VisitBreak emits a branch whose target the enclosing loop will patch.
func (g *Generator) VisitBreak(stmt ast.Break) any {
	g.emit(vm.GOTO)
	g.pendingBreaks = append(g.pendingBreaks, g.emitPatch())
	return nil
}

// VisitDummyStmt aborts: the parser already reported why the statement
// could not be built.
func (g *Generator) VisitDummyStmt(stmt ast.DummyStmt) any {
	panic(CompileError{Message: "Cannot compile a block containing parse errors"})
}

// VisitLiteral lowers a literal: ints and floats as four-byte big-endian
// PUSH_I payloads (float bits are IEEE-754), strings as constant-pool
// loads.
func (g *Generator) VisitLiteral(literal ast.Literal) any {
	text := literal.Span.Text(g.source)
	switch literal.Kind {
	case ast.IntLiteral:
		value, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			g.fail(literal.Span, fmt.Sprintf("Integer literal '%s' does not fit in i32", text))
		}
		g.emit(vm.PUSH_I)
		g.out = binary.BigEndian.AppendUint32(g.out, uint32(int32(value)))
		return vm.I32

	case ast.FloatLiteral:
		value, err := strconv.ParseFloat(text, 32)
		if err != nil {
			g.fail(literal.Span, fmt.Sprintf("Invalid float literal '%s'", text))
		}
		g.emit(vm.PUSH_I)
		g.out = binary.BigEndian.AppendUint32(g.out, math.Float32bits(float32(value)))
		return vm.F32

	case ast.StringLiteral:
		// The span includes the quotes; the constant is the text between
		// them.
		index := g.intern(literal.Span, text[1:len(text)-1])
		g.emit(vm.LDC)
		g.emitU16(index)
		return vm.String
	}
	panic(CompileError{Message: fmt.Sprintf("unhandled literal kind %s", literal.Kind)})
}

// VisitIdent lowers a variable reference.
func (g *Generator) VisitIdent(ident ast.Ident) any {
	name := ident.Span.Text(g.source)
	v, ok := g.vars[name]
	if !ok {
		g.fail(ident.Span, fmt.Sprintf("Variable '%s' is undefined", name))
	}
	g.emit(vm.LOAD_I, byte(v.slot))
	return v.typ
}

// intOps and floatOps map source operators to their type-specialised
// opcodes.
var intOps = map[ast.Op]vm.Opcode{
	ast.OpPlus:  vm.ADD_I,
	ast.OpMinus: vm.SUB_I,
	ast.OpStar:  vm.MUL_I,
	ast.OpSlash: vm.DIV_I,
	ast.OpMod:   vm.MOD_I,
	ast.OpLt:    vm.LT_I,
	ast.OpGt:    vm.GT_I,
	ast.OpLtEq:  vm.LE_I,
	ast.OpGtEq:  vm.GE_I,
	ast.OpEq:    vm.EQ,
	ast.OpNotEq: vm.NE,
}

var floatOps = map[ast.Op]vm.Opcode{
	ast.OpPlus:  vm.ADD_F,
	ast.OpMinus: vm.SUB_F,
	ast.OpStar:  vm.MUL_F,
	ast.OpSlash: vm.DIV_F,
	ast.OpMod:   vm.MOD_F,
	ast.OpLt:    vm.LT_F,
	ast.OpGt:    vm.GT_F,
	ast.OpLtEq:  vm.LE_F,
	ast.OpGtEq:  vm.GE_F,
	ast.OpEq:    vm.EQ,
	ast.OpNotEq: vm.NE,
}

// comparisonOps produce a single-byte 0/1 result typed as i32 for the
// purposes of condition checking.
var comparisonOps = map[ast.Op]bool{
	ast.OpLt:    true,
	ast.OpGt:    true,
	ast.OpLtEq:  true,
	ast.OpGtEq:  true,
	ast.OpEq:    true,
	ast.OpNotEq: true,
}

// VisitBinary lowers both operands, checks that their types agree and
// emits the type-specialised opcode. Arithmetic keeps the operand type;
// comparisons yield the boolean encoding.
func (g *Generator) VisitBinary(binary ast.Binary) any {
	lhs := g.genExpr(binary.Left)
	rhs := g.genExpr(binary.Right)
	if lhs != rhs {
		g.fail(binary.Span, fmt.Sprintf("Type mismatch: %v %s %v", lhs, binary.Op, rhs))
	}

	var ops map[ast.Op]vm.Opcode
	switch lhs {
	case vm.I32:
		ops = intOps
	case vm.F32:
		ops = floatOps
	default:
		g.fail(binary.Span, fmt.Sprintf("Operator %s is not defined for %v", binary.Op, lhs))
	}
	op, ok := ops[binary.Op]
	if !ok {
		g.fail(binary.Span, fmt.Sprintf("Operator %s is not defined for %v", binary.Op, lhs))
	}
	g.emit(op)

	if comparisonOps[binary.Op] {
		return vm.I32
	}
	return lhs
}

// VisitUnary lowers the prefix operators. Negation is integer-only;
// logical not operates on the boolean encoding.
func (g *Generator) VisitUnary(unary ast.Unary) any {
	typ := g.genExpr(unary.Operand)
	switch unary.Op {
	case ast.OpMinus:
		if typ != vm.I32 {
			g.fail(unary.Span, fmt.Sprintf("Unary - is not defined for %v", typ))
		}
		g.emit(vm.NEG_I)
		return vm.I32
	case ast.OpNot:
		g.emit(vm.NOT)
		return vm.I32
	}
	g.fail(unary.Span, fmt.Sprintf("Invalid unary operator %s", unary.Op))
	return nil
}

// VisitCall lowers a function call. The print family and the debug dump
// are virtual host calls; everything else resolves against the signature
// table and compiles to CALL.
func (g *Generator) VisitCall(call ast.Call) any {
	name := call.Name.Text(g.source)
	switch name {
	case "print_int":
		g.genVirtualArg(call, vm.VirtPrintInt)
		return vm.Void
	case "debug":
		if len(call.Args) != 0 {
			g.fail(call.Name, "debug takes no arguments")
		}
		g.emit(vm.VIRTUAL, vm.VirtDebug)
		return vm.Void
	case "print_str":
		g.genVirtualArg(call, vm.VirtPrintStr)
		return vm.Void
	case "print_float":
		g.genVirtualArg(call, vm.VirtPrintFloat)
		return vm.Void
	}

	sig, ok := g.functions[name]
	if !ok {
		g.fail(call.Name, fmt.Sprintf("Unknown function: %s", name))
	}
	if len(call.Args) != len(sig.params) {
		g.fail(call.Name, fmt.Sprintf("Function '%s' takes %d arguments, got %d", name, len(sig.params), len(call.Args)))
	}
	for _, arg := range call.Args {
		g.genExpr(arg)
	}
	g.emit(vm.CALL)
	g.emitU16(sig.index)
	return sig.returnType
}

// genVirtualArg lowers the single argument of a print builtin and emits
// the virtual call.
func (g *Generator) genVirtualArg(call ast.Call, subcode byte) {
	name := call.Name.Text(g.source)
	if len(call.Args) != 1 {
		g.fail(call.Name, fmt.Sprintf("%s takes exactly one argument", name))
	}
	g.genExpr(call.Args[0])
	g.emit(vm.VIRTUAL, subcode)
}

// VisitDummyExpression aborts: the parser already reported why the
// expression could not be built.
func (g *Generator) VisitDummyExpression(dummy ast.DummyExpression) any {
	panic(CompileError{Message: "Cannot compile a block containing parse errors"})
}
