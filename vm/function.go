package vm

// Function is one compiled function: its bytecode, its parameter and
// return types, and a back-reference to the module that owns it. The
// back-reference is shared by every function of the module and is needed
// at run time for cross-function calls and constant-pool reads.
type Function struct {
	program    []byte
	params     []Type
	returnType Type
	module     *Module
}

// NewFunction wraps a compiled program.
func NewFunction(program []byte, params []Type, returnType Type, module *Module) *Function {
	return &Function{
		program:    program,
		params:     params,
		returnType: returnType,
		module:     module,
	}
}

// Program returns the function's bytecode.
func (f *Function) Program() []byte {
	return f.program
}

// Params returns the parameter types in declaration order.
func (f *Function) Params() []Type {
	return f.params
}

// ReturnType returns the declared return type.
func (f *Function) ReturnType() Type {
	return f.returnType
}

// Run executes the function on a fresh VM instance whose register file is
// initialised with args: the caller's argument bytes laid out in
// declaration order. It returns the bytes of the function's return value;
// an empty slice means the function fell off the end without an explicit
// return.
func (f *Function) Run(args []byte) ([]byte, error) {
	return newVM(f.program, args, f.module).run()
}
