package vm

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Module is the unit of compiled code: a flat constant pool of
// length-prefixed strings and a table of functions keyed by the constant
// index of their name. The compiler builds it incrementally; once
// generation finishes it is only ever read, so all VM invocations share
// one module by pointer.
//
// The module also owns the writer that the VIRTUAL print family writes
// program output to, so callers (and tests) can capture it.
type Module struct {
	constants []byte
	functions map[int]*Function
	out       io.Writer
}

// NewModule creates an empty module writing program output to stdout.
func NewModule() *Module {
	return &Module{
		functions: make(map[int]*Function),
		out:       os.Stdout,
	}
}

// SetOutput redirects program output (the VIRTUAL print family).
func (m *Module) SetOutput(w io.Writer) {
	m.out = w
}

// Output returns the writer program output goes to.
func (m *Module) Output() io.Writer {
	return m.out
}

// NewConst appends a length-prefixed string to the constant pool and
// returns its constant index: the offset of the length byte.
func (m *Module) NewConst(val string) int {
	index := len(m.constants)
	m.constants = append(m.constants, byte(len(val)))
	m.constants = append(m.constants, val...)
	return index
}

// ConstString reads the length-prefixed string at the given constant
// index.
func (m *Module) ConstString(index int) (string, error) {
	if index < 0 || index >= len(m.constants) {
		return "", RuntimeError{Message: fmt.Sprintf("constant index %d out of range", index)}
	}
	length := int(m.constants[index])
	if index+1+length > len(m.constants) {
		return "", RuntimeError{Message: fmt.Sprintf("constant at %d is truncated", index)}
	}
	return string(m.constants[index+1 : index+1+length]), nil
}

// Constants returns the raw constant pool.
func (m *Module) Constants() []byte {
	return m.constants
}

// Functions returns the function table keyed by name constant index.
func (m *Module) Functions() map[int]*Function {
	return m.functions
}

// PushFn inserts a function at the given constant index.
func (m *Module) PushFn(index int, function *Function) {
	m.functions[index] = function
}

// GetFn retrieves the function whose name lives at the given constant
// index.
func (m *Module) GetFn(index int) (*Function, error) {
	function, ok := m.functions[index]
	if !ok {
		return nil, RuntimeError{Message: fmt.Sprintf("no function at constant index %d", index)}
	}
	return function, nil
}

// GetMain locates the function whose name string in the constant pool is
// exactly "main".
func (m *Module) GetMain() (*Function, error) {
	for index, function := range m.functions {
		name, err := m.ConstString(index)
		if err != nil {
			return nil, err
		}
		if name == "main" {
			return function, nil
		}
	}
	return nil, RuntimeError{Message: "no main function"}
}

// RunMain executes the module's main function with no arguments.
func (m *Module) RunMain() ([]byte, error) {
	main, err := m.GetMain()
	if err != nil {
		return nil, err
	}
	return main.Run(nil)
}

// Call runs the function at the given constant index on behalf of a
// caller: it pops the callee's argument bytes off the caller's stack,
// reverses them so the callee's register file sees the arguments in
// declaration order, and returns the callee's return bytes.
func (m *Module) Call(index int, stack *Stack) ([]byte, error) {
	function, err := m.GetFn(index)
	if err != nil {
		return nil, err
	}

	var args []byte
	for _, param := range function.Params() {
		for i := 0; i < param.Width(); i++ {
			b, ok := stack.Pop()
			if !ok {
				return nil, RuntimeError{Message: "stack underflow in call"}
			}
			args = append(args, b)
		}
	}
	for i, j := 0, len(args)-1; i < j; i, j = i+1, j-1 {
		args[i], args[j] = args[j], args[i]
	}
	return function.Run(args)
}

// sortedIndexes returns the function table's constant indexes in
// ascending order, which is also generation order.
func (m *Module) sortedIndexes() []int {
	indexes := make([]int, 0, len(m.functions))
	for index := range m.functions {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)
	return indexes
}

// Disassemble renders the whole module: the constant pool followed by a
// listing of every function's program.
func (m *Module) Disassemble() (string, error) {
	var out strings.Builder
	out.WriteString("constants:\n")
	for i := 0; i < len(m.constants); {
		value, err := m.ConstString(i)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&out, "%d: %s\n", i, value)
		i += 1 + len(value)
	}
	out.WriteByte('\n')

	for _, index := range m.sortedIndexes() {
		function := m.functions[index]
		name, err := m.ConstString(index)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&out, "%s(%v) -> %v:\n%s\n",
			name, function.Params(), function.ReturnType(), Disassemble(function.Program()))
	}
	return out.String(), nil
}
