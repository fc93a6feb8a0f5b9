package vm

// Type is the runtime view of a value's type. The virtual machine uses it
// to size call arguments and the compiler uses it to pick type-specialised
// opcodes. Every scalar is four bytes on the evaluation stack; a string
// loaded by LDC occupies its bytes followed by a one-byte length.
type Type byte

const (
	I32 Type = iota
	F32
	String
	Void
)

// Width returns the number of bytes a parameter of this type takes from
// the caller's stack and in the register file. For String this is the
// four-byte slot size, not the length of a string loaded by LDC.
func (t Type) Width() int {
	if t == Void {
		return 0
	}
	return 4
}

// Serialize returns the object-file byte for this type.
func (t Type) Serialize() byte {
	return byte(t)
}

func (t Type) String() string {
	switch t {
	case I32:
		return "i32"
	case F32:
		return "f32"
	case String:
		return "str"
	case Void:
		return "void"
	}
	return "invalid"
}
