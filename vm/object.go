package vm

import (
	"encoding/binary"
	"os"
)

// Object-file layout, in order:
//
//	magic            4 bytes, BB BB BB BB
//	major, minor     1 byte each
//	constants length u16
//	constants        raw pool bytes
//	per function:
//	  name constant index  u16
//	  param count          1 byte
//	  param types          1 byte each
//	  program length       u16
//	  program              raw bytes
//
// Lengths and indices are big-endian u16, matching the widened in-memory
// wire format. The toolchain only writes this format; nothing reads it
// back yet.
const (
	objMajorVersion byte = 0x00
	objMinorVersion byte = 0x01
)

var objMagic = []byte{0xBB, 0xBB, 0xBB, 0xBB}

// ObjBuilder serialises a compiled module into the object-file format.
type ObjBuilder struct {
	module *Module
	out    []byte
}

// NewObjBuilder creates a builder over the given module.
func NewObjBuilder(module *Module) *ObjBuilder {
	return &ObjBuilder{module: module}
}

// Build serialises the module and returns the object-file bytes.
func (b *ObjBuilder) Build() []byte {
	b.out = append(b.out[:0], objMagic...)
	b.out = append(b.out, objMajorVersion, objMinorVersion)

	constants := b.module.Constants()
	b.out = binary.BigEndian.AppendUint16(b.out, uint16(len(constants)))
	b.out = append(b.out, constants...)

	for _, index := range b.module.sortedIndexes() {
		function := b.module.functions[index]
		b.out = binary.BigEndian.AppendUint16(b.out, uint16(index))
		b.out = append(b.out, byte(len(function.Params())))
		for _, param := range function.Params() {
			b.out = append(b.out, param.Serialize())
		}
		b.out = binary.BigEndian.AppendUint16(b.out, uint16(len(function.Program())))
		b.out = append(b.out, function.Program()...)
	}
	return b.out
}

// WriteFile serialises the module and writes it to path.
func (b *ObjBuilder) WriteFile(path string) error {
	return os.WriteFile(path, b.Build(), 0o644)
}
