package vm

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Opcode is a single instruction byte in a function's program.
//
// Wire format: branch targets (GOTO, IF_*) and pool indices (LDC, CALL)
// are big-endian uint16 operands, register slots (LOAD_I, STO_I) and the
// VIRTUAL subcode are single bytes, and the PUSH_I payload is four
// big-endian bytes. This widens the one-byte branch operands of the
// original prototype format, capping a function's program and a module's
// pools at 65535 instead of 255.
type Opcode = byte

const (
	NOP    Opcode = 0x00
	PUSH_I Opcode = 0x01

	ADD_I Opcode = 0x0c
	SUB_I Opcode = 0x0d
	MUL_I Opcode = 0x0e
	DIV_I Opcode = 0x0f
	MOD_I Opcode = 0x10

	NE Opcode = 0x11
	EQ Opcode = 0x12

	GT_I Opcode = 0x13
	LT_I Opcode = 0x14
	LE_I Opcode = 0x15
	GE_I Opcode = 0x16

	NOT   Opcode = 0x17
	NEG_I Opcode = 0x18

	CMP_I Opcode = 0x20

	GT_F Opcode = 0x23
	LT_F Opcode = 0x24
	LE_F Opcode = 0x25
	GE_F Opcode = 0x26

	ADD_F Opcode = 0x2c
	SUB_F Opcode = 0x2d
	MUL_F Opcode = 0x2e
	DIV_F Opcode = 0x2f
	MOD_F Opcode = 0x30

	IF_T Opcode = 0xa0
	IF_F Opcode = 0xa1

	IF_NE Opcode = 0xa2
	IF_EQ Opcode = 0xa3
	IF_GT Opcode = 0xa4
	IF_LT Opcode = 0xa5
	IF_LE Opcode = 0xa6
	IF_GE Opcode = 0xa7

	GOTO Opcode = 0xc0

	DUP_I Opcode = 0xdf

	LDC    Opcode = 0xfa
	LOAD_I Opcode = 0xfb
	STO_I  Opcode = 0xfc
	CALL   Opcode = 0xfd

	VIRTUAL Opcode = 0xfe
	RET_I   Opcode = 0xff
)

// VIRTUAL subcodes: host callbacks the compiler maps the builtin print
// family onto.
const (
	VirtPrintInt   byte = 0x00
	VirtDebug      byte = 0x01
	VirtPrintStr   byte = 0x02
	VirtPrintFloat byte = 0x03
)

var mnemonics = map[Opcode]string{
	NOP:     "nop",
	PUSH_I:  "push_i",
	ADD_I:   "add_i",
	SUB_I:   "sub_i",
	MUL_I:   "mul_i",
	DIV_I:   "div_i",
	MOD_I:   "mod_i",
	NE:      "ne",
	EQ:      "eq",
	GT_I:    "gt_i",
	LT_I:    "lt_i",
	LE_I:    "le_i",
	GE_I:    "ge_i",
	NOT:     "not",
	NEG_I:   "neg_i",
	CMP_I:   "cmp_i",
	GT_F:    "gt_f",
	LT_F:    "lt_f",
	LE_F:    "le_f",
	GE_F:    "ge_f",
	ADD_F:   "add_f",
	SUB_F:   "sub_f",
	MUL_F:   "mul_f",
	DIV_F:   "div_f",
	MOD_F:   "mod_f",
	IF_T:    "if_t",
	IF_F:    "if_f",
	IF_NE:   "if_ne",
	IF_EQ:   "if_eq",
	IF_GT:   "if_gt",
	IF_LT:   "if_lt",
	IF_LE:   "if_le",
	IF_GE:   "if_ge",
	GOTO:    "goto",
	DUP_I:   "dup_i",
	LDC:     "ldc",
	LOAD_I:  "load_i",
	STO_I:   "sto_i",
	CALL:    "call",
	VIRTUAL: "virtual",
	RET_I:   "ret_i",
}

// Mnemonic returns the human-readable name of an opcode, or "unknown".
func Mnemonic(op Opcode) string {
	if name, ok := mnemonics[op]; ok {
		return name
	}
	return "unknown"
}

var (
	offsetColor   = color.New(color.FgYellow)
	mnemonicColor = color.New(color.FgRed)
)

// instructionAt formats the instruction starting at offset i and returns
// the formatted text together with the offset of the following
// instruction. It never reads past the end of program; a truncated operand
// just ends the listing.
func instructionAt(program []byte, i int) (string, int) {
	var out strings.Builder
	op := program[i]
	out.WriteString(offsetColor.Sprintf("%4d: ", i))
	out.WriteString(mnemonicColor.Sprintf("%-8s", Mnemonic(op)))
	i++

	operand := func(width int) {
		if i+width > len(program) {
			i = len(program)
			return
		}
		switch width {
		case 1:
			fmt.Fprintf(&out, " %d", program[i])
		case 2:
			fmt.Fprintf(&out, " %d", binary.BigEndian.Uint16(program[i:]))
		default:
			for _, b := range program[i : i+width] {
				fmt.Fprintf(&out, " %d", b)
			}
		}
		i += width
	}

	switch op {
	case PUSH_I:
		operand(4)
	case GOTO, IF_T, IF_F, IF_NE, IF_EQ, IF_GT, IF_LT, IF_LE, IF_GE, LDC, CALL:
		operand(2)
	case LOAD_I, STO_I, VIRTUAL:
		operand(1)
	}
	return out.String(), i
}

// Disassemble renders a function's program as one instruction per line
// with byte offsets.
func Disassemble(program []byte) string {
	var out strings.Builder
	for i := 0; i < len(program); {
		var line string
		line, i = instructionAt(program, i)
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.String()
}
