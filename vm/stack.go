package vm

import (
	"encoding/binary"
	"math"
)

// Stack is the byte-addressable evaluation stack of one VM invocation.
// Scalars occupy four bytes stored little-endian (low byte at the lowest
// address); comparison results occupy a single byte. The stack grows and
// shrinks at the high end.
type Stack []byte

// IsEmpty reports whether the stack holds no bytes.
func (s *Stack) IsEmpty() bool {
	return len(*s) == 0
}

// Push appends a single byte.
func (s *Stack) Push(value byte) {
	*s = append(*s, value)
}

// Pop removes and returns the top byte.
func (s *Stack) Pop() (byte, bool) {
	if s.IsEmpty() {
		return 0, false
	}
	index := len(*s) - 1
	value := (*s)[index]
	*s = (*s)[:index]
	return value, true
}

// PushU32 appends a 32-bit value in little-endian order.
func (s *Stack) PushU32(value uint32) {
	*s = binary.LittleEndian.AppendUint32(*s, value)
}

// PopU32 removes and returns the top 32-bit value.
func (s *Stack) PopU32() (uint32, bool) {
	if len(*s) < 4 {
		return 0, false
	}
	index := len(*s) - 4
	value := binary.LittleEndian.Uint32((*s)[index:])
	*s = (*s)[:index]
	return value, true
}

// PeekU32 returns the top 32-bit value without removing it.
func (s *Stack) PeekU32() (uint32, bool) {
	if len(*s) < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32((*s)[len(*s)-4:]), true
}

// PushI32 appends a signed 32-bit value.
func (s *Stack) PushI32(value int32) {
	s.PushU32(uint32(value))
}

// PopI32 removes and returns the top value as a signed 32-bit integer.
func (s *Stack) PopI32() (int32, bool) {
	value, ok := s.PopU32()
	return int32(value), ok
}

// PeekI32 returns the top value as a signed 32-bit integer without
// removing it.
func (s *Stack) PeekI32() (int32, bool) {
	value, ok := s.PeekU32()
	return int32(value), ok
}

// PushF32 appends the IEEE-754 bits of a 32-bit float.
func (s *Stack) PushF32(value float32) {
	s.PushU32(math.Float32bits(value))
}

// PopF32 removes and returns the top value as a 32-bit float.
func (s *Stack) PopF32() (float32, bool) {
	value, ok := s.PopU32()
	return math.Float32frombits(value), ok
}

// PeekF32 returns the top value as a 32-bit float without removing it.
func (s *Stack) PeekF32() (float32, bool) {
	value, ok := s.PeekU32()
	return math.Float32frombits(value), ok
}

// PushBytes appends the given bytes in order.
func (s *Stack) PushBytes(value []byte) {
	*s = append(*s, value...)
}

// PopBytes removes the top n bytes and returns them in stack order, low
// address first.
func (s *Stack) PopBytes(n int) ([]byte, bool) {
	if len(*s) < n {
		return nil, false
	}
	index := len(*s) - n
	value := make([]byte, n)
	copy(value, (*s)[index:])
	*s = (*s)[:index]
	return value, true
}
