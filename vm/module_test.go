package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConstIndexes(t *testing.T) {
	module := NewModule()
	first := module.NewConst("main")
	second := module.NewConst("add")

	// the constant index is the offset of the length byte
	assert.Equal(t, 0, first)
	assert.Equal(t, 5, second)
	assert.Equal(t, []byte{4, 'm', 'a', 'i', 'n', 3, 'a', 'd', 'd'}, module.Constants())

	name, err := module.ConstString(first)
	require.NoError(t, err)
	assert.Equal(t, "main", name)
	name, err = module.ConstString(second)
	require.NoError(t, err)
	assert.Equal(t, "add", name)
}

func TestConstStringOutOfRange(t *testing.T) {
	module := NewModule()
	_, err := module.ConstString(3)
	assert.Error(t, err)
}

func TestGetMain(t *testing.T) {
	module := NewModule()
	other := module.NewConst("helper")
	module.PushFn(other, NewFunction(nil, nil, Void, module))
	mainIndex := module.NewConst("main")
	mainFn := NewFunction([]byte{NOP}, nil, Void, module)
	module.PushFn(mainIndex, mainFn)

	got, err := module.GetMain()
	require.NoError(t, err)
	assert.Same(t, mainFn, got)
}

func TestGetMainMissing(t *testing.T) {
	module := NewModule()
	index := module.NewConst("helper")
	module.PushFn(index, NewFunction(nil, nil, Void, module))

	_, err := module.GetMain()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no main function")
}

func TestGetFnMissing(t *testing.T) {
	module := NewModule()
	_, err := module.GetFn(7)
	assert.Error(t, err)
}

func TestRunMainEmptyBody(t *testing.T) {
	// an empty function body runs to completion and returns no bytes
	module := NewModule()
	index := module.NewConst("main")
	module.PushFn(index, NewFunction(nil, nil, Void, module))

	ret, err := module.RunMain()
	require.NoError(t, err)
	assert.Empty(t, ret)
}

func TestCallPopsArgsInDeclarationOrder(t *testing.T) {
	module := NewModule()
	index := module.NewConst("first")
	// returns its first parameter
	program := asm([]byte{LOAD_I, 0}, []byte{RET_I})
	module.PushFn(index, NewFunction(program, []Type{I32, I32}, I32, module))

	var stack Stack
	stack.PushI32(11)
	stack.PushI32(22)
	ret, err := module.Call(index, &stack)
	require.NoError(t, err)
	require.Len(t, ret, 4)
	assert.Equal(t, int32(11), int32(uint32(ret[0])|uint32(ret[1])<<8|uint32(ret[2])<<16|uint32(ret[3])<<24))
	// the caller's stack no longer holds the arguments
	assert.Empty(t, stack)
}

func TestCallUnderflow(t *testing.T) {
	module := NewModule()
	index := module.NewConst("f")
	module.PushFn(index, NewFunction(nil, []Type{I32}, Void, module))

	var stack Stack
	_, err := module.Call(index, &stack)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "underflow")
}

func TestTypeWidths(t *testing.T) {
	assert.Equal(t, 4, I32.Width())
	assert.Equal(t, 4, F32.Width())
	assert.Equal(t, 4, String.Width())
	assert.Equal(t, 0, Void.Width())
}

func TestDisassembleModule(t *testing.T) {
	module := NewModule()
	index := module.NewConst("main")
	module.PushFn(index, NewFunction(asm(pushI(5), []byte{VIRTUAL, VirtPrintInt}), nil, Void, module))

	listing, err := module.Disassemble()
	require.NoError(t, err)
	assert.Contains(t, listing, "constants:")
	assert.Contains(t, listing, "main")
	assert.Contains(t, listing, "push_i")
	assert.Contains(t, listing, "virtual")
}

func TestMnemonics(t *testing.T) {
	assert.Equal(t, "push_i", Mnemonic(PUSH_I))
	assert.Equal(t, "ret_i", Mnemonic(RET_I))
	assert.Equal(t, "unknown", Mnemonic(0x55))
}
