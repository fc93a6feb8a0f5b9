package compiler

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mica/diag"
	"mica/parser"
)

// runSource compiles source and executes its main function, returning
// everything the program printed.
func runSource(t *testing.T, source string) string {
	module := compile(t, source)
	var out bytes.Buffer
	module.SetOutput(&out)

	_, err := module.RunMain()
	require.NoError(t, err)
	return out.String()
}

func TestRunArithmetic(t *testing.T) {
	out := runSource(t, "fn main() { print_int(5 + 3 * (3 + 2)) }")
	assert.Equal(t, "20\n", out)
}

func TestRunCountingLoop(t *testing.T) {
	out := runSource(t, `
fn main() {
	let i = 0
	loop {
		print_int(i)
		if i >= 10 {
			break
		}
		i = i + 1
	}
}
`)
	assert.Equal(t, "0\n1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n", out)
}

func TestRunFunctionCall(t *testing.T) {
	out := runSource(t, `
fn add(a: i32, b: i32) -> i32 {
	return a + b
}

fn main() {
	print_int(add(34, 29))
}
`)
	assert.Equal(t, "63\n", out)
}

func TestRunHelloWorld(t *testing.T) {
	out := runSource(t, `fn main() { print_str("Hello, World!") }`)
	assert.Equal(t, "Hello, World!\n", out)
}

func TestRunFloatAddition(t *testing.T) {
	out := runSource(t, "fn main() { print_float(1.5 + 2.25) }")
	assert.Equal(t, "3.75\n", out)
}

func TestUndefinedVariableDiagnostic(t *testing.T) {
	// y is undefined; compilation fails with a diagnostic at y's span
	source := `
fn main() {
	let x = 1
	x + y
}
`
	ctx := diag.NewContext(source)
	block := parser.New(ctx).Parse()
	require.False(t, ctx.HasErrors())

	_, err := New(ctx).Generate(block)
	require.Error(t, err)
	diags := ctx.Diagnostics()
	require.NotEmpty(t, diags)
	assert.Equal(t, "y", diags[0].Span.Text(source))

	var rendered bytes.Buffer
	ctx.Render(&rendered)
	assert.Contains(t, rendered.String(), "undefined")
	assert.Contains(t, rendered.String(), "x + y")
}

func TestRunEmptyMain(t *testing.T) {
	module := compile(t, "fn main() { }")
	ret, err := module.RunMain()
	require.NoError(t, err)
	assert.Empty(t, ret)
}

func TestRunIfSkipsFalseBranch(t *testing.T) {
	out := runSource(t, `
fn main() {
	if 1 == 2 {
		print_int(1)
	}
	print_int(2)
}
`)
	assert.Equal(t, "2\n", out)
}

func TestRunElseBranch(t *testing.T) {
	out := runSource(t, `
fn main() {
	if 1 == 2 {
		print_int(1)
	} else if 2 == 3 {
		print_int(2)
	} else {
		print_int(3)
	}
}
`)
	assert.Equal(t, "3\n", out)
}

func TestRunLoopBreakTerminates(t *testing.T) {
	out := runSource(t, `
fn main() {
	loop {
		print_int(1)
		break
	}
	print_int(2)
}
`)
	assert.Equal(t, "1\n2\n", out)
}

func TestRunReturnInsideNestedBlocks(t *testing.T) {
	out := runSource(t, `
fn pick(n: i32) -> i32 {
	loop {
		if n > 5 {
			return 100
		}
		return 200
	}
}

fn main() {
	print_int(pick(9))
	print_int(pick(1))
}
`)
	assert.Equal(t, "100\n200\n", out)
}

func TestRunRecursion(t *testing.T) {
	out := runSource(t, `
fn fact(n: i32) -> i32 {
	if n <= 1 {
		return 1
	}
	return n * fact(n - 1)
}

fn main() {
	print_int(fact(10))
}
`)
	assert.Equal(t, "3628800\n", out)
}

func TestRunFloatLocals(t *testing.T) {
	out := runSource(t, `
fn main() {
	let a = 1.5
	let b = 2.0
	print_float(a * b)
}
`)
	assert.Equal(t, "3\n", out)
}

func TestRunModulo(t *testing.T) {
	out := runSource(t, `
fn main() {
	print_int(17 % 5)
}
`)
	assert.Equal(t, "2\n", out)
}

func TestRunComparisonChain(t *testing.T) {
	out := runSource(t, `
fn max(a: i32, b: i32) -> i32 {
	if a > b {
		return a
	}
	return b
}

fn main() {
	print_int(max(3, 9))
	print_int(max(9, 3))
}
`)
	assert.Equal(t, "9\n9\n", out)
}

func TestRoundTripLiteralSpelling(t *testing.T) {
	// a literal printed comes out spelled exactly as written
	out := runSource(t, "fn main() { print_int(2512) print_int(-17) }")
	assert.Equal(t, "2512\n-17\n", out)
}
