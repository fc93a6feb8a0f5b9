package compiler

import "fmt"

// CompileError reports a fatal code-generation error: duplicate function,
// undefined variable, type mismatch, a block containing parse errors.
// Source-located details go to the diagnostic context; this error is what
// Generate returns after aborting.
type CompileError struct {
	Message string
}

func (e CompileError) Error() string {
	return fmt.Sprintf("💥 CompileError: %s", e.Message)
}
