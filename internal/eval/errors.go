package eval

import (
	"errors"
	"fmt"
)

var (
	// ErrUndeclared is returned when an expression reads an unbound variable.
	ErrUndeclared = errors.New("variable not declared")

	// ErrAssignTarget is returned when the left side of "=" is not a variable.
	ErrAssignTarget = errors.New("assignment must be a variable")
)

// Stage names the pipeline step an evaluation failed in.
type Stage string

const (
	StageParse   Stage = "parse"
	StageLower   Stage = "lower"
	StageCompile Stage = "compile"
	StageExecute Stage = "execute"
)

// Error is returned by Evaluator for any failed evaluation.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StageOf returns the stage err failed in, or "" if err did not come from an
// Evaluator.
func StageOf(err error) Stage {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}
