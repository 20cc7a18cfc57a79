// Package fdderr defines the typed failures surfaced by the detection
// pipeline. Every failure names the stage it came from and one of a small
// set of kinds, and both can be matched with errors.Is.
package fdderr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure
type Kind int

const (
	Configuration Kind = iota + 1
	NumericDegeneracy
	GeometryEdgeCase
	ExternalRoutineFailure
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration error"
	case NumericDegeneracy:
		return "numeric degeneracy"
	case GeometryEdgeCase:
		return "geometry edge case"
	case ExternalRoutineFailure:
		return "external routine failure"
	default:
		return "unknown error"
	}
}

// Kind sentinels, matched by errors.Is against any *Error of that kind
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrNumericDegeneracy = errors.New("numeric degeneracy")
	ErrGeometryEdgeCase  = errors.New("geometry edge case")
	ErrExternalRoutine   = errors.New("external routine failure")
)

// Causes
var (
	ErrDivisionByZero  = errors.New("division by zero")
	ErrLengthMismatch  = errors.New("length mismatch")
	ErrSolverArtifact  = errors.New("solver artifact unavailable")
	ErrNoCrossing      = errors.New("no 0.5 crossing found")
	ErrZeroDenominator = errors.New("zero interpolation denominator")
	ErrSingleCluster   = errors.New("gradient histogram has a single cluster")
)

// Stage names used in error messages
const (
	StageInput      = "input"
	StageNormalize  = "normalize"
	StageGrid       = "grid"
	StageSolver     = "solver"
	StageIsosurface = "isosurface"
	StageThreshold  = "threshold"
	StageBoundary   = "boundary"
)

// Error is a failure of one pipeline stage
type Error struct {
	Stage string
	Kind  Kind
	Err   error
}

// New wraps err as a failure of kind in stage
func New(stage string, kind Kind, err error) *Error {
	return &Error{Stage: stage, Kind: kind, Err: err}
}

// Errorf builds a failure whose cause is formatted like fmt.Errorf, so %w
// verbs keep the wrapped cause reachable
func Errorf(stage string, kind Kind, format string, args ...interface{}) *Error {
	return New(stage, kind, fmt.Errorf(format, args...))
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of this error's kind
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return e.Kind == Configuration
	case ErrNumericDegeneracy:
		return e.Kind == NumericDegeneracy
	case ErrGeometryEdgeCase:
		return e.Kind == GeometryEdgeCase
	case ErrExternalRoutine:
		return e.Kind == ExternalRoutineFailure
	}
	return false
}

// StageOf returns the stage of the first *Error in err's chain, or "" if
// there is none
func StageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}
