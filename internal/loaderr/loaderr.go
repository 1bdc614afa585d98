// Package loaderr holds the error taxonomy shared by the loading pipeline.
package loaderr

import (
	"errors"
	"fmt"
)

// Kind classifies a loading failure.
type Kind int

const (
	// KindNone is returned by KindOf for errors outside the taxonomy.
	KindNone Kind = iota
	// KindUserInput: the user dropped files that cannot start a load
	// (no model present and none established yet).
	KindUserInput
	// KindReferenceMissing: a reference inside a model file resolved to nothing
	// and the fallback fetch failed too.
	KindReferenceMissing
	// KindParse: a format parser rejected the content.
	KindParse
	// KindInvariantViolation: programmer error, e.g. the primary file is absent
	// from its own resource map.
	KindInvariantViolation
)

func (k Kind) String() string {
	switch k {
	case KindUserInput:
		return "user input"
	case KindReferenceMissing:
		return "reference missing"
	case KindParse:
		return "parse error"
	case KindInvariantViolation:
		return "invariant violation"
	}
	return "unknown"
}

// Error is a classified loading failure. File names the file (or reference)
// the failure is about and may be empty.
type Error struct {
	Kind Kind
	File string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.File != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.File, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.File != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.File)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain, or KindNone.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindNone
}

// ErrNoModel is the user-facing cause carried by UserInput errors.
var ErrNoModel = errors.New("no model file present: drop a 3D model file (GLB, GLTF, OBJ, FBX, STL) first")

func UserInput(err error) *Error {
	return &Error{Kind: KindUserInput, Err: err}
}

func ReferenceMissing(ref string, err error) *Error {
	return &Error{Kind: KindReferenceMissing, File: ref, Err: err}
}

func Parse(file string, err error) *Error {
	return &Error{Kind: KindParse, File: file, Err: err}
}

func InvariantViolation(file string, err error) *Error {
	return &Error{Kind: KindInvariantViolation, File: file, Err: err}
}
