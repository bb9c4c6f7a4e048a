package aqua

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("revision conflict")
	ErrMissingInit       = errors.New("missing init")
	ErrUnknownCapability = errors.New("unknown capability")

	errEmptyID = errors.New("empty id")
)

type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	var buf strings.Builder
	buf.WriteString(e.Msg)
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	n := len(e.Data)
	switch {
	case n == 0:
	case n <= prefixLen+suffixLen:
		fmt.Fprintf(&buf, ": (%d) %q", n, e.Data)
	default:
		fmt.Fprintf(&buf, ": (%d) %q...%q", n, e.Data[:prefixLen], e.Data[n-suffixLen:])
	}
	return buf.String()
}

// ClassificationError reports a value that has no packing strategy.
type ClassificationError struct {
	Type reflect.Type
	Path Path
	Msg  string
}

func classificationErrf(v any, path Path, format string, args ...any) error {
	return &ClassificationError{reflect.TypeOf(v), path, fmt.Sprintf(format, args...)}
}

func (e *ClassificationError) Error() string {
	var buf strings.Builder
	buf.WriteString("cannot pack ")
	if e.Type == nil {
		buf.WriteString("<nil>")
	} else {
		buf.WriteString(e.Type.String())
	}
	if len(e.Path) > 0 {
		buf.WriteString(" at ")
		buf.WriteString(e.Path.String())
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	return buf.String()
}

// UnknownTypeError reports a stored class name that the registry cannot
// resolve, or a type that lacks the codec a node requires.
type UnknownTypeError struct {
	Class string
	Path  Path
	Err   error
}

func (e *UnknownTypeError) Unwrap() error {
	return e.Err
}

func (e *UnknownTypeError) Error() string {
	var buf strings.Builder
	buf.WriteString("unknown type ")
	buf.WriteString(e.Class)
	if len(e.Path) > 0 {
		buf.WriteString(" at ")
		buf.WriteString(e.Path.String())
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// ExternalSaveWarning records an external that failed to save during a
// commit. Index is the position of the external in discovery order and ID the
// id left in the packed tree (stale on update failures, empty on create).
type ExternalSaveWarning struct {
	Index int
	Class string
	ID    string
	Paths []Path
	Err   error
}

func (e *ExternalSaveWarning) Unwrap() error {
	return e.Err
}

func (e *ExternalSaveWarning) Error() string {
	id := e.ID
	if id == "" {
		id = "<new>"
	}
	return fmt.Sprintf("external #%d %s/%s not saved: %v", e.Index, e.Class, id, e.Err)
}

// StoreError wraps a failure of the document or attachment store.
type StoreError struct {
	Database string
	ID       string
	Op       string
	Err      error
}

func storeErrf(database, id, op string, err error) error {
	return &StoreError{database, id, op, err}
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Database, e.ID, e.Err)
}

// ResolutionError reports a stub that failed to load its delegate.
type ResolutionError struct {
	Class string
	ID    string
	Err   error
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s/%s: %v", e.Class, e.ID, e.Err)
}

func unknownCapabilityErrf(class, name string) error {
	return fmt.Errorf("%s does not respond to %q: %w", class, name, ErrUnknownCapability)
}

// isFatal reports errors that must abort a commit instead of becoming
// warnings.
func isFatal(err error) bool {
	var ce *ClassificationError
	var ue *UnknownTypeError
	return errors.As(err, &ce) || errors.As(err, &ue)
}
