package loader

import (
	"errors"
	"fmt"
)

// ErrMalformedRecord indicates an input row that cannot be turned into a task.
var ErrMalformedRecord = errors.New("malformed record")

// MalformedRecordError locates a bad row. Line is 1-based within the source;
// for JSON it is the element index plus one. Wraps ErrMalformedRecord.
type MalformedRecordError struct {
	Source string
	Line   int
	Field  string
	Msg    string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	loc := e.Source
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Source, e.Line)
	}
	msg := e.Msg
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", ErrMalformedRecord, loc, msg)
}

func (e *MalformedRecordError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedRecord, e.Err}
	}
	return []error{ErrMalformedRecord}
}
