package graph

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors for programmatic error checking via errors.Is().
var (
	ErrUnknownPredecessor   = errors.New("unknown predecessor")
	ErrDuplicateTaskID      = errors.New("duplicate task id")
	ErrDuplicatePredecessor = errors.New("duplicate predecessor")
	ErrInvalidDuration      = errors.New("invalid duration")
	ErrCycleDetected        = errors.New("dependency cycle detected")
)

// UnknownPredecessorError reports a predecessor id absent from the task set.
// Wraps ErrUnknownPredecessor.
type UnknownPredecessorError struct {
	TaskID        int
	PredecessorID int
}

func (e *UnknownPredecessorError) Error() string {
	return fmt.Sprintf("%s: task %d references missing task %d", ErrUnknownPredecessor, e.TaskID, e.PredecessorID)
}

func (e *UnknownPredecessorError) Unwrap() error { return ErrUnknownPredecessor }

// DuplicateTaskIDError reports two records sharing an id under RejectDuplicates.
// Wraps ErrDuplicateTaskID.
type DuplicateTaskIDError struct {
	TaskID int
}

func (e *DuplicateTaskIDError) Error() string {
	return fmt.Sprintf("%s: %d", ErrDuplicateTaskID, e.TaskID)
}

func (e *DuplicateTaskIDError) Unwrap() error { return ErrDuplicateTaskID }

// CycleError carries one offending cycle, first id repeated at the end.
// Wraps ErrCycleDetected.
type CycleError struct {
	Path []int
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, id := range e.Path {
		parts[i] = strconv.Itoa(id)
	}
	return fmt.Sprintf("%s: %s", ErrCycleDetected, strings.Join(parts, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }
