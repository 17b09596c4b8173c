package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a job id has no record.
	ErrNotFound = errors.New("job not found")

	// ErrTerminal is returned when an operation needs a job that has not finished.
	ErrTerminal = errors.New("job already finished")

	// ErrQueueFull is returned when the worker pool cannot accept more jobs.
	ErrQueueFull = errors.New("job queue full")

	// ErrInvalidRequest is returned for submit requests missing required fields.
	ErrInvalidRequest = errors.New("invalid request")
)

// fatal is implemented by errors that abort a job.
type fatal interface {
	Fatal() bool
}

// IsFatal reports whether err (or anything it wraps) aborts the job.
func IsFatal(err error) bool {
	var f fatal
	return errors.As(err, &f) && f.Fatal()
}

// StoreWriteError wraps a failure to persist job state.
type StoreWriteError struct {
	Op  string
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

func (e *StoreWriteError) Fatal() bool { return true }

// InputError is returned when the job's input file cannot be read.
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("read input %s: %v", e.Path, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

func (e *InputError) Fatal() bool { return true }

// PageError is a recoverable degradation recorded on a single page.
type PageError struct {
	Page  int
	Stage string
	Err   error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d %s: %v", e.Page, e.Stage, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// note is the short form stored on the page record.
func (e *PageError) note() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}
