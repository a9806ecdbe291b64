package main

import (
	"errors"
	"fmt"
)

var (
	ErrConfig               = errors.New("config error")
	ErrMissingCredential    = errors.New("missing credential")
	ErrUnsupportedKeyFormat = errors.New("unsupported private key format")
	ErrConnection           = errors.New("connection failure")
	ErrQueryExecution       = errors.New("query execution failure")
	ErrResultShapeMismatch  = errors.New("result shape mismatch")
	ErrNoSamples            = errors.New("no benchmark samples")
)

// ShapeMismatchError is returned when a backend receives a result form it cannot consume.
type ShapeMismatchError struct {
	Client   string // backend that ran the query
	Got      string // shape returned by the server
	Expected string // shape the backend consumes
	Suggest  string // backend that handles Got
	Hint     string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf(
		"%v: expected %v result but got %v. Use %v client for %v results, or %v",
		e.Client, e.Expected, e.Got, e.Suggest, e.Got, e.Hint,
	)
}

func (e *ShapeMismatchError) Unwrap() error {
	return ErrResultShapeMismatch
}
