package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
)

type Variant string

const (
	VariantADBC      Variant = "adbc"
	VariantConnector Variant = "snowflake-connector-rs"
	VariantAPIArrow  Variant = "snowflake-api-arrow"
	VariantAPIJSON   Variant = "snowflake-api-json"
)

var Variants = []Variant{VariantADBC, VariantConnector, VariantAPIArrow, VariantAPIJSON}

// defaultTimeouts lists request timeouts a backend applies unless overridden.
// Backends absent here use whatever their driver defaults to.
var defaultTimeouts = map[Variant]time.Duration{
	VariantConnector: 30 * time.Second,
}

func ParseVariant(name string) (Variant, error) {
	for _, variant := range Variants {
		if string(variant) == name {
			return variant, nil
		}
	}
	supported := make([]string, len(Variants))
	for i, variant := range Variants {
		supported[i] = string(variant)
	}
	return "", fmt.Errorf("%w: unknown client: %v. Supported clients: %v", ErrConfig, name, strings.Join(supported, ", "))
}

type RunnerOptions struct {
	// Timeout overrides the backend request timeout when positive.
	Timeout time.Duration
}

func (o RunnerOptions) timeout(variant Variant) time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return defaultTimeouts[variant]
}

// Runner validates credentials for one backend and prepares it; it never touches the network.
type Runner interface {
	Name() string
	Init(profile Profile) (Instance, error)
}

// Instance executes queries; unless the profile asks to reuse connections,
// every Execute opens a new connection which is released by Result.Close.
type Instance interface {
	Name() string
	Execute(ctx context.Context, query string) (*Result, error)
	Close() error
}

func NewRunner(variant Variant, opts RunnerOptions) Runner {
	switch variant {
	case VariantADBC:
		return &RunnerADBC{Timeout: opts.timeout(variant)}
	case VariantConnector:
		return &RunnerConnector{Timeout: opts.timeout(variant)}
	case VariantAPIArrow:
		return &RunnerAPI{Variant: variant, Shape: ShapeArrow, Timeout: opts.timeout(variant)}
	case VariantAPIJSON:
		return &RunnerAPI{Variant: variant, Shape: ShapeJSON, Timeout: opts.timeout(variant)}
	}
	panic(fmt.Sprintf("unexpected variant %v", variant))
}

// BatchReader is the part of array.RecordReader consumed by the renderer and the benchmark.
type BatchReader interface {
	Schema() *arrow.Schema
	Next() bool
	Record() arrow.Record
	Err() error
	Release()
}

// Result of one execution: a columnar Reader, or a materialized Count when Reader is nil.
type Result struct {
	Reader BatchReader
	Count  int64
	closer func() error
}

func NewColumnarResult(reader BatchReader, closer func() error) *Result {
	return &Result{Reader: reader, closer: closer}
}

func NewCountResult(count int64, closer func() error) *Result {
	return &Result{Count: count, closer: closer}
}

func (r *Result) Columnar() bool { return r.Reader != nil }

// Rows drains the reader, if any, and returns the number of rows.
func (r *Result) Rows() (int64, error) {
	if r.Reader == nil {
		return r.Count, nil
	}
	var rows int64
	for r.Reader.Next() {
		rows += r.Reader.Record().NumRows()
	}
	if err := r.Reader.Err(); err != nil {
		return rows, fmt.Errorf("%w: failed to read batch: %w", ErrQueryExecution, err)
	}
	r.Count = rows
	return rows, nil
}

func (r *Result) Close() error {
	var errs []error
	if r.Reader != nil {
		r.Reader.Release()
		r.Reader = nil
	}
	if r.closer != nil {
		errs = append(errs, r.closer())
		r.closer = nil
	}
	return errors.Join(errs...)
}

// closeAll closes in order and joins the errors.
func closeAll(closers ...func() error) func() error {
	return func() error {
		var errs []error
		for _, closer := range closers {
			if closer != nil {
				errs = append(errs, closer())
			}
		}
		return errors.Join(errs...)
	}
}
