package main

import (
	"context"
	"fmt"
	"io"
	"time"
)

type Benchmark struct {
	Warmup     int
	Iterations int
	Out        io.Writer
	// now is replaced in tests
	now func() time.Time
}

type IterationSample struct {
	Duration time.Duration
	Rows     int64
}

func (b *Benchmark) clock() time.Time {
	if b.now != nil {
		return b.now()
	}
	return time.Now()
}

// runOnce executes the query and drains the full result; the connection is
// released after the elapsed time is taken.
func (b *Benchmark) runOnce(ctx context.Context, instance Instance, query string) (IterationSample, error) {
	start := b.clock()
	result, err := instance.Execute(ctx, query)
	if err != nil {
		return IterationSample{}, err
	}
	rows, err := result.Rows()
	elapsed := b.clock().Sub(start)
	closeErr := result.Close()
	if err != nil {
		return IterationSample{}, err
	}
	if closeErr != nil {
		Logger.Warnf("failed to release %v connection: %v", instance.Name(), closeErr)
	}
	return IterationSample{Duration: elapsed, Rows: rows}, nil
}

func (b *Benchmark) WarmupQuery(ctx context.Context, instance Instance, query string) error {
	for i := 0; i < b.Warmup; i++ {
		Logger.Infof("running warmup #%v/%v with client %v", i+1, b.Warmup, instance.Name())
		if _, err := b.runOnce(ctx, instance, query); err != nil {
			return fmt.Errorf("warmup #%v failed: %w", i+1, err)
		}
	}
	return nil
}

// RunQuery measures the iterations strictly one after another and stops at the
// first failure, returning the samples completed so far.
func (b *Benchmark) RunQuery(ctx context.Context, instance Instance, query string) ([]IterationSample, error) {
	if b.Iterations < 1 {
		return nil, fmt.Errorf("%w: iterations must be at least 1, got %v", ErrConfig, b.Iterations)
	}
	samples := make([]IterationSample, 0, b.Iterations)
	for i := 0; i < b.Iterations; i++ {
		Logger.Debugf("running iteration #%v/%v with client %v", i+1, b.Iterations, instance.Name())
		sample, err := b.runOnce(ctx, instance, query)
		if err != nil {
			return samples, fmt.Errorf("iteration #%v failed: %w", i+1, err)
		}
		samples = append(samples, sample)
		if b.Out != nil {
			if i == 0 {
				fmt.Fprintf(b.Out, "Iteration %v: %v (%v)\n", i+1, FormatDuration(sample.Duration), sample.Rows)
			} else {
				fmt.Fprintf(b.Out, "Iteration %v: %v\n", i+1, FormatDuration(sample.Duration))
			}
		}
	}
	return samples, nil
}
