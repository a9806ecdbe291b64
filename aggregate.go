package main

import (
	"fmt"
	"io"
	"strings"
	"time"
)

type BenchmarkResult struct {
	Client     string
	Iterations int
	Total      time.Duration
	Avg        time.Duration
	Min        time.Duration
	Max        time.Duration
	// Rows returned by one representative run, nil when unknown.
	Rows *int64
}

// Aggregate reduces the samples of one run. Rows come from the final sample
// and are never summed across iterations.
func Aggregate(client string, samples []IterationSample) (BenchmarkResult, error) {
	if len(samples) == 0 {
		return BenchmarkResult{}, fmt.Errorf("%w: client %v completed zero iterations", ErrNoSamples, client)
	}
	result := BenchmarkResult{
		Client:     client,
		Iterations: len(samples),
		Min:        samples[0].Duration,
		Max:        samples[0].Duration,
	}
	for _, sample := range samples {
		result.Total += sample.Duration
		result.Min = min(result.Min, sample.Duration)
		result.Max = max(result.Max, sample.Duration)
	}
	result.Avg = result.Total / time.Duration(len(samples))
	rows := samples[len(samples)-1].Rows
	result.Rows = &rows
	return result, nil
}

func (r BenchmarkResult) Report() string {
	var report strings.Builder
	report.WriteString(fmt.Sprintf("\n=== Benchmark Results: %v ===\n", r.Client))
	report.WriteString(fmt.Sprintf("Iterations: %v\n", r.Iterations))
	if r.Rows != nil {
		report.WriteString(fmt.Sprintf("Total rows: %v\n", *r.Rows))
	}
	report.WriteString(fmt.Sprintf("Total time: %v\n", FormatDuration(r.Total)))
	report.WriteString(fmt.Sprintf("Average time: %v\n", FormatDuration(r.Avg)))
	report.WriteString(fmt.Sprintf("Min time: %v\n", FormatDuration(r.Min)))
	report.WriteString(fmt.Sprintf("Max time: %v\n", FormatDuration(r.Max)))
	return report.String()
}

func (r BenchmarkResult) Print(out io.Writer) error {
	_, err := fmt.Fprintln(out, r.Report())
	return err
}

// FormatDuration prints two decimals in the largest unit below the value: 1.50s, 12.34ms, 7.00µs.
func FormatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	case d >= time.Microsecond:
		return fmt.Sprintf("%.2fµs", float64(d)/float64(time.Microsecond))
	}
	return fmt.Sprintf("%.2fns", float64(d))
}
