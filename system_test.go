package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testSystem(runner *fakeRunner) (*System, *bytes.Buffer) {
	config := &Config{Profiles: map[string]Profile{
		"prod": {Account: "prod-account", User: "bench", Password: "pw"},
		"dev":  {Account: "dev-account", User: "bench", Password: "pw"},
	}}
	var out bytes.Buffer
	system := NewSystem(config, strings.NewReader(""), &out, &out)
	system.newRunner = func(variant Variant, opts RunnerOptions) Runner {
		runner.name = string(variant)
		runner.options = opts
		return runner
	}
	return system, &out
}

func TestRunBenchmark(t *testing.T) {
	t.Parallel()
	instance := countInstance("snowflake-api-json", 4)
	runner := &fakeRunner{instance: instance}
	system, out := testSystem(runner)

	err := system.RunBenchmark(context.Background(), BenchmarkArgs{
		Profile:    "dev",
		Query:      "show tables",
		Client:     "snowflake-api-json",
		Iterations: 3,
		Warmup:     1,
		Timeout:    time.Minute,
	})
	require.NoError(t, err)
	require.Equal(t, "dev-account", runner.profile.Account)
	require.Equal(t, time.Minute, runner.options.Timeout)
	require.Len(t, instance.executed, 4)
	require.True(t, instance.closed)

	output := out.String()
	require.True(t, strings.HasPrefix(output, "Running benchmark with client: snowflake-api-json\nQuery: show tables\nIterations: 3\n\n"))
	require.Contains(t, output, "Iteration 1: ")
	require.Contains(t, output, "Iteration 3: ")
	require.Contains(t, output, "\n=== Benchmark Results: snowflake-api-json ===\nIterations: 3\nTotal rows: 4\n")
}

func TestRunBenchmarkRejectsInput(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{instance: countInstance("adbc", 1)}
	system, _ := testSystem(runner)

	err := system.RunBenchmark(context.Background(), BenchmarkArgs{Profile: "prod", Query: "select 1", Client: "odbc", Iterations: 1})
	require.ErrorIs(t, err, ErrConfig)
	require.ErrorContains(t, err, "unknown client: odbc. Supported clients: adbc, snowflake-connector-rs, snowflake-api-arrow, snowflake-api-json")

	err = system.RunBenchmark(context.Background(), BenchmarkArgs{Profile: "qa", Query: "select 1", Client: "adbc", Iterations: 1})
	require.ErrorIs(t, err, ErrConfig)
	require.ErrorContains(t, err, "available: dev, prod")
	require.Empty(t, runner.instance.executed)
}

func TestRunBenchmarkInitFailure(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{initErr: fmt.Errorf("%w: either password or private_key is required for authentication", ErrMissingCredential)}
	system, _ := testSystem(runner)

	err := system.RunBenchmark(context.Background(), BenchmarkArgs{Query: "select 1", Client: "snowflake-connector-rs", Iterations: 2})
	require.ErrorIs(t, err, ErrMissingCredential)
	require.Equal(t, "prod-account", runner.profile.Account)
}

func TestRunBenchmarkAbortsWithoutSummary(t *testing.T) {
	t.Parallel()
	boom := errors.New("warehouse suspended")
	instance := &fakeInstance{
		name: "adbc",
		execute: func(call int, _ string) (*Result, error) {
			if call == 1 {
				return nil, boom
			}
			return NewCountResult(1, nil), nil
		},
	}
	system, out := testSystem(&fakeRunner{instance: instance})

	err := system.RunBenchmark(context.Background(), BenchmarkArgs{Query: "select 1", Client: "adbc", Iterations: 3})
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "iteration #2 failed")
	require.NotContains(t, out.String(), "Benchmark Results")
	require.True(t, instance.closed)
}

func TestRunSession(t *testing.T) {
	t.Parallel()
	instance := countInstance("adbc", 0)
	runner := &fakeRunner{instance: instance}
	system, out := testSystem(runner)

	require.NoError(t, system.RunSession(context.Background(), "", "create table t (id int)"))
	require.Equal(t, "adbc", runner.name)
	require.Equal(t, "prod-account", runner.profile.Account)
	require.Equal(t, "Query returned no rows.\n", out.String())
	require.True(t, instance.closed)

	out.Reset()
	require.NoError(t, system.RunSession(context.Background(), "dev", ""))
	require.Contains(t, out.String(), "adbc CLI - Interactive Mode")
	require.Equal(t, "dev-account", runner.profile.Account)
}
