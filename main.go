package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"
)

type Args struct {
	Config  string
	Query   string
	Profile string
	// Benchmark is set when the benchmark subcommand is given.
	Benchmark *BenchmarkArgs
}

func stringFlag(fs *flag.FlagSet, target *string, long, short, value, usage string) {
	fs.StringVar(target, long, value, usage)
	fs.StringVar(target, short, value, usage+" (shorthand)")
}

func ParseArgs(args []string, output io.Writer) (Args, error) {
	var parsed Args
	fs := flag.NewFlagSet("snowflake-benchmark", flag.ContinueOnError)
	fs.SetOutput(output)
	stringFlag(fs, &parsed.Config, "config", "c", "", "path to the profiles file (required)")
	stringFlag(fs, &parsed.Query, "query", "q", "", "query to run, interactive mode when empty")
	stringFlag(fs, &parsed.Profile, "profile", "p", DefaultProfile, "profile name")
	fs.Usage = func() {
		fmt.Fprintf(output, "usage: %v --config <path> [--query <sql>] [--profile <name>]\n", fs.Name())
		fmt.Fprintf(output, "       %v --config <path> benchmark --query <sql> [--client <name>] [--iterations <n>]\n", fs.Name())
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return Args{}, err
	}
	if parsed.Config == "" {
		return Args{}, fmt.Errorf("%w: --config is required", ErrConfig)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return parsed, nil
	}
	if rest[0] != "benchmark" {
		return Args{}, fmt.Errorf("%w: unknown command %q", ErrConfig, rest[0])
	}

	bench := BenchmarkArgs{}
	bs := flag.NewFlagSet("benchmark", flag.ContinueOnError)
	bs.SetOutput(output)
	stringFlag(bs, &bench.Query, "query", "q", "", "query to benchmark (required)")
	stringFlag(bs, &bench.Client, "client", "c", string(VariantADBC), "client: adbc|snowflake-connector-rs|snowflake-api-arrow|snowflake-api-json")
	stringFlag(bs, &bench.Profile, "profile", "p", "", "profile name, overrides the global one")
	bs.IntVar(&bench.Iterations, "iterations", 1, "number of measured iterations")
	bs.IntVar(&bench.Iterations, "i", 1, "number of measured iterations (shorthand)")
	bs.IntVar(&bench.Warmup, "warmup", 0, "number of unmeasured iterations run first")
	timeout := bs.Duration("timeout", time.Duration(0), "request timeout, backend default when zero")
	if err := bs.Parse(rest[1:]); err != nil {
		return Args{}, err
	}
	if bs.NArg() > 0 {
		return Args{}, fmt.Errorf("%w: unexpected arguments %v", ErrConfig, bs.Args())
	}
	if bench.Query == "" {
		return Args{}, fmt.Errorf("%w: benchmark requires --query", ErrConfig)
	}
	if bench.Iterations < 1 {
		return Args{}, fmt.Errorf("%w: --iterations must be at least 1", ErrConfig)
	}
	if bench.Warmup < 0 {
		return Args{}, fmt.Errorf("%w: --warmup must not be negative", ErrConfig)
	}
	if bench.Profile == "" {
		bench.Profile = parsed.Profile
	}
	bench.Timeout = *timeout
	parsed.Benchmark = &bench
	return parsed, nil
}

func run(ctx context.Context, args []string) error {
	if err := LoadEnv(); err != nil {
		return err
	}
	if err := InitLogger(); err != nil {
		return err
	}
	defer Logger.Sync()

	parsed, err := ParseArgs(args, os.Stderr)
	if err != nil {
		return err
	}
	config, err := LoadConfig(parsed.Config)
	if err != nil {
		return err
	}

	system := NewSystem(config, os.Stdin, os.Stdout, os.Stderr)
	if parsed.Benchmark != nil {
		return system.RunBenchmark(ctx, *parsed.Benchmark)
	}
	return system.RunSession(ctx, parsed.Profile, parsed.Query)
}

func main() {
	err := run(context.Background(), os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
