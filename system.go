package main

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
)

type SysInfo struct {
	Arch     string
	Hostname string
	Platform string
	CPUCount int
	CPUFreq  float64
	RAM      float64
}

// HostStat describes the machine the client runs on; network latency dominates
// the measurements but a slow client host still skews them.
func HostStat() SysInfo {
	info := SysInfo{Arch: runtime.GOARCH}
	if hostStat, err := host.Info(); err == nil {
		info.Hostname = hostStat.Hostname
		info.Platform = hostStat.Platform
	}
	if cpuStat, err := cpu.Info(); err == nil && len(cpuStat) > 0 {
		totalFreq := 0.0
		for _, cpu := range cpuStat {
			totalFreq += cpu.Mhz
		}
		info.CPUCount = len(cpuStat)
		info.CPUFreq = totalFreq / float64(len(cpuStat))
	}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		info.RAM = float64(vmStat.Total) / 1024 / 1024 / 1024
	}
	return info
}

type BenchmarkArgs struct {
	Profile    string
	Query      string
	Client     string
	Iterations int
	Warmup     int
	Timeout    time.Duration
}

type System struct {
	config    *Config
	in        io.Reader
	out       io.Writer
	errOut    io.Writer
	newRunner func(Variant, RunnerOptions) Runner
}

func NewSystem(config *Config, in io.Reader, out, errOut io.Writer) *System {
	return &System{config: config, in: in, out: out, errOut: errOut, newRunner: NewRunner}
}

func (s *System) RunBenchmark(ctx context.Context, args BenchmarkArgs) error {
	profile, err := s.config.Profile(args.Profile)
	if err != nil {
		return err
	}
	variant, err := ParseVariant(args.Client)
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Running benchmark with client: %v\n", variant)
	fmt.Fprintf(s.out, "Query: %v\n", args.Query)
	fmt.Fprintf(s.out, "Iterations: %v\n\n", args.Iterations)
	Logger.Infof("host stat: %+v", HostStat())

	runner := s.newRunner(variant, RunnerOptions{Timeout: args.Timeout})
	instance, err := runner.Init(profile)
	if err != nil {
		return fmt.Errorf("failed to initialize client %v: %w", runner.Name(), err)
	}
	defer func() {
		if err := instance.Close(); err != nil {
			Logger.Warnf("failed to close client %v: %v", instance.Name(), err)
		}
	}()

	benchmark := Benchmark{Warmup: args.Warmup, Iterations: args.Iterations, Out: s.out}
	if err := benchmark.WarmupQuery(ctx, instance, args.Query); err != nil {
		return fmt.Errorf("failed to warmup client %v: %w", instance.Name(), err)
	}
	samples, err := benchmark.RunQuery(ctx, instance, args.Query)
	if err != nil {
		return fmt.Errorf("failed to run benchmark with client %v: %w", instance.Name(), err)
	}
	result, err := Aggregate(string(variant), samples)
	if err != nil {
		return err
	}
	Logger.Debugf("benchmark finished: %+v", result)
	return result.Print(s.out)
}

// RunSession runs the query, or reads queries from input when it is empty, with the native client.
func (s *System) RunSession(ctx context.Context, profileName string, query string) error {
	profile, err := s.config.Profile(profileName)
	if err != nil {
		return err
	}
	runner := s.newRunner(VariantADBC, RunnerOptions{})
	instance, err := runner.Init(profile)
	if err != nil {
		return fmt.Errorf("failed to initialize client %v: %w", runner.Name(), err)
	}
	defer instance.Close()

	session := NewSession(instance, s.out, s.errOut)
	if query != "" {
		return session.Query(ctx, query)
	}
	return session.Interactive(ctx, s.in)
}
