package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

const prompt = "adbc> "

// Session runs single queries outside of benchmarking and prints their results.
type Session struct {
	instance Instance
	table    Table
	out      io.Writer
	errOut   io.Writer
}

func NewSession(instance Instance, out, errOut io.Writer) *Session {
	return &Session{instance: instance, table: Table{Out: out}, out: out, errOut: errOut}
}

func (s *Session) Query(ctx context.Context, query string) error {
	result, err := s.instance.Execute(ctx, query)
	if err != nil {
		return err
	}
	defer result.Close()

	if result.Columnar() {
		return s.table.Render(result.Reader)
	}
	rows, err := result.Rows()
	if err != nil {
		return err
	}
	if rows == 0 {
		_, err = fmt.Fprintln(s.out, noRowsNotice)
	} else {
		_, err = fmt.Fprintf(s.out, "Query returned %v rows.\n", rows)
	}
	return err
}

// Interactive executes one query per input line until exit, quit or EOF.
// Query failures are reported and do not end the loop.
func (s *Session) Interactive(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(s.out, "%v CLI - Interactive Mode\n", s.instance.Name())
	fmt.Fprint(s.out, "Enter SQL queries (or 'exit' to quit):\n\n")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for {
		fmt.Fprint(s.out, prompt)
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" {
			return nil
		}
		if err := s.Query(ctx, query); err != nil {
			fmt.Fprintf(s.errOut, "Error: %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	fmt.Fprintln(s.out)
	return nil
}
