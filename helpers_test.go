package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"
)

func recordFromJSON(t *testing.T, schema *arrow.Schema, rows string) arrow.Record {
	t.Helper()
	record, _, err := array.RecordFromJSON(memory.DefaultAllocator, schema, strings.NewReader(rows))
	require.NoError(t, err)
	return record
}

// readerOf returns a reader over the records and drops the caller references.
func readerOf(t *testing.T, schema *arrow.Schema, records ...arrow.Record) array.RecordReader {
	t.Helper()
	reader, err := array.NewRecordReader(schema, records)
	require.NoError(t, err)
	for _, record := range records {
		record.Release()
	}
	return reader
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeInstance struct {
	name     string
	executed []string
	released int
	closed   bool
	execute  func(call int, query string) (*Result, error)
}

func (i *fakeInstance) Name() string { return i.name }

func (i *fakeInstance) Execute(_ context.Context, query string) (*Result, error) {
	i.executed = append(i.executed, query)
	result, err := i.execute(len(i.executed)-1, query)
	if err != nil {
		return nil, err
	}
	closer := result.closer
	result.closer = func() error {
		i.released++
		if closer != nil {
			return closer()
		}
		return nil
	}
	return result, nil
}

func (i *fakeInstance) Close() error {
	i.closed = true
	return nil
}

type fakeRunner struct {
	name     string
	instance *fakeInstance
	initErr  error
	profile  Profile
	options  RunnerOptions
}

func (r *fakeRunner) Name() string { return r.name }

func (r *fakeRunner) Init(profile Profile) (Instance, error) {
	r.profile = profile
	if r.initErr != nil {
		return nil, r.initErr
	}
	return r.instance, nil
}

func countInstance(name string, rows int64) *fakeInstance {
	return &fakeInstance{
		name: name,
		execute: func(int, string) (*Result, error) {
			return NewCountResult(rows, nil), nil
		},
	}
}
