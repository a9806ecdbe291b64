package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/mattn/go-runewidth"
)

const (
	DisplayRowLimit = 1000
	minColumnWidth  = 10
	columnSeparator = " | "
	headerSeparator = "-+-"
	noRowsNotice    = "Query returned no rows."
)

// Table prints record batches as an aligned text table. Column widths depend
// on every displayed cell, so all batches are retained until the table is printed.
type Table struct {
	Out io.Writer
	// RowLimit caps displayed rows per batch, DisplayRowLimit when zero.
	RowLimit int
}

func (t *Table) limit() int {
	if t.RowLimit > 0 {
		return t.RowLimit
	}
	return DisplayRowLimit
}

func (t *Table) Render(reader BatchReader) error {
	var records []arrow.Record
	defer func() {
		for _, record := range records {
			record.Release()
		}
	}()
	for reader.Next() {
		record := reader.Record()
		if record.NumRows() == 0 {
			continue
		}
		record.Retain()
		records = append(records, record)
	}
	if err := reader.Err(); err != nil {
		return fmt.Errorf("%w: failed to read batch: %w", ErrQueryExecution, err)
	}

	out := bufio.NewWriter(t.Out)
	if len(records) == 0 {
		fmt.Fprintln(out, noRowsNotice)
		return out.Flush()
	}

	schema := records[0].Schema()
	widths := t.widths(schema, records)

	header := make([]string, len(widths))
	separator := make([]string, len(widths))
	for i, field := range schema.Fields() {
		header[i] = runewidth.FillRight(field.Name, widths[i])
		separator[i] = strings.Repeat("-", widths[i])
	}
	fmt.Fprintln(out, strings.Join(header, columnSeparator))
	fmt.Fprintln(out, strings.Join(separator, headerSeparator))

	cells := make([]string, len(widths))
	for _, record := range records {
		rows := min(int(record.NumRows()), t.limit())
		for row := 0; row < rows; row++ {
			for col := range cells {
				cells[col] = runewidth.FillRight(FormatValue(record.Column(col), row), widths[col])
			}
			fmt.Fprintln(out, strings.Join(cells, columnSeparator))
		}
		if record.NumRows() > int64(t.limit()) {
			fmt.Fprintf(out, "... (showing first %v of %v rows)\n", t.limit(), record.NumRows())
		}
	}
	return out.Flush()
}

// widths are seeded with max(name, 10) and grown by every displayed cell.
func (t *Table) widths(schema *arrow.Schema, records []arrow.Record) []int {
	widths := make([]int, schema.NumFields())
	for i, field := range schema.Fields() {
		widths[i] = max(runewidth.StringWidth(field.Name), minColumnWidth)
	}
	for _, record := range records {
		rows := min(int(record.NumRows()), t.limit())
		for col := range widths {
			column := record.Column(col)
			for row := 0; row < rows; row++ {
				widths[col] = max(widths[col], runewidth.StringWidth(FormatValue(column, row)))
			}
		}
	}
	return widths
}
