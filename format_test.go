package main

import (
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"
)

func TestFormatValue(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		typ  arrow.DataType
		json string
		want []string
	}{
		{"utf8", arrow.BinaryTypes.String, `["hello", null, ""]`, []string{"hello", "NULL", ""}},
		{"large_utf8", arrow.BinaryTypes.LargeString, `["wide"]`, []string{"wide"}},
		{"int8", arrow.PrimitiveTypes.Int8, `[-128, 127, null]`, []string{"-128", "127", "NULL"}},
		{"int16", arrow.PrimitiveTypes.Int16, `[-300]`, []string{"-300"}},
		{"int32", arrow.PrimitiveTypes.Int32, `[2147483647]`, []string{"2147483647"}},
		{"int64", arrow.PrimitiveTypes.Int64, `[-42, 9000000000]`, []string{"-42", "9000000000"}},
		{"uint8", arrow.PrimitiveTypes.Uint8, `[255]`, []string{"255"}},
		{"uint16", arrow.PrimitiveTypes.Uint16, `[65535]`, []string{"65535"}},
		{"uint32", arrow.PrimitiveTypes.Uint32, `[4294967295]`, []string{"4294967295"}},
		{"uint64", arrow.PrimitiveTypes.Uint64, `[12345678901, null]`, []string{"12345678901", "NULL"}},
		{"float32", arrow.PrimitiveTypes.Float32, `[1.5, 0.1, 3]`, []string{"1.5", "0.1", "3"}},
		{"float64", arrow.PrimitiveTypes.Float64, `[-2.25, 100]`, []string{"-2.25", "100"}},
		{"boolean", arrow.FixedWidthTypes.Boolean, `[true, false, null]`, []string{"true", "false", "NULL"}},
		{"unknown", arrow.PrimitiveTypes.Date32, `[0, null]`, []string{"<date32>", "NULL"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
			defer mem.AssertSize(t, 0)

			column, _, err := array.FromJSON(mem, tc.typ, strings.NewReader(tc.json))
			require.NoError(t, err)
			defer column.Release()

			got := make([]string, column.Len())
			for row := range got {
				got[row] = FormatValue(column, row)
			}
			require.Equal(t, tc.want, got)
		})
	}
}

func TestFormatDecimal(t *testing.T) {
	t.Parallel()
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	builder := array.NewDecimal128Builder(mem, &arrow.Decimal128Type{Precision: 10, Scale: 2})
	defer builder.Release()
	builder.Append(decimal128.FromI64(12345))
	builder.AppendNull()
	builder.Append(decimal128.FromI64(700))
	column := builder.NewDecimal128Array()
	defer column.Release()

	require.Equal(t, "123.45", FormatValue(column, 0))
	require.Equal(t, "NULL", FormatValue(column, 1))
	require.Equal(t, "7.00", FormatValue(column, 2))
}
