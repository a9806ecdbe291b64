package main

import (
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

const NullText = "NULL"

// FormatValue renders one cell. Types without a dedicated rendering come out
// as "<type>" instead of failing.
func FormatValue(column arrow.Array, row int) string {
	if column.IsNull(row) {
		return NullText
	}
	switch column := column.(type) {
	case *array.String:
		return column.Value(row)
	case *array.LargeString:
		return column.Value(row)
	case *array.Int8:
		return strconv.FormatInt(int64(column.Value(row)), 10)
	case *array.Int16:
		return strconv.FormatInt(int64(column.Value(row)), 10)
	case *array.Int32:
		return strconv.FormatInt(int64(column.Value(row)), 10)
	case *array.Int64:
		return strconv.FormatInt(column.Value(row), 10)
	case *array.Uint8:
		return strconv.FormatUint(uint64(column.Value(row)), 10)
	case *array.Uint16:
		return strconv.FormatUint(uint64(column.Value(row)), 10)
	case *array.Uint32:
		return strconv.FormatUint(uint64(column.Value(row)), 10)
	case *array.Uint64:
		return strconv.FormatUint(column.Value(row), 10)
	case *array.Float32:
		return strconv.FormatFloat(float64(column.Value(row)), 'f', -1, 32)
	case *array.Float64:
		return strconv.FormatFloat(column.Value(row), 'f', -1, 64)
	case *array.Boolean:
		return strconv.FormatBool(column.Value(row))
	case *array.Decimal128:
		scale := column.DataType().(*arrow.Decimal128Type).Scale
		return column.Value(row).ToString(scale)
	case *array.Decimal256:
		scale := column.DataType().(*arrow.Decimal256Type).Scale
		return column.Value(row).ToString(scale)
	}
	return fmt.Sprintf("<%v>", column.DataType())
}
