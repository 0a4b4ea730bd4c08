package decoder

import (
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// ArrowSchema builds an Arrow schema for a decoded chunk's vectors, so a
// caller that wants columnar downstream processing doesn't have to
// hand-write one. Composite and string-like types map to arrow.BinaryTypes.String;
// there is no attempt to preserve nested structure, matching spec §4.5's
// "opaque JSON-ish for composites" row-value contract.
func ArrowSchema(vectors []VectorWire, names []string) *arrow.Schema {
	fields := make([]arrow.Field, len(vectors))
	for i, v := range vectors {
		name := fmt.Sprintf("col%d", i)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		fields[i] = arrow.Field{Name: name, Type: arrowType(v.Type), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(t VectorType) arrow.DataType {
	switch t {
	case Long:
		return arrow.PrimitiveTypes.Int64
	case Integer:
		return arrow.PrimitiveTypes.Int32
	case Double:
		return arrow.PrimitiveTypes.Float64
	case Float:
		return arrow.PrimitiveTypes.Float32
	case Boolean:
		return arrow.FixedWidthTypes.Boolean
	case Binary:
		return arrow.BinaryTypes.Binary
	default:
		// SHORT/BYTE never appear in a Format B vector (metadata-stream-only),
		// and STRING/ARRAY/MAP/STRUCT/DATE/DATETIME/TIMESTAMP_TZ/DECIMAL/NULL
		// all render to their string form before reaching Arrow. Keeping
		// both groups on this branch keeps arrowType and buildArrowColumn's
		// switches in lockstep.
		return arrow.BinaryTypes.String
	}
}

// ExportArrow converts a decoded chunk into a single Arrow record batch.
// It re-decodes the chunk itself (rather than taking already-decoded rows)
// so it can build typed columns directly instead of round-tripping through
// `any` twice.
func ExportArrow(chunk ChunkWire, names []string) arrow.Record {
	pool := memory.NewGoAllocator()
	schema := ArrowSchema(chunk.Vectors, names)
	size := int(chunk.Size)

	columns := make([]arrow.Array, len(chunk.Vectors))
	for i, v := range chunk.Vectors {
		columns[i] = buildArrowColumn(pool, v, size)
	}
	return array.NewRecord(schema, columns, int64(size))
}

func buildArrowColumn(pool memory.Allocator, v VectorWire, size int) arrow.Array {
	col := decodeVectorColumn(v, size)

	switch v.Type {
	case Long:
		b := array.NewInt64Builder(pool)
		defer b.Release()
		for _, cell := range col {
			appendOrNull(b, cell, func(x any) { b.Append(x.(int64)) })
		}
		return b.NewArray()
	case Integer:
		b := array.NewInt32Builder(pool)
		defer b.Release()
		for _, cell := range col {
			appendOrNull(b, cell, func(x any) { b.Append(x.(int32)) })
		}
		return b.NewArray()
	case Double:
		b := array.NewFloat64Builder(pool)
		defer b.Release()
		for _, cell := range col {
			appendOrNull(b, cell, func(x any) { b.Append(x.(float64)) })
		}
		return b.NewArray()
	case Float:
		b := array.NewFloat32Builder(pool)
		defer b.Release()
		for _, cell := range col {
			appendOrNull(b, cell, func(x any) { b.Append(x.(float32)) })
		}
		return b.NewArray()
	case Boolean:
		b := array.NewBooleanBuilder(pool)
		defer b.Release()
		for _, cell := range col {
			appendOrNull(b, cell, func(x any) { b.Append(x.(bool)) })
		}
		return b.NewArray()
	case Binary:
		b := array.NewBinaryBuilder(pool, arrow.BinaryTypes.Binary)
		defer b.Release()
		for _, cell := range col {
			appendOrNull(b, cell, func(x any) { b.Append(x.([]byte)) })
		}
		return b.NewArray()
	default:
		b := array.NewStringBuilder(pool)
		defer b.Release()
		for _, cell := range col {
			appendOrNull(b, cell, func(x any) { b.Append(fmt.Sprint(x)) })
		}
		return b.NewArray()
	}
}

// nullAppender is the subset of array.Builder every typed builder above
// satisfies; used so appendOrNull doesn't need one variant per type.
type nullAppender interface {
	AppendNull()
}

func appendOrNull(b nullAppender, cell any, appendValue func(any)) {
	if cell == nil {
		b.AppendNull()
		return
	}
	appendValue(cell)
}
