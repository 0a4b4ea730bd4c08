// Package decoder turns the engine's two result wire formats into Go
// values: Format A, a fixed-width big-endian per-row metadata stream, and
// Format B, a self-describing columnar chunk.
package decoder

// VectorType enumerates the column encodings the engine can send. The
// numeric values follow the type ids embedded in the reverse-engineered
// engine schema so a raw type id read off the wire maps directly to a
// VectorType without a translation table.
type VectorType int32

const (
	Boolean VectorType = iota
	TinyInt
	SmallInt
	Int
	BigInt
	Float
	Double
	String
	Timestamp
	Binary
	Array
	Map
	Struct
	UnionType
	_ // 14 unused in the source schema
	Decimal
	Null
	Date
	Varchar
	Char
	IntervalYearMonth
	IntervalDayTime
)

// Aliases used by the vector type table (spec §4.5): the wire only ever
// sends the ids above, but decode call sites read more naturally under
// these names.
const (
	Long     = BigInt
	Integer  = Int
	Short    = SmallInt
	Byte     = TinyInt
	DateTime = Timestamp
)

// Int96 and TimestampTZ have no id in the wire's own numbering above, so
// they are given ids outside it. INT96 is decoded only from a Format A
// field type string; TimestampTZ is decoded only as a Format B vector
// (Format A has no TIMESTAMP_TZ case).
const (
	Int96 VectorType = 100 + iota
	TimestampTZ
)

// String names a VectorType for logs and error messages.
func (t VectorType) String() string {
	switch t {
	case Boolean:
		return "BOOLEAN"
	case TinyInt:
		return "TINYINT"
	case SmallInt:
		return "SMALLINT"
	case Int:
		return "INT"
	case BigInt:
		return "BIGINT"
	case Float:
		return "FLOAT"
	case Double:
		return "DOUBLE"
	case String:
		return "STRING"
	case Timestamp:
		return "TIMESTAMP"
	case Binary:
		return "BINARY"
	case Array:
		return "ARRAY"
	case Map:
		return "MAP"
	case Struct:
		return "STRUCT"
	case UnionType:
		return "UNIONTYPE"
	case Decimal:
		return "DECIMAL"
	case Null:
		return "NULL"
	case Date:
		return "DATE"
	case Varchar:
		return "VARCHAR"
	case Char:
		return "CHAR"
	case IntervalYearMonth:
		return "INTERVAL_YEAR_MONTH"
	case IntervalDayTime:
		return "INTERVAL_DAY_TIME"
	case Int96:
		return "INT96"
	case TimestampTZ:
		return "TIMESTAMP_TZ"
	default:
		return "UNKNOWN"
	}
}

// VectorWire is the wire shape of one Format B vector: a self-describing
// columnar payload plus its null bitmap. Exactly one of the typed slices
// (or the single Const* scalar, when Constant is true) is populated,
// selected by Type.
type VectorWire struct {
	Type     VectorType
	Constant bool
	Zone     string
	Format   string

	// Nulls has length Size for a non-constant vector, or length 0 or 1
	// for a constant vector (length 1 and true means the whole column is
	// null).
	Nulls []bool

	Int64Data  []int64
	Int32Data  []int32
	Float64s   []float64
	Float32s   []float32
	Bools      []bool
	Strings    []string
	Bytes      [][]byte
	ZoneData   []string // parallel to Int64Data for TIMESTAMP_TZ

	ConstInt64  int64
	ConstDouble float64
	ConstBool   bool
	ConstString string
	ConstBytes  []byte
	ConstZone   string
}

// ChunkWire is the wire shape of a Format B chunk.
type ChunkWire struct {
	Size    int32
	Vectors []VectorWire
}

// FieldInfo describes one Format A column.
type FieldInfo struct {
	Name   string
	Type   string
	Zone   string
	Format string
}
