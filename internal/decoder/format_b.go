package decoder

// DecodeChunk projects a Format B chunk into row tuples: one pass per
// vector to materialize its column, then one pass to assemble rows,
// satisfying the O(rows × columns) performance floor of spec §4.5.
//
// Per-row decode failures never abort the chunk: an unrecoverable cell
// becomes nil (the Format B null sentinel), and decoding continues.
func DecodeChunk(chunk ChunkWire) [][]any {
	size := int(chunk.Size)
	if size <= 0 {
		return [][]any{}
	}

	columns := make([][]any, len(chunk.Vectors))
	for i, v := range chunk.Vectors {
		columns[i] = decodeVectorColumn(v, size)
	}

	rows := make([][]any, size)
	for r := 0; r < size; r++ {
		row := make([]any, len(columns))
		for c := range columns {
			row[c] = columns[c][r]
		}
		rows[r] = row
	}
	return rows
}

// decodeVectorColumn materializes one vector into a size-length column,
// honoring constant-vector projection and null semantics.
func decodeVectorColumn(v VectorWire, size int) []any {
	col := make([]any, size)

	isNull := nullPredicate(v, size)

	// Temporal cells are rendered through safeFormat, which reports a
	// failure with the Format A text sentinel; Format B uses nil instead.
	temporal := v.Type == Date || v.Type == DateTime || v.Type == TimestampTZ
	toCell := func(val any) any {
		if temporal && val == FormatFailure {
			return nil
		}
		return val
	}

	if v.Constant {
		val := toCell(constantValue(v))
		for i := 0; i < size; i++ {
			if isNull(i) {
				col[i] = nil
			} else {
				col[i] = val
			}
		}
		return col
	}

	for i := 0; i < size; i++ {
		if isNull(i) {
			col[i] = nil
			continue
		}
		col[i] = toCell(arrayValue(v, i))
	}
	return col
}

// nullPredicate returns a function reporting whether row i is null, per
// the null-bitmap semantics of spec §4.5: nulls has length `size` for a
// non-constant vector, or length 0 or 1 for a constant vector (length 1
// and true means every projected row is null).
func nullPredicate(v VectorWire, size int) func(i int) bool {
	switch {
	case v.Constant:
		allNull := len(v.Nulls) == 1 && v.Nulls[0]
		return func(int) bool { return allNull }
	case len(v.Nulls) == size:
		return func(i int) bool { return v.Nulls[i] }
	default:
		// Malformed bitmap: treat as all-present rather than panic. The
		// decoder never aborts on structurally odd input.
		return func(int) bool { return false }
	}
}

func constantValue(v VectorWire) any {
	switch v.Type {
	case Long, Integer:
		return v.ConstInt64
	case Double, Float:
		return v.ConstDouble
	case Boolean:
		return v.ConstBool
	case String, Array, Map, Struct:
		return v.ConstString
	case Binary:
		return v.ConstBytes
	case Date:
		return safeFormat(func() string { return formatDate(v.ConstInt64) })
	case DateTime:
		return safeFormat(func() string { return formatDateTime(v.ConstInt64) })
	case TimestampTZ:
		return safeFormat(func() string { return formatTimestampTZ(v.ConstInt64, v.ConstZone) })
	case Decimal:
		return DecodeDecimal128Binary(v.ConstBytes).String()
	case Null:
		return nil
	default:
		return nil
	}
}

func arrayValue(v VectorWire, i int) any {
	switch v.Type {
	case Long:
		if i < len(v.Int64Data) {
			return v.Int64Data[i]
		}
	case Integer:
		if i < len(v.Int32Data) {
			return v.Int32Data[i]
		}
	case Double:
		if i < len(v.Float64s) {
			return v.Float64s[i]
		}
	case Float:
		if i < len(v.Float32s) {
			return v.Float32s[i]
		}
	case Boolean:
		if i < len(v.Bools) {
			return v.Bools[i]
		}
	case String, Array, Map, Struct:
		if i < len(v.Strings) {
			return v.Strings[i]
		}
	case Binary:
		if i < len(v.Bytes) {
			return v.Bytes[i]
		}
	case Date:
		if i < len(v.Int64Data) {
			m := v.Int64Data[i]
			return safeFormat(func() string { return formatDate(m) })
		}
	case DateTime:
		if i < len(v.Int64Data) {
			m := v.Int64Data[i]
			return safeFormat(func() string { return formatDateTime(m) })
		}
	case TimestampTZ:
		if i < len(v.Int64Data) {
			m := v.Int64Data[i]
			zone := ""
			if i < len(v.ZoneData) {
				zone = v.ZoneData[i]
			}
			return safeFormat(func() string { return formatTimestampTZ(m, zone) })
		}
	case Decimal:
		if i < len(v.Bytes) {
			return DecodeDecimal128Binary(v.Bytes[i]).String()
		}
	case Null:
		return nil
	}
	return nil
}
