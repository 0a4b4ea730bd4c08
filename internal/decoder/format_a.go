package decoder

import (
	"encoding/binary"
	"fmt"
	"math"
)

// readUTF reads a length-prefixed (uint16) UTF-8 string, the shape spec §6
// calls "utf" throughout Format A.
func readUTF(buf []byte, offset int) (string, int, error) {
	if offset+2 > len(buf) {
		return "", offset, fmt.Errorf("truncated utf length at offset %d", offset)
	}
	n := int(binary.BigEndian.Uint16(buf[offset:]))
	offset += 2
	if offset+n > len(buf) {
		return "", offset, fmt.Errorf("truncated utf body at offset %d", offset)
	}
	return string(buf[offset : offset+n]), offset + n, nil
}

// DecodeMetadata parses Format A's header: rowCount, fieldCount, and one
// FieldInfo per field. It is a pure function of buf; it never mutates or
// retains it.
func DecodeMetadata(buf []byte) (rowCount int64, fields []FieldInfo, err error) {
	if len(buf) < 12 {
		return 0, nil, fmt.Errorf("metadata buffer too short: %d bytes", len(buf))
	}
	rowCount = int64(binary.BigEndian.Uint64(buf[0:8]))
	fieldCount := int32(binary.BigEndian.Uint32(buf[8:12]))
	offset := 12

	fields = make([]FieldInfo, 0, fieldCount)
	for i := int32(0); i < fieldCount; i++ {
		var f FieldInfo
		f.Name, offset, err = readUTF(buf, offset)
		if err != nil {
			return 0, nil, err
		}
		f.Type, offset, err = readUTF(buf, offset)
		if err != nil {
			return 0, nil, err
		}
		f.Zone, offset, err = readUTF(buf, offset)
		if err != nil {
			return 0, nil, err
		}
		f.Format, offset, err = readUTF(buf, offset)
		if err != nil {
			return 0, nil, err
		}
		fields = append(fields, f)
	}
	return rowCount, fields, nil
}

// DecodeRow parses one Format A row given its declared fields, per the
// "int8 present; if present then typed value in big-endian" layout of
// spec §6. Per-field decode failures set FormatFailure on that cell and
// continue with the rest of the row rather than aborting.
func DecodeRow(buf []byte, offset int, fields []FieldInfo) (row []any, next int, err error) {
	row = make([]any, len(fields))
	for i, f := range fields {
		if offset >= len(buf) {
			return nil, offset, fmt.Errorf("truncated row at field %d", i)
		}
		present := buf[offset]
		offset++
		if present == 0 {
			row[i] = nil
			continue
		}

		var val any
		val, offset, err = decodeScalarA(buf, offset, f)
		if err != nil {
			row[i] = FormatFailure
			continue
		}
		row[i] = val
	}
	return row, offset, nil
}

func decodeScalarA(buf []byte, offset int, f FieldInfo) (any, int, error) {
	need := func(n int) error {
		if offset+n > len(buf) {
			return fmt.Errorf("truncated value for field %s", f.Name)
		}
		return nil
	}

	switch f.Type {
	case "INT", "INTEGER":
		if err := need(4); err != nil {
			return nil, offset, err
		}
		v := int32(binary.BigEndian.Uint32(buf[offset:]))
		return v, offset + 4, nil
	case "LONG", "BIGINT":
		if err := need(8); err != nil {
			return nil, offset, err
		}
		v := int64(binary.BigEndian.Uint64(buf[offset:]))
		return v, offset + 8, nil
	case "DATE":
		if err := need(8); err != nil {
			return nil, offset, err
		}
		micros := int64(binary.BigEndian.Uint64(buf[offset:]))
		return safeFormat(func() string { return formatDate(micros) }), offset + 8, nil
	case "DATETIME", "TIMESTAMP":
		if err := need(8); err != nil {
			return nil, offset, err
		}
		micros := int64(binary.BigEndian.Uint64(buf[offset:]))
		return safeFormat(func() string { return formatDateTime(micros) }), offset + 8, nil
	case "SHORT", "SMALLINT":
		if err := need(2); err != nil {
			return nil, offset, err
		}
		v := int16(binary.BigEndian.Uint16(buf[offset:]))
		return v, offset + 2, nil
	case "BYTE", "TINYINT":
		if err := need(1); err != nil {
			return nil, offset, err
		}
		return int8(buf[offset]), offset + 1, nil
	case "FLOAT":
		if err := need(4); err != nil {
			return nil, offset, err
		}
		bits := binary.BigEndian.Uint32(buf[offset:])
		return math.Float32frombits(bits), offset + 4, nil
	case "DOUBLE":
		if err := need(8); err != nil {
			return nil, offset, err
		}
		bits := binary.BigEndian.Uint64(buf[offset:])
		return math.Float64frombits(bits), offset + 8, nil
	case "BOOLEAN":
		if err := need(1); err != nil {
			return nil, offset, err
		}
		return buf[offset] != 0, offset + 1, nil
	case "BINARY":
		if err := need(2); err != nil {
			return nil, offset, err
		}
		n := int(binary.BigEndian.Uint16(buf[offset:]))
		offset += 2
		if err := need(n); err != nil {
			return nil, offset, err
		}
		out := make([]byte, n)
		copy(out, buf[offset:offset+n])
		return out, offset + n, nil
	case "STRING", "ARRAY", "MAP", "STRUCT", "VARCHAR", "CHAR":
		if err := need(2); err != nil {
			return nil, offset, err
		}
		n := int(binary.BigEndian.Uint16(buf[offset:]))
		offset += 2
		if err := need(n); err != nil {
			return nil, offset, err
		}
		return string(buf[offset : offset+n]), offset + n, nil
	case "DECIMAL", "DECIMAL128":
		if err := need(2); err != nil {
			return nil, offset, err
		}
		n := int(binary.BigEndian.Uint16(buf[offset:]))
		offset += 2
		if err := need(n); err != nil {
			return nil, offset, err
		}
		text := string(buf[offset : offset+n])
		return DecodeDecimalText(text).String(), offset + n, nil
	case "INT96":
		if err := need(12); err != nil {
			return nil, offset, err
		}
		julianDay := int32(binary.BigEndian.Uint32(buf[offset:]))
		nanos := int64(binary.BigEndian.Uint64(buf[offset+4:]))
		return safeFormat(func() string { return decodeInt96(julianDay, nanos) }), offset + 12, nil
	default:
		return nil, offset, fmt.Errorf("unknown Format A type %q", f.Type)
	}
}
