package decoder_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scopedb/quarry-go/internal/decoder"
)

func TestDecodeMetadata(t *testing.T) {
	buf := make([]byte, 0, 64)
	buf = binary.BigEndian.AppendUint64(buf, 3)  // rowCount
	buf = binary.BigEndian.AppendUint32(buf, 1)  // fieldCount
	buf = appendUTF(buf, "id")
	buf = appendUTF(buf, "LONG")
	buf = appendUTF(buf, "")
	buf = appendUTF(buf, "")

	rowCount, fields, err := decoder.DecodeMetadata(buf)
	require.NoError(t, err)
	require.Equal(t, int64(3), rowCount)
	require.Equal(t, []decoder.FieldInfo{{Name: "id", Type: "LONG"}}, fields)
}

func TestDecodeRow_PresentAndAbsent(t *testing.T) {
	fields := []decoder.FieldInfo{{Name: "id", Type: "LONG"}, {Name: "name", Type: "STRING"}}

	buf := []byte{1}
	buf = binary.BigEndian.AppendUint64(buf, 42)
	buf = append(buf, 0) // name absent

	row, next, err := decoder.DecodeRow(buf, 0, fields)
	require.NoError(t, err)
	require.Equal(t, len(buf), next)
	require.Equal(t, int64(42), row[0])
	require.Nil(t, row[1])
}

func TestDecodeRow_DecodeFailureYieldsSentinel(t *testing.T) {
	fields := []decoder.FieldInfo{{Name: "id", Type: "LONG"}}
	buf := []byte{1, 0, 0} // present=1 but body truncated

	row, _, err := decoder.DecodeRow(buf, 0, fields)
	require.NoError(t, err, "a per-field decode failure must not abort the row")
	require.Equal(t, decoder.FormatFailure, row[0])
}

func TestDecodeChunk_EmptyChunk(t *testing.T) {
	rows := decoder.DecodeChunk(decoder.ChunkWire{Size: 0, Vectors: []decoder.VectorWire{
		{Type: decoder.Long, Int64Data: []int64{1, 2, 3}},
	}})
	require.Empty(t, rows)
}

func TestDecodeChunk_MixedNullsAndConstant(t *testing.T) {
	chunk := decoder.ChunkWire{
		Size: 3,
		Vectors: []decoder.VectorWire{
			{
				Type:      decoder.Long,
				Int64Data: []int64{7, 8, 9},
				Nulls:     []bool{false, true, false},
			},
			{
				Type:     decoder.String,
				Constant: true,
				ConstString: "x",
				Nulls:    []bool{false},
			},
		},
	}
	rows := decoder.DecodeChunk(chunk)
	require.Len(t, rows, 3)
	require.Equal(t, []any{int64(7), "x"}, rows[0])
	require.Equal(t, []any{nil, "x"}, rows[1])
	require.Equal(t, []any{int64(9), "x"}, rows[2])
}

func TestDecodeChunk_AllNullConstantVector(t *testing.T) {
	chunk := decoder.ChunkWire{
		Size: 2,
		Vectors: []decoder.VectorWire{
			{Type: decoder.String, Constant: true, ConstString: "unused", Nulls: []bool{true}},
		},
	}
	rows := decoder.DecodeChunk(chunk)
	require.Equal(t, []any{nil}, rows[0])
	require.Equal(t, []any{nil}, rows[1])
}

func TestDateTime_NegativeEpochMicros(t *testing.T) {
	// -1 microsecond is one microsecond before the epoch: floor-div/floor-mod
	// must land on 1969-12-31T23:59:59.999Z, not truncate toward zero.
	rows := decoder.DecodeChunk(decoder.ChunkWire{
		Size: 1,
		Vectors: []decoder.VectorWire{
			{Type: decoder.DateTime, Int64Data: []int64{-1}, Nulls: []bool{false}},
		},
	})
	require.Equal(t, "1969-12-31T23:59:59.999Z", rows[0][0])
}

func TestDecodeDecimal128Binary_AllZero(t *testing.T) {
	d := decoder.DecodeDecimal128Binary(make([]byte, 16))
	require.Equal(t, "0", d.String())
}

func TestDecodeDecimal128Binary_WrongLength(t *testing.T) {
	d := decoder.DecodeDecimal128Binary([]byte{1, 2, 3})
	require.Equal(t, "0", d.String())
}

func TestDecodeDecimalText_NegativeZero(t *testing.T) {
	d := decoder.DecodeDecimalText("-0")
	require.Equal(t, "0", d.String())
}

func TestDecodeDecimalText_Fraction(t *testing.T) {
	d := decoder.DecodeDecimalText("-12.340")
	require.Equal(t, "-12.340", d.String())
}

func appendUTF(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}
