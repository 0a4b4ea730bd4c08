/*
 * Copyright 2024 ScopeDB, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package quarry

import (
	"github.com/apache/arrow/go/v17/arrow"

	"github.com/scopedb/quarry-go/internal/decoder"
	"github.com/scopedb/quarry-go/internal/engine"
)

// FieldInfo describes one result column: its name, declared engine type,
// timezone (if temporal), and wire format tag.
type FieldInfo = decoder.FieldInfo

// Row is one decoded result row; Row[i] corresponds to the i-th FieldInfo.
type Row []any

// ResultSet is the fully materialized result of a query.
type ResultSet struct {
	Columns []FieldInfo
	Rows    []Row

	// chunks retains each fetched Format B chunk in wire form so
	// ExportArrow can build typed Arrow columns directly from it instead
	// of re-inferring types from already-decoded `any` values.
	chunks []decoder.ChunkWire
}

// ExportArrow converts the result set into one Arrow record batch per
// fetched chunk, for callers who want columnar downstream processing
// instead of the row-oriented Rows field.
func (rs *ResultSet) ExportArrow() []arrow.Record {
	names := make([]string, len(rs.Columns))
	for i, f := range rs.Columns {
		names[i] = f.Name
	}

	records := make([]arrow.Record, len(rs.chunks))
	for i, chunk := range rs.chunks {
		records[i] = decoder.ExportArrow(chunk, names)
	}
	return records
}

func chunkToVectorWires(chunk *engine.ChunkPayload) []decoder.VectorWire {
	wires := make([]decoder.VectorWire, len(chunk.Vectors))
	for i, v := range chunk.Vectors {
		wires[i] = decoder.VectorWire{
			Type:     decoder.VectorType(v.Type),
			Constant: v.Constant,
			Zone:     v.Zone,
			Format:   v.Format,
			Nulls:    v.Nulls,

			Int64Data: v.Int64Data,
			Int32Data: v.Int32Data,
			Float64s:  v.Float64s,
			Float32s:  v.Float32s,
			Bools:     v.Bools,
			Strings:   v.Strings,
			Bytes:     v.Bytes,
			ZoneData:  v.ZoneData,

			ConstInt64:  v.ConstInt64,
			ConstDouble: v.ConstDouble,
			ConstBool:   v.ConstBool,
			ConstString: v.ConstString,
			ConstBytes:  v.ConstBytes,
			ConstZone:   v.ConstZone,
		}
	}
	return wires
}

func decodeChunk(chunk *engine.ChunkPayload) ([]Row, decoder.ChunkWire) {
	if chunk == nil {
		return nil, decoder.ChunkWire{}
	}
	wire := decoder.ChunkWire{
		Size:    chunk.Size,
		Vectors: chunkToVectorWires(chunk),
	}
	decoded := decoder.DecodeChunk(wire)
	rows := make([]Row, len(decoded))
	for i, r := range decoded {
		rows[i] = Row(r)
	}
	return rows, wire
}
