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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scopedb/quarry-go/internal/decoder"
)

func TestResultSet_ExportArrow(t *testing.T) {
	rs := &ResultSet{
		Columns: []FieldInfo{{Name: "id"}, {Name: "label"}},
		chunks: []decoder.ChunkWire{
			{
				Size: 3,
				Vectors: []decoder.VectorWire{
					{Type: decoder.Long, Int64Data: []int64{1, 2, 3}, Nulls: []bool{false, false, false}},
					{Type: decoder.String, Strings: []string{"a", "b", "c"}, Nulls: []bool{false, false, false}},
				},
			},
		},
	}

	records := rs.ExportArrow()
	require.Len(t, records, 1)
	require.Equal(t, int64(3), records[0].NumRows())
	require.Equal(t, int64(2), records[0].NumCols())
	require.Equal(t, "id", records[0].ColumnName(0))
	require.Equal(t, "label", records[0].ColumnName(1))
}
