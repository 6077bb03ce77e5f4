// Licensed to the Basalt contributors under one or more contributor
// license agreements. See the NOTICE file distributed with this work
// for additional information regarding copyright ownership. The
// contributors license this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except in
// compliance with the License. You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basaltdb/basalt-go"
)

func i64Const(v int64) basalt.Expr { return basalt.NewConst(basalt.NewLiteral(v)) }

func TestScanKeysExplodeFixedValues(t *testing.T) {
	s := testSchema(t)
	res := mustPrepare(t, testOptions(t, s,
		basalt.NewIn(colRef(t, s, "c0"),
			basalt.NewLiteral(int32(1)), basalt.NewLiteral(int32(2)), basalt.NewLiteral(int32(3))),
		basalt.NewBinary(basalt.OpGE, colRef(t, s, "c1"), i64Const(10)),
		basalt.NewBinary(basalt.OpLE, colRef(t, s, "c1"), i64Const(20)),
	))

	require.Len(t, res.KeyRanges, 3)
	for i, want := range []string{"1", "2", "3"} {
		kr := res.KeyRanges[i]
		require.Len(t, kr.Begin, 2)
		assert.Equal(t, want, kr.Begin[0].String())
		assert.Equal(t, want, kr.End[0].String())
		assert.Equal(t, "10", kr.Begin[1].String())
		assert.Equal(t, "20", kr.End[1].String())
		assert.True(t, kr.BeginInclusive)
		assert.True(t, kr.EndInclusive)
	}
}

func TestScanKeysStopAtFirstUnconstrainedColumn(t *testing.T) {
	s := testSchema(t)
	// Only c1 is constrained; the prefix stops at c0, so no key ranges.
	res := mustPrepare(t, testOptions(t, s,
		basalt.NewBinary(basalt.OpGE, colRef(t, s, "c1"), i64Const(10)),
	))

	assert.Empty(t, res.KeyRanges)
	require.Len(t, res.Conditions, 1)
	assert.Equal(t, "c1", res.Conditions[0].Column)
}

func TestScanKeysSingleColumnNeedsFlag(t *testing.T) {
	s := testSchema(t)
	in := basalt.NewIn(colRef(t, s, "c0"),
		basalt.NewLiteral(int32(4)), basalt.NewLiteral(int32(7)))

	opts := testOptions(t, s, in)
	res := mustPrepare(t, opts)
	assert.Empty(t, res.KeyRanges)

	opts = testOptions(t, s, in)
	opts.SingleKeyExpansion = true
	res = mustPrepare(t, opts)
	require.Len(t, res.KeyRanges, 2)
	assert.Equal(t, "4", res.KeyRanges[0].Begin[0].String())
	assert.Equal(t, "7", res.KeyRanges[1].Begin[0].String())
}

func TestScanKeysCapFoldsToEnvelope(t *testing.T) {
	s := testSchema(t)
	opts := testOptions(t, s,
		basalt.NewIn(colRef(t, s, "c0"),
			basalt.NewLiteral(int32(1)), basalt.NewLiteral(int32(2)), basalt.NewLiteral(int32(3))),
		basalt.NewIn(colRef(t, s, "c1"),
			basalt.NewLiteral(int64(10)), basalt.NewLiteral(int64(20))),
	)
	opts.MaxScanKeyCount = 4

	// 3 x 2 = 6 rows exceed the cap, so c1 degrades to its [10, 20]
	// envelope on the 3 existing rows: still a superset of the truth.
	res := mustPrepare(t, opts)
	require.Len(t, res.KeyRanges, 3)
	for i, want := range []string{"1", "2", "3"} {
		kr := res.KeyRanges[i]
		require.Len(t, kr.Begin, 2)
		assert.Equal(t, want, kr.Begin[0].String())
		assert.Equal(t, "10", kr.Begin[1].String())
		assert.Equal(t, "20", kr.End[1].String())
	}
}

func TestScanKeysBoundColumnEndsExtension(t *testing.T) {
	s, err := basalt.NewSchema(
		basalt.SlotDescriptor{ID: 0, Name: "k0", Type: basalt.TypeOf(basalt.TypeInt)},
		basalt.SlotDescriptor{ID: 1, Name: "k1", Type: basalt.TypeOf(basalt.TypeInt)},
		basalt.SlotDescriptor{ID: 2, Name: "k2", Type: basalt.TypeOf(basalt.TypeInt)},
	)
	require.NoError(t, err)

	k := func(name string) *basalt.ColumnRef {
		slot, _ := s.FindByName(name)

		return basalt.NewColumnRef(slot)
	}
	opts := testOptions(t, s,
		basalt.NewIn(k("k0"), basalt.NewLiteral(int32(1)), basalt.NewLiteral(int32(2))),
		basalt.NewBinary(basalt.OpGT, k("k1"), intConst(5)),
		basalt.NewIn(k("k2"), basalt.NewLiteral(int32(9))),
	)
	opts.KeyColumns = []string{"k0", "k1", "k2"}

	res := mustPrepare(t, opts)
	require.Len(t, res.KeyRanges, 2)
	for _, kr := range res.KeyRanges {
		// k1's bound ends the extension; k2 never contributes.
		require.Len(t, kr.Begin, 2)
		assert.Len(t, kr.End, 1)
		assert.Equal(t, "5", kr.Begin[1].String())
		assert.False(t, kr.BeginInclusive)
	}
}

func TestScanKeysEnumerateBoundWhenUnlimited(t *testing.T) {
	s := testSchema(t)
	opts := testOptions(t, s,
		basalt.NewBinary(basalt.OpGE, colRef(t, s, "c0"), intConst(1)),
		basalt.NewBinary(basalt.OpLE, colRef(t, s, "c0"), intConst(3)),
		basalt.NewIn(colRef(t, s, "c1"), basalt.NewLiteral(int64(7))),
	)
	opts.ScanKeysUnlimited = true

	res := mustPrepare(t, opts)
	require.Len(t, res.KeyRanges, 3)
	for i, want := range []string{"1", "2", "3"} {
		require.Len(t, res.KeyRanges[i].Begin, 2)
		assert.Equal(t, want, res.KeyRanges[i].Begin[0].String())
		assert.Equal(t, "7", res.KeyRanges[i].Begin[1].String())
	}
}

func TestFullRangeIsUnbounded(t *testing.T) {
	kr := FullRange()
	assert.Empty(t, kr.Begin)
	assert.Empty(t, kr.End)
	assert.True(t, kr.BeginInclusive)
	assert.True(t, kr.EndInclusive)
	assert.Equal(t, "[ : ]", kr.String())
}
