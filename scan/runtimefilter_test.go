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
	"golang.org/x/sync/errgroup"

	"github.com/basaltdb/basalt-go"
)

func TestRuntimeFilterSummary(t *testing.T) {
	f := NewRuntimeFilter(1, 128, 0.01)
	for _, v := range []int32{42, 7, 99} {
		require.NoError(t, f.Add(basalt.Int32Literal(v)))
	}

	assert.Equal(t, basalt.Int32Literal(7), f.Min)
	assert.Equal(t, basalt.Int32Literal(99), f.Max)
	assert.False(t, f.HasNull)

	assert.True(t, f.MightContain(basalt.Int32Literal(42)))
	assert.True(t, f.MightContain(basalt.Int32Literal(7)))
	// A value far outside the set should miss the bloom summary.
	misses := 0
	for v := int32(1000); v < 1100; v++ {
		if !f.MightContain(basalt.Int32Literal(v)) {
			misses++
		}
	}
	assert.Greater(t, misses, 90)
}

func TestRuntimeFilterRegistryWriteOnce(t *testing.T) {
	reg := NewRuntimeFilterRegistry()
	f := NewRuntimeFilter(3, 8, 0.05)

	assert.Nil(t, reg.Get(3))
	require.NoError(t, reg.Publish(f))
	assert.Same(t, f, reg.Get(3))

	err := reg.Publish(NewRuntimeFilter(3, 8, 0.05))
	assert.ErrorIs(t, err, basalt.ErrInvalidArgument)
}

func TestRuntimeFilterRegistryConcurrentPublish(t *testing.T) {
	reg := NewRuntimeFilterRegistry()

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		id := FilterID(i)
		g.Go(func() error {
			f := NewRuntimeFilter(id, 8, 0.05)
			if err := f.Add(basalt.Int32Literal(int32(id))); err != nil {
				return err
			}

			return reg.Publish(f)
		})
		g.Go(func() error {
			// Concurrent polling must never block or error.
			reg.Get(id)

			return nil
		})
	}
	require.NoError(t, g.Wait())

	for i := 0; i < 32; i++ {
		f := reg.Get(FilterID(i))
		require.NotNil(t, f)
		assert.Equal(t, basalt.Int32Literal(int32(i)), f.Min)
	}
}

func TestGlobalDictDecode(t *testing.T) {
	dict := NewGlobalDict(map[int32]string{1: "asia", 2: "emea"})

	s, ok := dict.Decode(1)
	require.True(t, ok)
	assert.Equal(t, "asia", s)

	lit, ok := dict.DecodeLiteral(basalt.Int32Literal(2))
	require.True(t, ok)
	assert.Equal(t, basalt.StringLiteral("emea"), lit)

	_, ok = dict.DecodeLiteral(basalt.Int32Literal(9))
	assert.False(t, ok)

	// Plain strings pass through.
	lit, ok = dict.DecodeLiteral(basalt.StringLiteral("apac"))
	require.True(t, ok)
	assert.Equal(t, basalt.StringLiteral("apac"), lit)
}

func TestDictCodedFilterBounds(t *testing.T) {
	s := testSchema(t)
	reg := NewRuntimeFilterRegistry()
	f := NewRuntimeFilter(5, 8, 0.05)
	require.NoError(t, f.Add(basalt.Int32Literal(1)))
	require.NoError(t, f.Add(basalt.Int32Literal(2)))
	require.NoError(t, reg.Publish(f))

	opts := testOptions(t, s)
	opts.FilterRegistry = reg
	opts.RuntimeFilters = []RuntimeFilterDescriptor{{FilterID: 5, ProbeSlot: 2}}
	opts.GlobalDicts = map[basalt.SlotID]*GlobalDict{
		2: NewGlobalDict(map[int32]string{1: "asia", 2: "emea"}),
	}

	res := mustPrepare(t, opts)
	require.Len(t, res.Conditions, 2)
	assert.Equal(t, "c2", res.Conditions[0].Column)
	assert.Equal(t, []string{"asia"}, res.Conditions[0].Values)
	assert.Equal(t, []string{"emea"}, res.Conditions[1].Values)
	assert.True(t, res.Conditions[0].IndexFilterOnly)
}

func TestRangePrunerUpdate(t *testing.T) {
	s := testSchema(t)
	slot, _ := s.FindByName("c0")
	desc := RuntimeFilterDescriptor{FilterID: 11, ProbeSlot: 0}

	pruner := NewRuntimeRangePruner(
		[]UnarrivedRuntimeFilter{{Slot: slot, Descriptor: desc}}, nil)
	reg := NewRuntimeFilterRegistry()

	t.Run("absent filter stays pending", func(t *testing.T) {
		preds, err := pruner.Update(reg, fakeParser{})
		require.NoError(t, err)
		assert.Empty(t, preds)
		assert.Equal(t, 1, pruner.Pending())
	})

	t.Run("published filter produces fresh predicates", func(t *testing.T) {
		f := NewRuntimeFilter(11, 8, 0.05)
		require.NoError(t, f.Add(basalt.Int32Literal(3)))
		require.NoError(t, f.Add(basalt.Int32Literal(8)))
		require.NoError(t, reg.Publish(f))

		preds, err := pruner.Update(reg, fakeParser{})
		require.NoError(t, err)
		require.Len(t, preds, 2)
		assert.Equal(t, "c0", preds[0].Column())
		assert.Contains(t, preds[0].String(), ">=")
		assert.Contains(t, preds[1].String(), "<=")
		assert.Zero(t, pruner.Pending())
	})

	t.Run("parser rejection is fatal", func(t *testing.T) {
		slot1, _ := s.FindByName("c1")
		p := NewRuntimeRangePruner([]UnarrivedRuntimeFilter{
			{Slot: slot1, Descriptor: RuntimeFilterDescriptor{FilterID: 12, ProbeSlot: 1}},
		}, nil)
		f := NewRuntimeFilter(12, 8, 0.05)
		require.NoError(t, f.Add(basalt.Int64Literal(1)))
		require.NoError(t, reg.Publish(f))

		_, err := p.Update(reg, fakeParser{rejectColumn: "c1"})
		assert.ErrorIs(t, err, ErrInvalidFilter)
	})
}

func TestRuntimeFilterHasNullSkipsPruning(t *testing.T) {
	s := testSchema(t)
	slot, _ := s.FindByName("c0")
	reg := NewRuntimeFilterRegistry()
	f := NewRuntimeFilter(20, 8, 0.05)
	require.NoError(t, f.Add(basalt.Int32Literal(1)))
	f.AddNull()
	require.NoError(t, reg.Publish(f))

	pruner := NewRuntimeRangePruner([]UnarrivedRuntimeFilter{
		{Slot: slot, Descriptor: RuntimeFilterDescriptor{FilterID: 20, ProbeSlot: 0}},
	}, nil)

	preds, err := pruner.Update(reg, fakeParser{})
	require.NoError(t, err)
	assert.Empty(t, preds)
	assert.Zero(t, pruner.Pending(), "an arrived null-bearing filter is consumed, not retried")
}
