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
	"encoding/binary"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/cockroachdb/errors"
	"github.com/twmb/murmur3"

	"github.com/basaltdb/basalt-go"
)

// FilterID identifies one runtime filter across the join build and
// probe sides of a query.
type FilterID int32

// RuntimeFilterDescriptor is the plan-time announcement that a join
// build side will publish a filter for the given probe slot.
type RuntimeFilterDescriptor struct {
	FilterID  FilterID
	ProbeSlot basalt.SlotID
}

// UnarrivedRuntimeFilter records a descriptor whose filter had not been
// published when normalization ran; it is retained for a later pruning
// pass.
type UnarrivedRuntimeFilter struct {
	Slot       basalt.SlotDescriptor
	Descriptor RuntimeFilterDescriptor
}

// RuntimeFilter is a join build side summary of the values a probe
// column can take: exact min/max bounds, a NULL marker, and a bloom
// summary for point membership. Built single-threaded on the join side,
// then published; after publication it is read-only.
type RuntimeFilter struct {
	ID      FilterID
	HasNull bool
	Min     basalt.Literal
	Max     basalt.Literal

	bloom *bloom.BloomFilter
}

// NewRuntimeFilter sizes the bloom summary for the expected build side
// cardinality and false positive rate.
func NewRuntimeFilter(id FilterID, expectedItems uint, fpRate float64) *RuntimeFilter {
	return &RuntimeFilter{
		ID:    id,
		bloom: bloom.NewWithEstimates(expectedItems, fpRate),
	}
}

// Add folds one build side value into the summary.
func (f *RuntimeFilter) Add(lit basalt.Literal) error {
	key, err := bloomKey(lit)
	if err != nil {
		return err
	}
	f.bloom.Add(key)

	if f.Min == nil {
		f.Min, f.Max = lit, lit

		return nil
	}
	if c, err := basalt.CompareLiterals(f.Min, lit); err == nil && c > 0 {
		f.Min = lit
	}
	if c, err := basalt.CompareLiterals(f.Max, lit); err == nil && c < 0 {
		f.Max = lit
	}

	return nil
}

// AddNull records that the build side domain holds NULL, which forbids
// any range tightening on the probe side.
func (f *RuntimeFilter) AddNull() { f.HasNull = true }

// MightContain reports whether the value may be in the build side set.
// False positives are possible, false negatives are not.
func (f *RuntimeFilter) MightContain(lit basalt.Literal) bool {
	key, err := bloomKey(lit)
	if err != nil {
		return true
	}

	return f.bloom.Test(key)
}

// bloomKey is the stable 64-bit hash of the literal's serialized form.
func bloomKey(lit basalt.Literal) ([]byte, error) {
	raw, err := lit.MarshalBinary()
	if err != nil {
		return nil, err
	}
	var key [8]byte
	binary.LittleEndian.PutUint64(key[:], murmur3.Sum64(raw))

	return key[:], nil
}

// RuntimeFilterRegistry is the slot between join build threads and scan
// preparation: filters are published write-once by their ID and polled
// without blocking. Absence is an ordinary, retryable outcome.
type RuntimeFilterRegistry struct {
	mu      sync.RWMutex
	filters map[FilterID]*RuntimeFilter
}

func NewRuntimeFilterRegistry() *RuntimeFilterRegistry {
	return &RuntimeFilterRegistry{filters: make(map[FilterID]*RuntimeFilter)}
}

// Publish installs a finished filter. Each ID can be published exactly
// once; a second publish is rejected.
func (r *RuntimeFilterRegistry) Publish(f *RuntimeFilter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.filters[f.ID]; ok {
		return errors.Wrapf(basalt.ErrInvalidArgument, "runtime filter %d already published", f.ID)
	}
	r.filters[f.ID] = f

	return nil
}

// Get returns the published filter or nil when it has not arrived yet.
func (r *RuntimeFilterRegistry) Get(id FilterID) *RuntimeFilter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.filters[id]
}

// GlobalDict maps the integer codes of a dictionary-coded string column
// back to their string values for one query. Read-only once built.
type GlobalDict struct {
	codes map[int32]string
}

func NewGlobalDict(codes map[int32]string) *GlobalDict {
	return &GlobalDict{codes: codes}
}

func (d *GlobalDict) Decode(code int32) (string, bool) {
	s, ok := d.codes[code]

	return s, ok
}

// DecodeLiteral maps a dict-code literal to its string literal. String
// literals pass through untouched; an unknown code fails the decode.
func (d *GlobalDict) DecodeLiteral(lit basalt.Literal) (basalt.Literal, bool) {
	switch v := lit.(type) {
	case basalt.StringLiteral:
		return v, true
	case basalt.Int32Literal:
		s, ok := d.Decode(v.Value())
		if !ok {
			return nil, false
		}

		return basalt.StringLiteral(s), true
	}

	return nil, false
}

// RuntimeRangePruner retries runtime filters that had not arrived by
// the first normalization pass. Each Update builds fresh ranges and
// predicates; structures already handed to scan workers are never
// mutated.
type RuntimeRangePruner struct {
	dicts   map[basalt.SlotID]*GlobalDict
	pending []UnarrivedRuntimeFilter
}

func NewRuntimeRangePruner(unarrived []UnarrivedRuntimeFilter, dicts map[basalt.SlotID]*GlobalDict) *RuntimeRangePruner {
	return &RuntimeRangePruner{
		dicts:   dicts,
		pending: append([]UnarrivedRuntimeFilter(nil), unarrived...),
	}
}

// Pending reports how many filters are still awaited.
func (p *RuntimeRangePruner) Pending() int { return len(p.pending) }

// Update polls the registry for newly published filters and returns the
// column predicates their bounds now allow. Filters still absent stay
// pending for the next call.
func (p *RuntimeRangePruner) Update(registry *RuntimeFilterRegistry, parser PredicateParser) ([]ColumnPredicate, error) {
	var (
		preds []ColumnPredicate
		still []UnarrivedRuntimeFilter
	)
	for _, u := range p.pending {
		f := registry.Get(u.Descriptor.FilterID)
		if f == nil {
			still = append(still, u)

			continue
		}

		r := newRangeForSlot(u.Slot)
		if r == nil || !intersectFilterBounds(u.Slot, r, f, p.dicts) {
			continue
		}
		var conds []Condition
		r.AppendConditions(&conds)
		for _, cond := range conds {
			pred, err := parser.ParseCondition(cond)
			if err != nil {
				return nil, errors.Wrapf(ErrInvalidFilter, "condition %s: %v", cond, err)
			}
			preds = append(preds, pred)
		}
	}
	p.pending = still

	return preds, nil
}
