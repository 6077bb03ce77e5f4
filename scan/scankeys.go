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
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/basaltdb/basalt-go"
)

// ScanKeyRange bounds a storage index seek over the leading key
// columns: one literal per constrained column, in key order. A missing
// literal on either side means that side is unbounded. Ranges are
// produced once and read concurrently by scan workers.
type ScanKeyRange struct {
	Begin          []basalt.Literal
	End            []basalt.Literal
	BeginInclusive bool
	EndInclusive   bool
}

func (k ScanKeyRange) String() string {
	lb, rb := "(", ")"
	if k.BeginInclusive {
		lb = "["
	}
	if k.EndInclusive {
		rb = "]"
	}
	render := func(lits []basalt.Literal) string {
		return strings.Join(lo.Map(lits, func(l basalt.Literal, _ int) string { return l.String() }), ",")
	}

	return fmt.Sprintf("%s%s : %s%s", lb, render(k.Begin), render(k.End), rb)
}

// FullRange is the unconstrained scan key range. Scan drivers substitute
// it when preparation yields no key ranges at all; an empty key range
// set never means "no data".
func FullRange() ScanKeyRange {
	return ScanKeyRange{BeginInclusive: true, EndInclusive: true}
}

// extendScanKeys converts the finalized per-column ranges into physical
// scan key ranges over the contiguous constrained prefix of the key
// columns. Fixed-value sets explode the existing rows one per value
// while the total stays under the cap; the first continuous bound (or a
// set folded to its [min, max] once the cap is hit) tightens the rows
// and ends the extension, since nothing after a ranged column can
// refine a composite key soundly. The output is always a superset of
// the rows matching the key predicates.
func extendScanKeys(opts *Options, ranges map[string]valueRange) []ScanKeyRange {
	var eligible []valueRange
	for _, col := range opts.KeyColumns {
		r, ok := ranges[col]
		if !ok || r.IsInitState() || r.IsEmpty() {
			break
		}
		eligible = append(eligible, r)
	}

	if len(eligible) == 0 {
		return nil
	}
	if len(eligible) < 2 && !opts.SingleKeyExpansion {
		return nil
	}

	rows := []ScanKeyRange{FullRange()}
	for _, r := range eligible {
		var done bool
		rows, done = extendByRange(opts, rows, r)
		if done {
			break
		}
	}

	return rows
}

func extendByRange(opts *Options, rows []ScanKeyRange, r valueRange) ([]ScanKeyRange, bool) {
	if r.IsFixed() {
		vals := r.FixedLiterals()
		if opts.ScanKeysUnlimited || len(rows)*len(vals) <= opts.MaxScanKeyCount {
			return explodeRows(rows, vals), false
		}
		// Over the cap the set degrades to its envelope, which keeps
		// the result a superset.
		return tightenRows(rows, vals[0], vals[len(vals)-1], true, true), true
	}

	if opts.ScanKeysUnlimited {
		if vals, ok := r.EnumerateBounded(opts.MaxScanKeyCount / len(rows)); ok && len(vals) > 0 {
			return explodeRows(rows, vals), false
		}
	}

	low, high, lowIncl, highIncl := r.Bounds()

	return tightenRows(rows, low, high, lowIncl, highIncl), true
}

func explodeRows(rows []ScanKeyRange, vals []basalt.Literal) []ScanKeyRange {
	out := make([]ScanKeyRange, 0, len(rows)*len(vals))
	for _, row := range rows {
		for _, v := range vals {
			next := ScanKeyRange{
				Begin:          appendKey(row.Begin, v),
				End:            appendKey(row.End, v),
				BeginInclusive: true,
				EndInclusive:   true,
			}
			out = append(out, next)
		}
	}

	return out
}

func tightenRows(rows []ScanKeyRange, low, high basalt.Literal, lowIncl, highIncl bool) []ScanKeyRange {
	out := make([]ScanKeyRange, 0, len(rows))
	for _, row := range rows {
		next := row
		next.Begin = append([]basalt.Literal(nil), row.Begin...)
		next.End = append([]basalt.Literal(nil), row.End...)
		if low != nil {
			next.Begin = append(next.Begin, low)
			next.BeginInclusive = lowIncl
		}
		if high != nil {
			next.End = append(next.End, high)
			next.EndInclusive = highIncl
		}
		out = append(out, next)
	}

	return out
}

func appendKey(key []basalt.Literal, v basalt.Literal) []basalt.Literal {
	out := make([]basalt.Literal, 0, len(key)+1)
	out = append(out, key...)

	return append(out, v)
}
