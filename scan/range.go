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
	"math"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/basaltdb/basalt-go"
)

// CompoundKind selects the algebra used when folding a predicate into a
// range: conjunctions intersect, disjunctions union.
type CompoundKind int8

const (
	CompoundAnd CompoundKind = iota
	CompoundOr
)

// RangeValue is the closed set of Go types a column range can be
// instantiated with; one per rangeable logical type class.
type RangeValue interface {
	int32 | int64 | string | basalt.Date | basalt.DateTime | basalt.Decimal
}

// valueRange is the type-erased view of a ColumnValueRange used by the
// predicate builder and the scan key extender. The generic instantiation
// is chosen once per column by newRangeForSlot.
type valueRange interface {
	Column() string
	LogicalType() basalt.LogicalType

	AddFixedLiterals(op FilterOp, values []basalt.Literal, kind CompoundKind) error
	AddRangeLiteral(op FilterOp, value basalt.Literal, kind CompoundKind) error

	// IsEmpty reports a provably empty value domain: the whole scan
	// yields no rows.
	IsEmpty() bool
	// IsInitState reports that no constraint has been folded in yet and
	// the range still spans the column's full type domain.
	IsInitState() bool

	SetIndexFilterOnly(bool)
	IndexFilterOnly() bool

	AppendConditions(*[]Condition)

	IsFixed() bool
	// FixedLiterals returns the discrete value set in ascending order.
	FixedLiterals() []basalt.Literal
	// Bounds returns the continuous bound ends; a nil literal means the
	// side is unbounded.
	Bounds() (low, high basalt.Literal, lowIncl, highIncl bool)
	// EnumerateBounded expands a closed continuous bound into at most
	// max discrete values, when the value type is enumerable.
	EnumerateBounded(max int) ([]basalt.Literal, bool)
}

// ColumnValueRange is the per-column value-domain algebra. It holds
// either a continuous [low, high] bound or a discrete fixed-value set,
// never both: folding a fixed-value constraint into a bound converts the
// bound into a finite set, and folding a bound into a set filters the
// set. An empty set or crossed bound means the column's domain is
// provably empty.
type ColumnValueRange[T RangeValue] struct {
	column string
	typ    basalt.TypeDescriptor

	cmp   basalt.Comparator[T]
	toLit func(T) basalt.Literal
	// succ is nil for value types that cannot be enumerated.
	succ func(T) (T, bool)

	hasLow, hasHigh   bool
	low, high         T
	lowIncl, highIncl bool

	fixed   map[T]struct{}
	isFixed bool

	indexFilterOnly bool
}

func (r *ColumnValueRange[T]) Column() string                  { return r.column }
func (r *ColumnValueRange[T]) LogicalType() basalt.LogicalType { return r.typ.Type }
func (r *ColumnValueRange[T]) SetIndexFilterOnly(v bool)       { r.indexFilterOnly = v }
func (r *ColumnValueRange[T]) IndexFilterOnly() bool           { return r.indexFilterOnly }
func (r *ColumnValueRange[T]) IsFixed() bool                   { return r.isFixed }

func (r *ColumnValueRange[T]) IsInitState() bool {
	return !r.isFixed && !r.hasLow && !r.hasHigh
}

func (r *ColumnValueRange[T]) IsEmpty() bool {
	if r.isFixed {
		return len(r.fixed) == 0
	}
	if r.hasLow && r.hasHigh {
		c := r.cmp(r.low, r.high)

		return c > 0 || (c == 0 && !(r.lowIncl && r.highIncl))
	}

	return false
}

func (r *ColumnValueRange[T]) values(lits []basalt.Literal) ([]T, error) {
	out := make([]T, 0, len(lits))
	for _, lit := range lits {
		tl, ok := lit.(basalt.TypedLiteral[T])
		if !ok {
			return nil, errors.Wrapf(basalt.ErrType, "literal %s does not match column %s", lit, r.column)
		}
		out = append(out, tl.Value())
	}

	return out, nil
}

// AddFixedLiterals intersects (AND) or unions (OR) a discrete value set
// into the range. NOT-IN folds only as an exclusion from an existing
// fixed set and never under OR.
func (r *ColumnValueRange[T]) AddFixedLiterals(op FilterOp, lits []basalt.Literal, kind CompoundKind) error {
	vals, err := r.values(lits)
	if err != nil {
		return err
	}

	switch {
	case op == FilterIn && kind == CompoundAnd:
		if r.isFixed {
			kept := make(map[T]struct{}, len(vals))
			for _, v := range vals {
				if _, ok := r.fixed[v]; ok {
					kept[v] = struct{}{}
				}
			}
			r.fixed = kept

			return nil
		}
		set := make(map[T]struct{}, len(vals))
		for _, v := range vals {
			if r.containsBound(v) {
				set[v] = struct{}{}
			}
		}
		r.fixed, r.isFixed = set, true
		r.hasLow, r.hasHigh = false, false

		return nil

	case op == FilterIn && kind == CompoundOr:
		if r.hasLow || r.hasHigh {
			return errors.Wrapf(errNotPushable, "cannot union values into a bounded range on %s", r.column)
		}
		if r.fixed == nil {
			r.fixed = make(map[T]struct{}, len(vals))
		}
		for _, v := range vals {
			r.fixed[v] = struct{}{}
		}
		r.isFixed = true

		return nil

	case op == FilterNotIn && kind == CompoundAnd:
		if !r.isFixed {
			return errors.Wrapf(errNotPushable, "cannot exclude values from a non-fixed range on %s", r.column)
		}
		for _, v := range vals {
			delete(r.fixed, v)
		}

		return nil
	}

	return errors.Wrapf(errNotPushable, "unsupported fixed-value fold %s under %v", op, kind)
}

// AddRangeLiteral folds one bound comparison into the range.
func (r *ColumnValueRange[T]) AddRangeLiteral(op FilterOp, lit basalt.Literal, kind CompoundKind) error {
	if op == FilterIn || op == FilterNotIn {
		return errors.Wrapf(basalt.ErrInvalidArgument, "%s is not a bound operator", op)
	}
	vals, err := r.values([]basalt.Literal{lit})
	if err != nil {
		return err
	}
	v := vals[0]

	if kind == CompoundOr {
		return r.unionBound(op, v)
	}

	if r.isFixed {
		kept := make(map[T]struct{}, len(r.fixed))
		for fv := range r.fixed {
			if boundSatisfies(op, r.cmp(fv, v)) {
				kept[fv] = struct{}{}
			}
		}
		r.fixed = kept

		return nil
	}

	switch op {
	case FilterGT, FilterGE:
		incl := op == FilterGE
		if !r.hasLow {
			r.hasLow, r.low, r.lowIncl = true, v, incl

			return nil
		}
		if c := r.cmp(v, r.low); c > 0 || (c == 0 && !incl) {
			r.low, r.lowIncl = v, incl
		}
	case FilterLT, FilterLE:
		incl := op == FilterLE
		if !r.hasHigh {
			r.hasHigh, r.high, r.highIncl = true, v, incl

			return nil
		}
		if c := r.cmp(v, r.high); c < 0 || (c == 0 && !incl) {
			r.high, r.highIncl = v, incl
		}
	}

	return nil
}

// unionBound widens the range for a disjunction. Only same-direction
// bounds can be unioned soundly; everything else stays residual.
func (r *ColumnValueRange[T]) unionBound(op FilterOp, v T) error {
	if r.isFixed {
		return errors.Wrapf(errNotPushable, "cannot union a bound into a fixed set on %s", r.column)
	}

	switch op {
	case FilterGT, FilterGE:
		if r.hasHigh {
			return errors.Wrapf(errNotPushable, "mixed bound directions under or on %s", r.column)
		}
		incl := op == FilterGE
		if !r.hasLow {
			r.hasLow, r.low, r.lowIncl = true, v, incl

			return nil
		}
		if c := r.cmp(v, r.low); c < 0 || (c == 0 && incl) {
			r.low, r.lowIncl = v, incl
		}
	case FilterLT, FilterLE:
		if r.hasLow {
			return errors.Wrapf(errNotPushable, "mixed bound directions under or on %s", r.column)
		}
		incl := op == FilterLE
		if !r.hasHigh {
			r.hasHigh, r.high, r.highIncl = true, v, incl

			return nil
		}
		if c := r.cmp(v, r.high); c > 0 || (c == 0 && incl) {
			r.high, r.highIncl = v, incl
		}
	}

	return nil
}

func (r *ColumnValueRange[T]) containsBound(v T) bool {
	if r.hasLow {
		c := r.cmp(v, r.low)
		if c < 0 || (c == 0 && !r.lowIncl) {
			return false
		}
	}
	if r.hasHigh {
		c := r.cmp(v, r.high)
		if c > 0 || (c == 0 && !r.highIncl) {
			return false
		}
	}

	return true
}

func boundSatisfies(op FilterOp, c int) bool {
	switch op {
	case FilterGT:
		return c > 0
	case FilterGE:
		return c >= 0
	case FilterLT:
		return c < 0
	case FilterLE:
		return c <= 0
	}

	return false
}

func (r *ColumnValueRange[T]) sortedFixed() []T {
	out := make([]T, 0, len(r.fixed))
	for v := range r.fixed {
		out = append(out, v)
	}
	slices.SortFunc(out, r.cmp)

	return out
}

func (r *ColumnValueRange[T]) FixedLiterals() []basalt.Literal {
	return lo.Map(r.sortedFixed(), func(v T, _ int) basalt.Literal { return r.toLit(v) })
}

func (r *ColumnValueRange[T]) Bounds() (low, high basalt.Literal, lowIncl, highIncl bool) {
	if r.hasLow {
		low, lowIncl = r.toLit(r.low), r.lowIncl
	}
	if r.hasHigh {
		high, highIncl = r.toLit(r.high), r.highIncl
	}

	return low, high, lowIncl, highIncl
}

func (r *ColumnValueRange[T]) EnumerateBounded(max int) ([]basalt.Literal, bool) {
	if r.succ == nil || r.isFixed || !r.hasLow || !r.hasHigh || max <= 0 {
		return nil, false
	}

	cur, curOK := r.low, true
	if !r.lowIncl {
		cur, curOK = r.succ(cur)
	}
	out := make([]basalt.Literal, 0, 8)
	for curOK {
		c := r.cmp(cur, r.high)
		if c > 0 || (c == 0 && !r.highIncl) {
			break
		}
		if len(out) == max {
			return nil, false
		}
		out = append(out, r.toLit(cur))
		cur, curOK = r.succ(cur)
	}

	return out, true
}

// AppendConditions renders the range as native filter conditions. An
// empty range renders nothing; the caller detects emptiness through
// IsEmpty and raises the short circuit.
func (r *ColumnValueRange[T]) AppendConditions(conds *[]Condition) {
	if r.IsEmpty() {
		return
	}

	if r.isFixed {
		*conds = append(*conds, Condition{
			Column:          r.column,
			Op:              FilterIn,
			Values:          lo.Map(r.sortedFixed(), func(v T, _ int) string { return r.toLit(v).String() }),
			IndexFilterOnly: r.indexFilterOnly,
		})

		return
	}

	if r.hasLow {
		op := FilterGT
		if r.lowIncl {
			op = FilterGE
		}
		*conds = append(*conds, Condition{
			Column:          r.column,
			Op:              op,
			Values:          []string{r.toLit(r.low).String()},
			IndexFilterOnly: r.indexFilterOnly,
		})
	}
	if r.hasHigh {
		op := FilterLT
		if r.highIncl {
			op = FilterLE
		}
		*conds = append(*conds, Condition{
			Column:          r.column,
			Op:              op,
			Values:          []string{r.toLit(r.high).String()},
			IndexFilterOnly: r.indexFilterOnly,
		})
	}
}

// NewColumnValueRange creates an unconstrained range for a column. Most
// callers should use newRangeForSlot, which picks the value type from
// the column's logical type tag.
func NewColumnValueRange[T RangeValue](column string, typ basalt.TypeDescriptor,
	cmp basalt.Comparator[T], toLit func(T) basalt.Literal, succ func(T) (T, bool),
) *ColumnValueRange[T] {
	return &ColumnValueRange[T]{column: column, typ: typ, cmp: cmp, toLit: toLit, succ: succ}
}

// newRangeForSlot dispatches once per column on the logical type tag and
// returns the properly instantiated range, or nil when the type cannot
// carry a range (floating point, JSON). Narrow integers and booleans
// share the int32 domain; CHAR shares the VARCHAR domain.
func newRangeForSlot(slot basalt.SlotDescriptor) valueRange {
	name, typ := slot.Name, slot.Type
	switch typ.Type {
	case basalt.TypeBoolean, basalt.TypeTinyInt, basalt.TypeSmallInt, basalt.TypeInt:
		return NewColumnValueRange[int32](name, typ,
			basalt.Int32Literal(0).Comparator(),
			func(v int32) basalt.Literal { return basalt.Int32Literal(v) },
			func(v int32) (int32, bool) { return v + 1, v != math.MaxInt32 })
	case basalt.TypeBigInt:
		return NewColumnValueRange[int64](name, typ,
			basalt.Int64Literal(0).Comparator(),
			func(v int64) basalt.Literal { return basalt.Int64Literal(v) },
			func(v int64) (int64, bool) { return v + 1, v != math.MaxInt64 })
	case basalt.TypeDecimal:
		return NewColumnValueRange[basalt.Decimal](name, typ,
			basalt.DecimalLiteral(basalt.Decimal{}).Comparator(),
			func(v basalt.Decimal) basalt.Literal { return basalt.DecimalLiteral(v) },
			nil)
	case basalt.TypeChar, basalt.TypeVarchar:
		return NewColumnValueRange[string](name, typ,
			basalt.StringLiteral("").Comparator(),
			func(v string) basalt.Literal { return basalt.StringLiteral(v) },
			nil)
	case basalt.TypeDate:
		return NewColumnValueRange[basalt.Date](name, typ,
			basalt.DateLiteral(0).Comparator(),
			func(v basalt.Date) basalt.Literal { return basalt.DateLiteral(v) },
			func(v basalt.Date) (basalt.Date, bool) { return v + 1, v != math.MaxInt32 })
	case basalt.TypeDateTime:
		return NewColumnValueRange[basalt.DateTime](name, typ,
			basalt.DateTimeLiteral(0).Comparator(),
			func(v basalt.DateTime) basalt.Literal { return basalt.DateTimeLiteral(v) },
			nil)
	default:
		return nil
	}
}
