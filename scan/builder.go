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
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/basaltdb/basalt-go"
)

// conjunct pairs one boolean expression with its own normalization
// flag. Binding the flag to the conjunct's identity instead of its list
// position keeps the state correct even if the owning list grows after
// the builder is constructed.
type conjunct struct {
	c          basalt.ExprContainer
	normalized bool
}

// exprPredicate is a residual conjunct over a single slot that the
// external parser can evaluate as a column expression predicate.
type exprPredicate struct {
	slot basalt.SlotDescriptor
	ctx  *basalt.ExprContext
}

// predicateBuilder decomposes one conjunct list into per-column ranges,
// null tests, child AND/OR builders and residuals. The root builder
// pushes whatever it can and leaves the rest residual; nested builders
// are all-or-nothing, so an OR subtree is never partially pruned.
type predicateBuilder struct {
	opts   *Options
	kind   CompoundKind
	isRoot bool

	conjuncts []*conjunct

	ranges     map[string]valueRange
	rangeOrder []string

	children []*predicateBuilder

	conditions     []Condition
	nullConditions []NullCondition
	exprPredicates []exprPredicate
	unarrived      []UnarrivedRuntimeFilter

	log *zap.Logger
}

func newPredicateBuilder(opts *Options, kind CompoundKind, isRoot bool, cs []basalt.ExprContainer) *predicateBuilder {
	b := &predicateBuilder{
		opts:   opts,
		kind:   kind,
		isRoot: isRoot,
		ranges: make(map[string]valueRange),
		log:    opts.Logger,
	}
	b.conjuncts = make([]*conjunct, 0, len(cs))
	for _, c := range cs {
		b.conjuncts = append(b.conjuncts, &conjunct{c: c})
	}

	return b
}

// parseConjuncts runs the normalization passes and reports whether the
// entire conjunct list normalized. The root builder reports true even
// with residuals left; a nested builder reporting false must be
// discarded wholesale by its parent. ErrNoRows escapes only from the
// root: a provably false nested subtree is conservatively left
// residual rather than pruned.
func (b *predicateBuilder) parseConjuncts() (bool, error) {
	for _, slot := range b.opts.Schema.Slots() {
		if err := b.normalizeSlot(slot); err != nil {
			if errors.Is(err, ErrNoRows) && !b.isRoot {
				return false, nil
			}

			return false, err
		}
	}

	if err := b.normalizeCompoundPredicates(); err != nil {
		return false, err
	}

	if b.isRoot {
		for _, slot := range b.opts.Schema.Slots() {
			if err := b.normalizeJoinRuntimeFilter(slot); err != nil {
				return false, err
			}
		}
	}

	for _, col := range b.rangeOrder {
		if b.ranges[col].IsEmpty() {
			if !b.isRoot {
				return false, nil
			}

			return false, errors.Wrapf(ErrNoRows, "column %s has an empty value domain", col)
		}
	}

	b.buildConditions()

	if b.opts.EnableColumnExprPushdown {
		if err := b.buildColumnExprPredicates(); err != nil {
			return false, err
		}
	}

	if !b.isRoot {
		for _, cj := range b.conjuncts {
			if !cj.normalized {
				return false, nil
			}
		}
	}

	return true, nil
}

// normalizeSlot folds the static predicates over one slot into its
// range, in a fixed order: IN-list and equality first so the range
// starts from the tightest discrete form, then bound comparisons, then
// the exclusion forms, then explicit null tests.
func (b *predicateBuilder) normalizeSlot(slot basalt.SlotDescriptor) error {
	if err := b.normalizeInOrEqual(slot); err != nil {
		return err
	}
	if err := b.normalizeBinary(slot); err != nil {
		return err
	}
	if err := b.normalizeNotInOrNotEqual(slot); err != nil {
		return err
	}
	b.normalizeIsNull(slot)

	return nil
}

func (b *predicateBuilder) rangeFor(slot basalt.SlotDescriptor) valueRange {
	if !slot.Type.Type.IsRangeable() {
		return nil
	}
	if r, ok := b.ranges[slot.Name]; ok {
		return r
	}
	r := newRangeForSlot(slot)
	if r == nil {
		return nil
	}
	b.ranges[slot.Name] = r
	b.rangeOrder = append(b.rangeOrder, slot.Name)

	return r
}

func (b *predicateBuilder) normalizeInOrEqual(slot basalt.SlotDescriptor) error {
	r := b.rangeFor(slot)
	if r == nil {
		return nil
	}

	for _, cj := range b.conjuncts {
		if cj.normalized {
			continue
		}

		switch node := cj.c.Root().(type) {
		case *basalt.BinaryExpr:
			if node.Op() != basalt.OpEQ {
				continue
			}
			lit, lossy, err := b.extractSlotCompare(slot, node)
			if err != nil {
				if errors.Is(err, errNotPushable) {
					continue
				}

				return err
			}
			// op is OpEQ on both orientations, so the flipped
			// operator needs no handling here.
			if lossy {
				if b.kind == CompoundOr {
					// A branch that can match nothing adds no
					// values to the union.
					cj.normalized = true

					continue
				}

				return errors.Wrapf(ErrNoRows, "%s cannot equal a sub-day timestamp", slot.Name)
			}
			if err := r.AddFixedLiterals(FilterIn, []basalt.Literal{lit}, b.kind); err != nil {
				if errors.Is(err, errNotPushable) {
					continue
				}

				return err
			}
			cj.normalized = true

		case *basalt.InExpr:
			if node.Op() != basalt.OpIn || node.FromRuntimeFilter() || node.NullInSet() {
				continue
			}
			if len(node.Values()) > b.opts.MaxPushdownConditionsPerColumn {
				continue
			}
			if !slotRefOf(node.Column(), slot) {
				continue
			}
			vals, satisfiable, err := b.castInValues(slot, node.Values())
			if err != nil {
				if errors.Is(err, errNotPushable) {
					continue
				}

				return err
			}
			if !satisfiable {
				if b.kind == CompoundOr {
					cj.normalized = true

					continue
				}

				return errors.Wrapf(ErrNoRows, "in-list on %s holds no representable value", slot.Name)
			}
			if err := r.AddFixedLiterals(FilterIn, vals, b.kind); err != nil {
				if errors.Is(err, errNotPushable) {
					continue
				}

				return err
			}
			cj.normalized = true
		}
	}

	return nil
}

func (b *predicateBuilder) normalizeBinary(slot basalt.SlotDescriptor) error {
	r := b.rangeFor(slot)
	if r == nil {
		return nil
	}

	for _, cj := range b.conjuncts {
		if cj.normalized {
			continue
		}
		node, ok := cj.c.Root().(*basalt.BinaryExpr)
		if !ok {
			continue
		}
		op := node.Op()
		if op != basalt.OpLT && op != basalt.OpLE && op != basalt.OpGT && op != basalt.OpGE {
			continue
		}

		slotOp, lit, lossy, err := b.extractSlotBound(slot, node)
		if err != nil {
			if errors.Is(err, errNotPushable) {
				continue
			}

			return err
		}
		fop, ok := boundFilterOp(slotOp, lossy)
		if !ok {
			continue
		}
		if err := r.AddRangeLiteral(fop, lit, b.kind); err != nil {
			if errors.Is(err, errNotPushable) {
				continue
			}

			return err
		}
		cj.normalized = true
	}

	return nil
}

// boundFilterOp maps a slot-on-the-left comparison operator to a filter
// operator, applying the conservative rewrite for a DATE column bounded
// by a timestamp that carried a nonzero time component: the truncated
// date moved below the original value, so >= tightens to > and <
// loosens to <=, while > and <= stay correct as-is.
func boundFilterOp(op basalt.Operation, lossy bool) (FilterOp, bool) {
	switch op {
	case basalt.OpGT:
		return FilterGT, true
	case basalt.OpGE:
		if lossy {
			return FilterGT, true
		}

		return FilterGE, true
	case basalt.OpLT:
		if lossy {
			return FilterLE, true
		}

		return FilterLT, true
	case basalt.OpLE:
		return FilterLE, true
	}

	return 0, false
}

func (b *predicateBuilder) normalizeNotInOrNotEqual(slot basalt.SlotDescriptor) error {
	if b.kind == CompoundOr {
		// A negative form under OR widens, never narrows; it stays
		// residual.
		return nil
	}
	r := b.rangeFor(slot)
	if r == nil {
		return nil
	}

	for _, cj := range b.conjuncts {
		if cj.normalized {
			continue
		}

		switch node := cj.c.Root().(type) {
		case *basalt.BinaryExpr:
			if node.Op() != basalt.OpNE {
				continue
			}
			lit, lossy, err := b.extractSlotCompare(slot, node)
			if err != nil {
				if errors.Is(err, errNotPushable) {
					continue
				}

				return err
			}
			if lossy {
				// The truncated value is not the one the predicate
				// excludes; leave it for row-level evaluation.
				continue
			}
			if err := r.AddFixedLiterals(FilterNotIn, []basalt.Literal{lit}, b.kind); err != nil {
				if errors.Is(err, errNotPushable) {
					continue
				}

				return err
			}
			cj.normalized = true

		case *basalt.InExpr:
			if node.Op() != basalt.OpNotIn || node.FromRuntimeFilter() || node.NullInSet() {
				continue
			}
			if len(node.Values()) > b.opts.MaxPushdownConditionsPerColumn {
				continue
			}
			if !slotRefOf(node.Column(), slot) {
				continue
			}
			vals, exact, err := b.castNotInValues(slot, node.Values())
			if err != nil {
				if errors.Is(err, errNotPushable) {
					continue
				}

				return err
			}
			if !exact {
				continue
			}
			if err := r.AddFixedLiterals(FilterNotIn, vals, b.kind); err != nil {
				if errors.Is(err, errNotPushable) {
					continue
				}

				return err
			}
			cj.normalized = true
		}
	}

	return nil
}

func (b *predicateBuilder) normalizeIsNull(slot basalt.SlotDescriptor) {
	for _, cj := range b.conjuncts {
		if cj.normalized {
			continue
		}
		node, ok := cj.c.Root().(*basalt.IsNullExpr)
		if !ok || !slotRefOf(node.Child(), slot) {
			continue
		}
		b.nullConditions = append(b.nullConditions, NullCondition{
			Column: slot.Name,
			IsNull: !node.NotNull(),
		})
		cj.normalized = true
	}
}

// normalizeCompoundPredicates spawns a child builder per AND/OR node
// left unnormalized in the conjunct list. A child that cannot
// normalize every one of its members contributes nothing; its conjunct
// stays residual in this builder.
func (b *predicateBuilder) normalizeCompoundPredicates() error {
	for _, cj := range b.conjuncts {
		if cj.normalized {
			continue
		}
		node, ok := cj.c.Root().(*basalt.CompoundExpr)
		if !ok {
			continue
		}
		kind := CompoundAnd
		if node.Op() == basalt.OpOr {
			kind = CompoundOr
		}

		child := newPredicateBuilder(b.opts, kind, false, basalt.ContainRaw(node.Children()))
		ok, err := child.parseConjuncts()
		if err != nil {
			return err
		}
		if !ok {
			b.log.Debug("compound subtree not pushable, kept residual",
				zap.Stringer("expr", node))

			continue
		}
		b.children = append(b.children, child)
		cj.normalized = true
	}

	return nil
}

// normalizeJoinRuntimeFilter folds join-provided filters for one probe
// slot: exact IN-list filters from the conjunct list first, then the
// published bloom/min-max summaries. Runs only at the root, after all
// static predicates.
func (b *predicateBuilder) normalizeJoinRuntimeFilter(slot basalt.SlotDescriptor) error {
	r := b.rangeFor(slot)

	for _, cj := range b.conjuncts {
		if cj.normalized {
			continue
		}
		node, ok := cj.c.Root().(*basalt.InExpr)
		if !ok || !node.FromRuntimeFilter() {
			continue
		}
		if !slotRefOf(node.Column(), slot) {
			continue
		}
		// A runtime-filter IN-list is best effort: whatever cannot
		// tighten the range is simply dropped, and the conjunct is
		// never re-evaluated downstream.
		cj.normalized = true
		if r == nil || node.NullInSet() || len(node.Values()) > b.opts.MaxPushdownConditionsPerColumn {
			continue
		}
		vals, satisfiable, err := b.castInValues(slot, node.Values())
		if err != nil || !satisfiable || len(vals) == 0 {
			continue
		}
		_ = r.AddFixedLiterals(FilterIn, vals, CompoundAnd)
	}

	if r == nil || b.opts.FilterRegistry == nil {
		return nil
	}

	for _, desc := range b.opts.RuntimeFilters {
		if desc.ProbeSlot != slot.ID {
			continue
		}
		f := b.opts.FilterRegistry.Get(desc.FilterID)
		if f == nil {
			b.unarrived = append(b.unarrived, UnarrivedRuntimeFilter{Slot: slot, Descriptor: desc})

			continue
		}
		b.applyFilterBounds(slot, r, f)
	}

	return nil
}

// applyFilterBounds intersects a published filter's min/max summary into
// the slot's range.
func (b *predicateBuilder) applyFilterBounds(slot basalt.SlotDescriptor, r valueRange, f *RuntimeFilter) {
	if !intersectFilterBounds(slot, r, f, b.opts.GlobalDicts) {
		return
	}
	b.log.Debug("runtime filter bounds applied",
		zap.String("column", slot.Name), zap.Int32("filter", int32(f.ID)))
}

// intersectFilterBounds folds a published filter's min/max summary into
// the slot's range. A filter whose domain holds NULL cannot bound the
// range safely; a dictionary-coded string column decodes the bounds
// through the query-global dictionary first. If the range was untouched
// before the fold, it is marked index-filter-only since no row-level
// recheck is required for a join summary.
func intersectFilterBounds(slot basalt.SlotDescriptor, r valueRange, f *RuntimeFilter, dicts map[basalt.SlotID]*GlobalDict) bool {
	if f.HasNull || f.Min == nil || f.Max == nil {
		return false
	}

	low, high := f.Min, f.Max
	if dict := dicts[slot.ID]; dict != nil && slot.Type.Type.IsStringType() {
		var ok bool
		if low, ok = dict.DecodeLiteral(low); !ok {
			return false
		}
		if high, ok = dict.DecodeLiteral(high); !ok {
			return false
		}
	}

	low, _, err := castLiteralToSlot(slot, low)
	if err != nil {
		return false
	}
	high, _, err = castLiteralToSlot(slot, high)
	if err != nil {
		return false
	}

	wasInit := r.IsInitState()
	if err := r.AddRangeLiteral(FilterGE, low, CompoundAnd); err != nil {
		return false
	}
	if err := r.AddRangeLiteral(FilterLE, high, CompoundAnd); err != nil {
		return false
	}
	if wasInit {
		r.SetIndexFilterOnly(true)
	}

	return true
}

// buildConditions renders each touched range as native filter
// conditions, in the order the columns were first constrained.
func (b *predicateBuilder) buildConditions() {
	for _, col := range b.rangeOrder {
		b.ranges[col].AppendConditions(&b.conditions)
	}
}

// buildColumnExprPredicates hands residual conjuncts over exactly one
// slot to the external parser as column expression predicates, so the
// storage layer can still evaluate them columnar-side.
func (b *predicateBuilder) buildColumnExprPredicates() error {
	for _, cj := range b.conjuncts {
		if cj.normalized {
			continue
		}
		ids := basalt.SlotIDsOf(cj.c.Root())
		if len(ids) != 1 {
			continue
		}
		slot, ok := b.opts.Schema.FindByID(ids[0])
		if !ok {
			continue
		}
		if slot.Type.Type == basalt.TypeUnknown || slot.Type.Type == basalt.TypeJSON {
			continue
		}
		ctx, err := cj.c.Context()
		if err != nil {
			return err
		}
		b.exprPredicates = append(b.exprPredicates, exprPredicate{slot: slot, ctx: ctx})
		cj.normalized = true
	}

	return nil
}

// residuals returns, by conjunct identity, the contexts still requiring
// generic row-level evaluation.
func (b *predicateBuilder) residuals() ([]*basalt.ExprContext, error) {
	var out []*basalt.ExprContext
	for _, cj := range b.conjuncts {
		if cj.normalized {
			continue
		}
		ctx, err := cj.c.Context()
		if err != nil {
			return nil, err
		}
		out = append(out, ctx)
	}

	return out, nil
}

// compile parses this builder's artifacts into one predicate tree node
// and recurses into the normalized children.
func (b *predicateBuilder) compile(parser PredicateParser) (*PredicateTree, error) {
	op := basalt.OpAnd
	if b.kind == CompoundOr {
		op = basalt.OpOr
	}
	node := &PredicateTree{op: op}

	for _, cond := range b.conditions {
		p, err := parser.ParseCondition(cond)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidFilter, "condition %s: %v", cond, err)
		}
		node.preds = append(node.preds, p)
	}
	for _, nc := range b.nullConditions {
		p, err := parser.ParseNullCondition(nc)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidFilter, "null condition %s: %v", nc, err)
		}
		node.preds = append(node.preds, p)
	}
	for _, ep := range b.exprPredicates {
		p, err := parser.ParseExprContext(ep.slot, ep.ctx)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidFilter, "column expression on %s: %v", ep.slot.Name, err)
		}
		node.preds = append(node.preds, p)
	}
	for _, child := range b.children {
		sub, err := child.compile(parser)
		if err != nil {
			return nil, err
		}
		node.children = append(node.children, sub)
	}

	return node, nil
}

// extractSlotCompare resolves an equality or inequality against the
// slot: the constant side folded once, cast to the slot's type. lossy
// reports a DATE slot compared against a timestamp that carried a time
// component.
func (b *predicateBuilder) extractSlotCompare(slot basalt.SlotDescriptor, node *basalt.BinaryExpr) (lit basalt.Literal, lossy bool, err error) {
	_, lit, lossy, err = b.extractSlotBound(slot, node)

	return lit, lossy, err
}

// extractSlotBound canonicalizes the comparison so the slot sits on the
// left, flipping the operator when the plan put the constant first.
func (b *predicateBuilder) extractSlotBound(slot basalt.SlotDescriptor, node *basalt.BinaryExpr) (basalt.Operation, basalt.Literal, bool, error) {
	op := node.Op()
	var value basalt.Expr
	switch {
	case slotRefOf(node.Left(), slot):
		value = node.Right()
	case slotRefOf(node.Right(), slot):
		op = op.FlipLR()
		value = node.Left()
	default:
		return op, nil, false, errors.Wrapf(errNotPushable, "no reference to %s", slot.Name)
	}

	if !value.Constant() {
		return op, nil, false, errors.Wrapf(errNotPushable, "operand %s is not constant", value)
	}
	lit, null, err := basalt.FoldConstant(value)
	if err != nil || null {
		return op, nil, false, errors.Wrapf(errNotPushable, "operand %s does not fold to a value", value)
	}

	lit, lossy, err := castLiteralToSlot(slot, lit)

	return op, lit, lossy, err
}

// castLiteralToSlot applies the two permitted implicit casts (within
// the date family and within the string family) plus same-type decimal
// rescaling. A decimal that overflows the column's declared precision
// is rejected so the predicate stays residual.
func castLiteralToSlot(slot basalt.SlotDescriptor, lit basalt.Literal) (basalt.Literal, bool, error) {
	st, lt := slot.Type, lit.Type()

	switch {
	case st.Type == lt.Type:
	case st.Type.IsDateType() && lt.Type.IsDateType():
	case st.Type.IsStringType() && lt.Type.IsStringType():
	case isIntClass(st.Type) && isIntClass(lt.Type):
	default:
		return nil, false, errors.Wrapf(errNotPushable, "cannot fold a %s operand into %s column %s", lt, st, slot.Name)
	}

	if st.Type == basalt.TypeDate && lt.Type == basalt.TypeDateTime {
		dt := lit.(basalt.DateTimeLiteral)
		lossy := dt.Value().HasTimePart()

		return basalt.DateLiteral(dt.Value().ToDate()), lossy, nil
	}

	// Boolean and narrow integer columns share the int32 range domain,
	// so their operands are carried as int32 literals.
	target := st
	switch st.Type {
	case basalt.TypeBoolean, basalt.TypeTinyInt, basalt.TypeSmallInt:
		target = basalt.TypeOf(basalt.TypeInt)
	}

	out, err := lit.To(target)
	if err != nil {
		return nil, false, errors.Wrapf(errNotPushable, "operand %s does not fit column %s: %v", lit, slot.Name, err)
	}
	if dec, ok := out.(basalt.DecimalLiteral); ok && !dec.FitsPrecision(st.Precision) {
		return nil, false, errors.Wrapf(errNotPushable, "operand %s overflows decimal(%d,%d)", lit, st.Precision, st.Scale)
	}

	return out, false, nil
}

// castInValues casts an IN-list onto the slot type. Members that cannot
// match any value of the column (a sub-day timestamp against a DATE
// column) are dropped; satisfiable reports whether any member survived.
func (b *predicateBuilder) castInValues(slot basalt.SlotDescriptor, values []basalt.Literal) (out []basalt.Literal, satisfiable bool, err error) {
	out = make([]basalt.Literal, 0, len(values))
	for _, v := range values {
		lit, lossy, err := castLiteralToSlot(slot, v)
		if err != nil {
			return nil, false, err
		}
		if lossy {
			continue
		}
		out = append(out, lit)
	}

	return out, len(out) > 0, nil
}

// castNotInValues casts a NOT-IN list onto the slot type. Exclusion is
// only sound when every member converts exactly, so any lossy member
// leaves the whole predicate residual.
func (b *predicateBuilder) castNotInValues(slot basalt.SlotDescriptor, values []basalt.Literal) (out []basalt.Literal, exact bool, err error) {
	out = make([]basalt.Literal, 0, len(values))
	for _, v := range values {
		lit, lossy, err := castLiteralToSlot(slot, v)
		if err != nil {
			return nil, false, err
		}
		if lossy {
			return nil, false, nil
		}
		out = append(out, lit)
	}

	return out, true, nil
}

// isIntClass reports whether t is an integer type; integer operands
// widen or bounds-check into the column's width.
func isIntClass(t basalt.LogicalType) bool {
	switch t {
	case basalt.TypeTinyInt, basalt.TypeSmallInt, basalt.TypeInt, basalt.TypeBigInt:
		return true
	}

	return false
}

// slotRefOf reports whether e references the slot, looking through an
// implicit widening cast within the date or string family the planner
// may have wrapped around the column.
func slotRefOf(e basalt.Expr, slot basalt.SlotDescriptor) bool {
	if cast, ok := e.(*basalt.CastExpr); ok {
		from, to := cast.Child().Type().Type, cast.Type().Type
		if (from.IsDateType() && to.IsDateType()) || (from.IsStringType() && to.IsStringType()) {
			e = cast.Child()
		}
	}
	ref, ok := e.(*basalt.ColumnRef)

	return ok && ref.Slot() == slot.ID
}
