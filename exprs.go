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

package basalt

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Operation tags every expression node with what it computes.
type Operation int

const (
	OpColumn Operation = iota
	OpConst
	OpCast
	// binary comparisons
	OpEQ
	OpNE
	OpLT
	OpLE
	OpGT
	OpGE
	// set membership
	OpIn
	OpNotIn
	// null tests
	OpIsNull
	OpNotNull
	// compounds
	OpAnd
	OpOr
)

var opNames = map[Operation]string{
	OpColumn:  "column",
	OpConst:   "const",
	OpCast:    "cast",
	OpEQ:      "=",
	OpNE:      "!=",
	OpLT:      "<",
	OpLE:      "<=",
	OpGT:      ">",
	OpGE:      ">=",
	OpIn:      "in",
	OpNotIn:   "not in",
	OpIsNull:  "is null",
	OpNotNull: "is not null",
	OpAnd:     "and",
	OpOr:      "or",
}

func (op Operation) String() string {
	if n, ok := opNames[op]; ok {
		return n
	}

	return fmt.Sprintf("Operation(%d)", int(op))
}

// IsBinaryCompare reports whether op is one of =, !=, <, <=, >, >=.
func (op Operation) IsBinaryCompare() bool {
	return op >= OpEQ && op <= OpGE
}

// Negate returns the complementary operation.
func (op Operation) Negate() Operation {
	switch op {
	case OpEQ:
		return OpNE
	case OpNE:
		return OpEQ
	case OpLT:
		return OpGE
	case OpLE:
		return OpGT
	case OpGT:
		return OpLE
	case OpGE:
		return OpLT
	case OpIn:
		return OpNotIn
	case OpNotIn:
		return OpIn
	case OpIsNull:
		return OpNotNull
	case OpNotNull:
		return OpIsNull
	}
	panic("no negation for operation " + op.String())
}

// FlipLR returns the operation to use when the left and right operands of
// a comparison are swapped.
func (op Operation) FlipLR() Operation {
	switch op {
	case OpEQ, OpNE:
		return op
	case OpLT:
		return OpGT
	case OpLE:
		return OpGE
	case OpGT:
		return OpLT
	case OpGE:
		return OpLE
	}
	panic("no left-right flip for operation " + op.String())
}

// Expr is one node of a boolean filter expression tree.
type Expr interface {
	fmt.Stringer

	Op() Operation
	Type() TypeDescriptor
	Children() []Expr
	// Constant reports whether the subtree references no column slot.
	Constant() bool
}

// SlotIDsOf collects the distinct slot ids referenced by the subtree, in
// first-reference order.
func SlotIDsOf(e Expr) []SlotID {
	var out []SlotID
	seen := make(map[SlotID]struct{})
	var walk func(Expr)
	walk = func(e Expr) {
		if ref, ok := e.(*ColumnRef); ok {
			if _, dup := seen[ref.Slot()]; !dup {
				seen[ref.Slot()] = struct{}{}
				out = append(out, ref.Slot())
			}

			return
		}
		for _, c := range e.Children() {
			walk(c)
		}
	}
	walk(e)

	return out
}

// ColumnRef references one slot of the row schema.
type ColumnRef struct {
	slot SlotID
	name string
	typ  TypeDescriptor
}

func NewColumnRef(slot SlotDescriptor) *ColumnRef {
	return &ColumnRef{slot: slot.ID, name: slot.Name, typ: slot.Type}
}

func (c *ColumnRef) Op() Operation       { return OpColumn }
func (c *ColumnRef) Type() TypeDescriptor { return c.typ }
func (c *ColumnRef) Children() []Expr    { return nil }
func (c *ColumnRef) Constant() bool      { return false }
func (c *ColumnRef) Slot() SlotID        { return c.slot }
func (c *ColumnRef) Name() string        { return c.name }
func (c *ColumnRef) String() string      { return c.name }

// ConstExpr is a constant value, possibly NULL.
type ConstExpr struct {
	lit  Literal
	typ  TypeDescriptor
	null bool
}

func NewConst(lit Literal) *ConstExpr {
	if lit == nil {
		panic(errors.Wrap(ErrInvalidArgument, "cannot create const expression from nil literal"))
	}

	return &ConstExpr{lit: lit, typ: lit.Type()}
}

func NewNullConst(typ TypeDescriptor) *ConstExpr {
	return &ConstExpr{typ: typ, null: true}
}

func (c *ConstExpr) Op() Operation        { return OpConst }
func (c *ConstExpr) Type() TypeDescriptor { return c.typ }
func (c *ConstExpr) Children() []Expr     { return nil }
func (c *ConstExpr) Constant() bool       { return true }
func (c *ConstExpr) IsNull() bool         { return c.null }

// Literal returns the constant value, nil when the constant is NULL.
func (c *ConstExpr) Literal() Literal { return c.lit }

func (c *ConstExpr) String() string {
	if c.null {
		return "NULL"
	}

	return c.lit.String()
}

// CastExpr casts its child to another logical type. The planner inserts
// these around DATE slots compared against DATETIME operands.
type CastExpr struct {
	child Expr
	typ   TypeDescriptor
}

func NewCast(child Expr, to TypeDescriptor) *CastExpr {
	if child == nil {
		panic(errors.Wrap(ErrInvalidArgument, "cannot create cast with nil child"))
	}

	return &CastExpr{child: child, typ: to}
}

func (c *CastExpr) Op() Operation        { return OpCast }
func (c *CastExpr) Type() TypeDescriptor { return c.typ }
func (c *CastExpr) Children() []Expr     { return []Expr{c.child} }
func (c *CastExpr) Constant() bool       { return c.child.Constant() }
func (c *CastExpr) Child() Expr          { return c.child }

func (c *CastExpr) String() string {
	return fmt.Sprintf("CAST(%s AS %s)", c.child, c.typ)
}

// BinaryExpr is a comparison between two operands.
type BinaryExpr struct {
	op          Operation
	left, right Expr
}

func NewBinary(op Operation, left, right Expr) *BinaryExpr {
	if !op.IsBinaryCompare() {
		panic(errors.Wrapf(ErrInvalidArgument, "invalid operation for binary predicate: %s", op))
	}
	if left == nil || right == nil {
		panic(errors.Wrap(ErrInvalidArgument, "cannot create binary predicate with nil operand"))
	}

	return &BinaryExpr{op: op, left: left, right: right}
}

func (b *BinaryExpr) Op() Operation        { return b.op }
func (b *BinaryExpr) Type() TypeDescriptor { return TypeOf(TypeBoolean) }
func (b *BinaryExpr) Children() []Expr     { return []Expr{b.left, b.right} }
func (b *BinaryExpr) Constant() bool       { return b.left.Constant() && b.right.Constant() }
func (b *BinaryExpr) Left() Expr           { return b.left }
func (b *BinaryExpr) Right() Expr          { return b.right }

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.left, b.op, b.right)
}

// InExpr is a set membership predicate over constant values. A join build
// side may plant one tagged as a runtime filter; those are normalized
// after all static predicates.
type InExpr struct {
	col               Expr
	values            []Literal
	notIn             bool
	nullInSet         bool
	fromRuntimeFilter bool
}

func NewIn(col Expr, values ...Literal) *InExpr {
	return &InExpr{col: col, values: values}
}

func NewNotIn(col Expr, values ...Literal) *InExpr {
	return &InExpr{col: col, values: values, notIn: true}
}

// NewRuntimeFilterIn creates the IN-list form of a join runtime filter
// targeting the probe-side column.
func NewRuntimeFilterIn(col Expr, values ...Literal) *InExpr {
	return &InExpr{col: col, values: values, fromRuntimeFilter: true}
}

// WithNullInSet marks the value set as containing a NULL member.
func (in *InExpr) WithNullInSet() *InExpr {
	in.nullInSet = true

	return in
}

func (in *InExpr) Op() Operation {
	if in.notIn {
		return OpNotIn
	}

	return OpIn
}

func (in *InExpr) Type() TypeDescriptor    { return TypeOf(TypeBoolean) }
func (in *InExpr) Children() []Expr        { return []Expr{in.col} }
func (in *InExpr) Constant() bool          { return in.col.Constant() }
func (in *InExpr) Column() Expr            { return in.col }
func (in *InExpr) Values() []Literal       { return in.values }
func (in *InExpr) NullInSet() bool         { return in.nullInSet }
func (in *InExpr) FromRuntimeFilter() bool { return in.fromRuntimeFilter }

func (in *InExpr) String() string {
	vals := make([]string, 0, len(in.values))
	for _, v := range in.values {
		vals = append(vals, v.String())
	}
	if in.nullInSet {
		vals = append(vals, "NULL")
	}
	op := "IN"
	if in.notIn {
		op = "NOT IN"
	}

	return fmt.Sprintf("%s %s (%s)", in.col, op, strings.Join(vals, ", "))
}

// IsNullExpr is an explicit null test over a single expression.
type IsNullExpr struct {
	child   Expr
	notNull bool
}

func NewIsNull(child Expr) *IsNullExpr    { return &IsNullExpr{child: child} }
func NewIsNotNull(child Expr) *IsNullExpr { return &IsNullExpr{child: child, notNull: true} }

func (n *IsNullExpr) Op() Operation {
	if n.notNull {
		return OpNotNull
	}

	return OpIsNull
}

func (n *IsNullExpr) Type() TypeDescriptor { return TypeOf(TypeBoolean) }
func (n *IsNullExpr) Children() []Expr     { return []Expr{n.child} }
func (n *IsNullExpr) Constant() bool       { return n.child.Constant() }
func (n *IsNullExpr) Child() Expr          { return n.child }
func (n *IsNullExpr) NotNull() bool        { return n.notNull }

func (n *IsNullExpr) String() string {
	if n.notNull {
		return fmt.Sprintf("%s IS NOT NULL", n.child)
	}

	return fmt.Sprintf("%s IS NULL", n.child)
}

// CompoundExpr combines child predicates with AND or OR.
type CompoundExpr struct {
	op       Operation
	children []Expr
}

func NewAnd(children ...Expr) *CompoundExpr {
	return newCompound(OpAnd, children)
}

func NewOr(children ...Expr) *CompoundExpr {
	return newCompound(OpOr, children)
}

func newCompound(op Operation, children []Expr) *CompoundExpr {
	if len(children) < 2 {
		panic(errors.Wrapf(ErrInvalidArgument, "compound %s requires at least two children", op))
	}
	for _, c := range children {
		if c == nil {
			panic(errors.Wrapf(ErrInvalidArgument, "compound %s with nil child", op))
		}
	}

	return &CompoundExpr{op: op, children: children}
}

func (c *CompoundExpr) Op() Operation        { return c.op }
func (c *CompoundExpr) Type() TypeDescriptor { return TypeOf(TypeBoolean) }
func (c *CompoundExpr) Children() []Expr     { return c.children }

func (c *CompoundExpr) Constant() bool {
	for _, child := range c.children {
		if !child.Constant() {
			return false
		}
	}

	return true
}

func (c *CompoundExpr) String() string {
	parts := make([]string, 0, len(c.children))
	for _, child := range c.children {
		parts = append(parts, child.String())
	}
	sep := " AND "
	if c.op == OpOr {
		sep = " OR "
	}

	return "(" + strings.Join(parts, sep) + ")"
}
