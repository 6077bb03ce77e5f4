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

	"github.com/basaltdb/basalt-go"
)

// FilterOp is the closed set of operators a native filter condition can
// carry.
type FilterOp int8

const (
	FilterIn FilterOp = iota
	FilterNotIn
	FilterGT
	FilterGE
	FilterLT
	FilterLE
)

var filterOpNames = [...]string{"in", "not in", ">", ">=", "<", "<="}

func (op FilterOp) String() string {
	if int(op) < len(filterOpNames) {
		return filterOpNames[op]
	}

	return fmt.Sprintf("FilterOp(%d)", int8(op))
}

// Condition is one native filter condition consumable by the external
// predicate-parsing collaborator: a column, an operator and serialized
// operands. IndexFilterOnly marks conditions that exist purely to drive
// index pruning with no row-level recheck required.
type Condition struct {
	Column          string
	Op              FilterOp
	Values          []string
	IndexFilterOnly bool
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s (%s)", c.Column, c.Op, strings.Join(c.Values, ", "))
}

// NullCondition is an explicit null test, kept apart from the range
// machinery since ranges do not represent nullability.
type NullCondition struct {
	Column string
	IsNull bool
}

func (c NullCondition) String() string {
	if c.IsNull {
		return c.Column + " is null"
	}

	return c.Column + " is not null"
}

// ColumnPredicate is an executable row-level predicate produced by the
// external predicate parser.
type ColumnPredicate interface {
	fmt.Stringer

	Column() string
}

// PredicateParser turns normalized conditions into executable column
// predicates. It lives in the native storage layer; rejection of a
// well-formed condition indicates an internal consistency bug and aborts
// scan preparation.
type PredicateParser interface {
	ParseCondition(Condition) (ColumnPredicate, error)
	ParseNullCondition(NullCondition) (ColumnPredicate, error)
	ParseExprContext(slot basalt.SlotDescriptor, ctx *basalt.ExprContext) (ColumnPredicate, error)
}

// PredicateTree is the compiled AND/OR tree of column predicates handed
// to the vectorized row-level evaluator.
type PredicateTree struct {
	op       basalt.Operation
	preds    []ColumnPredicate
	children []*PredicateTree
}

func (t *PredicateTree) Op() basalt.Operation          { return t.op }
func (t *PredicateTree) Predicates() []ColumnPredicate { return t.preds }
func (t *PredicateTree) Children() []*PredicateTree    { return t.children }

// Empty reports whether the tree holds no predicates at any level.
func (t *PredicateTree) Empty() bool {
	if len(t.preds) > 0 {
		return false
	}
	for _, c := range t.children {
		if !c.Empty() {
			return false
		}
	}

	return true
}
