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

import "github.com/cockroachdb/errors"

// ExprContext is an expression prepared for evaluation. The generic
// row-level evaluator lives outside this module; the context only
// validates the tree and folds constants.
type ExprContext struct {
	root     Expr
	prepared bool
}

func NewExprContext(root Expr) *ExprContext {
	if root == nil {
		panic(errors.Wrap(ErrInvalidArgument, "cannot create expression context with nil root"))
	}

	return &ExprContext{root: root}
}

func (c *ExprContext) Root() Expr     { return c.root }
func (c *ExprContext) Prepared() bool { return c.prepared }

// Prepare validates the expression tree. It is idempotent.
func (c *ExprContext) Prepare() error {
	if c.prepared {
		return nil
	}
	if err := validateExpr(c.root); err != nil {
		return err
	}
	c.prepared = true

	return nil
}

// EvalConst folds the root expression, which must be constant. The
// second return reports a NULL result.
func (c *ExprContext) EvalConst() (Literal, bool, error) {
	if !c.prepared {
		return nil, false, errors.Wrap(ErrInvalidArgument, "expression context not prepared")
	}

	return FoldConstant(c.root)
}

func validateExpr(e Expr) error {
	if e == nil {
		return errors.Wrap(ErrInvalidArgument, "nil expression node")
	}
	for _, child := range e.Children() {
		if err := validateExpr(child); err != nil {
			return err
		}
	}

	return nil
}

// ExprContainer is a uniform read-only view over either a raw, unopened
// expression or an already prepared expression-with-context, so the
// builder tree can treat both as interchangeable leaves.
type ExprContainer interface {
	Root() Expr
	Context() (*ExprContext, error)
}

// RawExpr holds an expression that has not been prepared yet; Context
// prepares a fresh one on demand.
type RawExpr struct {
	expr Expr
}

func NewRawExpr(e Expr) RawExpr { return RawExpr{expr: e} }

func (r RawExpr) Root() Expr { return r.expr }

func (r RawExpr) Context() (*ExprContext, error) {
	ctx := NewExprContext(r.expr)
	if err := ctx.Prepare(); err != nil {
		return nil, err
	}

	return ctx, nil
}

// PreparedExpr wraps an expression context that was prepared by the
// caller.
type PreparedExpr struct {
	ctx *ExprContext
}

func NewPreparedExpr(ctx *ExprContext) PreparedExpr { return PreparedExpr{ctx: ctx} }

func (p PreparedExpr) Root() Expr { return p.ctx.Root() }

func (p PreparedExpr) Context() (*ExprContext, error) { return p.ctx, nil }

// ContainRaw wraps raw expressions for use as builder leaves.
func ContainRaw(exprs []Expr) []ExprContainer {
	out := make([]ExprContainer, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, NewRawExpr(e))
	}

	return out
}

// ContainPrepared wraps prepared contexts for use as builder leaves.
func ContainPrepared(ctxs []*ExprContext) []ExprContainer {
	out := make([]ExprContainer, 0, len(ctxs))
	for _, ctx := range ctxs {
		out = append(out, NewPreparedExpr(ctx))
	}

	return out
}

// FoldConstant evaluates a constant expression with SQL three-valued
// logic. The bool return reports a NULL result, in which case the
// literal is nil.
func FoldConstant(e Expr) (Literal, bool, error) {
	if !e.Constant() {
		return nil, false, errors.Wrapf(ErrNotConstant, "%s", e)
	}

	switch t := e.(type) {
	case *ConstExpr:
		return t.lit, t.null, nil

	case *CastExpr:
		lit, null, err := FoldConstant(t.child)
		if err != nil || null {
			return nil, null, err
		}
		out, err := lit.To(t.typ)
		if err != nil {
			return nil, false, err
		}

		return out, false, nil

	case *BinaryExpr:
		l, lnull, err := FoldConstant(t.left)
		if err != nil {
			return nil, false, err
		}
		r, rnull, err := FoldConstant(t.right)
		if err != nil {
			return nil, false, err
		}
		if lnull || rnull {
			return nil, true, nil
		}
		c, err := CompareLiterals(l, r)
		if err != nil {
			return nil, false, err
		}

		return BoolLiteral(compareSatisfies(t.op, c)), false, nil

	case *InExpr:
		lit, null, err := FoldConstant(t.col)
		if err != nil || null {
			return nil, true, err
		}
		found := false
		for _, v := range t.values {
			c, err := CompareLiterals(lit, v)
			if err != nil {
				continue
			}
			if c == 0 {
				found = true

				break
			}
		}
		if !found && t.nullInSet {
			return nil, true, nil
		}

		return BoolLiteral(found != t.notIn), false, nil

	case *IsNullExpr:
		_, null, err := FoldConstant(t.child)
		if err != nil {
			return nil, false, err
		}

		return BoolLiteral(null != t.notNull), false, nil

	case *CompoundExpr:
		return foldCompound(t)
	}

	return nil, false, errors.Wrapf(ErrInvalidArgument, "cannot fold %s", e)
}

func foldCompound(e *CompoundExpr) (Literal, bool, error) {
	// AND: false dominates NULL; OR: true dominates NULL.
	sawNull := false
	for _, child := range e.children {
		lit, null, err := FoldConstant(child)
		if err != nil {
			return nil, false, err
		}
		if null {
			sawNull = true

			continue
		}
		b, ok := lit.(BoolLiteral)
		if !ok {
			return nil, false, errors.Wrapf(ErrType, "compound child %s is not boolean", child)
		}
		if e.op == OpAnd && !bool(b) {
			return BoolLiteral(false), false, nil
		}
		if e.op == OpOr && bool(b) {
			return BoolLiteral(true), false, nil
		}
	}
	if sawNull {
		return nil, true, nil
	}

	return BoolLiteral(e.op == OpAnd), false, nil
}

func compareSatisfies(op Operation, c int) bool {
	switch op {
	case OpEQ:
		return c == 0
	case OpNE:
		return c != 0
	case OpLT:
		return c < 0
	case OpLE:
		return c <= 0
	case OpGT:
		return c > 0
	case OpGE:
		return c >= 0
	}
	panic("not a comparison operation: " + op.String())
}

// CompareLiterals casts b to a's type and compares. Returns ErrBadCast
// when the types have no common representation.
func CompareLiterals(a, b Literal) (int, error) {
	rhs, err := b.To(a.Type())
	if err != nil {
		return 0, err
	}

	switch l := a.(type) {
	case BoolLiteral:
		return l.Comparator()(l.Value(), rhs.(BoolLiteral).Value()), nil
	case Int32Literal:
		return l.Comparator()(l.Value(), rhs.(Int32Literal).Value()), nil
	case Int64Literal:
		return l.Comparator()(l.Value(), rhs.(Int64Literal).Value()), nil
	case StringLiteral:
		return l.Comparator()(l.Value(), rhs.(StringLiteral).Value()), nil
	case DateLiteral:
		return l.Comparator()(Date(l), Date(rhs.(DateLiteral))), nil
	case DateTimeLiteral:
		return l.Comparator()(DateTime(l), DateTime(rhs.(DateTimeLiteral))), nil
	case DecimalLiteral:
		return l.Comparator()(Decimal(l), Decimal(rhs.(DecimalLiteral))), nil
	}

	return 0, errors.Wrapf(ErrType, "cannot compare %s", a.Type())
}
