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
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/basaltdb/basalt-go"
)

// Options configures one scan preparation. Caps are contract values
// from the session, not tunables the engine second-guesses; a
// non-positive cap is a programming error.
type Options struct {
	Schema     *basalt.Schema
	Conjuncts  []*basalt.ExprContext
	KeyColumns []string

	// MaxPushdownConditionsPerColumn caps the cardinality of a pushed
	// IN or NOT-IN list; larger lists stay residual.
	MaxPushdownConditionsPerColumn int
	// MaxScanKeyCount caps the cartesian expansion of scan key ranges.
	MaxScanKeyCount int
	// ScanKeysUnlimited disables the expansion cap check and allows
	// converting closed bounds into enumerated key values.
	ScanKeysUnlimited bool
	// SingleKeyExpansion allows key extension with only one
	// constrained key column, for point lookups.
	SingleKeyExpansion bool
	// EnableColumnExprPushdown hands single-slot residuals to the
	// predicate parser as column expression predicates.
	EnableColumnExprPushdown bool

	RuntimeFilters []RuntimeFilterDescriptor
	FilterRegistry *RuntimeFilterRegistry
	GlobalDicts    map[basalt.SlotID]*GlobalDict

	Logger *zap.Logger
}

func (o *Options) validate() error {
	if o.Schema == nil {
		return errors.Wrap(basalt.ErrInvalidArgument, "schema is required")
	}
	if o.MaxPushdownConditionsPerColumn <= 0 {
		return errors.Wrap(basalt.ErrInvalidArgument, "max pushdown conditions per column must be positive")
	}
	if o.MaxScanKeyCount <= 0 {
		return errors.Wrap(basalt.ErrInvalidArgument, "max scan key count must be positive")
	}
	for _, col := range o.KeyColumns {
		if _, ok := o.Schema.FindByName(col); !ok {
			return errors.Wrapf(basalt.ErrInvalidArgument, "key column %s is not in the schema", col)
		}
	}
	if len(o.RuntimeFilters) > 0 && o.FilterRegistry == nil {
		return errors.Wrap(basalt.ErrInvalidArgument, "runtime filter descriptors require a registry")
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	return nil
}

// Result holds the pushdown artifacts of one preparation. When NoRows
// is set the scan is provably empty and every other field is zero; an
// empty KeyRanges with NoRows unset means one implicit full-range scan.
type Result struct {
	NoRows bool

	Conditions     []Condition
	NullConditions []NullCondition
	KeyRanges      []ScanKeyRange
	Residual       []*basalt.ExprContext
	Unarrived      []UnarrivedRuntimeFilter
}

// ConjunctsManager drives scan preparation: it folds the constant
// conjuncts, owns the root AND builder, and assembles the artifacts the
// scan driver and the native predicate layer consume. One manager
// prepares one scan; it is not safe for concurrent use.
type ConjunctsManager struct {
	opts Options
	root *predicateBuilder
}

func NewConjunctsManager(opts Options) (*ConjunctsManager, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	return &ConjunctsManager{opts: opts}, nil
}

// Prepare normalizes the conjunct list and derives the pushdown
// artifacts. The no-rows short circuit is reported through
// Result.NoRows, never as an error.
func (m *ConjunctsManager) Prepare(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	remaining, noRows, err := m.evalConstConjuncts()
	if err != nil {
		return nil, err
	}
	if noRows {
		m.opts.Logger.Debug("constant conjunct short circuit")

		return &Result{NoRows: true}, nil
	}

	root := newPredicateBuilder(&m.opts, CompoundAnd, true, basalt.ContainPrepared(remaining))
	if _, err := root.parseConjuncts(); err != nil {
		if errors.Is(err, ErrNoRows) {
			m.opts.Logger.Debug("normalization short circuit", zap.Error(err))

			return &Result{NoRows: true}, nil
		}

		return nil, err
	}
	m.root = root

	res := &Result{
		Conditions:     root.conditions,
		NullConditions: root.nullConditions,
		KeyRanges:      extendScanKeys(&m.opts, root.ranges),
		Unarrived:      root.unarrived,
	}
	res.Residual, err = root.residuals()
	if err != nil {
		return nil, err
	}

	m.opts.Logger.Debug("scan preparation done",
		zap.Int("conditions", len(res.Conditions)),
		zap.Int("null_conditions", len(res.NullConditions)),
		zap.Int("key_ranges", len(res.KeyRanges)),
		zap.Int("residual", len(res.Residual)),
		zap.Int("unarrived_filters", len(res.Unarrived)))

	return res, nil
}

// evalConstConjuncts folds the conjuncts that reference no slot. A
// constant conjunct evaluating to false or NULL empties the scan; one
// evaluating to true is dropped from normalization.
func (m *ConjunctsManager) evalConstConjuncts() (remaining []*basalt.ExprContext, noRows bool, err error) {
	remaining = make([]*basalt.ExprContext, 0, len(m.opts.Conjuncts))
	for _, cj := range m.opts.Conjuncts {
		if err := cj.Prepare(); err != nil {
			return nil, false, err
		}
		if !cj.Root().Constant() {
			remaining = append(remaining, cj)

			continue
		}
		lit, null, err := cj.EvalConst()
		if err != nil {
			return nil, false, err
		}
		if null {
			return nil, true, nil
		}
		b, ok := lit.(basalt.BoolLiteral)
		if !ok {
			return nil, false, errors.Wrapf(basalt.ErrType, "conjunct %s is not boolean", cj.Root())
		}
		if !bool(b) {
			return nil, true, nil
		}
	}

	return remaining, false, nil
}

// PredicateTree compiles the normalized artifacts into an AND/OR tree
// of parsed column predicates. Parser rejection of a well-formed
// condition is a hard error, not a fallback to residual evaluation.
func (m *ConjunctsManager) PredicateTree(parser PredicateParser) (*PredicateTree, error) {
	if m.root == nil {
		return nil, errors.Wrap(basalt.ErrInvalidArgument, "scan has not been prepared")
	}

	return m.root.compile(parser)
}

// RangePruner returns a pruner over the filters that had not arrived
// during Prepare, for deferred re-normalization.
func (m *ConjunctsManager) RangePruner() *RuntimeRangePruner {
	if m.root == nil {
		return NewRuntimeRangePruner(nil, m.opts.GlobalDicts)
	}

	return NewRuntimeRangePruner(m.root.unarrived, m.opts.GlobalDicts)
}
