// Package engine implements the portfolio allocation and rebalancing
// engine. Every function is pure and stateless: it reads immutable
// inputs, performs deterministic arithmetic, and returns new values.
// Missing prices are skipped, never fatal; identical inputs always
// produce identical outputs.
package engine

import (
	"github.com/shopspring/decimal"

	errs "basket-trader/internal/errors"
	"basket-trader/internal/models"
)

// MaxConstituents is the maximum number of stocks a basket may hold.
const MaxConstituents = 20

var (
	hundred = decimal.NewFromInt(100)

	// MinWeightPercent is the smallest weight any constituent may carry.
	MinWeightPercent = decimal.RequireFromString("0.5")

	// WeightTolerance is the allowed deviation of the weight sum from 100.
	WeightTolerance = decimal.RequireFromString("0.01")
)

// AddConstituent adds a constituent to the basket. The new entry gets
// weight 100/(n+1) and existing weights are rescaled by (100-new)/100;
// the rounding residual is assigned to the first constituent so the sum
// stays at 100. The input basket is unchanged on failure.
func AddConstituent(b models.Basket, c models.Constituent) (models.Basket, error) {
	if len(b.Constituents) >= MaxConstituents {
		return b, errs.ErrTooManyConstituents
	}
	for _, existing := range b.Constituents {
		if existing.Instrument() == c.Instrument() {
			return b, errs.ErrConstituentExists
		}
	}

	out := b.Clone()
	n := int64(len(out.Constituents))
	newWeight := hundred.Div(decimal.NewFromInt(n + 1)).Round(2)

	scale := hundred.Sub(newWeight).Div(hundred)
	for i := range out.Constituents {
		w := out.Constituents[i].WeightPercent.Mul(scale).Round(2)
		if w.LessThan(MinWeightPercent) {
			w = MinWeightPercent
		}
		out.Constituents[i].WeightPercent = w
	}

	c.WeightPercent = newWeight
	out.Constituents = append(out.Constituents, c)
	assignResidualToFirst(&out)
	return out, nil
}

// RemoveConstituent removes the constituent at index and rescales the
// remaining weights back to a 100 total, assigning the rounding residual
// to the first constituent. An empty basket is a valid result; callers
// must block order submission on it.
func RemoveConstituent(b models.Basket, index int) (models.Basket, error) {
	if index < 0 || index >= len(b.Constituents) {
		return b, errs.ErrIndexOutOfRange
	}

	out := b.Clone()
	out.Constituents = append(out.Constituents[:index], out.Constituents[index+1:]...)
	if len(out.Constituents) == 0 {
		return out, nil
	}

	total := out.TotalWeight()
	if total.IsPositive() {
		factor := hundred.Div(total)
		for i := range out.Constituents {
			w := out.Constituents[i].WeightPercent.Mul(factor).Round(2)
			if w.LessThan(MinWeightPercent) {
				w = MinWeightPercent
			}
			out.Constituents[i].WeightPercent = w
		}
	}
	assignResidualToFirst(&out)
	return out, nil
}

// AdjustWeight sets the constituent at index to the requested weight and
// redistributes the difference across the others, proportionally to
// their share of the non-target total. The request is clamped so every
// other constituent keeps at least 0.5%; the residual after rounding is
// assigned to the largest-weight constituent. A single-constituent
// basket is always pinned at 100.
func AdjustWeight(b models.Basket, index int, weight decimal.Decimal) (models.Basket, error) {
	n := len(b.Constituents)
	if n == 0 {
		return b, errs.ErrBasketEmpty
	}
	if index < 0 || index >= n {
		return b, errs.ErrIndexOutOfRange
	}

	out := b.Clone()
	if n == 1 {
		out.Constituents[0].WeightPercent = hundred
		return out, nil
	}

	// Reserve the 0.5% minimum for every other constituent.
	maxWeight := hundred.Sub(MinWeightPercent.Mul(decimal.NewFromInt(int64(n - 1))))
	if weight.LessThan(MinWeightPercent) {
		weight = MinWeightPercent
	}
	if weight.GreaterThan(maxWeight) {
		weight = maxWeight
	}
	weight = weight.Round(2)

	old := out.Constituents[index].WeightPercent
	delta := weight.Sub(old)

	othersTotal := decimal.Zero
	for i, c := range out.Constituents {
		if i != index {
			othersTotal = othersTotal.Add(c.WeightPercent)
		}
	}

	equalShare := hundred.Sub(weight).Div(decimal.NewFromInt(int64(n - 1))).Round(2)
	for i := range out.Constituents {
		if i == index {
			continue
		}
		var w decimal.Decimal
		if othersTotal.IsPositive() {
			share := out.Constituents[i].WeightPercent.Div(othersTotal)
			w = out.Constituents[i].WeightPercent.Sub(delta.Mul(share)).Round(2)
		} else {
			w = equalShare
		}
		if w.LessThan(MinWeightPercent) {
			w = MinWeightPercent
		}
		out.Constituents[i].WeightPercent = w
	}
	out.Constituents[index].WeightPercent = weight

	assignResidualToLargest(&out)
	return out, nil
}

// ApplyEqualWeights assigns every constituent 100/n rounded to two
// decimals, with the last constituent absorbing the rounding residual.
func ApplyEqualWeights(b models.Basket) (models.Basket, error) {
	n := len(b.Constituents)
	if n == 0 {
		return b, errs.ErrBasketEmpty
	}

	out := b.Clone()
	equal := hundred.Div(decimal.NewFromInt(int64(n))).Round(2)
	for i := range out.Constituents {
		out.Constituents[i].WeightPercent = equal
	}
	residual := hundred.Sub(out.TotalWeight())
	last := &out.Constituents[n-1]
	last.WeightPercent = last.WeightPercent.Add(residual)
	return out, nil
}

// ValidateWeights checks the basket weight invariant: at most 20
// constituents, every weight within [0.5, 100], and the sum within 0.01
// of 100. An empty basket is a valid draft state.
func ValidateWeights(b models.Basket) error {
	if len(b.Constituents) > MaxConstituents {
		return errs.ErrTooManyConstituents
	}
	if len(b.Constituents) == 0 {
		return nil
	}
	for _, c := range b.Constituents {
		if c.WeightPercent.LessThan(MinWeightPercent) || c.WeightPercent.GreaterThan(hundred) {
			return errs.NewValidationError("weight", c.WeightPercent.String(),
				"constituent weight must be between 0.5 and 100")
		}
	}
	diff := hundred.Sub(b.TotalWeight()).Abs()
	if diff.GreaterThan(WeightTolerance) {
		return errs.ErrWeightSumInvalid
	}
	return nil
}

// assignResidualToFirst adds whatever separates the weight sum from 100
// to the first constituent. When that would push the first constituent
// below the 0.5% floor, the residual goes to the largest instead.
func assignResidualToFirst(b *models.Basket) {
	if len(b.Constituents) == 0 {
		return
	}
	residual := hundred.Sub(b.TotalWeight())
	if residual.IsZero() {
		return
	}
	first := &b.Constituents[0]
	if adjusted := first.WeightPercent.Add(residual); !adjusted.LessThan(MinWeightPercent) {
		first.WeightPercent = adjusted
		return
	}
	assignResidualToLargest(b)
}

// assignResidualToLargest adds the residual to the largest-weight
// constituent, ties broken by first occurrence.
func assignResidualToLargest(b *models.Basket) {
	if len(b.Constituents) == 0 {
		return
	}
	residual := hundred.Sub(b.TotalWeight())
	if residual.IsZero() {
		return
	}
	largest := 0
	for i, c := range b.Constituents {
		if c.WeightPercent.GreaterThan(b.Constituents[largest].WeightPercent) {
			largest = i
		}
	}
	target := &b.Constituents[largest]
	target.WeightPercent = target.WeightPercent.Add(residual)
}
