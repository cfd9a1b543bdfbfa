package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "basket-trader/internal/errors"
	"basket-trader/internal/models"
)

func TestAddConstituent(t *testing.T) {
	t.Run("first constituent gets full weight", func(t *testing.T) {
		b, err := AddConstituent(testBasket(), models.Constituent{Symbol: "RELIANCE", Exchange: models.NSE})
		require.NoError(t, err)
		require.Len(t, b.Constituents, 1)
		assertWeight(t, "100", b.Constituents[0].WeightPercent)
	})

	t.Run("second constituent splits evenly", func(t *testing.T) {
		b := testBasket("100")
		b, err := AddConstituent(b, models.Constituent{Symbol: "INFY", Exchange: models.NSE})
		require.NoError(t, err)
		require.Len(t, b.Constituents, 2)
		assertWeight(t, "50", b.Constituents[0].WeightPercent)
		assertWeight(t, "50", b.Constituents[1].WeightPercent)
	})

	t.Run("third constituent rescales and sums to 100", func(t *testing.T) {
		b := testBasket("50", "50")
		b, err := AddConstituent(b, models.Constituent{Symbol: "TCS", Exchange: models.NSE})
		require.NoError(t, err)
		require.Len(t, b.Constituents, 3)
		// new = 33.33, existing scaled by 0.6667 -> 33.34 after residual fix
		assertWeight(t, "33.33", b.Constituents[2].WeightPercent)
		assertDecimal(t, "100", b.TotalWeight())
		require.NoError(t, ValidateWeights(b))
	})

	t.Run("rejects twenty-first constituent", func(t *testing.T) {
		b := testBasket()
		var err error
		for i := 0; i < MaxConstituents; i++ {
			b, err = AddConstituent(b, models.Constituent{Symbol: string(rune('A' + i)), Exchange: models.NSE})
			require.NoError(t, err)
		}
		before := b.Clone()
		_, err = AddConstituent(b, models.Constituent{Symbol: "ONEMORE", Exchange: models.NSE})
		assert.ErrorIs(t, err, errs.ErrTooManyConstituents)
		assert.Equal(t, before.Constituents, b.Constituents, "basket must be unchanged on rejection")
	})

	t.Run("rejects duplicate instrument", func(t *testing.T) {
		b := testBasket("100")
		_, err := AddConstituent(b, models.Constituent{Symbol: "S1", Exchange: models.NSE})
		assert.ErrorIs(t, err, errs.ErrConstituentExists)
	})
}

func TestRemoveConstituent(t *testing.T) {
	t.Run("remove from equal four-stock basket", func(t *testing.T) {
		b := testBasket("25", "25", "25", "25")
		b, err := RemoveConstituent(b, 3)
		require.NoError(t, err)
		require.Len(t, b.Constituents, 3)
		// 25 * 100/75 = 33.33 each; first absorbs the 0.01 residual.
		assertWeight(t, "33.34", b.Constituents[0].WeightPercent)
		assertWeight(t, "33.33", b.Constituents[1].WeightPercent)
		assertWeight(t, "33.33", b.Constituents[2].WeightPercent)
		assertDecimal(t, "100", b.TotalWeight())
	})

	t.Run("remove to empty is valid", func(t *testing.T) {
		b := testBasket("100")
		b, err := RemoveConstituent(b, 0)
		require.NoError(t, err)
		assert.Empty(t, b.Constituents)
		assert.NoError(t, ValidateWeights(b))
	})

	t.Run("remaining constituent takes full weight", func(t *testing.T) {
		b := testBasket("60", "40")
		b, err := RemoveConstituent(b, 1)
		require.NoError(t, err)
		require.Len(t, b.Constituents, 1)
		assertWeight(t, "100", b.Constituents[0].WeightPercent)
	})

	t.Run("out of range index rejected", func(t *testing.T) {
		b := testBasket("50", "50")
		_, err := RemoveConstituent(b, 2)
		assert.ErrorIs(t, err, errs.ErrIndexOutOfRange)
		_, err = RemoveConstituent(b, -1)
		assert.ErrorIs(t, err, errs.ErrIndexOutOfRange)
	})
}

func TestAdjustWeight(t *testing.T) {
	t.Run("proportional redistribution", func(t *testing.T) {
		b := testBasket("40", "30", "30")
		b, err := AdjustWeight(b, 0, dw("50"))
		require.NoError(t, err)
		// The -10 delta splits 5/5 across the two equal others.
		assertWeight(t, "50", b.Constituents[0].WeightPercent)
		assertWeight(t, "25", b.Constituents[1].WeightPercent)
		assertWeight(t, "25", b.Constituents[2].WeightPercent)
		assertDecimal(t, "100", b.TotalWeight())
	})

	t.Run("unequal others redistribute by share", func(t *testing.T) {
		b := testBasket("20", "60", "20")
		b, err := AdjustWeight(b, 0, dw("40"))
		require.NoError(t, err)
		// -20 split 15 (60/80) and 5 (20/80).
		assertWeight(t, "40", b.Constituents[0].WeightPercent)
		assertWeight(t, "45", b.Constituents[1].WeightPercent)
		assertWeight(t, "15", b.Constituents[2].WeightPercent)
		assertDecimal(t, "100", b.TotalWeight())
	})

	t.Run("clamped to reserve minimum for others", func(t *testing.T) {
		b := testBasket("40", "30", "30")
		b, err := AdjustWeight(b, 0, dw("120"))
		require.NoError(t, err)
		// Max is 100 - 0.5*2 = 99; others floored at 0.5.
		assertWeight(t, "99", b.Constituents[0].WeightPercent)
		assertWeight(t, "0.5", b.Constituents[1].WeightPercent)
		assertWeight(t, "0.5", b.Constituents[2].WeightPercent)
		assertDecimal(t, "100", b.TotalWeight())
	})

	t.Run("clamped below to minimum weight", func(t *testing.T) {
		b := testBasket("40", "30", "30")
		b, err := AdjustWeight(b, 0, dw("0.1"))
		require.NoError(t, err)
		assertWeight(t, "0.5", b.Constituents[0].WeightPercent)
		assertDecimal(t, "100", b.TotalWeight())
		require.NoError(t, ValidateWeights(b))
	})

	t.Run("single constituent pinned at 100", func(t *testing.T) {
		b := testBasket("100")
		b, err := AdjustWeight(b, 0, dw("40"))
		require.NoError(t, err)
		assertWeight(t, "100", b.Constituents[0].WeightPercent)
	})

	t.Run("empty basket rejected", func(t *testing.T) {
		_, err := AdjustWeight(testBasket(), 0, dw("50"))
		assert.ErrorIs(t, err, errs.ErrBasketEmpty)
	})
}

func TestApplyEqualWeights(t *testing.T) {
	t.Run("last constituent absorbs residual", func(t *testing.T) {
		b := testBasket("50", "30", "20")
		b, err := ApplyEqualWeights(b)
		require.NoError(t, err)
		assertWeight(t, "33.33", b.Constituents[0].WeightPercent)
		assertWeight(t, "33.33", b.Constituents[1].WeightPercent)
		assertWeight(t, "33.34", b.Constituents[2].WeightPercent)
		assertDecimal(t, "100", b.TotalWeight())
	})

	t.Run("exact division leaves no residual", func(t *testing.T) {
		b := testBasket("70", "10", "10", "10")
		b, err := ApplyEqualWeights(b)
		require.NoError(t, err)
		for _, c := range b.Constituents {
			assertWeight(t, "25", c.WeightPercent)
		}
	})
}

func TestValidateWeights(t *testing.T) {
	tests := []struct {
		name    string
		basket  models.Basket
		wantErr error
	}{
		{"valid equal basket", testBasket("33.34", "33.33", "33.33"), nil},
		{"empty basket is a valid draft", testBasket(), nil},
		{"sum drift beyond tolerance", testBasket("50", "49.5"), errs.ErrWeightSumInvalid},
		{"sum within tolerance", testBasket("50", "49.99"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWeights(tt.basket)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("weight below floor rejected", func(t *testing.T) {
		b := testBasket("99.7", "0.3")
		var verr *errs.ValidationError
		assert.ErrorAs(t, ValidateWeights(b), &verr)
	})
}
