package pricing

import (
	"errors"
	"testing"

	"github.com/kajiya-works/kajiya/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCalculator(t *testing.T) {
	t.Run("DefaultsWhenNil", func(t *testing.T) {
		calc, err := NewCalculator(nil, nil)
		require.NoError(t, err)
		require.NotNil(t, calc)
	})

	t.Run("NegativeMarkupRejected", func(t *testing.T) {
		markups := MarkupTable{
			models.LeadTierEconomy:   0.20,
			models.LeadTierStandard:  -0.10,
			models.LeadTierExpedited: 0.30,
		}
		calc, err := NewCalculator(markups, nil)
		assert.Error(t, err)
		assert.Nil(t, calc)
	})

	t.Run("ZeroMarkupAllowed", func(t *testing.T) {
		markups := MarkupTable{models.LeadTierStandard: 0}
		calc, err := NewCalculator(markups, nil)
		require.NoError(t, err)
		require.NotNil(t, calc)
	})
}

func TestComputeLeadOption(t *testing.T) {
	calc, err := NewCalculator(nil, nil)
	require.NoError(t, err)

	t.Run("MarkupRelation", func(t *testing.T) {
		option, err := calc.ComputeLeadOption(machinablePart(10), models.LeadTierStandard)
		require.NoError(t, err)

		assert.Equal(t, models.LeadTierStandard, option.Tier)
		assert.Equal(t, "Most Popular", option.Badge)
		assert.Greater(t, option.UnitPrice, 0.0)
		assert.InDelta(t, option.UnitPrice*1.25, option.MarketingPrice, 0.1)
		assert.InDelta(t, option.MarketingPrice-option.UnitPrice, option.Savings, 0.1)
	})

	t.Run("InvalidQuantity", func(t *testing.T) {
		_, err := calc.ComputeLeadOption(machinablePart(0), models.LeadTierStandard)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})

	t.Run("UnknownTier", func(t *testing.T) {
		_, err := calc.ComputeLeadOption(machinablePart(1), models.LeadTier("overnight"))
		assert.ErrorIs(t, err, ErrUnknownTier)
	})

	t.Run("TierOutsideMarkupTable", func(t *testing.T) {
		partial, err := NewCalculator(MarkupTable{models.LeadTierStandard: 0.25}, nil)
		require.NoError(t, err)

		_, err = partial.ComputeLeadOption(machinablePart(1), models.LeadTierEconomy)
		assert.ErrorIs(t, err, ErrUnknownTier)
	})

	t.Run("NegativeBasePriceIsDefect", func(t *testing.T) {
		broken, err := NewCalculator(nil, func(part Part, tier models.LeadTier) (float64, int, error) {
			return -100, 7, nil
		})
		require.NoError(t, err)

		_, err = broken.ComputeLeadOption(machinablePart(1), models.LeadTierStandard)
		assert.ErrorIs(t, err, ErrNegativeBasePrice)
	})

	t.Run("BaseErrorPropagates", func(t *testing.T) {
		sentinel := errors.New("analysis unavailable")
		failing, err := NewCalculator(nil, func(part Part, tier models.LeadTier) (float64, int, error) {
			return 0, 0, sentinel
		})
		require.NoError(t, err)

		_, err = failing.ComputeLeadOption(machinablePart(1), models.LeadTierStandard)
		assert.ErrorIs(t, err, sentinel)
	})
}

func TestComputeLeadOptions(t *testing.T) {
	calc, err := NewCalculator(nil, nil)
	require.NoError(t, err)

	options, err := calc.ComputeLeadOptions(machinablePart(10))
	require.NoError(t, err)
	require.Len(t, options, 3)

	// Fixed display order regardless of price
	assert.Equal(t, models.LeadTierEconomy, options[0].Tier)
	assert.Equal(t, models.LeadTierStandard, options[1].Tier)
	assert.Equal(t, models.LeadTierExpedited, options[2].Tier)

	assert.Equal(t, "Best Value", options[0].Badge)
	assert.Equal(t, "Fastest", options[2].Badge)

	// Higher tiers carry higher uplift over the same base price
	assert.Less(t, options[0].MarketingPrice, options[1].MarketingPrice)
	assert.Less(t, options[1].MarketingPrice, options[2].MarketingPrice)

	// Faster tiers promise shorter lead times
	assert.Greater(t, options[0].LeadTimeDays, options[2].LeadTimeDays)
}
