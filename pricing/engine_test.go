package pricing

import (
	"testing"
	"time"

	"github.com/kajiya-works/kajiya/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func machinablePart(quantity int) Part {
	return Part{
		Process:   ProcessCNCMilling,
		Material:  "aluminum-6061",
		Finish:    FinishAsMachined,
		Tolerance: ToleranceStandard,
		Quantity:  quantity,
		Geometry: models.Geometry{
			VolumeMm3:            42000,
			SurfaceAreaMm2:       18500,
			BBoxXMm:              120,
			BBoxYMm:              60,
			BBoxZMm:              25,
			MachiningTimeMinutes: 35,
			Complexity:           ComplexityModerate,
		},
	}
}

func TestComputeBreakdown(t *testing.T) {
	t.Run("ValidPart", func(t *testing.T) {
		breakdown, err := ComputeBreakdown(machinablePart(10), models.LeadTierStandard)
		require.NoError(t, err)

		assert.False(t, breakdown.RequiresManualQuote)
		assert.Greater(t, breakdown.MaterialCost, 0.0)
		assert.Greater(t, breakdown.MachiningCost, 0.0)
		assert.Greater(t, breakdown.SetupCost, 0.0)
		assert.Greater(t, breakdown.OverheadCost, 0.0)
		assert.Greater(t, breakdown.MarginCost, 0.0)
		assert.Greater(t, breakdown.UnitPrice, 0.0)
		assert.InDelta(t, breakdown.UnitPrice*10, breakdown.TotalPrice, 0.1)
		assert.GreaterOrEqual(t, breakdown.LeadTimeDays, 7)
	})

	t.Run("InvalidQuantity", func(t *testing.T) {
		_, err := ComputeBreakdown(machinablePart(0), models.LeadTierStandard)
		assert.ErrorIs(t, err, ErrInvalidQuantity)

		_, err = ComputeBreakdown(machinablePart(-3), models.LeadTierStandard)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})

	t.Run("UnknownTier", func(t *testing.T) {
		_, err := ComputeBreakdown(machinablePart(1), models.LeadTier("overnight"))
		assert.ErrorIs(t, err, ErrUnknownTier)
	})

	t.Run("UnknownProcess", func(t *testing.T) {
		part := machinablePart(1)
		part.Process = "laser-engraving"
		_, err := ComputeBreakdown(part, models.LeadTierStandard)
		assert.ErrorIs(t, err, ErrUnknownProcess)
	})

	t.Run("MaterialRateOverrideRaisesCost", func(t *testing.T) {
		catalog, err := ComputeBreakdown(machinablePart(10), models.LeadTierStandard)
		require.NoError(t, err)

		part := machinablePart(10)
		part.MaterialCostPerKg = Materials["aluminum-6061"].CostPerKg * 10
		live, err := ComputeBreakdown(part, models.LeadTierStandard)
		require.NoError(t, err)

		assert.InDelta(t, catalog.MaterialCost*10, live.MaterialCost, 0.5)
		assert.Greater(t, live.UnitPrice, catalog.UnitPrice)
	})

	t.Run("SetupAmortizedOverQuantity", func(t *testing.T) {
		single, err := ComputeBreakdown(machinablePart(1), models.LeadTierStandard)
		require.NoError(t, err)

		batch, err := ComputeBreakdown(machinablePart(100), models.LeadTierStandard)
		require.NoError(t, err)

		assert.Greater(t, single.SetupCost, batch.SetupCost)
		assert.Greater(t, batch.QuantityDiscount, single.QuantityDiscount)
		assert.Less(t, batch.UnitPrice, single.UnitPrice)
	})

	t.Run("TighterToleranceCostsMore", func(t *testing.T) {
		standard, err := ComputeBreakdown(machinablePart(5), models.LeadTierStandard)
		require.NoError(t, err)

		tight := machinablePart(5)
		tight.Tolerance = ToleranceTight
		tightBreakdown, err := ComputeBreakdown(tight, models.LeadTierStandard)
		require.NoError(t, err)

		assert.Greater(t, tightBreakdown.ToleranceUpcharge, standard.ToleranceUpcharge)
		assert.Greater(t, tightBreakdown.InspectionCost, standard.InspectionCost)
		assert.Greater(t, tightBreakdown.UnitPrice, standard.UnitPrice)
	})

	t.Run("HarderMaterialCostsMore", func(t *testing.T) {
		aluminum, err := ComputeBreakdown(machinablePart(5), models.LeadTierStandard)
		require.NoError(t, err)

		titanium := machinablePart(5)
		titanium.Material = "titanium-6al4v"
		titaniumBreakdown, err := ComputeBreakdown(titanium, models.LeadTierStandard)
		require.NoError(t, err)

		assert.Greater(t, titaniumBreakdown.MaterialCost, aluminum.MaterialCost)
		assert.Greater(t, titaniumBreakdown.MachiningCost, aluminum.MachiningCost)
	})

	t.Run("ExpeditedShipsFasterThanEconomy", func(t *testing.T) {
		economy, err := ComputeBreakdown(machinablePart(5), models.LeadTierEconomy)
		require.NoError(t, err)

		expedited, err := ComputeBreakdown(machinablePart(5), models.LeadTierExpedited)
		require.NoError(t, err)

		assert.Less(t, expedited.LeadTimeDays, economy.LeadTimeDays)
	})
}

func TestComputeBreakdownManualQuote(t *testing.T) {
	t.Run("PartTooSmall", func(t *testing.T) {
		part := machinablePart(1)
		part.Geometry.BBoxZMm = 0.2

		breakdown, err := ComputeBreakdown(part, models.LeadTierStandard)
		require.NoError(t, err)

		assert.True(t, breakdown.RequiresManualQuote)
		assert.Equal(t, "part too small for standard CNC (min 0.5mm)", breakdown.ManualQuoteReason)
		assert.Zero(t, breakdown.UnitPrice)
		assert.Equal(t, 7, breakdown.LeadTimeDays)
	})

	t.Run("PartExceedsEnvelope", func(t *testing.T) {
		part := machinablePart(1)
		part.Geometry.BBoxXMm = 900

		breakdown, err := ComputeBreakdown(part, models.LeadTierStandard)
		require.NoError(t, err)

		assert.True(t, breakdown.RequiresManualQuote)
		assert.Equal(t, "part exceeds CNC envelope (max 700mm)", breakdown.ManualQuoteReason)
	})

	t.Run("MachiningTimeOverCapacity", func(t *testing.T) {
		part := machinablePart(1)
		part.Geometry.MachiningTimeMinutes = 1500

		breakdown, err := ComputeBreakdown(part, models.LeadTierStandard)
		require.NoError(t, err)

		assert.True(t, breakdown.RequiresManualQuote)
		assert.Equal(t, "machining time exceeds standard production capacity", breakdown.ManualQuoteReason)
	})

	t.Run("ComplexGeometryInDifficultMaterial", func(t *testing.T) {
		part := machinablePart(1)
		part.Geometry.Complexity = ComplexityComplex
		part.Material = "titanium-6al4v"

		breakdown, err := ComputeBreakdown(part, models.LeadTierStandard)
		require.NoError(t, err)

		assert.True(t, breakdown.RequiresManualQuote)
		assert.Equal(t, "complex geometry with difficult-to-machine material", breakdown.ManualQuoteReason)
	})

	t.Run("BlockyPartRejectedForSheetMetal", func(t *testing.T) {
		part := machinablePart(1)
		part.Process = ProcessSheetMetal

		breakdown, err := ComputeBreakdown(part, models.LeadTierStandard)
		require.NoError(t, err)

		assert.True(t, breakdown.RequiresManualQuote)
		assert.Equal(t, "geometry not suitable for sheet metal manufacturing", breakdown.ManualQuoteReason)
	})

	t.Run("ThinSheetAccepted", func(t *testing.T) {
		part := machinablePart(1)
		part.Process = ProcessSheetMetal
		part.Geometry.BBoxXMm = 200
		part.Geometry.BBoxYMm = 100
		part.Geometry.BBoxZMm = 2
		part.Geometry.MachiningTimeMinutes = 10

		breakdown, err := ComputeBreakdown(part, models.LeadTierStandard)
		require.NoError(t, err)

		assert.False(t, breakdown.RequiresManualQuote)
		assert.Greater(t, breakdown.UnitPrice, 0.0)
	})
}

func TestBreakdownSnapshot(t *testing.T) {
	breakdown, err := ComputeBreakdown(machinablePart(10), models.LeadTierStandard)
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	snapshot := breakdown.Snapshot(now)

	require.NotNil(t, snapshot)
	assert.Equal(t, breakdown.UnitPrice, snapshot.UnitPrice)
	assert.Equal(t, breakdown.TotalPrice, snapshot.TotalPrice)
	assert.Equal(t, breakdown.LeadTimeDays, snapshot.LeadTimeDays)
	assert.Equal(t, now, snapshot.PricedAt)
	assert.False(t, snapshot.RequiresManualQuote)
}
