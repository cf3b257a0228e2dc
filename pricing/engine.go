package pricing

import (
	"errors"
	"math"
	"time"

	"github.com/kajiya-works/kajiya/models"
)

// Pricing core error constants
var (
	ErrInvalidQuantity   = errors.New("quantity must be greater than zero")
	ErrUnknownTier       = errors.New("unknown lead-time tier")
	ErrUnknownProcess    = errors.New("unknown manufacturing process")
	ErrNegativeBasePrice = errors.New("base price function returned a negative value")
)

// Part is the pricing view of one configured quote line
type Part struct {
	Process   string
	Material  string
	Finish    string
	Tolerance string
	Quantity  int
	Geometry  models.Geometry

	// MaterialCostPerKg overrides the catalog rate when positive, letting
	// callers price against the live material feed
	MaterialCostPerKg float64
}

// Breakdown is the per-unit cost decomposition produced by ComputeBreakdown.
// All components are non-negative; UnitPrice is their margin-applied sum
// minus the volume discount plus the tolerance upcharge.
type Breakdown struct {
	MaterialCost      float64
	MachiningCost     float64
	SetupCost         float64
	FinishCost        float64
	ToolingCost       float64
	InspectionCost    float64
	OverheadCost      float64
	MarginCost        float64
	Subtotal          float64
	QuantityDiscount  float64
	ToleranceUpcharge float64
	UnitPrice         float64
	TotalPrice        float64

	LeadTimeDays int
	LeadPlan     LeadPlan

	RequiresManualQuote bool
	ManualQuoteReason   string
}

// Snapshot converts a breakdown into the immutable form stored on a line
func (b Breakdown) Snapshot(now time.Time) *models.PricingSnapshot {
	return &models.PricingSnapshot{
		MaterialCost:        b.MaterialCost,
		MachiningCost:       b.MachiningCost,
		SetupCost:           b.SetupCost,
		FinishCost:          b.FinishCost,
		ToolingCost:         b.ToolingCost,
		InspectionCost:      b.InspectionCost,
		OverheadCost:        b.OverheadCost,
		MarginCost:          b.MarginCost,
		Subtotal:            b.Subtotal,
		QuantityDiscount:    b.QuantityDiscount,
		ToleranceUpcharge:   b.ToleranceUpcharge,
		UnitPrice:           b.UnitPrice,
		TotalPrice:          b.TotalPrice,
		LeadTimeDays:        b.LeadTimeDays,
		RequiresManualQuote: b.RequiresManualQuote,
		ManualQuoteReason:   b.ManualQuoteReason,
		PricedAt:            now.UTC(),
	}
}

const (
	machiningEfficiencyGain = 0.85 // 15% efficiency over list machining time
	overheadRate            = 0.10
	marginRate              = 0.08
	toolingRate             = 0.12
	volumeDiscountSoftCap   = 0.55
)

var toleranceInspectionRate = map[string]float64{
	ToleranceStandard:  0.03,
	TolerancePrecision: 0.08,
	ToleranceTight:     0.13,
}

var toleranceUpchargeRate = map[string]float64{
	ToleranceStandard:  0,
	TolerancePrecision: 0.15,
	ToleranceTight:     0.30,
}

var complexityToolingMultiplier = map[string]float64{
	ComplexitySimple:   0.8,
	ComplexityModerate: 1,
	ComplexityComplex:  1.3,
}

// ComputeBreakdown produces the full per-unit cost decomposition for a part
// at the given lead tier. It is a pure function of its inputs and the static
// rate tables.
func ComputeBreakdown(part Part, tier models.LeadTier) (Breakdown, error) {
	if part.Quantity <= 0 {
		return Breakdown{}, ErrInvalidQuantity
	}
	if !tier.Valid() {
		return Breakdown{}, ErrUnknownTier
	}
	process, ok := GetProcess(part.Process)
	if !ok {
		return Breakdown{}, ErrUnknownProcess
	}
	material := GetMaterial(part.Material)
	finish := GetFinish(part.Finish)

	if reason, manual := requiresManualQuote(part.Geometry, process, material); manual {
		return manualQuoteBreakdown(tier, reason), nil
	}

	// Material: raw stock weight including process waste
	rawWeightKg := rawStockWeightKg(part.Geometry, material, process)
	costPerKg := material.CostPerKg
	if part.MaterialCostPerKg > 0 {
		costPerKg = part.MaterialCostPerKg
	}
	materialCost := rawWeightKg * costPerKg

	// Machining: list minutes scaled by machinability and shop efficiency
	machiningHours := (part.Geometry.MachiningTimeMinutes / 60) * material.MachinabilityFactor * machiningEfficiencyGain
	machiningCost := machiningHours * process.HourlyRate

	// Setup amortized over quantity
	setupCost := process.SetupCost / math.Max(1, float64(part.Quantity))

	// Finish: base plus per-area
	surfaceAreaCm2 := part.Geometry.SurfaceAreaMm2 / 100
	finishCost := finish.BaseCost + finish.PerAreaCost*surfaceAreaCm2

	// Tooling wear scaled by complexity
	complexityMult, ok := complexityToolingMultiplier[part.Geometry.Complexity]
	if !ok {
		complexityMult = 1
	}
	toolingCost := machiningCost * toolingRate * complexityMult

	// Inspection scales with tolerance class
	inspectionRate, ok := toleranceInspectionRate[part.Tolerance]
	if !ok {
		inspectionRate = toleranceInspectionRate[ToleranceStandard]
	}
	inspectionCost := (materialCost + machiningCost) * inspectionRate

	directCosts := materialCost + machiningCost + setupCost + finishCost + toolingCost + inspectionCost
	overheadCost := directCosts * overheadRate

	costBeforeMargin := directCosts + overheadCost
	marginCost := costBeforeMargin * marginRate

	subtotal := costBeforeMargin + marginCost

	discount := volumeDiscount(rawWeightKg, part.Quantity, subtotal, process.SetupCost, materialCost)

	upchargeRate, ok := toleranceUpchargeRate[part.Tolerance]
	if !ok {
		upchargeRate = 0
	}
	toleranceUpcharge := subtotal * upchargeRate

	unitPrice := subtotal - discount + toleranceUpcharge
	if unitPrice < 0 {
		unitPrice = 0
	}

	plan := computeLeadPlan(part.Geometry, process, material, part.Quantity, tier)

	return Breakdown{
		MaterialCost:      round2(materialCost),
		MachiningCost:     round2(machiningCost),
		SetupCost:         round2(setupCost),
		FinishCost:        round2(finishCost),
		ToolingCost:       round2(toolingCost),
		InspectionCost:    round2(inspectionCost),
		OverheadCost:      round2(overheadCost),
		MarginCost:        round2(marginCost),
		Subtotal:          round2(subtotal),
		QuantityDiscount:  round2(discount),
		ToleranceUpcharge: round2(toleranceUpcharge),
		UnitPrice:         round2(unitPrice),
		TotalPrice:        round2(unitPrice * float64(part.Quantity)),
		LeadTimeDays:      plan.TotalDays,
		LeadPlan:          plan,
	}, nil
}

func rawStockWeightKg(g models.Geometry, material MaterialSpec, process ProcessConfig) float64 {
	bboxVolumeCm3 := (g.BBoxXMm * g.BBoxYMm * g.BBoxZMm) / 1000
	rawWeightKg := (bboxVolumeCm3 * material.DensityGCm3) / 1000
	return rawWeightKg * process.MaterialWasteFactor
}

// volumeDiscount combines quantity tiers, bulk material value, production
// efficiency, and setup amortization, soft-capped so stacked factors cannot
// exceed 55% of the subtotal.
func volumeDiscount(rawWeightKg float64, quantity int, subtotalPerUnit, setupCost, materialCostPerUnit float64) float64 {
	var tierRate float64
	switch {
	case quantity >= 1000:
		tierRate = 0.48
	case quantity >= 500:
		tierRate = 0.44
	case quantity >= 250:
		tierRate = 0.40
	case quantity >= 100:
		tierRate = 0.35
	case quantity >= 80:
		tierRate = 0.31
	case quantity >= 60:
		tierRate = 0.27
	case quantity >= 50:
		tierRate = 0.24
	case quantity >= 40:
		tierRate = 0.21
	case quantity >= 30:
		tierRate = 0.18
	case quantity >= 25:
		tierRate = 0.16
	case quantity >= 20:
		tierRate = 0.14
	case quantity >= 15:
		tierRate = 0.11
	case quantity >= 10:
		tierRate = 0.09
	case quantity >= 7:
		tierRate = 0.06
	case quantity >= 5:
		tierRate = 0.04
	case quantity >= 3:
		tierRate = 0.02
	}

	totalMaterialValue := materialCostPerUnit * float64(quantity)
	var materialRate float64
	switch {
	case totalMaterialValue >= 5000:
		materialRate = 0.08
	case totalMaterialValue >= 3000:
		materialRate = 0.06
	case totalMaterialValue >= 2000:
		materialRate = 0.04
	case totalMaterialValue >= 1000:
		materialRate = 0.03
	case totalMaterialValue >= 500:
		materialRate = 0.02
	case totalMaterialValue >= 250:
		materialRate = 0.01
	}

	totalWeightKg := rawWeightKg * float64(quantity)
	var efficiencyRate float64
	switch {
	case totalWeightKg >= 500:
		efficiencyRate = 0.06
	case totalWeightKg >= 300:
		efficiencyRate = 0.04
	case totalWeightKg >= 200:
		efficiencyRate = 0.03
	case totalWeightKg >= 100:
		efficiencyRate = 0.02
	case totalWeightKg >= 50:
		efficiencyRate = 0.01
	}

	var amortizationRate float64
	if subtotalPerUnit > 0 {
		setupShare := (setupCost / float64(quantity)) / subtotalPerUnit
		switch {
		case setupShare < 0.02:
			amortizationRate = 0.03
		case setupShare < 0.05:
			amortizationRate = 0.02
		case setupShare < 0.10:
			amortizationRate = 0.01
		}
	}

	rawRate := tierRate + materialRate + efficiencyRate + amortizationRate
	finalRate := math.Min(rawRate, volumeDiscountSoftCap*(1-math.Exp(-rawRate/0.3)))

	return subtotalPerUnit * finalRate
}

// CNC feasibility limits; parts outside these envelopes need a human quote
var cncConstraints = struct {
	minDimensionMm   float64
	maxDimensionMm   float64
	minWallMm        float64
	maxAspectRatio   float64
	maxVolumeCm3     float64
	maxMachiningMins float64
}{
	minDimensionMm:   0.5,
	maxDimensionMm:   700,
	minWallMm:        0.5,
	maxAspectRatio:   20,
	maxVolumeCm3:     500000,
	maxMachiningMins: 1200,
}

func requiresManualQuote(g models.Geometry, process ProcessConfig, material MaterialSpec) (string, bool) {
	dims := []float64{g.BBoxXMm, g.BBoxYMm, g.BBoxZMm}
	minDim, maxDim := dims[0], dims[0]
	for _, d := range dims[1:] {
		minDim = math.Min(minDim, d)
		maxDim = math.Max(maxDim, d)
	}

	if minDim < cncConstraints.minDimensionMm {
		return "part too small for standard CNC (min 0.5mm)", true
	}
	if maxDim > cncConstraints.maxDimensionMm {
		return "part exceeds CNC envelope (max 700mm)", true
	}

	volumeCm3 := (g.BBoxXMm * g.BBoxYMm * g.BBoxZMm) / 1000
	if volumeCm3 > cncConstraints.maxVolumeCm3 {
		return "part volume exceeds CNC capacity", true
	}

	if process.Type == ProcessCNCMilling || process.Type == ProcessCNCTurning {
		if minDim < cncConstraints.minWallMm && g.Complexity != ComplexitySimple {
			return "features too thin for reliable CNC machining", true
		}
		if minDim > 0 && maxDim/minDim > cncConstraints.maxAspectRatio {
			return "extreme aspect ratio requires specialized tooling", true
		}
		if g.Complexity == ComplexityComplex && material.MachinabilityFactor > 2.5 {
			return "complex geometry with difficult-to-machine material", true
		}
		if g.MachiningTimeMinutes > cncConstraints.maxMachiningMins {
			return "machining time exceeds standard production capacity", true
		}
	}

	if process.Type == ProcessSheetMetal && !isSheetMetalCandidate(g) {
		return "geometry not suitable for sheet metal manufacturing", true
	}

	return "", false
}

func isSheetMetalCandidate(g models.Geometry) bool {
	dims := []float64{g.BBoxXMm, g.BBoxYMm, g.BBoxZMm}
	thickness := math.Min(dims[0], math.Min(dims[1], dims[2]))
	longest := math.Max(dims[0], math.Max(dims[1], dims[2]))

	// Sheet metal is typically 0.5mm to 6mm thick and sheet-like in aspect
	if thickness < cncConstraints.minDimensionMm || thickness > 6 {
		return false
	}
	if longest > cncConstraints.maxDimensionMm {
		return false
	}
	return thickness > 0 && longest/thickness > 10
}

func manualQuoteBreakdown(tier models.LeadTier, reason string) Breakdown {
	plan := LeadPlan{
		ProductionDays: 0,
		ShippingDays:   shippingDaysByTier[tier],
		BufferDays:     7,
	}
	plan.TotalDays = 7

	return Breakdown{
		LeadTimeDays:        7,
		LeadPlan:            plan,
		RequiresManualQuote: true,
		ManualQuoteReason:   reason,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
