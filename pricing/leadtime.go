package pricing

import (
	"math"

	"github.com/kajiya-works/kajiya/models"
)

// LeadPlan decomposes a promised lead time into its scheduling components
type LeadPlan struct {
	ProductionDays int
	ShippingDays   int
	BufferDays     int
	TotalDays      int
}

// Production time multiplier per tier: economy runs slowest, expedited rushes
var productionMultiplierByTier = map[models.LeadTier]float64{
	models.LeadTierEconomy:   2.0,
	models.LeadTierStandard:  1.5,
	models.LeadTierExpedited: 1.0,
}

var shippingDaysByTier = map[models.LeadTier]int{
	models.LeadTierEconomy:   14,
	models.LeadTierStandard:  7,
	models.LeadTierExpedited: 3,
}

const minLeadTimeDays = 7

// computeLeadPlan estimates production, shipping, and buffer days for a part
// at the given tier. Quantities above 5 assume two machines run in parallel.
func computeLeadPlan(g models.Geometry, process ProcessConfig, material MaterialSpec, quantity int, tier models.LeadTier) LeadPlan {
	perPartHours := (g.MachiningTimeMinutes / 60) * material.MachinabilityFactor
	totalHours := perPartHours * float64(quantity)

	capacityHoursPerDay := 8.0
	switch process.Type {
	case ProcessSheetMetal:
		capacityHoursPerDay = 12
	case ProcessCNCTurning:
		capacityHoursPerDay = 10
	}

	var productionDays int
	if quantity <= 5 {
		productionDays = int(math.Ceil(totalHours / capacityHoursPerDay))
	} else {
		productionDays = int(math.Ceil(totalHours / (capacityHoursPerDay * 2)))
	}

	bufferDays := 1
	switch g.Complexity {
	case ComplexityModerate:
		bufferDays = 2
	case ComplexityComplex:
		bufferDays = 3
	}
	if material.MachinabilityFactor >= 2.5 {
		bufferDays++
	}
	if quantity >= 50 {
		bufferDays++
	}

	multiplier, ok := productionMultiplierByTier[tier]
	if !ok {
		multiplier = 1.0
	}
	adjustedProductionDays := int(math.Ceil(float64(productionDays) * multiplier))

	adjustedBufferDays := bufferDays
	switch tier {
	case models.LeadTierEconomy:
		adjustedBufferDays += 2
	case models.LeadTierExpedited:
		adjustedBufferDays = int(math.Floor(float64(bufferDays) * 0.3))
		if adjustedBufferDays < 0 {
			adjustedBufferDays = 0
		}
	}

	shippingDays := shippingDaysByTier[tier]

	total := adjustedProductionDays + shippingDays + adjustedBufferDays
	if total < minLeadTimeDays {
		total = minLeadTimeDays
	}

	return LeadPlan{
		ProductionDays: adjustedProductionDays,
		ShippingDays:   shippingDays,
		BufferDays:     adjustedBufferDays,
		TotalDays:      total,
	}
}
