package pricing

import (
	"fmt"

	"github.com/kajiya-works/kajiya/models"
)

// MarkupTable maps each lead tier to the non-negative multiplicative uplift
// applied on top of the real unit price to produce the displayed price. It is
// read-only configuration loaded at process start.
type MarkupTable map[models.LeadTier]float64

// DefaultMarkups mirrors the platform's published uplift per tier
var DefaultMarkups = MarkupTable{
	models.LeadTierEconomy:   0.20,
	models.LeadTierStandard:  0.25,
	models.LeadTierExpedited: 0.30,
}

// TierOrder is the fixed display order for lead options. Display order is
// deliberately decoupled from price comparison.
var TierOrder = []models.LeadTier{
	models.LeadTierEconomy,
	models.LeadTierStandard,
	models.LeadTierExpedited,
}

// Badges shown next to each tier in rendered option lists
var tierBadge = map[models.LeadTier]string{
	models.LeadTierEconomy:   "Best Value",
	models.LeadTierStandard:  "Most Popular",
	models.LeadTierExpedited: "Fastest",
}

// LeadOption is one priced delivery choice for a part
type LeadOption struct {
	Tier           models.LeadTier `json:"tier"`
	Badge          string          `json:"badge"`
	LeadTimeDays   int             `json:"lead_time_days"`
	UnitPrice      float64         `json:"unit_price"`
	MarketingPrice float64         `json:"marketing_price"`
	Savings        float64         `json:"savings"`
}

// BasePriceFunc computes the total (all units) base price and promised lead
// days for a part at a tier. Implementations must return a non-negative price
// for valid input; the calculator treats a negative result as a defect.
type BasePriceFunc func(part Part, tier models.LeadTier) (totalPrice float64, leadDays int, err error)

// DefaultBasePrice prices a part through the full cost engine
func DefaultBasePrice(part Part, tier models.LeadTier) (float64, int, error) {
	breakdown, err := ComputeBreakdown(part, tier)
	if err != nil {
		return 0, 0, err
	}
	return breakdown.TotalPrice, breakdown.LeadTimeDays, nil
}

// Calculator computes lead options from a markup table and a base price
// collaborator. It holds no mutable state and is safe for concurrent use.
type Calculator struct {
	markups MarkupTable
	base    BasePriceFunc
}

// NewCalculator builds a calculator. A nil markup table falls back to
// DefaultMarkups; a nil base falls back to the cost engine. Negative markups
// are rejected because displayed prices must never undercut real prices.
func NewCalculator(markups MarkupTable, base BasePriceFunc) (*Calculator, error) {
	if markups == nil {
		markups = DefaultMarkups
	}
	for tier, markup := range markups {
		if markup < 0 {
			return nil, fmt.Errorf("markup for tier %s is negative: %f", tier, markup)
		}
	}
	if base == nil {
		base = DefaultBasePrice
	}
	return &Calculator{markups: markups, base: base}, nil
}

// ComputeLeadOption prices one tier for a part
func (c *Calculator) ComputeLeadOption(part Part, tier models.LeadTier) (LeadOption, error) {
	if part.Quantity <= 0 {
		return LeadOption{}, ErrInvalidQuantity
	}
	markup, ok := c.markups[tier]
	if !ok || !tier.Valid() {
		return LeadOption{}, ErrUnknownTier
	}

	totalPrice, leadDays, err := c.base(part, tier)
	if err != nil {
		return LeadOption{}, err
	}
	if totalPrice < 0 {
		return LeadOption{}, ErrNegativeBasePrice
	}

	unitPrice := totalPrice / float64(part.Quantity)
	marketingPrice := unitPrice * (1 + markup)

	return LeadOption{
		Tier:           tier,
		Badge:          tierBadge[tier],
		LeadTimeDays:   leadDays,
		UnitPrice:      round2(unitPrice),
		MarketingPrice: round2(marketingPrice),
		Savings:        round2(marketingPrice - unitPrice),
	}, nil
}

// ComputeLeadOptions prices all tiers for a part in fixed display order
func (c *Calculator) ComputeLeadOptions(part Part) ([]LeadOption, error) {
	options := make([]LeadOption, 0, len(TierOrder))
	for _, tier := range TierOrder {
		option, err := c.ComputeLeadOption(part, tier)
		if err != nil {
			return nil, err
		}
		options = append(options, option)
	}
	return options, nil
}
