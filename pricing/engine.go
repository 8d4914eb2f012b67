package pricing

import (
	"fmt"

	"github.com/kendall-kelly/fabmarket-api/geometry"
	"github.com/shopspring/decimal"
)

const (
	ErrMissingGeometry  = "Geometric data for design is missing."
	ErrNonPositivePrice = "Calculated price must be positive."
	ErrInvalidQuantity  = "Quantity must be at least 1."

	// DefaultLeadTimeDays applies when the manufacturer declares no valid base lead time
	DefaultLeadTimeDays = 7
)

var (
	BasePrice          = decimal.RequireFromString("10.00")
	PricePerItem       = decimal.RequireFromString("5.00")
	VolumeRatePerCM3   = decimal.RequireFromString("0.1")
	DefaultMarkup      = decimal.RequireFromString("1.2")
	defaultMaterialCM3 = decimal.RequireFromString("0.05")
	defaultMachiningCM = decimal.RequireFromString("0.1")
	defaultHourlyRate  = decimal.RequireFromString("60.00")
)

// Input is everything a price depends on. Metrics is nil when the design has
// no usable analysis result.
type Input struct {
	Metrics      *geometry.Metrics
	Capabilities Capabilities
	MarkupFactor decimal.Decimal
	Quantity     int
}

// Result is a price with its breakdown. Price is nil whenever Errors is non-empty.
type Result struct {
	Price        *decimal.Decimal `json:"price_usd"`
	LeadTimeDays int              `json:"estimated_lead_time_days"`
	Details      string           `json:"calculation_details"`
	Errors       []string         `json:"errors"`
}

// OK reports whether a price was produced
func (r Result) OK() bool {
	return r.Price != nil && len(r.Errors) == 0
}

// Calculate prices a design for a manufacturer. It has no side effects.
func Calculate(in Input) Result {
	res := Result{
		LeadTimeDays: leadTime(in.Capabilities),
		Errors:       []string{},
	}

	perItem := PricePerItem
	volume := "N/A"
	if in.Metrics != nil {
		volume = in.Metrics.VolumeCM3.String()
		if in.Metrics.VolumeCM3.IsPositive() {
			perItem = perItem.Add(in.Metrics.VolumeCM3.Mul(VolumeRatePerCM3))
		}
	}

	markup := in.MarkupFactor
	markupLabel := markup.String()
	if !markup.IsPositive() {
		markup = DefaultMarkup
		markupLabel = "N/A"
	}

	res.Details = fmt.Sprintf("Volume: %s, Base Price: %s, Price/Item: %s, Markup Factor: %s",
		volume, BasePrice.StringFixed(2), perItem.StringFixed(2), markupLabel)

	if in.Metrics == nil {
		res.Errors = append(res.Errors, ErrMissingGeometry)
	}
	if in.Quantity < 1 {
		res.Errors = append(res.Errors, ErrInvalidQuantity)
	}
	if len(res.Errors) > 0 {
		return res
	}

	total := BasePrice.Add(perItem.Mul(decimal.NewFromInt(int64(in.Quantity))))
	total = total.Mul(markup).RoundBank(2)
	if !total.IsPositive() {
		res.Errors = append(res.Errors, ErrNonPositivePrice)
		return res
	}

	res.Price = &total
	return res
}

func leadTime(caps Capabilities) int {
	if caps.LeadTimeBaseDays != nil {
		return *caps.LeadTimeBaseDays
	}
	return DefaultLeadTimeDays
}

// CostFactors are the per-material machining inputs shown alongside a quote
type CostFactors struct {
	MaterialCostPerCM3         decimal.Decimal `json:"material_cost_per_cm3"`
	MachiningTimePerCM3Minutes decimal.Decimal `json:"machining_time_per_cm3_minutes"`
	MachineHourlyRateUSD       decimal.Decimal `json:"machine_hourly_rate_usd"`
}

// MaterialCostFactors reads pricing_factors.<material>, falling back to
// defaults field by field.
func MaterialCostFactors(caps Capabilities, material string) CostFactors {
	out := CostFactors{
		MaterialCostPerCM3:         defaultMaterialCM3,
		MachiningTimePerCM3Minutes: defaultMachiningCM,
		MachineHourlyRateUSD:       defaultHourlyRate,
	}
	factors, ok := caps.materialFactors[material]
	if !ok {
		return out
	}
	if d, ok := number(factors["material_cost_per_cm3"]); ok {
		out.MaterialCostPerCM3 = d
	}
	if d, ok := number(factors["machining_time_per_cm3_minutes"]); ok {
		out.MachiningTimePerCM3Minutes = d
	}
	if d, ok := number(factors["machine_hourly_rate_usd"]); ok {
		out.MachineHourlyRateUSD = d
	}
	return out
}
