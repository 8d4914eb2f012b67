package pricing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// FieldError attributes a validation failure to a capabilities field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Capabilities is the lenient, typed view of a manufacturer capabilities
// document used for pricing and quote eligibility. Invalid values are
// dropped; ValidateCapabilities rejects them at write time.
type Capabilities struct {
	MaterialsSupported []string
	CNC                *bool
	MaxSizeMM          []decimal.Decimal
	LeadTimeBaseDays   *int
	materialFactors    map[string]map[string]any
}

// SupportsMaterial reports whether material is listed as supported
func (c Capabilities) SupportsMaterial(material string) bool {
	for _, m := range c.MaterialsSupported {
		if m == material {
			return true
		}
	}
	return false
}

// ParseCapabilities decodes a capabilities document. It never fails; an
// unreadable document yields empty capabilities.
func ParseCapabilities(raw []byte) Capabilities {
	var caps Capabilities
	doc, ok := decodeObject(raw)
	if !ok {
		return caps
	}

	if list, ok := stringList(doc["materials_supported"]); ok {
		caps.MaterialsSupported = list
	}
	if cnc, ok := doc["cnc"].(bool); ok {
		caps.CNC = &cnc
	}
	if size, ok := nonNegativeTriple(doc["max_size_mm"]); ok {
		caps.MaxSizeMM = size
	}

	factors, _ := doc["pricing_factors"].(map[string]any)
	if days, ok := nonNegativeInt(factors["estimated_lead_time_base_days"]); ok {
		caps.LeadTimeBaseDays = &days
	}
	caps.materialFactors = map[string]map[string]any{}
	for name, v := range factors {
		if m, ok := v.(map[string]any); ok {
			caps.materialFactors[name] = m
		}
	}
	return caps
}

// ValidateCapabilities enforces the write-time invariants of a capabilities document
func ValidateCapabilities(raw []byte) []FieldError {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	doc, ok := decodeObject(raw)
	if !ok {
		return []FieldError{{Field: "capabilities", Message: "Capabilities must be a JSON object."}}
	}

	var errs []FieldError
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	var supported []string
	if v, present := doc["materials_supported"]; present {
		list, ok := stringList(v)
		if !ok {
			add("materials_supported", "materials_supported must be a list of strings.")
		}
		supported = list
	}

	factors := map[string]any{}
	if v, present := doc["pricing_factors"]; present {
		m, ok := v.(map[string]any)
		if !ok {
			add("pricing_factors", "pricing_factors must be an object.")
		} else {
			factors = m
		}
	}

	properties := map[string]any{}
	if v, present := factors["material_properties"]; present {
		m, ok := v.(map[string]any)
		if !ok {
			add("pricing_factors.material_properties", "material_properties must be an object keyed by material name.")
		} else {
			properties = m
		}
	}

	for _, material := range supported {
		if _, ok := properties[material]; !ok {
			add("pricing_factors.material_properties",
				"Material '%s' is listed in materials_supported but has no entry in pricing_factors.material_properties.", material)
		}
	}

	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		field := "pricing_factors.material_properties." + name
		props, ok := properties[name].(map[string]any)
		if !ok {
			add(field, "Properties for material '%s' must be an object.", name)
			continue
		}
		if d, ok := number(props["density_g_cm3"]); !ok || !d.IsPositive() {
			add(field+".density_g_cm3", "density_g_cm3 for material '%s' must be a positive number.", name)
		}
		if c, ok := number(props["cost_usd_kg"]); !ok || c.IsNegative() {
			add(field+".cost_usd_kg", "cost_usd_kg for material '%s' must be a non-negative number.", name)
		}
	}

	if v, present := factors["machining"]; present {
		machining, ok := v.(map[string]any)
		if !ok {
			add("pricing_factors.machining", "machining must be an object.")
		} else {
			for _, key := range []string{"base_time_cost_unit", "time_multiplier_complexity_cost_unit"} {
				raw, present := machining[key]
				if !present {
					continue
				}
				if n, ok := number(raw); !ok || n.IsNegative() {
					add("pricing_factors.machining."+key, "%s must be a non-negative number.", key)
				}
			}
		}
	}

	if v, present := factors["estimated_lead_time_base_days"]; present {
		if _, ok := nonNegativeInt(v); !ok {
			add("pricing_factors.estimated_lead_time_base_days", "estimated_lead_time_base_days must be a non-negative integer.")
		}
	}

	if v, present := doc["max_size_mm"]; present {
		if _, ok := nonNegativeTriple(v); !ok {
			add("max_size_mm", "max_size_mm must be a list of exactly 3 non-negative numbers.")
		}
	}

	return errs
}

// ValidateMarkupFactor enforces markup_factor > 0
func ValidateMarkupFactor(markup decimal.Decimal) *FieldError {
	if !markup.IsPositive() {
		return &FieldError{Field: "markup_factor", Message: "Markup factor must be a positive value."}
	}
	return nil
}

// ValidateCertifications requires a JSON list of strings (or nothing)
func ValidateCertifications(raw []byte) *FieldError {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return &FieldError{Field: "certifications", Message: "Certifications must be a list of strings."}
	}
	return nil
}

func decodeObject(raw []byte) (map[string]any, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil || doc == nil {
		return nil, false
	}
	return doc, true
}

func stringList(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func number(v any) (decimal.Decimal, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func nonNegativeInt(v any) (int, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil || i < 0 {
		return 0, false
	}
	return int(i), true
}

func nonNegativeTriple(v any) ([]decimal.Decimal, bool) {
	items, ok := v.([]any)
	if !ok || len(items) != 3 {
		return nil, false
	}
	out := make([]decimal.Decimal, 0, 3)
	for _, item := range items {
		d, ok := number(item)
		if !ok || d.IsNegative() {
			return nil, false
		}
		out = append(out, d)
	}
	return out, true
}
