package geometry

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

const (
	// ComplexityTriangleCeiling is the triangle count at which complexity saturates at 1.0
	ComplexityTriangleCeiling = 10000

	mm3PerCM3 = 1000
	mm2PerCM2 = 100
)

// Metrics is the geometric summary persisted on a design after a successful analysis
type Metrics struct {
	VolumeCM3       decimal.Decimal    `json:"volume_cm3"`
	BBoxMM          [3]decimal.Decimal `json:"bbox_mm"`
	SurfaceAreaCM2  decimal.Decimal    `json:"surface_area_cm2"`
	ComplexityScore decimal.Decimal    `json:"complexity_score"`
	NumTriangles    int                `json:"num_triangles"`
	AnalysisEngine  string             `json:"analysis_engine"`
}

// RoundTo rounds half-to-even at the given number of decimal places.
// Rounding an already rounded value is a no-op.
func RoundTo(d decimal.Decimal, places int32) decimal.Decimal {
	return d.RoundBank(places)
}

// ComplexityScore maps a triangle count into [0, 1], rounded to 2 places
func ComplexityScore(triangles int) decimal.Decimal {
	if triangles <= 0 {
		return decimal.Zero
	}
	if triangles >= ComplexityTriangleCeiling {
		return decimal.NewFromInt(1)
	}
	score := decimal.NewFromInt(int64(triangles)).Div(decimal.NewFromInt(ComplexityTriangleCeiling))
	return RoundTo(score, 2)
}

// VolumeToCM3 converts cubic millimetres to cubic centimetres (2 places)
func VolumeToCM3(mm3 decimal.Decimal) decimal.Decimal {
	return RoundTo(mm3.Div(decimal.NewFromInt(mm3PerCM3)), 2)
}

// AreaToCM2 converts square millimetres to square centimetres (2 places)
func AreaToCM2(mm2 decimal.Decimal) decimal.Decimal {
	return RoundTo(mm2.Div(decimal.NewFromInt(mm2PerCM2)), 2)
}

// DecodeMetrics reads a persisted geometric_data document. It reports false
// for empty documents, error documents, and documents without a volume.
func DecodeMetrics(raw []byte) (*Metrics, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil || len(probe) == 0 {
		return nil, false
	}
	if _, failed := probe["error"]; failed {
		return nil, false
	}
	if _, ok := probe["volume_cm3"]; !ok {
		return nil, false
	}

	var m Metrics
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return &m, true
}
