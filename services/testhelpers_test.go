package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/kendall-kelly/fabmarket-api/geometry"
	"github.com/kendall-kelly/fabmarket-api/logger"
	"github.com/kendall-kelly/fabmarket-api/models"
	"github.com/kendall-kelly/fabmarket-api/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(i int) *int { return &i }

// analyzedMetrics builds the metrics document of a successful analysis
func analyzedMetrics(t *testing.T, volume string, bbox [3]string) datatypes.JSON {
	t.Helper()
	raw, err := json.Marshal(geometry.Metrics{
		VolumeCM3:       dec(volume),
		BBoxMM:          [3]decimal.Decimal{dec(bbox[0]), dec(bbox[1]), dec(bbox[2])},
		SurfaceAreaCM2:  dec("6.00"),
		ComplexityScore: dec("0.01"),
		NumTriangles:    12,
		AnalysisEngine:  "mesh-stl",
	})
	require.NoError(t, err)
	return datatypes.JSON(raw)
}

func createDesign(t *testing.T, db *gorm.DB, owner *models.User, status models.DesignStatus, geometric datatypes.JSON) *models.Design {
	t.Helper()
	design := &models.Design{
		CustomerID:    owner.ID,
		DesignName:    "bracket",
		FileKey:       "designs/bracket.stl",
		FileExtension: ".stl",
		Material:      "aluminum",
		Quantity:      1,
		Status:        status,
		GeometricData: geometric,
	}
	require.NoError(t, db.Create(design).Error)
	return design
}

func createManufacturer(t *testing.T, db *gorm.DB, auth0ID, capabilities, markup string) *models.User {
	t.Helper()
	user := testutil.CreateUser(t, db, auth0ID, models.RoleManufacturer)
	profile := &models.ManufacturerProfile{
		UserID:       user.ID,
		Location:     "Rotterdam",
		Capabilities: datatypes.JSON(capabilities),
		MarkupFactor: dec(markup),
	}
	require.NoError(t, db.Create(profile).Error)
	return user
}

func newTestQuoteService(db *gorm.DB, events EventBus) *QuoteService {
	s := NewQuoteService(db, events, logger.Nop())
	s.clock = fixedClock
	return s
}

func newTestOrderService(db *gorm.DB, events EventBus) *OrderService {
	s := NewOrderService(db, NewSimulatedGateway("valid_dummy_token"), events, logger.Nop())
	s.clock = fixedClock
	return s
}

const aluminumCapabilities = `{"materials_supported": ["aluminum"], "max_size_mm": [100, 100, 100], "cnc": true,
	"pricing_factors": {"estimated_lead_time_base_days": 5}}`
