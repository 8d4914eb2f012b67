package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/fabmarket-api/models"
	"github.com/kendall-kelly/fabmarket-api/services"
	"github.com/kendall-kelly/fabmarket-api/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const cubeMetrics = `{"volume_cm3": 1, "bbox_mm": [10, 10, 10], "surface_area_cm2": 6,
	"complexity_score": 0.01, "num_triangles": 12, "analysis_engine": "mesh-stl"}`

const aluminumCapabilities = `{"materials_supported": ["aluminum"], "max_size_mm": [100, 100, 100],
	"pricing_factors": {"estimated_lead_time_base_days": 5}}`

// apiHarness is a router with every API route behind the header-driven mock auth
type apiHarness struct {
	t       *testing.T
	db      *gorm.DB
	router  *gin.Engine
	storage *services.MockS3Service
	events  *services.MemoryEventBus
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	db := setupTestDB(t)

	storage := services.NewMockS3Service()
	services.SetS3Service(storage)
	services.InitDesignFileService(storage)
	events := &services.MemoryEventBus{}
	services.SetEventBus(events)
	SetPaymentGateway(services.NewSimulatedGateway("valid_dummy_token"))
	SetQueueOptions()
	t.Cleanup(func() {
		services.SetEventBus(nil)
		services.SetDesignFileService(nil)
	})

	router := setupTestRouter()
	RegisterRoutes(router.Group("/api/v1"), testutil.MockAuthMiddleware())
	return &apiHarness{t: t, db: db, router: router, storage: storage, events: events}
}

// request performs a call as subject ("" for anonymous) and decodes the envelope
func (h *apiHarness) request(method, path, subject string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	h.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return h.serve(req, subject)
}

func (h *apiHarness) serve(req *http.Request, subject string) (*httptest.ResponseRecorder, map[string]interface{}) {
	h.t.Helper()
	if subject != "" {
		req.Header.Set("X-Test-User", subject)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var response map[string]interface{}
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &response), "body: %s", w.Body.String())
	return w, response
}

func (h *apiHarness) user(auth0ID, role string) *models.User {
	return testutil.CreateUser(h.t, h.db, auth0ID, role)
}

func (h *apiHarness) staff(auth0ID string) *models.User {
	u := h.user(auth0ID, models.RoleCustomer)
	require.NoError(h.t, h.db.Model(u).Update("is_staff", true).Error)
	u.IsStaff = true
	return u
}

func (h *apiHarness) manufacturer(auth0ID, capabilities string) *models.User {
	u := h.user(auth0ID, models.RoleManufacturer)
	require.NoError(h.t, h.db.Create(&models.ManufacturerProfile{
		UserID:       u.ID,
		Capabilities: datatypes.JSON(capabilities),
		MarkupFactor: decimal.RequireFromString("1.2"),
	}).Error)
	return u
}

func (h *apiHarness) design(owner *models.User, status models.DesignStatus, geometric string) *models.Design {
	d := &models.Design{
		CustomerID:    owner.ID,
		DesignName:    "bracket",
		FileKey:       "designs/bracket.stl",
		FileExtension: ".stl",
		Material:      "aluminum",
		Quantity:      1,
		Status:        status,
	}
	if geometric != "" {
		d.GeometricData = datatypes.JSON(geometric)
	}
	require.NoError(h.t, h.db.Create(d).Error)
	return d
}

func (h *apiHarness) order(customer, maker *models.User, status models.OrderStatus) *models.Order {
	d := h.design(customer, models.DesignStatusOrdered, cubeMetrics)
	q := &models.Quote{
		DesignID:              d.ID,
		ManufacturerID:        maker.ID,
		Price:                 decimal.RequireFromString("48.00"),
		EstimatedLeadTimeDays: 5,
		Status:                models.QuoteStatusAccepted,
	}
	require.NoError(h.t, h.db.Create(q).Error)
	o := &models.Order{
		DesignID:        d.ID,
		AcceptedQuoteID: q.ID,
		CustomerID:      customer.ID,
		ManufacturerID:  maker.ID,
		Status:          status,
		TotalPriceUSD:   q.Price,
	}
	require.NoError(h.t, h.db.Create(o).Error)
	return o
}

func errorCode(response map[string]interface{}) string {
	errData, ok := response["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := errData["code"].(string)
	return code
}

func errorMessage(response map[string]interface{}) string {
	errData, ok := response["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	msg, _ := errData["message"].(string)
	return msg
}

func dataMap(t *testing.T, response map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "data is not an object: %v", response["data"])
	return data
}

func rawJSON(s string) json.RawMessage {
	return json.RawMessage(s)
}
