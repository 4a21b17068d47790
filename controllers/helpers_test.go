package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sortirkopi/bean-order-api/config"
	"github.com/sortirkopi/bean-order-api/middleware"
	"github.com/sortirkopi/bean-order-api/models"
	"github.com/sortirkopi/bean-order-api/services"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// one connection, so every query sees the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// setupServices points config and services at a fresh database with mock proof storage
func setupServices(t *testing.T) (*gorm.DB, *services.MockImageService) {
	db := setupTestDB(t)
	config.SetDB(db)

	images := services.NewMockImageService()
	prev := services.Get()
	services.Init(db, services.NewMemoryOrderCache(time.Minute), images)
	t.Cleanup(func() { services.Set(prev) })

	return db, images
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	return router
}

// mockAuthMiddleware simulates the Auth0 JWT middleware for testing
// It sets up the context exactly as the real EnsureValidToken middleware does
func mockAuthMiddleware(auth0ID, role, accessToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", auth0ID)
		c.Set("access_token", accessToken)

		mockClaims := &validator.ValidatedClaims{
			RegisteredClaims: validator.RegisteredClaims{Subject: auth0ID},
			CustomClaims: &middleware.CustomClaims{
				Role: role,
			},
		}
		c.Set("validated_claims", mockClaims)

		c.Next()
	}
}

func createTestUser(t *testing.T, db *gorm.DB, auth0ID, role string) *models.User {
	user := &models.User{
		Auth0ID: auth0ID,
		Name:    "User " + auth0ID,
		Email:   strings.ReplaceAll(auth0ID, "|", ".") + "@example.com",
		Phone:   "+6281234567890",
		Address: "Jl. Braga No. 10, Bandung",
		Role:    role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// placeOrder creates an order through the service, bypassing HTTP
func placeOrder(t *testing.T, customer *models.User, weight string) *models.Order {
	t.Helper()
	order, err := services.Get().Orders.CreateOrder(t.Context(), services.CreateOrderInput{
		Customer:   customer,
		WeightKg:   decimal.RequireFromString(weight),
		CoffeeType: models.CoffeeRobusta,
	})
	require.NoError(t, err)
	return order
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return response
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	response := decodeBody(t, w)
	errObj, ok := response["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := errObj["code"].(string)
	return code
}

// paymentForm builds a multipart payment submission. An empty filename omits the proof.
func paymentForm(t *testing.T, fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("proof", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func doMultipart(router *gin.Engine, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// newAPIRouter registers the authenticated routes behind mock auth for sub/role
func newAPIRouter(auth0ID, role string) *gin.Engine {
	router := setupTestRouter()
	router.GET("/pricing", GetPriceList)
	router.GET("/pricing/quote", GetQuote)

	authed := router.Group("")
	authed.Use(mockAuthMiddleware(auth0ID, role, "token-"+auth0ID))
	authed.POST("/users", CreateUser)
	authed.GET("/users/me", GetMyProfile)
	authed.PUT("/users/me", UpdateMyProfile)
	authed.POST("/orders", CreateOrder)
	authed.GET("/orders", ListOrders)
	authed.GET("/orders/:id", GetOrder)
	authed.POST("/orders/:id/cancel", CancelOrder)
	authed.DELETE("/orders/:id", DeleteOrder)
	authed.POST("/orders/:id/payment", SubmitPayment)
	authed.GET("/orders/:id/payment", GetPayment)
	authed.GET("/stats", GetStats)
	authed.GET("/stats/export", ExportReport)

	admin := authed.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.GET("/orders", AdminListOrders)
	admin.PATCH("/orders/:id/status", AdminUpdateOrderStatus)
	admin.POST("/orders/:id/payment/verify", VerifyPayment)
	admin.POST("/orders/:id/payment/reject", RejectPayment)

	return router
}
