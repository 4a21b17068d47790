package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sortirkopi/bean-order-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createBatch(t *testing.T, db *gorm.DB, orderID uint, total, healthy int64, at time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&models.Batch{
		OrderID:        orderID,
		TotalBeans:     total,
		HealthyBeans:   healthy,
		DefectiveBeans: total - healthy,
		Weight:         decimal.RequireFromString("2.5"),
		CreatedAt:      at,
	}).Error)
}

func TestGetStats(t *testing.T) {
	db, _ := setupServices(t)
	alice := createTestUser(t, db, "auth0|alice", models.RoleCustomer)
	bob := createTestUser(t, db, "auth0|bob", models.RoleCustomer)
	admin := createTestUser(t, db, "auth0|admin", models.RoleAdmin)

	first := placeOrder(t, alice, "10")
	second := placeOrder(t, alice, "30")
	other := placeOrder(t, bob, "60")

	now := time.Now().UTC()
	createBatch(t, db, first.ID, 1000, 900, now)
	createBatch(t, db, second.ID, 500, 400, now)
	createBatch(t, db, other.ID, 2000, 1000, now)

	tests := []struct {
		name           string
		auth0ID        string
		role           string
		query          string
		expectedStatus int
		expectedError  string
		checkResponse  func(t *testing.T, data map[string]interface{})
	}{
		{
			name:           "Customer sees only their own orders",
			auth0ID:        alice.Auth0ID,
			role:           models.RoleCustomer,
			query:          "",
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, data map[string]interface{}) {
				assert.Equal(t, float64(1500), data["total"])
				assert.Equal(t, float64(1300), data["healthy"])
				assert.Equal(t, float64(200), data["defect"])
				assert.Equal(t, 86.7, data["accuracy"])
				assert.Equal(t, float64(2), data["batches"])
				assert.Len(t, data["series"], 2)

				orders := data["orders"].(map[string]interface{})
				assert.Equal(t, float64(2), orders["count"])
				assert.Equal(t, float64(first.TotalPrice+second.TotalPrice), orders["total_spent"])
			},
		},
		{
			name:           "Single order scope",
			auth0ID:        alice.Auth0ID,
			role:           models.RoleCustomer,
			query:          fmt.Sprintf("?scope=order&order_id=%d", second.ID),
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, data map[string]interface{}) {
				assert.Equal(t, float64(500), data["total"])
				assert.Equal(t, float64(80), data["accuracy"])
			},
		},
		{
			name:           "Year scope has twelve buckets",
			auth0ID:        alice.Auth0ID,
			role:           models.RoleCustomer,
			query:          fmt.Sprintf("?scope=year&year=%d", now.Year()),
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, data map[string]interface{}) {
				assert.Equal(t, float64(1500), data["total"])
				series := data["series"].([]interface{})
				require.Len(t, series, 12)
				assert.Equal(t, fmt.Sprintf("%04d-01", now.Year()), series[0].(map[string]interface{})["label"])
			},
		},
		{
			name:           "Empty month has zero accuracy",
			auth0ID:        alice.Auth0ID,
			role:           models.RoleCustomer,
			query:          "?scope=month&year=2001&month=2",
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, data map[string]interface{}) {
				assert.Equal(t, float64(0), data["total"])
				assert.Equal(t, float64(0), data["accuracy"])
				assert.Len(t, data["series"], 28)
			},
		},
		{
			name:           "Admin sees every order",
			auth0ID:        admin.Auth0ID,
			role:           models.RoleAdmin,
			query:          "",
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, data map[string]interface{}) {
				assert.Equal(t, float64(3500), data["total"])
				assert.Equal(t, float64(3), data["batches"])
			},
		},
		{
			name:           "Another customer's order is forbidden",
			auth0ID:        bob.Auth0ID,
			role:           models.RoleCustomer,
			query:          fmt.Sprintf("?scope=order&order_id=%d", first.ID),
			expectedStatus: http.StatusForbidden,
			expectedError:  "FORBIDDEN",
		},
		{
			name:           "Unknown scope",
			auth0ID:        alice.Auth0ID,
			role:           models.RoleCustomer,
			query:          "?scope=week",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "Month out of range",
			auth0ID:        alice.Auth0ID,
			role:           models.RoleCustomer,
			query:          "?scope=month&year=2025&month=13",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "Non-numeric year",
			auth0ID:        alice.Auth0ID,
			role:           models.RoleCustomer,
			query:          "?scope=year&year=twenty",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(newAPIRouter(tt.auth0ID, tt.role), http.MethodGet, "/stats"+tt.query, nil)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, errorCode(t, w))
			}
			if tt.checkResponse != nil {
				tt.checkResponse(t, decodeBody(t, w)["data"].(map[string]interface{}))
			}
		})
	}
}

func TestExportReport(t *testing.T) {
	db, _ := setupServices(t)
	alice := createTestUser(t, db, "auth0|alice", models.RoleCustomer)
	order := placeOrder(t, alice, "10")
	now := time.Now().UTC()
	createBatch(t, db, order.ID, 1000, 950, now)

	router := newAPIRouter(alice.Auth0ID, models.RoleCustomer)

	t.Run("Year export", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, fmt.Sprintf("/stats/export?scope=year&year=%d", now.Year()), nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Equal(t, fmt.Sprintf(`attachment; filename="bean-report-%04d.csv"`, now.Year()), w.Header().Get("Content-Disposition"))

		body := w.Body.String()
		assert.Contains(t, body, "period,total,healthy,defect,accuracy\n")
		assert.Contains(t, body, "batch_id,order_id,created_at,weight_kg,total,healthy,defect,accuracy\n")
		assert.Contains(t, body, "accuracy,95.0\n")
		assert.Contains(t, body, fmt.Sprintf(",%d,", order.ID))
	})

	t.Run("Single order export", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, fmt.Sprintf("/stats/export?order_id=%d", order.ID), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), fmt.Sprintf("bean-report-order-%d.csv", order.ID))
		assert.True(t, strings.HasPrefix(w.Body.String(), fmt.Sprintf("report,order-%d\n", order.ID)))
	})

	t.Run("Invalid scope keeps the JSON envelope", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/stats/export?scope=decade", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
	})
}
