package controllers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/sortirkopi/bean-order-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	db, _ := setupServices(t)
	customer := createTestUser(t, db, "auth0|customer123", models.RoleCustomer)
	admin := createTestUser(t, db, "auth0|admin123", models.RoleAdmin)

	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	yesterday := time.Now().UTC().AddDate(0, 0, -2).Format("2006-01-02")

	tests := []struct {
		name           string
		auth0ID        string
		role           string
		requestBody    map[string]interface{}
		expectedStatus int
		expectedError  string
		checkResponse  func(t *testing.T, response map[string]interface{})
	}{
		{
			name:    "Successfully create medium order",
			auth0ID: customer.Auth0ID,
			role:    models.RoleCustomer,
			requestBody: map[string]interface{}{
				"weight_kg":     "30",
				"coffee_type":   "Arabika",
				"delivery_date": tomorrow,
				"notes":         "  Please sort twice  ",
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, response map[string]interface{}) {
				assert.True(t, response["success"].(bool))
				data := response["data"].(map[string]interface{})
				assert.Equal(t, "30", data["weight_kg"])
				assert.Equal(t, "Medium", data["package_tier"])
				assert.Equal(t, float64(13000), data["price_per_kg"])
				assert.Equal(t, float64(390000), data["total_price"])
				assert.Equal(t, "2024-01", data["pricing_version"])
				assert.Equal(t, "pending", data["fulfillment_status"])
				assert.Equal(t, "absent", data["payment_status"])
				assert.Equal(t, "Please sort twice", data["notes"])
				assert.Equal(t, float64(customer.ID), data["customer_id"])

				snapshot := data["customer"].(map[string]interface{})
				assert.Equal(t, customer.Email, snapshot["email"])
				assert.Equal(t, customer.Address, snapshot["address"])
			},
		},
		{
			name:           "Numeric weight is accepted",
			auth0ID:        customer.Auth0ID,
			role:           models.RoleCustomer,
			requestBody:    map[string]interface{}{"weight_kg": 5, "coffee_type": "Robusta"},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, response map[string]interface{}) {
				data := response["data"].(map[string]interface{})
				assert.Equal(t, "Small", data["package_tier"])
				assert.Equal(t, float64(75000), data["total_price"])
			},
		},
		{
			name:           "Admins cannot place orders",
			auth0ID:        admin.Auth0ID,
			role:           models.RoleAdmin,
			requestBody:    map[string]interface{}{"weight_kg": "30", "coffee_type": "Arabika"},
			expectedStatus: http.StatusForbidden,
			expectedError:  "FORBIDDEN",
		},
		{
			name:           "Missing weight",
			auth0ID:        customer.Auth0ID,
			role:           models.RoleCustomer,
			requestBody:    map[string]interface{}{"coffee_type": "Arabika"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "Weight below minimum",
			auth0ID:        customer.Auth0ID,
			role:           models.RoleCustomer,
			requestBody:    map[string]interface{}{"weight_kg": "4.999", "coffee_type": "Arabika"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_WEIGHT",
		},
		{
			name:           "Unknown coffee type",
			auth0ID:        customer.Auth0ID,
			role:           models.RoleCustomer,
			requestBody:    map[string]interface{}{"weight_kg": "10", "coffee_type": "Excelsa"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "Malformed delivery date",
			auth0ID:        customer.Auth0ID,
			role:           models.RoleCustomer,
			requestBody:    map[string]interface{}{"weight_kg": "10", "coffee_type": "Arabika", "delivery_date": "next week"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "Delivery date in the past",
			auth0ID:        customer.Auth0ID,
			role:           models.RoleCustomer,
			requestBody:    map[string]interface{}{"weight_kg": "10", "coffee_type": "Arabika", "delivery_date": yesterday},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "Caller without a profile",
			auth0ID:        "auth0|stranger",
			role:           models.RoleCustomer,
			requestBody:    map[string]interface{}{"weight_kg": "10", "coffee_type": "Arabika"},
			expectedStatus: http.StatusNotFound,
			expectedError:  "USER_NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newAPIRouter(tt.auth0ID, tt.role)
			w := doJSON(router, http.MethodPost, "/orders", tt.requestBody)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, errorCode(t, w))
			}
			if tt.checkResponse != nil {
				tt.checkResponse(t, decodeBody(t, w))
			}
		})
	}
}

func TestListOrders(t *testing.T) {
	db, _ := setupServices(t)
	alice := createTestUser(t, db, "auth0|alice", models.RoleCustomer)
	bob := createTestUser(t, db, "auth0|bob", models.RoleCustomer)

	for i := 0; i < 3; i++ {
		placeOrder(t, alice, "10")
	}
	cancelled := placeOrder(t, alice, "25")
	placeOrder(t, bob, "60")

	router := newAPIRouter(alice.Auth0ID, models.RoleCustomer)
	_ = doJSON(router, http.MethodPost, fmt.Sprintf("/orders/%d/cancel", cancelled.ID), nil)

	t.Run("Customers only see their own orders", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/orders", nil)
		require.Equal(t, http.StatusOK, w.Code)

		response := decodeBody(t, w)
		data := response["data"].([]interface{})
		assert.Len(t, data, 4)
		for _, item := range data {
			assert.Equal(t, float64(alice.ID), item.(map[string]interface{})["customer_id"])
		}
		pagination := response["pagination"].(map[string]interface{})
		assert.Equal(t, float64(4), pagination["total"])
		assert.Equal(t, float64(1), pagination["page"])
		assert.Equal(t, float64(20), pagination["limit"])
	})

	t.Run("Pagination", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/orders?page=2&limit=3", nil)
		require.Equal(t, http.StatusOK, w.Code)

		response := decodeBody(t, w)
		assert.Len(t, response["data"].([]interface{}), 1)
		assert.Equal(t, float64(4), response["pagination"].(map[string]interface{})["total"])
	})

	t.Run("Filter by fulfillment status", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/orders?status=cancelled", nil)
		require.Equal(t, http.StatusOK, w.Code)

		data := decodeBody(t, w)["data"].([]interface{})
		require.Len(t, data, 1)
		assert.Equal(t, float64(cancelled.ID), data[0].(map[string]interface{})["id"])
	})

	t.Run("Unknown status filter", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/orders?status=shipped", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
	})
}

func TestGetOrder(t *testing.T) {
	db, _ := setupServices(t)
	alice := createTestUser(t, db, "auth0|alice", models.RoleCustomer)
	bob := createTestUser(t, db, "auth0|bob", models.RoleCustomer)
	admin := createTestUser(t, db, "auth0|admin", models.RoleAdmin)
	order := placeOrder(t, alice, "20")

	tests := []struct {
		name           string
		auth0ID        string
		role           string
		path           string
		expectedStatus int
		expectedError  string
	}{
		{"Owner can read", alice.Auth0ID, models.RoleCustomer, fmt.Sprintf("/orders/%d", order.ID), http.StatusOK, ""},
		{"Admin can read", admin.Auth0ID, models.RoleAdmin, fmt.Sprintf("/orders/%d", order.ID), http.StatusOK, ""},
		{"Other customer is forbidden", bob.Auth0ID, models.RoleCustomer, fmt.Sprintf("/orders/%d", order.ID), http.StatusForbidden, "FORBIDDEN"},
		{"Unknown order", alice.Auth0ID, models.RoleCustomer, "/orders/9999", http.StatusNotFound, "ORDER_NOT_FOUND"},
		{"Invalid id", alice.Auth0ID, models.RoleCustomer, "/orders/abc", http.StatusBadRequest, "INVALID_ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(newAPIRouter(tt.auth0ID, tt.role), http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, errorCode(t, w))
			} else {
				data := decodeBody(t, w)["data"].(map[string]interface{})
				assert.Equal(t, "Small", data["package_tier"])
				assert.Equal(t, float64(300000), data["total_price"])
			}
		})
	}
}

func TestCancelAndDeleteOrder(t *testing.T) {
	db, _ := setupServices(t)
	alice := createTestUser(t, db, "auth0|alice", models.RoleCustomer)
	bob := createTestUser(t, db, "auth0|bob", models.RoleCustomer)
	order := placeOrder(t, alice, "45")
	path := fmt.Sprintf("/orders/%d", order.ID)

	aliceRouter := newAPIRouter(alice.Auth0ID, models.RoleCustomer)

	t.Run("Pending orders cannot be deleted", func(t *testing.T) {
		w := doJSON(aliceRouter, http.MethodDelete, path, nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "INVALID_TRANSITION", errorCode(t, w))
	})

	t.Run("Other customers cannot cancel", func(t *testing.T) {
		w := doJSON(newAPIRouter(bob.Auth0ID, models.RoleCustomer), http.MethodPost, path+"/cancel", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Owner cancels", func(t *testing.T) {
		w := doJSON(aliceRouter, http.MethodPost, path+"/cancel", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		data := decodeBody(t, w)["data"].(map[string]interface{})
		assert.Equal(t, "cancelled", data["fulfillment_status"])
	})

	t.Run("Cancelling twice is refused", func(t *testing.T) {
		w := doJSON(aliceRouter, http.MethodPost, path+"/cancel", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "INVALID_TRANSITION", errorCode(t, w))
	})

	t.Run("Owner deletes the cancelled order", func(t *testing.T) {
		w := doJSON(aliceRouter, http.MethodDelete, path, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = doJSON(aliceRouter, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
