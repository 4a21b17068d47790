package controllers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/sortirkopi/bean-order-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeImage returns proof bytes carrying the magic number of filename's extension
func fakeImage(filename string) []byte {
	headers := map[string]string{
		".png":  "\x89PNG\r\n\x1a\n",
		".jpg":  "\xff\xd8\xff\xe0",
		".jpeg": "\xff\xd8\xff\xe0",
		".webp": "RIFF\x24\x00\x00\x00WEBPVP8 ",
	}
	return []byte(headers[strings.ToLower(filepath.Ext(filename))] + "fake proof")
}

func paymentFields(order *models.Order) map[string]string {
	return map[string]string{
		"method":       "bca",
		"account_name": "Budi Santoso",
		"amount":       strconv.FormatInt(order.TotalPrice, 10),
	}
}

func TestSubmitPayment(t *testing.T) {
	db, images := setupServices(t)
	alice := createTestUser(t, db, "auth0|alice", models.RoleCustomer)
	bob := createTestUser(t, db, "auth0|bob", models.RoleCustomer)

	tests := []struct {
		name           string
		auth0ID        string
		mutate         func(fields map[string]string)
		filename       string
		content        []byte
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "Valid submission",
			auth0ID:        alice.Auth0ID,
			filename:       "transfer.png",
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Amount must equal the order total",
			auth0ID:        alice.Auth0ID,
			mutate:         func(f map[string]string) { f["amount"] = "389999" },
			filename:       "transfer.png",
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  "AMOUNT_MISMATCH",
		},
		{
			name:           "Amount must be an integer",
			auth0ID:        alice.Auth0ID,
			mutate:         func(f map[string]string) { f["amount"] = "390000.50" },
			filename:       "transfer.png",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "Unknown payment method",
			auth0ID:        alice.Auth0ID,
			mutate:         func(f map[string]string) { f["method"] = "paypal" },
			filename:       "transfer.png",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "Account name required",
			auth0ID:        alice.Auth0ID,
			mutate:         func(f map[string]string) { f["account_name"] = "   " },
			filename:       "transfer.png",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "Proof file required",
			auth0ID:        alice.Auth0ID,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "NO_FILE",
		},
		{
			name:           "Proof must be an image",
			auth0ID:        alice.Auth0ID,
			filename:       "transfer.gif",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_FILE_FORMAT",
		},
		{
			name:           "Proof content must match its extension",
			auth0ID:        alice.Auth0ID,
			filename:       "transfer.png",
			content:        []byte("<html>not a screenshot</html>"),
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_FILE_CONTENT",
		},
		{
			name:           "Only the owner can pay",
			auth0ID:        bob.Auth0ID,
			filename:       "transfer.png",
			expectedStatus: http.StatusForbidden,
			expectedError:  "FORBIDDEN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := placeOrder(t, alice, "30")
			before := images.Count()

			fields := paymentFields(order)
			if tt.mutate != nil {
				tt.mutate(fields)
			}
			content := tt.content
			if content == nil {
				content = fakeImage(tt.filename)
			}
			body, contentType := paymentForm(t, fields, tt.filename, content)

			router := newAPIRouter(tt.auth0ID, models.RoleCustomer)
			w := doMultipart(router, fmt.Sprintf("/orders/%d/payment", order.ID), body, contentType)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, errorCode(t, w))
				assert.Equal(t, before, images.Count(), "refused submissions leave no proof behind")
				return
			}

			data := decodeBody(t, w)["data"].(map[string]interface{})
			assert.Equal(t, "pending", data["status"])
			assert.Equal(t, "bca", data["method"])
			assert.Equal(t, float64(390000), data["amount"])
			assert.Contains(t, data["proof_image_url"], "https://")
			assert.True(t, images.ImageExists(data["proof_image_ref"].(string)))

			var reloaded models.Order
			require.NoError(t, db.First(&reloaded, order.ID).Error)
			assert.Equal(t, models.PaymentPending, reloaded.PaymentStatus)
		})
	}
}

func TestPaymentReviewFlow(t *testing.T) {
	db, images := setupServices(t)
	alice := createTestUser(t, db, "auth0|alice", models.RoleCustomer)
	admin := createTestUser(t, db, "auth0|admin", models.RoleAdmin)
	order := placeOrder(t, alice, "30")

	customerRouter := newAPIRouter(alice.Auth0ID, models.RoleCustomer)
	adminRouter := newAPIRouter(admin.Auth0ID, models.RoleAdmin)
	paymentPath := fmt.Sprintf("/orders/%d/payment", order.ID)
	adminPath := fmt.Sprintf("/admin/orders/%d", order.ID)

	submit := func(t *testing.T) map[string]interface{} {
		body, contentType := paymentForm(t, paymentFields(order), "transfer.jpg", fakeImage("transfer.jpg"))
		w := doMultipart(customerRouter, paymentPath, body, contentType)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		return decodeBody(t, w)["data"].(map[string]interface{})
	}

	w := doJSON(customerRouter, http.MethodGet, paymentPath, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "PAYMENT_NOT_FOUND", errorCode(t, w))

	first := submit(t)
	firstKey := first["proof_image_ref"].(string)

	// reject needs a reason
	w = doJSON(adminRouter, http.MethodPost, adminPath+"/payment/reject", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(adminRouter, http.MethodPost, adminPath+"/payment/reject", map[string]string{"reason": "Blurry proof"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rejected := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "rejected", rejected["status"])
	assert.Equal(t, "Blurry proof", rejected["rejection_reason"])

	// customer may resubmit after rejection; the old proof is removed
	second := submit(t)
	assert.Equal(t, "pending", second["status"])
	assert.Nil(t, second["rejection_reason"])
	assert.False(t, images.ImageExists(firstKey))

	w = doJSON(adminRouter, http.MethodPost, adminPath+"/payment/verify", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	verified := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "verified", verified["status"])
	assert.Equal(t, admin.Auth0ID, verified["verified_by"])
	assert.NotNil(t, verified["verified_at"])

	w = doJSON(adminRouter, http.MethodPost, adminPath+"/payment/verify", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// a verified payment is final
	body, contentType := paymentForm(t, paymentFields(order), "again.png", fakeImage("again.png"))
	w = doMultipart(customerRouter, paymentPath, body, contentType)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_VERIFIED", errorCode(t, w))

	// and the order can no longer be cancelled
	w = doJSON(customerRouter, http.MethodPost, fmt.Sprintf("/orders/%d/cancel", order.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(customerRouter, http.MethodGet, paymentPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	current := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "verified", current["status"])
	assert.Contains(t, current["proof_image_url"], second["proof_image_ref"])
}

func TestSubmitPayment_Notes(t *testing.T) {
	db, _ := setupServices(t)
	alice := createTestUser(t, db, "auth0|alice", models.RoleCustomer)
	router := newAPIRouter(alice.Auth0ID, models.RoleCustomer)

	tests := []struct {
		name     string
		notes    string
		expected interface{}
	}{
		{"Notes are trimmed", "  paid from mobile banking  ", "paid from mobile banking"},
		{"Blank notes are dropped", "   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := placeOrder(t, alice, "10")
			fields := paymentFields(order)
			fields["notes"] = tt.notes
			body, contentType := paymentForm(t, fields, "transfer.png", fakeImage("transfer.png"))

			w := doMultipart(router, fmt.Sprintf("/orders/%d/payment", order.ID), body, contentType)
			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
			data := decodeBody(t, w)["data"].(map[string]interface{})
			assert.Equal(t, tt.expected, data["notes"])
		})
	}
}
