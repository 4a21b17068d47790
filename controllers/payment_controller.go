package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sortirkopi/bean-order-api/models"
	"github.com/sortirkopi/bean-order-api/services"
)

// SubmitPayment handles POST /api/v1/orders/:id/payment
// Accepts multipart/form-data with fields method, account_name, amount,
// optional notes, and the proof image in "proof".
func SubmitPayment(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	amount, err := strconv.ParseInt(strings.TrimSpace(c.PostForm("amount")), 10, 64)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", "Amount must be a whole number of rupiah")
		return
	}

	var notes *string
	if v, ok := c.GetPostForm("notes"); ok {
		notes = &v
	}

	// A missing file is reported by the upload step, after the order checks
	proof, _ := c.FormFile("proof")

	payment, err := services.Get().Payments.SubmitWithProof(c.Request.Context(), services.SubmitPaymentInput{
		OrderID:     id,
		CustomerID:  user.ID,
		Method:      models.PaymentMethod(strings.ToLower(strings.TrimSpace(c.PostForm("method")))),
		AccountName: strings.TrimSpace(c.PostForm("account_name")),
		Amount:      amount,
		Notes:       notes,
	}, proof)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    payment,
	})
}

// GetPayment handles GET /api/v1/orders/:id/payment
func GetPayment(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	payment, err := services.Get().Payments.GetPayment(c.Request.Context(), user, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    payment,
	})
}
