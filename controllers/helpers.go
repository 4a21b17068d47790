package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sortirkopi/bean-order-api/apperror"
	"github.com/sortirkopi/bean-order-api/config"
	"github.com/sortirkopi/bean-order-api/logging"
	"github.com/sortirkopi/bean-order-api/middleware"
	"github.com/sortirkopi/bean-order-api/models"
	"github.com/sortirkopi/bean-order-api/utils"
	"gorm.io/gorm"
)

// statusForKind maps error kinds onto HTTP status codes
var statusForKind = map[apperror.Kind]int{
	apperror.KindInvalidWeight:     http.StatusBadRequest,
	apperror.KindInvalidTransition: http.StatusConflict,
	apperror.KindAmountMismatch:    http.StatusUnprocessableEntity,
	apperror.KindAlreadyVerified:   http.StatusConflict,
	apperror.KindNotFound:          http.StatusNotFound,
	apperror.KindUpstreamFailure:   http.StatusBadGateway,
	apperror.KindInvalid:           http.StatusBadRequest,
	apperror.KindForbidden:         http.StatusForbidden,
}

func errorResponse(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondError renders err in the standard error envelope
func respondError(c *gin.Context, err error) {
	var appErr *apperror.Error
	var fileErr *utils.FileUploadError
	var authErr *middleware.AuthError

	switch {
	case errors.As(err, &appErr):
		status, ok := statusForKind[appErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		if appErr.Kind == apperror.KindUpstreamFailure {
			logging.From(c).Error("upstream failure", "code", appErr.Code, "error", err)
		}
		errorResponse(c, status, appErr.Code, appErr.Message)
	case errors.As(err, &fileErr):
		errorResponse(c, http.StatusBadRequest, fileErr.Code, fileErr.Message)
	case errors.As(err, &authErr):
		errorResponse(c, http.StatusUnauthorized, authErr.Code, authErr.Message)
	default:
		logging.From(c).Error("unhandled error", "error", err)
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
	_ = c.Error(err)
}

func validationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid request data",
			"details": err.Error(),
		},
	})
}

// currentUser loads the caller's profile. It writes the error response and
// returns false when the caller has no usable profile.
func currentUser(c *gin.Context) (*models.User, bool) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return nil, false
	}

	var user models.User
	err = config.GetDB().WithContext(c.Request.Context()).Where("auth0_id = ?", auth0ID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		errorResponse(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
		return nil, false
	}
	if err != nil {
		respondError(c, apperror.Upstream("Failed to load user profile", err))
		return nil, false
	}
	return &user, true
}

// idParam parses the :id route parameter
func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		errorResponse(c, http.StatusBadRequest, "INVALID_ID", "Order ID must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

// pageParams reads ?page=&limit= with defaults 1 and 20, limit capped at 100
func pageParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
