package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"

	"github.com/gin-gonic/gin"
)

const authorizationPayloadKey = "authorization_payload"

type errorResponse struct {
	Message string `json:"message" example:"Error message"`
}

type messageResponse struct {
	Message string `json:"message" example:"Done"`
}

func newErrorResponse(c *gin.Context, statusCode int, message string) {
	c.AbortWithStatusJSON(statusCode, errorResponse{Message: message})
}

// AuthMiddleware verifies the bearer token and stores its payload on the context.
func AuthMiddleware(tokenService ports.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			newErrorResponse(c, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			newErrorResponse(c, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		payload, err := tokenService.VerifyToken(parts[1])
		if err != nil {
			newErrorResponse(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		c.Set(authorizationPayloadKey, payload)
		c.Next()
	}
}

// adminSessions is satisfied by services.AdminService.
type adminSessions interface {
	Current(ctx context.Context, sessionID string) (*domain.Admin, error)
}

// AdminMiddleware requires an admin token whose session is still open. It must
// run after AuthMiddleware.
func AdminMiddleware(admins adminSessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, exists := getAuthPayload(c, authorizationPayloadKey)
		if !exists {
			newErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if payload.Role != domain.AdminRole {
			newErrorResponse(c, http.StatusForbidden, "Access denied")
			return
		}
		if _, err := admins.Current(c.Request.Context(), payload.SessionID.String()); err != nil {
			newErrorResponse(c, http.StatusUnauthorized, "Admin session expired")
			return
		}
		c.Next()
	}
}

func getAuthPayload(c *gin.Context, key string) (*domain.TokenPayload, bool) {
	value, exists := c.Get(key)
	if !exists {
		return nil, false
	}
	payload, ok := value.(*domain.TokenPayload)
	return payload, ok
}

// errorStatus maps a service error to the status and message returned to the
// client. Internal details are never exposed.
func errorStatus(err error) (int, string) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Reason
	case errors.Is(err, domain.ErrPersistenceInconsistency):
		return http.StatusInternalServerError, domain.ErrPersistenceInconsistency.Error()
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrBikeUnavailable):
		return http.StatusConflict, domain.ErrBikeUnavailable.Error()
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized, domain.ErrNotAuthenticated.Error()
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, domain.ErrInvalidCredentials.Error()
	case errors.Is(err, domain.ErrPaymentDeclined):
		return http.StatusPaymentRequired, domain.ErrPaymentDeclined.Error()
	case errors.Is(err, domain.ErrBikeNotFound):
		return http.StatusNotFound, domain.ErrBikeNotFound.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "request timed out"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func respondError(c *gin.Context, err error) {
	status, message := errorStatus(err)
	newErrorResponse(c, status, message)
}
