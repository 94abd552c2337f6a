package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"useraccounts/internal/logger"
	"useraccounts/internal/middleware"
	"useraccounts/internal/models"
	"useraccounts/internal/services"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation, services.KindAuthorization, services.KindConflict:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError переводит доменную ошибку в HTTP-ответ.
// Внутренние ошибки наружу не отдаём, только в лог.
func respondError(c *gin.Context, l *zap.Logger, op string, err error) {
	var domainErr *services.Error
	if !errors.As(err, &domainErr) || domainErr.Kind == services.KindInternal {
		logger.Error(c.Request.Context(), l, "request failed", zap.String("op", op), zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(statusFor(domainErr.Kind), ErrorResponse{Error: domainErr.Message, Fields: domainErr.Fields})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func currentUser(c *gin.Context) (*models.User, bool) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication credentials were not provided"})
	}
	return u, ok
}

// linkToken читает токен ссылки; uuid оставлен для старых писем
func linkToken(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	return c.Query("uuid")
}

// pagination reads optional limit/offset. Absent limit means "all rows";
// offset still skips rows then.
func pagination(c *gin.Context) (limit, offset int, err error) {
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			return 0, 0, &services.Error{Kind: services.KindValidation, Message: "invalid pagination", Fields: map[string]string{"limit": "must be a non-negative integer"}}
		}
	}
	if v := c.Query("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, &services.Error{Kind: services.KindValidation, Message: "invalid pagination", Fields: map[string]string{"offset": "must be a non-negative integer"}}
		}
	}
	return limit, offset, nil
}
