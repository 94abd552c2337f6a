package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"useraccounts/internal/logger"
	"useraccounts/internal/models"
	"useraccounts/internal/services"
)

type AuthHandler struct {
	authService services.AuthService
	log         *zap.Logger
}

func NewAuthHandler(authService services.AuthService, l *zap.Logger) *AuthHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &AuthHandler{authService: authService, log: l}
}

// @Summary      Получение токена
// @Description  Проверяет email и пароль и возвращает постоянный токен аккаунта
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.LoginRequest  true  "Данные для входа"
// @Success      200    {object}  services.TokenResult
// @Failure      400    {object}  ErrorResponse
// @Failure      500    {object}  ErrorResponse
// @Router       /auth/ [post]
func (h *AuthHandler) ObtainToken(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.authService.ObtainToken(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, "auth.obtain_token", err)
		return
	}

	logger.Debug(c.Request.Context(), h.log, "[auth][token] issued", zap.String("user_id", res.UserID.String()))
	c.JSON(http.StatusOK, res)
}
