package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"useraccounts/internal/models"
	"useraccounts/internal/services"
)

type PasswordHandler struct {
	service     services.PasswordResetService
	exposeLinks bool
	log         *zap.Logger
}

func NewPasswordHandler(service services.PasswordResetService, exposeLinks bool, l *zap.Logger) *PasswordHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &PasswordHandler{service: service, exposeLinks: exposeLinks, log: l}
}

type ResetRequestedResponse struct {
	Message   string `json:"message"`
	ResetLink string `json:"reset_link,omitempty"`
}

// @Summary      Запрос на сброс пароля
// @Description  Отправляет на email ссылку для установки нового пароля
// @Tags         Password
// @Accept       json
// @Produce      json
// @Param        body  body      models.PasswordResetRequest  true  "Email аккаунта"
// @Success      200   {object}  ResetRequestedResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /reset-password/ [put]
func (h *PasswordHandler) RequestReset(c *gin.Context) {
	var req models.PasswordResetRequest
	if !bindJSON(c, &req) {
		return
	}

	link, err := h.service.RequestReset(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, "password.request_reset", err)
		return
	}

	resp := ResetRequestedResponse{Message: "Password reset link sent."}
	if h.exposeLinks {
		resp.ResetLink = link
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Установка нового пароля по ссылке
// @Tags         Password
// @Accept       json
// @Produce      json
// @Param        token  query     string                     true  "Токен из письма"
// @Param        body   body      models.NewPasswordRequest  true  "Новый пароль"
// @Success      200    {object}  MessageResponse
// @Failure      400    {object}  ErrorResponse
// @Failure      404    {object}  ErrorResponse
// @Router       /new-password/ [put]
func (h *PasswordHandler) NewPassword(c *gin.Context) {
	var req models.NewPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if t := linkToken(c); t != "" {
		req.Token = t
	}

	if err := h.service.ResetPassword(c.Request.Context(), req); err != nil {
		respondError(c, h.log, "password.reset", err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Password has been reset."})
}

// @Summary      Смена пароля
// @Tags         Password
// @Accept       json
// @Produce      json
// @Security     TokenAuth
// @Param        body  body      models.ChangePasswordRequest  true  "Старый и новый пароль"
// @Success      200   {object}  MessageResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Router       /change-password/ [put]
func (h *PasswordHandler) ChangePassword(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), u.ID, req); err != nil {
		respondError(c, h.log, "password.change", err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Password changed successfully."})
}
