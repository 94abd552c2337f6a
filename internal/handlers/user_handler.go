package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"useraccounts/internal/models"
	"useraccounts/internal/services"
)

type UserHandler struct {
	service     services.UserService
	exposeLinks bool
	log         *zap.Logger
}

// exposeLinks включает ссылки в тело ответа (когда SMTP нет под рукой)
func NewUserHandler(service services.UserService, exposeLinks bool, l *zap.Logger) *UserHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &UserHandler{service: service, exposeLinks: exposeLinks, log: l}
}

type RegisterResponse struct {
	Detail         string            `json:"detail"`
	User           models.PublicUser `json:"user"`
	ActivationLink string            `json:"activation_link,omitempty"`
}

type ChangeEmailResponse struct {
	Message          string            `json:"message"`
	User             models.PublicUser `json:"user"`
	VerificationLink string            `json:"verification_link,omitempty"`
}

// @Summary      Регистрация
// @Description  Создаёт неактивный аккаунт и отправляет ссылку активации
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        user  body      models.RegisterRequest  true  "Данные пользователя"
// @Success      201   {object}  RegisterResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /register/ [post]
func (h *UserHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, "users.register", err)
		return
	}

	resp := RegisterResponse{Detail: "User created successfully.", User: res.User.Public()}
	if h.exposeLinks {
		resp.ActivationLink = res.ActivationLink
	}
	c.JSON(http.StatusCreated, resp)
}

// @Summary      Активация аккаунта
// @Tags         Users
// @Produce      json
// @Param        token  query     string  true  "Токен из письма"
// @Success      200    {object}  MessageResponse
// @Failure      400    {object}  ErrorResponse
// @Failure      404    {object}  ErrorResponse
// @Router       /activate/ [get]
func (h *UserHandler) Activate(c *gin.Context) {
	alreadyActive, err := h.service.Activate(c.Request.Context(), linkToken(c))
	if err != nil {
		respondError(c, h.log, "users.activate", err)
		return
	}
	if alreadyActive {
		c.JSON(http.StatusOK, MessageResponse{Message: "User is already active."})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "User activated successfully."})
}

// @Summary      Профиль текущего пользователя
// @Tags         Users
// @Produce      json
// @Security     TokenAuth
// @Success      200  {object}  models.PublicUser
// @Failure      401  {object}  ErrorResponse
// @Router       /profile/ [get]
func (h *UserHandler) Profile(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, u.Public())
}

// @Summary      Редактирование профиля
// @Description  Меняет имя и/или фамилию. Если ничего не изменилось, вернёт 400
// @Tags         Users
// @Accept       json
// @Produce      json
// @Security     TokenAuth
// @Param        profile  body      models.UpdateProfileRequest  true  "Новые значения"
// @Success      200      {object}  models.PublicUser
// @Failure      400      {object}  ErrorResponse
// @Failure      401      {object}  ErrorResponse
// @Router       /edit-profile/ [put]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.service.UpdateProfile(c.Request.Context(), u.ID, req)
	if err != nil {
		respondError(c, h.log, "users.update_profile", err)
		return
	}
	c.JSON(http.StatusOK, updated.Public())
}

// @Summary      Список пользователей
// @Tags         Users
// @Produce      json
// @Security     TokenAuth
// @Param        limit   query     int  false  "Сколько записей вернуть"
// @Param        offset  query     int     false  "Смещение, работает и без limit"
// @Param        email   query     string  false  "Поиск по части email"
// @Success      200     {array}   models.PublicUser
// @Failure      400     {object}  ErrorResponse
// @Failure      401     {object}  ErrorResponse
// @Router       /user-list/ [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		respondError(c, h.log, "users.list", err)
		return
	}

	filter := models.UserFilter{Email: c.Query("email"), Limit: limit, Offset: offset}
	users, err := h.service.ListUsers(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.log, "users.list", err)
		return
	}
	c.JSON(http.StatusOK, models.PublicUsers(users))
}

// @Summary      Смена email
// @Description  Сохраняет новый адрес как неподтверждённый и отправляет на него ссылку
// @Tags         Users
// @Accept       json
// @Produce      json
// @Security     TokenAuth
// @Param        email  body      models.ChangeEmailRequest  true  "Новый email"
// @Success      200    {object}  ChangeEmailResponse
// @Failure      400    {object}  ErrorResponse
// @Failure      401    {object}  ErrorResponse
// @Router       /change-email/ [put]
func (h *UserHandler) ChangeEmail(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.ChangeEmailRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.service.RequestEmailChange(c.Request.Context(), u.ID, req)
	if err != nil {
		respondError(c, h.log, "users.change_email", err)
		return
	}

	resp := ChangeEmailResponse{Message: "Confirmation link sent to the new email.", User: res.User.Public()}
	if h.exposeLinks {
		resp.VerificationLink = res.VerificationLink
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Подтверждение email
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        token  query     string                      true  "Токен из письма"
// @Param        body   body      models.VerifyEmailRequest   true  "Подтверждаемый email"
// @Success      200    {object}  MessageResponse
// @Failure      400    {object}  ErrorResponse
// @Failure      404    {object}  ErrorResponse
// @Router       /verified-email/ [put]
func (h *UserHandler) VerifyEmail(c *gin.Context) {
	var req models.VerifyEmailRequest
	if !bindJSON(c, &req) {
		return
	}
	if t := linkToken(c); t != "" {
		req.Token = t
	}

	if err := h.service.ConfirmEmail(c.Request.Context(), req); err != nil {
		respondError(c, h.log, "users.verify_email", err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Email verified successfully."})
}
