package http

import (
	"net/http"
	"time"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"
	"github.com/sm8ta/webike_rental_nikita/internal/core/services"

	"github.com/gin-gonic/gin"
)

// AuthHandler serves user accounts: signup, login, profile and the admin
// console over users.
type AuthHandler struct {
	userService *services.UserService
	logger      ports.LoggerPort
	metrics     ports.MetricsPort
}

type SignupRequest struct {
	Fullname string `json:"fullname" example:"Jane Wanjiru"`
	Email    string `json:"email" example:"jane@example.com"`
	Password string `json:"password" example:"secret1"`
	Phone    string `json:"phone" example:"0712345678"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required" example:"jane@example.com"`
	Password string `json:"password" binding:"required" example:"secret1"`
}

type UpdateProfileRequest struct {
	Fullname string `json:"fullname" example:"Jane W."`
	Phone    string `json:"phone" example:"+254712345678"`
}

type UpdatePhotoRequest struct {
	Photo string `json:"photo" binding:"required" example:"data:image/png;base64,iVBORw0KGgo="`
}

type GetUsersResponse struct {
	Users []domain.User `json:"users"`
	Count int           `json:"count"`
}

func NewAuthHandler(userService *services.UserService, logger ports.LoggerPort, metrics ports.MetricsPort) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		logger:      logger,
		metrics:     metrics,
	}
}

// @Summary Регистрация
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Данные пользователя"
// @Success 201 {object} services.UserSession "Пользователь создан"
// @Failure 400 {object} errorResponse "Неверный запрос"
// @Failure 409 {object} errorResponse "Email уже занят"
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	session, err := h.userService.Signup(c.Request.Context(), domain.SignupRequest{
		Fullname: req.Fullname,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// @Summary Вход
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Email и пароль"
// @Success 200 {object} services.UserSession "Успешный вход"
// @Failure 401 {object} errorResponse "Неверные данные"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	session, err := h.userService.Login(c.Request.Context(), domain.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// @Summary Выход
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} messageResponse "Сессия закрыта"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	payload, exists := getAuthPayload(c, authorizationPayloadKey)
	if !exists {
		newErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err := h.userService.Logout(c.Request.Context(), payload.SessionID.String()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Logged out"})
}

// @Summary Профиль
// @Tags profile
// @Security BearerAuth
// @Produce json
// @Success 200 {object} domain.User "Текущий пользователь"
// @Failure 401 {object} errorResponse "Не авторизован"
// @Router /profile [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	payload, exists := getAuthPayload(c, authorizationPayloadKey)
	if !exists {
		newErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	user, err := h.userService.Profile(c.Request.Context(), payload.SessionID.String())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary Обновить профиль
// @Tags profile
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body UpdateProfileRequest true "Имя и телефон"
// @Success 200 {object} domain.User "Профиль обновлен"
// @Failure 400 {object} errorResponse "Неверный запрос"
// @Router /profile [put]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	payload, exists := getAuthPayload(c, authorizationPayloadKey)
	if !exists {
		newErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), payload.SessionID.String(), req.Fullname, req.Phone)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary Обновить фото
// @Tags profile
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body UpdatePhotoRequest true "Фото в формате data URL"
// @Success 200 {object} domain.User "Фото обновлено"
// @Failure 400 {object} errorResponse "Неверный файл"
// @Router /profile/photo [put]
func (h *AuthHandler) UpdatePhoto(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	payload, exists := getAuthPayload(c, authorizationPayloadKey)
	if !exists {
		newErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req UpdatePhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	user, err := h.userService.UpdatePhoto(c.Request.Context(), payload.SessionID.String(), req.Photo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary Все пользователи
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} GetUsersResponse "Список пользователей"
// @Failure 403 {object} errorResponse "Доступ запрещен"
// @Router /users [get]
func (h *AuthHandler) ListUsers(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	users, err := h.userService.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GetUsersResponse{Users: users, Count: len(users)})
}

// @Summary Удалить пользователя
// @Description Удаляет пользователя и его аренды. Транзакции сохраняются.
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param email path string true "Email пользователя"
// @Success 200 {object} messageResponse "Пользователь удален"
// @Failure 404 {object} errorResponse "Пользователь не найден"
// @Router /users/{email} [delete]
func (h *AuthHandler) DeleteUser(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	email := c.Param("email")
	if err := h.userService.DeleteUser(c.Request.Context(), email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "User deleted successfully"})
}
