package http

import (
	"net/http"
	"time"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"
	"github.com/sm8ta/webike_rental_nikita/internal/core/services"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	adminService *services.AdminService
	logger       ports.LoggerPort
	metrics      ports.MetricsPort
}

type AdminRequest struct {
	Email    string `json:"email" example:"admin@webike.ac.ke"`
	Password string `json:"password" example:"admin123"`
}

func NewAdminHandler(adminService *services.AdminService, logger ports.LoggerPort, metrics ports.MetricsPort) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		logger:       logger,
		metrics:      metrics,
	}
}

// @Summary Регистрация администратора
// @Tags admin
// @Accept json
// @Produce json
// @Param request body AdminRequest true "Email и пароль"
// @Success 201 {object} domain.Admin "Администратор создан"
// @Failure 400 {object} errorResponse "Неверный запрос"
// @Failure 409 {object} errorResponse "Email уже занят"
// @Router /admin/register [post]
func (h *AdminHandler) Register(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	var req AdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	admin, err := h.adminService.Register(c.Request.Context(), domain.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, admin)
}

// @Summary Вход администратора
// @Tags admin
// @Accept json
// @Produce json
// @Param request body AdminRequest true "Email и пароль"
// @Success 200 {object} services.AdminSession "Успешный вход"
// @Failure 401 {object} errorResponse "Неверные данные"
// @Router /admin/login [post]
func (h *AdminHandler) Login(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	var req AdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	session, err := h.adminService.Login(c.Request.Context(), domain.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// @Summary Выход администратора
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} messageResponse "Сессия закрыта"
// @Router /admin/logout [post]
func (h *AdminHandler) Logout(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	payload, exists := getAuthPayload(c, authorizationPayloadKey)
	if !exists {
		newErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err := h.adminService.Logout(c.Request.Context(), payload.SessionID.String()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Logged out"})
}
