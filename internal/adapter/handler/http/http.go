package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"

	"github.com/gin-gonic/gin"
)

type BikeHandler struct {
	bikeService ports.BikeService
	logger      ports.LoggerPort
	metrics     ports.MetricsPort
}

type BikeRequest struct {
	Name        string  `json:"name" binding:"required" example:"Mountain Bike Pro"`
	Type        string  `json:"type" binding:"required" example:"Mountain"`
	Price       float64 `json:"price" example:"50"`
	Image       string  `json:"image,omitempty" example:"mountain-bike-1.jpeg"`
	Available   *bool   `json:"available,omitempty" example:"true"`
	Description string  `json:"description,omitempty" example:"Perfect for off-road trails"`
}

type UpdateBike struct {
	Name        *string  `json:"name,omitempty" example:"Road Bike Speed"`
	Type        *string  `json:"type,omitempty" example:"Road"`
	Price       *float64 `json:"price,omitempty" example:"80"`
	Image       *string  `json:"image,omitempty"`
	Available   *bool    `json:"available,omitempty"`
	Description *string  `json:"description,omitempty"`
}

type GetBikesResponse struct {
	Bikes []domain.Bike `json:"bikes"`
	Count int           `json:"count"`
}

func NewBikeHandler(
	bikeService ports.BikeService,
	logger ports.LoggerPort,
	metrics ports.MetricsPort,
) *BikeHandler {
	return &BikeHandler{
		bikeService: bikeService,
		logger:      logger,
		metrics:     metrics,
	}
}

// @Summary Список байков
// @Description Каталог всех байков
// @Tags bikes
// @Produce json
// @Success 200 {object} GetBikesResponse "Список байков"
// @Failure 500 {object} errorResponse "Внутренняя ошибка сервера"
// @Router /bikes [get]
func (h *BikeHandler) ListBikes(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	bikes, err := h.bikeService.ListBikes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GetBikesResponse{Bikes: bikes, Count: len(bikes)})
}

// @Summary Получить байк
// @Description Получение информации о байке по ID
// @Tags bikes
// @Produce json
// @Param id path int true "ID байка" example:"1"
// @Success 200 {object} domain.Bike "Байк найден"
// @Failure 400 {object} errorResponse "Неверный ID"
// @Failure 404 {object} errorResponse "Байк не найден"
// @Router /bikes/{id} [get]
func (h *BikeHandler) GetBike(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	bikeID, ok := bikeIDParam(c)
	if !ok {
		return
	}

	bike, err := h.bikeService.GetBikeByID(c.Request.Context(), bikeID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bike)
}

// @Summary Создать байк
// @Description Добавление байка в каталог
// @Tags bikes
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body BikeRequest true "Данные байка"
// @Success 201 {object} domain.Bike "Байк создан"
// @Failure 400 {object} errorResponse "Неверный запрос"
// @Failure 401 {object} errorResponse "Не авторизован"
// @Failure 403 {object} errorResponse "Доступ запрещен"
// @Router /bikes [post]
func (h *BikeHandler) CreateBike(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	var req BikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Failed JSON parse in create bike", map[string]interface{}{
			"error": err.Error(),
		})
		newErrorResponse(c, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	bike := &domain.Bike{
		Name:        req.Name,
		Type:        domain.BikeType(req.Type),
		Price:       req.Price,
		Image:       req.Image,
		Available:   req.Available == nil || *req.Available,
		Description: req.Description,
	}

	created, err := h.bikeService.CreateBike(c.Request.Context(), bike)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// @Summary Обновить байк
// @Description Частичное обновление данных байка
// @Tags bikes
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "ID байка"
// @Param request body UpdateBike true "Новые данные"
// @Success 200 {object} domain.Bike "Байк обновлен"
// @Failure 400 {object} errorResponse "Неверный запрос"
// @Failure 404 {object} errorResponse "Байк не найден"
// @Router /bikes/{id} [put]
func (h *BikeHandler) UpdateBike(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	bikeID, ok := bikeIDParam(c)
	if !ok {
		return
	}

	var req UpdateBike
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	patch := domain.BikePatch{
		Name:        req.Name,
		Price:       req.Price,
		Image:       req.Image,
		Available:   req.Available,
		Description: req.Description,
	}
	if req.Type != nil {
		bikeType := domain.BikeType(*req.Type)
		patch.Type = &bikeType
	}

	updated, err := h.bikeService.UpdateBike(c.Request.Context(), bikeID, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// @Summary Переключить доступность
// @Description Делает байк доступным или недоступным для аренды
// @Tags bikes
// @Security BearerAuth
// @Produce json
// @Param id path int true "ID байка"
// @Success 200 {object} domain.Bike "Байк обновлен"
// @Failure 404 {object} errorResponse "Байк не найден"
// @Router /bikes/{id}/toggle [put]
func (h *BikeHandler) ToggleBike(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	bikeID, ok := bikeIDParam(c)
	if !ok {
		return
	}

	bike, err := h.bikeService.ToggleAvailability(c.Request.Context(), bikeID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bike)
}

// @Summary Удалить байк
// @Description Удаление байка из каталога
// @Tags bikes
// @Security BearerAuth
// @Produce json
// @Param id path int true "ID байка"
// @Success 200 {object} messageResponse "Байк удален"
// @Failure 404 {object} errorResponse "Байк не найден"
// @Router /bikes/{id} [delete]
func (h *BikeHandler) DeleteBike(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	bikeID, ok := bikeIDParam(c)
	if !ok {
		return
	}

	if err := h.bikeService.DeleteBike(c.Request.Context(), bikeID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Bike deleted successfully"})
}

func bikeIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		newErrorResponse(c, http.StatusBadRequest, "Invalid bike ID")
		return 0, false
	}
	return id, true
}
