package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"
	"github.com/sm8ta/webike_rental_nikita/internal/core/services"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	messageService *services.MessageService
	logger         ports.LoggerPort
	metrics        ports.MetricsPort
}

type MessageRequest struct {
	Name    string `json:"name" example:"Jane"`
	Email   string `json:"email" example:"jane@example.com"`
	Subject string `json:"subject,omitempty" example:"Flat tyre"`
	Message string `json:"message" example:"Bike 2 has a flat tyre"`
}

type ReplyRequest struct {
	Response string `json:"response" example:"Fixed, thanks!"`
}

type GetMessagesResponse struct {
	Messages []domain.Message `json:"messages"`
	Count    int              `json:"count"`
}

func NewMessageHandler(messageService *services.MessageService, logger ports.LoggerPort, metrics ports.MetricsPort) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		logger:         logger,
		metrics:        metrics,
	}
}

// @Summary Отправить сообщение
// @Tags messages
// @Accept json
// @Produce json
// @Param request body MessageRequest true "Сообщение"
// @Success 201 {object} domain.Message "Сообщение сохранено"
// @Failure 400 {object} errorResponse "Неверный запрос"
// @Router /messages [post]
func (h *MessageHandler) SaveMessage(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	msg, err := h.messageService.Save(c.Request.Context(), domain.Message{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// @Summary Все сообщения
// @Tags messages
// @Security BearerAuth
// @Produce json
// @Success 200 {object} GetMessagesResponse "Список сообщений"
// @Router /messages [get]
func (h *MessageHandler) ListMessages(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	msgs, err := h.messageService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GetMessagesResponse{Messages: msgs, Count: len(msgs)})
}

// @Summary Ответить на сообщение
// @Tags messages
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "ID сообщения"
// @Param request body ReplyRequest true "Ответ"
// @Success 200 {object} domain.Message "Ответ сохранен"
// @Failure 404 {object} errorResponse "Сообщение не найдено"
// @Router /messages/{id}/reply [post]
func (h *MessageHandler) ReplyMessage(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		newErrorResponse(c, http.StatusBadRequest, "Invalid message ID")
		return
	}

	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	msg, err := h.messageService.Reply(c.Request.Context(), id, req.Response)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}
