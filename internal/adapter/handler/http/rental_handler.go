package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"
	"github.com/sm8ta/webike_rental_nikita/internal/core/services"

	"github.com/gin-gonic/gin"
)

type RentalHandler struct {
	rentalService ports.RentalService
	userService   *services.UserService
	logger        ports.LoggerPort
	metrics       ports.MetricsPort
	// timeout bounds one rental attempt, payment included.
	timeout time.Duration
}

type RentRequest struct {
	BikeID    int64  `json:"bikeId" binding:"required" example:"2"`
	Hours     int    `json:"hours" example:"3"`
	RegNumber string `json:"regNumber" example:"ENG-219-036/2025"`
	Provider  string `json:"provider" example:"M-Pesa"`
	Mobile    string `json:"mobile" example:"0712345678"`
	PIN       string `json:"pin" example:"1234"`
}

type RentResponse struct {
	RentalID      string    `json:"rental_id"`
	TransactionID string    `json:"transaction_id"`
	BikeID        int64     `json:"bike_id"`
	Hours         int       `json:"hours"`
	Amount        float64   `json:"amount"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
}

type GetRentalsResponse struct {
	Rentals []domain.Rental `json:"rentals"`
	Count   int             `json:"count"`
}

type GetTransactionsResponse struct {
	Transactions []domain.Transaction `json:"transactions"`
	Count        int                  `json:"count"`
}

func NewRentalHandler(
	rentalService ports.RentalService,
	userService *services.UserService,
	logger ports.LoggerPort,
	metrics ports.MetricsPort,
	timeout time.Duration,
) *RentalHandler {
	return &RentalHandler{
		rentalService: rentalService,
		userService:   userService,
		logger:        logger,
		metrics:       metrics,
		timeout:       timeout,
	}
}

// @Summary Арендовать байк
// @Description Оплата через мобильный кошелек и запись аренды
// @Tags rentals
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body RentRequest true "Данные аренды"
// @Success 201 {object} RentResponse "Аренда оформлена"
// @Failure 400 {object} errorResponse "Неверный запрос"
// @Failure 401 {object} errorResponse "Не авторизован"
// @Failure 402 {object} errorResponse "Платеж отклонен"
// @Failure 404 {object} errorResponse "Байк не найден"
// @Failure 409 {object} errorResponse "Байк недоступен"
// @Failure 500 {object} errorResponse "Платеж прошел, аренда не записана"
// @Router /rentals [post]
func (h *RentalHandler) Rent(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	payload, exists := getAuthPayload(c, authorizationPayloadKey)
	if !exists {
		newErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req RentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	receipt, err := h.rentalService.Rent(ctx, payload.SessionID.String(), domain.RentRequest{
		BikeID:    req.BikeID,
		Hours:     req.Hours,
		RegNumber: req.RegNumber,
		Provider:  req.Provider,
		Mobile:    req.Mobile,
		PIN:       req.PIN,
	})
	if err != nil {
		var ie *domain.InconsistencyError
		if errors.As(err, &ie) {
			h.logger.Error("Rental needs manual reconciliation", map[string]interface{}{
				"transaction_id": ie.TransactionID,
				"user":           payload.Subject,
			})
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RentResponse{
		RentalID:      receipt.RentalID,
		TransactionID: receipt.TransactionID,
		BikeID:        receipt.BikeID,
		Hours:         receipt.Hours,
		Amount:        receipt.Amount,
		StartDate:     receipt.StartDate,
		EndDate:       receipt.EndDate,
	})
}

// @Summary Мои аренды
// @Description Аренды текущего пользователя
// @Tags rentals
// @Security BearerAuth
// @Produce json
// @Success 200 {object} GetRentalsResponse "Список аренд"
// @Failure 401 {object} errorResponse "Не авторизован"
// @Router /rentals/my [get]
func (h *RentalHandler) GetMyRentals(c *gin.Context) {
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

	rentals, err := h.rentalService.ListRentalsByUser(c.Request.Context(), user.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GetRentalsResponse{Rentals: rentals, Count: len(rentals)})
}

// @Summary Все аренды
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} GetRentalsResponse "Список аренд"
// @Failure 403 {object} errorResponse "Доступ запрещен"
// @Router /rentals [get]
func (h *RentalHandler) ListRentals(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	rentals, err := h.rentalService.ListRentals(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GetRentalsResponse{Rentals: rentals, Count: len(rentals)})
}

// @Summary Все транзакции
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} GetTransactionsResponse "Список транзакций"
// @Failure 403 {object} errorResponse "Доступ запрещен"
// @Router /transactions [get]
func (h *RentalHandler) ListTransactions(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	txs, err := h.rentalService.ListTransactions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GetTransactionsResponse{Transactions: txs, Count: len(txs)})
}
