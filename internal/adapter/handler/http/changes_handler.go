package http

import (
	"context"
	"net/http"
	"time"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"

	"github.com/gin-gonic/gin"
)

type markerSource interface {
	Markers(ctx context.Context) (map[domain.Collection]int64, error)
}

// ChangesHandler exposes change markers. Observers poll GET /changes or keep a
// websocket on /ws/changes and re-fetch a collection whose marker moved.
type ChangesHandler struct {
	markers markerSource
	ws      gin.HandlerFunc
	metrics ports.MetricsPort
}

func NewChangesHandler(markers markerSource, ws gin.HandlerFunc, metrics ports.MetricsPort) *ChangesHandler {
	return &ChangesHandler{markers: markers, ws: ws, metrics: metrics}
}

// @Summary Маркеры изменений
// @Description Последний маркер каждой наблюдаемой коллекции (мс)
// @Tags changes
// @Produce json
// @Success 200 {object} map[string]int64 "Маркеры"
// @Router /changes [get]
func (h *ChangesHandler) GetChanges(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.RecordMetrics(c, start)
	}()

	markers, err := h.markers.Markers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, markers)
}

func (h *ChangesHandler) Subscribe(c *gin.Context) {
	h.ws(c)
}
