package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	ws "neighborly/internal/infrastructure/websocket"
)

type HealthHandler struct {
	wsManager *ws.Manager
	storeName string
}

func NewHealthHandler(wsManager *ws.Manager, storeName string) *HealthHandler {
	return &HealthHandler{
		wsManager: wsManager,
		storeName: storeName,
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"store":    h.storeName,
		"sessions": h.wsManager.SessionCount(),
		"time":     time.Now().Format(time.RFC3339),
	})
}
