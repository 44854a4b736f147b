package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openhelm/supportdesk/internal/events"
	"github.com/openhelm/supportdesk/internal/services"
)

type AdminHandler struct {
	Consistency services.ConsistencyService
	Dispatcher  *events.Dispatcher
}

// RunSweep triggers a consistency sweep outside the ticker schedule.
func (h *AdminHandler) RunSweep(c *gin.Context) {
	report := h.Consistency.RunSweep(c.Request.Context())

	status := http.StatusOK
	if len(report.Errors) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, report)
}

// DrainQueue flushes the pending event queue immediately.
func (h *AdminHandler) DrainQueue(c *gin.Context) {
	n := h.Dispatcher.Drain(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"dispatched": n})
}
