package handler

import (
	"net/http"

	"github.com/classquiz/classquiz-backend/internal/middleware"
	"github.com/classquiz/classquiz-backend/internal/response"
	"github.com/classquiz/classquiz-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// DashboardHandler handles the teacher dashboard endpoint.
type DashboardHandler struct {
	dashboardService *service.DashboardService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboardService *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// GetDashboardData godoc
// GET /api/v1/dashboard
// Returns summary counts, quiz status distribution and recent quizzes.
func (h *DashboardHandler) GetDashboardData(c *gin.Context) {
	data, err := h.dashboardService.GetDashboardData(c.Request.Context(), middleware.GetClaims(c).UserID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, data)
}
