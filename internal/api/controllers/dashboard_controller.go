package controllers

import (
	"github.com/gin-gonic/gin"

	"barangay/internal/services"
	"barangay/pkg/middleware"
	"barangay/pkg/utils"
)

type DashboardController struct {
	dashboardService services.DashboardService
}

func NewDashboardController(dashboardService services.DashboardService) *DashboardController {
	return &DashboardController{
		dashboardService: dashboardService,
	}
}

// GetDashboard godoc
// @Summary Get dashboard report
// @Description Fetch KPI blocks, requests by status and type, payment totals by status, and recent payments
// @Tags Admin
// @Accept json
// @Produce json
// @Param start query string false "YYYY-MM-DD, Manila time (default: 30 days before end)"
// @Param end   query string false "YYYY-MM-DD, Manila time, inclusive (default: today)"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 500 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/dashboard [get]
func (p *DashboardController) GetDashboard(c *gin.Context) {
	report, err := p.dashboardService.BuildDashboard(c.Request.Context(), middleware.SessionFrom(c), c.Query("start"), c.Query("end"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, report, "Dashboard data fetched successfully")
}
