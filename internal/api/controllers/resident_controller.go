package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"barangay/internal/models/request_models"
	"barangay/internal/services"
	"barangay/pkg/middleware"
	"barangay/pkg/utils"
)

type ResidentController struct {
	residentService services.ResidentService
}

func NewResidentController(residentService services.ResidentService) *ResidentController {
	return &ResidentController{residentService: residentService}
}

// GetMine godoc
// @Summary Current resident profile
// @Tags Residents
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /residents/me [get]
func (r *ResidentController) GetMine(c *gin.Context) {
	resident, err := r.residentService.GetMine(c.Request.Context(), middleware.SessionFrom(c))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, resident, "Resident fetched successfully")
}

// UpdateMine godoc
// @Summary Update the current resident profile
// @Tags Residents
// @Accept json
// @Produce json
// @Param request body request_models.UpdateResidentRequest true "Profile"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /residents/me [put]
func (r *ResidentController) UpdateMine(c *gin.Context) {
	var req request_models.UpdateResidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}
	resident, err := r.residentService.UpdateMine(c.Request.Context(), middleware.SessionFrom(c), req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, resident, "Resident updated successfully")
}

// UpdateMyAddress godoc
// @Summary Set the current resident's address
// @Tags Residents
// @Accept json
// @Produce json
// @Param request body request_models.AddressInput true "Address"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /residents/me/address [put]
func (r *ResidentController) UpdateMyAddress(c *gin.Context) {
	var req request_models.AddressInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}
	resident, err := r.residentService.UpdateMyAddress(c.Request.Context(), middleware.SessionFrom(c), req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, resident, "Address updated successfully")
}

// GetByID godoc
// @Summary Get a resident
// @Tags Admin
// @Produce json
// @Param id path int true "Resident ID"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/residents/{id} [get]
func (r *ResidentController) GetByID(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	resident, err := r.residentService.GetByID(c.Request.Context(), middleware.SessionFrom(c), id)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, resident, "Resident fetched successfully")
}

// Delete godoc
// @Summary Delete a resident and their closed requests
// @Description Refused with 409 while the resident has any open request
// @Tags Admin
// @Produce json
// @Param id path int true "Resident ID"
// @Success 200 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/residents/{id} [delete]
func (r *ResidentController) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := r.residentService.Delete(c.Request.Context(), middleware.SessionFrom(c), id); err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, nil, "Resident deleted successfully")
}
