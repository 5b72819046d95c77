package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"barangay/internal/models/request_models"
	"barangay/internal/services"
	"barangay/pkg/middleware"
	"barangay/pkg/utils"
)

type CertificateRequestController struct {
	requestService services.CertificateRequestService
}

func NewCertificateRequestController(requestService services.CertificateRequestService) *CertificateRequestController {
	return &CertificateRequestController{requestService: requestService}
}

// Create godoc
// @Summary File a certificate request
// @Description Accepts JSON, or multipart/form-data with an additional_info JSON field and documents files
// @Tags Requests
// @Accept json,mpfd
// @Produce json
// @Param request body request_models.CreateCertificateRequest true "Request"
// @Success 201 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Security BearerAuth
// @Router /requests [post]
func (r *CertificateRequestController) Create(c *gin.Context) {
	var req request_models.CreateCertificateRequest
	in := services.CreateRequestInput{}

	if isMultipart(c) {
		if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
			utils.RespondError(c, http.StatusBadRequest, "Invalid multipart form")
			return
		}
		if err := c.ShouldBind(&req); err != nil {
			utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
			return
		}
		if raw := c.PostForm("additional_info"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.AdditionalInfo); err != nil {
				utils.HandleServiceError(c, utils.NewValidationError(map[string]string{"additional_info": "must be a JSON object"}))
				return
			}
		}
		files, closeFiles, err := openFiles(c.Request.MultipartForm.File["documents"])
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, "Could not read uploaded documents")
			return
		}
		defer closeFiles()
		in.Documents = files
	} else if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	in.ResidentID = req.ResidentID
	in.CertificateType = req.CertificateType
	in.Purpose = req.Purpose
	in.AdditionalInfo = req.AdditionalInfo

	created, err := r.requestService.CreateRequest(c.Request.Context(), middleware.SessionFrom(c), in)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondWithCode(c, http.StatusCreated, created, "Request submitted successfully")
}

// GetByID godoc
// @Summary Get a certificate request
// @Tags Requests
// @Produce json
// @Param id path int true "Request ID"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /requests/{id} [get]
func (r *CertificateRequestController) GetByID(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	out, err := r.requestService.GetByID(c.Request.Context(), middleware.SessionFrom(c), id)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, out, "Request fetched successfully")
}

// GetByReference godoc
// @Summary Get a certificate request by reference number
// @Tags Requests
// @Produce json
// @Param reference path string true "Reference number"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /requests/reference/{reference} [get]
func (r *CertificateRequestController) GetByReference(c *gin.Context) {
	out, err := r.requestService.GetByReference(c.Request.Context(), middleware.SessionFrom(c), c.Param("reference"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, out, "Request fetched successfully")
}

// ListMine godoc
// @Summary List the caller's requests
// @Tags Requests
// @Produce json
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /requests/mine [get]
func (r *CertificateRequestController) ListMine(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(utils.DefaultPageSize)))

	out, err := r.requestService.ListMine(c.Request.Context(), middleware.SessionFrom(c), page, pageSize)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, out, "Requests fetched successfully")
}

// ListAll godoc
// @Summary List all requests
// @Tags Admin
// @Produce json
// @Param status query string false "Status"
// @Param certificate_type query string false "Certificate type"
// @Param resident_id query int false "Resident"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/requests [get]
func (r *CertificateRequestController) ListAll(c *gin.Context) {
	var q request_models.ListRequestsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}
	out, err := r.requestService.ListAll(c.Request.Context(), middleware.SessionFrom(c), q)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, out, "Requests fetched successfully")
}

type transitionFunc func(c *gin.Context, s utils.Session, id uint) (any, error)

// transition runs one admin lifecycle action against the :id request.
func (r *CertificateRequestController) transition(message string, fn transitionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		out, err := fn(c, middleware.SessionFrom(c), id)
		if err != nil {
			utils.HandleServiceError(c, err)
			return
		}
		utils.RespondSuccess(c, out, message)
	}
}

// MarkUnderReview godoc
// @Summary Start reviewing a request
// @Tags Admin
// @Param id path int true "Request ID"
// @Success 200 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/requests/{id}/review [post]
func (r *CertificateRequestController) MarkUnderReview() gin.HandlerFunc {
	return r.transition("Request is under review", func(c *gin.Context, s utils.Session, id uint) (any, error) {
		return r.requestService.MarkUnderReview(c.Request.Context(), s, id)
	})
}

// Approve godoc
// @Summary Approve a request for payment
// @Tags Admin
// @Param id path int true "Request ID"
// @Success 200 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/requests/{id}/approve [post]
func (r *CertificateRequestController) Approve() gin.HandlerFunc {
	return r.transition("Request approved for payment", func(c *gin.Context, s utils.Session, id uint) (any, error) {
		return r.requestService.ApproveForPayment(c.Request.Context(), s, id)
	})
}

// MarkReadyForPickup godoc
// @Summary Mark a request ready for pickup
// @Tags Admin
// @Param id path int true "Request ID"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/requests/{id}/ready [post]
func (r *CertificateRequestController) MarkReadyForPickup() gin.HandlerFunc {
	return r.transition("Request is ready for pickup", func(c *gin.Context, s utils.Session, id uint) (any, error) {
		return r.requestService.MarkReadyForPickup(c.Request.Context(), s, id)
	})
}

// MarkInTransit godoc
// @Summary Mark a request as shipped
// @Tags Admin
// @Param id path int true "Request ID"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/requests/{id}/in-transit [post]
func (r *CertificateRequestController) MarkInTransit() gin.HandlerFunc {
	return r.transition("Request is in transit", func(c *gin.Context, s utils.Session, id uint) (any, error) {
		return r.requestService.MarkInTransit(c.Request.Context(), s, id)
	})
}

// MarkCompleted godoc
// @Summary Complete a request
// @Tags Admin
// @Param id path int true "Request ID"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/requests/{id}/complete [post]
func (r *CertificateRequestController) MarkCompleted() gin.HandlerFunc {
	return r.transition("Request completed", func(c *gin.Context, s utils.Session, id uint) (any, error) {
		return r.requestService.MarkCompleted(c.Request.Context(), s, id)
	})
}

func (r *CertificateRequestController) remarks(c *gin.Context) (string, error) {
	var body request_models.RemarksRequest
	if c.Request.ContentLength == 0 {
		return "", nil
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		return "", utils.NewValidationError(map[string]string{"remarks": "must be at most 1000 characters"})
	}
	return body.Remarks, nil
}

// Reject godoc
// @Summary Reject a request
// @Description Cancels a pending checkout for the request, if any
// @Tags Admin
// @Accept json
// @Param id path int true "Request ID"
// @Param request body request_models.RemarksRequest false "Remarks"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/requests/{id}/reject [post]
func (r *CertificateRequestController) Reject() gin.HandlerFunc {
	return r.transition("Request rejected", func(c *gin.Context, s utils.Session, id uint) (any, error) {
		remarks, err := r.remarks(c)
		if err != nil {
			return nil, err
		}
		return r.requestService.Reject(c.Request.Context(), s, id, remarks)
	})
}

// Cancel godoc
// @Summary Cancel a request
// @Tags Admin
// @Accept json
// @Param id path int true "Request ID"
// @Param request body request_models.RemarksRequest false "Remarks"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/requests/{id}/cancel [post]
func (r *CertificateRequestController) Cancel() gin.HandlerFunc {
	return r.transition("Request cancelled", func(c *gin.Context, s utils.Session, id uint) (any, error) {
		remarks, err := r.remarks(c)
		if err != nil {
			return nil, err
		}
		return r.requestService.Cancel(c.Request.Context(), s, id, remarks)
	})
}

// Delete godoc
// @Summary Delete a request
// @Description Refused with 409 once the request is in the payment workflow
// @Tags Admin
// @Param id path int true "Request ID"
// @Success 200 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/requests/{id} [delete]
func (r *CertificateRequestController) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := r.requestService.Delete(c.Request.Context(), middleware.SessionFrom(c), id); err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, nil, "Request deleted successfully")
}
