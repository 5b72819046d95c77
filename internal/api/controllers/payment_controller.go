package controllers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	dbm "barangay/internal/models/db_models"
	"barangay/internal/models/request_models"
	"barangay/internal/services"
	"barangay/pkg/middleware"
	"barangay/pkg/utils"
)

const maxWebhookBody = 1 << 20

type PaymentController struct {
	paymentService services.PaymentService
	reportService  services.ReportService
}

func NewPaymentController(paymentService services.PaymentService, reportService services.ReportService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		reportService:  reportService,
	}
}

// Initiate godoc
// @Summary Start an online payment for a request
// @Description Returns the hosted checkout URL. Repeating the call while the checkout is pending returns the same checkout.
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path int true "Request ID"
// @Param request body request_models.InitiatePaymentRequest true "Delivery method"
// @Success 200 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Failure 412 {object} utils.APIResponse
// @Failure 502 {object} utils.APIResponse
// @Security BearerAuth
// @Router /requests/{id}/payments [post]
func (p *PaymentController) Initiate(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var request request_models.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	out, err := p.paymentService.Initiate(c.Request.Context(), middleware.SessionFrom(c), id, request.DeliveryMethod)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, out, "Checkout created successfully")
}

// Cancel godoc
// @Summary Cancel a pending payment
// @Tags Payments
// @Produce json
// @Param id path int true "Request ID"
// @Param txn path string true "Transaction reference"
// @Success 200 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /requests/{id}/payments/{txn}/cancel [post]
func (p *PaymentController) Cancel(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	out, err := p.paymentService.Cancel(c.Request.Context(), middleware.SessionFrom(c), id, c.Param("txn"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, out, "Payment cancelled")
}

// Status godoc
// @Summary Reconcile and report a payment's status
// @Tags Payments
// @Produce json
// @Param id path int true "Request ID"
// @Param txn path string true "Transaction reference"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /requests/{id}/payments/{txn}/status [get]
func (p *PaymentController) Status(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	out, err := p.paymentService.ReconcileStatus(c.Request.Context(), middleware.SessionFrom(c), id, c.Param("txn"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, out, "Payment status fetched")
}

// ListForRequest godoc
// @Summary List a request's payments
// @Tags Payments
// @Produce json
// @Param id path int true "Request ID"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /requests/{id}/payments [get]
func (p *PaymentController) ListForRequest(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	out, err := p.paymentService.ListForRequest(c.Request.Context(), middleware.SessionFrom(c), id)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, out, "Payments fetched successfully")
}

// Return godoc
// @Summary Gateway return page
// @Description Reconciles the payment. When the stored status belongs on another outcome page the caller is redirected there.
// @Tags Payments
// @Produce json
// @Param outcome path string true "success | failed | cancelled"
// @Param requestId query int true "Request ID"
// @Param transactionId query string true "Transaction reference"
// @Success 200 {object} utils.APIResponse
// @Success 302
// @Router /payments/return/{outcome} [get]
func (p *PaymentController) Return(c *gin.Context) {
	outcome := c.Param("outcome")
	switch outcome {
	case services.OutcomeSuccess, services.OutcomeFailed, services.OutcomeCancelled:
	default:
		utils.RespondError(c, http.StatusNotFound, "Unknown payment outcome")
		return
	}
	var q request_models.PaymentReturnQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "requestId and transactionId are required")
		return
	}

	out, err := p.paymentService.ReturnStatus(c.Request.Context(), q.RequestID, q.TransactionID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	if want := services.ReturnOutcome(dbm.PaymentStatus(out.Status)); want != "" && want != outcome {
		c.Redirect(http.StatusFound, services.ReturnURL("", want, q.RequestID, q.TransactionID))
		return
	}
	utils.RespondSuccess(c, out, "Payment status fetched")
}

// Webhook godoc
// @Summary Gateway notification
// @Description The body is only a hint; the status is re-read from the gateway before anything is written.
// @Tags Payments
// @Accept json
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Router /payments/webhook [post]
func (p *PaymentController) Webhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid webhook body")
		return
	}
	if err := p.paymentService.HandleWebhook(c.Request.Context(), body, c.Request.Header); err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, nil, "Webhook processed")
}

// CreateManual godoc
// @Summary Record an offline payment
// @Description multipart/form-data; proof_of_payment is an optional image or PDF
// @Tags Admin
// @Accept mpfd
// @Produce json
// @Param id path int true "Request ID"
// @Success 201 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/requests/{id}/payments [post]
func (p *PaymentController) CreateManual(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var request request_models.ManualPaymentRequest
	if err := c.ShouldBind(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}
	in := services.ManualPaymentInput{
		Amount:        request.Amount,
		PaymentMethod: request.PaymentMethod,
		PaymentStatus: request.PaymentStatus,
		Notes:         request.Notes,
		ReceiptNumber: request.ReceiptNumber,
	}

	if fh, err := c.FormFile("proof_of_payment"); err == nil {
		files, closeFiles, err := openFiles([]*multipart.FileHeader{fh})
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, "Could not read proof of payment")
			return
		}
		defer closeFiles()
		in.Proof = &files[0]
	} else if !errors.Is(err, http.ErrMissingFile) && isMultipart(c) {
		utils.RespondError(c, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	out, err := p.paymentService.CreateManualPayment(c.Request.Context(), middleware.SessionFrom(c), id, in)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondWithCode(c, http.StatusCreated, out, "Payment recorded")
}

// UpdateStatus godoc
// @Summary Correct a payment's status
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path int true "Payment ID"
// @Param request body request_models.UpdatePaymentStatusRequest true "Status"
// @Success 200 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/payments/{id}/status [post]
func (p *PaymentController) UpdateStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var request request_models.UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}
	out, err := p.paymentService.UpdatePaymentStatus(c.Request.Context(), middleware.SessionFrom(c), id, request.Status, request.Notes)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, out, "Payment updated")
}

// ListAll godoc
// @Summary List payments
// @Tags Admin
// @Produce json
// @Param status query string false "Payment status"
// @Param payment_method query string false "Payment method"
// @Param from query string false "YYYY-MM-DD (Manila)"
// @Param to query string false "YYYY-MM-DD (Manila), inclusive"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/payments [get]
func (p *PaymentController) ListAll(c *gin.Context) {
	var q request_models.ListPaymentsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}
	out, err := p.paymentService.ListAll(c.Request.Context(), middleware.SessionFrom(c), q)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, out, "Payments fetched successfully")
}

// Export godoc
// @Summary Download payments as an Excel workbook
// @Tags Admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param status query string false "Payment status"
// @Param from query string false "YYYY-MM-DD (Manila)"
// @Param to query string false "YYYY-MM-DD (Manila), inclusive"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /admin/payments/export [get]
func (p *PaymentController) Export(c *gin.Context) {
	var q request_models.ListPaymentsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}
	buf, filename, err := p.reportService.ExportPayments(c.Request.Context(), middleware.SessionFrom(c), q)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
