package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"barangay/internal/models/request_models"
	"barangay/internal/services"
	"barangay/pkg/middleware"
	"barangay/pkg/utils"
)

type ChatController struct {
	chatService services.ChatService
}

func NewChatController(chatService services.ChatService) *ChatController {
	return &ChatController{chatService: chatService}
}

// Reply godoc
// @Summary Ask the help desk
// @Description Answers with a request's live status when the message has a reference number, otherwise from the FAQ
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body request_models.ChatRequest true "Message"
// @Success 200 {object} utils.APIResponse
// @Router /chat [post]
func (h *ChatController) Reply(c *gin.Context) {
	var req request_models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}
	out, err := h.chatService.Reply(c.Request.Context(), req.Message)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, out, "")
}

// ListFaqs godoc
// @Summary List FAQ entries
// @Tags Admin
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/faqs [get]
func (h *ChatController) ListFaqs(c *gin.Context) {
	out, err := h.chatService.ListFaqs(c.Request.Context(), middleware.SessionFrom(c))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, out, "FAQs fetched successfully")
}

// CreateFaq godoc
// @Summary Add an FAQ entry
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body request_models.FaqRequest true "FAQ"
// @Success 201 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/faqs [post]
func (h *ChatController) CreateFaq(c *gin.Context) {
	var req request_models.FaqRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}
	out, err := h.chatService.CreateFaq(c.Request.Context(), middleware.SessionFrom(c), req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondWithCode(c, http.StatusCreated, out, "FAQ created")
}

// DeleteFaq godoc
// @Summary Remove an FAQ entry
// @Tags Admin
// @Param id path int true "FAQ ID"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/faqs/{id} [delete]
func (h *ChatController) DeleteFaq(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.chatService.DeleteFaq(c.Request.Context(), middleware.SessionFrom(c), id); err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, nil, "FAQ deleted")
}
