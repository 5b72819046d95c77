package request_models

type ChatRequest struct {
	Message string `json:"message" binding:"required,max=500"`
}

type FaqRequest struct {
	Question string   `json:"question" binding:"required,max=500"`
	Answer   string   `json:"answer" binding:"required"`
	Keywords []string `json:"keywords"`
	IsActive *bool    `json:"is_active"`
}
