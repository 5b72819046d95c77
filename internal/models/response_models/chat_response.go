package response_models

const (
	ChatSourceStatus   = "status"
	ChatSourceFaq      = "faq"
	ChatSourceAI       = "ai"
	ChatSourceFallback = "fallback"
)

type ChatResponse struct {
	Reply  string `json:"reply"`
	Source string `json:"source"`
}

type FaqResponse struct {
	ID       uint     `json:"id"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Keywords []string `json:"keywords"`
	IsActive bool     `json:"is_active"`
}
