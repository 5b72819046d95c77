package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	dbm "barangay/internal/models/db_models"
	"barangay/internal/models/request_models"
	resp "barangay/internal/models/response_models"
	"barangay/internal/repositories"
	"barangay/pkg/utils"
)

const fallbackReply = "Sorry, I did not understand that. You can ask about requirements, fees, payment, or send your reference number (REQ-YYYYMMDD-XXXXX) to check a request."

var referenceInText = regexp.MustCompile(`(?i)\bREQ-\d{8}-[A-Z0-9]{5}\b`)

type ChatService interface {
	Reply(ctx context.Context, message string) (*resp.ChatResponse, error)
	ListFaqs(ctx context.Context, s utils.Session) ([]resp.FaqResponse, error)
	CreateFaq(ctx context.Context, s utils.Session, req request_models.FaqRequest) (*resp.FaqResponse, error)
	DeleteFaq(ctx context.Context, s utils.Session, id uint) error
}

type chatService struct {
	faqs     repositories.FaqRepository
	requests repositories.CertificateRequestRepository
	llm      utils.ChatClient
	log      *zap.Logger
}

// NewChatService builds the chat widget backend. llm may be nil, in which
// case unmatched questions get the canned reply.
func NewChatService(faqs repositories.FaqRepository, requests repositories.CertificateRequestRepository, llm utils.ChatClient, log *zap.Logger) ChatService {
	return &chatService{faqs: faqs, requests: requests, llm: llm, log: log}
}

func (c *chatService) Reply(ctx context.Context, message string) (*resp.ChatResponse, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, utils.NewValidationError(map[string]string{"message": "is required"})
	}

	if ref := referenceInText.FindString(message); ref != "" {
		return c.statusReply(ctx, strings.ToUpper(ref))
	}

	faqs, err := c.faqs.ListActive(ctx)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if faq := matchFaq(faqs, message); faq != nil {
		return &resp.ChatResponse{Reply: faq.Answer, Source: resp.ChatSourceFaq}, nil
	}

	if c.llm != nil {
		answer, err := c.llm.Answer(ctx, systemPrompt(faqs), message)
		if err == nil && answer != "" {
			return &resp.ChatResponse{Reply: answer, Source: resp.ChatSourceAI}, nil
		}
		if err != nil {
			c.log.Warn("chat model failed", zap.Error(err))
		}
	}
	return &resp.ChatResponse{Reply: fallbackReply, Source: resp.ChatSourceFallback}, nil
}

func (c *chatService) statusReply(ctx context.Context, ref string) (*resp.ChatResponse, error) {
	req, err := c.requests.FindByReference(ctx, ref)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if req == nil {
		return &resp.ChatResponse{
			Reply:  fmt.Sprintf("I could not find a request with reference %s. Please check the number and try again.", ref),
			Source: resp.ChatSourceStatus,
		}, nil
	}
	reply := fmt.Sprintf("Your %s request %s is currently %s.", req.CertificateType.DisplayName(), ref, statusLabel(req.Status))
	if req.Status == dbm.RequestRejected && req.Remarks != "" {
		reply += " Remarks: " + req.Remarks
	}
	return &resp.ChatResponse{Reply: reply, Source: resp.ChatSourceStatus}, nil
}

func statusLabel(s dbm.RequestStatus) string {
	return strings.ToLower(strings.ReplaceAll(string(s), "_", " "))
}

// matchFaq picks the entry with the most keywords found in message.
func matchFaq(faqs []dbm.FaqEntry, message string) *dbm.FaqEntry {
	text := strings.ToLower(message)
	var (
		best  *dbm.FaqEntry
		score int
	)
	for i := range faqs {
		hits := 0
		for _, kw := range faqs[i].Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && strings.Contains(text, kw) {
				hits++
			}
		}
		if hits > score {
			best, score = &faqs[i], hits
		}
	}
	return best
}

func systemPrompt(faqs []dbm.FaqEntry) string {
	var sb strings.Builder
	sb.WriteString("You are the help desk of a barangay e-services portal in the Philippines. ")
	sb.WriteString("Answer briefly and only about barangay certificates, fees, payments and pickup or delivery. ")
	sb.WriteString("If you do not know, tell the resident to visit the barangay hall.\n\nKnown answers:\n")
	for _, f := range faqs {
		fmt.Fprintf(&sb, "Q: %s\nA: %s\n", f.Question, f.Answer)
	}
	return sb.String()
}

func (c *chatService) ListFaqs(ctx context.Context, s utils.Session) ([]resp.FaqResponse, error) {
	if err := s.RequireAdmin(); err != nil {
		return nil, err
	}
	rows, err := c.faqs.List(ctx)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	out := make([]resp.FaqResponse, 0, len(rows))
	for i := range rows {
		out = append(out, toFaqResponse(&rows[i]))
	}
	return out, nil
}

func (c *chatService) CreateFaq(ctx context.Context, s utils.Session, req request_models.FaqRequest) (*resp.FaqResponse, error) {
	if err := s.RequireAdmin(); err != nil {
		return nil, err
	}
	faq := &dbm.FaqEntry{
		Question: strings.TrimSpace(req.Question),
		Answer:   strings.TrimSpace(req.Answer),
		IsActive: req.IsActive == nil || *req.IsActive,
	}
	for _, kw := range req.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			faq.Keywords = append(faq.Keywords, kw)
		}
	}
	if err := c.faqs.Create(ctx, faq); err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	out := toFaqResponse(faq)
	return &out, nil
}

func (c *chatService) DeleteFaq(ctx context.Context, s utils.Session, id uint) error {
	if err := s.RequireAdmin(); err != nil {
		return err
	}
	ok, err := c.faqs.Delete(ctx, id)
	if err != nil {
		return utils.NewDatabaseError(err)
	}
	if !ok {
		return utils.NewNotFoundError("faq %d not found", id)
	}
	return nil
}

func toFaqResponse(f *dbm.FaqEntry) resp.FaqResponse {
	keywords := []string(f.Keywords)
	if keywords == nil {
		keywords = []string{}
	}
	return resp.FaqResponse{
		ID:       f.ID,
		Question: f.Question,
		Answer:   f.Answer,
		Keywords: keywords,
		IsActive: f.IsActive,
	}
}
