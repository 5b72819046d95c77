package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	dbm "barangay/internal/models/db_models"
	"barangay/internal/models/request_models"
	resp "barangay/internal/models/response_models"
	"barangay/internal/repositories"
	"barangay/pkg/utils"
)

type stubChatClient struct {
	answer string
	err    error
	prompt string
}

func (s *stubChatClient) Answer(_ context.Context, systemPrompt, _ string) (string, error) {
	s.prompt = systemPrompt
	return s.answer, s.err
}

func TestMatchFaq(t *testing.T) {
	faqs := []dbm.FaqEntry{
		{Question: "How much?", Answer: "fees", Keywords: dbm.TextArray{"fee", "how much"}},
		{Question: "Requirements?", Answer: "reqs", Keywords: dbm.TextArray{"requirement", "clearance"}},
		{Question: "Pickup?", Answer: "pickup", Keywords: dbm.TextArray{"pickup", "claim", "clearance"}},
	}
	tests := []struct {
		message string
		want    string
	}{
		{"How much is the fee?", "fees"},
		{"what are the REQUIREMENTS for clearance", "reqs"},
		{"where do I claim my clearance for pickup", "pickup"},
		{"hello there", ""},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got := matchFaq(faqs, tt.message)
			answer := ""
			if got != nil {
				answer = got.Answer
			}
			if answer != tt.want {
				t.Errorf("matchFaq(%q) = %q, want %q", tt.message, answer, tt.want)
			}
		})
	}
}

func newChatHarness(t *testing.T, llm utils.ChatClient) (*harness, ChatService) {
	t.Helper()
	h := newHarness(t)
	if err := h.db.Unscoped().Where("1 = 1").Delete(&dbm.FaqEntry{}).Error; err != nil {
		t.Fatalf("clear seeded faqs: %v", err)
	}
	chat := NewChatService(repositories.NewFaqRepository(h.db), repositories.NewCertificateRequestRepository(h.db), llm, zap.NewNop())
	if _, err := chat.CreateFaq(context.Background(), adminSession, request_models.FaqRequest{
		Question: "How much is a barangay clearance?",
		Answer:   "A barangay clearance costs PHP 300.00.",
		Keywords: []string{" Fee ", "how much"},
	}); err != nil {
		t.Fatalf("CreateFaq: %v", err)
	}
	return h, chat
}

func TestChatReply(t *testing.T) {
	ctx := context.Background()

	t.Run("reference number gets live status", func(t *testing.T) {
		h, chat := newChatHarness(t, nil)
		resident, session := seedResident(t, h, "chat@barangay.test", true)
		created, err := h.requests.CreateRequest(ctx, session, clearanceInput(resident.ID))
		if err != nil {
			t.Fatalf("CreateRequest: %v", err)
		}
		out, err := chat.Reply(ctx, "status of "+strings.ToLower(created.ReferenceNumber)+" please")
		if err != nil {
			t.Fatalf("Reply: %v", err)
		}
		if out.Source != resp.ChatSourceStatus || !strings.Contains(out.Reply, "pending") {
			t.Errorf("reply = %+v", out)
		}
	})

	t.Run("unknown reference", func(t *testing.T) {
		_, chat := newChatHarness(t, nil)
		out, err := chat.Reply(ctx, "REQ-20240101-ZZZZZ")
		if err != nil {
			t.Fatalf("Reply: %v", err)
		}
		if out.Source != resp.ChatSourceStatus || !strings.Contains(out.Reply, "could not find") {
			t.Errorf("reply = %+v", out)
		}
	})

	t.Run("faq keyword", func(t *testing.T) {
		_, chat := newChatHarness(t, nil)
		out, err := chat.Reply(ctx, "What is the FEE?")
		if err != nil {
			t.Fatalf("Reply: %v", err)
		}
		if out.Source != resp.ChatSourceFaq || !strings.Contains(out.Reply, "300.00") {
			t.Errorf("reply = %+v", out)
		}
	})

	t.Run("model answers the rest", func(t *testing.T) {
		llm := &stubChatClient{answer: "The barangay hall opens at 8 AM."}
		_, chat := newChatHarness(t, llm)
		out, err := chat.Reply(ctx, "When do you open?")
		if err != nil {
			t.Fatalf("Reply: %v", err)
		}
		if out.Source != resp.ChatSourceAI || out.Reply != llm.answer {
			t.Errorf("reply = %+v", out)
		}
		if !strings.Contains(llm.prompt, "PHP 300.00") {
			t.Error("system prompt should carry the known answers")
		}
	})

	t.Run("model failure falls back", func(t *testing.T) {
		_, chat := newChatHarness(t, &stubChatClient{err: errors.New("quota exceeded")})
		out, err := chat.Reply(ctx, "When do you open?")
		if err != nil {
			t.Fatalf("Reply: %v", err)
		}
		if out.Source != resp.ChatSourceFallback {
			t.Errorf("reply = %+v", out)
		}
	})

	t.Run("empty message", func(t *testing.T) {
		_, chat := newChatHarness(t, nil)
		if _, err := chat.Reply(ctx, "   "); !errors.Is(err, utils.ErrValidation) {
			t.Errorf("err = %v, want validation", err)
		}
	})
}

func TestFaqAdmin(t *testing.T) {
	ctx := context.Background()
	h, chat := newChatHarness(t, nil)
	_, resident := seedResident(t, h, "faq@barangay.test", true)

	if _, err := chat.ListFaqs(ctx, resident); !errors.Is(err, utils.ErrForbidden) {
		t.Errorf("resident list: err = %v, want forbidden", err)
	}
	faqs, err := chat.ListFaqs(ctx, adminSession)
	if err != nil {
		t.Fatalf("ListFaqs: %v", err)
	}
	if len(faqs) != 1 {
		t.Fatalf("faqs = %d, want 1", len(faqs))
	}
	if got := strings.Join(faqs[0].Keywords, ","); got != "fee,how much" {
		t.Errorf("keywords = %q", got)
	}

	if err := chat.DeleteFaq(ctx, adminSession, faqs[0].ID); err != nil {
		t.Fatalf("DeleteFaq: %v", err)
	}
	if err := chat.DeleteFaq(ctx, adminSession, faqs[0].ID); !errors.Is(err, utils.ErrNotFound) {
		t.Errorf("second delete: err = %v, want not found", err)
	}
	out, err := chat.Reply(ctx, "how much is the fee")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if out.Source != resp.ChatSourceFallback {
		t.Errorf("deleted faq still answers: %+v", out)
	}
}
