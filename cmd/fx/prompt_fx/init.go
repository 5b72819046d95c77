package prompt_fx

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"barangay/internal/config"
	"barangay/internal/repositories"
	"barangay/internal/services"
	"barangay/pkg/utils"
)

var Module = fx.Provide(
	provideChatClient,
	provideFaqRepo,
	provideChatService,
)

// provideChatClient returns nil when no provider is configured; the chat
// service then answers with FAQ matches and canned replies only.
func provideChatClient(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (utils.ChatClient, error) {
	log.Info("chat provider", zap.String("provider", cfg.Chat.Provider), zap.String("model", cfg.Chat.Model))

	switch cfg.Chat.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		if cfg.Chat.APIKey == "" {
			return nil, fmt.Errorf("CHAT_API_KEY is required when using OpenAI provider")
		}
		return utils.NewOpenAIChatClient(cfg.Chat.APIKey, cfg.Chat.Model), nil
	case "gemini":
		if cfg.Chat.APIKey == "" {
			return nil, fmt.Errorf("CHAT_API_KEY is required when using Gemini provider")
		}
		client, err := utils.NewGeminiChatClient(context.Background(), cfg.Chat.APIKey, cfg.Chat.Model)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error { return client.Close() },
		})
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported chat provider: %s. Use 'openai', 'gemini' or 'none'", cfg.Chat.Provider)
	}
}

func provideFaqRepo(db *gorm.DB) repositories.FaqRepository {
	return repositories.NewFaqRepository(db)
}

func provideChatService(
	faqs repositories.FaqRepository,
	requests repositories.CertificateRequestRepository,
	llm utils.ChatClient,
	log *zap.Logger,
) services.ChatService {
	return services.NewChatService(faqs, requests, llm, log)
}
