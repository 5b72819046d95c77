package utils

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ChatClient answers a free-text question under a system prompt. Implemented
// by the OpenAI and Gemini clients; the chat widget falls back to canned
// replies when none is configured.
type ChatClient interface {
	Answer(ctx context.Context, systemPrompt, question string) (string, error)
}

type OpenAIChatClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIChatClient(apiKey, model string) *OpenAIChatClient {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIChatClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (c *OpenAIChatClient) Answer(ctx context.Context, systemPrompt, question string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.2,
		MaxTokens:   400,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
