package textgen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/adityaraj-09/faff-assign/internal/models"

	"github.com/sashabaranov/go-openai"
)

const (
	summarizePrompt = `You summarize support task conversations.
Task status: %s.
Return JSON: {"summary": string, "entities": [{"type": "url"|"phone"|"email", "value": string}]}.
Conversation:
%s`

	reviewPrompt = `You are a QA reviewer for operator replies in a task tracker.
Judge whether the reply below is accurate, polite and complete given the conversation.
Return JSON: {"approved": boolean, "feedback": string}.
Conversation:
%s
Reply under review:
%s`
)

type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

func NewOpenAIClient(apiKey, model, baseURL string, logger *slog.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}
}

func (o *OpenAIClient) Summarize(ctx context.Context, history []HistoryEntry, taskStatus string) (SummaryResult, error) {
	var out struct {
		Summary  string          `json:"summary"`
		Entities []models.Entity `json:"entities"`
	}
	if err := o.completeJSON(ctx, fmt.Sprintf(summarizePrompt, taskStatus, formatHistory(history)), &out); err != nil {
		return SummaryResult{}, err
	}
	if strings.TrimSpace(out.Summary) == "" {
		return SummaryResult{}, fmt.Errorf("%w: empty summary", ErrUnavailable)
	}
	return SummaryResult{Text: out.Summary, Entities: out.Entities}, nil
}

func (o *OpenAIClient) ReviewQuality(ctx context.Context, message string, history []HistoryEntry) (Verdict, error) {
	var out struct {
		Approved bool   `json:"approved"`
		Feedback string `json:"feedback"`
	}
	if err := o.completeJSON(ctx, fmt.Sprintf(reviewPrompt, formatHistory(history), message), &out); err != nil {
		return Verdict{}, err
	}
	return Verdict{Approved: out.Approved, Feedback: out.Feedback}, nil
}

func (o *OpenAIClient) completeJSON(ctx context.Context, prompt string, dst interface{}) error {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "Reply with a single JSON object only."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		o.logger.Warn("openai call failed", slog.String("model", o.model), slog.String("error", err.Error()))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("%w: no choices", ErrUnavailable)
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), dst); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

func formatHistory(history []HistoryEntry) string {
	var b strings.Builder
	for _, h := range history {
		fmt.Fprintf(&b, "[%s] %s: %s\n", h.CreatedAt.Format("2006-01-02 15:04"), h.Sender, h.Content)
	}
	return b.String()
}
