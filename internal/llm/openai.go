package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"docqa/internal/domain"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Config configures the chat client.
type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Temperature float32
	Timeout     time.Duration
	// SummaryMaxRunes caps the document text sent for a summary.
	SummaryMaxRunes int
}

// OpenAI answers questions and summarizes documents with a chat model.
type OpenAI struct {
	api         *goopenai.Client
	model       string
	temperature float32
	maxRunes    int
}

func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" && cfg.BaseURL == defaultBaseURL {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = goopenai.GPT4oMini
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	apiCfg := goopenai.DefaultConfig(key)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAI{
		api:         goopenai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxRunes:    cfg.SummaryMaxRunes,
	}, nil
}

// Answer implements domain.Answerer.
func (o *OpenAI) Answer(ctx context.Context, contextText, question string) (string, error) {
	return o.complete(ctx, "answer", QuestionPrompt(contextText, question))
}

// Summarize implements domain.Summarizer.
func (o *OpenAI) Summarize(ctx context.Context, docType, text string) (string, error) {
	return o.complete(ctx, "summarize", SummaryPrompt(docType, text, o.maxRunes))
}

func (o *OpenAI) complete(ctx context.Context, op, prompt string) (string, error) {
	resp, err := o.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return "", fmt.Errorf("llm %s: %w", op, domain.AsTimeout(op, err))
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm " + op + ": empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
