package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"taskboard/app/config"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/rs/zerolog"
)

// OpenAIProvider calls the chat completions API.
type OpenAIProvider struct {
	key     string
	model   string
	timeout time.Duration
	cli     openai.Client
	log     zerolog.Logger
}

// NewOpenAIProvider builds a provider from the OpenAI settings in cfg.
func NewOpenAIProvider(cfg config.Config, log zerolog.Logger) *OpenAIProvider {
	model := cfg.OpenAIModel
	if strings.TrimSpace(model) == "" {
		model = "gpt-4.1-mini"
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.OpenAIKey))
	return &OpenAIProvider{key: cfg.OpenAIKey, model: model, timeout: cfg.OpenAITimeout, cli: cli, log: log}
}

// Breakdown sends req as a chat completion and returns the reply text.
func (p *OpenAIProvider) Breakdown(ctx context.Context, req BreakdownRequest) (string, error) {
	if strings.TrimSpace(p.key) == "" {
		return "", errors.New("openai: missing key")
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	p.log.Info().Str("model", p.model).Str("task", req.Title).Msg("openai breakdown call")
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(BuildPrompt(req)),
		},
	}
	resp, err := p.cli.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
