package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"autoshorts/internal/domain/ports/adapter"
	derror "autoshorts/internal/error"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.ScriptGenerator = (*OpenAIScript)(nil)

// TokenRecorder receives prompt size estimates.
type TokenRecorder interface {
	ObservePromptTokens(provider string, n int)
}

// OpenAIScript generates scripts through Chat Completions. It only covers the
// script stage; voice and video stay on Gemini.
type OpenAIScript struct {
	model   string
	baseURL string
	tokens  TokenRecorder
	log     *zerolog.Logger

	mu      sync.Mutex
	clients map[string]*openai.Client

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

func NewOpenAIScript(model, baseURL string, tokens TokenRecorder, logger *zerolog.Logger) *OpenAIScript {
	if model == "" {
		model = "gpt-4o-mini"
	}
	l := logger.With().Str("component", "OpenAIScript").Logger()
	return &OpenAIScript{model: model, baseURL: baseURL, tokens: tokens, log: &l, clients: make(map[string]*openai.Client)}
}

func (o *OpenAIScript) client(apiKey string) *openai.Client {
	o.mu.Lock()
	defer o.mu.Unlock()
	if c, ok := o.clients[apiKey]; ok {
		return c
	}
	// Retries are left to the key rotation.
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if o.baseURL != "" {
		opts = append(opts, option.WithBaseURL(o.baseURL))
	}
	c := openai.NewClient(opts...)
	o.clients[apiKey] = &c
	return &c
}

func (o *OpenAIScript) GenerateScript(ctx context.Context, apiKey string, req adapter.ScriptRequest) (string, adapter.Usage, error) {
	const op = "script.generate"
	if apiKey == "" {
		return "", adapter.Usage{}, derror.Configuration(op, "empty OpenAI API key")
	}

	system := req.SystemInstruction
	if req.Structured {
		system += "\nRéponds uniquement avec un objet JSON valide, sans texte autour."
	}
	o.observePrompt(system + req.Prompt)

	resp, err := o.client(apiKey).Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(float64(req.Temperature)),
	})
	if err != nil {
		return "", adapter.Usage{}, classifyOpenAI(op, err)
	}

	for _, c := range resp.Choices {
		if text := strings.TrimSpace(c.Message.Content); text != "" {
			return text, adapter.Usage{
				PromptTokens:     int(resp.Usage.PromptTokens),
				CompletionTokens: int(resp.Usage.CompletionTokens),
				TotalTokens:      int(resp.Usage.TotalTokens),
			}, nil
		}
	}
	return "", adapter.Usage{}, derror.Malformed(op, "no choice content")
}

// observePrompt records a local token estimate. The encoder is loaded once;
// when it cannot be loaded the estimate is skipped.
func (o *OpenAIScript) observePrompt(text string) {
	if o.tokens == nil {
		return
	}
	o.encOnce.Do(func() {
		enc, err := tiktoken.EncodingForModel(o.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
		}
		if err != nil {
			o.log.Debug().Err(err).Msg("token encoder unavailable")
			return
		}
		o.enc = enc
	})
	if o.enc == nil {
		return
	}
	o.tokens.ObservePromptTokens("openai", len(o.enc.Encode(text, nil, nil)))
}

func classifyOpenAI(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return derror.Quota(op, apiErr.StatusCode, err)
		}
		return derror.Rejected(op, apiErr.StatusCode, err)
	}
	return derror.Rejected(op, 0, err)
}
