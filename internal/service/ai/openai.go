package ai

import (
	"context"
	"fmt"

	openaiapi "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// OpenAIOptions configures an OpenAI-compatible chat completions backend.
type OpenAIOptions struct {
	APIKey            string
	BaseURL           string
	Model             string
	SystemInstruction string
	Temperature       *float64
	TopP              *float64
	MaxTokens         *int
	HistoryTurns      int
}

// OpenAIProvider streams chat completions and remembers completed turns.
type OpenAIProvider struct {
	api    *openaiapi.Client
	opts   OpenAIOptions
	memory *memory
	log    *logrus.Entry
}

// NewOpenAIProvider builds the client. No network call is made until Send.
func NewOpenAIProvider(opts OpenAIOptions, log *logrus.Logger) *OpenAIProvider {
	cfg := openaiapi.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &OpenAIProvider{
		api:    openaiapi.NewClientWithConfig(cfg),
		opts:   opts,
		memory: newMemory(opts.HistoryTurns),
		log:    log.WithField("component", "ai.openai"),
	}
}

// Send opens a streaming completion for utterance.
func (p *OpenAIProvider) Send(ctx context.Context, utterance string) (Stream, error) {
	stream, err := p.api.CreateChatCompletionStream(ctx, p.buildRequest(utterance))
	if err != nil {
		return nil, fmt.Errorf("open completion stream: %w", err)
	}

	return &fragmentStream{
		next: func() (string, error) {
			resp, err := stream.Recv()
			if err != nil {
				return "", err
			}
			if len(resp.Choices) == 0 {
				return "", nil
			}
			return resp.Choices[0].Delta.Content, nil
		},
		close: stream.Close,
		commit: func(reply string) {
			p.memory.record(utterance, reply)
			p.log.WithField("reply_len", len(reply)).Debug("reply completed")
		},
	}, nil
}

func (p *OpenAIProvider) buildRequest(utterance string) openaiapi.ChatCompletionRequest {
	turns := p.memory.snapshot()
	messages := make([]openaiapi.ChatCompletionMessage, 0, len(turns)*2+2)
	if p.opts.SystemInstruction != "" {
		messages = append(messages, openaiapi.ChatCompletionMessage{
			Role:    openaiapi.ChatMessageRoleSystem,
			Content: p.opts.SystemInstruction,
		})
	}
	for _, t := range turns {
		messages = append(messages,
			openaiapi.ChatCompletionMessage{Role: openaiapi.ChatMessageRoleUser, Content: t.User},
			openaiapi.ChatCompletionMessage{Role: openaiapi.ChatMessageRoleAssistant, Content: t.Assistant},
		)
	}
	messages = append(messages, openaiapi.ChatCompletionMessage{
		Role:    openaiapi.ChatMessageRoleUser,
		Content: utterance,
	})

	req := openaiapi.ChatCompletionRequest{
		Model:    p.opts.Model,
		Messages: messages,
		Stream:   true,
	}
	if p.opts.Temperature != nil {
		req.Temperature = float32(*p.opts.Temperature)
	}
	if p.opts.TopP != nil {
		req.TopP = float32(*p.opts.TopP)
	}
	if p.opts.MaxTokens != nil {
		req.MaxCompletionTokens = *p.opts.MaxTokens
	}
	return req
}
