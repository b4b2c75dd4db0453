package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"
)

// ChainProvider streams replies through an eino chain:
// system instruction + remembered turns + user query -> chat model.
type ChainProvider struct {
	chain             compose.Runnable[map[string]any, *schema.Message]
	systemInstruction string
	memory            *memory
	log               *logrus.Entry
}

// NewChainProvider compiles the chat chain around chatModel.
func NewChainProvider(ctx context.Context, chatModel model.BaseChatModel, systemInstruction string, historyTurns int, log *logrus.Logger) (*ChainProvider, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ChainProvider{
		chain:             runnable,
		systemInstruction: systemInstruction,
		memory:            newMemory(historyTurns),
		log:               log.WithField("component", "ai.chain"),
	}, nil
}

// Send streams the chain output for utterance.
func (p *ChainProvider) Send(ctx context.Context, utterance string) (Stream, error) {
	reader, err := p.chain.Stream(ctx, p.buildChainInput(utterance))
	if err != nil {
		return nil, fmt.Errorf("failed to stream AI chain output: %w", err)
	}

	return &fragmentStream{
		next: func() (string, error) {
			chunk, err := reader.Recv()
			if err != nil {
				return "", err
			}
			if chunk == nil {
				return "", nil
			}
			return chunk.Content, nil
		},
		close: func() error {
			reader.Close()
			return nil
		},
		commit: func(reply string) {
			p.memory.record(utterance, reply)
			p.log.WithField("reply_len", len(reply)).Debug("reply completed")
		},
	}, nil
}

func (p *ChainProvider) buildChainInput(utterance string) map[string]any {
	return map[string]any{
		"system":  p.systemInstruction,
		"history": p.buildHistoryMessages(),
		"query":   utterance,
	}
}

func (p *ChainProvider) buildHistoryMessages() []*schema.Message {
	turns := p.memory.snapshot()
	if len(turns) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(turns)*2)
	for _, t := range turns {
		history = append(history,
			schema.UserMessage(t.User),
			schema.AssistantMessage(t.Assistant, nil),
		)
	}
	return history
}
