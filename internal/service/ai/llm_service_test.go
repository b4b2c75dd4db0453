package ai

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/wise-mentor/backend/internal/logger"
)

// fakeChatModel replays scripted replies and records every prompt it receives.
type fakeChatModel struct {
	mu      sync.Mutex
	inputs  [][]*schema.Message
	replies [][]string
	failAt  int // fail after this many chunks of the current reply; <0 never
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	return nil, errors.New("not used")
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	var reply []string
	if len(f.replies) > 0 {
		reply, f.replies = f.replies[0], f.replies[1:]
	}
	failAt := f.failAt
	f.mu.Unlock()

	sr, sw := schema.Pipe[*schema.Message](len(reply) + 1)
	go func() {
		defer sw.Close()
		for i, chunk := range reply {
			if failAt >= 0 && i == failAt {
				sw.Send(nil, errors.New("upstream reset"))
				return
			}
			sw.Send(schema.AssistantMessage(chunk, nil), nil)
		}
	}()
	return sr, nil
}

func (f *fakeChatModel) BindTools(tools []*schema.ToolInfo) error { return nil }

func (f *fakeChatModel) prompt(i int) []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inputs[i]
}

func TestChainProviderStreamsFragments(t *testing.T) {
	fake := &fakeChatModel{replies: [][]string{{"Hi", " there"}}, failAt: -1}
	p, err := NewChainProvider(context.Background(), fake, "Be wise.", 0, logger.Discard())
	require.NoError(t, err)

	stream, err := p.Send(context.Background(), "Hello")
	require.NoError(t, err)
	defer stream.Close()

	got, err := drain(t, stream)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", joinFragments(got))

	prompt := fake.prompt(0)
	require.Len(t, prompt, 2)
	assert.Equal(t, schema.System, prompt[0].Role)
	assert.Equal(t, "Be wise.", prompt[0].Content)
	assert.Equal(t, schema.User, prompt[1].Role)
	assert.Equal(t, "Hello", prompt[1].Content)
}

func TestChainProviderRemembersCompletedTurns(t *testing.T) {
	fake := &fakeChatModel{replies: [][]string{{"first reply"}, {"second reply"}}, failAt: -1}
	p, err := NewChainProvider(context.Background(), fake, "sys", 0, logger.Discard())
	require.NoError(t, err)

	for _, q := range []string{"one", "two"} {
		stream, err := p.Send(context.Background(), q)
		require.NoError(t, err)
		_, err = drain(t, stream)
		require.NoError(t, err)
		stream.Close()
	}

	prompt := fake.prompt(1)
	require.Len(t, prompt, 4)
	assert.Equal(t, "one", prompt[1].Content)
	assert.Equal(t, schema.Assistant, prompt[2].Role)
	assert.Equal(t, "first reply", prompt[2].Content)
	assert.Equal(t, "two", prompt[3].Content)
}

func TestChainProviderFailureIsNotRemembered(t *testing.T) {
	fake := &fakeChatModel{replies: [][]string{{"par", "tial"}, {"ok"}}, failAt: 1}
	p, err := NewChainProvider(context.Background(), fake, "sys", 0, logger.Discard())
	require.NoError(t, err)

	stream, err := p.Send(context.Background(), "one")
	require.NoError(t, err)
	got, err := drain(t, stream)
	assert.Error(t, err)
	assert.Equal(t, []string{"par"}, got)
	stream.Close()

	fake.mu.Lock()
	fake.failAt = -1
	fake.mu.Unlock()

	stream, err = p.Send(context.Background(), "two")
	require.NoError(t, err)
	_, err = drain(t, stream)
	require.NoError(t, err)
	stream.Close()

	assert.Len(t, fake.prompt(1), 2, "failed turn must not become history")
}

func joinFragments(fragments []string) string {
	out := ""
	for _, f := range fragments {
		out += f
	}
	return out
}
