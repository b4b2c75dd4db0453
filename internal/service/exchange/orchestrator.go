package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/wise-mentor/backend/internal/model/chat"
	"github.com/zhouzirui/wise-mentor/backend/internal/service/ai"
	chatService "github.com/zhouzirui/wise-mentor/backend/internal/service/chat"
)

// FallbackText is the only failure text users ever see.
const FallbackText = "I am unable to process your request at this moment. Please try again shortly."

// Ticket identifies one admitted exchange.
type Ticket struct {
	User          chat.Message `json:"userMessage"`
	PlaceholderID string       `json:"placeholderId"`
}

// Orchestrator drives user submissions through the provider into the transcript.
type Orchestrator struct {
	engine   *chatService.Service
	provider ai.Provider
	log      *logrus.Entry
	inflight sync.WaitGroup
}

// New wires an orchestrator to the transcript engine and a provider.
func New(engine *chatService.Service, provider ai.Provider, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		engine:   engine,
		provider: provider,
		log:      log.WithField("component", "exchange"),
	}
}

// Submit admits raw as the next user message and opens the assistant placeholder.
// Blank input and submissions while busy return chat.ErrBlankInput / chat.ErrBusy
// with the transcript unchanged.
func (o *Orchestrator) Submit(raw string) (Ticket, error) {
	user, err := o.engine.AppendUser(raw)
	if err != nil {
		return Ticket{}, err
	}

	id, err := o.engine.BeginAssistantPlaceholder()
	if err != nil {
		o.engine.SetBusy(false)
		return Ticket{}, fmt.Errorf("open assistant placeholder: %w", err)
	}

	return Ticket{User: user, PlaceholderID: id}, nil
}

// Run streams the reply for t into the transcript. It always leaves the
// engine idle, whatever the provider does.
func (o *Orchestrator) Run(ctx context.Context, t Ticket) {
	defer o.engine.SetBusy(false)

	entry := o.log.WithField("message_id", t.PlaceholderID)
	if err := o.stream(ctx, t); err != nil {
		entry.WithError(err).Error("exchange failed")
		o.engine.FailWithError(t.PlaceholderID, FallbackText)
		return
	}
	o.engine.Finalize(t.PlaceholderID)
	entry.Debug("exchange completed")
}

// Start submits raw and runs the exchange in the background. The exchange is
// detached from ctx cancellation so a departing client does not cut the reply short.
func (o *Orchestrator) Start(ctx context.Context, raw string) (Ticket, error) {
	t, err := o.Submit(raw)
	if err != nil {
		return Ticket{}, err
	}
	o.RunAsync(ctx, t)
	return t, nil
}

// RunAsync runs an already submitted exchange in the background, detached
// from ctx cancellation.
func (o *Orchestrator) RunAsync(ctx context.Context, t Ticket) {
	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		o.Run(context.WithoutCancel(ctx), t)
	}()
}

// Exchange submits raw and runs the exchange to completion.
func (o *Orchestrator) Exchange(ctx context.Context, raw string) (Ticket, error) {
	t, err := o.Submit(raw)
	if err != nil {
		return Ticket{}, err
	}
	o.Run(ctx, t)
	return t, nil
}

// Wait blocks until background exchanges finish or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) stream(ctx context.Context, t Ticket) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()

	stream, err := o.provider.Send(ctx, t.User.Text)
	if err != nil {
		return fmt.Errorf("send utterance: %w", err)
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		fragment, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			return nil
		}
		if recvErr != nil {
			return fmt.Errorf("receive fragment: %w", recvErr)
		}
		if fragment == "" {
			continue
		}

		reply.WriteString(fragment)
		o.engine.ApplyFragment(t.PlaceholderID, reply.String())
	}
}
