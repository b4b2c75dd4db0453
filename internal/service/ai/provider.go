package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrProviderUnavailable is returned when no model session could be established.
var ErrProviderUnavailable = errors.New("ai provider unavailable")

// Stream is a one-shot, finite sequence of reply fragments. Recv returns
// io.EOF once exhausted; after EOF or an error every call returns that error.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Provider sends one utterance per call and streams the reply.
type Provider interface {
	Send(ctx context.Context, utterance string) (Stream, error)
}

// Factory builds the provider on first use.
type Factory func(ctx context.Context) (Provider, error)

// Session holds the process-wide provider, constructed lazily and reused for
// every exchange. A Session without a factory is inert.
type Session struct {
	mu       sync.Mutex
	factory  Factory
	provider Provider
	log      *logrus.Entry
}

// NewSession wraps factory. Pass a nil factory when credentials are missing.
func NewSession(factory Factory, log *logrus.Logger) *Session {
	return &Session{
		factory: factory,
		log:     log.WithField("component", "ai.session"),
	}
}

// Configured reports whether the session can ever produce a provider.
func (s *Session) Configured() bool {
	return s != nil && s.factory != nil
}

// Send forwards to the provider, building it on first use.
func (s *Session) Send(ctx context.Context, utterance string) (Stream, error) {
	p, err := s.get(ctx)
	if err != nil {
		return nil, err
	}
	return p.Send(ctx, utterance)
}

// Close releases the provider if it holds a client connection.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if closer, ok := s.provider.(io.Closer); ok {
		s.provider = nil
		return closer.Close()
	}
	return nil
}

func (s *Session) get(ctx context.Context) (Provider, error) {
	if !s.Configured() {
		return nil, ErrProviderUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.provider != nil {
		return s.provider, nil
	}

	p, err := s.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if p == nil {
		return nil, ErrProviderUnavailable
	}
	s.provider = p
	s.log.Info("model session established")
	return p, nil
}
