package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiOptions configures the Vertex AI Gemini provider.
type GeminiOptions struct {
	ProjectID         string
	Location          string
	Model             string
	CredentialsFile   string
	SystemInstruction string
	Temperature       *float64
	TopP              *float64
	TopK              *int
	MaxTokens         *int
}

// GeminiProvider keeps one Vertex chat session; the session history carries
// conversation memory between exchanges.
type GeminiProvider struct {
	client *vertexgenai.Client

	mu      sync.Mutex
	session *vertexgenai.ChatSession
	log     *logrus.Entry
}

// NewGeminiProvider dials Vertex AI and starts the chat session.
func NewGeminiProvider(ctx context.Context, opts GeminiOptions, log *logrus.Logger) (*GeminiProvider, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	c, err := vertexgenai.NewClient(ctx, opts.ProjectID, opts.Location, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create vertex client: %w", err)
	}

	modelName := opts.Model
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	m := c.GenerativeModel(modelName)
	if strings.TrimSpace(opts.SystemInstruction) != "" {
		m.SystemInstruction = &vertexgenai.Content{
			Parts: []vertexgenai.Part{vertexgenai.Text(opts.SystemInstruction)},
		}
	}
	if opts.Temperature != nil {
		m.SetTemperature(float32(*opts.Temperature))
	}
	if opts.TopP != nil {
		m.SetTopP(float32(*opts.TopP))
	}
	if opts.TopK != nil {
		m.SetTopK(int32(*opts.TopK))
	}
	if opts.MaxTokens != nil {
		m.SetMaxOutputTokens(int32(*opts.MaxTokens))
	}

	return &GeminiProvider{
		client:  c,
		session: m.StartChat(),
		log:     log.WithField("component", "ai.gemini"),
	}, nil
}

// Close releases the Vertex client.
func (g *GeminiProvider) Close() error { return g.client.Close() }

// Send streams one chat turn. The session lock is held until the stream ends
// so history is appended in exchange order.
func (g *GeminiProvider) Send(ctx context.Context, utterance string) (Stream, error) {
	g.mu.Lock()
	mark := len(g.session.History)
	it := g.session.SendMessageStream(ctx, vertexgenai.Text(utterance))

	var release sync.Once
	unlock := func() { release.Do(g.mu.Unlock) }

	return &fragmentStream{
		next: func() (string, error) {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return "", io.EOF
			}
			if err != nil {
				return "", err
			}
			return responseText(resp), nil
		},
		close: func() error {
			unlock()
			return nil
		},
		commit: func(reply string) {
			g.log.WithField("history", len(g.session.History)).Debug("reply completed")
			unlock()
		},
		rollback: func() {
			// A failed turn must not leave a dangling user entry behind.
			if len(g.session.History) > mark {
				g.session.History = g.session.History[:mark]
			}
			unlock()
		},
	}, nil
}

func responseText(resp *vertexgenai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok {
				b.WriteString(string(t))
			}
		}
		// Chat sessions request a single candidate.
		break
	}
	return b.String()
}
