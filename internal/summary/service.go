package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lucasbarrios/leadline/pkg/chat"
	"github.com/lucasbarrios/leadline/pkg/provider/llm"
)

// Summariser condenses a transcript into a Summary. Implementations must
// always return a usable summary; degraded output is fine, no output is not.
type Summariser interface {
	Summarise(ctx context.Context, transcript []chat.Turn) Summary
}

// systemPrompt steers the LLM toward a compact structured brief. Low
// temperature keeps repeated summaries of the same transcript stable.
const systemPrompt = `Eres un asistente que resume conversaciones de ventas para un desarrollador freelance.
Resume la conversación en un párrafo breve que cubra: contexto del visitante, necesidades detectadas, puntos clave y próximos pasos.
Responde solo con el resumen, sin encabezados ni explicaciones.`

// Config tunes the LLM summarisation call.
type Config struct {
	// Temperature is the sampling temperature. Keep low.
	Temperature float64

	// MaxTokens bounds the summary length.
	MaxTokens int
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is the production Summariser: LLM primary with the deterministic
// keyword fallback. A nil provider is allowed and always falls back, so the
// capture flow works without any LLM configured.
type Service struct {
	provider llm.Provider
	cfg      Config
	now      func() time.Time
}

var _ Summariser = (*Service)(nil)

// NewService builds a Service. provider may be nil.
func NewService(provider llm.Provider, cfg Config, opts ...Option) *Service {
	s := &Service{provider: provider, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarise implements Summariser. Errors from the LLM path are logged and
// absorbed; the caller always gets a summary.
func (s *Service) Summarise(ctx context.Context, transcript []chat.Turn) Summary {
	lines := chat.TagTranscript(transcript)

	if s.provider == nil {
		return Fallback(lines, s.now())
	}

	narrative, err := s.summariseLLM(ctx, lines)
	if err != nil {
		slog.Warn("summary: LLM path failed; using keyword fallback", "err", err)
		return Fallback(lines, s.now())
	}
	if narrative == "" {
		slog.Warn("summary: LLM returned empty content; using keyword fallback")
		return Fallback(lines, s.now())
	}

	return Summary{
		NarrativeSummary: narrative,
		DetectedNeeds:    DetectNeeds(lines),
		GeneratedAt:      s.now(),
	}
}

// summariseLLM runs the primary path: the tagged transcript goes to the LLM
// as a single user message under the summarisation system prompt.
func (s *Service) summariseLLM(ctx context.Context, lines []string) (string, error) {
	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages: []llm.Message{{
			Role:    string(chat.RoleUser),
			Content: strings.Join(lines, "\n"),
		}},
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summary: complete: %w", err)
	}
	if resp == nil {
		return "", nil
	}
	return strings.TrimSpace(resp.Content), nil
}
