package summary

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lucasbarrios/leadline/pkg/chat"
	"github.com/lucasbarrios/leadline/pkg/provider/llm"
	llmmock "github.com/lucasbarrios/leadline/pkg/provider/llm/mock"
)

var testTranscript = []chat.Turn{
	{Role: chat.RoleUser, Content: "hola, necesito una tienda online con pagos"},
	{Role: chat.RoleAssistant, Content: "¡Claro! Hago tiendas online. ¿Querés agendar una reunión?"},
	{Role: chat.RoleUser, Content: "también me interesa un chatbot para atención"},
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

// ── keyword fallback ──

func TestDetectNeeds(t *testing.T) {
	lines := chat.TagTranscript(testTranscript)

	needs := DetectNeeds(lines)
	if len(needs) == 0 {
		t.Fatal("DetectNeeds found nothing")
	}

	joined := strings.Join(needs, "|")
	for _, want := range []string{"tienda online", "chatbot"} {
		if !strings.Contains(joined, want) {
			t.Errorf("DetectNeeds = %v, want to include %q", needs, want)
		}
	}
}

func TestDetectNeedsDeduplicates(t *testing.T) {
	lines := []string{
		"Customer: quiero una tienda",
		"Customer: una tienda con ecommerce y pagos",
	}
	needs := DetectNeeds(lines)
	count := 0
	for _, n := range needs {
		if n == "tienda online" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("got %d 'tienda online' entries, want 1 (needs = %v)", count, needs)
	}
}

func TestFallback(t *testing.T) {
	lines := chat.TagTranscript(testTranscript)

	s := Fallback(lines, fixedNow())
	if s.NarrativeSummary == "" {
		t.Error("fallback narrative is empty")
	}
	if len(s.DetectedNeeds) == 0 {
		t.Error("fallback detected no needs from a keyword-rich transcript")
	}
	if len(s.KeyPoints) == 0 {
		t.Error("fallback produced no key points")
	}
	// Key points come from customer lines only.
	for _, p := range s.KeyPoints {
		if strings.HasPrefix(p, "Assistant") || strings.HasPrefix(p, "Customer:") {
			t.Errorf("key point %q not untagged customer content", p)
		}
	}
	if !s.GeneratedAt.Equal(fixedNow()) {
		t.Errorf("GeneratedAt = %v, want fixed clock", s.GeneratedAt)
	}
}

func TestFallbackDeterministic(t *testing.T) {
	lines := chat.TagTranscript(testTranscript)
	a := Fallback(lines, fixedNow())
	b := Fallback(lines, fixedNow())
	if a.NarrativeSummary != b.NarrativeSummary || len(a.KeyPoints) != len(b.KeyPoints) {
		t.Error("fallback is not deterministic across calls")
	}
}

func TestFallbackNoKeywords(t *testing.T) {
	lines := []string{"Customer: hola", "Assistant: ¡Hola!"}
	s := Fallback(lines, fixedNow())
	if s.NarrativeSummary == "" {
		t.Error("fallback narrative empty on keyword-free transcript")
	}
	if len(s.DetectedNeeds) != 0 {
		t.Errorf("DetectedNeeds = %v on keyword-free transcript", s.DetectedNeeds)
	}
}

func TestKeyPointsCapped(t *testing.T) {
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, "Customer: quiero una web con tienda")
	}
	s := Fallback(lines, fixedNow())
	if len(s.KeyPoints) > maxKeyPoints {
		t.Errorf("got %d key points, cap is %d", len(s.KeyPoints), maxKeyPoints)
	}
}

// ── service (LLM primary) ──

func TestServicePrimaryPath(t *testing.T) {
	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Visitante interesado en una tienda online; quiere reunión."},
	}
	svc := NewService(p, Config{Temperature: 0.3, MaxTokens: 400}, WithClock(fixedNow))

	s := svc.Summarise(context.Background(), testTranscript)
	if s.NarrativeSummary != "Visitante interesado en una tienda online; quiere reunión." {
		t.Errorf("NarrativeSummary = %q, want LLM content", s.NarrativeSummary)
	}
	if len(s.DetectedNeeds) == 0 {
		t.Error("DetectedNeeds empty on primary path")
	}

	if len(p.CompleteCalls) != 1 {
		t.Fatalf("Complete called %d times, want 1", len(p.CompleteCalls))
	}
	req := p.CompleteCalls[0].Req
	if req.Temperature != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", req.Temperature)
	}
	if req.SystemPrompt == "" {
		t.Error("no system prompt sent")
	}
	if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "Customer: hola") {
		t.Errorf("transcript not tagged into the request: %+v", req.Messages)
	}
}

func TestServiceFallbackOnError(t *testing.T) {
	p := &llmmock.Provider{CompleteErr: errors.New("rate limited")}
	svc := NewService(p, Config{}, WithClock(fixedNow))

	s := svc.Summarise(context.Background(), testTranscript)
	if s.NarrativeSummary == "" {
		t.Error("no summary despite fallback path")
	}
	if len(s.KeyPoints) == 0 {
		t.Error("fallback key points missing after LLM error")
	}
}

func TestServiceFallbackOnEmptyContent(t *testing.T) {
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "   "}}
	svc := NewService(p, Config{}, WithClock(fixedNow))

	s := svc.Summarise(context.Background(), testTranscript)
	if s.NarrativeSummary == "" {
		t.Error("no summary when LLM returned blank content")
	}
}

func TestServiceNilProvider(t *testing.T) {
	svc := NewService(nil, Config{}, WithClock(fixedNow))

	s := svc.Summarise(context.Background(), testTranscript)
	if s.NarrativeSummary == "" {
		t.Error("nil provider must still yield a summary")
	}
}

func TestSummaryText(t *testing.T) {
	s := Summary{
		NarrativeSummary: "Resumen.",
		DetectedNeeds:    []string{"tienda online"},
		KeyPoints:        []string{"quiero una tienda"},
	}
	text := s.Text()
	for _, want := range []string{"Resumen.", "tienda online", "- quiero una tienda"} {
		if !strings.Contains(text, want) {
			t.Errorf("Text() missing %q:\n%s", want, text)
		}
	}
}
