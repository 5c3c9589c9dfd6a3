package dispatch_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lucasbarrios/leadline/internal/capture"
	"github.com/lucasbarrios/leadline/internal/dispatch"
	"github.com/lucasbarrios/leadline/internal/goals"
	"github.com/lucasbarrios/leadline/internal/intent"
	"github.com/lucasbarrios/leadline/internal/lead"
	"github.com/lucasbarrios/leadline/internal/summary"
	"github.com/lucasbarrios/leadline/pkg/chat"
)

type stubBackend struct {
	result lead.Result
	calls  []lead.Lead
}

func (b *stubBackend) Record(_ context.Context, l lead.Lead) lead.Result {
	b.calls = append(b.calls, l)
	return b.result
}

type fixture struct {
	d       *dispatch.Dispatcher
	backend *stubBackend
	now     *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	f := &fixture{now: &now}

	classifier := intent.NewKeywordClassifier(intent.Config{
		StrongPhrases:   []string{"quiero agendar", "quiero contratar", "schedule a meeting"},
		Affirmations:    []string{"sí", "si", "ok", "yes"},
		ContextKeywords: []string{"agendar", "reunión", "contratar", "meeting"},
		ContextWindow:   6,
	})

	registry := goals.NewRegistry(goals.Messages{
		NameTooShort:    "nombre muy corto",
		InvalidEmail:    "email inválido",
		ProjectTooShort: "más detalle por favor",
	})

	machine := capture.NewMachine(registry, capture.Config{
		Cooldown:       5 * time.Minute,
		Affirmations:   []string{"sí", "si", "ok", "yes"},
		Negatives:      []string{"no", "nope"},
		SkipKeywords:   []string{"no", "skip"},
		FuzzyThreshold: 0.90,
		Prompts: capture.Prompts{
			ConfirmCapture: "¿Avanzamos?",
			AskName:        "¿Tu nombre?",
			AskEmail:       "¿Tu email?",
			AskPhone:       "¿Tu teléfono?",
			AskProject:     "¿Tu proyecto?",
			ConfirmSend:    "¿Confirmás?",
			Completed:      "¡Gracias!",
			Declined:       "Sin problema.",
			Ambiguous:      "¿Sí o no?",
		},
	}, capture.WithClock(func() time.Time { return *f.now }))

	// Nil LLM provider: the summariser always uses the deterministic fallback.
	summariser := summary.NewService(nil, summary.Config{}, summary.WithClock(clock))

	f.backend = &stubBackend{result: lead.Result{Success: true, ID: "lead-1"}}
	f.d = dispatch.New(classifier, machine, registry, summariser, f.backend,
		dispatch.WithClock(func() time.Time { return *f.now }))
	return f
}

// drive runs a message sequence: trigger detection on idle states, the state
// machine otherwise. Mirrors how the chat surface routes.
func drive(t *testing.T, f *fixture, transcript []chat.Turn, messages ...string) capture.State {
	t.Helper()
	ctx := context.Background()
	state := capture.NewState()

	for _, msg := range messages {
		state = f.d.Refresh(state)
		if state.Step == capture.StepIdle {
			if tr := f.d.DetectTrigger(msg, chat.TagTranscript(transcript), state); tr.Triggered {
				state = tr.State
				continue
			}
			continue
		}
		res := f.d.ProcessTurn(ctx, msg, state, transcript)
		state = res.State
		if res.ShouldSend {
			f.d.Send(ctx, state)
		}
	}
	return state
}

func TestScenarioAFullCapture(t *testing.T) {
	f := newFixture(t)

	state := drive(t, f, nil,
		"quiero agendar una reunión",
		"sí",
		"Juan Pérez",
		"juan@example.com",
		"no",
		"necesito una tienda online con pagos",
	)

	if state.Step != capture.StepConfirmSend {
		t.Fatalf("Step = %q, want confirm_send", state.Step)
	}
	want := map[string]string{
		goals.GoalName:    "Juan Pérez",
		goals.GoalEmail:   "juan@example.com",
		goals.GoalProject: "necesito una tienda online con pagos",
	}
	for k, v := range want {
		if state.Fields[k] != v {
			t.Errorf("Fields[%q] = %q, want %q", k, state.Fields[k], v)
		}
	}
	if _, ok := state.Fields[goals.GoalPhone]; ok {
		t.Error("phone captured despite skip")
	}
	if len(f.backend.calls) != 0 {
		t.Error("lead dispatched before final confirmation")
	}
}

func TestScenarioBFinalDecline(t *testing.T) {
	f := newFixture(t)

	state := drive(t, f, nil,
		"quiero agendar una reunión",
		"sí",
		"Juan Pérez",
		"juan@example.com",
		"no",
		"necesito una tienda online con pagos",
		"no",
	)

	if state.Step != capture.StepIdle {
		t.Errorf("Step = %q, want idle after decline", state.Step)
	}
	if len(f.backend.calls) != 0 {
		t.Error("lead dispatched despite decline")
	}
	// Fields survive the decline.
	if state.Fields[goals.GoalEmail] != "juan@example.com" {
		t.Errorf("fields not preserved: %v", state.Fields)
	}
}

func TestScenarioCChitChatStaysIdle(t *testing.T) {
	f := newFixture(t)

	tr := f.d.DetectTrigger("hola, como estas", nil, capture.NewState())
	if tr.Triggered {
		t.Error("chit-chat triggered a capture")
	}
	if tr.State.Step != capture.StepIdle {
		t.Errorf("Step = %q, want idle", tr.State.Step)
	}
}

func TestScenarioDInvalidEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	state := drive(t, f, nil, "quiero agendar una reunión", "sí", "Juan Pérez")
	before := len(state.Fields)

	res := f.d.ProcessTurn(ctx, "not-an-email", state, nil)
	if res.State.Step != capture.StepAskingEmail {
		t.Errorf("Step = %q, want asking_email", res.State.Step)
	}
	if res.ValidationError == "" {
		t.Error("ValidationError empty")
	}
	if len(res.State.Fields) != before {
		t.Error("fields mutated on validation failure")
	}
}

func TestDetectTriggerNoOpWhileActive(t *testing.T) {
	f := newFixture(t)

	for _, step := range []capture.Step{
		capture.StepPendingConfirmation, capture.StepAskingName,
		capture.StepConfirmSend, capture.StepCompleted,
	} {
		tr := f.d.DetectTrigger("quiero agendar una reunión", nil, capture.State{Step: step})
		if tr.Triggered {
			t.Errorf("DetectTrigger fired while step = %q", step)
		}
	}
}

func TestSummaryAttachedOnCaptureEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	transcript := []chat.Turn{
		{Role: chat.RoleUser, Content: "necesito una tienda online"},
		{Role: chat.RoleAssistant, Content: "¿Querés agendar una reunión?"},
	}

	tr := f.d.DetectTrigger("sí", chat.TagTranscript(transcript), capture.NewState())
	if !tr.Triggered {
		t.Fatal("contextual affirmation did not trigger")
	}

	res := f.d.ProcessTurn(ctx, "sí", tr.State, transcript)
	if res.State.Step != capture.StepAskingName {
		t.Fatalf("Step = %q, want asking_name", res.State.Step)
	}
	if res.State.Fields[capture.FieldSummary] == "" {
		t.Error("summary not attached on pending_confirmation -> asking_name")
	}

	// Validation failures later must not re-run or clear the summary.
	res2 := f.d.ProcessTurn(ctx, "J", res.State, transcript)
	if res2.State.Fields[capture.FieldSummary] != res.State.Fields[capture.FieldSummary] {
		t.Error("summary changed on a validation re-prompt")
	}
}

func TestProjectContextSeededOnCaptureEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	transcript := []chat.Turn{
		{Role: chat.RoleUser, Content: "hola"},
		{Role: chat.RoleAssistant, Content: "¡Hola! Contame en qué puedo ayudarte con tu proyecto."},
		{Role: chat.RoleUser, Content: "necesito una tienda online con pagos y facturación"},
		{Role: chat.RoleUser, Content: "quiero agendar una reunión"},
	}

	tr := f.d.DetectTrigger("quiero agendar una reunión", chat.TagTranscript(transcript[:3]), capture.NewState())
	if !tr.Triggered {
		t.Fatal("strong phrase did not trigger")
	}

	res := f.d.ProcessTurn(ctx, "sí", tr.State, transcript)
	brief := res.State.Fields[capture.FieldSummary]

	marker := "Contexto del proyecto: "
	i := strings.Index(brief, marker)
	if i < 0 {
		t.Fatalf("brief lacks project context: %q", brief)
	}
	pc := brief[i+len(marker):]

	if !strings.Contains(pc, "necesito una tienda online con pagos y facturación") {
		t.Errorf("substantive customer line missing from context: %q", pc)
	}
	if strings.Contains(pc, "hola") {
		t.Errorf("short greeting leaked into context: %q", pc)
	}
	if strings.Contains(pc, "Contame en qué puedo ayudarte") {
		t.Errorf("assistant line leaked into context: %q", pc)
	}
}

func TestProjectContextOmittedWhenNoSubstantiveLines(t *testing.T) {
	f := newFixture(t)

	transcript := []chat.Turn{
		{Role: chat.RoleUser, Content: "hola"},
		{Role: chat.RoleUser, Content: "quiero contratar"},
	}

	tr := f.d.DetectTrigger("quiero contratar", chat.TagTranscript(transcript[:1]), capture.NewState())
	if !tr.Triggered {
		t.Fatal("strong phrase did not trigger")
	}

	res := f.d.ProcessTurn(context.Background(), "sí", tr.State, transcript)
	brief := res.State.Fields[capture.FieldSummary]
	if brief == "" {
		t.Fatal("summary not attached")
	}
	if strings.Contains(brief, "Contexto del proyecto:") {
		t.Errorf("empty context still emitted a marker: %q", brief)
	}
}

func TestCooldownIdempotence(t *testing.T) {
	f := newFixture(t)

	completed := capture.State{Step: capture.StepCompleted, CompletedAt: *f.now}

	// Within the cooldown: state stays completed and triggers are suppressed.
	*f.now = f.now.Add(2 * time.Minute)
	for i := 0; i < 2; i++ {
		s := f.d.Refresh(completed)
		if s.Step != capture.StepCompleted {
			t.Fatalf("Refresh inside cooldown: Step = %q", s.Step)
		}
		if tr := f.d.DetectTrigger("quiero agendar una reunión", nil, s); tr.Triggered {
			t.Fatal("re-triggered during cooldown")
		}
	}

	// After the cooldown a new capture may start.
	*f.now = f.now.Add(4 * time.Minute)
	s := f.d.Refresh(completed)
	if s.Step != capture.StepIdle {
		t.Fatalf("Refresh after cooldown: Step = %q, want idle", s.Step)
	}
	if tr := f.d.DetectTrigger("quiero agendar una reunión", nil, s); !tr.Triggered {
		t.Error("trigger suppressed after cooldown expired")
	}
}

func TestSend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	state := capture.NewState().
		WithField(goals.GoalName, "Juan Pérez").
		WithField(goals.GoalEmail, "juan@example.com").
		WithField(goals.GoalProject, "necesito una tienda online").
		WithField(capture.FieldSummary, "resumen").
		WithLog("Customer: hola")

	res := f.d.Send(ctx, state)
	if !res.Success || res.LeadID != "lead-1" {
		t.Fatalf("Send = %+v", res)
	}

	sent := f.backend.calls[0]
	if sent.Name != "Juan Pérez" || sent.Email != "juan@example.com" {
		t.Errorf("lead = %+v", sent)
	}
	if sent.Summary != "resumen" {
		t.Errorf("Summary = %q", sent.Summary)
	}
	if len(sent.Transcript) != 1 {
		t.Errorf("Transcript = %v", sent.Transcript)
	}
	if !sent.CreatedAt.Equal(*f.now) {
		t.Errorf("CreatedAt = %v, want fixed clock", sent.CreatedAt)
	}
}

func TestSendDoubleCheck(t *testing.T) {
	f := newFixture(t)

	incomplete := capture.NewState().WithField(goals.GoalName, "Juan Pérez")
	res := f.d.Send(context.Background(), incomplete)
	if res.Success {
		t.Fatal("incomplete lead sent")
	}
	if res.Error == "" {
		t.Error("Error empty on incomplete lead")
	}
	if len(f.backend.calls) != 0 {
		t.Error("backend called for incomplete lead")
	}
}

func TestSendPartialFailureNote(t *testing.T) {
	f := newFixture(t)
	f.backend.result = lead.Result{Success: true, ID: "lead-2", Note: "lead saved, but notification may be delayed"}

	state := capture.NewState().
		WithField(goals.GoalName, "Ana").
		WithField(goals.GoalEmail, "ana@example.com").
		WithField(goals.GoalProject, "app móvil para reservas")

	res := f.d.Send(context.Background(), state)
	if !res.Success {
		t.Fatal("partial failure reported as failure")
	}
	if res.Note == "" {
		t.Error("Note not propagated")
	}
}

func TestCanSend(t *testing.T) {
	f := newFixture(t)

	complete := capture.NewState().
		WithField(goals.GoalName, "Ana").
		WithField(goals.GoalEmail, "ana@example.com").
		WithField(goals.GoalProject, "app móvil para reservas")

	if !f.d.CanSend(complete) {
		t.Error("CanSend = false for complete fields")
	}
	if f.d.CanSend(capture.NewState()) {
		t.Error("CanSend = true for empty fields")
	}
}
