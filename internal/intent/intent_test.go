package intent

import "testing"

func testClassifier() *KeywordClassifier {
	return NewKeywordClassifier(Config{
		StrongPhrases: []string{
			"quiero contratar", "quiero agendar", "agendar una reunión",
			"schedule a meeting", "let's do this", "get a quote",
		},
		Affirmations:    []string{"sí", "si", "ok", "vale", "claro", "yes", "sure", "of course"},
		ContextKeywords: []string{"agendar", "reunión", "contratar", "cotización", "schedule", "meeting", "quote"},
		ContextWindow:   4,
	})
}

func TestDetectStrongPhrases(t *testing.T) {
	c := testClassifier()

	tests := []struct {
		msg  string
		want bool
	}{
		{"quiero agendar una reunión", true},
		{"Hola, QUIERO CONTRATAR tus servicios", true},
		{"can we schedule a meeting next week?", true},
		{"let's do this!", true},
		{"hola, como estas", false},
		{"me gusta tu página", false},
		{"", false},
		{"   ", false},
	}

	for _, tt := range tests {
		// Strong phrases trigger with no context at all.
		if got := c.Detect(tt.msg, nil); got != tt.want {
			t.Errorf("Detect(%q, nil) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestDetectAffirmationNeedsContext(t *testing.T) {
	c := testClassifier()

	commercial := []string{
		"Customer: cuanto cuesta una web",
		"Assistant: ¿Querés agendar una reunión para hablarlo?",
	}
	chitchat := []string{
		"Customer: hola",
		"Assistant: ¡Hola! ¿En qué te ayudo?",
	}

	tests := []struct {
		msg     string
		context []string
		want    bool
	}{
		{"sí", commercial, true},
		{"¡Sí!", commercial, true},
		{"ok", commercial, true},
		{"sí claro", commercial, true},
		{"of course", commercial, true},
		{"sí", chitchat, false},
		{"sí", nil, false},
		{"ok", nil, false},
		// Whole-token rule: sentences containing an affirmation token do not qualify.
		{"ok pero primero contame de vos", commercial, false},
		{"el si bemol es mi nota favorita", commercial, false},
	}

	for _, tt := range tests {
		if got := c.Detect(tt.msg, tt.context); got != tt.want {
			t.Errorf("Detect(%q, %d context lines) = %v, want %v", tt.msg, len(tt.context), got, tt.want)
		}
	}
}

func TestDetectContextWindow(t *testing.T) {
	c := testClassifier()

	// Commercial mention is 5 lines back but the window only covers 4.
	stale := []string{
		"Assistant: ¿Querés agendar una reunión?",
		"Customer: contame más de tus servicios",
		"Assistant: Hago desarrollo web y apps.",
		"Customer: interesante",
		"Assistant: ¡Gracias!",
	}
	if c.Detect("sí", stale) {
		t.Error("affirmation triggered on context outside the window")
	}

	recent := append(stale[1:], "Assistant: ¿Querés agendar una reunión?")
	if !c.Detect("sí", recent) {
		t.Error("affirmation did not trigger on in-window commercial context")
	}
}

func TestDetectStrongPhraseBeatsContext(t *testing.T) {
	c := testClassifier()

	// Strong phrases are the high-confidence path; they never need context.
	if !c.Detect("quiero contratar", []string{"Customer: hola"}) {
		t.Error("strong phrase suppressed by non-commercial context")
	}
}

func TestDetectPure(t *testing.T) {
	c := testClassifier()
	ctx := []string{"Assistant: ¿Querés agendar una reunión?"}

	for i := 0; i < 3; i++ {
		if !c.Detect("sí", ctx) {
			t.Fatalf("Detect changed result on call %d", i+1)
		}
	}
	if len(ctx) != 1 || ctx[0] != "Assistant: ¿Querés agendar una reunión?" {
		t.Error("Detect mutated its context input")
	}
}
