// Package intent decides whether a visitor message signals willingness to
// move toward a commercial engagement.
//
// Detection is a pure function of the message and recent transcript context.
// The Classifier interface keeps the strategy swappable: the default
// keyword classifier can later be replaced by an embedding-based or ML
// classifier without touching the capture state machine.
package intent

import "strings"

// Classifier detects buying intent in a single visitor message.
type Classifier interface {
	// Detect reports whether message signals commercial intent.
	// contextLines is the tagged transcript up to, and not including, this
	// message. Pure; no side effects.
	Detect(message string, contextLines []string) bool
}

// Config holds the tunable phrase lists for the keyword classifier.
// Populated from deployment configuration; the lists are not business logic.
type Config struct {
	// StrongPhrases trigger on substring match regardless of context.
	StrongPhrases []string

	// Affirmations are bare agreement tokens that only trigger with
	// commercial context nearby.
	Affirmations []string

	// ContextKeywords mark a transcript line as commercial context.
	ContextKeywords []string

	// ContextWindow is how many trailing context lines are scanned.
	ContextWindow int
}

// KeywordClassifier is the default Classifier: strong-intent substring
// matching with a context-gated fallback for generic affirmations.
type KeywordClassifier struct {
	strongPhrases   []string
	affirmations    map[string]struct{}
	contextKeywords []string
	contextWindow   int
}

var _ Classifier = (*KeywordClassifier)(nil)

// NewKeywordClassifier builds a classifier from cfg. All phrases are
// normalised once at construction.
func NewKeywordClassifier(cfg Config) *KeywordClassifier {
	c := &KeywordClassifier{
		affirmations:  make(map[string]struct{}, len(cfg.Affirmations)),
		contextWindow: cfg.ContextWindow,
	}
	if c.contextWindow <= 0 {
		c.contextWindow = 6
	}
	for _, p := range cfg.StrongPhrases {
		if n := normalize(p); n != "" {
			c.strongPhrases = append(c.strongPhrases, n)
		}
	}
	for _, a := range cfg.Affirmations {
		if n := normalize(a); n != "" {
			c.affirmations[n] = struct{}{}
		}
	}
	for _, k := range cfg.ContextKeywords {
		if n := normalize(k); n != "" {
			c.contextKeywords = append(c.contextKeywords, n)
		}
	}
	return c
}

// Detect implements Classifier.
//
// Strong-intent phrases take precedence: a substring match anywhere in the
// message triggers immediately. Otherwise the message must be a bare
// affirmation AND recent context must contain a commercial keyword — a "sí"
// out of nowhere never triggers.
func (c *KeywordClassifier) Detect(message string, contextLines []string) bool {
	msg := normalize(message)
	if msg == "" {
		return false
	}

	for _, phrase := range c.strongPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}

	if !c.isAffirmation(msg) {
		return false
	}
	return c.hasCommercialContext(contextLines)
}

// isAffirmation reports whether msg is a generic agreement: either the whole
// message equals a configured affirmation ("of course") or every token is
// one ("sí claro"). Whole-token matching only — a longer sentence that
// merely contains "ok" does not qualify.
func (c *KeywordClassifier) isAffirmation(msg string) bool {
	if _, ok := c.affirmations[msg]; ok {
		return true
	}
	tokens := strings.Fields(msg)
	if len(tokens) == 0 {
		return false
	}
	for _, tok := range tokens {
		if _, ok := c.affirmations[strings.Trim(tok, punctuation)]; !ok {
			return false
		}
	}
	return true
}

// hasCommercialContext scans the most recent contextWindow lines for any
// configured commercial keyword.
func (c *KeywordClassifier) hasCommercialContext(contextLines []string) bool {
	start := len(contextLines) - c.contextWindow
	if start < 0 {
		start = 0
	}
	for _, line := range contextLines[start:] {
		n := normalize(line)
		for _, kw := range c.contextKeywords {
			if strings.Contains(n, kw) {
				return true
			}
		}
	}
	return false
}

const punctuation = "¡!¿?.,;:\"'"

// normalize lowercases, trims whitespace, and strips surrounding punctuation
// so "¡Sí!" compares equal to "sí".
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Trim(s, punctuation)
}
