package capture

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Reply classifies a visitor's answer to a yes/no question.
type Reply int

const (
	// ReplyAmbiguous means the answer matched neither list; re-ask, never guess.
	ReplyAmbiguous Reply = iota
	ReplyYes
	ReplyNo
)

// yesNoClassifier matches free-text replies against configured affirmative
// and negative token lists. Exact matching runs first; single-token replies
// additionally get a Jaro-Winkler fuzzy pass so "oka", "yess", or an answer
// typed without diacritics still classify.
type yesNoClassifier struct {
	affirmations []string
	negatives    []string
	threshold    float64
}

func newYesNoClassifier(affirmations, negatives []string, threshold float64) *yesNoClassifier {
	c := &yesNoClassifier{threshold: threshold}
	for _, a := range affirmations {
		if n := normalizeReply(a); n != "" {
			c.affirmations = append(c.affirmations, n)
		}
	}
	for _, n := range negatives {
		if nn := normalizeReply(n); nn != "" {
			c.negatives = append(c.negatives, nn)
		}
	}
	return c
}

// Classify maps a raw reply to yes, no, or ambiguous.
func (c *yesNoClassifier) Classify(message string) Reply {
	msg := normalizeReply(message)
	if msg == "" {
		return ReplyAmbiguous
	}

	if contains(c.affirmations, msg) {
		return ReplyYes
	}
	if contains(c.negatives, msg) {
		return ReplyNo
	}

	// Fuzzy pass, single tokens only: matching whole sentences against short
	// tokens produces junk scores.
	if strings.ContainsRune(msg, ' ') {
		return ReplyAmbiguous
	}

	yesScore := bestScore(c.affirmations, msg)
	noScore := bestScore(c.negatives, msg)

	switch {
	case yesScore >= c.threshold && yesScore > noScore:
		return ReplyYes
	case noScore >= c.threshold && noScore > yesScore:
		return ReplyNo
	default:
		return ReplyAmbiguous
	}
}

// bestScore returns the highest Jaro-Winkler similarity between msg and any
// single-token candidate.
func bestScore(candidates []string, msg string) float64 {
	best := 0.0
	for _, cand := range candidates {
		if strings.ContainsRune(cand, ' ') {
			continue
		}
		if s := matchr.JaroWinkler(msg, cand, false); s > best {
			best = s
		}
	}
	return best
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func normalizeReply(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Trim(s, "¡!¿?.,;:\"'")
}
