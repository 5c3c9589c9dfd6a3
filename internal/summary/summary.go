// Package summary condenses a chat transcript into a short brief for human
// hand-off. The primary path asks the LLM for a structured brief; a
// deterministic keyword fallback guarantees a summary always exists, so
// summarisation can never block the capture flow.
package summary

import (
	"fmt"
	"strings"
	"time"
)

// Summary is the condensed brief attached to a lead. Derived and disposable;
// recomputed on demand, never mutated.
type Summary struct {
	// NarrativeSummary is a one-paragraph account of the conversation.
	NarrativeSummary string `json:"narrative_summary"`

	// KeyPoints are notable customer lines, most recent last.
	KeyPoints []string `json:"key_points,omitempty"`

	// DetectedNeeds are coarse service categories inferred from the
	// transcript ("online store", "chatbot", ...).
	DetectedNeeds []string `json:"detected_needs,omitempty"`

	// GeneratedAt is when this summary was produced.
	GeneratedAt time.Time `json:"generated_at"`
}

// Text renders the summary as a single block for storage and notification.
func (s Summary) Text() string {
	var b strings.Builder
	b.WriteString(s.NarrativeSummary)
	if len(s.DetectedNeeds) > 0 {
		fmt.Fprintf(&b, "\n\nNecesidades detectadas: %s.", strings.Join(s.DetectedNeeds, ", "))
	}
	if len(s.KeyPoints) > 0 {
		b.WriteString("\n\nPuntos clave:")
		for _, p := range s.KeyPoints {
			b.WriteString("\n- ")
			b.WriteString(p)
		}
	}
	return b.String()
}

// needPatterns maps transcript keywords to the coarse need category they
// indicate. Scanning is case-insensitive substring matching; the categories
// mirror the services the site owner actually sells.
var needPatterns = []struct {
	keywords []string
	need     string
}{
	{[]string{"tienda", "ecommerce", "e-commerce", "store", "shop", "pagos", "payments"}, "tienda online"},
	{[]string{"web", "website", "página", "pagina", "landing", "sitio"}, "sitio web"},
	{[]string{"app", "aplicación", "aplicacion", "móvil", "movil", "mobile"}, "aplicación móvil"},
	{[]string{"bot", "chatbot", "asistente", "assistant"}, "chatbot"},
	{[]string{"integración", "integracion", "integration", "api"}, "integración"},
	{[]string{"automatizar", "automatización", "automatizacion", "automation"}, "automatización"},
}

// maxKeyPoints bounds the fallback key-point list.
const maxKeyPoints = 5

// DetectNeeds scans tagged transcript lines for service keywords and returns
// the matched need categories, deduplicated, in pattern order.
func DetectNeeds(lines []string) []string {
	var needs []string
	joined := strings.ToLower(strings.Join(lines, "\n"))
	for _, p := range needPatterns {
		for _, kw := range p.keywords {
			if strings.Contains(joined, kw) {
				needs = append(needs, p.need)
				break
			}
		}
	}
	return needs
}

// keyPoints picks customer lines that mention any need keyword, capped at
// maxKeyPoints, preferring the most recent mentions.
func keyPoints(lines []string) []string {
	var points []string
	for i := len(lines) - 1; i >= 0 && len(points) < maxKeyPoints; i-- {
		line := lines[i]
		rest, ok := strings.CutPrefix(line, "Customer: ")
		if !ok {
			continue
		}
		lower := strings.ToLower(rest)
		for _, p := range needPatterns {
			if containsAny(lower, p.keywords) {
				points = append(points, rest)
				break
			}
		}
	}
	// Restore chronological order.
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Fallback produces a deterministic summary from keyword matching alone.
// Used whenever the LLM path errors or returns nothing.
func Fallback(lines []string, now time.Time) Summary {
	needs := DetectNeeds(lines)
	points := keyPoints(lines)

	var narrative string
	switch {
	case len(needs) > 0:
		narrative = fmt.Sprintf(
			"Conversación de %d mensajes con un visitante interesado en: %s. "+
				"El visitante aceptó coordinar una reunión para avanzar con el proyecto.",
			len(lines), strings.Join(needs, ", "))
	default:
		narrative = fmt.Sprintf(
			"Conversación de %d mensajes con un visitante que aceptó coordinar una reunión. "+
				"No se detectaron necesidades específicas en el intercambio previo.",
			len(lines))
	}

	return Summary{
		NarrativeSummary: narrative,
		KeyPoints:        points,
		DetectedNeeds:    needs,
		GeneratedAt:      now,
	}
}
