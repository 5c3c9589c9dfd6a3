// Package mock provides a test double for the embeddings.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/lucasbarrios/leadline/pkg/provider/embeddings"
)

// Provider is a mock implementation of embeddings.Provider.
// Zero values cause methods to return zero values and nil errors.
type Provider struct {
	mu sync.Mutex

	// Vector is returned by Embed for every input.
	Vector []float32

	// Err, if non-nil, is returned as the error from Embed.
	Err error

	// Dim is returned by Dimensions. Defaults to len(Vector) when zero.
	Dim int

	// Model is returned by ModelID.
	Model string

	// EmbedCalls records the texts passed to Embed in order.
	EmbedCalls []string
}

// Embed records the call and returns Vector, Err.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, text)
	if p.Err != nil {
		return nil, p.Err
	}
	out := make([]float32, len(p.Vector))
	copy(out, p.Vector)
	return out, nil
}

// Dimensions returns Dim, or len(Vector) when Dim is zero.
func (p *Provider) Dimensions() int {
	if p.Dim != 0 {
		return p.Dim
	}
	return len(p.Vector)
}

// ModelID returns Model.
func (p *Provider) ModelID() string { return p.Model }

// Ensure Provider implements embeddings.Provider at compile time.
var _ embeddings.Provider = (*Provider)(nil)
