// Package respond wraps the LLM for conversation turns that are not part of
// an active capture. It is a collaborator of the core, not part of it: the
// dispatcher routes here whenever the state machine has nothing to say.
//
// Raw provider errors never reach the visitor; every failure maps to one of
// three user-safe categories (busy / misconfigured / generic).
package respond

import (
	"context"
	"errors"
	"strings"

	"github.com/lucasbarrios/leadline/pkg/chat"
	"github.com/lucasbarrios/leadline/pkg/provider/llm"
)

// ErrNoProvider is returned when no LLM provider is configured.
var ErrNoProvider = errors.New("respond: no LLM provider configured")

// ErrorTexts holds the user-safe texts for each failure category.
type ErrorTexts struct {
	// Busy covers rate-limit and quota errors.
	Busy string

	// Misconfigured covers auth and configuration errors.
	Misconfigured string

	// Generic covers everything else.
	Generic string
}

// Responder produces free-form assistant replies from the conversation
// transcript. Stateless; safe for concurrent use.
type Responder struct {
	provider     llm.Provider
	systemPrompt string
	errTexts     ErrorTexts
}

// New builds a Responder. provider may be nil; every call then fails over to
// the misconfigured text.
func New(provider llm.Provider, systemPrompt string, errTexts ErrorTexts) *Responder {
	return &Responder{provider: provider, systemPrompt: systemPrompt, errTexts: errTexts}
}

// Reply completes the conversation with a full assistant reply.
//
// The returned string is always safe to show the visitor. When the provider
// fails, it carries the mapped category text and the error is returned
// alongside for logging — callers display the string, log the error.
func (r *Responder) Reply(ctx context.Context, transcript []chat.Turn) (string, error) {
	if r.provider == nil {
		return r.errTexts.Misconfigured, ErrNoProvider
	}

	resp, err := r.provider.Complete(ctx, r.buildRequest(transcript))
	if err != nil {
		return r.mapError(err), err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return r.errTexts.Generic, errors.New("respond: empty completion")
	}
	return resp.Content, nil
}

// StreamReply streams the assistant reply token by token. On setup failure
// the returned channel is nil and the string carries the user-safe text.
func (r *Responder) StreamReply(ctx context.Context, transcript []chat.Turn) (<-chan llm.Chunk, string, error) {
	if r.provider == nil {
		return nil, r.errTexts.Misconfigured, ErrNoProvider
	}

	ch, err := r.provider.StreamCompletion(ctx, r.buildRequest(transcript))
	if err != nil {
		return nil, r.mapError(err), err
	}
	return ch, "", nil
}

// MapError exposes the failure-category mapping for callers that run the
// provider themselves (e.g., stream consumers seeing an error chunk).
func (r *Responder) MapError(err error) string {
	return r.mapError(err)
}

func (r *Responder) buildRequest(transcript []chat.Turn) llm.CompletionRequest {
	messages := make([]llm.Message, 0, len(transcript))
	for _, t := range transcript {
		if !t.Role.IsValid() || t.Role == chat.RoleSystem {
			continue
		}
		messages = append(messages, llm.Message{
			Role:    string(t.Role),
			Content: t.Content,
		})
	}
	return llm.CompletionRequest{
		SystemPrompt: r.systemPrompt,
		Messages:     messages,
	}
}

// mapError classifies a provider error into one of the three user-safe
// categories. Classification is best effort over the error text; unknown
// shapes land on the generic message.
func (r *Responder) mapError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "429", "rate limit", "rate_limit", "quota", "overloaded", "too many requests"):
		return r.errTexts.Busy
	case containsAny(msg, "401", "403", "api key", "api_key", "unauthorized", "forbidden", "authentication", "invalid key"):
		return r.errTexts.Misconfigured
	default:
		return r.errTexts.Generic
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
