package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/lucasbarrios/leadline/internal/capture"
	"github.com/lucasbarrios/leadline/internal/dispatch"
	"github.com/lucasbarrios/leadline/internal/gate"
	"github.com/lucasbarrios/leadline/internal/goals"
	"github.com/lucasbarrios/leadline/internal/observe"
	"github.com/lucasbarrios/leadline/internal/respond"
	"github.com/lucasbarrios/leadline/pkg/chat"
)

// Sentinel errors the chat surface maps to HTTP statuses. Input validation
// errors (empty, too long, dangerous content) pass through from the gate
// package unchanged.
var (
	ErrRateLimited   = errors.New("app: rate limit exceeded")
	ErrCaptchaDenied = errors.New("app: captcha verification failed")
)

// Response is what the pipeline hands back to the chat surface for one
// visitor message.
type Response struct {
	// Text is the assistant's reply: a capture prompt, a validation
	// re-prompt, or a free-form LLM answer.
	Text string

	// Step is the capture step after this turn, for clients that render the
	// script progress.
	Step capture.Step

	// LeadID is set when this turn dispatched a lead.
	LeadID string

	// Note carries the partial-failure diagnostic from delivery, if any.
	Note string
}

// PipelineConfig holds the pipeline's collaborators.
type PipelineConfig struct {
	Sessions   *Sessions
	Validator  *gate.Validator
	Limiter    gate.Allower
	Captcha    *gate.Captcha
	Dispatcher *dispatch.Dispatcher
	Responder  *respond.Responder
	Metrics    *observe.Metrics
}

// Pipeline routes one visitor message through the gates, the capture state
// machine, and the free-form responder. Stateless apart from the session
// registry; safe for concurrent use.
type Pipeline struct {
	sessions   *Sessions
	validator  *gate.Validator
	limiter    gate.Allower
	captcha    *gate.Captcha
	dispatcher *dispatch.Dispatcher
	responder  *respond.Responder
	metrics    *observe.Metrics
	now        func() time.Time
}

// NewPipeline builds a Pipeline. Metrics defaults to the package-level
// instance when nil.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Pipeline{
		sessions:   cfg.Sessions,
		validator:  cfg.Validator,
		limiter:    cfg.Limiter,
		captcha:    cfg.Captcha,
		dispatcher: cfg.Dispatcher,
		responder:  cfg.Responder,
		metrics:    m,
		now:        time.Now,
	}
}

// HandleMessage processes one visitor message end to end and returns the
// assistant's reply. The session lock is held for the whole turn, so turns
// within one conversation are strictly ordered while conversations stay
// independent.
func (p *Pipeline) HandleMessage(ctx context.Context, sessionID, message, captchaToken string) (Response, error) {
	return p.HandleMessageStream(ctx, sessionID, message, captchaToken, nil)
}

// HandleMessageStream is HandleMessage with incremental delivery: when the
// turn takes the free-form LLM path and onChunk is non-nil, each completion
// chunk is forwarded as it arrives. Capture-script turns emit no chunks; the
// returned Response always carries the complete reply either way.
func (p *Pipeline) HandleMessageStream(ctx context.Context, sessionID, message, captchaToken string, onChunk func(text string)) (Response, error) {
	msg, err := p.validator.Sanitize(message)
	if err != nil {
		return Response{}, err
	}
	if p.limiter != nil && !p.limiter.Allow(sessionID) {
		return Response{}, ErrRateLimited
	}
	if p.captcha != nil && !p.captcha.Allow(ctx, captchaToken) {
		return Response{}, ErrCaptchaDenied
	}

	sess := p.sessions.Get(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	now := p.now()
	userTurn := chat.Turn{Role: chat.RoleUser, Content: msg, Timestamp: now}

	// Trigger context covers the conversation up to, not including, the
	// message being classified.
	contextLines := chat.TagTranscript(sess.transcript)
	sess.transcript = append(sess.transcript, userTurn)

	state := p.dispatcher.Refresh(sess.state).WithLog(chat.TagTurn(userTurn))

	var resp Response
	if state.Step.Active() {
		state, resp = p.captureTurn(ctx, msg, state, sess.transcript)
	} else {
		state, resp = p.freeFormTurn(ctx, msg, state, sess.transcript, contextLines, onChunk)
	}

	botTurn := chat.Turn{Role: chat.RoleAssistant, Content: resp.Text, Timestamp: now}
	sess.transcript = append(sess.transcript, botTurn)
	state = state.WithLog(chat.TagTurn(botTurn))

	sess.state = state
	sess.lastSeen = now

	resp.Step = state.Step
	return resp, nil
}

// captureTurn advances the capture script and, when the machine signals it,
// dispatches the lead.
func (p *Pipeline) captureTurn(ctx context.Context, msg string, state capture.State, transcript []chat.Turn) (capture.State, Response) {
	prev := state.Step
	res := p.dispatcher.ProcessTurn(ctx, msg, state, transcript)
	p.recordTransition(ctx, prev, res)

	resp := Response{Text: res.BotPrompt}
	state = res.State

	if res.ShouldSend {
		start := p.now()
		sr := p.dispatcher.Send(ctx, state)
		p.metrics.DeliveryDuration.Record(ctx, time.Since(start).Seconds())
		resp.LeadID = sr.LeadID
		resp.Note = sr.Note
		switch {
		case !sr.Success:
			p.metrics.RecordLeadDelivered(ctx, "error")
			slog.Error("lead delivery failed", "err", sr.Error)
		case sr.Note != "":
			p.metrics.RecordLeadDelivered(ctx, "partial")
		default:
			p.metrics.RecordLeadDelivered(ctx, "ok")
		}
	}
	return state, resp
}

// freeFormTurn runs trigger detection and, failing that, the LLM responder.
func (p *Pipeline) freeFormTurn(ctx context.Context, msg string, state capture.State, transcript []chat.Turn, contextLines []string, onChunk func(string)) (capture.State, Response) {
	if tr := p.dispatcher.DetectTrigger(msg, contextLines, state); tr.Triggered {
		p.metrics.TriggersDetected.Add(ctx, 1)
		p.metrics.ActiveCaptures.Add(ctx, 1)
		return tr.State, Response{Text: tr.Prompt}
	}

	start := p.now()
	text, err := p.reply(ctx, transcript, onChunk)
	p.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordProviderError(ctx, "llm", "chat")
		slog.Warn("free-form reply degraded", "session_err", err)
	}
	return state, Response{Text: text}
}

// reply runs the responder, streaming chunks through onChunk when set. The
// returned text is always the full reply; on a streaming error mid-reply the
// partial text collected so far is kept, followed by the mapped failure text.
func (p *Pipeline) reply(ctx context.Context, transcript []chat.Turn, onChunk func(string)) (string, error) {
	if onChunk == nil {
		return p.responder.Reply(ctx, transcript)
	}

	ch, fallback, err := p.responder.StreamReply(ctx, transcript)
	if err != nil {
		onChunk(fallback)
		return fallback, err
	}

	var b strings.Builder
	var streamErr error
	for chunk := range ch {
		if chunk.FinishReason == "error" {
			// The chunk text is the raw backend error; it goes to the log,
			// never to the visitor.
			msg := chunk.Text
			if msg == "" {
				msg = "stream ended with error"
			}
			streamErr = errors.New(msg)
			continue
		}
		if chunk.Text == "" {
			continue
		}
		onChunk(chunk.Text)
		b.WriteString(chunk.Text)
	}
	if streamErr != nil {
		safe := p.responder.MapError(streamErr)
		if b.Len() > 0 {
			safe = "\n\n" + safe
		}
		onChunk(safe)
		b.WriteString(safe)
		return b.String(), streamErr
	}
	return b.String(), nil
}

// recordTransition maps one state-machine step to funnel metrics.
func (p *Pipeline) recordTransition(ctx context.Context, prev capture.Step, res dispatch.TurnResult) {
	next := res.State.Step
	if prev.Active() && !next.Active() {
		p.metrics.ActiveCaptures.Add(ctx, -1)
	}
	switch {
	case prev == capture.StepPendingConfirmation && next == capture.StepAskingName:
		p.metrics.CapturesStarted.Add(ctx, 1)
	case prev == capture.StepPendingConfirmation && next == capture.StepIdle:
		p.metrics.RecordCaptureDeclined(ctx, "confirm_capture")
	case prev == capture.StepConfirmSend && next == capture.StepIdle:
		p.metrics.RecordCaptureDeclined(ctx, "confirm_send")
	case res.ShouldSend:
		p.metrics.CapturesCompleted.Add(ctx, 1)
	}
	if res.ValidationError != "" {
		p.metrics.RecordValidationFailure(ctx, goalForStep(prev))
	}
}

// goalForStep maps an asking step to its goal name for metric attributes.
func goalForStep(step capture.Step) string {
	switch step {
	case capture.StepAskingName:
		return goals.GoalName
	case capture.StepAskingEmail:
		return goals.GoalEmail
	case capture.StepAskingPhone:
		return goals.GoalPhone
	case capture.StepAskingProject:
		return goals.GoalProject
	default:
		return string(step)
	}
}
