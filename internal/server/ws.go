package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// streamRequest is one inbound WebSocket frame: a visitor message.
type streamRequest struct {
	Message      string `json:"message"`
	CaptchaToken string `json:"captcha_token,omitempty"`
}

// streamEvent is one outbound WebSocket frame. Free-form LLM replies arrive
// as a sequence of "chunk" events followed by a "done" event carrying the
// full turn result; capture-script turns emit "done" directly.
type streamEvent struct {
	Type string `json:"type"` // "chunk", "done", or "error"

	// Text is the incremental fragment on "chunk" events.
	Text string `json:"text,omitempty"`

	// Turn fields, set on "done".
	Reply  string `json:"reply,omitempty"`
	Step   string `json:"step,omitempty"`
	LeadID string `json:"lead_id,omitempty"`
	Note   string `json:"note,omitempty"`

	// Error is the client-safe message on "error" events.
	Error string `json:"error,omitempty"`
}

// handleChatStream upgrades to WebSocket and serves chat turns until the
// client disconnects. The session is identified by the session_id query
// parameter.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "session_id query parameter is required"})
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	for {
		var req streamRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			// Client closed or the request context ended; either way the
			// conversation is over.
			if ctx.Err() == nil && websocket.CloseStatus(err) == -1 {
				slog.Debug("websocket read ended", "session", sessionID, "err", err)
			}
			return
		}

		if err := s.streamTurn(ctx, conn, sessionID, req); err != nil {
			slog.Warn("websocket write failed", "session", sessionID, "err", err)
			return
		}
	}
}

// streamTurn runs one turn through the pipeline, forwarding chunks as they
// arrive. The returned error is a transport failure; pipeline errors are
// reported to the client as "error" events and do not end the connection.
func (s *Server) streamTurn(ctx context.Context, conn *websocket.Conn, sessionID string, req streamRequest) error {
	var writeErr error
	onChunk := func(text string) {
		if writeErr != nil {
			return
		}
		writeErr = wsjson.Write(ctx, conn, streamEvent{Type: "chunk", Text: text})
	}

	resp, err := s.app.Pipeline().HandleMessageStream(ctx, sessionID, req.Message, req.CaptchaToken, onChunk)
	if writeErr != nil {
		return writeErr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		_, msg := mapPipelineError(err)
		return wsjson.Write(ctx, conn, streamEvent{Type: "error", Error: msg})
	}

	return wsjson.Write(ctx, conn, streamEvent{
		Type:   "done",
		Reply:  resp.Text,
		Step:   string(resp.Step),
		LeadID: resp.LeadID,
		Note:   resp.Note,
	})
}
