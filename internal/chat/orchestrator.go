// Package chat implements the per-turn conversation pipeline and its HTTP
// and WebSocket bindings.
package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/choosielabs/choosie/internal/domain"
	"github.com/choosielabs/choosie/internal/engine"
	"github.com/choosielabs/choosie/internal/llm"
	"github.com/choosielabs/choosie/internal/session"
)

// fallbackReply is returned whenever the generation collaborator fails or
// answers empty. The turn still records history either way.
const fallbackReply = "Sorry, I'm having trouble answering right now. Please try again in a moment."

// TurnResult is the outcome of one chat turn.
type TurnResult struct {
	Reply     string           `json:"reply"`
	IsPromo   bool             `json:"is_promo"`
	Token     string           `json:"token,omitempty"`
	QRImage   string           `json:"qr_image,omitempty"`
	RedeemURL string           `json:"redeem_url,omitempty"`
	History   []domain.Message `json:"history"`
}

// Orchestrator runs the turn pipeline: record the user message, ask the
// engine for a structural decision, otherwise delegate to the model.
type Orchestrator struct {
	sessions     *session.Store
	engine       *engine.Engine
	generator    llm.Generator
	historyLimit int
	turnLog      *TurnLogger
}

// NewOrchestrator wires the turn pipeline. turnLog may be nil.
func NewOrchestrator(sessions *session.Store, eng *engine.Engine, gen llm.Generator, historyLimit int, turnLog *TurnLogger) *Orchestrator {
	return &Orchestrator{
		sessions:     sessions,
		engine:       eng,
		generator:    gen,
		historyLimit: historyLimit,
		turnLog:      turnLog,
	}
}

// Turn processes one incoming message and/or attachment for a session.
// The session's turn lock is held for the whole call, so concurrent turns
// on the same session never interleave.
func (o *Orchestrator) Turn(ctx context.Context, sessionID, text string, att *llm.Attachment) (*TurnResult, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if text == "" && att == nil {
		return nil, fmt.Errorf("message or attachment is required")
	}

	var result *TurnResult
	o.sessions.WithSession(sessionID, func(sess *domain.Session) {
		if att != nil {
			// Record the attachment's presence, not its content.
			sess.Append(domain.Message{
				Role:       domain.RoleUser,
				Content:    fmt.Sprintf("[attachment: %s]", att.MIMEType),
				Attachment: att.MIMEType,
			})
		}
		if text != "" {
			sess.Append(domain.Message{Role: domain.RoleUser, Content: text})
			o.logTurn(sessionID, domain.RoleUser, text, "message")
		}

		decision := o.engine.Decide(ctx, sess, text)
		if decision.Structural {
			result = o.finish(sess, decision.Reply, decision)
			return
		}

		reply := o.generate(ctx, sess, text, att)
		result = o.finish(sess, reply, decision)
	})
	return result, nil
}

// generate delegates to the model; failures are absorbed into the fixed
// fallback text rather than propagated.
func (o *Orchestrator) generate(ctx context.Context, sess *domain.Session, text string, att *llm.Attachment) string {
	// History already includes the current user message; exclude it from
	// the rendered context so it is not presented to the model twice.
	history := sess.History()
	if n := len(history); n > 0 {
		history = history[:n-1]
	}

	req := llm.Request{
		System:     systemPrompt,
		Prompt:     buildPrompt(history, text, att != nil),
		Attachment: att,
	}
	reply, err := o.generator.Generate(ctx, req)
	if err != nil {
		slog.Warn("Generation failed, using fallback reply", "session_id", sess.ID, "error", err)
		return fallbackReply
	}
	return reply
}

func (o *Orchestrator) finish(sess *domain.Session, reply string, decision engine.Decision) *TurnResult {
	sess.Append(domain.Message{Role: domain.RoleAssistant, Content: reply})
	sess.Trim(o.historyLimit)
	o.logTurn(sess.ID, domain.RoleAssistant, reply, string(decision.Kind))

	result := &TurnResult{
		Reply:   reply,
		History: sess.History(),
	}
	if decision.Kind == engine.KindRedemption && decision.Issued != nil {
		result.IsPromo = true
		result.Token = decision.Issued.Token
		result.QRImage = decision.Issued.QRImage
		result.RedeemURL = decision.Issued.RedeemURL
	}
	return result
}

func (o *Orchestrator) logTurn(sessionID string, role domain.Role, content, eventType string) {
	if o.turnLog == nil {
		return
	}
	o.turnLog.Log(TurnEvent{
		SessionID: sessionID,
		Role:      string(role),
		EventType: eventType,
		Content:   content,
	})
}
