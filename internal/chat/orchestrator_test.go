package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/choosielabs/choosie/internal/domain"
	"github.com/choosielabs/choosie/internal/engine"
	"github.com/choosielabs/choosie/internal/llm"
	"github.com/choosielabs/choosie/internal/session"
	"github.com/choosielabs/choosie/internal/token"
)

// fakeGenerator is a scripted generation collaborator.
type fakeGenerator struct {
	reply string
	err   error
	calls int
	last  llm.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	f.calls++
	f.last = req
	return f.reply, f.err
}

type fakeLookup struct {
	offer *domain.Offer
}

func (f *fakeLookup) Lookup(_ context.Context, _ string) (*domain.Offer, error) {
	return f.offer, nil
}

func newTestOrchestrator(gen llm.Generator, offer *domain.Offer) (*Orchestrator, *session.Store, *token.Store) {
	tokens := token.NewStore("http://localhost:8080")
	sessions := session.NewStore()
	eng := engine.New(tokens, &fakeLookup{offer: offer}, engine.NewKeywordClassifier(), time.Hour)
	return NewOrchestrator(sessions, eng, gen, 15, nil), sessions, tokens
}

func TestTurnDelegatesToModel(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: "Try the sinigang at Lola's Kitchen in Quezon City."}
	o, sessions, tokens := newTestOrchestrator(gen, nil)

	result, err := o.Turn(context.Background(), "s1", "any discount on ramen?", nil)
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}

	if gen.calls != 1 {
		t.Fatalf("expected exactly 1 model call, got %d", gen.calls)
	}
	if tokens.Count() != 0 {
		t.Fatal("no token must be issued")
	}
	if result.Reply != gen.reply {
		t.Errorf("unexpected reply: %q", result.Reply)
	}

	history := sessions.History("s1")
	if len(history) != 2 {
		t.Fatalf("expected user+assistant messages, got %d", len(history))
	}
	if history[0].Role != domain.RoleUser || history[1].Role != domain.RoleAssistant {
		t.Errorf("unexpected roles: %v", history)
	}
}

func TestTurnStructuralReplySkipsModel(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: "should never be used"}
	offer := &domain.Offer{Restaurant: "Ramen X", Item: "Tonkotsu", DiscountPercent: 15, Area: "Makati"}
	o, sessions, _ := newTestOrchestrator(gen, offer)

	result, err := o.Turn(context.Background(), "s1", "any promo on ramen?", nil)
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("structural turn must skip the model, got %d calls", gen.calls)
	}
	if !strings.Contains(result.Reply, "15") {
		t.Errorf("offer reply must mention the discount: %q", result.Reply)
	}
	if result.IsPromo {
		t.Error("offer presentation is not yet a redemption")
	}

	// Confirmation turn: token minted, model still never called.
	result, err = o.Turn(context.Background(), "s1", "yes", nil)
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("redemption turn must skip the model, got %d calls", gen.calls)
	}
	if !result.IsPromo || result.Token == "" || result.QRImage == "" {
		t.Fatalf("expected redemption payload, got %+v", result)
	}
	if !strings.Contains(result.Reply, result.Token) {
		t.Error("reply must embed the token identifier")
	}

	history := sessions.History("s1")
	if history[len(history)-1].Role != domain.RoleAssistant {
		t.Error("structural reply must be recorded as assistant message")
	}
}

func TestTurnFallbackOnModelFailure(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{err: errors.New("model unavailable")}
	o, sessions, _ := newTestOrchestrator(gen, nil)

	result, err := o.Turn(context.Background(), "s1", "where should I eat?", nil)
	if err != nil {
		t.Fatalf("model failure must not fail the turn: %v", err)
	}
	if result.Reply != fallbackReply {
		t.Errorf("expected fallback reply, got %q", result.Reply)
	}

	// The turn still records both sides of the exchange.
	history := sessions.History("s1")
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].Content != "where should I eat?" {
		t.Errorf("user message must be recorded before the model call: %v", history)
	}
}

func TestTurnRecordsAttachmentPresence(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: "That menu looks great - the tonkotsu stands out."}
	o, sessions, _ := newTestOrchestrator(gen, nil)

	att := &llm.Attachment{MIMEType: "image/png", Data: []byte{1, 2, 3}}
	if _, err := o.Turn(context.Background(), "s1", "", att); err != nil {
		t.Fatalf("Turn failed: %v", err)
	}

	history := sessions.History("s1")
	if len(history) != 2 {
		t.Fatalf("expected attachment note + assistant reply, got %d", len(history))
	}
	if history[0].Attachment != "image/png" {
		t.Errorf("expected attachment note, got %+v", history[0])
	}
	if !strings.Contains(history[0].Content, "image/png") {
		t.Errorf("attachment note must mention the media type, got %q", history[0].Content)
	}
	if gen.last.Attachment == nil {
		t.Error("attachment must be forwarded to the model")
	}
}

func TestTurnAttachmentWithTextRecordsBoth(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: "ok"}
	o, sessions, _ := newTestOrchestrator(gen, nil)

	att := &llm.Attachment{MIMEType: "application/pdf", Data: []byte("menu")}
	if _, err := o.Turn(context.Background(), "s1", "what's good here?", att); err != nil {
		t.Fatalf("Turn failed: %v", err)
	}

	history := sessions.History("s1")
	if len(history) != 3 {
		t.Fatalf("expected attachment note + user message + reply, got %d", len(history))
	}
	if history[0].Attachment == "" || history[1].Content != "what's good here?" {
		t.Errorf("unexpected history: %v", history)
	}
}

func TestTurnTrimsHistory(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: "noted"}
	o, sessions, _ := newTestOrchestrator(gen, nil)

	for i := 0; i < 20; i++ {
		if _, err := o.Turn(context.Background(), "s1", fmt.Sprintf("message %d", i), nil); err != nil {
			t.Fatalf("Turn %d failed: %v", i, err)
		}
	}

	if got := len(sessions.History("s1")); got != 15 {
		t.Fatalf("expected history trimmed to 15, got %d", got)
	}
}

func TestTurnRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	o, _, _ := newTestOrchestrator(gen, nil)

	if _, err := o.Turn(context.Background(), "s1", "", nil); err == nil {
		t.Fatal("expected error for empty turn")
	}
	if _, err := o.Turn(context.Background(), "", "hello", nil); err == nil {
		t.Fatal("expected error for missing session id")
	}
	if gen.calls != 0 {
		t.Fatal("invalid turns must not reach the model")
	}
}

func TestTurnPromptContainsHistoryAndSystem(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: "ok"}
	o, _, _ := newTestOrchestrator(gen, nil)

	if _, err := o.Turn(context.Background(), "s1", "I love spicy food", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Turn(context.Background(), "s1", "so where should I go?", nil); err != nil {
		t.Fatal(err)
	}

	if gen.last.System == "" {
		t.Error("expected a system instruction")
	}
	if !strings.Contains(gen.last.Prompt, "I love spicy food") {
		t.Errorf("prompt must include prior history, got %q", gen.last.Prompt)
	}
	if !strings.Contains(gen.last.Prompt, "User message: so where should I go?") {
		t.Errorf("prompt must end with the current message, got %q", gen.last.Prompt)
	}
	// The current message appears once as the current turn, not duplicated
	// via the rendered history.
	if strings.Count(gen.last.Prompt, "so where should I go?") != 1 {
		t.Errorf("current message duplicated in prompt: %q", gen.last.Prompt)
	}
}
