// Package engine implements the offer negotiation state machine. Per
// session the state is implicit: no pending offer means IDLE, a pending
// offer means OFFERING. A token is minted only on an explicit affirmative
// reply to the pending offer, never from loose enthusiasm elsewhere in
// the conversation.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/choosielabs/choosie/internal/domain"
	"github.com/choosielabs/choosie/internal/token"
)

// Lookup is the pluggable offer-lookup collaborator.
type Lookup interface {
	// Lookup returns a concrete offer relevant to the query, or nil if
	// there is none.
	Lookup(ctx context.Context, query string) (*domain.Offer, error)
}

// Kind categorizes a structural decision.
type Kind string

const (
	// KindRedemption means a pending offer was confirmed and a token minted.
	KindRedemption Kind = "redemption"
	// KindOffer means an offer was presented and awaits confirmation.
	KindOffer Kind = "offer"
	// KindDecline means a pending offer was refused and discarded.
	KindDecline Kind = "decline"
	// KindDelegate means no structural decision fired; the model answers.
	KindDelegate Kind = "delegate"
)

// Decision is the engine's verdict for one incoming message. Structural
// is false only for KindDelegate.
type Decision struct {
	Kind       Kind
	Structural bool
	Reply      string
	Issued     *token.Issued
}

// Engine evaluates the negotiation transitions in strict precedence order.
type Engine struct {
	tokens   *token.Store
	lookup   Lookup
	classify Classifier
	offerTTL time.Duration
}

// New creates an engine. offerTTL bounds how long a presented offer stays
// confirmable; zero means offers never expire.
func New(tokens *token.Store, lookup Lookup, classify Classifier, offerTTL time.Duration) *Engine {
	return &Engine{
		tokens:   tokens,
		lookup:   lookup,
		classify: classify,
		offerTTL: offerTTL,
	}
}

// Decide evaluates one incoming message against the session's pending
// offer slot. The caller must hold the session's turn lock; the engine
// mutates only the pending offer, never the history.
func (e *Engine) Decide(ctx context.Context, sess *domain.Session, message string) Decision {
	// A stale offer must not be confirmable: drop it before anything else.
	if sess.Pending != nil && sess.Pending.Expired(time.Now()) {
		slog.Info("Pending offer expired", "session_id", sess.ID, "restaurant", sess.Pending.Restaurant)
		sess.TakePending()
	}

	if sess.Pending != nil && e.classify.IsAffirmative(message) {
		return e.redeem(sess)
	}

	if sess.Pending != nil && e.classify.IsNegative(message) {
		offer := sess.TakePending()
		slog.Info("Offer declined", "session_id", sess.ID, "restaurant", offer.Restaurant)
		return Decision{
			Kind:       KindDecline,
			Structural: true,
			Reply:      "No problem! Let me know if you're craving anything else.",
		}
	}

	if sess.Pending == nil && e.classify.IsOfferInquiry(message) {
		offer, err := e.lookup.Lookup(ctx, message)
		if err != nil {
			// Lookup failure must never crash the turn; the model
			// answers the discount question conversationally.
			slog.Warn("Offer lookup failed", "session_id", sess.ID, "error", err)
			return Decision{Kind: KindDelegate}
		}
		if offer == nil {
			return Decision{Kind: KindDelegate}
		}
		return e.present(sess, offer)
	}

	return Decision{Kind: KindDelegate}
}

func (e *Engine) redeem(sess *domain.Session) Decision {
	offer := sess.TakePending()
	issued, err := e.tokens.Issue(offer.Text())
	if err != nil {
		slog.Error("Failed to issue redemption token", "session_id", sess.ID, "error", err)
		return Decision{
			Kind:       KindDecline,
			Structural: true,
			Reply:      "Sorry, I couldn't prepare your promo code just now. Please ask again in a moment.",
		}
	}

	slog.Info("Redemption token issued",
		"session_id", sess.ID,
		"token", issued.Token,
		"offer", offer.Text(),
	)
	reply := fmt.Sprintf(
		"Great! Here's your one-time promo code for %s:\n\n**%s**\n\n![QR code](data:image/png;base64,%s)\n\nShow this QR at the restaurant to redeem it. It works exactly once.",
		offer.Text(), issued.Token, issued.QRImage,
	)
	return Decision{
		Kind:       KindRedemption,
		Structural: true,
		Reply:      reply,
		Issued:     issued,
	}
}

func (e *Engine) present(sess *domain.Session, offer *domain.Offer) Decision {
	pending := &domain.PendingOffer{Offer: *offer}
	if e.offerTTL > 0 {
		pending.ExpiresAt = time.Now().Add(e.offerTTL)
	}
	sess.SetPending(pending)

	where := offer.Restaurant
	if offer.Area != "" {
		where = fmt.Sprintf("%s in %s", offer.Restaurant, offer.Area)
	}
	what := "your order"
	if offer.Item != "" {
		what = offer.Item
	}

	slog.Info("Offer presented",
		"session_id", sess.ID,
		"restaurant", offer.Restaurant,
		"discount", offer.DiscountPercent,
	)
	reply := fmt.Sprintf(
		"Good news! %s currently has %d%% OFF %s. Would you like me to generate the QR code for you? (yes/no)",
		where, offer.DiscountPercent, what,
	)
	return Decision{
		Kind:       KindOffer,
		Structural: true,
		Reply:      reply,
	}
}
