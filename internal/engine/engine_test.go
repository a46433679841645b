package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/choosielabs/choosie/internal/domain"
	"github.com/choosielabs/choosie/internal/token"
)

// fakeLookup is a scripted offer-lookup collaborator.
type fakeLookup struct {
	offer *domain.Offer
	err   error
	calls int
}

func (f *fakeLookup) Lookup(_ context.Context, _ string) (*domain.Offer, error) {
	f.calls++
	return f.offer, f.err
}

func newTestEngine(lookup Lookup, ttl time.Duration) (*Engine, *token.Store) {
	tokens := token.NewStore("http://localhost:8080")
	return New(tokens, lookup, NewKeywordClassifier(), ttl), tokens
}

func newSession(id string) *domain.Session {
	return &domain.Session{ID: id}
}

func ramenOffer() *domain.Offer {
	return &domain.Offer{Restaurant: "Ramen X", Item: "Tonkotsu", DiscountPercent: 15, Area: "Makati"}
}

func TestInquiryWithNoOfferDelegates(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{}
	eng, tokens := newTestEngine(lookup, 0)
	sess := newSession("s1")

	d := eng.Decide(context.Background(), sess, "any discount on ramen?")
	if d.Structural || d.Kind != KindDelegate {
		t.Fatalf("expected delegation, got %+v", d)
	}
	if lookup.calls != 1 {
		t.Fatalf("expected exactly 1 lookup call, got %d", lookup.calls)
	}
	if tokens.Count() != 0 {
		t.Fatal("no token must be issued on a plain inquiry")
	}
	if sess.Pending != nil {
		t.Fatal("no pending offer must be stored when lookup returns none")
	}
}

func TestInquiryWithOfferPresentsAndStoresPending(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{offer: ramenOffer()}
	eng, _ := newTestEngine(lookup, time.Hour)
	sess := newSession("s1")

	d := eng.Decide(context.Background(), sess, "any promo at Ramen X?")
	if !d.Structural || d.Kind != KindOffer {
		t.Fatalf("expected offer presentation, got %+v", d)
	}
	if !strings.Contains(d.Reply, "15") {
		t.Errorf("reply must mention the discount, got %q", d.Reply)
	}
	if !strings.Contains(strings.ToLower(d.Reply), "yes/no") {
		t.Errorf("reply must ask for yes/no confirmation, got %q", d.Reply)
	}

	if sess.Pending == nil {
		t.Fatal("expected a pending offer")
	}
	if sess.Pending.Offer != *ramenOffer() {
		t.Errorf("pending offer does not match lookup result: %+v", sess.Pending.Offer)
	}
	if sess.Pending.ExpiresAt.IsZero() {
		t.Error("expected pending offer to carry an expiry")
	}
}

func TestAffirmativeConsumesPendingIntoToken(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{offer: ramenOffer()}
	eng, tokens := newTestEngine(lookup, time.Hour)
	sess := newSession("s1")

	eng.Decide(context.Background(), sess, "any promo at Ramen X?")
	d := eng.Decide(context.Background(), sess, "yes")

	if !d.Structural || d.Kind != KindRedemption {
		t.Fatalf("expected redemption, got %+v", d)
	}
	if d.Issued == nil {
		t.Fatal("expected an issued token")
	}
	if !strings.Contains(d.Reply, d.Issued.Token) {
		t.Error("reply must embed the token identifier")
	}
	if !strings.Contains(d.Reply, d.Issued.QRImage) {
		t.Error("reply must embed the QR payload")
	}
	if sess.Pending != nil {
		t.Fatal("pending offer must be cleared after redemption")
	}

	// The frozen offer text uses the composed format.
	res := tokens.Validate(d.Issued.Token)
	if res.Status != token.StatusSuccess {
		t.Fatalf("expected token to validate, got %s", res.Status)
	}
	if res.Offer != "Ramen X | Tonkotsu | 15% OFF" {
		t.Errorf("unexpected frozen offer text: %q", res.Offer)
	}
}

func TestSecondAffirmativeDoesNotMintAgain(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{offer: ramenOffer()}
	eng, tokens := newTestEngine(lookup, time.Hour)
	sess := newSession("s1")

	eng.Decide(context.Background(), sess, "any promo?")
	eng.Decide(context.Background(), sess, "yes")
	d := eng.Decide(context.Background(), sess, "yes")

	if d.Structural {
		t.Fatalf("a stray yes with no pending offer must delegate, got %+v", d)
	}
	if tokens.Count() != 1 {
		t.Fatalf("expected exactly 1 token, got %d", tokens.Count())
	}
}

func TestDeclineClearsPendingWithoutToken(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{offer: ramenOffer()}
	eng, tokens := newTestEngine(lookup, time.Hour)
	sess := newSession("s1")

	eng.Decide(context.Background(), sess, "any promo?")
	d := eng.Decide(context.Background(), sess, "no thanks")

	if !d.Structural || d.Kind != KindDecline {
		t.Fatalf("expected structural decline, got %+v", d)
	}
	if tokens.Count() != 0 {
		t.Fatal("decline must not issue a token")
	}
	if sess.Pending != nil {
		t.Fatal("decline clears the pending offer")
	}

	// The conversation continues normally afterwards.
	if d := eng.Decide(context.Background(), sess, "recommend me sushi instead"); d.Structural {
		t.Fatalf("expected delegation after decline, got %+v", d)
	}
}

func TestLookupFailureFallsThrough(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{err: errors.New("catalog backend down")}
	eng, tokens := newTestEngine(lookup, 0)
	sess := newSession("s1")

	d := eng.Decide(context.Background(), sess, "any vouchers?")
	if d.Structural {
		t.Fatalf("lookup failure must fall through to delegation, got %+v", d)
	}
	if tokens.Count() != 0 {
		t.Fatal("no token on lookup failure")
	}
}

func TestExpiredPendingOfferIsNotConfirmable(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{offer: ramenOffer()}
	eng, tokens := newTestEngine(lookup, time.Hour)
	sess := newSession("s1")

	eng.Decide(context.Background(), sess, "any promo?")
	sess.Pending.ExpiresAt = time.Now().Add(-time.Second)

	d := eng.Decide(context.Background(), sess, "yes")
	if d.Structural {
		t.Fatalf("a stale offer must not be redeemable, got %+v", d)
	}
	if tokens.Count() != 0 {
		t.Fatalf("expected no token for a stale offer, got %d", tokens.Count())
	}
	if sess.Pending != nil {
		t.Fatal("expired pending offer must be discarded")
	}
}

func TestInquiryWhileOfferingDoesNotReplaceOffer(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{offer: ramenOffer()}
	eng, _ := newTestEngine(lookup, time.Hour)
	sess := newSession("s1")

	eng.Decide(context.Background(), sess, "any promo?")
	if lookup.calls != 1 {
		t.Fatalf("expected 1 lookup, got %d", lookup.calls)
	}

	// Another inquiry while an offer is pending delegates; the pending
	// offer stays as presented.
	d := eng.Decide(context.Background(), sess, "what about dessert discounts?")
	if d.Structural {
		t.Fatalf("expected delegation, got %+v", d)
	}
	if lookup.calls != 1 {
		t.Fatalf("lookup must not run while an offer is pending, got %d calls", lookup.calls)
	}
	if sess.Pending == nil || sess.Pending.Restaurant != "Ramen X" {
		t.Fatal("pending offer must be retained")
	}
}
