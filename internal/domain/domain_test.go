package domain

import (
	"testing"
	"time"
)

func TestOfferText(t *testing.T) {
	t.Parallel()

	full := Offer{Restaurant: "Ramen X", Item: "Tonkotsu", DiscountPercent: 15}
	if got := full.Text(); got != "Ramen X | Tonkotsu | 15% OFF" {
		t.Errorf("unexpected offer text: %q", got)
	}

	noItem := Offer{Restaurant: "Fresca", DiscountPercent: 10}
	if got := noItem.Text(); got != "Fresca | 10% OFF" {
		t.Errorf("unexpected offer text: %q", got)
	}
}

func TestPendingOfferExpiry(t *testing.T) {
	t.Parallel()

	now := time.Now()
	p := &PendingOffer{ExpiresAt: now.Add(time.Minute)}
	if p.Expired(now) {
		t.Error("offer within its window must not be expired")
	}
	if !p.Expired(now.Add(2 * time.Minute)) {
		t.Error("offer past its window must be expired")
	}

	forever := &PendingOffer{}
	if forever.Expired(now.Add(24 * time.Hour)) {
		t.Error("zero ExpiresAt means the offer never expires")
	}
}

func TestSessionTakePending(t *testing.T) {
	t.Parallel()

	s := &Session{ID: "s1"}
	if s.TakePending() != nil {
		t.Error("taking from an empty slot returns nil")
	}

	s.SetPending(&PendingOffer{Offer: Offer{Restaurant: "Ramen X"}})
	if p := s.TakePending(); p == nil || p.Restaurant != "Ramen X" {
		t.Fatalf("unexpected pending offer: %+v", p)
	}
	if s.TakePending() != nil {
		t.Error("the pending offer is consumed exactly once")
	}
}

func TestRoleValid(t *testing.T) {
	t.Parallel()

	if !RoleUser.Valid() || !RoleAssistant.Valid() {
		t.Error("known roles must be valid")
	}
	if Role("system").Valid() {
		t.Error("unknown roles must be invalid")
	}
}
