package domain

import (
	"fmt"
	"time"
)

// Offer is a concrete promotional offer returned by the catalog lookup.
type Offer struct {
	Restaurant      string `json:"restaurant"`
	Item            string `json:"item,omitempty"`
	DiscountPercent int    `json:"discount_percent"`
	Area            string `json:"area,omitempty"`
}

// Text composes the frozen offer string embedded in a redemption token.
func (o Offer) Text() string {
	if o.Item == "" {
		return fmt.Sprintf("%s | %d%% OFF", o.Restaurant, o.DiscountPercent)
	}
	return fmt.Sprintf("%s | %s | %d%% OFF", o.Restaurant, o.Item, o.DiscountPercent)
}

// PendingOffer is an offer that has been presented to the user and is
// awaiting an explicit yes/no. At most one exists per session. It is
// consumed exactly once: confirmed into a token or discarded.
type PendingOffer struct {
	Offer
	Title     string    `json:"title,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the offer is past its confirmation window.
// A zero ExpiresAt means the offer never expires.
func (p *PendingOffer) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}
