// Package catalog provides the read-only restaurant catalog and the
// offer-lookup collaborator backed by it. The catalog is loaded once from
// a JSON file at startup and never mutated.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/choosielabs/choosie/internal/domain"
)

// MenuItem is a dish with an optional promo discount.
type MenuItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Discount int     `json:"discount,omitempty"` // percent, 0 = no promo
}

// Restaurant is one catalog entry.
type Restaurant struct {
	Name     string     `json:"name"`
	Area     string     `json:"area,omitempty"`
	Cuisines []string   `json:"cuisines,omitempty"`
	Menu     []MenuItem `json:"menu,omitempty"`
}

// Catalog is the curated restaurant list.
type Catalog struct {
	restaurants []Restaurant
}

// New creates a catalog from an in-memory restaurant list.
func New(restaurants []Restaurant) *Catalog {
	return &Catalog{restaurants: restaurants}
}

// Load reads a catalog JSON file. A missing file is not an error: the
// service runs with an empty catalog and the offer path simply never fires.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(nil), nil
		}
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var restaurants []Restaurant
	if err := json.Unmarshal(data, &restaurants); err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", path, err)
	}
	return New(restaurants), nil
}

// Len returns the number of restaurants in the catalog.
func (c *Catalog) Len() int {
	return len(c.restaurants)
}

// Search returns the restaurants matching the query by name, area,
// cuisine, or menu item.
func (c *Catalog) Search(query string) []Restaurant {
	q := strings.ToLower(query)
	var out []Restaurant
	for _, r := range c.restaurants {
		if restaurantMatches(r, q) {
			out = append(out, r)
		}
	}
	return out
}

// Lookup finds the best promotional offer relevant to the query: the
// highest-discount menu item among matching restaurants. It returns
// (nil, nil) when nothing matches or nothing is discounted; the caller
// answers the question conversationally instead.
func (c *Catalog) Lookup(_ context.Context, query string) (*domain.Offer, error) {
	q := strings.ToLower(query)
	var best *domain.Offer
	for _, r := range c.restaurants {
		if !restaurantMatches(r, q) {
			continue
		}
		for _, item := range r.Menu {
			if item.Discount <= 0 || item.Discount > 100 {
				continue
			}
			if best != nil && item.Discount <= best.DiscountPercent {
				continue
			}
			best = &domain.Offer{
				Restaurant:      r.Name,
				Item:            item.Name,
				DiscountPercent: item.Discount,
				Area:            r.Area,
			}
		}
	}
	return best, nil
}

func restaurantMatches(r Restaurant, q string) bool {
	if containsAnyWord(q, r.Name) || containsAnyWord(q, r.Area) {
		return true
	}
	for _, cuisine := range r.Cuisines {
		if containsAnyWord(q, cuisine) {
			return true
		}
	}
	for _, item := range r.Menu {
		if containsAnyWord(q, item.Name) {
			return true
		}
	}
	return false
}

// containsAnyWord reports whether any word of name appears in the query.
// Short connective words are skipped so "The Grill House" does not match
// every message containing "the".
func containsAnyWord(query, name string) bool {
	for _, w := range strings.Fields(strings.ToLower(name)) {
		if len(w) < 3 {
			continue
		}
		if strings.Contains(query, w) {
			return true
		}
	}
	return false
}
