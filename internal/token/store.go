// Package token mints and validates single-use promo redemption tokens.
// It is independent of chat and session concerns: validation may be hit
// from a point-of-sale scan long after the conversation ended.
package token

import (
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

// Status is the outcome of a validation attempt. Invalid and expired are
// ordinary results, not errors.
type Status string

const (
	// StatusInvalid means the token was never issued by this store.
	StatusInvalid Status = "invalid"
	// StatusExpired means the token was already redeemed.
	StatusExpired Status = "expired"
	// StatusSuccess means the token was redeemed by this call.
	StatusSuccess Status = "success"
)

// Issued is the artifact handed to the caller when a token is minted:
// the identifier, the redemption URL it encodes, and that URL rendered
// as a base64 PNG QR code.
type Issued struct {
	Token     string `json:"token"`
	RedeemURL string `json:"redeem_url"`
	QRImage   string `json:"qr_image"`
}

// Result is the outcome of Validate.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
	Offer   string `json:"offer,omitempty"`
}

const qrImageSize = 256

type record struct {
	offer    string
	used     bool
	issuedAt time.Time
}

// Store tracks issued tokens in memory for the life of the process.
type Store struct {
	mu      sync.Mutex
	tokens  map[string]*record
	baseURL string
}

// NewStore creates a token store. baseURL is the public prefix for
// redemption URLs, e.g. "https://choosie.example.com".
func NewStore(baseURL string) *Store {
	return &Store{
		tokens:  make(map[string]*record),
		baseURL: baseURL,
	}
}

// Issue mints a new single-use token for the given offer text. Identifiers
// are 128-bit random UUIDs; collision is treated as impossible at that
// width. Two tokens for identical offer text are fully independent.
func (s *Store) Issue(offerText string) (*Issued, error) {
	id := uuid.NewString()
	redeemURL := fmt.Sprintf("%s/api/qr/validate?token=%s", s.baseURL, id)

	png, err := qrcode.Encode(redeemURL, qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("encode QR image: %w", err)
	}

	s.mu.Lock()
	s.tokens[id] = &record{offer: offerText, issuedAt: time.Now()}
	s.mu.Unlock()

	return &Issued{
		Token:     id,
		RedeemURL: redeemURL,
		QRImage:   base64.StdEncoding.EncodeToString(png),
	}, nil
}

// Validate looks up a token and, if it is fresh, marks it used. The
// check-and-set happens under the store lock: for any token exactly one
// caller ever observes success, no matter how many race.
func (s *Store) Validate(id string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tokens[id]
	if !ok {
		return Result{Status: StatusInvalid, Message: "QR token not found."}
	}
	if rec.used {
		return Result{Status: StatusExpired, Message: "This QR code has already been used."}
	}
	rec.used = true
	return Result{
		Status:  StatusSuccess,
		Message: "QR is valid. Offer applied!",
		Offer:   rec.offer,
	}
}

// Count returns the number of tokens ever issued.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}
