package chat

import (
	"strings"

	"github.com/choosielabs/choosie/internal/domain"
)

// systemPrompt is the fixed instruction for the generation collaborator.
// Offer redemption is handled structurally by the engine; the model is
// told to never promise QR codes itself.
const systemPrompt = `You are Choosie, a restaurant concierge for Metro Manila only.

RULES:
- Recommend restaurants only within Metro Manila and name the area
  (Makati, BGC, Manila, Pasay, Quezon City).
- Suggest dishes available in Manila.
- Keep replies short, friendly, and helpful.
- Never claim a QR code or promo code has been generated or will be
  delivered; the system handles redemption separately.
- When information is unavailable, say so naturally ("not seeing it
  listed right now") without mentioning databases or systems.`

// buildPrompt renders the retained history plus the current turn as
// role-tagged lines for the model.
func buildPrompt(history []domain.Message, current string, hasAttachment bool) string {
	var sb strings.Builder
	if len(history) > 0 {
		sb.WriteString("Conversation history:\n")
		for _, m := range history {
			sb.WriteString(string(m.Role))
			sb.WriteString(": ")
			sb.WriteString(m.Content)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("User message: ")
	switch {
	case current != "":
		sb.WriteString(current)
	case hasAttachment:
		sb.WriteString("The user only uploaded a file.")
	default:
		sb.WriteString("(empty)")
	}
	if hasAttachment {
		sb.WriteString("\n\nThe user attached a file (menu photo, receipt, or similar); use it as context.")
	}
	return sb.String()
}
