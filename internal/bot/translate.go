package bot

import "relaybot/internal/domain"

const (
	policyReply = "Sorry, that request seems to touch on content I'm not allowed to help with. Try a different prompt? 🙏"

	// Generic apology for upstream and workflow failures. Details go to the
	// log, never to the chat.
	genericReply = "Sorry, something went wrong on my end. Please try again in a moment. 😥"
)

// Translate maps a pipeline failure to the single user-facing line for it.
// Validation errors carry their own safe wording; policy rejections get the
// fixed policy message; everything else gets the generic apology.
func Translate(err error) string {
	switch domain.KindOf(err) {
	case domain.ErrValidation:
		return domain.UserMessage(err)
	case domain.ErrPolicy:
		return policyReply
	default:
		return genericReply
	}
}
