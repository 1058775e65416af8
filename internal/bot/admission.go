package bot

import (
	"slices"
	"strings"

	"relaybot/internal/domain"
)

// Decision is the outcome of admission: whether the message gets handled at
// all, and as what kind.
type Decision struct {
	Accept bool
	Kind   domain.MessageKind
	Reason string // set when Accept is false, for logging only
}

// Admission decides whether an inbound message should be processed. Pure
// function over the message and the configured whitelists; no side effects,
// and a rejected message produces no reply of any sort.
type Admission struct {
	botName  string
	groups   []string
	contacts []string
}

func NewAdmission(botName string, groups, contacts []string) *Admission {
	return &Admission{botName: botName, groups: groups, contacts: contacts}
}

func (a *Admission) Decide(msg domain.IncomingMessage) Decision {
	// Never answer our own messages.
	if msg.SenderName == a.botName || msg.SenderAlias == a.botName {
		return Decision{Reason: "self-echo"}
	}

	if msg.Group != nil {
		// Groups only take text, and only when whitelisted and mentioned.
		if msg.Kind != domain.KindText {
			return Decision{Reason: "non-text in group"}
		}
		if !slices.Contains(a.groups, msg.Group.Name) {
			return Decision{Reason: "group not whitelisted"}
		}
		if !a.Mentioned(msg.Content) {
			return Decision{Reason: "no mention"}
		}
		return Decision{Accept: true, Kind: domain.KindText}
	}

	if !slices.Contains(a.contacts, msg.SenderAlias) && !slices.Contains(a.contacts, msg.SenderName) {
		return Decision{Reason: "contact not whitelisted"}
	}

	switch msg.Kind {
	case domain.KindText, domain.KindAudio, domain.KindAttachment:
		return Decision{Accept: true, Kind: msg.Kind}
	default:
		return Decision{Reason: "unsupported message kind"}
	}
}

// Mentioned reports whether the text explicitly addresses the bot.
func (a *Admission) Mentioned(text string) bool {
	return strings.Contains(text, "@"+a.botName)
}

// StripMention removes the bot's mention token so the router sees clean text.
func (a *Admission) StripMention(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "@"+a.botName, ""))
}
