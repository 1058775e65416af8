package bot

import (
	"slices"
	"strings"
)

const commandUsage = `Here's what I can do 🤖

• just type — I'll answer with plain text
• v1 <prompt> — I'll answer out loud with a voice message 🔊
• v2 <prompt> — I'll draw a picture for you 🎨
• v3 <prompt> <url> — I'll describe the image at that link 🖼️
• v4 <url> — I'll add that document to my knowledge base (txt, docx, csv, pdf, md, html) 📚
• v5 <question> — I'll answer from the knowledge base 📖`

const directExtras = `

In a direct chat you can also:
• send a voice message — I'll listen and answer out loud 🎙️
• send a document — I'll add it to my knowledge base 📎`

// IsUsageRequest reports whether the text is one of the configured
// help triggers ("help", "usage", ...), matched case-insensitively.
func IsUsageRequest(text string, triggers []string) bool {
	return slices.Contains(triggers, strings.ToLower(strings.TrimSpace(text)))
}

// UsageText returns the command overview. Direct chats get the extra
// voice/document lines that groups never see.
func UsageText(direct bool) string {
	if direct {
		return commandUsage + directExtras
	}
	return commandUsage
}
