package bot

import (
	"regexp"
	"strings"

	"relaybot/internal/domain"
)

var (
	// cmdPattern splits "v3 describe this http://..." into code and payload.
	cmdPattern = regexp.MustCompile(`(?i)^(v\d+)([\s\S]*)$`)

	// urlPattern picks the first well-formed http(s) token out of free text.
	urlPattern = regexp.MustCompile(`(https?|http)://[-A-Za-z0-9+&@#/%?=~_|!:,.;]+[-A-Za-z0-9+&@#/%=~_|]`)
)

const (
	missingImageURL    = "The v3 command needs an image link. Send it like: v3 what is in this picture? https://... 🖼️"
	missingImagePrompt = "Tell me what to do with the image — add a question before the link. ✍️"
	missingDocURL      = "The v4 command needs a document link. Send it like: v4 https://example.com/report.pdf 📎"
)

// ParseCommand classifies free text into a command. Text that does not start
// with a known vN code is a plain completion request with the whole text as
// payload; unknown vN codes fall back the same way.
func ParseCommand(text string) (domain.Command, error) {
	text = strings.TrimSpace(text)

	m := cmdPattern.FindStringSubmatch(text)
	if m == nil {
		return domain.Command{Kind: domain.CmdDefault, Payload: text}, nil
	}

	code := strings.ToLower(m[1])
	payload := strings.TrimSpace(m[2])

	switch code {
	case "v1":
		return domain.Command{Kind: domain.CmdSpoken, Payload: payload}, nil
	case "v2":
		return domain.Command{Kind: domain.CmdImage, Payload: payload}, nil
	case "v3":
		url := urlPattern.FindString(payload)
		if url == "" {
			return domain.Command{}, domain.Validation(missingImageURL)
		}
		prompt := strings.TrimSpace(strings.Replace(payload, url, "", 1))
		if prompt == "" {
			return domain.Command{}, domain.Validation(missingImagePrompt)
		}
		return domain.Command{Kind: domain.CmdVision, Payload: prompt, URL: url}, nil
	case "v4":
		url := urlPattern.FindString(payload)
		if url == "" {
			return domain.Command{}, domain.Validation(missingDocURL)
		}
		return domain.Command{Kind: domain.CmdUpload, URL: url}, nil
	case "v5":
		return domain.Command{Kind: domain.CmdDocAsk, Payload: payload}, nil
	default:
		// v6 and beyond are not commands; treat the whole text as prose.
		return domain.Command{Kind: domain.CmdDefault, Payload: text}, nil
	}
}

// ExtractURL returns the first http(s) link in text, or "".
func ExtractURL(text string) string {
	return urlPattern.FindString(text)
}
