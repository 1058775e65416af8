package provider

import (
	"fmt"
	"strings"

	"relaybot/internal/domain"
)

// policySignals are the substrings upstream services embed in error bodies
// when a request trips their content filter.
var policySignals = []string{
	"content management policy",
	"content_policy_violation",
	"content_filter",
	"safety system",
}

// classifyAPIError turns a non-2xx backend response into a tagged domain
// error: policy rejections are distinguished from everything else.
func classifyAPIError(service string, status int, body []byte) error {
	lower := strings.ToLower(string(body))
	for _, sig := range policySignals {
		if strings.Contains(lower, sig) {
			return domain.Policy(fmt.Errorf("%s %d: %s", service, status, string(body)))
		}
	}
	return domain.Upstream(fmt.Errorf("%s %d: %s", service, status, string(body)))
}
