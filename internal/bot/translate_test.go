package bot

import (
	"errors"
	"strings"
	"testing"

	"relaybot/internal/domain"
)

func TestTranslate_ValidationSurfacesVerbatim(t *testing.T) {
	err := domain.Validation("please include a link")
	if got := Translate(err); got != "please include a link" {
		t.Fatalf("got %q", got)
	}
}

func TestTranslate_PolicyGetsFixedMessage(t *testing.T) {
	err := domain.Policy(errors.New("content_policy_violation: nope"))
	got := Translate(err)
	if got != policyReply {
		t.Fatalf("got %q", got)
	}
	if strings.Contains(got, "content_policy_violation") {
		t.Fatal("policy reply must not leak upstream detail")
	}
}

func TestTranslate_NeverLeaksInternalDetail(t *testing.T) {
	cases := []error{
		domain.Upstream(errors.New("dial tcp 10.0.0.1:443: connection refused")),
		domain.Workflow(errors.New("login: element not visible")),
		errors.New("untagged failure with secret=abc123"),
	}
	for _, err := range cases {
		got := Translate(err)
		if got != genericReply {
			t.Fatalf("error %v translated to %q, want generic apology", err, got)
		}
	}
}
