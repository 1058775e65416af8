package bot

import (
	"testing"

	"relaybot/internal/domain"
)

func TestParseCommand_PlainTextIsDefault(t *testing.T) {
	cmd, err := ParseCommand("what is the capital of France?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Kind != domain.CmdDefault {
		t.Fatalf("expected default command, got %s", cmd.Kind)
	}
	if cmd.Payload != "what is the capital of France?" {
		t.Fatalf("payload changed: %q", cmd.Payload)
	}
}

func TestParseCommand_CaseInsensitiveCode(t *testing.T) {
	cmd, err := ParseCommand("V2 draw a cat in snow")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Kind != domain.CmdImage {
		t.Fatalf("expected image command, got %s", cmd.Kind)
	}
	if cmd.Payload != "draw a cat in snow" {
		t.Fatalf("expected payload %q, got %q", "draw a cat in snow", cmd.Payload)
	}
}

func TestParseCommand_SpokenAndDocAsk(t *testing.T) {
	cmd, _ := ParseCommand("v1 tell me a joke")
	if cmd.Kind != domain.CmdSpoken || cmd.Payload != "tell me a joke" {
		t.Fatalf("v1 parse wrong: %+v", cmd)
	}

	cmd, _ = ParseCommand("v5 what does chapter 3 say?")
	if cmd.Kind != domain.CmdDocAsk || cmd.Payload != "what does chapter 3 say?" {
		t.Fatalf("v5 parse wrong: %+v", cmd)
	}
}

func TestParseCommand_VisionExtractsURLAndPrompt(t *testing.T) {
	cmd, err := ParseCommand("v3 what is in this picture? http://example.com/a.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Kind != domain.CmdVision {
		t.Fatalf("expected vision command, got %s", cmd.Kind)
	}
	if cmd.URL != "http://example.com/a.png" {
		t.Fatalf("wrong URL: %q", cmd.URL)
	}
	if cmd.Payload != "what is in this picture?" {
		t.Fatalf("wrong prompt: %q", cmd.Payload)
	}
}

func TestParseCommand_VisionMissingURL(t *testing.T) {
	_, err := ParseCommand("v3 describe the sunset")
	if err == nil {
		t.Fatal("expected validation error for missing URL")
	}
	if domain.KindOf(err) != domain.ErrValidation {
		t.Fatalf("expected validation kind, got %s", domain.KindOf(err))
	}
	if domain.UserMessage(err) == "" {
		t.Fatal("validation error should carry a user message")
	}
}

func TestParseCommand_VisionMissingPrompt(t *testing.T) {
	_, err := ParseCommand("v3 https://example.com/photo.jpg")
	if err == nil {
		t.Fatal("expected validation error for missing prompt")
	}
	if domain.KindOf(err) != domain.ErrValidation {
		t.Fatalf("expected validation kind, got %s", domain.KindOf(err))
	}
}

func TestParseCommand_UploadRequiresURL(t *testing.T) {
	cmd, err := ParseCommand("v4 https://example.com/report.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Kind != domain.CmdUpload || cmd.URL != "https://example.com/report.pdf" {
		t.Fatalf("v4 parse wrong: %+v", cmd)
	}

	if _, err := ParseCommand("v4 the report I mentioned"); err == nil {
		t.Fatal("expected validation error for missing URL")
	}
}

func TestParseCommand_UnknownCodeFallsBack(t *testing.T) {
	cmd, err := ParseCommand("v9 do something fancy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Kind != domain.CmdDefault {
		t.Fatalf("expected default fallback, got %s", cmd.Kind)
	}
	if cmd.Payload != "v9 do something fancy" {
		t.Fatalf("fallback should keep the whole text, got %q", cmd.Payload)
	}
}

func TestExtractURL_FirstTokenWins(t *testing.T) {
	url := ExtractURL("check this out http://example.com/a.png please")
	if url != "http://example.com/a.png" {
		t.Fatalf("wrong URL: %q", url)
	}

	if got := ExtractURL("no links here"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
