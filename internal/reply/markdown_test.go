package reply

import "testing"

func TestToPlainText_InlineFormatting(t *testing.T) {
	got := ToPlainText("**bold** and *italic* and `code` survive as text")
	want := "bold and italic and code survive as text"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestToPlainText_HeadingsAndLists(t *testing.T) {
	in := "# Title\n\n- first\n- second\n\ndone"
	got := ToPlainText(in)
	want := "Title\n\nfirst\nsecond\n\ndone"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestToPlainText_LinkKeepsText(t *testing.T) {
	got := ToPlainText("see [the docs](https://example.com) for more")
	want := "see the docs for more"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestToPlainText_FencedCodeKeepsLines(t *testing.T) {
	in := "run this:\n\n```sh\necho hi\n```\n"
	got := ToPlainText(in)
	want := "run this:\n\necho hi"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestToPlainText_PlainTextUntouched(t *testing.T) {
	in := "just a plain sentence."
	if got := ToPlainText(in); got != in {
		t.Fatalf("got %q", got)
	}
}

func TestToPlainText_Empty(t *testing.T) {
	if got := ToPlainText(""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
