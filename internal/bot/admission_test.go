package bot

import (
	"testing"

	"relaybot/internal/domain"
)

func newTestAdmission() *Admission {
	return NewAdmission("relaybot", []string{"project chat"}, []string{"alice", "Bob Jones"})
}

func TestAdmission_RejectsSelfEcho(t *testing.T) {
	a := newTestAdmission()
	d := a.Decide(domain.IncomingMessage{
		SenderName: "relaybot",
		Kind:       domain.KindText,
		Content:    "@relaybot hello",
	})
	if d.Accept {
		t.Fatal("own message must be rejected")
	}
}

func TestAdmission_GroupNeedsWhitelistAndMention(t *testing.T) {
	a := newTestAdmission()

	base := domain.IncomingMessage{
		SenderAlias: "charlie",
		Kind:        domain.KindText,
		Group:       &domain.GroupContext{ID: "1", Name: "project chat"},
	}

	msg := base
	msg.Content = "@relaybot what's up"
	if d := a.Decide(msg); !d.Accept || d.Kind != domain.KindText {
		t.Fatalf("whitelisted group with mention should be admitted: %+v", d)
	}

	msg.Content = "what's up everyone"
	if d := a.Decide(msg); d.Accept {
		t.Fatal("group message without mention must be rejected")
	}

	msg = base
	msg.Group = &domain.GroupContext{ID: "2", Name: "random chat"}
	msg.Content = "@relaybot hi"
	if d := a.Decide(msg); d.Accept {
		t.Fatal("non-whitelisted group must be rejected")
	}
}

func TestAdmission_GroupRejectsNonText(t *testing.T) {
	a := newTestAdmission()
	d := a.Decide(domain.IncomingMessage{
		SenderAlias: "alice",
		Kind:        domain.KindAudio,
		Group:       &domain.GroupContext{ID: "1", Name: "project chat"},
		Attachment:  &domain.Blob{Name: "voice.ogg"},
	})
	if d.Accept {
		t.Fatal("audio in a group must be rejected")
	}
}

func TestAdmission_DirectWhitelistByAliasOrName(t *testing.T) {
	a := newTestAdmission()

	if d := a.Decide(domain.IncomingMessage{SenderAlias: "alice", Kind: domain.KindText, Content: "hi"}); !d.Accept {
		t.Fatal("whitelisted alias must be admitted")
	}
	if d := a.Decide(domain.IncomingMessage{SenderName: "Bob Jones", Kind: domain.KindText, Content: "hi"}); !d.Accept {
		t.Fatal("whitelisted display name must be admitted")
	}
	if d := a.Decide(domain.IncomingMessage{SenderAlias: "mallory", Kind: domain.KindText, Content: "hi"}); d.Accept {
		t.Fatal("unknown contact must be rejected")
	}
}

func TestAdmission_DirectAcceptsAudioAndAttachment(t *testing.T) {
	a := newTestAdmission()

	d := a.Decide(domain.IncomingMessage{SenderAlias: "alice", Kind: domain.KindAudio, Attachment: &domain.Blob{Name: "v.ogg"}})
	if !d.Accept || d.Kind != domain.KindAudio {
		t.Fatalf("direct audio should be admitted: %+v", d)
	}

	d = a.Decide(domain.IncomingMessage{SenderAlias: "alice", Kind: domain.KindAttachment, Attachment: &domain.Blob{Name: "a.pdf"}})
	if !d.Accept || d.Kind != domain.KindAttachment {
		t.Fatalf("direct attachment should be admitted: %+v", d)
	}

	d = a.Decide(domain.IncomingMessage{SenderAlias: "alice", Kind: domain.KindOther})
	if d.Accept {
		t.Fatal("unsupported kinds must be rejected even in direct chat")
	}
}

func TestAdmission_StripMention(t *testing.T) {
	a := newTestAdmission()
	if got := a.StripMention("@relaybot v2 a red fox"); got != "v2 a red fox" {
		t.Fatalf("got %q", got)
	}
	if got := a.StripMention("no mention at all"); got != "no mention at all" {
		t.Fatalf("got %q", got)
	}
}
