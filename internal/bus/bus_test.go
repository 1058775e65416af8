package bus

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"relaybot/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishSubscribe(t *testing.T) {
	b := New(10, quietLogger())
	defer b.Close()

	b.Publish(domain.IncomingMessage{Channel: "cli", Content: "hello"})

	select {
	case msg := <-b.Subscribe():
		if msg.Content != "hello" {
			t.Fatalf("got %q", msg.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestSendReply_RoutesToRegisteredChannel(t *testing.T) {
	b := New(10, quietLogger())
	defer b.Close()

	got := make(chan domain.OutboundMessage, 1)
	b.OnReply("telegram", func(msg domain.OutboundMessage) { got <- msg })

	b.SendReply(domain.OutboundMessage{Channel: "telegram", ChatID: "42", Text: "hi"})

	select {
	case msg := <-got:
		if msg.ChatID != "42" || msg.Text != "hi" {
			t.Fatalf("got %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("reply not routed")
	}
}

func TestSendReply_UnknownChannelIsDropped(t *testing.T) {
	b := New(10, quietLogger())
	defer b.Close()

	// Must not panic or block.
	b.SendReply(domain.OutboundMessage{Channel: "nope", Text: "hi"})
}

func TestPublish_AfterCloseIsIgnored(t *testing.T) {
	b := New(10, quietLogger())
	b.Close()

	// Must not panic on a closed bus.
	b.Publish(domain.IncomingMessage{Channel: "cli"})
}

func TestClose_Idempotent(t *testing.T) {
	b := New(10, quietLogger())
	b.Close()
	b.Close()

	if _, open := <-b.Subscribe(); open {
		t.Fatal("inbound channel should be closed")
	}
}
