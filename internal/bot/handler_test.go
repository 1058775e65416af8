package bot

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"relaybot/internal/domain"
	"relaybot/internal/files"
	"relaybot/internal/reply"
)

type recordingBus struct {
	mu      sync.Mutex
	replies []domain.OutboundMessage
}

func (b *recordingBus) Publish(msg domain.IncomingMessage)        {}
func (b *recordingBus) Subscribe() <-chan domain.IncomingMessage { return nil }
func (b *recordingBus) SendReply(msg domain.OutboundMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies = append(b.replies, msg)
}
func (b *recordingBus) OnReply(string, func(domain.OutboundMessage)) {}
func (b *recordingBus) Close()                                        {}

func (b *recordingBus) sent() []domain.OutboundMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.OutboundMessage(nil), b.replies...)
}

type stubChat struct {
	calls int
	text  string
	err   error
}

func (s *stubChat) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.text, s.err
}

type stubVoice struct {
	calls int
	rep   *domain.Reply
	err   error
}

func (s *stubVoice) HandleVoice(ctx context.Context, blob *domain.Blob) (*domain.Reply, error) {
	s.calls++
	return s.rep, s.err
}

type stubIngestor struct {
	calls int
	paths []string
	err   error
}

func (s *stubIngestor) Ingest(ctx context.Context, path string) error {
	s.calls++
	s.paths = append(s.paths, path)
	os.Remove(path)
	return s.err
}

func newTestHandler(t *testing.T, chat *stubChat, voice *stubVoice, ing *stubIngestor) (*Handler, *recordingBus) {
	t.Helper()
	fileStore, err := files.NewStore(files.StoreConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	b := &recordingBus{}
	h := NewHandler(HandlerConfig{
		Bus:           b,
		Admission:     newTestAdmission(),
		Replies:       reply.NewPipeline(reply.PipelineConfig{Chat: chat}),
		Voice:         voice,
		Ingestor:      ing,
		Files:         fileStore,
		UsageTriggers: []string{"help", "usage"},
	})
	return h, b
}

func directText(content string) domain.IncomingMessage {
	return domain.IncomingMessage{
		Channel:     "telegram",
		ChatID:      "42",
		SenderAlias: "alice",
		Kind:        domain.KindText,
		Content:     content,
	}
}

func TestProcess_RejectedMessageProducesNothing(t *testing.T) {
	chat := &stubChat{text: "hi"}
	h, b := newTestHandler(t, chat, &stubVoice{}, &stubIngestor{})

	msg := directText("hello")
	msg.SenderAlias = "mallory" // not whitelisted
	h.Process(context.Background(), msg)

	if len(b.sent()) != 0 {
		t.Fatal("rejected message must produce no reply")
	}
	if chat.calls != 0 {
		t.Fatal("rejected message must not reach any pipeline")
	}
}

func TestProcess_DefaultTextReply(t *testing.T) {
	chat := &stubChat{text: "**Paris**"}
	h, b := newTestHandler(t, chat, &stubVoice{}, &stubIngestor{})

	h.Process(context.Background(), directText("capital of France?"))

	sent := b.sent()
	if len(sent) != 1 {
		t.Fatalf("expected one reply, got %d", len(sent))
	}
	if sent[0].Text != "Paris" {
		t.Fatalf("got reply %q", sent[0].Text)
	}
	if chat.calls != 1 {
		t.Fatalf("expected one completion call, got %d", chat.calls)
	}
}

func TestProcess_UsageTriggerSkipsCompletion(t *testing.T) {
	chat := &stubChat{text: "should not be called"}
	h, b := newTestHandler(t, chat, &stubVoice{}, &stubIngestor{})

	h.Process(context.Background(), directText("help"))

	sent := b.sent()
	if len(sent) != 1 || !strings.Contains(sent[0].Text, "v2") {
		t.Fatalf("expected usage text, got %+v", sent)
	}
	if chat.calls != 0 {
		t.Fatal("usage request must not call completion")
	}
}

func TestProcess_ValidationErrorSurfacesToUser(t *testing.T) {
	chat := &stubChat{}
	h, b := newTestHandler(t, chat, &stubVoice{}, &stubIngestor{})

	h.Process(context.Background(), directText("v3 describe the sunset"))

	sent := b.sent()
	if len(sent) != 1 {
		t.Fatalf("expected one reply, got %d", len(sent))
	}
	if sent[0].Text != missingImageURL {
		t.Fatalf("got %q", sent[0].Text)
	}
}

func TestProcess_UpstreamErrorGetsGenericApology(t *testing.T) {
	chat := &stubChat{err: domain.Upstream(errors.New("dial tcp: connection refused"))}
	h, b := newTestHandler(t, chat, &stubVoice{}, &stubIngestor{})

	h.Process(context.Background(), directText("hello"))

	sent := b.sent()
	if len(sent) != 1 {
		t.Fatalf("expected one reply, got %d", len(sent))
	}
	if sent[0].Text != genericReply {
		t.Fatalf("got %q", sent[0].Text)
	}
	if strings.Contains(sent[0].Text, "dial tcp") {
		t.Fatal("internal error detail leaked to user")
	}
}

func TestProcess_VoiceRoutesToAudioPipeline(t *testing.T) {
	voice := &stubVoice{rep: &domain.Reply{Media: &domain.MediaArtifact{Filename: "a.mp3", Data: []byte("x")}}}
	chat := &stubChat{}
	h, b := newTestHandler(t, chat, voice, &stubIngestor{})

	msg := domain.IncomingMessage{
		Channel:     "telegram",
		ChatID:      "42",
		SenderAlias: "alice",
		Kind:        domain.KindAudio,
		Attachment:  &domain.Blob{Name: "v.ogg"},
	}
	h.Process(context.Background(), msg)

	if voice.calls != 1 {
		t.Fatalf("expected voice pipeline call, got %d", voice.calls)
	}
	sent := b.sent()
	if len(sent) != 1 || sent[0].Media == nil {
		t.Fatalf("expected media reply, got %+v", sent)
	}
	if chat.calls != 0 {
		t.Fatal("text pipeline must not run for audio")
	}
}

func TestProcess_AttachmentIngested(t *testing.T) {
	ing := &stubIngestor{}
	h, b := newTestHandler(t, &stubChat{}, &stubVoice{}, ing)

	msg := domain.IncomingMessage{
		Channel:     "telegram",
		ChatID:      "42",
		SenderAlias: "alice",
		Kind:        domain.KindAttachment,
		Attachment: &domain.Blob{
			Name: "report.pdf",
			Open: blobFrom("pdf-bytes"),
		},
	}
	h.Process(context.Background(), msg)

	if ing.calls != 1 {
		t.Fatalf("expected one ingest call, got %d", ing.calls)
	}
	sent := b.sent()
	if len(sent) != 1 || !strings.Contains(sent[0].Text, "report.pdf") {
		t.Fatalf("expected confirmation naming the file, got %+v", sent)
	}
}

func TestProcess_AttachmentWithBadExtensionRejected(t *testing.T) {
	ing := &stubIngestor{}
	h, b := newTestHandler(t, &stubChat{}, &stubVoice{}, ing)

	msg := domain.IncomingMessage{
		Channel:     "telegram",
		ChatID:      "42",
		SenderAlias: "alice",
		Kind:        domain.KindAttachment,
		Attachment: &domain.Blob{
			Name: "malware.exe",
			Open: blobFrom("bytes"),
		},
	}
	h.Process(context.Background(), msg)

	if ing.calls != 0 {
		t.Fatal("unsupported file type must not reach the workflow")
	}
	sent := b.sent()
	if len(sent) != 1 || !strings.Contains(sent[0].Text, "not supported") {
		t.Fatalf("expected validation reply, got %+v", sent)
	}
}

func blobFrom(content string) func(context.Context) (io.ReadCloser, error) {
	return func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(content)), nil
	}
}
