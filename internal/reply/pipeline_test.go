package reply

import (
	"context"
	"errors"
	"testing"

	"relaybot/internal/domain"
)

// PNG magic header plus filler, enough to pass the image sniff.
var pngBytes = append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 16)...)

type fakeChat struct {
	calls int
	text  string
	err   error
}

func (f *fakeChat) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeSpeech struct {
	calls int
	data  []byte
	err   error
}

func (f *fakeSpeech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

type fakeImage struct {
	calls int
	data  []byte
	err   error
}

func (f *fakeImage) Generate(ctx context.Context, prompt string) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

type fakeVision struct {
	calls   int
	lastURL string
	text    string
}

func (f *fakeVision) Describe(ctx context.Context, prompt, imageURL string) (string, error) {
	f.calls++
	f.lastURL = imageURL
	return f.text, nil
}

type fakeDoc struct {
	calls int
	text  string
}

func (f *fakeDoc) Ask(ctx context.Context, question string) (string, error) {
	f.calls++
	return f.text, nil
}

func TestText_StripsMarkdown(t *testing.T) {
	chat := &fakeChat{text: "**Paris** is the capital of *France*."}
	p := NewPipeline(PipelineConfig{Chat: chat})

	rep, err := p.Text(context.Background(), "capital of France?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chat.calls != 1 {
		t.Fatalf("expected exactly one completion call, got %d", chat.calls)
	}
	if rep.Text != "Paris is the capital of France." {
		t.Fatalf("markdown not stripped: %q", rep.Text)
	}
}

func TestText_EmptyPromptIsValidation(t *testing.T) {
	chat := &fakeChat{}
	p := NewPipeline(PipelineConfig{Chat: chat})

	_, err := p.Text(context.Background(), "   ")
	if domain.KindOf(err) != domain.ErrValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if chat.calls != 0 {
		t.Fatal("validation must happen before any network call")
	}
}

func TestSpoken_TwoSequentialCalls(t *testing.T) {
	chat := &fakeChat{text: "here is a joke"}
	speech := &fakeSpeech{data: []byte("mp3-bytes")}
	p := NewPipeline(PipelineConfig{Chat: chat, Speech: speech})

	rep, err := p.Spoken(context.Background(), "tell me a joke")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chat.calls != 1 || speech.calls != 1 {
		t.Fatalf("expected 1 completion + 1 synthesis, got %d + %d", chat.calls, speech.calls)
	}
	if rep.Media == nil || len(rep.Media.Data) == 0 {
		t.Fatal("spoken reply must carry audio media")
	}
	if rep.Media.Filename != "tell me a ....mp3" {
		t.Fatalf("unexpected artifact name %q", rep.Media.Filename)
	}
}

func TestSpoken_SkipsSynthesisOnEmptyCompletion(t *testing.T) {
	chat := &fakeChat{text: ""}
	speech := &fakeSpeech{data: []byte("mp3")}
	p := NewPipeline(PipelineConfig{Chat: chat, Speech: speech})

	rep, err := p.Spoken(context.Background(), "say nothing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if speech.calls != 0 {
		t.Fatal("synthesis must be skipped when completion text is empty")
	}
	if rep.Text != "" || rep.Media != nil {
		t.Fatalf("expected empty reply, got %+v", rep)
	}
}

func TestSpoken_CompletionErrorStopsPipeline(t *testing.T) {
	chat := &fakeChat{err: domain.Upstream(errors.New("boom"))}
	speech := &fakeSpeech{}
	p := NewPipeline(PipelineConfig{Chat: chat, Speech: speech})

	if _, err := p.Spoken(context.Background(), "hi"); err == nil {
		t.Fatal("expected error")
	}
	if speech.calls != 0 {
		t.Fatal("synthesis must not run after a failed completion")
	}
}

func TestImage_WrapsPNG(t *testing.T) {
	img := &fakeImage{data: pngBytes}
	p := NewPipeline(PipelineConfig{Image: img})

	rep, err := p.Image(context.Background(), "a red fox in the snow")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.calls != 1 {
		t.Fatalf("expected one generation call, got %d", img.calls)
	}
	if rep.Media == nil || rep.Media.Filename != "a red fox ....png" {
		t.Fatalf("unexpected media: %+v", rep.Media)
	}
}

func TestImage_RejectsNonImagePayload(t *testing.T) {
	img := &fakeImage{data: []byte("<html>error page</html>")}
	p := NewPipeline(PipelineConfig{Image: img})

	_, err := p.Image(context.Background(), "a fox")
	if domain.KindOf(err) != domain.ErrUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestVision_Validation(t *testing.T) {
	vision := &fakeVision{text: "a lighthouse"}
	p := NewPipeline(PipelineConfig{Vision: vision})

	if _, err := p.Vision(context.Background(), "", "http://x/a.png"); domain.KindOf(err) != domain.ErrValidation {
		t.Fatalf("empty prompt should be validation error, got %v", err)
	}
	if _, err := p.Vision(context.Background(), "what is it", ""); domain.KindOf(err) != domain.ErrValidation {
		t.Fatalf("empty URL should be validation error, got %v", err)
	}
	if vision.calls != 0 {
		t.Fatal("no network calls on validation failure")
	}

	rep, err := p.Vision(context.Background(), "what is it", "http://x/a.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vision.lastURL != "http://x/a.png" || rep.Text != "a lighthouse" {
		t.Fatalf("vision call wrong: url=%q text=%q", vision.lastURL, rep.Text)
	}
}

func TestDocAnswer(t *testing.T) {
	doc := &fakeDoc{text: "chapter 3 covers pricing"}
	p := NewPipeline(PipelineConfig{Doc: doc})

	rep, err := p.DocAnswer(context.Background(), "what does chapter 3 say?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.calls != 1 || rep.Text != "chapter 3 covers pricing" {
		t.Fatalf("doc answer wrong: calls=%d text=%q", doc.calls, rep.Text)
	}

	if _, err := p.DocAnswer(context.Background(), ""); domain.KindOf(err) != domain.ErrValidation {
		t.Fatalf("empty question should be validation error, got %v", err)
	}
}
