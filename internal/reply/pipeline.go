// Package reply implements the reply strategies: plain text, spoken text,
// image generation, vision description and document QA. Strategies are
// stateless; each validates its input, makes its backend call(s) and
// converts the response into a Reply.
package reply

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"relaybot/internal/domain"
	"relaybot/internal/files"
)

// Completer produces a text completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ImageGenerator produces image bytes for a prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// VisionDescriber answers a prompt about a remotely hosted image.
type VisionDescriber interface {
	Describe(ctx context.Context, prompt, imageURL string) (string, error)
}

// SpeechSynthesizer converts text into playable audio (MP3).
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// DocAnswerer answers a question against the indexed document dataset.
type DocAnswerer interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Pipeline holds the backend services the strategies call.
type Pipeline struct {
	chat   Completer
	image  ImageGenerator
	vision VisionDescriber
	speech SpeechSynthesizer
	doc    DocAnswerer
	logger *slog.Logger
}

type PipelineConfig struct {
	Chat   Completer
	Image  ImageGenerator
	Vision VisionDescriber
	Speech SpeechSynthesizer
	Doc    DocAnswerer
	Logger *slog.Logger
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		chat:   cfg.Chat,
		image:  cfg.Image,
		vision: cfg.Vision,
		speech: cfg.Speech,
		doc:    cfg.Doc,
		logger: cfg.Logger,
	}
}

// Text runs the plain completion strategy. One network call.
func (p *Pipeline) Text(ctx context.Context, prompt string) (*domain.Reply, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, domain.Validation("tell me what you'd like to ask")
	}
	raw, err := p.chat.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &domain.Reply{Text: ToPlainText(raw)}, nil
}

// Spoken runs completion then speech synthesis: exactly two sequential
// calls, and synthesis only happens when the completion text is non-empty.
func (p *Pipeline) Spoken(ctx context.Context, prompt string) (*domain.Reply, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, domain.Validation("tell me what you'd like me to say")
	}
	raw, err := p.chat.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	text := ToPlainText(raw)
	if text == "" {
		return &domain.Reply{}, nil
	}

	audio, err := p.speech.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	return &domain.Reply{
		Text: text,
		Media: &domain.MediaArtifact{
			Filename: artifactName(prompt, ".mp3"),
			Data:     audio,
		},
	}, nil
}

// Image runs the image-generation strategy. One network call; the result
// bytes are sanity-checked against PNG/JPEG magic before being wrapped.
func (p *Pipeline) Image(ctx context.Context, prompt string) (*domain.Reply, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, domain.Validation("describe the image you'd like me to draw")
	}
	data, err := p.image.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if kind := files.SniffImage(data); kind == "" {
		return nil, domain.Upstream(fmt.Errorf("image service returned %d bytes of non-image data", len(data)))
	}
	return &domain.Reply{
		Media: &domain.MediaArtifact{
			Filename: artifactName(prompt, ".png"),
			Data:     data,
		},
	}, nil
}

// Vision runs the image-description strategy. One network call.
func (p *Pipeline) Vision(ctx context.Context, prompt, imageURL string) (*domain.Reply, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, domain.Validation("what do you want to know about that image?")
	}
	if imageURL == "" {
		return nil, domain.Validation("you haven't given me an image address yet")
	}
	raw, err := p.vision.Describe(ctx, prompt, imageURL)
	if err != nil {
		return nil, err
	}
	return &domain.Reply{Text: ToPlainText(raw)}, nil
}

// DocAnswer runs the document-QA strategy. One network call.
func (p *Pipeline) DocAnswer(ctx context.Context, question string) (*domain.Reply, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.Validation("ask me something about the uploaded documents")
	}
	raw, err := p.doc.Ask(ctx, question)
	if err != nil {
		return nil, err
	}
	return &domain.Reply{Text: ToPlainText(raw)}, nil
}

// artifactName derives a media filename from the prompt's first ten runes.
func artifactName(prompt, ext string) string {
	r := []rune(strings.TrimSpace(prompt))
	name := string(r)
	if len(r) > 9 {
		name = string(r[:10]) + "..."
	}
	return name + ext
}
