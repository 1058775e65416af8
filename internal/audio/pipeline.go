package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"relaybot/internal/domain"
	"relaybot/internal/files"
)

// couldNotUnderstand is the canned reply for voice notes that recognize to
// nothing. It short-circuits the turn: the completion backend is not called.
const couldNotUnderstand = "Sorry, I couldn't make out what you said — try again a bit closer to the mic?"

// Transcriber converts an audio file into recognized text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// SpokenReplier produces a spoken reply for recognized text.
type SpokenReplier interface {
	Spoken(ctx context.Context, prompt string) (*domain.Reply, error)
}

// Pipeline drives one voice turn: persist the inbound blob, transcode it,
// recognize it, then hand the text to the spoken-reply strategy.
//
// Temp-file lifetimes are the point of this type: the encoded source is
// deleted as soon as decoding finishes, and the decoded WAV is deleted as
// soon as the recognition call returns — success or failure either way.
type Pipeline struct {
	files   *files.Store
	stt     Transcriber
	replies SpokenReplier
	decode  func(src string) (string, error)
	logger  *slog.Logger
}

type PipelineConfig struct {
	Files   *files.Store
	STT     Transcriber
	Replies SpokenReplier
	Decode  func(src string) (string, error) // nil = DecodeToWAV
	Logger  *slog.Logger
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Decode == nil {
		cfg.Decode = DecodeToWAV
	}
	return &Pipeline{
		files:   cfg.Files,
		stt:     cfg.STT,
		replies: cfg.Replies,
		decode:  cfg.Decode,
		logger:  cfg.Logger,
	}
}

// HandleVoice runs the full voice turn for an inbound voice blob.
func (p *Pipeline) HandleVoice(ctx context.Context, blob *domain.Blob) (*domain.Reply, error) {
	src, err := p.files.SaveBlob(ctx, blob)
	if err != nil {
		return nil, err
	}

	// decode removes src on every path.
	wavPath, err := p.decode(src)
	if err != nil {
		return nil, domain.Upstream(fmt.Errorf("voice transcode: %w", err))
	}

	text, err := p.stt.Transcribe(ctx, wavPath)
	if rmErr := os.Remove(wavPath); rmErr != nil && p.logger != nil {
		p.logger.Warn("failed to remove decoded audio", "path", wavPath, "err", rmErr)
	}
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return &domain.Reply{Text: couldNotUnderstand}, nil
	}

	if p.logger != nil {
		p.logger.Info("voice recognized", "text_len", len(text))
	}
	return p.replies.Spoken(ctx, text)
}
