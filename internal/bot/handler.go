package bot

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"relaybot/internal/domain"
	"relaybot/internal/files"
	"relaybot/internal/metrics"
	"relaybot/internal/reply"
	"relaybot/internal/store"
)

const (
	defaultConcurrency = 3
	turnTimeout        = 10 * time.Minute
)

const ingestedReply = "Done! %s is in the knowledge base now — ask me about it with v5. 📚"

// VoiceHandler turns an inbound voice blob into a reply.
type VoiceHandler interface {
	HandleVoice(ctx context.Context, blob *domain.Blob) (*domain.Reply, error)
}

// Ingestor imports a local document file into the knowledge base.
type Ingestor interface {
	Ingest(ctx context.Context, path string) error
}

// TurnRecorder persists handled turns and import attempts. Recording is best
// effort; a storage error never fails the turn.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, t store.Turn) error
	RecordIngestion(ctx context.Context, in store.Ingestion) error
}

// Handler is the core engine: receive message → admit → route → run the
// right pipeline → translate failures → emit the reply.
type Handler struct {
	bus         domain.MessageBus
	admission   *Admission
	replies     *reply.Pipeline
	voice       VoiceHandler
	ingestor    Ingestor
	files       *files.Store
	records     TurnRecorder
	triggers    []string
	logger      *slog.Logger
	concurrency int
}

// HandlerConfig holds all dependencies for the message handler.
type HandlerConfig struct {
	Bus           domain.MessageBus
	Admission     *Admission
	Replies       *reply.Pipeline
	Voice         VoiceHandler
	Ingestor      Ingestor
	Files         *files.Store
	Records       TurnRecorder // optional
	UsageTriggers []string
	Logger        *slog.Logger
	Concurrency   int // max parallel messages (default 3)
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		bus:         cfg.Bus,
		admission:   cfg.Admission,
		replies:     cfg.Replies,
		voice:       cfg.Voice,
		ingestor:    cfg.Ingestor,
		files:       cfg.Files,
		records:     cfg.Records,
		triggers:    cfg.UsageTriggers,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
	}
}

// Run consumes inbound messages and processes them with bounded concurrency.
func (h *Handler) Run(ctx context.Context) {
	h.logger.Info("message handler started", "concurrency", h.concurrency)

	sem := make(chan struct{}, h.concurrency)
	inbound := h.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("message handler stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				h.logger.Info("inbound channel closed, message handler stopping")
				return
			}
			sem <- struct{}{}
			go func(m domain.IncomingMessage) {
				defer func() { <-sem }()
				h.Process(ctx, m)
			}(msg)
		}
	}
}

// Process handles one inbound message end to end. A message that fails
// admission produces no reply at all.
func (h *Handler) Process(ctx context.Context, msg domain.IncomingMessage) {
	metrics.MessagesTotal.Inc()

	decision := h.admission.Decide(msg)
	if !decision.Accept {
		metrics.RejectsTotal.Inc()
		h.logger.Debug("message rejected",
			"channel", msg.Channel,
			"sender", msg.SenderID,
			"reason", decision.Reason,
		)
		return
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	ctx, cancel := context.WithTimeout(ctx, turnTimeout)
	defer cancel()

	rep, command, err := h.dispatch(ctx, msg, decision.Kind)
	outcome := "ok"
	if err != nil {
		outcome = string(domain.KindOf(err))
		metrics.ErrorsTotal.Inc()
		h.logger.Error("turn failed",
			"channel", msg.Channel,
			"sender", msg.SenderID,
			"command", string(command),
			"kind", outcome,
			"err", err,
		)
		rep = &domain.Reply{Text: Translate(err)}
	}

	h.recordTurn(ctx, msg, command, outcome)
	h.emit(msg, rep)
}

// dispatch routes an admitted message to its pipeline and returns the reply.
func (h *Handler) dispatch(ctx context.Context, msg domain.IncomingMessage, kind domain.MessageKind) (*domain.Reply, domain.CommandKind, error) {
	switch kind {
	case domain.KindAudio:
		metrics.VoiceTurnsTotal.Inc()
		rep, err := h.voice.HandleVoice(ctx, msg.Attachment)
		return rep, domain.CmdSpoken, err

	case domain.KindAttachment:
		rep, err := h.ingestDoc(ctx, files.DocSource{Blob: msg.Attachment}, msg.Attachment.Name, "attachment")
		return rep, domain.CmdUpload, err
	}

	text := h.admission.StripMention(msg.Content)

	if IsUsageRequest(text, h.triggers) {
		return &domain.Reply{Text: UsageText(msg.IsDirect())}, domain.CmdDefault, nil
	}

	cmd, err := ParseCommand(text)
	if err != nil {
		return nil, domain.CmdDefault, err
	}

	var rep *domain.Reply
	switch cmd.Kind {
	case domain.CmdSpoken:
		rep, err = h.replies.Spoken(ctx, cmd.Payload)
	case domain.CmdImage:
		rep, err = h.replies.Image(ctx, cmd.Payload)
	case domain.CmdVision:
		rep, err = h.replies.Vision(ctx, cmd.Payload, cmd.URL)
	case domain.CmdUpload:
		rep, err = h.ingestDoc(ctx, files.DocSource{URL: cmd.URL}, files.NameFromURL(cmd.URL), "url")
	case domain.CmdDocAsk:
		rep, err = h.replies.DocAnswer(ctx, cmd.Payload)
	default:
		rep, err = h.replies.Text(ctx, cmd.Payload)
	}
	return rep, cmd.Kind, err
}

// ingestDoc materializes a document source and walks it through the import
// workflow. The workflow owns the local file once it exists.
func (h *Handler) ingestDoc(ctx context.Context, src files.DocSource, name, origin string) (*domain.Reply, error) {
	metrics.IngestionsTotal.Inc()

	path, err := h.files.ResolveDoc(ctx, src)
	if err != nil {
		h.recordIngestion(ctx, name, origin, err)
		return nil, err
	}

	err = h.ingestor.Ingest(ctx, path)
	h.recordIngestion(ctx, filepath.Base(path), origin, err)
	if err != nil {
		return nil, err
	}
	return &domain.Reply{Text: fmt.Sprintf(ingestedReply, filepath.Base(path))}, nil
}

// emit sends the reply, media first so a voice or image lands before the
// text that goes with it.
func (h *Handler) emit(msg domain.IncomingMessage, rep *domain.Reply) {
	if rep == nil || (rep.Text == "" && rep.Media == nil) {
		return
	}
	h.bus.SendReply(domain.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Text:    rep.Text,
		Media:   rep.Media,
	})
	metrics.RepliesTotal.Inc()
}

func (h *Handler) recordTurn(ctx context.Context, msg domain.IncomingMessage, command domain.CommandKind, outcome string) {
	if h.records == nil {
		return
	}
	err := h.records.RecordTurn(ctx, store.Turn{
		Channel:  msg.Channel,
		ChatID:   msg.ChatID,
		SenderID: msg.SenderID,
		Command:  string(command),
		Outcome:  outcome,
	})
	if err != nil {
		h.logger.Warn("failed to record turn", "err", err)
	}
}

func (h *Handler) recordIngestion(ctx context.Context, filename, origin string, ingestErr error) {
	if h.records == nil {
		return
	}
	outcome := "ok"
	if ingestErr != nil {
		outcome = string(domain.KindOf(ingestErr))
	}
	err := h.records.RecordIngestion(ctx, store.Ingestion{
		Filename: filename,
		Source:   origin,
		Outcome:  outcome,
	})
	if err != nil {
		h.logger.Warn("failed to record ingestion", "err", err)
	}
}
