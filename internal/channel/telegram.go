package channel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"relaybot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
	telegramFetchTimeout   = 60 * time.Second
)

// Telegram implements domain.Channel for Telegram Bot. Whitelisting is not
// done here; admission owns that, this layer only translates updates.
type Telegram struct {
	token     string
	parseMode string

	bot    *tgbotapi.BotAPI
	bus    domain.MessageBus
	http   *http.Client
	logger *slog.Logger
}

type TelegramConfig struct {
	Token     string
	ParseMode string
	Logger    *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.ParseMode == "" {
		cfg.ParseMode = "Markdown"
	}
	return &Telegram{
		token:     cfg.Token,
		parseMode: cfg.ParseMode,
		http:      &http.Client{Timeout: telegramFetchTimeout},
		logger:    cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and begins polling for updates.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	t.bus = bus

	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	bus.OnReply("telegram", func(msg domain.OutboundMessage) {
		chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
		if err != nil {
			t.logger.Error("invalid chat ID for telegram reply", "chatID", msg.ChatID, "err", err)
			return
		}
		// Media goes first so the voice note or picture lands before the
		// text that goes with it.
		if msg.Media != nil {
			t.sendMedia(chatID, msg.Media)
		}
		if msg.Text != "" {
			t.sendMessage(chatID, msg.Text)
		}
	})

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(update)
		}
	}
}

// Stop shuts down the Telegram bot.
// Note: StopReceivingUpdates is already called when ctx is cancelled in Start().
// Calling it twice panics, so Stop() is a no-op.
func (t *Telegram) Stop() error {
	return nil
}

func (t *Telegram) handleUpdate(update tgbotapi.Update) {
	m := update.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return
	}

	msg := domain.IncomingMessage{
		Channel:     "telegram",
		ChatID:      strconv.FormatInt(m.Chat.ID, 10),
		SenderID:    strconv.FormatInt(m.From.ID, 10),
		SenderName:  strings.TrimSpace(m.From.FirstName + " " + m.From.LastName),
		SenderAlias: m.From.UserName,
		Timestamp:   time.Unix(int64(m.Date), 0),
	}

	if m.Chat.IsGroup() || m.Chat.IsSuperGroup() {
		msg.Group = &domain.GroupContext{
			ID:   strconv.FormatInt(m.Chat.ID, 10),
			Name: m.Chat.Title,
		}
	}

	switch {
	case m.Voice != nil:
		msg.Kind = domain.KindAudio
		msg.Attachment = t.blob("voice-"+m.Voice.FileID+".ogg", m.Voice.FileID)
	case m.Document != nil:
		msg.Kind = domain.KindAttachment
		msg.Attachment = t.blob(m.Document.FileName, m.Document.FileID)
	case strings.TrimSpace(m.Text) != "":
		msg.Kind = domain.KindText
		msg.Content = strings.TrimSpace(m.Text)
	default:
		msg.Kind = domain.KindOther
	}

	t.logger.Info("telegram message received",
		"chat_id", msg.ChatID,
		"sender", msg.SenderAlias,
		"kind", string(msg.Kind),
	)

	typing := tgbotapi.NewChatAction(m.Chat.ID, tgbotapi.ChatTyping)
	_, _ = t.bot.Send(typing)

	t.bus.Publish(msg)
}

// blob wraps a Telegram file reference as a lazily fetched attachment. The
// direct URL is resolved when the pipeline actually opens the blob.
func (t *Telegram) blob(name, fileID string) *domain.Blob {
	return &domain.Blob{
		Name: name,
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			url, err := t.bot.GetFileDirectURL(fileID)
			if err != nil {
				return nil, fmt.Errorf("resolve telegram file %s: %w", fileID, err)
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}
			resp, err := t.http.Do(req)
			if err != nil {
				return nil, fmt.Errorf("fetch telegram file: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				resp.Body.Close()
				return nil, fmt.Errorf("fetch telegram file: HTTP %d", resp.StatusCode)
			}
			return resp.Body, nil
		},
	}
}

// sendMedia picks the Telegram message type from the artifact extension:
// mp3 becomes a playable audio note, png a photo, anything else a document.
func (t *Telegram) sendMedia(chatID int64, media *domain.MediaArtifact) {
	file := tgbotapi.FileBytes{Name: media.Filename, Bytes: media.Data}

	var msg tgbotapi.Chattable
	switch strings.ToLower(filepath.Ext(media.Filename)) {
	case ".mp3", ".ogg":
		msg = tgbotapi.NewAudio(chatID, file)
	case ".png", ".jpg", ".jpeg":
		msg = tgbotapi.NewPhoto(chatID, file)
	default:
		msg = tgbotapi.NewDocument(chatID, file)
	}

	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Error("telegram media send failed", "file", media.Filename, "err", err)
	}
}

func (t *Telegram) sendMessage(chatID int64, text string) {
	// Telegram has a 4096 char limit per message
	const maxLen = telegramMaxMsgLen
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxLen {
			cutAt := strings.LastIndex(chunk[:maxLen], "\n")
			if cutAt < maxLen/2 {
				cutAt = maxLen
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}

		t.sendChunk(chatID, chunk)
	}
}

// sendChunk sends a single message chunk with retry and rate limit handling.
// Strategy: try the configured parse mode first → on parse error fallback to
// plain text → retry with backoff.
func (t *Telegram) sendChunk(chatID int64, text string) {
	const maxRetries = telegramMaxSendRetries

	for attempt := 0; attempt <= maxRetries; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)
		if attempt == 0 && t.parseMode != "" {
			msg.ParseMode = t.parseMode
		}

		_, err := t.bot.Send(msg)
		if err == nil {
			return
		}

		errStr := err.Error()

		// Handle Telegram rate limiting (HTTP 429).
		if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429") {
			retryAfter := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off",
				"retry_after", retryAfter, "attempt", attempt+1,
			)
			time.Sleep(retryAfter)
			continue
		}

		// Parse error on first attempt — immediately retry as plain text.
		if attempt == 0 && msg.ParseMode != "" &&
			strings.Contains(errStr, "can't parse entities") {
			t.logger.Warn("telegram markdown parse error, retrying as plain text",
				"err", err, "parseMode", t.parseMode,
			)
			plainMsg := tgbotapi.NewMessage(chatID, text)
			if _, err2 := t.bot.Send(plainMsg); err2 == nil {
				return
			}
		}

		if attempt < maxRetries {
			backoff := time.Duration(attempt+1) * time.Second
			t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}

		t.logger.Error("telegram send failed after retries", "err", err, "attempts", maxRetries+1)
	}
}
