package domain

import (
	"context"
	"io"
	"time"
)

// MessageKind classifies an inbound message.
type MessageKind string

const (
	KindText       MessageKind = "text"
	KindAudio      MessageKind = "audio"
	KindAttachment MessageKind = "attachment"
	KindOther      MessageKind = "other"
)

// GroupContext identifies the group a message was posted in.
// Nil GroupContext means a direct (one-to-one) conversation.
type GroupContext struct {
	ID   string
	Name string
}

// Blob is a lazily fetched binary payload attached to a message (voice
// note, document). Open downloads the content; callers own the reader.
type Blob struct {
	Name string
	Open func(ctx context.Context) (io.ReadCloser, error)
}

// IncomingMessage is one inbound chat event. Immutable once received.
type IncomingMessage struct {
	Channel     string
	ChatID      string
	SenderID    string
	SenderName  string
	SenderAlias string
	Group       *GroupContext // nil = direct conversation
	Kind        MessageKind
	Content     string
	Attachment  *Blob // set for audio/attachment kinds
	Timestamp   time.Time
}

// IsDirect reports whether the message came from a one-to-one conversation.
func (m IncomingMessage) IsDirect() bool { return m.Group == nil }

// MediaArtifact is a binary reply payload. The filename extension implies
// the MIME type (.mp3, .png).
type MediaArtifact struct {
	Filename string
	Data     []byte
}

// Reply is what a pipeline produces for one turn. Media is delivered
// before text when both are set.
type Reply struct {
	Text  string
	Media *MediaArtifact
}

// OutboundMessage is a reply addressed back to its originating channel.
type OutboundMessage struct {
	Channel string
	ChatID  string
	Text    string
	Media   *MediaArtifact
}

// MessageBus routes messages between channels and the handler loop.
type MessageBus interface {
	Publish(msg IncomingMessage)
	Subscribe() <-chan IncomingMessage
	SendReply(msg OutboundMessage)
	OnReply(channelName string, handler func(OutboundMessage))
	Close()
}

// Channel is the interface for platform adapters (Telegram, CLI).
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
}
