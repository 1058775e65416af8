package provider

import (
	"context"
	"log/slog"
	"net/http"
)

const visionMaxTokens = 4096

// VisionClient describes images through a chat-completion endpoint that
// accepts image_url content parts.
type VisionClient struct {
	chat *ChatClient
}

type VisionConfig struct {
	APIKey  string
	APIBase string
	Model   string
	Client  *http.Client
	Logger  *slog.Logger
}

func NewVisionClient(cfg VisionConfig) *VisionClient {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	return &VisionClient{chat: NewChatClient(ChatConfig{
		APIKey:  cfg.APIKey,
		APIBase: cfg.APIBase,
		Model:   cfg.Model,
		Client:  cfg.Client,
		Logger:  cfg.Logger,
	})}
}

type visionPart struct {
	Type     string           `json:"type"`
	Text     string           `json:"text,omitempty"`
	ImageURL *visionImagePart `json:"image_url,omitempty"`
}

type visionImagePart struct {
	URL string `json:"url"`
}

// Describe answers a prompt about a remotely hosted image. One network call;
// the service fetches the image itself.
func (v *VisionClient) Describe(ctx context.Context, prompt, imageURL string) (string, error) {
	return v.chat.complete(ctx, chatRequest{
		Model:     v.chat.model,
		MaxTokens: visionMaxTokens,
		Messages: []chatMessage{
			{Role: "user", Content: []visionPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &visionImagePart{URL: imageURL}},
			}},
		},
	})
}
