package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"relaybot/internal/domain"
)

// DocQAClient asks questions against the knowledge-base service's
// chat-completions endpoint. Answers are grounded in whatever the
// ingestion workflow uploaded into the dataset.
type DocQAClient struct {
	site   string
	appKey string
	client *http.Client
	logger *slog.Logger
}

type DocQAConfig struct {
	Site     string // base URL of the knowledge-base deployment
	AppKey   string
	Insecure bool // accept self-signed certificates
	Logger   *slog.Logger
}

func NewDocQAClient(cfg DocQAConfig) *DocQAClient {
	client := SharedHTTPClient(0)
	if cfg.Insecure {
		client = InsecureHTTPClient(0)
	}
	return &DocQAClient{
		site:   cfg.Site,
		appKey: cfg.AppKey,
		client: client,
		logger: cfg.Logger,
	}
}

type docQARequest struct {
	Stream   bool          `json:"stream"`
	Detail   bool          `json:"detail"`
	Messages []chatMessage `json:"messages"`
}

// Ask sends one question and returns the grounded answer text.
func (d *DocQAClient) Ask(ctx context.Context, question string) (string, error) {
	body, err := json.Marshal(docQARequest{
		Messages: []chatMessage{{Role: "user", Content: question}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.site+"/api/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.appKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", domain.Upstream(fmt.Errorf("docqa request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", classifyAPIError("docqa", resp.StatusCode, respBody)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.Upstream(fmt.Errorf("decode docqa response: %w", err))
	}
	if len(out.Choices) == 0 {
		return "", domain.Upstream(fmt.Errorf("docqa service returned no choices"))
	}
	return out.Choices[0].Message.Content, nil
}
