package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"relaybot/internal/domain"
)

// ImageClient generates images from prompts. It requests base64 payloads so
// a generation turn stays at a single network call.
type ImageClient struct {
	apiKey  string
	apiBase string
	model   string
	size    string
	client  *http.Client
	logger  *slog.Logger
}

type ImageConfig struct {
	APIKey  string
	APIBase string
	Model   string
	Size    string
	Client  *http.Client
	Logger  *slog.Logger
}

func NewImageClient(cfg ImageConfig) *ImageClient {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "dall-e-3"
	}
	if cfg.Size == "" {
		cfg.Size = "1024x1024"
	}
	if cfg.Client == nil {
		cfg.Client = SharedHTTPClient(0)
	}
	return &ImageClient{
		apiKey:  cfg.APIKey,
		apiBase: cfg.APIBase,
		model:   cfg.Model,
		size:    cfg.Size,
		client:  cfg.Client,
		logger:  cfg.Logger,
	}
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// Generate produces one image and returns its raw bytes (PNG).
func (i *ImageClient) Generate(ctx context.Context, prompt string) ([]byte, error) {
	body, err := json.Marshal(imageRequest{
		Model:          i.model,
		Prompt:         prompt,
		N:              1,
		Size:           i.size,
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.apiBase+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+i.apiKey)

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, domain.Upstream(fmt.Errorf("image request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, classifyAPIError("image", resp.StatusCode, respBody)
	}

	var out imageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.Upstream(fmt.Errorf("decode image response: %w", err))
	}
	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return nil, domain.Upstream(fmt.Errorf("image service returned no data"))
	}

	data, err := base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
	if err != nil {
		return nil, domain.Upstream(fmt.Errorf("decode image payload: %w", err))
	}

	if i.logger != nil {
		i.logger.Info("image generated", "bytes", len(data))
	}
	return data, nil
}
