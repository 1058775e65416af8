package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Config is the root configuration for the relay bot. It is constructed
// once at startup and passed to each component; nothing reads it globally.
type Config struct {
	Bot       BotConfig       `json:"bot"`
	General   GeneralConfig   `json:"general"`
	OpenAI    OpenAIConfig    `json:"openai"`
	Knowledge KnowledgeConfig `json:"knowledge"`
	Channels  ChannelsConfig  `json:"channels"`
	Store     StoreConfig     `json:"store"`
}

// BotConfig carries the bot's platform identity and admission whitelists.
type BotConfig struct {
	Name             string         `json:"name"`
	GroupWhitelist   FlexStringList `json:"groupWhitelist"`
	ContactWhitelist FlexStringList `json:"contactWhitelist"`
	UsageTriggers    []string       `json:"usageTriggers,omitempty"` // keywords answered with the usage text
}

type GeneralConfig struct {
	FilesDir              string `json:"filesDir"` // temp area for attachments, audio, ingestion payloads
	LogLevel              string `json:"logLevel"`
	LogFile               string `json:"logFile,omitempty"`
	MetricsAddr           string `json:"metricsAddr,omitempty"` // e.g. "127.0.0.1:9090"; empty disables
	MaxConcurrentMessages int    `json:"maxConcurrentMessages"`
}

// OpenAIConfig configures every OpenAI-compatible backend the reply
// pipeline talks to.
type OpenAIConfig struct {
	APIBase      string `json:"apiBase,omitempty"`
	APIKey       string `json:"apiKey"`
	ChatModel    string `json:"chatModel,omitempty"`
	ImageModel   string `json:"imageModel,omitempty"`
	VisionModel  string `json:"visionModel,omitempty"`
	WhisperModel string `json:"whisperModel,omitempty"`
	TTSModel     string `json:"ttsModel,omitempty"`
	TTSVoice     string `json:"ttsVoice,omitempty"`
}

// KnowledgeConfig configures the document-QA service and the browser-driven
// dataset ingestion workflow.
type KnowledgeConfig struct {
	Site               string `json:"site"`                  // knowledge-base base URL
	AppKey             string `json:"appKey"`                // bearer key for the QA endpoint
	InsecureTLS        bool   `json:"insecureTls,omitempty"` // accept self-signed certificates on the QA endpoint
	Username           string `json:"username"`
	Password           string `json:"password"`
	DatasetID          string `json:"datasetId"`
	SelectorsFile      string `json:"selectorsFile,omitempty"` // YAML selector set; empty = built-in defaults
	IngestPolicy       string `json:"ingestPolicy,omitempty"`  // "allow" | "queue" | "reject"
	StepTimeoutSeconds int    `json:"stepTimeoutSeconds,omitempty"`
	PollTimeoutSeconds int    `json:"pollTimeoutSeconds,omitempty"`
	ScreenshotDir      string `json:"screenshotDir,omitempty"` // diagnostic captures on workflow failure
	Headless           bool   `json:"headless"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	CLI      CLIConfig      `json:"cli"`
}

type TelegramConfig struct {
	Enabled   bool   `json:"enabled"`
	Token     string `json:"token"`
	ParseMode string `json:"parseMode"`
}

type CLIConfig struct {
	Enabled bool `json:"enabled"`
}

type StoreConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"dbPath"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["friends", 456] both become "friends", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	// Fallback: array of mixed types
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// DefaultConfigDir returns the default config directory (~/.relaybot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".relaybot"
	}
	return filepath.Join(home, ".relaybot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.FilesDir = ExpandPath(cfg.General.FilesDir)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Store.DBPath = ExpandPath(cfg.Store.DBPath)
	cfg.Knowledge.ScreenshotDir = ExpandPath(cfg.Knowledge.ScreenshotDir)
	cfg.Knowledge.SelectorsFile = ExpandPath(cfg.Knowledge.SelectorsFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Bot.Name == "" {
		errs = append(errs, "bot.name is required (admission needs the bot identity)")
	}
	if cfg.General.MaxConcurrentMessages < 1 || cfg.General.MaxConcurrentMessages > 100 {
		errs = append(errs, "general.maxConcurrentMessages must be between 1 and 100")
	}
	if cfg.General.FilesDir == "" {
		errs = append(errs, "general.filesDir is required")
	}

	switch cfg.Knowledge.IngestPolicy {
	case "", "allow", "queue", "reject":
		// valid
	default:
		errs = append(errs, "knowledge.ingestPolicy must be one of: allow, queue, reject")
	}
	if cfg.Knowledge.StepTimeoutSeconds < 0 {
		errs = append(errs, "knowledge.stepTimeoutSeconds must be >= 0")
	}
	if cfg.Knowledge.PollTimeoutSeconds < 0 {
		errs = append(errs, "knowledge.pollTimeoutSeconds must be >= 0")
	}

	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token == "" {
		errs = append(errs, "channels.telegram.token is required when telegram is enabled")
	}
	if cfg.Store.Enabled && cfg.Store.DBPath == "" {
		errs = append(errs, "store.dbPath is required when the store is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
