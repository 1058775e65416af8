package config

func Defaults() *Config {
	return &Config{
		Bot: BotConfig{
			Name: "relaybot",
			// The CLI channel publishes as "operator"; keep it admitted.
			ContactWhitelist: FlexStringList{"operator"},
			UsageTriggers:    []string{"help", "usage", "ai"},
		},
		General: GeneralConfig{
			FilesDir:              "~/.relaybot/files",
			LogLevel:              "info",
			MaxConcurrentMessages: 5,
		},
		OpenAI: OpenAIConfig{
			APIBase:      "https://api.openai.com/v1",
			ChatModel:    "gpt-4o-mini",
			ImageModel:   "dall-e-3",
			VisionModel:  "gpt-4o",
			WhisperModel: "whisper-1",
			TTSModel:     "tts-1",
			TTSVoice:     "alloy",
		},
		Knowledge: KnowledgeConfig{
			IngestPolicy:       "queue",
			StepTimeoutSeconds: 30,
			PollTimeoutSeconds: 300,
			ScreenshotDir:      "~/.relaybot/files",
			Headless:           true,
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				ParseMode: "Markdown",
			},
			CLI: CLIConfig{
				Enabled: true,
			},
		},
		Store: StoreConfig{
			Enabled: true,
			DBPath:  "~/.relaybot/relaybot.db",
		},
	}
}
