package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sjawhar/gestalt-coach/internal/llm"
)

// EnvPrefix is the namespace prefix for all Gestalt Coach environment variables.
const EnvPrefix = "GESTALT_COACH_"

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	ListenAddr            string   `yaml:"listen_addr"`
	AllowedOrigins        []string `yaml:"allowed_origins"`
	LoginPath             string   `yaml:"login_path"`
	DBPath                string   `yaml:"db_path"`
	TempDir               string   `yaml:"temp_dir"`
	ExportDir             string   `yaml:"export_dir"`
	ChunkInterval         string   `yaml:"chunk_interval"`
	MicSampleRate         int      `yaml:"mic_sample_rate"`
	MicSampleRates        []int    `yaml:"mic_sample_rates"`
	ChatModel             string   `yaml:"chat_model"`
	AnalysisModel         string   `yaml:"analysis_model"`
	ElevenLabsAgentID     string   `yaml:"elevenlabs_agent_id"`
	ElevenLabsBaseURL     string   `yaml:"elevenlabs_base_url"`
	GDriveFolderID        string   `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string   `yaml:"google_credentials_file"`

	// Secrets, env vars only.
	OpenAIAPIKey     string `yaml:"-"`
	AnthropicAPIKey  string `yaml:"-"`
	GeminiAPIKey     string `yaml:"-"`
	DeepgramAPIKey   string `yaml:"-"`
	ElevenLabsAPIKey string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr:            ":8080",
		LoginPath:             "/auth/login",
		DBPath:                "data/gestalt-coach.db",
		TempDir:               "data/tmp",
		ExportDir:             "data/takeout",
		ChunkInterval:         "5s",
		MicSampleRate:         16000,
		MicSampleRates:        []int{48000, 44100, 32000, 24000},
		ChatModel:             "openai/gpt-3.5-turbo",
		AnalysisModel:         "openai/gpt-4",
		GoogleCredentialsFile: "./service-account.json",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedChunkInterval returns ChunkInterval as a time.Duration, falling
// back to 5s if the value is invalid.
func (c *Config) ParsedChunkInterval() time.Duration {
	d, err := time.ParseDuration(c.ChunkInterval)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// APIKeyFor returns the secret for an LLM provider name.
func (c *Config) APIKeyFor(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	}
	return ""
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv(EnvPrefix + "LOGIN_PATH"); v != "" {
		cfg.LoginPath = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "TEMP_DIR"); v != "" {
		cfg.TempDir = v
	}
	if v := os.Getenv(EnvPrefix + "EXPORT_DIR"); v != "" {
		cfg.ExportDir = v
	}
	if v := os.Getenv(EnvPrefix + "CHUNK_INTERVAL"); v != "" {
		cfg.ChunkInterval = v
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			cfg.MicSampleRate = rate
		}
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATES"); v != "" {
		cfg.MicSampleRates = parseSampleRates(v)
	}
	if v := os.Getenv(EnvPrefix + "CHAT_MODEL"); v != "" {
		cfg.ChatModel = v
	}
	if v := os.Getenv(EnvPrefix + "ANALYSIS_MODEL"); v != "" {
		cfg.AnalysisModel = v
	}
	if v := os.Getenv(EnvPrefix + "ELEVENLABS_AGENT_ID"); v != "" {
		cfg.ElevenLabsAgentID = v
	}
	if v := os.Getenv(EnvPrefix + "ELEVENLABS_BASE_URL"); v != "" {
		cfg.ElevenLabsBaseURL = v
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
}

// loadSecrets prefers the prefixed variable and falls back to the vendor's
// conventional name.
func loadSecrets(cfg *Config) {
	cfg.OpenAIAPIKey = secret("OPENAI_API_KEY")
	cfg.AnthropicAPIKey = secret("ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = secret("GEMINI_API_KEY")
	cfg.DeepgramAPIKey = secret("DEEPGRAM_API_KEY")
	cfg.ElevenLabsAPIKey = secret("ELEVENLABS_API_KEY")
}

func secret(name string) string {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		return v
	}
	return os.Getenv(name)
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.OpenAIAPIKey == "" {
		warnings = append(warnings, "OpenAI API key not configured; transcription is disabled. Set "+EnvPrefix+"OPENAI_API_KEY.")
	}
	for _, m := range []struct{ name, value string }{
		{"chat_model", cfg.ChatModel},
		{"analysis_model", cfg.AnalysisModel},
	} {
		provider, _, err := llm.ParseModel(m.value)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Invalid %s %q: expected provider/model.", m.name, m.value))
			continue
		}
		if provider != "openai" && cfg.APIKeyFor(provider) == "" {
			warnings = append(warnings, fmt.Sprintf("No API key for %s provider %q; set %s%s_API_KEY.", m.name, provider, EnvPrefix, strings.ToUpper(provider)))
		}
	}
	if cfg.DeepgramAPIKey == "" {
		warnings = append(warnings, "Deepgram API key not configured; live transcript falls back to Whisper chunks. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
	}
	if cfg.ElevenLabsAPIKey == "" || cfg.ElevenLabsAgentID == "" {
		warnings = append(warnings, "ElevenLabs API key or agent id not configured; the voice coach is disabled.")
	}
	if d, err := time.ParseDuration(cfg.ChunkInterval); err != nil || d <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid chunk_interval %q; using default 5s.", cfg.ChunkInterval))
	}

	return warnings
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseSampleRates(raw string) []int {
	parts := strings.Split(raw, ",")
	seen := make(map[int]struct{}, len(parts))
	result := make([]int, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		rate, err := strconv.Atoi(trimmed)
		if err != nil || rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}

	return result
}
