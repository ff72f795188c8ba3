package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	DaemonName  string          `yaml:"daemon_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Synthesis   SynthesisConfig `yaml:"synthesis"`
	ScriptGen   ScriptGenConfig `yaml:"scriptgen"`
	Sessions    SessionsConfig  `yaml:"sessions"`
	Playback    PlaybackConfig  `yaml:"playback"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type SynthesisConfig struct {
	Provider        string `yaml:"provider"` // auto, elevenlabs, openai, exec, mock
	ElevenLabsKey   string `yaml:"elevenlabs_api_key"`
	ElevenLabsVoice string `yaml:"elevenlabs_voice"`
	ElevenLabsModel string `yaml:"elevenlabs_model"`
	OpenAIKey       string `yaml:"openai_api_key"`
	OpenAIVoice     string `yaml:"openai_voice"`
	Command         string `yaml:"command"`
	CacheDir        string `yaml:"cache_dir"`
	CacheMaxSizeMB  int    `yaml:"cache_max_size_mb"`
	MaxTextLength   int    `yaml:"max_text_length"`
}

type ScriptGenConfig struct {
	Provider   string `yaml:"provider"` // auto, claude_code, opencode, exec, mock
	Command    string `yaml:"command"`
	PromptPath string `yaml:"prompt_path"`
	TimeoutS   int    `yaml:"timeout_s"`
}

type SessionsConfig struct {
	Dir           string `yaml:"dir"`
	IndexPath     string `yaml:"index_path"`
	MaxSessions   int    `yaml:"max_sessions"`
	RetentionDays int    `yaml:"retention_days"`
}

type PlaybackConfig struct {
	AutoPlay        bool    `yaml:"auto_play"`
	AutoPlayDelayMS int     `yaml:"auto_play_delay_ms"`
	Rate            float64 `yaml:"rate"`
	Output          string  `yaml:"output"` // mock, exec
	OutputCommand   string  `yaml:"output_command"`
}

func Default() Config {
	return Config{
		DaemonName:  "docc-daemon",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8000,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Synthesis: SynthesisConfig{
			Provider:        "auto",
			ElevenLabsVoice: "Rachel",
			ElevenLabsModel: "eleven_turbo_v2_5",
			OpenAIVoice:     "alloy",
			CacheDir:        "./audio_cache",
			CacheMaxSizeMB:  500,
			MaxTextLength:   5000,
		},
		ScriptGen: ScriptGenConfig{
			Provider: "auto",
			TimeoutS: 300,
		},
		Sessions: SessionsConfig{
			Dir:           "./sessions",
			IndexPath:     "./data/docc-sessions.db",
			MaxSessions:   10000,
			RetentionDays: 0,
		},
		Playback: PlaybackConfig{
			AutoPlay:        true,
			AutoPlayDelayMS: 500,
			Rate:            1.0,
			Output:          "exec",
			OutputCommand:   "mpv --no-video --really-quiet",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.DaemonName, "DOCC_DAEMON_NAME")
	overrideString(&cfg.Environment, "DOCC_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "DOCC_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "DOCC_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "DOCC_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "DOCC_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "DOCC_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "DOCC_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "DOCC_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "DOCC_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "DOCC_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "DOCC_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "DOCC_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "DOCC_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "DOCC_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "DOCC_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "DOCC_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "DOCC_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Synthesis.Provider, "DOCC_SYNTHESIS_PROVIDER")
	overrideString(&cfg.Synthesis.ElevenLabsKey, "ELEVENLABS_API_KEY")
	overrideString(&cfg.Synthesis.ElevenLabsVoice, "ELEVENLABS_VOICE")
	overrideString(&cfg.Synthesis.ElevenLabsModel, "ELEVENLABS_MODEL")
	overrideString(&cfg.Synthesis.OpenAIKey, "OPENAI_API_KEY")
	overrideString(&cfg.Synthesis.OpenAIVoice, "DOCC_SYNTHESIS_OPENAI_VOICE")
	overrideString(&cfg.Synthesis.Command, "DOCC_SYNTHESIS_COMMAND")
	overrideString(&cfg.Synthesis.CacheDir, "DOCC_SYNTHESIS_CACHE_DIR")
	overrideInt(&cfg.Synthesis.CacheMaxSizeMB, "DOCC_SYNTHESIS_CACHE_MAX_SIZE_MB")
	overrideInt(&cfg.Synthesis.MaxTextLength, "DOCC_SYNTHESIS_MAX_TEXT_LENGTH")
	overrideString(&cfg.ScriptGen.Provider, "DOCC_SCRIPTGEN_PROVIDER")
	overrideString(&cfg.ScriptGen.Command, "DOCC_SCRIPTGEN_COMMAND")
	overrideString(&cfg.ScriptGen.PromptPath, "DOCC_SCRIPTGEN_PROMPT_PATH")
	overrideInt(&cfg.ScriptGen.TimeoutS, "DOCC_SCRIPTGEN_TIMEOUT_S")
	overrideString(&cfg.Sessions.Dir, "DOCC_SESSIONS_DIR")
	overrideString(&cfg.Sessions.IndexPath, "DOCC_SESSIONS_INDEX_PATH")
	overrideInt(&cfg.Sessions.MaxSessions, "DOCC_SESSIONS_MAX_SESSIONS")
	overrideInt(&cfg.Sessions.RetentionDays, "DOCC_SESSIONS_RETENTION_DAYS")
	overrideBool(&cfg.Playback.AutoPlay, "DOCC_PLAYBACK_AUTO_PLAY")
	overrideInt(&cfg.Playback.AutoPlayDelayMS, "DOCC_PLAYBACK_AUTO_PLAY_DELAY_MS")
	overrideFloat(&cfg.Playback.Rate, "DOCC_PLAYBACK_RATE")
	overrideString(&cfg.Playback.Output, "DOCC_PLAYBACK_OUTPUT")
	overrideString(&cfg.Playback.OutputCommand, "DOCC_PLAYBACK_OUTPUT_COMMAND")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.DaemonName == "" {
		return errors.New("daemon_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Synthesis.Provider {
	case "auto", "elevenlabs", "openai", "exec", "mock":
	default:
		return errors.New("synthesis.provider must be one of auto|elevenlabs|openai|exec|mock")
	}
	if cfg.Synthesis.Provider == "exec" && cfg.Synthesis.Command == "" {
		return errors.New("synthesis.command must be set when provider=exec")
	}
	if cfg.Synthesis.CacheDir == "" {
		return errors.New("synthesis.cache_dir must not be empty")
	}
	if cfg.Synthesis.CacheMaxSizeMB < 10 {
		return errors.New("synthesis.cache_max_size_mb must be at least 10")
	}
	if cfg.Synthesis.CacheMaxSizeMB > 10000 {
		return errors.New("synthesis.cache_max_size_mb must be less than 10000")
	}
	if cfg.Synthesis.MaxTextLength <= 0 {
		return errors.New("synthesis.max_text_length must be positive")
	}
	switch cfg.ScriptGen.Provider {
	case "auto", "claude_code", "opencode", "exec", "mock":
	default:
		return errors.New("scriptgen.provider must be one of auto|claude_code|opencode|exec|mock")
	}
	if cfg.ScriptGen.Provider == "exec" && cfg.ScriptGen.Command == "" {
		return errors.New("scriptgen.command must be set when provider=exec")
	}
	if cfg.ScriptGen.TimeoutS <= 0 {
		return errors.New("scriptgen.timeout_s must be positive")
	}
	if cfg.Sessions.Dir == "" {
		return errors.New("sessions.dir must not be empty")
	}
	if cfg.Sessions.IndexPath == "" {
		return errors.New("sessions.index_path must not be empty")
	}
	if cfg.Sessions.RetentionDays < 0 {
		return errors.New("sessions.retention_days must be >= 0")
	}
	if cfg.Playback.AutoPlayDelayMS < 0 {
		return errors.New("playback.auto_play_delay_ms must be >= 0")
	}
	if cfg.Playback.Rate <= 0 {
		return errors.New("playback.rate must be positive")
	}
	switch cfg.Playback.Output {
	case "mock", "exec":
	default:
		return errors.New("playback.output must be one of mock|exec")
	}
	if cfg.Playback.Output == "exec" && cfg.Playback.OutputCommand == "" {
		return errors.New("playback.output_command must be set when output=exec")
	}
	return nil
}
