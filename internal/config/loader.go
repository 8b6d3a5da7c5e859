package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidSummaryProviders lists known summary LLM provider names.
// Used by [Validate] to warn about unrecognised names.
var ValidSummaryProviders = []string{"gemini", "openai", "anthropic", "ollama"}

// Defaults applied by [ApplyDefaults] for fields left unset.
const (
	DefaultListenAddr      = ":8080"
	DefaultNoAnswerTimeout = 30 * time.Second
	DefaultMaxCallDuration = 5 * time.Minute
	DefaultHangupGrace     = 30 * time.Second
	DefaultSummaryProvider = "gemini"
	DefaultSummaryModel    = "gemini-2.0-flash"
)

// Load reads the YAML configuration file at path, applies environment
// overrides, and returns a validated [Config]. An empty path skips the
// file entirely so a deployment can run on environment variables alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()

		if err := decode(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	ApplyEnv(cfg)
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Environment overrides are deliberately not applied
// so tests built from string literals stay deterministic.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	if err := decode(r, cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

// ApplyEnv overrides cfg fields from the environment. Environment values
// win over file values so that secrets never need to live on disk.
func ApplyEnv(cfg *Config) {
	setEnv := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setEnv(&cfg.Bridge.Secret, "AUDIO_BRIDGE_SECRET")
	setEnv(&cfg.Bridge.PublicURL, "BRIDGE_PUBLIC_URL")
	setEnv(&cfg.Bridge.CallbackBaseURL, "CALLBACK_BASE_URL")
	setEnv(&cfg.Telnyx.APIKey, "TELNYX_API_KEY")
	setEnv(&cfg.Telnyx.ConnectionID, "TELNYX_CONNECTION_ID")
	setEnv(&cfg.Telnyx.FromNumber, "TELNYX_PHONE_NUMBER")
	setEnv(&cfg.Gemini.APIKey, "GOOGLE_API_KEY")

	// The summary backend shares the Gemini key unless configured apart.
	if cfg.Summary.APIKey == "" && (cfg.Summary.Name == "" || cfg.Summary.Name == "gemini") {
		cfg.Summary.APIKey = cfg.Gemini.APIKey
	}
}

// ApplyDefaults fills unset fields with their documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Bridge.NoAnswerTimeout == 0 {
		cfg.Bridge.NoAnswerTimeout = DefaultNoAnswerTimeout
	}
	if cfg.Bridge.MaxCallDuration == 0 {
		cfg.Bridge.MaxCallDuration = DefaultMaxCallDuration
	}
	if cfg.Bridge.HangupGrace == 0 {
		cfg.Bridge.HangupGrace = DefaultHangupGrace
	}
	if cfg.Telnyx.ByteOrder == "" {
		cfg.Telnyx.ByteOrder = LittleEndian
	}
	if cfg.Summary.Name == "" {
		cfg.Summary.Name = DefaultSummaryProvider
	}
	if cfg.Summary.Model == "" {
		cfg.Summary.Model = DefaultSummaryModel
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Bridge.Secret == "" {
		errs = append(errs, errors.New("bridge.secret is required (or set AUDIO_BRIDGE_SECRET)"))
	}
	if cfg.Bridge.PublicURL == "" {
		errs = append(errs, errors.New("bridge.public_url is required (or set BRIDGE_PUBLIC_URL)"))
	}
	if cfg.Bridge.NoAnswerTimeout < 0 {
		errs = append(errs, fmt.Errorf("bridge.no_answer_timeout %s must not be negative", cfg.Bridge.NoAnswerTimeout))
	}
	if cfg.Bridge.MaxCallDuration < 0 {
		errs = append(errs, fmt.Errorf("bridge.max_call_duration %s must not be negative", cfg.Bridge.MaxCallDuration))
	}

	if cfg.Telnyx.APIKey == "" {
		errs = append(errs, errors.New("telnyx.api_key is required (or set TELNYX_API_KEY)"))
	}
	if cfg.Telnyx.ConnectionID == "" {
		errs = append(errs, errors.New("telnyx.connection_id is required (or set TELNYX_CONNECTION_ID)"))
	}
	if cfg.Telnyx.FromNumber == "" {
		errs = append(errs, errors.New("telnyx.from_number is required (or set TELNYX_PHONE_NUMBER)"))
	}
	if cfg.Telnyx.ByteOrder != "" && !cfg.Telnyx.ByteOrder.IsValid() {
		errs = append(errs, fmt.Errorf("telnyx.byte_order %q is invalid; valid values: little-endian, big-endian", cfg.Telnyx.ByteOrder))
	}

	if cfg.Gemini.APIKey == "" {
		errs = append(errs, errors.New("gemini.api_key is required (or set GOOGLE_API_KEY)"))
	}

	if cfg.Summary.Name != "" && !slices.Contains(ValidSummaryProviders, cfg.Summary.Name) {
		slog.Warn("unknown summary provider name, may be a typo or third-party provider",
			"name", cfg.Summary.Name,
			"known", ValidSummaryProviders,
		)
	}
	if cfg.Summary.APIKey == "" && cfg.Summary.Name != "ollama" {
		slog.Warn("summary provider has no API key; summaries will fail unless the backend reads its own environment",
			"name", cfg.Summary.Name,
		)
	}

	return errors.Join(errs...)
}
