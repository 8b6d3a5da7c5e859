// Package config provides the configuration schema, loader, and summary
// provider registry for the callbridge server.
package config

import "time"

// LogLevel controls log verbosity for the bridge server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ByteOrder selects the int16 byte order of PCM written to the carrier's
// media WebSocket. Telnyx documents its L16 stream as big-endian in places
// and delivers little-endian in practice, so the order is a deployment
// setting rather than a constant.
type ByteOrder string

const (
	LittleEndian ByteOrder = "little-endian"
	BigEndian    ByteOrder = "big-endian"
)

// IsValid reports whether b is a recognised byte order.
func (b ByteOrder) IsValid() bool {
	return b == LittleEndian || b == BigEndian
}

// Config is the root configuration structure for callbridge.
// It is typically loaded from a YAML file using [Load], with environment
// variables overriding individual fields.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Telnyx  TelnyxConfig  `yaml:"telnyx"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Summary ProviderEntry `yaml:"summary"`
}

// ServerConfig holds network and logging settings for the bridge server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g. ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain
	// HTTP (behind a terminating proxy).
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// BridgeConfig holds the bridge's own identity and call-lifetime settings.
type BridgeConfig struct {
	// Secret is the shared bearer token. Inbound control requests must
	// present it, and outbound callbacks to the orchestrator carry it.
	Secret string `yaml:"secret"`

	// PublicURL is the externally reachable base URL of this bridge
	// (e.g. "https://bridge.example.com"). Telnyx webhooks and the media
	// stream URL are derived from it.
	PublicURL string `yaml:"public_url"`

	// CallbackBaseURL, when set, overrides the scheme+host of callback
	// URLs supplied per call. Used when the orchestrator registers
	// internal addresses that differ from what the bridge can reach.
	CallbackBaseURL string `yaml:"callback_base_url"`

	// NoAnswerTimeout is how long a dialed call may ring before it is
	// failed. Default: 30s.
	NoAnswerTimeout time.Duration `yaml:"no_answer_timeout"`

	// MaxCallDuration is the conversation budget measured from the
	// moment the call connects. Default: 5m.
	MaxCallDuration time.Duration `yaml:"max_call_duration"`

	// HangupGrace is the slack added to MaxCallDuration before the
	// safety timer force-completes a call whose hangup never arrived.
	// Default: 30s.
	HangupGrace time.Duration `yaml:"hangup_grace"`
}

// TelnyxConfig holds the carrier credentials and media settings.
type TelnyxConfig struct {
	// APIKey authenticates against the Telnyx REST API.
	APIKey string `yaml:"api_key"`

	// ConnectionID is the Call Control application ID calls run under.
	ConnectionID string `yaml:"connection_id"`

	// FromNumber is the E.164 caller ID for outbound calls.
	FromNumber string `yaml:"from_number"`

	// BaseURL overrides the Telnyx API endpoint. Used in tests.
	BaseURL string `yaml:"base_url"`

	// ByteOrder is the int16 byte order of PCM written to the media
	// WebSocket. Default: little-endian.
	ByteOrder ByteOrder `yaml:"byte_order"`
}

// GeminiConfig holds the voice model settings.
type GeminiConfig struct {
	// APIKey authenticates against the Gemini Live API.
	APIKey string `yaml:"api_key"`

	// Model overrides the default live model.
	Model string `yaml:"model"`

	// Voice selects the prebuilt voice. Empty means the provider default.
	Voice string `yaml:"voice"`

	// BaseURL overrides the Gemini Live WebSocket endpoint. Used in tests.
	BaseURL string `yaml:"base_url"`
}

// ProviderEntry is the configuration block for the summary LLM backend.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation
	// (e.g. "gemini", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g. "gemini-2.0-flash").
	Model string `yaml:"model"`
}
