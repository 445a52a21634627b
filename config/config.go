// Package config loads md2word settings from a config file, MD2WORD_*
// environment variables and a secrets directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every runtime setting.
type Config struct {
	LLM        LLMConfig    `mapstructure:"llm" yaml:"llm"`
	Server     ServerConfig `mapstructure:"server" yaml:"server"`
	Export     ExportConfig `mapstructure:"export" yaml:"export"`
	Editor     EditorConfig `mapstructure:"editor" yaml:"editor"`
	Outbox     OutboxConfig `mapstructure:"outbox" yaml:"outbox"`
	Log        LogConfig    `mapstructure:"log" yaml:"log"`
	SecretsDir string       `mapstructure:"secrets_dir" yaml:"secrets_dir"`
}

// LLMConfig selects the text service.
type LLMConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" yaml:"model"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url,omitempty"`
}

type ServerConfig struct {
	Addr       string        `mapstructure:"addr" yaml:"addr"`
	SessionTTL time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
}

// ExportConfig names the exported document.
type ExportConfig struct {
	Title     string `mapstructure:"title" yaml:"title"`
	Filename  string `mapstructure:"filename" yaml:"filename"`
	MediaType string `mapstructure:"media_type" yaml:"media_type"`
	Dir       string `mapstructure:"dir" yaml:"dir"`
}

type EditorConfig struct {
	RevertDelay time.Duration `mapstructure:"revert_delay" yaml:"revert_delay"`
}

type OutboxConfig struct {
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type LogConfig struct {
	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
}

// APIKeyFile is the file under SecretsDir holding the service credential.
const APIKeyFile = "llm-api-key"

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.session_ttl", "1h")
	v.SetDefault("export.title", "Exported Document")
	v.SetDefault("export.filename", "document_export.doc")
	v.SetDefault("export.media_type", "application/msword")
	v.SetDefault("export.dir", ".")
	v.SetDefault("editor.revert_delay", "3s")
	v.SetDefault("outbox.ttl", "10m")
	v.SetDefault("log.verbose", false)
	v.SetDefault("secrets_dir", ".secrets")
}

// Load reads configuration. An explicit path must exist; without one, md2word.yaml
// is looked up in the working directory and ~/.config/md2word and may be absent.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("md2word")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "md2word"))
		}
	}

	v.SetEnvPrefix("MD2WORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would only fail later at call time.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "gemini", "mock":
	case "deepseek":
		// DeepSeek 提供 OpenAI 兼容接口，需填写 base_url。
		if c.LLM.BaseURL == "" {
			return fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
	default:
		return fmt.Errorf("llm provider %q not supported", c.LLM.Provider)
	}
	if c.Export.Filename == "" || strings.ContainsAny(c.Export.Filename, `/\`) {
		return fmt.Errorf("export.filename %q must be a plain file name", c.Export.Filename)
	}
	return nil
}

// APIKey returns a function that resolves the credential on every call:
// llm.api_key first, then the secrets file. A missing key is not an error here.
func (c Config) APIKey() func() (string, error) {
	inline := strings.TrimSpace(c.LLM.APIKey)
	dir := c.SecretsDir
	return func() (string, error) {
		if inline != "" {
			return inline, nil
		}
		if dir == "" {
			return "", nil
		}
		data, err := os.ReadFile(filepath.Join(dir, APIKeyFile))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", nil
			}
			return "", fmt.Errorf("reading secret %s: %w", APIKeyFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.LLM.APIKey != "" {
		c.LLM.APIKey = "****"
	}
	return c
}
