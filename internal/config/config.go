package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"`
	Server     ServerConfig     `mapstructure:"server"`
	Refine     RefineConfig     `mapstructure:"refine"`
	Responder  ResponderConfig  `mapstructure:"responder"`
	Transcript TranscriptConfig `mapstructure:"transcript"`
	Log        LogConfig        `mapstructure:"log"`
}

// LLMConfig holds the LLM configuration
type LLMConfig struct {
	Provider string        `mapstructure:"provider"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// RefineConfig bounds the generate/reflect loop.
// MaxMessages is the stopping threshold: a run ends once the history holds
// more than MaxMessages messages. MaxSteps caps FSM transitions regardless of
// policy; when unset it is derived from MaxMessages.
type RefineConfig struct {
	MaxMessages int `mapstructure:"max_messages"`
	MaxSteps    int `mapstructure:"max_steps"`
}

// ResponderConfig holds the structured responder configuration
type ResponderConfig struct {
	AnswerWords int `mapstructure:"answer_words"`
}

// TranscriptConfig points at the optional SQLite transcript. Empty disables it.
type TranscriptConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "o4-mini")
	v.SetDefault("llm.timeout", time.Duration(0))
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("refine.max_messages", 6)
	v.SetDefault("refine.max_steps", 0)
	v.SetDefault("responder.answer_words", 250)
	v.SetDefault("transcript.path", "")
	v.SetDefault("log.level", "info")
}

// Load loads the configuration from CONFIG_PATH, or config.yaml in the working
// directory when CONFIG_PATH is unset. A missing default file is not an error:
// defaults and REFLEXION_* environment variables still apply. A .env file, if
// present, is loaded into the environment first.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REFLEXION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("llm.api_key", "REFLEXION_LLM_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config.Refine.MaxSteps == 0 {
		config.Refine.MaxSteps = 2 * (config.Refine.MaxMessages + 1)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings that would break the loop's termination guarantee.
func (c *Config) Validate() error {
	if c.Refine.MaxMessages < 0 {
		return fmt.Errorf("refine.max_messages must be >= 0, got %d", c.Refine.MaxMessages)
	}
	// a run needs up to max_messages+1 transitions to reach DONE
	if c.Refine.MaxSteps <= c.Refine.MaxMessages {
		return fmt.Errorf("refine.max_steps (%d) must exceed refine.max_messages (%d)", c.Refine.MaxSteps, c.Refine.MaxMessages)
	}
	if c.Responder.AnswerWords <= 0 {
		return fmt.Errorf("responder.answer_words must be > 0, got %d", c.Responder.AnswerWords)
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model must be set")
	}
	return nil
}
