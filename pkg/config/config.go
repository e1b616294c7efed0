package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/veltrix/chatgate/pkg/ratelimit"
)

type Config struct {
	Server       ServerConfig           `mapstructure:"server"`
	Storage      StorageConfig          `mapstructure:"storage"`
	Redis        RedisConfig            `mapstructure:"redis"`
	Limits       map[string]interface{} `mapstructure:"limits"`
	Gemini       GeminiConfig           `mapstructure:"gemini"`
	Conversation ConversationConfig     `mapstructure:"conversation"`
	Sweep        SweepConfig            `mapstructure:"sweep"`
}

type ServerConfig struct {
	ProxyPort  int    `mapstructure:"proxy_port"`
	AdminPort  int    `mapstructure:"admin_port"`
	AdminToken string `mapstructure:"admin_token"`
}

type StorageConfig struct {
	Driver          string `mapstructure:"driver"` // file, memory or redis
	Dir             string `mapstructure:"dir"`
	ConversationDir string `mapstructure:"conversation_dir"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type ConversationConfig struct {
	MaxMessages    int `mapstructure:"max_messages"`
	HistoryWindow  int `mapstructure:"history_window"`
	MaxPromptBytes int `mapstructure:"max_prompt_bytes"`
}

type SweepConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Retention time.Duration `mapstructure:"retention"`
}

var globalConfig Config

func Load(configPath string) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine, environment variables and defaults apply.
	}

	if err := viper.Unmarshal(&globalConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setDefaultValues()
	return nil
}

func setDefaultValues() {
	if globalConfig.Server.ProxyPort == 0 {
		globalConfig.Server.ProxyPort = 8080
	}
	if globalConfig.Server.AdminPort == 0 {
		globalConfig.Server.AdminPort = 8081
	}
	if globalConfig.Storage.Driver == "" {
		globalConfig.Storage.Driver = "file"
	}
	if globalConfig.Storage.Dir == "" {
		globalConfig.Storage.Dir = "data/counters"
	}
	if globalConfig.Storage.ConversationDir == "" {
		globalConfig.Storage.ConversationDir = "data/conversations"
	}
	if globalConfig.Conversation.MaxMessages == 0 {
		globalConfig.Conversation.MaxMessages = 40
	}
	if globalConfig.Conversation.HistoryWindow == 0 {
		globalConfig.Conversation.HistoryWindow = 10
	}
	if globalConfig.Conversation.MaxPromptBytes == 0 {
		globalConfig.Conversation.MaxPromptBytes = 16 * 1024
	}
	if globalConfig.Sweep.Interval == 0 {
		globalConfig.Sweep.Interval = 10 * time.Minute
	}
	if globalConfig.Sweep.Retention == 0 {
		globalConfig.Sweep.Retention = time.Hour
	}
}

// GateConfig merges configured limit overrides over the defaults. The
// limits section is a free-form settings map so a deployment only
// states the knobs it changes.
func GateConfig() (ratelimit.Config, error) {
	cfg := ratelimit.DefaultConfig()
	if len(globalConfig.Limits) == 0 {
		return cfg, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &cfg,
	})
	if err != nil {
		return cfg, err
	}
	if err := decoder.Decode(globalConfig.Limits); err != nil {
		return cfg, fmt.Errorf("invalid limits configuration: %w", err)
	}
	return cfg, nil
}

func GetConfig() *Config {
	return &globalConfig
}
