package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPollInterval = 60
	DefaultDataFile     = "tracked_docs.json"
	DefaultFetchTimeout = 20
	DefaultUserAgent    = "DocWatch/1.0"
	DefaultMaxBodyBytes = 5 << 20
	DefaultWorkers      = 4
	DefaultDiffLimit    = 1900
)

type Config struct {
	Telegram            Telegram `yaml:"telegram"`
	PollIntervalSeconds int      `yaml:"pollIntervalSeconds" env:"DOCWATCH_POLL_INTERVAL"`
	Storage             Storage  `yaml:"storage"`
	Fetch               Fetch    `yaml:"fetch"`
	Workers             int      `yaml:"workers" env:"DOCWATCH_WORKERS"`
	DiffLimit           int      `yaml:"diffLimit"`
	LogLevel            string   `yaml:"logLevel" env:"DOCWATCH_LOG_LEVEL"`
}

type Telegram struct {
	BotToken string `yaml:"botToken" env:"DOCWATCH_BOT_TOKEN"`
	ChatID   int64  `yaml:"chatID" env:"DOCWATCH_CHAT_ID"`
}

// Storage 选择快照持久化后端：json（默认）或 sqlite。
type Storage struct {
	Driver string `yaml:"driver" env:"DOCWATCH_STORAGE_DRIVER"`
	Path   string `yaml:"path" env:"DOCWATCH_DATA_FILE"`
}

type Fetch struct {
	TimeoutSeconds int    `yaml:"timeoutSeconds" env:"DOCWATCH_FETCH_TIMEOUT"`
	UserAgent      string `yaml:"userAgent" env:"DOCWATCH_USER_AGENT"`
	MaxBodyBytes   int64  `yaml:"maxBodyBytes"`
}

var Cfg Config

var (
	ErrMissingToken  = errors.New("telegram.botToken 未配置")
	ErrMissingChatID = errors.New("telegram.chatID 未配置")
)

// Load 读取配置文件并应用环境变量覆盖，结果写入全局 Cfg。
func Load(path string) error {
	c, err := Read(path)
	if err != nil {
		return err
	}
	Cfg = c
	return nil
}

// Read 读取 yaml（文件不存在时允许仅靠环境变量），再用环境变量覆盖并补默认值。
func Read(path string) (Config, error) {
	var c Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Config{}, fmt.Errorf("解析配置失败: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
	}

	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("解析环境变量失败: %w", err)
	}
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = DefaultPollInterval
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "json"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = DefaultDataFile
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = DefaultFetchTimeout
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = DefaultUserAgent
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		c.Fetch.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.DiffLimit <= 0 {
		c.DiffLimit = DefaultDiffLimit
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate 检查启动必需项，缺失时进程应直接退出。
func (c Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return ErrMissingToken
	}
	if c.Telegram.ChatID == 0 {
		return ErrMissingChatID
	}
	switch c.Storage.Driver {
	case "json", "sqlite":
	default:
		return fmt.Errorf("不支持的存储类型: %s", c.Storage.Driver)
	}
	return nil
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}
