package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/IT-Nick/gatekeeper/internal/domain/model"
	"gopkg.in/yaml.v3"
)

// Режимы получения обновлений Telegram
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

type Config struct {
	Server      Server      `yaml:"server"`
	TelegramBot TelegramBot `yaml:"telegram_bot"`
	Database    Database    `yaml:"database"`
	Redis       Redis       `yaml:"redis"`
	LLM         LLM         `yaml:"llm"`
	AMQP        AMQP        `yaml:"amqp"`
	Log         Log         `yaml:"log"`
	Exams       Exams       `yaml:"exams"`
	// ManagedChats чаты, в которых новые участники сдают экзамен.
	// Пустой список означает все чаты, где бот администратор.
	ManagedChats []int64 `yaml:"managed_chats"`
	// SweepInterval период проверки истекших сессий
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type Server struct {
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	AdminToken string `yaml:"admin_token"`
}

// Addr адрес HTTP сервера
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

type TelegramBot struct {
	Token        string        `yaml:"token"`
	Mode         string        `yaml:"mode"`
	WebhookURL   string        `yaml:"webhook_url"`
	ListenAddr   string        `yaml:"listen_addr"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`
	ReviewChatID int64         `yaml:"review_chat_id"`
	Language     string        `yaml:"language"`
}

type Database struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN строка подключения к PostgreSQL
func (d Database) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	if d.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(d.SSLMode)
	}
	return u.String()
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled сообщает, настроен ли Redis. Без него очередь таймаутов хранится в памяти.
func (r Redis) Enabled() bool {
	return r.Addr != ""
}

type LLM struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type AMQP struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Exams struct {
	Default *model.ExamConfig           `yaml:"default"`
	Chats   map[int64]*model.ExamConfig `yaml:"chats"`
}

// LoadConfig читает YAML файл конфигурации
func LoadConfig(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	defer func(f *os.File) {
		err := f.Close()
		if err != nil {
			slog.Warn("failed to close config file", "file", filename, "error", err)
		}
	}(f)

	config := &Config{}
	if err := yaml.NewDecoder(f).Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", filename, err)
	}
	config.applyDefaults()

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.TelegramBot.Mode == "" {
		c.TelegramBot.Mode = ModePolling
	}
	if c.TelegramBot.PollTimeout == 0 {
		c.TelegramBot.PollTimeout = 10 * time.Second
	}
	if c.TelegramBot.Language == "" {
		c.TelegramBot.Language = "ru"
	}
	if c.Database.Port == "" {
		c.Database.Port = "5432"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 20 * time.Second
	}
	if c.AMQP.Exchange == "" {
		c.AMQP.Exchange = "gatekeeper.events"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = 5 * time.Second
	}
}

// Validate проверяет настройки, без которых бот не запустится
func (c *Config) Validate() error {
	var errs []error
	if c.TelegramBot.Token == "" {
		errs = append(errs, errors.New("telegram_bot.token is required"))
	}
	switch c.TelegramBot.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.TelegramBot.WebhookURL == "" || c.TelegramBot.ListenAddr == "" {
			errs = append(errs, errors.New("webhook mode requires telegram_bot.webhook_url and telegram_bot.listen_addr"))
		}
		if c.TelegramBot.ListenAddr != "" && c.TelegramBot.ListenAddr == c.Server.Addr() {
			errs = append(errs, errors.New("telegram_bot.listen_addr must differ from the admin HTTP address"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown telegram_bot.mode %q", c.TelegramBot.Mode))
	}
	if c.Exams.Default != nil {
		if err := c.Exams.Default.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("exams.default: %w", err))
		}
	}
	for chatID, exam := range c.Exams.Chats {
		if err := exam.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("exams.chats[%d]: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}
