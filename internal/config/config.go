package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/chatsync/internal/logger"
	"github.com/chatsync/internal/model"
	"github.com/chatsync/internal/protocol"
)

// loadEnv читает .env только вне production (в контейнере/prod конфиг только из env).
// Ищет файл в cwd и до 4 родительских каталогов; уже заданные переменные не перезаписываются.
func loadEnv() {
	if os.Getenv("APP_ENV") == "production" {
		return
	}
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				logger.Errorf("config: .env %s: %v", path, err)
			}
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// StoreConfig — key-value хранилище (Redis): адрес и токен доступа.
type StoreConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// BusConfig — шина событий. URL пустой — используется тот же Redis, что и для хранилища;
// Token пустой — токен хранилища. Namespace — префикс всех каналов (разделяет окружения на одном брокере).
type BusConfig struct {
	URL       string `yaml:"url"`
	Token     string `yaml:"token"`
	Namespace string `yaml:"namespace"`
}

// Config содержит настройки приложения.
// Приоритет: переменные окружения > YAML-файл > значения по умолчанию.
type Config struct {
	// Сервер
	ServerAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	Store StoreConfig
	Bus   BusConfig

	// Сообщения
	MaxMessageLength int

	// WebSocket
	MaxWSConnections int
	WSSendBufferSize int
	WSWriteTimeout   time.Duration
	WSPongTimeout    time.Duration
	WSMaxMessageSize int64

	// CORS
	CORSAllowedOrigins string

	// Логирование
	LogLevel string

	// Лимиты запросов в минуту
	RateLimitPerIP   int
	RateLimitPerUser int

	// PushServiceURL — URL микросервиса пуш-уведомлений. Пустой — пуши отключены.
	PushServiceURL string
	// PushVAPIDPublicKey — публичный VAPID-ключ для подписки в браузере (отдаётся фронту).
	PushVAPIDPublicKey string

	// Push-сервис: адрес, VAPID-ключи (пустые — берутся из VAPIDKeysFile или генерируются), subscriber для VAPID.
	PushAddr            string
	PushVAPIDPrivateKey string
	VAPIDKeysFile       string
	PushSubscriber      string

	// InternalSecret — заголовок X-Internal-Secret для вызовов api → push.
	InternalSecret string
}

// yamlConfig — структура файла config/api.yaml.
type yamlConfig struct {
	ServerAddr         string      `yaml:"server_addr"`
	ReadTimeout        int         `yaml:"read_timeout"`
	WriteTimeout       int         `yaml:"write_timeout"`
	IdleTimeout        int         `yaml:"idle_timeout"`
	Store              StoreConfig `yaml:"store"`
	Bus                BusConfig   `yaml:"bus"`
	MaxMessageLength   int         `yaml:"max_message_length"`
	MaxWSConnections   int         `yaml:"max_ws_connections"`
	WSSendBufferSize   int         `yaml:"ws_send_buffer_size"`
	WSWriteTimeout     int         `yaml:"ws_write_timeout"`
	WSPongTimeout      int         `yaml:"ws_pong_timeout"`
	WSMaxMessageSize   int         `yaml:"ws_max_message_size"`
	CORSAllowedOrigins string      `yaml:"cors_allowed_origins"`
	LogLevel           string      `yaml:"log_level"`
	RateLimitPerIP     int         `yaml:"rate_limit_per_ip"`
	RateLimitPerUser   int         `yaml:"rate_limit_per_user"`
	PushServiceURL     string      `yaml:"push_service_url"`
	PushAddr           string      `yaml:"push_addr"`
	PushSubscriber     string      `yaml:"push_subscriber"`
	VAPIDKeysFile      string      `yaml:"vapid_keys_file"`
}

func defaults() yamlConfig {
	return yamlConfig{
		ServerAddr:         ":8080",
		ReadTimeout:        15,
		WriteTimeout:       15,
		IdleTimeout:        60,
		Store:              StoreConfig{URL: "redis://localhost:6379"},
		Bus:                BusConfig{Namespace: protocol.DefaultNamespace},
		MaxMessageLength:   model.DefaultMaxMessageLength,
		MaxWSConnections:   10000,
		WSSendBufferSize:   256,
		WSWriteTimeout:     10,
		WSPongTimeout:      60,
		WSMaxMessageSize:   4096,
		CORSAllowedOrigins: "*",
		LogLevel:           "info",
		RateLimitPerIP:     200,
		RateLimitPerUser:   100,
		PushAddr:           ":8082",
		PushSubscriber:     "chatsync-push",
		VAPIDKeysFile:      "config/vapid.json",
	}
}

// Load загружает конфигурацию.
// Сначала подгружаются переменные из .env (если есть), затем YAML и env (env имеет приоритет).
func Load() *Config {
	loadEnv()
	yc := defaults()

	// CONFIG_PATH → config/api.yaml
	for _, path := range []string{os.Getenv("CONFIG_PATH"), "config/api.yaml"} {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &yc); err != nil {
			logger.Errorf("config: ошибка парсинга %s: %v (используются значения по умолчанию)", path, err)
			yc = defaults()
		} else {
			logger.Infof("config: загружен %s", path)
		}
		break
	}

	cfg := &Config{
		ServerAddr:   envStr("SERVER_ADDR", yc.ServerAddr),
		ReadTimeout:  time.Duration(envInt("READ_TIMEOUT", yc.ReadTimeout)) * time.Second,
		WriteTimeout: time.Duration(envInt("WRITE_TIMEOUT", yc.WriteTimeout)) * time.Second,
		IdleTimeout:  time.Duration(envInt("IDLE_TIMEOUT", yc.IdleTimeout)) * time.Second,
		Store: StoreConfig{
			URL:   envStr("STORE_URL", yc.Store.URL),
			Token: envStr("STORE_TOKEN", yc.Store.Token),
		},
		Bus: BusConfig{
			URL:       envStr("BUS_URL", yc.Bus.URL),
			Token:     envStr("BUS_TOKEN", yc.Bus.Token),
			Namespace: envStr("BUS_NAMESPACE", yc.Bus.Namespace),
		},
		MaxMessageLength:   envInt("MESSAGE_MAX_LENGTH", yc.MaxMessageLength),
		MaxWSConnections:   envInt("MAX_WS_CONNECTIONS", yc.MaxWSConnections),
		WSSendBufferSize:   envInt("WS_SEND_BUFFER_SIZE", yc.WSSendBufferSize),
		WSWriteTimeout:     time.Duration(envInt("WS_WRITE_TIMEOUT", yc.WSWriteTimeout)) * time.Second,
		WSPongTimeout:      time.Duration(envInt("WS_PONG_TIMEOUT", yc.WSPongTimeout)) * time.Second,
		WSMaxMessageSize:   int64(envInt("WS_MAX_MESSAGE_SIZE", yc.WSMaxMessageSize)),
		CORSAllowedOrigins: envStr("CORS_ALLOWED_ORIGINS", yc.CORSAllowedOrigins),
		LogLevel:           envStr("LOG_LEVEL", yc.LogLevel),
		RateLimitPerIP:     envInt("RATE_LIMIT_PER_IP", yc.RateLimitPerIP),
		RateLimitPerUser:   envInt("RATE_LIMIT_PER_USER", yc.RateLimitPerUser),
		PushServiceURL:     envStr("PUSH_SERVICE_URL", yc.PushServiceURL),
		PushVAPIDPublicKey: envStr("PUSH_VAPID_PUBLIC_KEY", ""),

		PushAddr:            envStr("PUSH_ADDR", yc.PushAddr),
		PushVAPIDPrivateKey: envStr("PUSH_VAPID_PRIVATE_KEY", ""),
		VAPIDKeysFile:       envStr("VAPID_KEYS_FILE", yc.VAPIDKeysFile),
		PushSubscriber:      envStr("PUSH_SUBSCRIBER", yc.PushSubscriber),
		InternalSecret:      envStr("INTERNAL_SECRET", ""),
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = model.DefaultMaxMessageLength
	}
	if cfg.Bus.Namespace == "" {
		cfg.Bus.Namespace = protocol.DefaultNamespace
	}

	if os.Getenv("APP_ENV") == "production" {
		if cfg.CORSAllowedOrigins == "" || cfg.CORSAllowedOrigins == "*" {
			logger.Errorf("config: в production задайте CORS_ALLOWED_ORIGINS (явный список origins, не *)")
		}
		if cfg.Store.Token == "" {
			logger.Errorf("config: в production задайте STORE_TOKEN")
		}
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	return cfg
}

// BusURL — адрес брокера событий (по умолчанию совпадает с хранилищем).
func (c *Config) BusURL() string {
	if c.Bus.URL != "" {
		return c.Bus.URL
	}
	return c.Store.URL
}

// BusToken — токен брокера событий (по умолчанию токен хранилища).
func (c *Config) BusToken() string {
	if c.Bus.Token != "" {
		return c.Bus.Token
	}
	return c.Store.Token
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Errorf("config: %s=%q не число, используется %d", key, v, def)
		return def
	}
	return n
}
