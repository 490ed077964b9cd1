// config предоставляет конфигурацию сервера авторизации и клиента портала
// и функции загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/pribylovaa/club-portal/internal/credential"
)

// Config — корневая конфигурация сервера авторизации.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig    `yaml:"http"`
	Auth     AuthConfig    `yaml:"auth"`
	DB       DBConfig      `yaml:"db"`
	Redis    RedisConfig   `yaml:"redis"`
	Limiter  LimiterConfig `yaml:"limiter"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// TimeoutConfig — таймауты сервера.
type TimeoutConfig struct {
	Request time.Duration `yaml:"request" env:"REQUEST_TIMEOUT" env-default:"5s"`
}

// HTTPConfig — сетевые настройки HTTP-сервера.
// API и служебные эндпойнты (/livez, /healthz, /metrics) слушают разные порты.
type HTTPConfig struct {
	Host    string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port    string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	OpsPort string `yaml:"ops_port" env:"HTTP_OPS_PORT" env-default:"8081"`
}

// Addr возвращает адрес API в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// OpsAddr возвращает адрес служебного mux.
func (h HTTPConfig) OpsAddr() string {
	return net.JoinHostPort(h.Host, h.OpsPort)
}

// AuthConfig содержит параметры выпуска и валидации токенов.
type AuthConfig struct {
	AccessSecret    string        `yaml:"access_secret" env:"ACCESS_TOKEN_SECRET" env-required:"true"`
	RefreshSecret   string        `yaml:"refresh_secret" env:"REFRESH_TOKEN_SECRET" env-required:"true"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"1h"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"168h"`
	Issuer          string        `yaml:"issuer" env:"ISSUER" env-default:"club-portal"`
	Audience        []string      `yaml:"audience" env:"AUDIENCE" env-default:"portal-web"`
}

// Credential переводит настройки в конфигурацию кодека.
func (a AuthConfig) Credential() credential.Config {
	return credential.Config{
		AccessSecret:  a.AccessSecret,
		RefreshSecret: a.RefreshSecret,
		AccessTTL:     a.AccessTokenTTL,
		RefreshTTL:    a.RefreshTokenTTL,
		Issuer:        a.Issuer,
		Audience:      a.Audience,
	}
}

// DBConfig — настройки подключения к базе данных.
type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL" env-required:"true"`
}

// RedisConfig — подключение к Redis. Пустой URL отключает ограничитель входа.
type RedisConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
}

// LimiterConfig — бюджет неудачных попыток входа.
type LimiterConfig struct {
	MaxAttempts int           `yaml:"max_attempts" env:"LOGIN_MAX_ATTEMPTS" env-default:"5"`
	Window      time.Duration `yaml:"window" env:"LOGIN_WINDOW" env-default:"15m"`
}

// ClientConfig — конфигурация клиента портала (cmd/portal).
type ClientConfig struct {
	Env        string        `yaml:"env" env:"PORTAL_ENV" env-default:"local"`
	BaseURL    string        `yaml:"base_url" env:"PORTAL_BASE_URL" env-default:"http://localhost:8080"`
	StatePath  string        `yaml:"state_path" env:"PORTAL_STATE_PATH" env-default:".portal/state.json"`
	RoutesPath string        `yaml:"routes_path" env:"PORTAL_ROUTES_PATH"`
	Timeout    time.Duration `yaml:"timeout" env:"PORTAL_TIMEOUT" env-default:"10s"`
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию сервера по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := load(path, "local.yaml", &cfg); err != nil {
		return nil, err
	}

	if cfg.Auth.AccessSecret == cfg.Auth.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}

	return &cfg, nil
}

// LoadClient загружает конфигурацию клиента; файл по умолчанию — ./portal.yaml.
// Все поля имеют значения по умолчанию, поэтому отсутствие файла не ошибка.
func LoadClient(path string) (*ClientConfig, error) {
	var cfg ClientConfig
	if err := load(path, "portal.yaml", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// load читает dst по цепочке приоритетов.
// ВАЖНО: после чтения файла накладываем ENV-переменные поверх значений из YAML.
func load(path, fallback string, dst any) error {
	tryRead := func(p string) error {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, dst); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(dst); err != nil {
			return fmt.Errorf("failed to overlay env: %w", err)
		}

		return nil
	}

	// 1) Явный путь.
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) Файл по умолчанию в рабочей директории.
	if _, err := os.Stat(fallback); err == nil {
		return tryRead(fallback)
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(dst); err != nil {
		return fmt.Errorf("config not found: provide --config, CONFIG_PATH, %s or env vars: %w", fallback, err)
	}

	return nil
}
