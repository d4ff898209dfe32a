// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	AMQPConnectionString    string `yaml:"amqp_connection_string" env:"AMQP_CONNECTION_STRING"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Stripe                  `yaml:"stripe"`
	TierPrices              `yaml:"tier_prices"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"5s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"720h"`
}

// Stripe структура с ключами платёжного провайдера.
// Секреты передаются только через окружение.
type Stripe struct {
	SecretKey      string `yaml:"-" env:"STRIPE_SECRET_KEY"`
	WebhookSecret  string `yaml:"-" env:"STRIPE_WEBHOOK_SECRET"`
	PublishableKey string `yaml:"-" env:"STRIPE_PUBLISHABLE_KEY"`
}

// TierPrices сопоставляет платные тарифы внешним идентификаторам цен провайдера.
// Бесплатный тариф basic внешней цены не имеет.
type TierPrices struct {
	ProfessionalPriceRef string `yaml:"professional_price_ref" env:"STRIPE_PRICE_ID_PRO"`
	EnterprisePriceRef   string `yaml:"enterprise_price_ref" env:"STRIPE_PRICE_ID_ENTERPRISE"`
}

// MustLoad функция для загрузки конфига, возвращает конфиг, прочитанный из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
