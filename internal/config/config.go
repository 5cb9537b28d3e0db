// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"
	// Встроенная база часовых поясов для контейнеров без tzdata.
	_ "time/tzdata"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	SMTP                    `yaml:"smtp"`
	Scheduler               `yaml:"scheduler"`
	Sender                  `yaml:"sender"`
	Dedup                   `yaml:"dedup"`
	HTTPServer              `yaml:"http_server"`
}

// HTTPServer структура для настройки административного сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimit   float64       `yaml:"rate_limit" env-default:"1"`
	RateBurst   int           `yaml:"rate_burst" env-default:"3"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// RabbitMQ структура для настройки подключения к брокеру
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL" env-required:"true"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// SMTP структура для настройки почтового транспорта
type SMTP struct {
	SMTPHost        string        `yaml:"host" env:"SMTP_HOST"`
	SMTPPort        string        `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser        string        `yaml:"user" env:"SMTP_USER"`
	SMTPPass        string        `yaml:"password" env:"SMTP_PASSWORD"`
	SMTPSendTimeout time.Duration `yaml:"send_timeout" env-default:"15s"`
}

// Scheduler расписания заданий в формате cron и таймаут одного прогона.
// Порядок по умолчанию: D_7 раньше D_DAY, затем уведомления о платежах, перенос дат последним.
type Scheduler struct {
	Timezone     string        `yaml:"timezone" env-default:"UTC"`
	CronD7       string        `yaml:"cron_d7" env-default:"0 0 * * *"`
	CronD3       string        `yaml:"cron_d3" env-default:"5 0 * * *"`
	CronD1       string        `yaml:"cron_d1" env-default:"10 0 * * *"`
	CronDDay     string        `yaml:"cron_dday" env-default:"15 0 * * *"`
	CronRollover string        `yaml:"cron_rollover" env-default:"30 0 * * *"`
	CronNotices  string        `yaml:"cron_notices" env-default:"20 0 * * *"`
	JobTimeout   time.Duration `yaml:"job_timeout" env-default:"5m"`
}

// Sender настройки потребителя очереди
type Sender struct {
	Workers        int           `yaml:"workers" env-default:"4"`
	HandlerTimeout time.Duration `yaml:"handler_timeout" env-default:"30s"`
	RatePerSecond  float64       `yaml:"rate_per_second" env-default:"5"`
	Burst          int           `yaml:"burst" env-default:"5"`
}

// Dedup настройки быстрого уровня дедупликации
type Dedup struct {
	SentTTL  time.Duration `yaml:"sent_ttl" env-default:"48h"`
	ClaimTTL time.Duration `yaml:"claim_ttl" env-default:"2m"`
}

// MustLoad функция для загрузки конфига из файла по пути CONFIG_PATH
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

// Location часовой пояс, в котором считается "сегодня" для заданий.
func (s Scheduler) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config.Scheduler.Location: %w", err)
	}
	return loc, nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"  MaxRetries: %d\n"+
			"  DialTimeout: %s\n"+
			"  Timeout: %s\n"+
			"RabbitMQ:\n"+
			"  MaxRetries: %d\n"+
			"  RetryDelay: %s\n"+
			"SMTP:\n"+
			"  Host: %s\n"+
			"  Port: %s\n"+
			"  User: %s\n"+
			"Scheduler:\n"+
			"  Timezone: %s\n"+
			"  JobTimeout: %s\n"+
			"Sender:\n"+
			"  Workers: %d\n"+
			"Dedup:\n"+
			"  SentTTL: %s\n"+
			"  ClaimTTL: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n",
		c.Env,
		c.AddressRedis,
		c.DB,
		c.RedisConnection.MaxRetries,
		c.DialTimeout,
		c.TimeoutRedis,
		c.RabbitMQMaxRetries,
		c.RabbitMQRetryDelay,
		c.SMTPHost,
		c.SMTPPort,
		c.SMTPUser,
		c.Timezone,
		c.JobTimeout,
		c.Workers,
		c.SentTTL,
		c.ClaimTTL,
		c.AddressHTTP,
	)
}
