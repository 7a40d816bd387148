package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/unclebandit/anniversary-reminder/internal/calendar"
	"github.com/unclebandit/anniversary-reminder/internal/db"
	"github.com/unclebandit/anniversary-reminder/internal/mailer"
	"github.com/unclebandit/anniversary-reminder/internal/model"
	"github.com/unclebandit/anniversary-reminder/internal/scheduler"
)

const (
	DefaultPort           = 8080
	DefaultMaxCatchUpDays = 400
	DefaultSweepQueue     = "reminder_sweeps"
	DefaultSubject        = "Anniversario di {deceased_full_name}"
	DefaultBody           = "<p>Gentile {first_name},</p><p>il {next_occurrence_date} ricorre l'anniversario di {deceased_full_name}. Lo ricordiamo insieme a voi.</p>"
)

// Config is the application configuration. Values come from an optional
// YAML file, then the environment, then defaults for whatever is still empty.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Queue    QueueConfig    `yaml:"queue"`
	Redis    RedisConfig    `yaml:"redis"`
	Mail     MailConfig     `yaml:"mail"`
	Template TemplateConfig `yaml:"template"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	AdminSecret string   `yaml:"admin_secret"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Name     string `yaml:"name"`
}

// DSN prefers the full URL over the split settings.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return db.DSN(c.User, c.Password, c.Host, c.Port, c.Name)
}

type ScheduleConfig struct {
	Timezone       string `yaml:"timezone"`
	MaxCatchUpDays int    `yaml:"max_catchup_days"`
	SweepCron      string `yaml:"sweep_cron"`
}

// Location resolves the fixed calendar zone.
func (c ScheduleConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

type QueueConfig struct {
	AMQPURL    string `yaml:"amqp_url"`
	SweepQueue string `yaml:"sweep_queue"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type MailConfig struct {
	Provider string     `yaml:"provider"`
	From     string     `yaml:"from"`
	ReplyTo  string     `yaml:"reply_to"`
	SMTP     SMTPConfig `yaml:"smtp"`
	SES      SESConfig  `yaml:"ses"`
	SendGrid struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"sendgrid"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type SESConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Settings converts the mail section for mailer.New.
func (c MailConfig) Settings() mailer.Settings {
	from := c.From
	if from == "" {
		from = c.SMTP.User
	}
	return mailer.Settings{
		Provider:       c.Provider,
		From:           from,
		ReplyTo:        c.ReplyTo,
		SMTPHost:       c.SMTP.Host,
		SMTPPort:       c.SMTP.Port,
		SMTPUser:       c.SMTP.User,
		SMTPPass:       c.SMTP.Password,
		SESRegion:      c.SES.Region,
		SESAccessKey:   c.SES.AccessKey,
		SESSecretKey:   c.SES.SecretKey,
		SendGridAPIKey: c.SendGrid.APIKey,
	}
}

type TemplateConfig struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

func (c TemplateConfig) Template() model.Template {
	return model.Template{Subject: c.Subject, Body: c.Body}
}

// Load reads the YAML file at path and applies defaults. An empty path
// yields a config built from defaults only.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads .env when present, then the file named by CONFIG_FILE,
// then applies environment overrides.
func LoadFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	cfg, err := Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.AdminSecret, "ADMIN_SECRET")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}

	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.Name, "DB_NAME")

	setString(&c.Schedule.Timezone, "TIMEZONE")
	setString(&c.Schedule.SweepCron, "SWEEP_CRON")

	setString(&c.Queue.AMQPURL, "AMQP_URL")
	setString(&c.Queue.SweepQueue, "SWEEP_QUEUE")
	setString(&c.Redis.URL, "REDIS_URL")

	setString(&c.Mail.Provider, "MAIL_PROVIDER")
	setString(&c.Mail.From, "SMTP_FROM")
	setString(&c.Mail.ReplyTo, "SMTP_REPLY_TO")
	setString(&c.Mail.SMTP.Host, "SMTP_HOST")
	setString(&c.Mail.SMTP.User, "SMTP_USER")
	setString(&c.Mail.SMTP.Password, "SMTP_PASS")
	setString(&c.Mail.SES.Region, "AWS_SES_REGION")
	setString(&c.Mail.SES.AccessKey, "AWS_SES_ACCESS_KEY")
	setString(&c.Mail.SES.SecretKey, "AWS_SES_SECRET_KEY")
	setString(&c.Mail.SendGrid.APIKey, "SENDGRID_API_KEY")

	setString(&c.Template.Subject, "DEFAULT_SUBJECT")
	setString(&c.Template.Body, "DEFAULT_BODY")

	var errs []error
	errs = append(errs, setInt(&c.Server.Port, "PORT"))
	errs = append(errs, setInt(&c.Schedule.MaxCatchUpDays, "MAX_CATCHUP_DAYS"))
	errs = append(errs, setInt(&c.Mail.SMTP.Port, "SMTP_PORT"))
	return errors.Join(errs...)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = calendar.DefaultTimezone
	}
	if c.Schedule.MaxCatchUpDays == 0 {
		c.Schedule.MaxCatchUpDays = DefaultMaxCatchUpDays
	}
	if c.Schedule.SweepCron == "" {
		c.Schedule.SweepCron = scheduler.DefaultSweepSpec
	}
	if c.Queue.SweepQueue == "" {
		c.Queue.SweepQueue = DefaultSweepQueue
	}
	if c.Mail.Provider == "" {
		c.Mail.Provider = "smtp"
	}
	if c.Mail.SMTP.Host == "" {
		c.Mail.SMTP.Host = "smtp.gmail.com"
	}
	if c.Mail.SMTP.Port == 0 {
		c.Mail.SMTP.Port = 587
	}
	if c.Mail.SES.Region == "" {
		c.Mail.SES.Region = "us-east-1"
	}
	if c.Template.Subject == "" {
		c.Template.Subject = DefaultSubject
	}
	if c.Template.Body == "" {
		c.Template.Body = DefaultBody
	}
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Schedule.Location(); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Schedule.Timezone, err))
	}
	if c.Schedule.MaxCatchUpDays < 1 {
		errs = append(errs, fmt.Errorf("max_catchup_days must be >= 1, got %d", c.Schedule.MaxCatchUpDays))
	}
	if err := scheduler.ValidateSpec(c.Schedule.SweepCron); err != nil {
		errs = append(errs, err)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Server.Port))
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
