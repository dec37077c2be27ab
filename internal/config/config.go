package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

const (
	JoinExact      = "exact"
	JoinNormalized = "normalized"
)

// Config holds the job configuration. It is built once and handed to the
// session; credentials never leave it.
type Config struct {
	AppName  string
	LogLevel string

	InputRoot  string
	OutputRoot string

	Engine  EngineConfig
	Join    JoinConfig
	AWS     AWSConfig
	Metrics MetricsConfig
}

type EngineConfig struct {
	Workers  int
	TempDir  string
	Timezone string
}

type JoinConfig struct {
	Strategy string
}

type AWSConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string
	PathStyle       bool
	CredentialsFile string
}

// HasStaticCredentials reports whether both keys are set.
func (a AWSConfig) HasStaticCredentials() bool {
	return a.AccessKeyID != "" && a.SecretAccessKey != ""
}

type MetricsConfig struct {
	PushgatewayURL string
	Job            string
}

// Load reads .env (optional), SPARKIFY_* environment variables and the
// credentials file.
func Load() (Config, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (Config, error) {
	v.SetEnvPrefix("SPARKIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		AppName:    v.GetString("app.name"),
		LogLevel:   v.GetString("log.level"),
		InputRoot:  strings.TrimSpace(v.GetString("input.root")),
		OutputRoot: strings.TrimSpace(v.GetString("output.root")),
		Engine: EngineConfig{
			Workers:  v.GetInt("engine.workers"),
			TempDir:  v.GetString("engine.temp_dir"),
			Timezone: v.GetString("engine.timezone"),
		},
		Join: JoinConfig{
			Strategy: strings.ToLower(strings.TrimSpace(v.GetString("join.strategy"))),
		},
		AWS: AWSConfig{
			Region:          v.GetString("aws.region"),
			Endpoint:        strings.TrimSpace(v.GetString("aws.endpoint")),
			PathStyle:       v.GetBool("aws.path_style"),
			CredentialsFile: v.GetString("aws.credentials_file"),
		},
		Metrics: MetricsConfig{
			PushgatewayURL: strings.TrimSpace(v.GetString("metrics.pushgateway_url")),
			Job:            v.GetString("metrics.job"),
		},
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = cfg.AppName
	}

	if err := loadCredentials(cfg.AWS.CredentialsFile, &cfg.AWS); err != nil {
		return Config{}, err
	}
	if id := strings.TrimSpace(v.GetString("aws.access_key_id")); id != "" {
		cfg.AWS.AccessKeyID = id
	}
	if secret := strings.TrimSpace(v.GetString("aws.secret_access_key")); secret != "" {
		cfg.AWS.SecretAccessKey = secret
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "sparkify-etl")
	v.SetDefault("log.level", "info")
	v.SetDefault("input.root", "s3a://udacity-dend/")
	v.SetDefault("output.root", "s3a://s3-bucket-udacity/data/")
	v.SetDefault("engine.workers", runtime.NumCPU()*2)
	v.SetDefault("engine.temp_dir", filepath.Join(os.TempDir(), "sparkify-etl"))
	v.SetDefault("engine.timezone", "UTC")
	v.SetDefault("join.strategy", JoinExact)
	v.SetDefault("aws.region", "us-west-2")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("aws.path_style", false)
	v.SetDefault("aws.credentials_file", "dl.cfg")
	v.SetDefault("aws.access_key_id", "")
	v.SetDefault("aws.secret_access_key", "")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "")
}

// loadCredentials reads the [AWS] section of an INI credentials file.
// A missing file leaves the keys empty so the default AWS chain applies.
func loadCredentials(path string, out *AWSConfig) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("read credentials file %s: %w", path, err)
	}
	section := file.Section("AWS")
	out.AccessKeyID = unquote(section.Key("AWS_ACCESS_KEY_ID").String())
	out.SecretAccessKey = unquote(section.Key("AWS_SECRET_ACCESS_KEY").String())
	return nil
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

// Validate checks the values the job cannot run without.
func (c Config) Validate() error {
	if c.InputRoot == "" {
		return errors.New("input.root is required")
	}
	if c.OutputRoot == "" {
		return errors.New("output.root is required")
	}
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("engine.workers must be positive, got %d", c.Engine.Workers)
	}
	if _, err := time.LoadLocation(c.Engine.Timezone); err != nil {
		return fmt.Errorf("invalid engine.timezone %q: %w", c.Engine.Timezone, err)
	}
	switch c.Join.Strategy {
	case JoinExact, JoinNormalized:
	default:
		return fmt.Errorf("unknown join.strategy %q", c.Join.Strategy)
	}
	return nil
}
