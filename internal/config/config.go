package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPath          = "/etc/omhome/config.yaml"
	DefaultGRPCAddr      = "0.0.0.0:9000"
	DefaultHTTPAddr      = "0.0.0.0:8080"
	DefaultScanInterval  = 28 * time.Second
	DefaultCloudBaseURL  = "https://api.openmotics.com/api/v1.1"
	DefaultCloudTokenURL = "https://api.openmotics.com/api/v1/authentication/oauth2/token"
	DefaultLocalPort     = 443
	DefaultTopicPrefix   = "omhome"
	DefaultBlobPrefix    = "omhome/diagnostics"
	DefaultRatePerMinute = 60
	DefaultRatePerDay    = 20000
)

// Mode selects which gateway client is built.
type Mode string

const (
	ModeCloud Mode = "cloud"
	ModeLocal Mode = "local"
)

type Config struct {
	Core        CoreConfig        `yaml:"core"`
	Log         LogConfig         `yaml:"log"`
	OpenMotics  OpenMoticsConfig  `yaml:"openmotics"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Rate        RateConfig        `yaml:"rate"`
}

type CoreConfig struct {
	HTTPAddr     string        `yaml:"http_addr"`
	GRPCAddr     string        `yaml:"grpc_addr"`
	ScanInterval time.Duration `yaml:"scan_interval"`

	// DashboardsDir receives the plugin dashboards for Grafana file
	// provisioning. Empty disables the export.
	DashboardsDir string `yaml:"dashboards_dir,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// OpenMoticsConfig holds exactly one of Cloud or Local.
type OpenMoticsConfig struct {
	Cloud *CloudConfig `yaml:"cloud,omitempty"`
	Local *LocalConfig `yaml:"local,omitempty"`
}

type CloudConfig struct {
	ClientID         string `yaml:"client_id"`
	ClientSecret     string `yaml:"client_secret"`
	ClientSecretFile string `yaml:"client_secret_file,omitempty"`
	InstallationID   int    `yaml:"installation_id,omitempty"`
	BaseURL          string `yaml:"base_url,omitempty"`
	TokenURL         string `yaml:"token_url,omitempty"`
}

type LocalConfig struct {
	IPAddress string `yaml:"ip_address"`
	Name      string `yaml:"name"`
	Password  string `yaml:"password"`
	Port      int    `yaml:"port"`
	VerifySSL bool   `yaml:"verify_ssl"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

type DiagnosticsConfig struct {
	Dir      string     `yaml:"dir,omitempty"`
	Schedule string     `yaml:"schedule,omitempty"`
	Blob     BlobConfig `yaml:"blob"`

	// Keep bounds the timestamped reports per store; 0 keeps all of them.
	Keep int `yaml:"keep,omitempty"`
}

type BlobConfig struct {
	Endpoint      string `yaml:"endpoint,omitempty"`
	Bucket        string `yaml:"bucket,omitempty"`
	Prefix        string `yaml:"prefix,omitempty"`
	AccessKeyFile string `yaml:"access_key_file,omitempty"`
	SecretKeyFile string `yaml:"secret_key_file,omitempty"`
	Region        string `yaml:"region,omitempty"`
}

// Enabled reports whether uploads to object storage are configured.
func (b BlobConfig) Enabled() bool {
	return b.Endpoint != "" && b.Bucket != ""
}

type RateConfig struct {
	PerMinute int `yaml:"per_minute"`
	PerDay    int `yaml:"per_day"`
}

// Load parses the YAML config file, applies defaults and env overrides, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	if err := resolveSecretFiles(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Core.GRPCAddr == "" {
		cfg.Core.GRPCAddr = DefaultGRPCAddr
	}
	if cfg.Core.HTTPAddr == "" {
		cfg.Core.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.Core.ScanInterval == 0 {
		cfg.Core.ScanInterval = DefaultScanInterval
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if c := cfg.OpenMotics.Cloud; c != nil {
		if c.BaseURL == "" {
			c.BaseURL = DefaultCloudBaseURL
		}
		if c.TokenURL == "" {
			c.TokenURL = DefaultCloudTokenURL
		}
	}
	if l := cfg.OpenMotics.Local; l != nil && l.Port == 0 {
		l.Port = DefaultLocalPort
	}

	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "omhome"
	}
	if cfg.Diagnostics.Blob.Prefix == "" {
		cfg.Diagnostics.Blob.Prefix = DefaultBlobPrefix
	}
	if cfg.Rate.PerMinute == 0 {
		cfg.Rate.PerMinute = DefaultRatePerMinute
	}
	if cfg.Rate.PerDay == 0 {
		cfg.Rate.PerDay = DefaultRatePerDay
	}
}

// applyEnvOverrides reads OMHOME_<SECTION>_<KEY> variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OMHOME_CORE_HTTP_ADDR"); v != "" {
		cfg.Core.HTTPAddr = v
	}
	if v := os.Getenv("OMHOME_CORE_GRPC_ADDR"); v != "" {
		cfg.Core.GRPCAddr = v
	}
	if v := os.Getenv("OMHOME_CORE_SCAN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Core.ScanInterval = d
		}
	}
	if v := os.Getenv("OMHOME_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	if v := os.Getenv("OMHOME_CLOUD_CLIENT_ID"); v != "" {
		cloud(cfg).ClientID = v
	}
	if v := os.Getenv("OMHOME_CLOUD_CLIENT_SECRET"); v != "" {
		cloud(cfg).ClientSecret = v
	}
	if v := os.Getenv("OMHOME_CLOUD_INSTALLATION_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			cloud(cfg).InstallationID = id
		}
	}
	if v := os.Getenv("OMHOME_LOCAL_IP_ADDRESS"); v != "" {
		local(cfg).IPAddress = v
	}
	if v := os.Getenv("OMHOME_LOCAL_NAME"); v != "" {
		local(cfg).Name = v
	}
	if v := os.Getenv("OMHOME_LOCAL_PASSWORD"); v != "" {
		local(cfg).Password = v
	}

	if v := os.Getenv("OMHOME_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("OMHOME_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("OMHOME_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
}

func cloud(cfg *Config) *CloudConfig {
	if cfg.OpenMotics.Cloud == nil {
		cfg.OpenMotics.Cloud = &CloudConfig{}
	}
	return cfg.OpenMotics.Cloud
}

func local(cfg *Config) *LocalConfig {
	if cfg.OpenMotics.Local == nil {
		cfg.OpenMotics.Local = &LocalConfig{}
	}
	return cfg.OpenMotics.Local
}

func resolveSecretFiles(cfg *Config) error {
	c := cfg.OpenMotics.Cloud
	if c == nil || c.ClientSecret != "" || c.ClientSecretFile == "" {
		return nil
	}
	secret, err := ReadSecretFile(c.ClientSecretFile)
	if err != nil {
		return fmt.Errorf("openmotics.cloud.client_secret_file: %w", err)
	}
	c.ClientSecret = secret
	return nil
}

// ReadSecretFile returns the trimmed contents of a secret file.
func ReadSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("%s is empty", path)
	}
	return value, nil
}

// Validate enforces required invariants beyond YAML typing.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if cfg.Core.GRPCAddr == "" {
		return fmt.Errorf("core.grpc_addr is required")
	}
	if cfg.Core.HTTPAddr == "" {
		return fmt.Errorf("core.http_addr is required")
	}
	if cfg.Core.ScanInterval < time.Second {
		return fmt.Errorf("core.scan_interval must be at least 1s")
	}

	cloud, local := cfg.OpenMotics.Cloud, cfg.OpenMotics.Local
	switch {
	case cloud != nil && local != nil:
		return fmt.Errorf("openmotics: set either cloud or local, not both")
	case cloud == nil && local == nil:
		return fmt.Errorf("openmotics: cloud or local config is required")
	case cloud != nil:
		if cloud.ClientID == "" {
			return fmt.Errorf("openmotics.cloud.client_id is required")
		}
		if cloud.ClientSecret == "" {
			return fmt.Errorf("openmotics.cloud.client_secret is required")
		}
		if cloud.InstallationID < 0 {
			return fmt.Errorf("openmotics.cloud.installation_id must be positive")
		}
	default:
		if local.IPAddress == "" {
			return fmt.Errorf("openmotics.local.ip_address is required")
		}
		if local.Name == "" {
			return fmt.Errorf("openmotics.local.name is required")
		}
		if local.Password == "" {
			return fmt.Errorf("openmotics.local.password is required")
		}
		if local.Port < 1 || local.Port > 65535 {
			return fmt.Errorf("openmotics.local.port must be between 1 and 65535")
		}
	}

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1, or 2")
		}
	}

	if cfg.Diagnostics.Keep < 0 {
		return fmt.Errorf("diagnostics.keep must not be negative")
	}
	blob := cfg.Diagnostics.Blob
	if blob.Endpoint != "" || blob.Bucket != "" {
		if blob.Endpoint == "" {
			return fmt.Errorf("diagnostics.blob.endpoint is required")
		}
		if blob.Bucket == "" {
			return fmt.Errorf("diagnostics.blob.bucket is required")
		}
		if blob.AccessKeyFile == "" {
			return fmt.Errorf("diagnostics.blob.access_key_file is required")
		}
		if blob.SecretKeyFile == "" {
			return fmt.Errorf("diagnostics.blob.secret_key_file is required")
		}
	}

	if cfg.Rate.PerMinute < 0 || cfg.Rate.PerDay < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	return nil
}

// Mode reports which gateway client the config selects.
func (c *Config) Mode() Mode {
	if c.OpenMotics.Local != nil {
		return ModeLocal
	}
	return ModeCloud
}

const redacted = "**REDACTED**"

// Redacted returns a copy with credentials masked, for diagnostics output.
func (c *Config) Redacted() *Config {
	out := *c
	if c.OpenMotics.Cloud != nil {
		cloud := *c.OpenMotics.Cloud
		cloud.ClientID = mask(cloud.ClientID)
		cloud.ClientSecret = mask(cloud.ClientSecret)
		out.OpenMotics.Cloud = &cloud
	}
	if c.OpenMotics.Local != nil {
		local := *c.OpenMotics.Local
		local.Name = mask(local.Name)
		local.Password = mask(local.Password)
		out.OpenMotics.Local = &local
	}
	out.MQTT.Username = mask(out.MQTT.Username)
	out.MQTT.Password = mask(out.MQTT.Password)
	return &out
}

func mask(value string) string {
	if value == "" {
		return ""
	}
	return redacted
}
