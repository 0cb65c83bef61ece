package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	FaceServer FaceServerConfig `yaml:"face_server"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	MinIO      MinIOConfig      `yaml:"minio"`
	Vision     VisionConfig     `yaml:"vision"`
	Auth       AuthConfig       `yaml:"auth"`
	Email      EmailConfig      `yaml:"email"`
	Workday    WorkdayConfig    `yaml:"workday"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type FaceServerConfig struct {
	Port        int `yaml:"port"`
	MaxUploadMB int `yaml:"max_upload_mb"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type VisionConfig struct {
	ModelsDir          string  `yaml:"models_dir"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
	MaxInFlight        int     `yaml:"max_in_flight"`
}

// Duration accepts human-readable YAML values like "24h" or "90s";
// bare integers are taken as nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(n)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type AuthConfig struct {
	AccessSecret    string   `yaml:"access_secret"`
	AccessTTL       Duration `yaml:"access_ttl"`
	AssertionSecret string   `yaml:"assertion_secret"`
	AssertionTTL    Duration `yaml:"assertion_ttl"`
	Issuer          string   `yaml:"issuer"`
}

type EmailConfig struct {
	Provider      string `yaml:"provider"` // "sendgrid" or "console"
	SendgridKey   string `yaml:"sendgrid_key"`
	FromAddress   string `yaml:"from_address"`
	AppName       string `yaml:"app_name"`
	VerifyBaseURL string `yaml:"verify_base_url"`
}

type WorkdayConfig struct {
	// LateAfter is a local clock time "HH:MM"; attendance marked after it is Late.
	LateAfter string `yaml:"late_after"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from a YAML file and applies environment variable overrides.
// A .env file in the working directory, if present, is loaded first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.FaceServer.Port == 0 {
		cfg.FaceServer.Port = 5001
	}
	if cfg.FaceServer.MaxUploadMB == 0 {
		cfg.FaceServer.MaxUploadMB = 5
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Vision.MaxInFlight == 0 {
		cfg.Vision.MaxInFlight = 4
	}
	if cfg.Auth.AccessTTL == 0 {
		cfg.Auth.AccessTTL = Duration(24 * time.Hour)
	}
	if cfg.Auth.AssertionTTL == 0 {
		cfg.Auth.AssertionTTL = Duration(time.Minute)
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "attendo"
	}
	if cfg.Email.Provider == "" {
		cfg.Email.Provider = "console"
	}
	if cfg.Email.AppName == "" {
		cfg.Email.AppName = "Attendo"
	}
	if cfg.Workday.LateAfter == "" {
		cfg.Workday.LateAfter = "09:15"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ATTENDO_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ATTENDO_FACE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.FaceServer.Port = port
		}
	}
	if v := os.Getenv("ATTENDO_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("ATTENDO_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("ATTENDO_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("ATTENDO_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("ATTENDO_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("ATTENDO_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("ATTENDO_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("ATTENDO_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("ATTENDO_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("ATTENDO_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("ATTENDO_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("ATTENDO_ACCESS_SECRET"); v != "" {
		cfg.Auth.AccessSecret = v
	}
	if v := os.Getenv("ATTENDO_ASSERTION_SECRET"); v != "" {
		cfg.Auth.AssertionSecret = v
	}
	if v := os.Getenv("ATTENDO_SENDGRID_KEY"); v != "" {
		cfg.Email.SendgridKey = v
	}
}

// LateCutoff parses the workday late threshold into hour and minute.
func (w WorkdayConfig) LateCutoff() (hour, minute int, err error) {
	if _, err := fmt.Sscanf(w.LateAfter, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("parse late_after %q: %w", w.LateAfter, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("late_after %q out of range", w.LateAfter)
	}
	return hour, minute, nil
}
