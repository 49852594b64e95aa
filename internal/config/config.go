package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `json:"server"`
	Database      DatabaseConfig      `json:"database"`
	Storage       StorageConfig       `json:"storage"`
	Factors       FactorsConfig       `json:"factors"`
	OCR           OCRConfig           `json:"ocr"`
	Notifications NotificationsConfig `json:"notifications"`
	Audit         AuditConfig         `json:"audit"`
	Security      SecurityConfig      `json:"security"`
	Logging       LoggingConfig       `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	ReadTimeout   time.Duration `json:"read_timeout"`
	WriteTimeout  time.Duration `json:"write_timeout"`
	IdleTimeout   time.Duration `json:"idle_timeout"`
	MaxUploadSize int64         `json:"max_upload_size"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// StorageConfig selects where uploaded documents are kept. An empty bucket
// keeps them in memory, which is only meant for local runs.
type StorageConfig struct {
	Bucket          string `json:"bucket"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	UsePathStyle    bool   `json:"use_path_style"`
}

// FactorsConfig represents the emission factor seed file and refresh schedule
type FactorsConfig struct {
	SeedPath        string `json:"seed_path"`
	RefreshSchedule string `json:"refresh_schedule"`
}

// OCRConfig points at the text extraction tools.
type OCRConfig struct {
	PdfToTextPath string        `json:"pdftotext_path"`
	PdfToPPMPath  string        `json:"pdftoppm_path"`
	TesseractPath string        `json:"tesseract_path"`
	Languages     string        `json:"languages"`
	DPI           int           `json:"dpi"`
	MinTextChars  int           `json:"min_text_chars"`
	Timeout       time.Duration `json:"timeout"`
}

// NotificationsConfig represents the SNS topics used for alerts
type NotificationsConfig struct {
	FactorGapTopicARN string `json:"factor_gap_topic_arn"`
}

// AuditConfig represents the DynamoDB table that stores audit events
type AuditConfig struct {
	TableName string `json:"table_name"`
}

// SecurityConfig represents API authentication settings
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// LoggingConfig represents logger settings
type LoggingConfig struct {
	Level string `json:"level"`
}

// LoadConfig loads configuration from file and environment variables. A .env
// file in the working directory is loaded first when present.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	// Default config
	config := &Config{
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			ReadTimeout:   15 * time.Second,
			WriteTimeout:  60 * time.Second,
			IdleTimeout:   60 * time.Second,
			MaxUploadSize: 10 << 20,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "luma_ledger",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    5 * time.Minute,
		},
		Storage: StorageConfig{
			Region: "eu-west-1",
		},
		Factors: FactorsConfig{
			SeedPath:        "configs/emission_factors.yaml",
			RefreshSchedule: "0 */15 * * * *",
		},
		OCR: OCRConfig{
			PdfToTextPath: "pdftotext",
			PdfToPPMPath:  "pdftoppm",
			TesseractPath: "tesseract",
			Languages:     "spa+eng",
			DPI:           300,
			MinTextChars:  50,
			Timeout:       2 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func overrideWithEnv(config *Config) {
	setString(&config.Server.Host, "SERVER_HOST")
	setInt(&config.Server.Port, "SERVER_PORT")

	setString(&config.Database.Host, "DATABASE_HOST")
	setInt(&config.Database.Port, "DATABASE_PORT")
	setString(&config.Database.User, "DATABASE_USER")
	setString(&config.Database.Password, "DATABASE_PASSWORD")
	setString(&config.Database.DBName, "DATABASE_DBNAME")
	setString(&config.Database.SSLMode, "DATABASE_SSLMODE")

	setString(&config.Storage.Bucket, "S3_BUCKET")
	setString(&config.Storage.Region, "AWS_REGION")
	setString(&config.Storage.Endpoint, "S3_ENDPOINT")
	setString(&config.Storage.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&config.Storage.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")

	setString(&config.Factors.SeedPath, "FACTORS_SEED_PATH")
	setString(&config.Factors.RefreshSchedule, "FACTORS_REFRESH_SCHEDULE")

	setString(&config.OCR.Languages, "OCR_LANGUAGES")
	setDuration(&config.OCR.Timeout, "OCR_TIMEOUT")

	setString(&config.Notifications.FactorGapTopicARN, "FACTOR_GAP_TOPIC_ARN")
	setString(&config.Audit.TableName, "AUDIT_TABLE")
	setString(&config.Security.JWTSecret, "JWT_SECRET")
	setString(&config.Logging.Level, "LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// Validate checks the settings the services cannot start without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.OCR.MinTextChars < 0 {
		return fmt.Errorf("ocr min_text_chars must not be negative")
	}
	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
