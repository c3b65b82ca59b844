package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	AuthSecret  string   `mapstructure:"AUTH_SECRET"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	WorkerCount       int `mapstructure:"WORKER_COUNT"`
	StayGapHours      int `mapstructure:"STAY_GAP_HOURS"`
	LiberationHours   int `mapstructure:"LIBERATION_HOURS"`
	DoseBucketMinutes int `mapstructure:"DOSE_BUCKET_MINUTES"`
	ScoreWindowMin    int `mapstructure:"SCORE_WINDOW_MINUTES"`
	MinAgeYears       int `mapstructure:"MIN_AGE_YEARS"`
	MinICUStayHours   int `mapstructure:"MIN_ICU_STAY_HOURS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("WORKER_COUNT", 4)
	v.SetDefault("STAY_GAP_HOURS", 6)
	v.SetDefault("LIBERATION_HOURS", 24)
	v.SetDefault("DOSE_BUCKET_MINUTES", 60)
	v.SetDefault("SCORE_WINDOW_MINUTES", 60)
	v.SetDefault("MIN_AGE_YEARS", 18)
	v.SetDefault("MIN_ICU_STAY_HOURS", 6)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("WORKER_COUNT")
	v.BindEnv("STAY_GAP_HOURS")
	v.BindEnv("LIBERATION_HOURS")
	v.BindEnv("DOSE_BUCKET_MINUTES")
	v.BindEnv("SCORE_WINDOW_MINUTES")
	v.BindEnv("MIN_AGE_YEARS")
	v.BindEnv("MIN_ICU_STAY_HOURS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run. Outside development
// AUTH_SECRET must be set so real token authentication is enforced.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required when ENV is not development")
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive, got %d", c.WorkerCount)
	}
	if c.ScoreWindowMin <= 0 {
		return fmt.Errorf("SCORE_WINDOW_MINUTES must be positive, got %d", c.ScoreWindowMin)
	}
	if c.DoseBucketMinutes <= 0 {
		return fmt.Errorf("DOSE_BUCKET_MINUTES must be positive, got %d", c.DoseBucketMinutes)
	}
	return nil
}

// StayGap returns the stay stitching gap threshold.
func (c *Config) StayGap() time.Duration {
	return time.Duration(c.StayGapHours) * time.Hour
}

// Liberation returns the episode liberation threshold.
func (c *Config) Liberation() time.Duration {
	return time.Duration(c.LiberationHours) * time.Hour
}

// DoseBucket returns the dose bucketing resolution.
func (c *Config) DoseBucket() time.Duration {
	return time.Duration(c.DoseBucketMinutes) * time.Minute
}

// ScoreWindow returns the severity scoring window size.
func (c *Config) ScoreWindow() time.Duration {
	return time.Duration(c.ScoreWindowMin) * time.Minute
}

// MinICUStay returns the minimum stitched icu stay duration for inclusion.
func (c *Config) MinICUStay() time.Duration {
	return time.Duration(c.MinICUStayHours) * time.Hour
}
