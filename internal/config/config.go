package config

import (
	"fmt"
	"log/slog"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/rocketscienceinc/tictactoe-arena/internal/trainer"
)

const (
	ModelStoreFile  = "file"
	ModelStoreRedis = "redis"
)

type Config struct {
	LogLevel string  `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort string  `yaml:"http-port" env:"HTTP_PORT" env-default:"8000"`
	Redis    Redis   `yaml:"redis"`
	Model    Model   `yaml:"model"`
	Trainer  Trainer `yaml:"trainer"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

// Model - where the trained value table lives.
type Model struct {
	Store string `yaml:"store" env:"MODEL_STORE" env-default:"file"`
	Path  string `yaml:"path" env:"MODEL_PATH" env-default:"artifacts/q_table.json"`
	Name  string `yaml:"name" env:"MODEL_NAME" env-default:"q_table"`
}

type Trainer struct {
	Episodes     int     `yaml:"episodes" env-default:"300000"`
	Alpha        float64 `yaml:"alpha" env-default:"0.35"`
	Gamma        float64 `yaml:"gamma" env-default:"0.99"`
	EpsilonStart float64 `yaml:"epsilon-start" env-default:"1.0"`
	EpsilonEnd   float64 `yaml:"epsilon-end" env-default:"0.02"`
	TeacherStart float64 `yaml:"teacher-start" env-default:"0.70"`
	TeacherEnd   float64 `yaml:"teacher-end" env-default:"0.05"`
	Seed         int64   `yaml:"seed" env-default:"7"`
	LogEvery     int     `yaml:"log-every" env-default:"50000"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

// Load - reads path when given, otherwise only the environment and defaults.
func Load(path string) (*Config, error) {
	config := &Config{}

	if path == "" {
		if err := cleanenv.ReadEnv(config); err != nil {
			return nil, fmt.Errorf("unable to read environment: %w", err)
		}

		return config, nil
	}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	return config, nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

func (that *Trainer) ToTrainerConfig() trainer.Config {
	return trainer.Config{
		Episodes:     that.Episodes,
		Alpha:        that.Alpha,
		Gamma:        that.Gamma,
		EpsilonStart: that.EpsilonStart,
		EpsilonEnd:   that.EpsilonEnd,
		TeacherStart: that.TeacherStart,
		TeacherEnd:   that.TeacherEnd,
		Seed:         that.Seed,
		LogEvery:     that.LogEvery,
	}
}

// ParseLevel - the slog level for a log-level value; unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
