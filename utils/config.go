package utils

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config is the YAML configuration supplied at startup.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		Driver   string `yaml:"driver"` // sqlite or mysql
		Filename string `yaml:"filename"`
		DSN      string `yaml:"dsn"`
	} `yaml:"database"`
	Media struct {
		Root string `yaml:"root"`
	} `yaml:"media"`
	Predictor struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"predictor"`
	Auth struct {
		Secret     string `yaml:"secret"`
		TokenHours int    `yaml:"token_hours"`
		// Bootstrap credentials seed the first admin on an empty database.
		BootstrapUsername string `yaml:"bootstrap_username"`
		BootstrapPassword string `yaml:"bootstrap_password"`
	} `yaml:"auth"`
}

// NewConfig Parse the YAML config at path, with environment expansion. Secrets
// can live in a .env file next to the binary.
func NewConfig(configPath string) (*Config, error) {
	// Best effort, config values may reference variables from .env
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", configPath, err)
	}

	config := &Config{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), config); err != nil {
		return nil, fmt.Errorf("cannot parse config %s: %w", configPath, err)
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
	if config.Database.Driver == "" {
		config.Database.Driver = "sqlite"
	}
	if config.Media.Root == "" {
		config.Media.Root = "media"
	}
	if config.Predictor.TimeoutSeconds <= 0 {
		config.Predictor.TimeoutSeconds = 30
	}
	if config.Auth.TokenHours <= 0 {
		config.Auth.TokenHours = 12
	}
	return config, nil
}

// DatabaseDSN Resolve the DSN for the configured driver.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "mysql" {
		return c.Database.DSN
	}
	if c.Database.Filename != "" {
		return c.Database.Filename
	}
	return "posescope.sqlite"
}

// ParseFlags Parse the command line flags for the config path and debug mode.
func ParseFlags() (string, bool, error) {
	var configPath string
	var debugMode bool

	flag.StringVar(&configPath, "config", "config.yaml", "path to config file")
	flag.BoolVar(&debugMode, "debug", false, "enable debug mode")
	flag.Parse()

	if _, err := os.Stat(configPath); err != nil {
		return "", false, fmt.Errorf("config file %s: %w", configPath, err)
	}
	return configPath, debugMode, nil
}
