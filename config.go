package main

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const DefaultProfile = "prod"

// Profile holds connection and authentication parameters of one named target.
// Only the fields a backend needs are checked, and only when it is initialized.
type Profile struct {
	Type                   string `mapstructure:"type"`
	Account                string `mapstructure:"account"`
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	PrivateKey             string `mapstructure:"private_key"`
	Role                   string `mapstructure:"role"`
	Warehouse              string `mapstructure:"warehouse"`
	Database               string `mapstructure:"database"`
	Schema                 string `mapstructure:"schema"`
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	Protocol               string `mapstructure:"protocol"`
	Threads                int    `mapstructure:"threads"`
	ClientSessionKeepAlive *bool  `mapstructure:"client_session_keep_alive"`
	ConnectRetries         int    `mapstructure:"connect_retries"`
	ConnectTimeout         int    `mapstructure:"connect_timeout"`
	RetryOnDatabaseErrors  bool   `mapstructure:"retry_on_database_errors"`
	RetryAll               bool   `mapstructure:"retry_all"`
	ReuseConnections       bool   `mapstructure:"reuse_connections"`
}

type Config struct {
	Path     string
	Profiles map[string]Profile
}

// LoadEnv loads .env from the working directory if it exists.
func LoadEnv() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("%w: failed to load .env: %w", ErrConfig, err)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: failed to read config file %v: %w", ErrConfig, path, err)
	}

	profiles := make(map[string]Profile)
	if err := v.Unmarshal(&profiles); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config file %v: %w", ErrConfig, path, err)
	}
	for name, profile := range profiles {
		expanded, err := profile.expandEnv()
		if err != nil {
			return nil, fmt.Errorf("%w: profile '%v': %w", ErrConfig, name, err)
		}
		profiles[name] = expanded
	}
	Logger.Debugf("loaded %v profiles from %v", len(profiles), path)
	return &Config{Path: path, Profiles: profiles}, nil
}

// Profile looks the name up case-insensitively, since viper lowercases keys.
func (c *Config) Profile(name string) (Profile, error) {
	if name == "" {
		name = DefaultProfile
	}
	profile, ok := c.Profiles[strings.ToLower(name)]
	if !ok {
		return Profile{}, fmt.Errorf("%w: profile '%v' not found in config (available: %v)", ErrConfig, name, c.names())
	}
	return profile, nil
}

func (c *Config) names() string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}

var envVarPattern = regexp.MustCompile(`\{\{\s*env_var\(\s*'([^']+)'\s*(?:,\s*'([^']*)'\s*)?\)\s*\}\}`)

// expandEnvVars substitutes {{ env_var('NAME') }} and {{ env_var('NAME', 'default') }}.
func expandEnvVars(value string) (string, error) {
	var missing []string
	result := envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if env, ok := os.LookupEnv(groups[1]); ok {
			return env
		}
		if strings.Contains(match, ",") {
			return groups[2]
		}
		missing = append(missing, groups[1])
		return match
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("environment variable %v is not set", strings.Join(missing, ", "))
	}
	return result, nil
}

func (p Profile) expandEnv() (Profile, error) {
	fields := []*string{
		&p.Type, &p.Account, &p.User, &p.Password, &p.PrivateKey,
		&p.Role, &p.Warehouse, &p.Database, &p.Schema, &p.Host, &p.Protocol,
	}
	for _, field := range fields {
		expanded, err := expandEnvVars(*field)
		if err != nil {
			return Profile{}, err
		}
		*field = expanded
	}
	return p, nil
}
