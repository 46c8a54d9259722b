package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment keys. Lower-case names match the .env files the tool has always
// read; upper-case spellings are accepted too.
const (
	EnvTotalStep = "total_step"
	EnvDelta     = "delta"
	EnvAPIURL    = "api_url"
	EnvEmail     = "email"
	EnvPassword  = "password"
)

// LoadEnvFile loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is only an
// error when required is set.
func LoadEnvFile(path string, required bool) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return &ConfigError{Field: "env_file", Err: err}
	}
	return nil
}

// Getenv looks key up as given, then upper-cased. A nil getenv reads the
// process environment.
func Getenv(getenv func(string) string, key string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(getenv(strings.ToUpper(key)))
}

// ApplyEnv overlays the target and endpoint env keys onto cfg.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := Getenv(getenv, EnvTotalStep); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Errorf(EnvTotalStep, "not an integer: %q", v)
		}
		cfg.Target.Base = &n
	}
	if v := Getenv(getenv, EnvDelta); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Errorf(EnvDelta, "not a number: %q", v)
		}
		cfg.Target.Delta = &f
	}
	if v := Getenv(getenv, EnvAPIURL); v != "" {
		cfg.Actuator.URL = v
	}
	return nil
}
