package credentials

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"stepsync/internal/actuator"
	"stepsync/internal/config"
)

// DefaultService is the keyring service name passwords are stored under.
const DefaultService = "stepsync"

var (
	keyringSet    = keyring.Set
	keyringGet    = keyring.Get
	keyringDelete = keyring.Delete
)

// Source loads the account credentials: email and password from the
// environment, with an optional OS keyring fallback for the password.
type Source struct {
	Getenv     func(string) string
	UseKeyring bool
	Service    string
}

func (s Source) service() string {
	if v := strings.TrimSpace(s.Service); v != "" {
		return v
	}
	return DefaultService
}

// Load returns the credentials or a *config.ConfigError naming what is missing.
func (s Source) Load() (actuator.Credentials, error) {
	user := config.Getenv(s.Getenv, config.EnvEmail)
	if user == "" {
		return actuator.Credentials{}, config.Errorf(config.EnvEmail, "not set (add it to .env or the environment)")
	}

	password := config.Getenv(s.Getenv, config.EnvPassword)
	if password == "" && s.UseKeyring {
		pw, err := keyringGet(s.service(), user)
		switch {
		case err == nil:
			password = pw
		case errors.Is(err, keyring.ErrNotFound):
		default:
			return actuator.Credentials{}, &config.ConfigError{Field: "keyring", Err: err}
		}
	}
	if password == "" {
		hint := "not set (add it to .env or the environment)"
		if s.UseKeyring {
			hint = fmt.Sprintf("not set and no keyring entry for %q (run `stepsync login`)", user)
		}
		return actuator.Credentials{}, config.Errorf(config.EnvPassword, "%s", hint)
	}
	return actuator.Credentials{User: user, Password: password}, nil
}

// StorePassword saves password for user in the OS keyring.
func StorePassword(service, user, password string) error {
	user = strings.TrimSpace(user)
	if user == "" {
		return errors.New("user is required")
	}
	if password == "" {
		return errors.New("password is required")
	}
	return keyringSet(Source{Service: service}.service(), user, password)
}

// DeletePassword removes the stored password for user. A missing entry is
// not an error.
func DeletePassword(service, user string) error {
	err := keyringDelete(Source{Service: service}.service(), strings.TrimSpace(user))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
