package credentials

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"

	"stepsync/internal/config"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadFromEnv(t *testing.T) {
	got, err := Source{Getenv: env(map[string]string{"email": "a@b.c", "PASSWORD": "pw"})}.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.User != "a@b.c" || got.Password != "pw" {
		t.Fatalf("unexpected credentials: %+v", got)
	}
}

func TestLoadMissingIsConfigError(t *testing.T) {
	cases := []map[string]string{
		{},
		{"email": "a@b.c"},
		{"password": "pw"},
	}
	for _, m := range cases {
		_, err := Source{Getenv: env(m)}.Load()
		var ce *config.ConfigError
		if !errors.As(err, &ce) {
			t.Fatalf("env %v: expected ConfigError, got %v", m, err)
		}
	}
}

func TestKeyringFallback(t *testing.T) {
	keyring.MockInit()

	src := Source{Getenv: env(map[string]string{"email": "a@b.c"}), UseKeyring: true, Service: "stepsync-test"}
	if _, err := src.Load(); err == nil {
		t.Fatal("expected error before the password is stored")
	}

	if err := StorePassword("stepsync-test", "a@b.c", "from-keyring"); err != nil {
		t.Fatalf("StorePassword: %v", err)
	}
	got, err := src.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Password != "from-keyring" {
		t.Fatalf("password = %q", got.Password)
	}

	// Env wins over the keyring.
	src.Getenv = env(map[string]string{"email": "a@b.c", "password": "from-env"})
	got, _ = src.Load()
	if got.Password != "from-env" {
		t.Fatalf("env password should win, got %q", got.Password)
	}

	if err := DeletePassword("stepsync-test", "a@b.c"); err != nil {
		t.Fatalf("DeletePassword: %v", err)
	}
	if err := DeletePassword("stepsync-test", "a@b.c"); err != nil {
		t.Fatalf("second DeletePassword: %v", err)
	}
}

func TestKeyringErrorSurfaces(t *testing.T) {
	orig := keyringGet
	t.Cleanup(func() { keyringGet = orig })
	keyringGet = func(string, string) (string, error) { return "", errors.New("dbus unavailable") }

	_, err := Source{Getenv: env(map[string]string{"email": "a@b.c"}), UseKeyring: true}.Load()
	var ce *config.ConfigError
	if !errors.As(err, &ce) || ce.Field != "keyring" {
		t.Fatalf("expected keyring ConfigError, got %v", err)
	}
}

func TestStorePasswordValidates(t *testing.T) {
	keyring.MockInit()
	if err := StorePassword("", " ", "pw"); err == nil {
		t.Fatal("empty user should fail")
	}
	if err := StorePassword("", "a@b.c", ""); err == nil {
		t.Fatal("empty password should fail")
	}
}
