package config

// Config is the optional config file. Every section may be omitted; Default
// fills the values a bare `stepsync run` needs.
type Config struct {
	Target      TargetConfig      `json:"target"`
	Schedule    ScheduleConfig    `json:"schedule"`
	Actuator    ActuatorConfig    `json:"actuator"`
	Credentials CredentialsConfig `json:"credentials"`
	Logging     LoggingConfig     `json:"logging"`
	Storage     *StorageConfig    `json:"storage,omitempty"`
	Ops         OpsConfig         `json:"ops"`
}

// TargetConfig holds the daily target parameters. Pointers distinguish
// "omitted" from an explicit zero; the env keys total_step and delta override
// both.
type TargetConfig struct {
	Base  *int     `json:"base,omitempty"`
	Delta *float64 `json:"delta,omitempty"`
}

// ScheduleConfig controls the tick cadence and the day shape.
//
//   - interval: Go duration ("16m"), HH:MM ("00:16") or "@every 16m"
//   - timezone: IANA name; empty means the process local zone
//   - anchors: [{at: "07:30", fraction: 0}, ...]; empty means the built-in table
type ScheduleConfig struct {
	Interval string         `json:"interval,omitempty"`
	Timezone string         `json:"timezone,omitempty"`
	Anchors  []AnchorConfig `json:"anchors,omitempty"`
}

type AnchorConfig struct {
	At       string  `json:"at"`
	Fraction float64 `json:"fraction"`
}

type ActuatorConfig struct {
	URL     string `json:"url,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

type CredentialsConfig struct {
	// Keyring enables the OS keyring fallback when the password env key is unset.
	Keyring        bool   `json:"keyring,omitempty"`
	KeyringService string `json:"keyring_service,omitempty"`
}

type LoggingConfig struct {
	Level    string            `json:"level"`
	Console  bool              `json:"console"`
	File     LogFileConfig     `json:"file"`
	Telegram LogTelegramConfig `json:"telegram"`
}

type LogFileConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

// LogTelegramConfig forwards warn+ log lines to a chat.
type LogTelegramConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token,omitempty"`
	ChatID     int64  `json:"chat_id,omitempty"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// StorageConfig enables the push history.
//
// Driver values:
//   - "file": JSON Lines next to Path
//   - "sqlite": SQLite database at Path
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
	Retain      int    `json:"retain,omitempty"`
}

// OpsConfig controls the local HTTP listener for health, metrics, status and
// pprof. Non-loopback binds need a Token unless AllowInsecure is set.
type OpsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			File:    LogFileConfig{Path: "./logs/stepsync.log"},
		},
		Ops: OpsConfig{Addr: "127.0.0.1:9464"},
	}
}
