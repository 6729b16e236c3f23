package config

import "time"

// Config is the application settings document (config.yaml). It describes
// where things live on the host and how runs behave; the set of subvolumes
// itself is kept in the registry document, not here.
type Config struct {
	Paths           PathsConfig    `yaml:"paths"`
	SystemRoots     []string       `yaml:"systemRoots" env:"WANDERING_ECHO_SYSTEM_ROOTS" env-separator:","`
	Workers         int            `yaml:"workers" env:"WANDERING_ECHO_WORKERS"`
	CommandTimeout  time.Duration  `yaml:"commandTimeout" env:"WANDERING_ECHO_COMMAND_TIMEOUT"`
	TransferTimeout time.Duration  `yaml:"transferTimeout" env:"WANDERING_ECHO_TRANSFER_TIMEOUT"`
	Logging         LoggingConfig  `yaml:"logging"`
	Remote          RemoteConfig   `yaml:"remote"`
	Schedule        ScheduleConfig `yaml:"schedule"`
	ConfigReload    ReloadConfig   `yaml:"configReload"`
	Metrics         MetricsConfig  `yaml:"metrics"`
}

type PathsConfig struct {
	MountPoint      string `yaml:"mountPoint" env:"WANDERING_ECHO_MOUNT_POINT"`
	Registry        string `yaml:"registry" env:"WANDERING_ECHO_REGISTRY"`
	Associations    string `yaml:"associations" env:"WANDERING_ECHO_ASSOCIATIONS"`
	SnapshotDirName string `yaml:"snapshotDirName"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" env:"WANDERING_ECHO_LOG_LEVEL"`   // "debug", "info", "warn", "error"
	Format     string `yaml:"format" env:"WANDERING_ECHO_LOG_FORMAT"` // "text", "json"
	File       string `yaml:"file" env:"WANDERING_ECHO_LOG_FILE"`
	MaxSize    int    `yaml:"maxSize"` // megabytes
	MaxBackups int    `yaml:"maxBackups"`
	MaxAge     int    `yaml:"maxAge"` // days
}

// RemoteConfig describes the optional off-host destination backups are
// streamed to after they land locally. An empty Type disables delivery.
type RemoteConfig struct {
	Type string     `yaml:"type" env:"WANDERING_ECHO_REMOTE_TYPE"` // "", "local", "sftp", "s3"
	Path string     `yaml:"path" env:"WANDERING_ECHO_REMOTE_PATH"`
	SFTP SFTPConfig `yaml:"sftp"`
	S3   S3Config   `yaml:"s3"`
}

type SFTPConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password" env:"WANDERING_ECHO_SFTP_PASSWORD"`
	KeyPath         string `yaml:"keyPath"`
	KnownHostsPath  string `yaml:"knownHostsPath"`
	TrustOnFirstUse bool   `yaml:"trustOnFirstUse"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"accessKey" env:"WANDERING_ECHO_S3_ACCESS_KEY"`
	SecretKey string `yaml:"secretKey" env:"WANDERING_ECHO_S3_SECRET_KEY"`
	Endpoint  string `yaml:"endpoint"` // S3-compatible stores
}

type ScheduleConfig struct {
	Cron string `yaml:"cron" env:"WANDERING_ECHO_CRON"`
}

// ReloadConfig controls how the daemon notices edits to the settings file.
type ReloadConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Mode            string        `yaml:"mode"` // "auto", "poll", "fsnotify"
	PollInterval    time.Duration `yaml:"pollInterval"`
	DebounceWindow  time.Duration `yaml:"debounceWindow"`
	StabilityWindow time.Duration `yaml:"stabilityWindow"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile" env:"WANDERING_ECHO_METRICS_TEXTFILE"`
}

// Default returns the settings used when no config file exists.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			MountPoint:      "/media/Wandering_Echo",
			Registry:        "/var/lib/wandering-echo/BTRFS Config.json",
			Associations:    "/var/lib/wandering-echo/associations",
			SnapshotDirName: "Snapshots",
		},
		SystemRoots:    []string{"@", "@home"},
		CommandTimeout: 30 * time.Second,
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Schedule: ScheduleConfig{Cron: "@daily"},
		ConfigReload: ReloadConfig{
			Mode:            "auto",
			PollInterval:    5 * time.Second,
			DebounceWindow:  500 * time.Millisecond,
			StabilityWindow: 200 * time.Millisecond,
		},
	}
}
