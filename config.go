package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix         = "BOOKLIST"
	DefaultConfigFile = "./config.yml"
	DefaultEnvFile    = "./config.env"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBolt   = "bolt"
)

// Config defines the structure of the configuration file.
type Config struct {
	GitCommit          string        `yaml:"git_commit" envconfig:"GIT_COMMIT"`
	GitTag             string        `yaml:"git_tag" envconfig:"GIT_TAG"`
	BuildTime          string        `yaml:"build_time" envconfig:"BUILD_TIME"`
	IsProduction       bool          `yaml:"is_production" envconfig:"IS_PRODUCTION"`
	LogLevel           zapcore.Level `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogFile            string        `yaml:"log_file" envconfig:"LOG_FILE"`
	OpsEndpointsEnable bool          `yaml:"ops_endpoints_enable" envconfig:"OPS_ENDPOINTS_ENABLE"`
	ProfilerEnable     bool          `yaml:"profiler_enable" envconfig:"PROFILER_ENABLE"`
	Server             ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Storage            StorageConfig `yaml:"storage" envconfig:"STORAGE"`
	Catalog            CatalogConfig `yaml:"catalog" envconfig:"CATALOG"`
	Backup             BackupConfig  `yaml:"backup" envconfig:"BACKUP"`
	Redis              RedisConfig   `yaml:"redis" envconfig:"REDIS"`
	BoltDB             BoltDBConfig  `yaml:"boltdb" envconfig:"BOLTDB"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            string        `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"` // Time to wait for a request to finish
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

type StorageConfig struct {
	Backend string `yaml:"backend" envconfig:"BACKEND"`
}

type CatalogConfig struct {
	Key               string     `yaml:"key" envconfig:"KEY"`
	Locale            string     `yaml:"locale" envconfig:"LOCALE"`
	ZeroPolicy        ZeroPolicy `yaml:"zero_policy" envconfig:"ZERO_POLICY"`
	ImportMode        ImportMode `yaml:"import_mode" envconfig:"IMPORT_MODE"`
	OptimisticLocking bool       `yaml:"optimistic_locking" envconfig:"OPTIMISTIC_LOCKING"`
	ResortOnWrite     SortKey    `yaml:"resort_on_write" envconfig:"RESORT_ON_WRITE"`
}

type BackupConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"ENABLED"`
	Queue   string `yaml:"queue" envconfig:"QUEUE"`
}

type RedisConfig struct {
	Host          string        `yaml:"host" envconfig:"HOST"`
	Port          string        `yaml:"port" envconfig:"PORT"`
	DialTimeout   time.Duration `yaml:"dial_timeout" envconfig:"DIAL_TIMEOUT"`
	ReadTimeout   time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout  time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	PoolSize      int           `yaml:"pool_size" envconfig:"POOL_SIZE"`
	PoolTimeout   time.Duration `yaml:"pool_timeout" envconfig:"POOL_TIMEOUT"`
	Username      string        `yaml:"username" envconfig:"USERNAME"`
	Password      string        `yaml:"password" envconfig:"PASSWORD" json:"-"`
	DatabaseIndex int           `yaml:"db_index" envconfig:"DATABASE_INDEX"`
}

type BoltDBConfig struct {
	FilePath   string        `yaml:"filepath" envconfig:"FILE_PATH"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	BucketName string        `yaml:"bucket_name" envconfig:"BUCKET_NAME"`
}

// LoadConfigFile provides an instance of config structure for the all application.
func LoadConfigFile(configFile string) (*Config, error) {
	file, err := os.Open(configFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	cfg := &Config{}
	yd := yaml.NewDecoder(file)
	err = yd.Decode(cfg)

	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigEnvs reads the environments variables and overrides the App config.
func LoadConfigEnvs(prefix string, config *Config) error {
	return envconfig.Process(prefix, config)
}

// InitConfig setup defaults values for non provided parameters
// and configures build tags values to be used if provided.
func InitConfig(config *Config, gitCommit, gitTag, buildTime string) error {
	if len(gitCommit) != 0 {
		config.GitCommit = gitCommit
	}

	if len(gitTag) != 0 {
		config.GitTag = gitTag
	}

	if len(buildTime) != 0 {
		config.BuildTime = buildTime
	}

	if len(config.Storage.Backend) == 0 {
		config.Storage.Backend = BackendMemory
	}

	if len(config.Catalog.Key) == 0 {
		config.Catalog.Key = "books"
	}

	if len(config.Catalog.Locale) == 0 {
		config.Catalog.Locale = "ru"
	}

	if len(config.Catalog.ZeroPolicy) == 0 {
		config.Catalog.ZeroPolicy = ZeroIsFalsy
	}

	if len(config.Catalog.ImportMode) == 0 {
		config.Catalog.ImportMode = ImportLenient
	}

	if len(config.Backup.Queue) == 0 {
		config.Backup.Queue = SnapshotQueue
	}

	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 10 * time.Second
	}

	if config.Server.RequestTimeout == 0 {
		config.Server.RequestTimeout = 30 * time.Second
	}

	switch config.Storage.Backend {
	case BackendMemory, BackendRedis, BackendBolt:
	default:
		return fmt.Errorf("unknown storage backend %q", config.Storage.Backend)
	}

	if config.Catalog.ZeroPolicy != ZeroIsFalsy && config.Catalog.ZeroPolicy != ZeroIsPresent {
		return fmt.Errorf("unknown zero policy %q", config.Catalog.ZeroPolicy)
	}

	if config.Catalog.ImportMode != ImportLenient && config.Catalog.ImportMode != ImportStrict {
		return fmt.Errorf("unknown import mode %q", config.Catalog.ImportMode)
	}

	if config.Catalog.ResortOnWrite != "" {
		if _, ok := ParseSortKey(string(config.Catalog.ResortOnWrite)); !ok {
			return fmt.Errorf("unknown sort key %q", config.Catalog.ResortOnWrite)
		}
	}

	if _, err := language.Parse(config.Catalog.Locale); err != nil {
		return fmt.Errorf("invalid catalog locale %q: %v", config.Catalog.Locale, err)
	}

	if len(config.Server.Host) == 0 || len(config.Server.Port) == 0 {
		return errors.New("make sure to set valid server address and port in configuration file")
	}

	needsRedis := config.Storage.Backend == BackendRedis || config.Backup.Enabled
	if needsRedis && (len(config.Redis.Host) == 0 || len(config.Redis.Port) == 0) {
		return errors.New("make sure to set valid redis address and port in configuration file")
	}

	needsBolt := config.Storage.Backend == BackendBolt || config.Backup.Enabled
	if needsBolt && (len(config.BoltDB.FilePath) == 0 || len(config.BoltDB.BucketName) == 0) {
		return errors.New("make sure to set valid boltdb file path and bucket name in configuration file")
	}

	if config.Backup.Enabled && config.Storage.Backend != BackendRedis {
		return errors.New("catalog backup mirrors the redis backend only")
	}

	return nil
}

// LoadAndInitConfigs loads in order the configs from various predefined sources
// then build the App configuration data. The env file is optional.
func LoadAndInitConfigs(configFile, gitCommit, gitTag, buildTime string) (*Config, error) {
	// Setup the yaml configuration from file.
	config, err := LoadConfigFile(configFile)
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from file: %s", err)
	}

	// Set the environment configuration.
	if err = godotenv.Load(DefaultEnvFile); err != nil && !os.IsNotExist(err) {
		return config, fmt.Errorf("failed to set environment configurations: %s", err)
	}

	// Use environment variables with prefix `BOOKLIST`.
	err = LoadConfigEnvs(EnvPrefix, config)
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from environment: %s", err)
	}

	err = InitConfig(config, gitCommit, gitTag, buildTime)
	if err != nil {
		return config, fmt.Errorf("failed to initialize configurations: %s", err)
	}
	return config, nil
}
