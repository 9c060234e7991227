package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// setting ties a config key to its environment variables and optional flag.
// env entries are suffixes appended to the loader's prefix.
type setting struct {
	key   string
	env   []string
	flag  string
	usage string
}

var settings = []setting{
	{key: "service.name", env: []string{"SERVICE_NAME"}, flag: "service-name", usage: "service name reported in logs and /version"},
	{key: "service.environment", env: []string{"SERVICE_ENVIRONMENT", "ENVIRONMENT"}},
	{key: "log.level", env: []string{"LOG_LEVEL"}, flag: "log-level", usage: "log level (debug, info, warn, error)"},
	{key: "log.format", env: []string{"LOG_FORMAT"}, flag: "log-format", usage: "log format (json, text)"},

	{key: "locking.shards", env: []string{"LOCK_SHARDS"}},
	{key: "locking.source", env: []string{"LOCK_SOURCE"}, flag: "policy-source", usage: "lock policy source (file, sql, redis)"},
	{key: "locking.expire_schedule", env: []string{"LOCK_EXPIRE_SCHEDULE"}},
	{key: "locking.reload_schedule", env: []string{"LOCK_RELOAD_SCHEDULE"}},
	{key: "locking.watch", env: []string{"LOCK_WATCH"}, flag: "watch", usage: "reload lock policies when the config file changes"},
	{key: "locking.guard.timeout", env: []string{"LOCK_GUARD_TIMEOUT"}},
	{key: "locking.guard.max_failures", env: []string{"LOCK_GUARD_MAX_FAILURES"}},
	{key: "locking.guard.cooldown", env: []string{"LOCK_GUARD_COOLDOWN"}},

	{key: "database.driver", env: []string{"DB_DRIVER"}},
	{key: "database.url", env: []string{"DB_URL"}},
	{key: "database.table", env: []string{"DB_TABLE"}},
	{key: "database.max_open_conns", env: []string{"DB_MAX_OPEN_CONNS"}},
	{key: "database.conn_max_lifetime", env: []string{"DB_CONN_MAX_LIFETIME"}},
	{key: "database.query_timeout", env: []string{"DB_QUERY_TIMEOUT"}},

	{key: "redis.url", env: []string{"REDIS_URL"}},
	{key: "redis.key", env: []string{"REDIS_KEY"}},
	{key: "redis.operation_timeout", env: []string{"REDIS_OPERATION_TIMEOUT"}},

	{key: "management.enabled", env: []string{"MGMT_ENABLED"}},
	{key: "management.addr", env: []string{"MGMT_ADDR"}, flag: "management-addr", usage: "management server listen address"},
	{key: "management.read_timeout", env: []string{"MGMT_READ_TIMEOUT"}},
	{key: "management.write_timeout", env: []string{"MGMT_WRITE_TIMEOUT"}},
	{key: "management.shutdown_timeout", env: []string{"MGMT_SHUTDOWN_TIMEOUT"}},

	{key: "tracing.enabled", env: []string{"TRACING_ENABLED"}, flag: "tracing", usage: "export traces over OTLP"},
	{key: "tracing.endpoint", env: []string{"TRACING_ENDPOINT"}},
	{key: "tracing.insecure", env: []string{"TRACING_INSECURE"}},
	{key: "tracing.sample_rate", env: []string{"TRACING_SAMPLE_RATE"}},
}

// RegisterFlags adds the command line overrides to flags, with
// DefaultConfig values as flag defaults.
func RegisterFlags(flags *pflag.FlagSet) {
	defaults := DefaultConfig()
	for _, s := range settings {
		switch s.flag {
		case "":
		case "service-name":
			flags.String(s.flag, defaults.Service.Name, s.usage)
		case "log-level":
			flags.String(s.flag, defaults.Log.Level, s.usage)
		case "log-format":
			flags.String(s.flag, defaults.Log.Format, s.usage)
		case "policy-source":
			flags.String(s.flag, defaults.Locking.Source, s.usage)
		case "watch":
			flags.Bool(s.flag, defaults.Locking.Watch, s.usage)
		case "management-addr":
			flags.String(s.flag, defaults.Management.Addr, s.usage)
		case "tracing":
			flags.Bool(s.flag, defaults.Tracing.Enabled, s.usage)
		default:
			panic("config: no flag type for " + s.flag)
		}
	}
}

// Loader reads Config with precedence flags > env > secrets file >
// config file > defaults.
type Loader struct {
	path        string
	envPrefix   string
	serviceName string
	secretsFile string
	flags       *pflag.FlagSet
}

// NewLoader returns a loader for the config file at path. Both arguments may
// be empty: no file is read and the env prefix falls back to DefaultEnvPrefix.
func NewLoader(path, envPrefix string) *Loader {
	envPrefix = strings.ToUpper(strings.TrimSpace(envPrefix))
	if envPrefix == "" {
		envPrefix = DefaultEnvPrefix
	}
	return &Loader{path: path, envPrefix: envPrefix}
}

// WithServiceName overrides the default of service.name.
func (l *Loader) WithServiceName(name string) *Loader {
	l.serviceName = strings.TrimSpace(name)
	return l
}

// WithSecretsFile names the secrets file explicitly. It takes precedence
// over <PREFIX>_SECRETS_FILE and must exist.
func (l *Loader) WithSecretsFile(path string) *Loader {
	l.secretsFile = strings.TrimSpace(path)
	return l
}

// WithFlags binds the flags added by RegisterFlags.
func (l *Loader) WithFlags(flags *pflag.FlagSet) *Loader {
	l.flags = flags
	return l
}

// Path returns the config file, empty when none was given.
func (l *Loader) Path() string {
	return l.path
}

func (l *Loader) env(suffix string) string {
	return l.envPrefix + "_" + suffix
}

// Load fills cfg and validates it.
func (l *Loader) Load(cfg *Config) error {
	v := viper.New()
	if err := setDefaults(v, DefaultConfig()); err != nil {
		return err
	}
	if l.serviceName != "" {
		v.SetDefault("service.name", l.serviceName)
	}

	if l.path != "" {
		v.SetConfigFile(l.path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", l.path, err)
		}
	}
	if err := l.mergeSecrets(v); err != nil {
		return err
	}

	for _, s := range settings {
		names := make([]string, 0, len(s.env))
		for _, suffix := range s.env {
			names = append(names, l.env(suffix))
		}
		if s.key == "tracing.endpoint" {
			names = append(names, "OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		if err := v.BindEnv(append([]string{s.key}, names...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", s.key, err)
		}
		if s.flag == "" || l.flags == nil {
			continue
		}
		if flag := l.flags.Lookup(s.flag); flag != nil {
			if err := v.BindPFlag(s.key, flag); err != nil {
				return fmt.Errorf("bind flag --%s: %w", s.flag, err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// setDefaults registers every leaf of cfg as a viper default so env
// bindings and partial config files see the full key set.
func setDefaults(v *viper.Viper, cfg *Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("decode defaults: %w", err)
	}
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, val := range node {
			key := prefix + k
			if child, ok := val.(map[string]any); ok {
				walk(key+".", child)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree)
	return nil
}

// mergeSecrets merges the secrets file over the config file. The file is the
// one given to WithSecretsFile, else <PREFIX>_SECRETS_FILE when set, else
// secrets.<ext> beside the config file, else secrets.yaml in the working
// directory.
//
//	database:
//	  url: postgres://locks:password@db:5432/locks
func (l *Loader) mergeSecrets(v *viper.Viper) error {
	path, err := l.findSecrets()
	if err != nil || path == "" {
		return err
	}
	secrets := viper.New()
	secrets.SetConfigFile(path)
	if err := secrets.ReadInConfig(); err != nil {
		return fmt.Errorf("read secrets file %s: %w", path, err)
	}
	if err := v.MergeConfigMap(secrets.AllSettings()); err != nil {
		return fmt.Errorf("merge secrets file %s: %w", path, err)
	}
	return nil
}

func (l *Loader) findSecrets() (string, error) {
	if l.secretsFile != "" {
		if !isFile(l.secretsFile) {
			return "", fmt.Errorf("secrets file %s must be a readable file", l.secretsFile)
		}
		return l.secretsFile, nil
	}

	name := l.env("SECRETS_FILE")
	if explicit, ok := os.LookupEnv(name); ok {
		explicit = strings.TrimSpace(explicit)
		if explicit == "" {
			return "", fmt.Errorf("%s is set but empty", name)
		}
		if !isFile(explicit) {
			return "", fmt.Errorf("%s must point to a readable file, got %s", name, explicit)
		}
		return explicit, nil
	}

	candidates := []string{"secrets.yaml", "secrets.yml"}
	if l.path != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(l.path), "secrets"+filepath.Ext(l.path))}, candidates...)
	}
	for _, c := range candidates {
		if isFile(c) {
			return c, nil
		}
	}
	return "", nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
