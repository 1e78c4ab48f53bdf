package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/c360/fieldstreams/errors"
)

// DefaultEnvPrefix prefixes every environment override
const DefaultEnvPrefix = "FIELDSTREAMS"

// durationKeys are the leaf keys whose string values are Go durations
var durationKeys = map[string]bool{
	"poll_timeout":     true,
	"interval":         true,
	"yield_interval":   true,
	"shutdown_timeout": true,
	"utc_offset":       true,
	"timeout":          true,
	"reconnect_wait":   true,
	"wait_timeout":     true,
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	dotEnv     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		validation: true,
		envPrefix:  DefaultEnvPrefix,
	}
}

// AddLayer adds a configuration file layer. Later layers override earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// AddDotEnv reads path as a .env file before overrides are applied. Missing
// files are ignored; variables already set in the environment win.
func (l *Loader) AddDotEnv(path string) {
	l.dotEnv = append(l.dotEnv, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// SetEnvPrefix changes the environment override prefix
func (l *Loader) SetEnvPrefix(prefix string) {
	l.envPrefix = strings.TrimSuffix(prefix, "_")
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load starts from defaults, merges each layer, then applies .env files and
// environment overrides.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("load %s", path))
		}
		if cfg, err = mergeFromMap(cfg, raw); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("merge %s", path))
		}
	}

	for _, path := range l.dotEnv {
		if err := godotenv.Load(path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("read env file %s", path))
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// loadRaw reads a JSON or YAML file into a generic map with durations
// converted to nanoseconds
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		if err := validateJSONDepth(data); err != nil {
			return nil, fmt.Errorf("invalid JSON structure: %w", err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	}

	if err := parseDurations(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// parseDurations rewrites duration strings under known keys to nanoseconds
// so they unmarshal into time.Duration fields
func parseDurations(data map[string]any) error {
	for key, value := range data {
		switch v := value.(type) {
		case map[string]any:
			if err := parseDurations(v); err != nil {
				return err
			}
		case string:
			if !durationKeys[key] {
				continue
			}
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			data[key] = d.Nanoseconds()
		}
	}
	return nil
}

// mergeFromMap merges configuration from a raw map, only overriding fields
// present in the map
func mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	if override == nil {
		return base, nil
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// applyEnvOverrides applies PREFIX_SECTION_FIELD variables on top of cfg
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	o := envOverrides{prefix: l.envPrefix}

	o.setString("LISTEN_BIND", &cfg.Listen.Bind)
	o.setInt("LISTEN_PORT", &cfg.Listen.Port)
	o.setInt("LISTEN_MAX_DATAGRAM_SIZE", &cfg.Listen.MaxDatagramSize)

	o.setDuration("FLUSH_INTERVAL", &cfg.Flush.Interval)
	o.setBool("FLUSH_ON_SHUTDOWN", &cfg.Flush.FlushOnShutdown)

	o.setDuration("PARSER_UTC_OFFSET", &cfg.Parser.UTCOffset)
	o.setInt("BUFFER_MAX_KEYS", &cfg.Buffer.MaxKeys)

	o.setString("LOG_FILE_DIRECTORY", &cfg.LogFile.Directory)
	o.setString("LOG_FILE_FILENAME", &cfg.LogFile.Filename)

	o.setString("REMOTE_URL", &cfg.Remote.URL)
	o.setDuration("REMOTE_TIMEOUT", &cfg.Remote.Timeout)

	o.setString("NATS_URL", &cfg.NATS.URL)
	o.setString("NATS_SUBJECT_PREFIX", &cfg.NATS.SubjectPrefix)
	o.setString("NATS_USERNAME", &cfg.NATS.Username)
	o.setString("NATS_PASSWORD", &cfg.NATS.Password)
	o.setString("NATS_TOKEN", &cfg.NATS.Token)

	o.setString("INFLUX_URL", &cfg.Influx.URL)
	o.setString("INFLUX_TOKEN", &cfg.Influx.Token)
	o.setString("INFLUX_ORG", &cfg.Influx.Org)
	o.setString("INFLUX_BUCKET", &cfg.Influx.Bucket)

	o.setInt("METRICS_PORT", &cfg.Metrics.Port)

	o.setString("LOG_LEVEL", &cfg.Log.Level)
	o.setString("LOG_FORMAT", &cfg.Log.Format)

	if len(o.errs) > 0 {
		return errors.WrapInvalid(stderrors.Join(o.errs...), "Loader", "applyEnvOverrides", "parse environment")
	}
	return nil
}

// envOverrides collects parse failures so every bad variable is reported at once
type envOverrides struct {
	prefix string
	errs   []error
}

func (o *envOverrides) lookup(name string) (string, bool) {
	key := o.prefix + "_" + name
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return "", false
	}
	if err := validateEnvVar(key, val); err != nil {
		o.errs = append(o.errs, err)
		return "", false
	}
	return val, true
}

func (o *envOverrides) setString(name string, dst *string) {
	if val, ok := o.lookup(name); ok {
		*dst = val
	}
}

func (o *envOverrides) setInt(name string, dst *int) {
	val, ok := o.lookup(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		o.errs = append(o.errs, fmt.Errorf("%s_%s: %w", o.prefix, name, err))
		return
	}
	*dst = n
}

func (o *envOverrides) setBool(name string, dst *bool) {
	val, ok := o.lookup(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		o.errs = append(o.errs, fmt.Errorf("%s_%s: %w", o.prefix, name, err))
		return
	}
	*dst = b
}

func (o *envOverrides) setDuration(name string, dst *time.Duration) {
	val, ok := o.lookup(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		o.errs = append(o.errs, fmt.Errorf("%s_%s: %w", o.prefix, name, err))
		return
	}
	*dst = d
}
