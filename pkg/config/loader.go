package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/arthur-debert/solodeploy/pkg/logging"
	"github.com/arthur-debert/solodeploy/pkg/paths"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "SOLODEPLOY_"

// Options controls where configuration is read from
type Options struct {
	// Paths locates the project root, its config file and .env file
	Paths *paths.Paths
	// File overrides the discovered project config file
	File string
	// SkipDotEnv disables loading the project's .env file
	SkipDotEnv bool
	// Overrides are dotted keys applied last, e.g. from --set flags
	Overrides map[string]interface{}
}

// Load reads and merges all configuration layers into a Config
func Load(opts Options) (*Config, error) {
	k, source, err := load(opts)
	if err != nil {
		return nil, err
	}

	cfg, err := decode(k)
	if err != nil {
		return nil, err
	}

	cfg.SourceFile = source
	if opts.Paths != nil {
		cfg.ProjectRoot = opts.Paths.Root()
	}

	if err := postProcessConfig(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration built from the embedded defaults only
func Default() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to load defaults")
	}
	cfg, err := decode(k)
	if err != nil {
		return nil, err
	}
	if err := postProcessConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(opts Options) (*koanf.Koanf, string, error) {
	logger := logging.GetLogger("config")
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, "", errors.Wrap(err, errors.ErrConfigParse, "failed to load defaults")
	}

	// 2. .env secrets into the process environment
	if !opts.SkipDotEnv && opts.Paths != nil {
		dotEnv := opts.Paths.DotEnvFile()
		if _, err := os.Stat(dotEnv); err == nil {
			if err := godotenv.Load(dotEnv); err != nil {
				return nil, "", errors.Wrapf(err, errors.ErrConfigLoad, "failed to load %s", dotEnv).
					WithDetail("path", dotEnv)
			}
			logger.Debug().Str("path", dotEnv).Msg("Loaded .env file")
		}
	}

	// 3. Project config file
	source := opts.File
	if source == "" && opts.Paths != nil {
		source = opts.Paths.ConfigFile()
	}
	if source != "" {
		if _, err := os.Stat(source); err != nil {
			return nil, "", errors.Wrapf(err, errors.ErrConfigLoad, "config file %s not readable", source).
				WithDetail("path", source)
		}
		if err := k.Load(file.Provider(source), parserFor(source)); err != nil {
			return nil, "", errors.Wrapf(err, errors.ErrConfigParse, "failed to parse %s", source).
				WithDetail("path", source)
		}
		logger.Debug().Str("path", source).Msg("Loaded project config")
	}

	// 4. Environment overrides
	err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return nil, "", errors.Wrap(err, errors.ErrConfigLoad, "failed to load env vars")
	}

	// 5. Explicit overrides
	if len(opts.Overrides) > 0 {
		if err := k.Load(confmap.Provider(opts.Overrides, "."), nil); err != nil {
			return nil, "", errors.Wrap(err, errors.ErrConfigLoad, "failed to apply overrides")
		}
	}

	return k, source, nil
}

// ParseOverrides turns key=value pairs into an Overrides map
func ParseOverrides(pairs []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Newf(errors.ErrInvalidInput, "override %q must look like key=value", pair).
				WithDetail("override", pair)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

// envKey maps SOLODEPLOY_DEPLOY__SSH_OPTIONS__PORT to deploy.ssh_options.port
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	default:
		return toml.Parser()
	}
}

func decode(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to unmarshal configuration")
	}
	return &cfg, nil
}

// postProcessConfig fills values derived from other settings
func postProcessConfig(cfg *Config) error {
	if cfg.Application == "" && cfg.ProjectRoot != "" {
		cfg.Application = filepath.Base(cfg.ProjectRoot)
	}
	if cfg.Deploy.Concurrency == 0 {
		cfg.Deploy.Concurrency = 1
	}
	if cfg.Deploy.Transport == "" {
		cfg.Deploy.Transport = TransportOpenSSH
	}
	if cfg.Attributes.Global == nil {
		cfg.Attributes.Global = map[string]interface{}{}
	}
	if cfg.Variables == nil {
		cfg.Variables = map[string]interface{}{}
	}
	return nil
}
