package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/assistant/reference"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/compose"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/manifest/render"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/output"
)

const (
	EnvPrefix      = "OWUI"
	DotEnvFile     = ".env"
	configDirName  = ".owui-compose"
	configFileName = "config.yaml"
)

const (
	KeyProvider            = "provider"
	KeyModel               = "model"
	KeyAPIKey              = "api_key"
	KeyBaseURL             = "base_url"
	KeyTimeout             = "timeout"
	KeyRetryBudget         = "retry_budget"
	KeyOutputDir           = "output_dir"
	KeyReferenceSource     = "reference_source"
	KeyDocsDir             = "docs_dir"
	KeyEnvPlacementDefault = "env_placement_default"
)

// Config is the resolved run configuration: flags override OWUI_* environment variables,
// which override the config file, which overrides the defaults below.
type Config struct {
	Provider            string        `mapstructure:"provider"`
	Model               string        `mapstructure:"model"`
	APIKey              string        `mapstructure:"api_key"`
	BaseURL             string        `mapstructure:"base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	RetryBudget         int           `mapstructure:"retry_budget"`
	OutputDir           string        `mapstructure:"output_dir"`
	ReferenceSource     string        `mapstructure:"reference_source"`
	DocsDir             string        `mapstructure:"docs_dir"`
	EnvPlacementDefault string        `mapstructure:"env_placement_default"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyProvider, "openai")
	v.SetDefault(KeyModel, "")
	v.SetDefault(KeyAPIKey, "")
	v.SetDefault(KeyBaseURL, "")
	v.SetDefault(KeyTimeout, "2m")
	v.SetDefault(KeyRetryBudget, 3)
	v.SetDefault(KeyOutputDir, output.DefaultDir)
	v.SetDefault(KeyReferenceSource, string(reference.SourceStaticBundle))
	v.SetDefault(KeyDocsDir, reference.DefaultRepositoryDocsDir)
	v.SetDefault(KeyEnvPlacementDefault, string(render.ModeEmbedded))
}

// DefaultPath is ~/.owui-compose/config.yaml.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrapf(err, "failed to get home directory")
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// Load resolves the configuration. An explicit path must exist; the default path is optional.
// Flags are matched to keys by name with dashes turned into underscores.
func Load(fs afero.Fs, path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)
	setDefaults(v)

	explicit := path != ""
	if !explicit {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to expand config path %q", path)
	}

	cfg := &Config{}
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to check config file %q", path)
	}
	switch {
	case exists:
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %q", path)
		}
		cfg.File = path
	case explicit:
		return nil, errors.Errorf("config file %q does not exist", path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(KeyAPIKey, EnvPrefix+"_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, errors.Wrapf(err, "failed to bind %s", KeyAPIKey)
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if isKnownKey(key) {
				if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
					bindErr = errors.Wrapf(err, "failed to bind flag --%s", f.Name)
				}
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isKnownKey(key string) bool {
	switch key {
	case KeyProvider, KeyModel, KeyAPIKey, KeyBaseURL, KeyTimeout, KeyRetryBudget,
		KeyOutputDir, KeyReferenceSource, KeyDocsDir, KeyEnvPlacementDefault:
		return true
	}
	return false
}

// Validate checks the enumerated options so a bad value fails before the session starts.
func (c *Config) Validate() error {
	if _, err := reference.ParseSource(c.ReferenceSource); err != nil {
		return errors.Wrapf(err, "invalid %s", KeyReferenceSource)
	}
	if _, err := render.ParseMode(c.EnvPlacementDefault); err != nil {
		return errors.Wrapf(err, "invalid %s", KeyEnvPlacementDefault)
	}
	if c.RetryBudget < 1 {
		return errors.Errorf("invalid %s %d: must be at least 1", KeyRetryBudget, c.RetryBudget)
	}
	if c.Timeout <= 0 {
		return errors.Errorf("invalid %s %s: must be positive", KeyTimeout, c.Timeout)
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return errors.Errorf("invalid %s: must not be empty", KeyOutputDir)
	}
	return nil
}

// ReferenceSourceValue and EnvPlacement return the validated enum forms.
func (c *Config) ReferenceSourceValue() reference.Source {
	source, _ := reference.ParseSource(c.ReferenceSource)
	return source
}

func (c *Config) EnvPlacement() render.Mode {
	mode, _ := render.ParseMode(c.EnvPlacementDefault)
	return mode
}

// LoadDotEnvAPIKey fills an empty APIKey from a dotenv file, usually ./.env. The provider's
// own variable (OPENAI_API_KEY, ANTHROPIC_API_KEY) wins over OWUI_API_KEY. A missing file
// is not an error.
func (c *Config) LoadDotEnvAPIKey(fs afero.Fs, path string) (bool, error) {
	if c.APIKey != "" {
		return false, nil
	}
	content, err := afero.ReadFile(fs, path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to read %s", path)
	}
	values, err := compose.ParseEnvFile(content)
	if err != nil {
		return false, errors.Wrapf(err, "invalid %s", path)
	}
	for _, name := range []string{strings.ToUpper(c.Provider) + "_API_KEY", EnvPrefix + "_API_KEY"} {
		if key := strings.TrimSpace(values[name]); key != "" {
			c.APIKey = key
			return true, nil
		}
	}
	return false, nil
}
