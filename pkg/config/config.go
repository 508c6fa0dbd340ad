// Package config loads the tool configuration and project descriptors
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/apkforge/apkforge/pkg/pipeline"
	"github.com/apkforge/apkforge/pkg/types"
)

const (
	// ConfigName is the tool configuration file name without extension
	ConfigName = "apkforge"

	// EnvPrefix prefixes environment overrides, e.g. APKFORGE_JAVA_HOME
	EnvPrefix = "APKFORGE"

	DefaultParallel      = 2
	DefaultAssetsDir     = "assets"
	DefaultBuildDir      = "build"
	DefaultLogLevel      = types.LogLevelInfo
	defaultUserConfigDir = ".apkforge"
)

var (
	// ErrConfigRead indicates the tool configuration could not be read
	ErrConfigRead = errors.New("failed to read configuration")

	// ErrProjectParse indicates a project descriptor could not be read or parsed
	ErrProjectParse = errors.New("failed to load project")
)

// ProjectError names the descriptor that failed to load
type ProjectError struct {
	Path string
	Err  error
}

func (e *ProjectError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ProjectError) Unwrap() []error {
	return []error{ErrProjectParse, e.Err}
}

// SetDefaults registers the default tool configuration on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("java_home", os.Getenv("JAVA_HOME"))
	v.SetDefault("resource_dir", "")
	v.SetDefault("keystore", "")
	v.SetDefault("storepass", pipeline.DefaultStorePass)
	v.SetDefault("key_alias", pipeline.DefaultKeyAlias)
	v.SetDefault("child_process_ram_mb", pipeline.DefaultChildProcessRAMMB)
	v.SetDefault("parallel", DefaultParallel)
	v.SetDefault("tool_timeout", time.Duration(0))
	v.SetDefault("state_dir", defaultStateDir())
	v.SetDefault("notifications", false)
	v.SetDefault("log_file", "")
	v.SetDefault("log_level", string(DefaultLogLevel))
}

// Load reads the tool configuration. An explicit file must exist; without
// one, apkforge.{yaml,json,toml} is searched in the working directory and
// in ~/.apkforge, and a missing file is not an error. APKFORGE_* variables
// override both.
func Load(v *viper.Viper, file string) (*types.Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, defaultUserConfigDir))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %w", ErrConfigRead, err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigRead, err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the value ranges of a tool configuration
func Validate(cfg *types.Config) error {
	var errs []error
	if cfg.ChildProcessRAMMB <= 0 {
		errs = append(errs, fmt.Errorf("child_process_ram_mb must be positive, got %d", cfg.ChildProcessRAMMB))
	}
	if cfg.Parallel <= 0 {
		errs = append(errs, fmt.Errorf("parallel must be positive, got %d", cfg.Parallel))
	}
	if cfg.ToolTimeout < 0 {
		errs = append(errs, fmt.Errorf("tool_timeout must not be negative, got %s", cfg.ToolTimeout))
	}
	switch cfg.LogLevel {
	case types.LogLevelDebug, types.LogLevelInfo, types.LogLevelWarn, types.LogLevelError:
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", cfg.LogLevel))
	}
	return errors.Join(errs...)
}

// Manager loads project descriptors
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// LoadProject reads a project descriptor. The format follows the file
// extension; unknown extensions are tried as JSON, then YAML. Relative
// paths in the descriptor are taken relative to the descriptor's directory.
func (m *Manager) LoadProject(path string) (*types.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ProjectError{Path: path, Err: err}
	}

	var project types.Project
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &project)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &project)
	case ".toml":
		err = toml.Unmarshal(data, &project)
	default:
		if jsonErr := json.Unmarshal(data, &project); jsonErr != nil {
			project = types.Project{}
			if yamlErr := yaml.Unmarshal(data, &project); yamlErr != nil {
				err = fmt.Errorf("not JSON (%v) or YAML (%v)", jsonErr, yamlErr)
			}
		}
	}
	if err != nil {
		return nil, &ProjectError{Path: path, Err: err}
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, &ProjectError{Path: path, Err: err}
	}
	ApplyProjectDefaults(&project, base)
	return &project, nil
}

// ApplyProjectDefaults fills in the default assets and build directories
// and anchors relative paths at base
func ApplyProjectDefaults(project *types.Project, base string) {
	if project.AssetsDir == "" {
		project.AssetsDir = DefaultAssetsDir
	}
	if project.BuildDir == "" {
		project.BuildDir = DefaultBuildDir
	}

	project.AssetsDir = anchor(base, project.AssetsDir)
	project.BuildDir = anchor(base, project.BuildDir)
	for i := range project.Sources {
		project.Sources[i].File = anchor(base, project.Sources[i].File)
	}
}

func anchor(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, filepath.FromSlash(p))
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(defaultUserConfigDir, "state")
	}
	return filepath.Join(home, defaultUserConfigDir, "state")
}
