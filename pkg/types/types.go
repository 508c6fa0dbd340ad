// Package types provides core types and configurations for apkforge
package types

import (
	"strings"
	"time"
)

// Stage identifies one ordered step of the build pipeline
type Stage string

const (
	StageIconPrep          Stage = "IconPrep"
	StagePermissionResolve Stage = "PermissionResolve"
	StageManifestWrite     Stage = "ManifestWrite"
	StageCompile           Stage = "Compile"
	StageTranslate         Stage = "Translate"
	StagePackage           Stage = "Package"
	StageSeal              Stage = "Seal"
	StageSign              Stage = "Sign"
)

// Stages lists the pipeline stages in execution order
var Stages = []Stage{
	StageIconPrep,
	StagePermissionResolve,
	StageManifestWrite,
	StageCompile,
	StageTranslate,
	StagePackage,
	StageSeal,
	StageSign,
}

// BuildMode selects between a normal build and a live-development build
type BuildMode string

const (
	BuildModeNormal BuildMode = "normal"
	// BuildModeREPL builds the companion app used for live development.
	// Its main entry point is never advertised as launchable.
	BuildModeREPL BuildMode = "repl"
)

// BuildStatus represents the current state of a build
type BuildStatus string

const (
	BuildStatusIdle      BuildStatus = "idle"
	BuildStatusBuilding  BuildStatus = "building"
	BuildStatusSucceeded BuildStatus = "succeeded"
	BuildStatusFailed    BuildStatus = "failed"
)

// LogLevel represents logging verbosity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// SourceDescriptor is one compilable unit of a project
type SourceDescriptor struct {
	QualifiedName string `json:"qualifiedName" yaml:"qualifiedName" toml:"qualifiedName"`
	File          string `json:"file" yaml:"file" toml:"file"`
}

// ScreenName returns the last segment of the qualified name
func (s SourceDescriptor) ScreenName() string {
	return ClassName(s.QualifiedName)
}

// Project is a read-only view of a buildable unit
type Project struct {
	Name        string             `json:"name" yaml:"name" toml:"name"`
	MainClass   string             `json:"main" yaml:"main" toml:"main"`
	Sources     []SourceDescriptor `json:"sources" yaml:"sources" toml:"sources"`
	AssetsDir   string             `json:"assets" yaml:"assets" toml:"assets"`
	Icon        string             `json:"icon,omitempty" yaml:"icon,omitempty" toml:"icon,omitempty"`
	VersionCode string             `json:"versionCode,omitempty" yaml:"versionCode,omitempty" toml:"versionCode,omitempty"`
	VersionName string             `json:"versionName,omitempty" yaml:"versionName,omitempty" toml:"versionName,omitempty"`
	BuildDir    string             `json:"buildDir" yaml:"buildDir" toml:"buildDir"`
	Components  []string           `json:"components,omitempty" yaml:"components,omitempty" toml:"components,omitempty"`
}

// PackageName returns the package of the main entry point
func (p *Project) PackageName() string {
	return PackageName(p.MainClass)
}

// MainSource returns the descriptor of the main entry point, if present
func (p *Project) MainSource() (SourceDescriptor, bool) {
	for _, s := range p.Sources {
		if s.QualifiedName == p.MainClass {
			return s, true
		}
	}
	return SourceDescriptor{}, false
}

// PackageName returns everything before the last dot of a qualified name
func PackageName(qualified string) string {
	if i := strings.LastIndex(qualified, "."); i >= 0 {
		return qualified[:i]
	}
	return ""
}

// ClassName returns everything after the last dot of a qualified name
func ClassName(qualified string) string {
	return qualified[strings.LastIndex(qualified, ".")+1:]
}

// BuildResult is the terminal outcome of one pipeline run
type BuildResult struct {
	ID          string        `json:"id"`
	Project     string        `json:"project"`
	Mode        BuildMode     `json:"mode"`
	Success     bool          `json:"success"`
	FailedStage Stage         `json:"failedStage,omitempty"`
	Diagnostics string        `json:"diagnostics,omitempty"`
	ErrorText   string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"duration"`
	PackagePath string        `json:"packagePath,omitempty"`

	// Err is the stage error behind a failed build. It is not persisted.
	Err error `json:"-"`
}

// Status maps the result onto a build status
func (r *BuildResult) Status() BuildStatus {
	if r.Success {
		return BuildStatusSucceeded
	}
	return BuildStatusFailed
}

// Config is the tool configuration of an apkforge process
type Config struct {
	JavaHome          string        `mapstructure:"java_home"`
	ResourceDir       string        `mapstructure:"resource_dir"`
	Keystore          string        `mapstructure:"keystore"`
	StorePass         string        `mapstructure:"storepass"`
	KeyAlias          string        `mapstructure:"key_alias"`
	ChildProcessRAMMB int           `mapstructure:"child_process_ram_mb"`
	Parallel          int           `mapstructure:"parallel"`
	ToolTimeout       time.Duration `mapstructure:"tool_timeout"`
	StateDir          string        `mapstructure:"state_dir"`
	Notifications     bool          `mapstructure:"notifications"`
	LogFile           string        `mapstructure:"log_file"`
	LogLevel          LogLevel      `mapstructure:"log_level"`
}
