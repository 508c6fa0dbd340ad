// Package validation checks projects and tool settings before a build
package validation

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/apkforge/apkforge/pkg/types"
	"github.com/apkforge/apkforge/pkg/utils"
)

// ProjectValidator validates projects and the tool configuration
type ProjectValidator struct{}

// NewProjectValidator creates a new project validator
func NewProjectValidator() *ProjectValidator {
	return &ProjectValidator{}
}

// ValidationError represents a validation error
type ValidationError struct {
	Project string
	Field   string
	Message string
	Level   ValidationLevel
}

// ValidationLevel represents error severity
type ValidationLevel string

const (
	ValidationLevelError   ValidationLevel = "error"
	ValidationLevelWarning ValidationLevel = "warning"
)

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s.%s: %s", e.Level, e.Project, e.Field, e.Message)
}

// ValidationResult contains validation results
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// AddError adds an error to the validation result
func (r *ValidationResult) AddError(project, field, message string, level ValidationLevel) {
	r.Errors = append(r.Errors, ValidationError{
		Project: project,
		Field:   field,
		Message: message,
		Level:   level,
	})
	if level == ValidationLevelError {
		r.Valid = false
	}
}

// Merge folds other into r
func (r *ValidationResult) Merge(other *ValidationResult) {
	r.Errors = append(r.Errors, other.Errors...)
	if !other.Valid {
		r.Valid = false
	}
}

// Filter returns the entries of the given level
func (r *ValidationResult) Filter(level ValidationLevel) []ValidationError {
	var out []ValidationError
	for _, e := range r.Errors {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Validate validates a project
func (v *ProjectValidator) Validate(project *types.Project) *ValidationResult {
	result := &ValidationResult{Valid: true}

	v.validateBasicFields(project, result)
	v.validateSources(project, result)
	v.validatePaths(project, result)

	return result
}

// ValidateMultiple validates projects that are built together. Two projects
// sharing a name or a build directory would overwrite each other's output.
func (v *ProjectValidator) ValidateMultiple(projects []*types.Project) *ValidationResult {
	result := &ValidationResult{Valid: true}

	names := make(map[string]bool)
	buildDirs := make(map[string]string)

	for _, p := range projects {
		if names[p.Name] {
			result.AddError(p.Name, "name", "duplicate project name", ValidationLevelError)
		}
		names[p.Name] = true

		if p.BuildDir != "" {
			dir := filepath.Clean(p.BuildDir)
			if other, ok := buildDirs[dir]; ok {
				result.AddError(p.Name, "buildDir", fmt.Sprintf("build directory is shared with %s", other), ValidationLevelError)
			}
			buildDirs[dir] = p.Name
		}

		result.Merge(v.Validate(p))
	}

	return result
}

// ValidateToolConfig checks the settings every build depends on
func (v *ProjectValidator) ValidateToolConfig(cfg *types.Config) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch {
	case cfg.Keystore == "":
		result.AddError("config", "keystore", "no keystore configured", ValidationLevelError)
	case !utils.FileExists(cfg.Keystore):
		result.AddError("config", "keystore", fmt.Sprintf("keystore does not exist: %s", cfg.Keystore), ValidationLevelError)
	}

	switch {
	case cfg.JavaHome == "":
		result.AddError("config", "java_home", "not set, java and jarsigner are looked up on PATH", ValidationLevelWarning)
	case !utils.DirectoryExists(cfg.JavaHome):
		result.AddError("config", "java_home", fmt.Sprintf("directory does not exist: %s", cfg.JavaHome), ValidationLevelError)
	}

	if cfg.ResourceDir != "" && !utils.DirectoryExists(cfg.ResourceDir) {
		result.AddError("config", "resource_dir", fmt.Sprintf("directory does not exist: %s", cfg.ResourceDir), ValidationLevelError)
	}

	return result
}

func (v *ProjectValidator) validateBasicFields(p *types.Project, result *ValidationResult) {
	name := p.Name

	if name == "" {
		result.AddError("", "name", "project name is required", ValidationLevelError)
	} else if strings.ContainsAny(name, `/\`) {
		result.AddError(name, "name", "project name cannot contain path separators", ValidationLevelError)
	} else if strings.Contains(name, " ") {
		result.AddError(name, "name", "project name contains spaces, package files will too", ValidationLevelWarning)
	}

	switch {
	case p.MainClass == "":
		result.AddError(name, "main", "main entry point is required", ValidationLevelError)
	case p.PackageName() == "":
		result.AddError(name, "main", fmt.Sprintf("main entry point %s has no package", p.MainClass), ValidationLevelError)
	}

	if len(p.Components) == 0 {
		result.AddError(name, "components", "no components listed, the manifest will request no permissions", ValidationLevelWarning)
	}
}

func (v *ProjectValidator) validateSources(p *types.Project, result *ValidationResult) {
	name := p.Name

	if len(p.Sources) == 0 {
		result.AddError(name, "sources", "at least one source is required", ValidationLevelError)
		return
	}

	seen := make(map[string]bool)
	for _, src := range p.Sources {
		if src.QualifiedName == "" {
			result.AddError(name, "sources", fmt.Sprintf("source %s has no qualified name", src.File), ValidationLevelError)
			continue
		}
		if seen[src.QualifiedName] {
			result.AddError(name, "sources", fmt.Sprintf("duplicate source %s", src.QualifiedName), ValidationLevelError)
		}
		seen[src.QualifiedName] = true

		if src.File == "" {
			result.AddError(name, "sources", fmt.Sprintf("source %s has no file", src.QualifiedName), ValidationLevelError)
		} else if !utils.FileExists(src.File) {
			result.AddError(name, "sources", fmt.Sprintf("source file does not exist: %s", src.File), ValidationLevelError)
		}

		if pkg := p.PackageName(); pkg != "" && types.PackageName(src.QualifiedName) != pkg {
			result.AddError(name, "sources", fmt.Sprintf("%s is outside package %s", src.QualifiedName, pkg), ValidationLevelWarning)
		}
	}

	if p.MainClass != "" {
		if _, ok := p.MainSource(); !ok {
			result.AddError(name, "main", fmt.Sprintf("main entry point %s is not among the sources", p.MainClass), ValidationLevelError)
		}
	}
}

func (v *ProjectValidator) validatePaths(p *types.Project, result *ValidationResult) {
	name := p.Name

	if p.BuildDir == "" {
		result.AddError(name, "buildDir", "build directory is required", ValidationLevelError)
	}

	if p.Icon != "" && !utils.FileExists(filepath.Join(p.AssetsDir, p.Icon)) {
		result.AddError(name, "icon", fmt.Sprintf("icon %s not found in %s", p.Icon, p.AssetsDir), ValidationLevelError)
	}
}
