package validation_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/apkforge/apkforge/pkg/types"
	"github.com/apkforge/apkforge/pkg/validation"
)

func validProject(t *testing.T) *types.Project {
	t.Helper()
	dir := t.TempDir()
	screen := filepath.Join(dir, "Screen1.scm")
	if err := os.WriteFile(screen, []byte("(define-form)"), 0o644); err != nil {
		t.Fatal(err)
	}
	return &types.Project{
		Name:      "HelloPurr",
		MainClass: "com.example.HelloPurr.Screen1",
		Sources:   []types.SourceDescriptor{{QualifiedName: "com.example.HelloPurr.Screen1", File: screen}},
		AssetsDir: filepath.Join(dir, "assets"),
		BuildDir:  filepath.Join(dir, "build"),
		Components: []string{
			"com.google.appinventor.components.runtime.Form",
		},
	}
}

func hasIssue(result *validation.ValidationResult, field string, level validation.ValidationLevel) bool {
	for _, e := range result.Errors {
		if e.Field == field && e.Level == level {
			return true
		}
	}
	return false
}

func TestProjectValidator_Validate(t *testing.T) {
	validator := validation.NewProjectValidator()

	tests := []struct {
		name          string
		mutate        func(p *types.Project)
		expectInvalid bool
		field         string
		level         validation.ValidationLevel
	}{
		{
			name:   "valid project",
			mutate: func(p *types.Project) {},
		},
		{
			name:          "missing name",
			mutate:        func(p *types.Project) { p.Name = "" },
			expectInvalid: true,
			field:         "name",
			level:         validation.ValidationLevelError,
		},
		{
			name:          "name with path separator",
			mutate:        func(p *types.Project) { p.Name = "../HelloPurr" },
			expectInvalid: true,
			field:         "name",
			level:         validation.ValidationLevelError,
		},
		{
			name:   "name with spaces",
			mutate: func(p *types.Project) { p.Name = "Hello Purr" },
			field:  "name",
			level:  validation.ValidationLevelWarning,
		},
		{
			name:          "main without package",
			mutate:        func(p *types.Project) { p.MainClass = "Screen1" },
			expectInvalid: true,
			field:         "main",
			level:         validation.ValidationLevelError,
		},
		{
			name:          "main not among sources",
			mutate:        func(p *types.Project) { p.MainClass = "com.example.HelloPurr.Screen9" },
			expectInvalid: true,
			field:         "main",
			level:         validation.ValidationLevelError,
		},
		{
			name:          "no sources",
			mutate:        func(p *types.Project) { p.Sources = nil },
			expectInvalid: true,
			field:         "sources",
			level:         validation.ValidationLevelError,
		},
		{
			name: "missing source file",
			mutate: func(p *types.Project) {
				p.Sources[0].File = filepath.Join(filepath.Dir(p.Sources[0].File), "Gone.scm")
			},
			expectInvalid: true,
			field:         "sources",
			level:         validation.ValidationLevelError,
		},
		{
			name: "duplicate source",
			mutate: func(p *types.Project) {
				p.Sources = append(p.Sources, p.Sources[0])
			},
			expectInvalid: true,
			field:         "sources",
			level:         validation.ValidationLevelError,
		},
		{
			name: "source outside package",
			mutate: func(p *types.Project) {
				p.Sources = append(p.Sources, types.SourceDescriptor{QualifiedName: "org.other.Screen2", File: p.Sources[0].File})
			},
			field: "sources",
			level: validation.ValidationLevelWarning,
		},
		{
			name:          "missing build dir",
			mutate:        func(p *types.Project) { p.BuildDir = "" },
			expectInvalid: true,
			field:         "buildDir",
			level:         validation.ValidationLevelError,
		},
		{
			name:          "missing icon",
			mutate:        func(p *types.Project) { p.Icon = "kitty.png" },
			expectInvalid: true,
			field:         "icon",
			level:         validation.ValidationLevelError,
		},
		{
			name:   "no components",
			mutate: func(p *types.Project) { p.Components = nil },
			field:  "components",
			level:  validation.ValidationLevelWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProject(t)
			tt.mutate(p)

			result := validator.Validate(p)

			if result.Valid == tt.expectInvalid {
				t.Errorf("Valid = %v, want %v (errors: %v)", result.Valid, !tt.expectInvalid, result.Errors)
			}
			if tt.field == "" {
				if len(result.Errors) != 0 {
					t.Errorf("expected no issues, got %v", result.Errors)
				}
				return
			}
			if !hasIssue(result, tt.field, tt.level) {
				t.Errorf("expected %s issue on %s, got %v", tt.level, tt.field, result.Errors)
			}
		})
	}
}

func TestProjectValidator_ValidateMultiple(t *testing.T) {
	validator := validation.NewProjectValidator()

	a := validProject(t)
	b := validProject(t)
	b.Name = "PaintPot"

	if result := validator.ValidateMultiple([]*types.Project{a, b}); !result.Valid {
		t.Fatalf("independent projects should validate: %v", result.Errors)
	}

	b.BuildDir = a.BuildDir
	result := validator.ValidateMultiple([]*types.Project{a, b})
	if result.Valid || !hasIssue(result, "buildDir", validation.ValidationLevelError) {
		t.Errorf("shared build directory should be rejected: %v", result.Errors)
	}

	c := validProject(t)
	result = validator.ValidateMultiple([]*types.Project{a, c})
	if result.Valid || !hasIssue(result, "name", validation.ValidationLevelError) {
		t.Errorf("duplicate names should be rejected: %v", result.Errors)
	}
}

func TestProjectValidator_ValidateToolConfig(t *testing.T) {
	validator := validation.NewProjectValidator()
	dir := t.TempDir()
	keystore := filepath.Join(dir, "android.keystore")
	if err := os.WriteFile(keystore, []byte("ks"), 0o600); err != nil {
		t.Fatal(err)
	}

	result := validator.ValidateToolConfig(&types.Config{Keystore: keystore, JavaHome: dir})
	if !result.Valid || len(result.Errors) != 0 {
		t.Errorf("expected a clean result, got %v", result.Errors)
	}

	result = validator.ValidateToolConfig(&types.Config{Keystore: keystore})
	if !result.Valid || !hasIssue(result, "java_home", validation.ValidationLevelWarning) {
		t.Errorf("missing java_home should only warn: %v", result.Errors)
	}

	result = validator.ValidateToolConfig(&types.Config{})
	if result.Valid || !hasIssue(result, "keystore", validation.ValidationLevelError) {
		t.Errorf("missing keystore should be an error: %v", result.Errors)
	}

	result = validator.ValidateToolConfig(&types.Config{
		Keystore:    filepath.Join(dir, "nope"),
		JavaHome:    filepath.Join(dir, "nojdk"),
		ResourceDir: filepath.Join(dir, "nores"),
	})
	if len(result.Filter(validation.ValidationLevelError)) != 3 {
		t.Errorf("expected three errors, got %v", result.Errors)
	}
}

func TestValidationError_Error(t *testing.T) {
	e := validation.ValidationError{Project: "HelloPurr", Field: "icon", Message: "icon kitty.png not found", Level: validation.ValidationLevelError}
	if got, want := e.Error(), "[error] HelloPurr.icon: icon kitty.png not found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
