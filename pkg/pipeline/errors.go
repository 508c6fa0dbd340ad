package pipeline

import (
	"errors"
	"fmt"

	"github.com/apkforge/apkforge/pkg/icon"
	"github.com/apkforge/apkforge/pkg/types"
)

var (
	// ErrNoUserCode indicates none of the project's sources contain program content
	ErrNoUserCode = errors.New("no user code exists")

	// ErrCompilation indicates the compiler produced no class file for an entry point
	ErrCompilation = errors.New("compilation failed")
)

// CompilationError names the entry point whose class file is missing
type CompilationError struct {
	Screen    string
	ClassFile string
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("compiling %s: class file %s was not produced", e.Screen, e.ClassFile)
}

func (e *CompilationError) Unwrap() error {
	return ErrCompilation
}

// StageError attributes a build failure to the stage it happened in
type StageError struct {
	Stage types.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// stageLabels are the stage names shown to end users
var stageLabels = map[types.Stage]string{
	types.StageIconPrep:          "icon",
	types.StagePermissionResolve: "Permissions",
	types.StageManifestWrite:     "manifest",
	types.StageCompile:           "compile",
	types.StageTranslate:         "DX",
	types.StagePackage:           "AAPT",
	types.StageSeal:              "ApkBuilder",
	types.StageSign:              "JarSigner",
}

// UserMessage renders the line an end user sees for a failed stage. It
// never includes tool output.
func UserMessage(err *StageError) string {
	var decodeErr *icon.DecodeError
	var compileErr *CompilationError

	switch {
	case errors.As(err.Err, &decodeErr):
		return fmt.Sprintf("Error: Your build failed because %s cannot be used as the application icon.\n", decodeErr.Icon)
	case errors.Is(err.Err, ErrNoUserCode):
		return "Error: No user code exists.\n"
	case errors.As(err.Err, &compileErr):
		return fmt.Sprintf("Error: Your build failed due to an error when compiling %s.\n", compileErr.Screen)
	default:
		return fmt.Sprintf("Error: Your build failed due to an error in the %s stage, not because of an error in your program.\n", stageLabels[err.Stage])
	}
}
