// Package pipeline turns a project into a signed Android package by
// running an ordered sequence of stages.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	pcontext "github.com/apkforge/apkforge/pkg/context"
	"github.com/apkforge/apkforge/pkg/logger"
	"github.com/apkforge/apkforge/pkg/permissions"
	"github.com/apkforge/apkforge/pkg/toolexec"
	"github.com/apkforge/apkforge/pkg/types"
	"github.com/apkforge/apkforge/pkg/utils"
)

// Resolver materializes bundled resources
type Resolver interface {
	Resolve(logicalPath string) (string, error)
}

// PermissionSource maps component types to permissions
type PermissionSource interface {
	PermissionsFor(componentTypes []string) (permissions.Set, error)
}

// IconPreparer writes the application icon
type IconPreparer interface {
	Prepare(project *types.Project, outputPath string) error
}

// ToolRunner runs external tools
type ToolRunner interface {
	Run(ctx context.Context, cmd toolexec.Command, stdout, stderr io.Writer) error
}

// Dependencies are the shared collaborators of every build
type Dependencies struct {
	Resources   Resolver
	Permissions PermissionSource
	Icons       IconPreparer
	Tools       ToolRunner
	Logger      logger.Logger
}

// Options select how a project is built
type Options struct {
	Mode              types.BuildMode
	KeystorePath      string
	StorePass         string
	KeyAlias          string
	ChildProcessRAMMB int
	// JavaHome locates java and jarsigner. Empty means look them up on PATH.
	JavaHome string
	// GOOS picks the packaging tool variant. Empty means the running OS.
	GOOS string
}

// Streams are the three output channels of a build. Out carries progress,
// Err carries tool diagnostics and User carries the lines meant for the
// person who asked for the build.
type Streams struct {
	Out  io.Writer
	Err  io.Writer
	User io.Writer
}

// Request is one build
type Request struct {
	Project        *types.Project
	ComponentTypes []string
	Options        Options
	Streams        Streams
}

const (
	DefaultChildProcessRAMMB = 2048
	DefaultStorePass         = "android"
	DefaultKeyAlias          = "AndroidKey"

	// ramHeadroomMB is kept back from the child process ceiling for the JVM itself.
	ramHeadroomMB = 200
)

// Pipeline runs builds. It is safe for concurrent use; all shared state
// lives in its dependencies.
type Pipeline struct {
	deps Dependencies
}

// New creates a pipeline
func New(deps Dependencies) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	return &Pipeline{deps: deps}
}

// Compile runs a build and reports only whether it succeeded
func (p *Pipeline) Compile(ctx context.Context, req Request) bool {
	return p.Build(ctx, req).Success
}

// Build runs every stage in order and stops at the first failure
func (p *Pipeline) Build(ctx context.Context, req Request) *types.BuildResult {
	ctx = pcontext.EnrichContext(ctx, req.Project.Name)
	b := newBuild(p.deps, req)

	result := &types.BuildResult{
		ID:        pcontext.GetBuildID(ctx),
		Project:   req.Project.Name,
		Mode:      b.opts.Mode,
		StartedAt: pcontext.GetStartTime(ctx),
	}

	log := logger.WithContext(ctx, p.deps.Logger.WithTarget(req.Project.Name))
	log.Info("Build started", logger.WithField("mode", b.opts.Mode))

	var stageErr *StageError
	if err := b.prepareDirectories(); err != nil {
		stageErr = &StageError{Stage: types.StageIconPrep, Err: err}
	} else {
		stageErr = p.runStages(ctx, b)
	}

	result.Duration = time.Since(result.StartedAt)

	if stageErr != nil {
		fmt.Fprint(b.user, UserMessage(stageErr))
		fmt.Fprintln(b.errOut, stageErr.Error())
		log.Error("Build failed",
			logger.WithField("stage", stageErr.Stage),
			logger.WithError(stageErr.Err))

		result.FailedStage = stageErr.Stage
		result.Err = stageErr
		result.ErrorText = stageErr.Error()
		result.Diagnostics = b.diagnostics.String()
		return result
	}

	fmt.Fprintf(b.out, "Build finished in %.3f seconds\n", result.Duration.Seconds())
	log.Success("Build finished", logger.WithField("duration_ms", result.Duration.Milliseconds()))

	result.Success = true
	result.PackagePath = b.apkPath
	return result
}

func (p *Pipeline) runStages(ctx context.Context, b *build) *StageError {
	for _, s := range stages {
		stageCtx := pcontext.WithStage(ctx, string(s.id))
		b.log = logger.WithContext(stageCtx, p.deps.Logger.WithTarget(b.project.Name))

		fmt.Fprintln(b.out, s.banner)
		started := time.Now()

		if err := s.run(b, stageCtx); err != nil {
			return &StageError{Stage: s.id, Err: err}
		}

		if s.timing != "" {
			fmt.Fprintf(b.out, "%s time: %.3f seconds\n", s.timing, time.Since(started).Seconds())
		}
		b.log.Debug("Stage finished", logger.WithField("duration_ms", time.Since(started).Milliseconds()))
	}
	return nil
}

// build is the mutable state of one pipeline run
type build struct {
	deps           Dependencies
	project        *types.Project
	componentTypes []string
	opts           Options
	log            logger.Logger

	out, errOut, user io.Writer
	diagnostics       bytes.Buffer

	buildDir     string
	resDir       string
	classesDir   string
	tmpDir       string
	deployDir    string
	iconPath     string
	manifestPath string
	dexPath      string
	apPath       string
	apkPath      string

	permissions []string
}

func newBuild(deps Dependencies, req Request) *build {
	opts := req.Options
	if opts.Mode == "" {
		opts.Mode = types.BuildModeNormal
	}
	if opts.ChildProcessRAMMB <= 0 {
		opts.ChildProcessRAMMB = DefaultChildProcessRAMMB
	}
	if opts.StorePass == "" {
		opts.StorePass = DefaultStorePass
	}
	if opts.KeyAlias == "" {
		opts.KeyAlias = DefaultKeyAlias
	}
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}

	b := &build{
		deps:           deps,
		project:        req.Project,
		componentTypes: req.ComponentTypes,
		opts:           opts,
		log:            deps.Logger,
		out:            orDiscard(req.Streams.Out),
		errOut:         orDiscard(req.Streams.Err),
	}
	b.user = io.MultiWriter(orDiscard(req.Streams.User), &b.diagnostics)

	b.buildDir = req.Project.BuildDir
	b.resDir = filepath.Join(b.buildDir, "res")
	b.classesDir = filepath.Join(b.buildDir, "classes")
	b.tmpDir = filepath.Join(b.buildDir, "tmp")
	b.deployDir = filepath.Join(b.buildDir, "deploy")
	b.iconPath = filepath.Join(b.resDir, "drawable", "ya.png")
	b.manifestPath = filepath.Join(b.buildDir, "AndroidManifest.xml")
	b.dexPath = filepath.Join(b.tmpDir, "classes.dex")
	b.apPath = filepath.Join(b.deployDir, req.Project.Name+".ap_")
	b.apkPath = filepath.Join(b.deployDir, req.Project.Name+".apk")
	return b
}

// prepareDirectories gives every stage a clean output directory. Output
// of an earlier failed attempt is only removed here, at the next attempt.
func (b *build) prepareDirectories() error {
	if b.buildDir == "" {
		return fmt.Errorf("project %s has no build directory", b.project.Name)
	}
	if err := utils.EnsureDirectory(b.buildDir); err != nil {
		return err
	}
	for _, dir := range []string{b.resDir, b.classesDir, b.tmpDir, b.deployDir} {
		if err := utils.ResetDirectory(dir); err != nil {
			return err
		}
	}
	return utils.EnsureDirectory(filepath.Dir(b.iconPath))
}

func (b *build) javaBinary() string {
	if b.opts.JavaHome == "" {
		return "java"
	}
	return filepath.Join(b.opts.JavaHome, "bin", "java")
}

func (b *build) maxHeap() string {
	return fmt.Sprintf("-mx%dM", b.opts.ChildProcessRAMMB-ramHeadroomMB)
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

func fileMissing(path string) bool {
	_, err := os.Stat(path)
	return os.IsNotExist(err)
}
