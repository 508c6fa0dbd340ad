package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/apkforge/apkforge/pkg/logger"
	"github.com/apkforge/apkforge/pkg/manifest"
	"github.com/apkforge/apkforge/pkg/resources"
	"github.com/apkforge/apkforge/pkg/toolexec"
	"github.com/apkforge/apkforge/pkg/types"
	"github.com/apkforge/apkforge/pkg/utils"
)

type stage struct {
	id     types.Stage
	banner string
	// timing labels the "<timing> time: N seconds" progress line; empty for none.
	timing string
	run    func(b *build, ctx context.Context) error
}

var stages = []stage{
	{types.StageIconPrep, "________Preparing application icon", "", (*build).prepareIcon},
	{types.StagePermissionResolve, "________Determining permissions", "", (*build).resolvePermissions},
	{types.StageManifestWrite, "________Generating manifest file", "", (*build).writeManifest},
	{types.StageCompile, "________Compiling source files", "Kawa compile", (*build).compileSources},
	{types.StageTranslate, "________Invoking DX", "DX", (*build).translate},
	{types.StagePackage, "________Invoking AAPT", "AAPT", (*build).packageResources},
	{types.StageSeal, "________Invoking ApkBuilder", "ApkBuilder", (*build).seal},
	{types.StageSign, "________Signing the apk file", "JarSigner", (*build).sign},
}

func (b *build) prepareIcon(_ context.Context) error {
	return b.deps.Icons.Prepare(b.project, b.iconPath)
}

func (b *build) resolvePermissions(_ context.Context) error {
	set, err := b.deps.Permissions.PermissionsFor(b.componentTypes)
	if err != nil {
		return err
	}
	b.permissions = set.Sorted()
	b.log.Debug("Resolved permissions", logger.WithField("permissions", b.permissions))
	return nil
}

func (b *build) writeManifest(_ context.Context) error {
	doc, err := manifest.Generate(b.project, b.permissions, b.opts.Mode)
	if err != nil {
		return err
	}
	return manifest.Write(b.manifestPath, doc)
}

func (b *build) compileSources(ctx context.Context) error {
	var sourceFiles []string
	userCodeExists := false
	for _, src := range b.project.Sources {
		sourceFiles = append(sourceFiles, src.File)
		if userCodeExists {
			continue
		}
		found, err := utils.FileContainsRune(src.File, '(')
		if err != nil {
			return fmt.Errorf("reading source %s: %w", src.File, err)
		}
		userCodeExists = found
	}
	if !userCodeExists {
		return ErrNoUserCode
	}

	paths, err := b.resolve(resources.KawaJar, resources.AndroidRuntimeJar, resources.Twitter4jJar, resources.AndroidPlatformJar, resources.RuntimeScheme)
	if err != nil {
		return err
	}
	classpath := strings.Join(paths[:4], string(filepath.ListSeparator))
	runtimeScheme := paths[4]

	args := []string{
		b.maxHeap(),
		"-cp", classpath,
		"kawa.repl",
		"-f", runtimeScheme,
		"-d", b.classesDir,
		"-P", b.project.PackageName() + ".",
		"-C",
	}
	args = append(args, sourceFiles...)
	args = append(args, runtimeScheme)

	// Compiler diagnostics are progress output, not tool errors.
	var captured bytes.Buffer
	runErr := b.deps.Tools.Run(ctx, toolexec.Command{
		Name:  "kawa",
		Path:  b.javaBinary(),
		Args:  args,
		Heavy: true,
	}, &captured, &captured)
	b.out.Write(captured.Bytes())

	if runErr != nil {
		b.log.Warn("Compiler reported failure", logger.WithError(runErr))
	}

	// Success is judged by the class files, not the exit status.
	for _, src := range b.project.Sources {
		classFile := filepath.Join(b.classesDir, filepath.FromSlash(strings.ReplaceAll(src.QualifiedName, ".", "/"))+".class")
		if fileMissing(classFile) {
			b.log.Info("Missing class file", logger.WithField("class_file", classFile))
			return &CompilationError{Screen: src.ScreenName(), ClassFile: classFile}
		}
	}
	return nil
}

func (b *build) translate(ctx context.Context) error {
	paths, err := b.resolve(resources.DxJar, resources.AndroidRuntimeJar, resources.KawaJar, resources.Twitter4jJar)
	if err != nil {
		return err
	}

	args := []string{
		b.maxHeap(),
		"-jar", paths[0],
		"--dex",
		"--positions=lines",
		"--output=" + b.dexPath,
		b.classesDir,
	}
	args = append(args, paths[1:]...)

	return b.runTool(ctx, toolexec.Command{
		Name:  "dx",
		Path:  b.javaBinary(),
		Args:  args,
		Heavy: true,
	})
}

func (b *build) packageResources(ctx context.Context) error {
	// aapt fails when the asset directory does not exist.
	if err := utils.EnsureDirectory(b.project.AssetsDir); err != nil {
		return err
	}

	tool, err := resources.AaptToolFor(b.opts.GOOS)
	if err != nil {
		return err
	}
	paths, err := b.resolve(tool, resources.AndroidPlatformJar)
	if err != nil {
		return err
	}

	return b.runTool(ctx, toolexec.Command{
		Name: "aapt",
		Path: paths[0],
		Args: []string{
			"package",
			"-v",
			"-f",
			"-M", b.manifestPath,
			"-S", b.resDir,
			"-A", b.project.AssetsDir,
			"-I", paths[1],
			"-F", b.apPath,
		},
	})
}

func (b *build) seal(ctx context.Context) error {
	paths, err := b.resolve(resources.SdkLibJar)
	if err != nil {
		return err
	}

	return b.runTool(ctx, toolexec.Command{
		Name: "apkbuilder",
		Path: b.javaBinary(),
		Args: []string{
			"-cp", paths[0],
			"com.android.sdklib.build.ApkBuilderMain",
			b.apkPath,
			"-u",
			"-z", b.apPath,
			"-f", b.dexPath,
		},
	})
}

func (b *build) sign(ctx context.Context) error {
	jarsigner, err := b.findJarsigner()
	if err != nil {
		fmt.Fprintln(b.errOut, "could not find jarsigner")
		return &toolexec.ExecutionError{Tool: "jarsigner", ExitCode: -1, Err: err}
	}

	return b.runTool(ctx, toolexec.Command{
		Name: "jarsigner",
		Path: jarsigner,
		Args: []string{
			"-digestalg", "SHA1",
			"-sigalg", "MD5withRSA",
			"-keystore", b.opts.KeystorePath,
			"-storepass", b.opts.StorePass,
			b.apkPath,
			b.opts.KeyAlias,
		},
	})
}

// findJarsigner looks in the JDK home first, then in the JDK that
// contains a JRE home.
func (b *build) findJarsigner() (string, error) {
	if b.opts.JavaHome == "" {
		return exec.LookPath("jarsigner")
	}

	name := "jarsigner"
	if b.opts.GOOS == "windows" {
		name += ".exe"
	}
	candidates := []string{
		filepath.Join(b.opts.JavaHome, "bin", name),
		filepath.Join(b.opts.JavaHome, "..", "bin", name),
	}
	for _, c := range candidates {
		if utils.FileExists(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("jarsigner not found in %s", strings.Join(candidates, ", "))
}

// runTool runs a tool whose output is not build progress. Its stdout only
// reaches the operator log; its stderr goes to the error channel too.
func (b *build) runTool(ctx context.Context, cmd toolexec.Command) error {
	var stdout, stderr bytes.Buffer
	err := b.deps.Tools.Run(ctx, cmd, &stdout, io.MultiWriter(b.errOut, &stderr))

	if stdout.Len() > 0 {
		b.log.Debug("Tool output", logger.WithField("tool", cmd.Name), logger.WithField("output", stdout.String()))
	}
	if err != nil {
		fmt.Fprintf(b.errOut, "%s execution failed.\n", cmd.Name)
		b.log.Error("Tool failed",
			logger.WithField("tool", cmd.Name),
			logger.WithField("stderr", stderr.String()),
			logger.WithError(err))

		var execErr *toolexec.ExecutionError
		if !errors.As(err, &execErr) {
			err = &toolexec.ExecutionError{Tool: cmd.Name, ExitCode: -1, Err: err}
		}
		return err
	}
	return nil
}

func (b *build) resolve(logicalPaths ...string) ([]string, error) {
	out := make([]string, 0, len(logicalPaths))
	for _, lp := range logicalPaths {
		p, err := b.deps.Resources.Resolve(lp)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
