package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apkforge/apkforge/pkg/types"
)

type projectDirs struct {
	project *types.Project
	src     string
	assets  string
	build   string
}

func newProject(t *testing.T) projectDirs {
	t.Helper()
	root := t.TempDir()
	d := projectDirs{
		src:    filepath.Join(root, "src"),
		assets: filepath.Join(root, "assets"),
		build:  filepath.Join(root, "src", "build"),
	}
	for _, dir := range []string{d.src, d.assets, d.build} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}
	screen := filepath.Join(d.src, "Screen1.scm")
	require.NoError(t, os.WriteFile(screen, []byte("(define-form)"), 0o644))

	d.project = &types.Project{
		Name:      "HelloPurr",
		MainClass: "com.example.HelloPurr.Screen1",
		Sources:   []types.SourceDescriptor{{QualifiedName: "com.example.HelloPurr.Screen1", File: screen}},
		AssetsDir: d.assets,
		BuildDir:  d.build,
	}
	return d
}

func startWatcher(t *testing.T, d projectDirs) <-chan []string {
	t.Helper()
	w, err := New(nil, 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.WatchProject(d.project))

	ctx, cancel := context.WithCancel(context.Background())
	batches := make(chan []string, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, func(_ context.Context, changed []string) {
			batches <- changed
		})
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		w.Close()
	})
	return batches
}

func TestWatcher_WatchProjectSkipsBuildDir(t *testing.T) {
	d := newProject(t)
	w, err := New(nil, 0)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WatchProject(d.project))

	assert.ElementsMatch(t, []string{d.src, d.assets}, w.List())
}

func TestWatcher_ReportsSourceChange(t *testing.T) {
	d := newProject(t)
	batches := startWatcher(t, d)

	screen := d.project.Sources[0].File
	require.NoError(t, os.WriteFile(screen, []byte("(define-form changed)"), 0o644))

	select {
	case changed := <-batches:
		assert.Contains(t, changed, screen)
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcher_CoalescesBursts(t *testing.T) {
	d := newProject(t)
	batches := startWatcher(t, d)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(d.assets, "kitty.png"), []byte{byte(i)}, 0o644))
	}

	select {
	case changed := <-batches:
		assert.Equal(t, []string{filepath.Join(d.assets, "kitty.png")}, changed)
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcher_IgnoresBuildOutputAndEditorFiles(t *testing.T) {
	d := newProject(t)
	batches := startWatcher(t, d)

	require.NoError(t, os.WriteFile(filepath.Join(d.build, "AndroidManifest.xml"), []byte("<manifest/>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(d.src, ".Screen1.scm.swp"), []byte("swap"), 0o644))

	select {
	case changed := <-batches:
		t.Fatalf("unexpected change batch %v", changed)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_FollowsNewDirectories(t *testing.T) {
	d := newProject(t)
	batches := startWatcher(t, d)

	sounds := filepath.Join(d.assets, "sounds")
	require.NoError(t, os.Mkdir(sounds, 0o755))

	select {
	case <-batches:
	case <-time.After(3 * time.Second):
		t.Fatal("directory creation not reported")
	}

	meow := filepath.Join(sounds, "meow.mp3")
	require.NoError(t, os.WriteFile(meow, []byte("mp3"), 0o644))

	select {
	case changed := <-batches:
		assert.Contains(t, changed, meow)
	case <-time.After(3 * time.Second):
		t.Fatal("change in new directory not reported")
	}
}

func TestWatcher_RunStopsWithContext(t *testing.T) {
	w, err := New(nil, 0)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = w.Run(ctx, func(context.Context, []string) {})
	assert.ErrorIs(t, err, context.Canceled)
}
